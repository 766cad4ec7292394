package manager

import (
	"sync"

	"github.com/gin-gonic/gin"

	"manim-service/pkg/config"
	"manim-service/pkg/logger"
)

// Resource is an infrastructure client opened once at startup.
type Resource interface {
	MustOpen()
	Close()
}

type ResourcePlugin interface {
	Name() string
	MustCreateResource() Resource
}

// Component is a long-lived process part started after resources.
type Component interface {
	Start() error
	Stop() error
	GetName() string
}

type ComponentPlugin interface {
	Name() string
	MustCreateComponent(deps *Dependencies) Component
}

// Controller registers HTTP routes.
type Controller interface {
	RegisterRoutes(r gin.IRouter)
}

type ControllerPlugin interface {
	Name() string
	MustCreateController(deps *Dependencies) Controller
}

// Switchable lets a plugin opt out based on configuration.
type Switchable interface {
	Enabled(cfg *config.Config) bool
}

// Dependencies 依赖注入容器
type Dependencies struct {
	Config    *config.Config
	RenderApp interface{}
}

type registry struct {
	mu                sync.Mutex
	resourcePlugins   []ResourcePlugin
	componentPlugins  []ComponentPlugin
	controllerPlugins []ControllerPlugin

	resources  []Resource
	components []Component
}

var defaultRegistry = &registry{}

func RegisterResourcePlugin(p ResourcePlugin) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.resourcePlugins = append(defaultRegistry.resourcePlugins, p)
}

func RegisterComponentPlugin(p ComponentPlugin) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.componentPlugins = append(defaultRegistry.componentPlugins, p)
}

func RegisterControllerPlugin(p ControllerPlugin) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.controllerPlugins = append(defaultRegistry.controllerPlugins, p)
}

func enabled(p interface{}, cfg *config.Config) bool {
	if s, ok := p.(Switchable); ok {
		return s.Enabled(cfg)
	}
	return true
}

// MustInitResources opens every enabled resource in registration order.
func MustInitResources() {
	cfg := config.GetGlobalConfig()
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for _, p := range defaultRegistry.resourcePlugins {
		if !enabled(p, cfg) {
			logger.Infof("Resource skipped name=%s", p.Name())
			continue
		}
		r := p.MustCreateResource()
		r.MustOpen()
		defaultRegistry.resources = append(defaultRegistry.resources, r)
		logger.Infof("Resource opened name=%s", p.Name())
	}
}

// CloseResources closes opened resources in reverse order.
func CloseResources() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for i := len(defaultRegistry.resources) - 1; i >= 0; i-- {
		defaultRegistry.resources[i].Close()
	}
	defaultRegistry.resources = nil
}

// MustInitComponents creates and starts every enabled component.
func MustInitComponents(deps *Dependencies) {
	var cfg *config.Config
	if deps != nil {
		cfg = deps.Config
	}
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for _, p := range defaultRegistry.componentPlugins {
		if !enabled(p, cfg) {
			logger.Infof("Component skipped name=%s", p.Name())
			continue
		}
		c := p.MustCreateComponent(deps)
		if err := c.Start(); err != nil {
			panic("failed to start component " + p.Name() + ": " + err.Error())
		}
		defaultRegistry.components = append(defaultRegistry.components, c)
		logger.Infof("Component started name=%s", c.GetName())
	}
}

// RegisterAllRoutes lets every enabled controller attach its routes.
func RegisterAllRoutes(r gin.IRouter, deps *Dependencies) {
	var cfg *config.Config
	if deps != nil {
		cfg = deps.Config
	}
	defaultRegistry.mu.Lock()
	plugins := append([]ControllerPlugin(nil), defaultRegistry.controllerPlugins...)
	defaultRegistry.mu.Unlock()
	for _, p := range plugins {
		if !enabled(p, cfg) {
			continue
		}
		p.MustCreateController(deps).RegisterRoutes(r)
		logger.Infof("Routes registered controller=%s", p.Name())
	}
}

// Shutdown stops started components in reverse order.
func Shutdown() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for i := len(defaultRegistry.components) - 1; i >= 0; i-- {
		c := defaultRegistry.components[i]
		if err := c.Stop(); err != nil {
			logger.Warnf("Component stop failed name=%s error=%v", c.GetName(), err)
		}
	}
	defaultRegistry.components = nil
}
