package discovery

import (
	"context"
	"strings"

	"manim-service/ddd/domain/gateway"
	"manim-service/pkg/config"
	"manim-service/pkg/errno"
	"manim-service/pkg/registry"
)

// AddressResolver picks one live instance of a service.
type AddressResolver interface {
	GetServiceAddress(ctx context.Context, serviceName string) (string, error)
}

// StaticWorkerLocator returns a fixed worker address.
type StaticWorkerLocator struct {
	url string
}

func NewStaticWorkerLocator(url string) *StaticWorkerLocator {
	return &StaticWorkerLocator{url: strings.TrimRight(strings.TrimSpace(url), "/")}
}

func (l *StaticWorkerLocator) WorkerURL(context.Context) (string, error) {
	if l.url == "" {
		return "", errno.ErrWorkerNotConfigured
	}
	return l.url, nil
}

// EtcdWorkerLocator resolves a registered worker instance on every call.
type EtcdWorkerLocator struct {
	resolver    AddressResolver
	serviceName string
	basePath    string
}

func NewEtcdWorkerLocator(resolver AddressResolver, serviceName, basePath string) *EtcdWorkerLocator {
	return &EtcdWorkerLocator{resolver: resolver, serviceName: serviceName, basePath: basePath}
}

func (l *EtcdWorkerLocator) WorkerURL(ctx context.Context) (string, error) {
	addr, err := l.resolver.GetServiceAddress(ctx, l.serviceName)
	if err != nil {
		return "", errno.NewBizError(errno.ErrWorkerUnreachable, err)
	}
	if !strings.Contains(addr, "://") {
		// registered values are bare host:port
		if _, _, err := registry.ParseServiceAddress(addr); err != nil {
			return "", errno.NewBizError(errno.ErrWorkerUnreachable, err)
		}
		addr = "http://" + addr
	}
	base := strings.TrimRight(addr, "/")
	if p := strings.Trim(l.basePath, "/"); p != "" {
		base += "/" + p
	}
	return base, nil
}

// NewWorkerLocator prefers a static worker_url and falls back to discovery
// when it is enabled and a resolver is available.
func NewWorkerLocator(cfg config.RunnerConfig, resolver AddressResolver) gateway.WorkerLocator {
	if strings.TrimSpace(cfg.WorkerURL) != "" || !cfg.Discovery.Enabled || resolver == nil {
		return NewStaticWorkerLocator(cfg.WorkerURL)
	}
	return NewEtcdWorkerLocator(resolver, cfg.Discovery.ServiceName, cfg.Discovery.BasePath)
}

// Configured reports whether a worker can be addressed at all.
func Configured(cfg config.RunnerConfig) bool {
	return strings.TrimSpace(cfg.WorkerURL) != "" || cfg.Discovery.Enabled
}
