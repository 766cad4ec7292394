package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"manim-service/ddd/domain/vo"
	"manim-service/pkg/manager"
	"manim-service/pkg/middleware"
)

// Router 路由配置
type Router struct {
	deps    *manager.Dependencies
	metrics http.Handler
}

// NewRouter 创建路由配置. metrics may be nil.
func NewRouter(deps *manager.Dependencies, metrics http.Handler) *Router {
	return &Router{deps: deps, metrics: metrics}
}

// SetupMiddleware 设置中间件
func (r *Router) SetupMiddleware(engine *gin.Engine) {
	// CORS中间件
	engine.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Client-ID, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	engine.Use(middleware.RequestContextMiddleware())
	engine.Use(gin.Logger())
	engine.Use(gin.Recovery())
}

// SetupRoutes 设置路由
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "manim-service",
			"mode":    r.mode(),
		})
	})

	if r.metrics != nil {
		engine.GET("/metrics", gin.WrapH(r.metrics))
	}

	manager.RegisterAllRoutes(engine, r.deps)
}

func (r *Router) mode() string {
	if r.deps == nil {
		return ""
	}
	if m, ok := r.deps.RenderApp.(interface{ Mode() vo.RunnerMode }); ok {
		return m.Mode().String()
	}
	return ""
}
