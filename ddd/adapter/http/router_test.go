package http

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"manim-service/ddd/application/app"
	"manim-service/ddd/domain/vo"
	"manim-service/ddd/infrastructure/store"
	"manim-service/pkg/config"
	"manim-service/pkg/manager"
)

func newRouterEngine(metrics http.Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	renderApp := app.NewRenderApp(store.NewMemoryJobStore(0), &nopLauncher{}, nil, app.RenderAppOptions{Mode: vo.RunnerModeLocal, CredentialsPresent: true})
	deps := &manager.Dependencies{Config: &config.Config{}, RenderApp: renderApp}
	engine := gin.New()
	r := NewRouter(deps, metrics)
	r.SetupMiddleware(engine)
	r.SetupRoutes(engine)
	return engine
}

func TestRouterHealthAndRoutes(t *testing.T) {
	engine := newRouterEngine(nil)

	rr := do(engine, http.MethodGet, "/health", "")
	var health map[string]string
	decode(t, rr, &health)
	if rr.Code != http.StatusOK || health["status"] != "ok" || health["mode"] != "local" {
		t.Errorf("health %d %v", rr.Code, health)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("request id header missing")
	}

	if rr := do(engine, http.MethodGet, "/metrics", ""); rr.Code != http.StatusNotFound {
		t.Errorf("metrics without handler: %d", rr.Code)
	}
	if rr := do(engine, http.MethodGet, "/api/manim/status?jobId=x", ""); rr.Code != http.StatusNotFound {
		t.Errorf("render routes not registered: %d", rr.Code)
	}
}

func TestRouterPreflightAndMetrics(t *testing.T) {
	engine := newRouterEngine(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics\n"))
	}))

	rr := do(engine, http.MethodOptions, "/api/manim/start", "")
	if rr.Code != http.StatusNoContent || rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight %d %v", rr.Code, rr.Header())
	}
	if rr := do(engine, http.MethodGet, "/metrics", ""); rr.Code != http.StatusOK || rr.Body.String() != "# metrics\n" {
		t.Errorf("metrics %d %q", rr.Code, rr.Body.String())
	}
}
