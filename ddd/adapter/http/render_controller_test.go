package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"manim-service/ddd/application/app"
	"manim-service/ddd/domain/entity"
	"manim-service/ddd/domain/vo"
	"manim-service/ddd/infrastructure/discovery"
	"manim-service/ddd/infrastructure/remote"
	"manim-service/ddd/infrastructure/store"
	"manim-service/pkg/config"
	"manim-service/pkg/middleware"
	"manim-service/pkg/restapi"
)

type nopLauncher struct{ launched []string }

func (l *nopLauncher) Launch(id string) error {
	l.launched = append(l.launched, id)
	return nil
}

type harness struct {
	engine *gin.Engine
	store  *store.MemoryJobStore
}

func newEngine(renderApp app.RenderApp, limit config.RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(middleware.RequestContextMiddleware())
	NewRenderController(renderApp, limit).RegisterRoutes(engine)
	return engine
}

func newLocalHarness(limit config.RateLimitConfig) *harness {
	s := store.NewMemoryJobStore(0)
	renderApp := app.NewRenderApp(s, &nopLauncher{}, nil, app.RenderAppOptions{Mode: vo.RunnerModeLocal, CredentialsPresent: true})
	return &harness{engine: newEngine(renderApp, limit), store: s}
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func TestStartEndpoint(t *testing.T) {
	h := newLocalHarness(config.RateLimitConfig{})

	rr := do(h.engine, http.MethodPost, "/api/manim/start", `{"prompt":"unit circle","clientId":"c1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var first struct {
		JobID  string `json:"jobId"`
		Status string `json:"status"`
		Reused bool   `json:"reused"`
	}
	decode(t, rr, &first)
	if first.JobID == "" || first.Status != "queued" || first.Reused {
		t.Errorf("first = %+v", first)
	}

	rr = do(h.engine, http.MethodPost, "/api/manim/start", `{"prompt":"again","clientId":"c1"}`)
	var second struct {
		JobID  string `json:"jobId"`
		Reused bool   `json:"reused"`
	}
	decode(t, rr, &second)
	if !second.Reused || second.JobID != first.JobID {
		t.Errorf("second = %+v", second)
	}
}

func TestStartEndpointErrors(t *testing.T) {
	h := newLocalHarness(config.RateLimitConfig{})

	cases := []struct {
		name   string
		body   string
		status int
		code   int
	}{
		{"malformed", `{"prompt":`, http.StatusBadRequest, 400},
		{"no client", `{"prompt":"p"}`, http.StatusBadRequest, 20002},
		{"no prompt", `{"clientId":"c1","prompt":"  "}`, http.StatusBadRequest, 20001},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(h.engine, http.MethodPost, "/api/manim/start", tc.body)
			if rr.Code != tc.status {
				t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
			}
			var body restapi.ErrorResponse
			decode(t, rr, &body)
			if body.Code != tc.code || body.Error == "" {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestStartEndpointRateLimited(t *testing.T) {
	h := newLocalHarness(config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1})

	req := func() int {
		r := httptest.NewRequest(http.MethodPost, "/api/manim/start", strings.NewReader(`{"prompt":"p","clientId":"c1"}`))
		r.Header.Set(middleware.HeaderClientID, "c1")
		rr := httptest.NewRecorder()
		h.engine.ServeHTTP(rr, r)
		return rr.Code
	}
	if code := req(); code != http.StatusOK {
		t.Fatalf("first: %d", code)
	}
	if code := req(); code != http.StatusTooManyRequests {
		t.Errorf("second: %d", code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	h := newLocalHarness(config.RateLimitConfig{})

	if rr := do(h.engine, http.MethodGet, "/api/manim/status", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("missing id: %d", rr.Code)
	}
	if rr := do(h.engine, http.MethodGet, "/api/manim/status?jobId=nope", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown id: %d", rr.Code)
	}

	rr := do(h.engine, http.MethodPost, "/api/manim/start", `{"prompt":"p","clientId":"c1"}`)
	var started struct{ JobID string }
	decode(t, rr, &started)
	h.store.AppendLog(context.Background(), started.JobID, "Generating script...")

	rr = do(h.engine, http.MethodGet, "/api/manim/status?jobId="+started.JobID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var body map[string]interface{}
	decode(t, rr, &body)
	for _, key := range []string{"id", "clientId", "prompt", "status", "step", "createdAt", "updatedAt", "error", "logs", "hasVideo"} {
		if _, ok := body[key]; !ok {
			t.Errorf("missing %q in %v", key, body)
		}
	}
	if _, ok := body["videoPath"]; ok {
		t.Error("video path must not be exposed")
	}
	if logs := body["logs"].([]interface{}); len(logs) != 1 {
		t.Errorf("logs = %v", logs)
	}
}

func TestVideoEndpoint(t *testing.T) {
	h := newLocalHarness(config.RateLimitConfig{})
	ctx := context.Background()

	rr := do(h.engine, http.MethodPost, "/api/manim/start", `{"prompt":"p","clientId":"c1"}`)
	var started struct{ JobID string }
	decode(t, rr, &started)

	if rr := do(h.engine, http.MethodGet, "/api/manim/video?jobId="+started.JobID, ""); rr.Code != http.StatusConflict {
		t.Errorf("not ready: %d", rr.Code)
	}
	if rr := do(h.engine, http.MethodGet, "/api/manim/video?jobId=missing", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown: %d", rr.Code)
	}

	path := filepath.Join(t.TempDir(), "COMPLETE.mp4")
	payload := []byte("\x00\x00\x00\x18ftypmp42")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatal(err)
	}
	for _, p := range []vo.Phase{vo.PhaseScript, vo.PhaseTTS, vo.PhaseSceneCode, vo.PhaseDuration, vo.PhaseRender, vo.PhaseStitch} {
		h.store.UpdateJob(ctx, started.JobID, entity.Advance(p))
	}
	h.store.UpdateJob(ctx, started.JobID, entity.Succeed(path))

	rr = do(h.engine, http.MethodGet, "/api/manim/video?jobId="+started.JobID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("content type %q", got)
	}
	if got := rr.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("cache control %q", got)
	}
	if got := rr.Header().Get("Content-Length"); got != "12" {
		t.Errorf("content length %q", got)
	}
	if !bytes.Equal(rr.Body.Bytes(), payload) {
		t.Errorf("body = %q", rr.Body.Bytes())
	}
}

// A delegating instance in remote mode talks to a worker instance running the
// same routes locally.
func TestRemoteModeProxiesToWorker(t *testing.T) {
	worker := newLocalHarness(config.RateLimitConfig{})
	srv := httptest.NewServer(worker.engine)
	defer srv.Close()

	client := remote.NewWorkerClient(discovery.NewStaticWorkerLocator(srv.URL+"/api/manim"), 5*time.Second)
	front := store.NewMemoryJobStore(0)
	frontApp := app.NewRenderApp(front, nil, client, app.RenderAppOptions{Mode: vo.RunnerModeRemote})
	engine := newEngine(frontApp, config.RateLimitConfig{})

	rr := do(engine, http.MethodPost, "/api/manim/start", `{"prompt":"spirals","clientId":"c9"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("start %d: %s", rr.Code, rr.Body.String())
	}
	var started struct {
		JobID  string `json:"jobId"`
		Reused bool   `json:"reused"`
	}
	decode(t, rr, &started)
	if _, ok := worker.store.GetJob(context.Background(), started.JobID); !ok {
		t.Fatalf("worker does not know job %s", started.JobID)
	}

	rr = do(engine, http.MethodGet, "/api/manim/status?jobId="+started.JobID, "")
	var status struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Prompt string `json:"prompt"`
	}
	decode(t, rr, &status)
	if rr.Code != http.StatusOK || status.ID != started.JobID || status.Prompt != "spirals" {
		t.Errorf("status %d %+v", rr.Code, status)
	}

	if rr := do(engine, http.MethodGet, "/api/manim/video?jobId="+started.JobID, ""); rr.Code != http.StatusConflict {
		t.Errorf("video before done: %d", rr.Code)
	}
	if rr := do(engine, http.MethodGet, "/api/manim/status?jobId=ghost", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown job through proxy: %d", rr.Code)
	}

	rr = do(engine, http.MethodPost, "/api/manim/start", `{"prompt":"spirals","clientId":"c9"}`)
	var again struct {
		JobID  string `json:"jobId"`
		Reused bool   `json:"reused"`
	}
	decode(t, rr, &again)
	if !again.Reused || again.JobID != started.JobID {
		t.Errorf("again = %+v", again)
	}
}
