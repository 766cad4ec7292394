package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"manim-service/ddd/domain/vo"
	"manim-service/pkg/observability"
)

func TestPipelineObserverExportsMetrics(t *testing.T) {
	handler, shutdown, err := observability.InitMetrics()
	if err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	obs, err := NewPipelineObserver()
	if err != nil {
		t.Fatalf("NewPipelineObserver: %v", err)
	}
	ctx := context.Background()
	obs.ObserveStage(ctx, vo.JobStepRender, 2*time.Second, nil)
	obs.ObserveStage(ctx, vo.JobStepTTS, time.Second, errors.New("tts down"))
	obs.ObserveJob(ctx, vo.JobStatusFailed, 3*time.Second)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{
		"manim_pipeline_stage_duration_seconds",
		"manim_pipeline_stage_failures_total",
		`step="tts"`,
		`status="failed"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %s in:\n%s", want, body)
		}
	}
}
