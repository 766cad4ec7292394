package port

import (
	"context"
	"time"

	"manim-service/ddd/domain/vo"
)

// PipelineObserver records stage and job timings.
type PipelineObserver interface {
	ObserveStage(ctx context.Context, step vo.JobStep, elapsed time.Duration, err error)
	ObserveJob(ctx context.Context, status vo.JobStatus, elapsed time.Duration)
}

type NopObserver struct{}

func (NopObserver) ObserveStage(context.Context, vo.JobStep, time.Duration, error) {}
func (NopObserver) ObserveJob(context.Context, vo.JobStatus, time.Duration)        {}
