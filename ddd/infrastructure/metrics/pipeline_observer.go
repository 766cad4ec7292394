package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"manim-service/ddd/domain/vo"
)

const meterName = "manim-service/pipeline"

// PipelineObserver records pipeline timings on the global meter provider.
type PipelineObserver struct {
	stageDuration metric.Float64Histogram
	stageFailures metric.Int64Counter
	jobDuration   metric.Float64Histogram
	jobsFinished  metric.Int64Counter
}

func NewPipelineObserver() (*PipelineObserver, error) {
	meter := otel.Meter(meterName)

	stageDuration, err := meter.Float64Histogram("manim_pipeline_stage_duration_seconds",
		metric.WithDescription("Wall time of one pipeline stage"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	stageFailures, err := meter.Int64Counter("manim_pipeline_stage_failures_total",
		metric.WithDescription("Stages that ended the job with an error"))
	if err != nil {
		return nil, err
	}
	jobDuration, err := meter.Float64Histogram("manim_job_duration_seconds",
		metric.WithDescription("Wall time from pipeline start to terminal state"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	jobsFinished, err := meter.Int64Counter("manim_jobs_finished_total",
		metric.WithDescription("Jobs that reached a terminal state"))
	if err != nil {
		return nil, err
	}
	return &PipelineObserver{
		stageDuration: stageDuration,
		stageFailures: stageFailures,
		jobDuration:   jobDuration,
		jobsFinished:  jobsFinished,
	}, nil
}

func (o *PipelineObserver) ObserveStage(ctx context.Context, step vo.JobStep, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("step", step.String()))
	o.stageDuration.Record(ctx, elapsed.Seconds(), attrs)
	if err != nil {
		o.stageFailures.Add(ctx, 1, attrs)
	}
}

func (o *PipelineObserver) ObserveJob(ctx context.Context, status vo.JobStatus, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status.String()))
	o.jobDuration.Record(ctx, elapsed.Seconds(), attrs)
	o.jobsFinished.Add(ctx, 1, attrs)
}
