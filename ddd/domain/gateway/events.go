package gateway

import (
	"context"
	"time"
)

// JobEvent is emitted on every phase change of a render job.
type JobEvent struct {
	JobID     string    `json:"jobId"`
	ClientID  string    `json:"clientId"`
	Status    string    `json:"status"`
	Step      string    `json:"step"`
	Error     string    `json:"error,omitempty"`
	HasVideo  bool      `json:"hasVideo"`
	Timestamp time.Time `json:"timestamp"`
}

// JobEventPublisher delivers job events to interested parties. Delivery is
// best effort; the pipeline never fails because of it.
type JobEventPublisher interface {
	Publish(ctx context.Context, evt JobEvent) error
}

type NopEventPublisher struct{}

func (NopEventPublisher) Publish(context.Context, JobEvent) error { return nil }
