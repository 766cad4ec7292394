package gateway

import (
	"context"
	"io"
	"time"
)

// WorkerStartRequest is sent to a remote worker to start a job.
type WorkerStartRequest struct {
	JobID    string `json:"jobId,omitempty"`
	ClientID string `json:"clientId"`
	Prompt   string `json:"prompt"`
}

// WorkerStartResult is the worker's answer to a start call.
type WorkerStartResult struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
	Reused bool   `json:"reused"`
}

// RemoteJob is the job projection returned by a worker's status call.
type RemoteJob struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"clientId"`
	Prompt    string    `json:"prompt"`
	Status    string    `json:"status"`
	Step      string    `json:"step"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Error     string    `json:"error"`
	Logs      []string  `json:"logs"`
	HasVideo  bool      `json:"hasVideo"`
}

// VideoStream is an open artifact body. Callers must close Body.
type VideoStream struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
}

// WorkerGateway mirrors start/status/video against a remote worker.
// Transport failures are reported as errno.ErrWorkerUnreachable, undecodable
// answers as errno.ErrInvalidWorkerResponse.
type WorkerGateway interface {
	Start(ctx context.Context, req WorkerStartRequest) (*WorkerStartResult, error)
	Status(ctx context.Context, jobID string) (*RemoteJob, error)
	OpenVideo(ctx context.Context, jobID string) (*VideoStream, error)
}

// WorkerLocator resolves the base address of a worker.
type WorkerLocator interface {
	WorkerURL(ctx context.Context) (string, error)
}
