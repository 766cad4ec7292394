package repo

import (
	"context"

	"manim-service/ddd/domain/entity"
)

// JobStore is the single source of truth for render jobs and the per-client
// active index. Apart from CreateJob, operations never fail: unknown ids,
// illegal transitions and backend errors degrade to no-ops so that the
// submission path, pollers and the pipeline cannot break each other.
type JobStore interface {
	// CreateJob stores a queued job and makes it the active job of its client,
	// superseding any previous entry.
	CreateJob(ctx context.Context, job *entity.RenderJob) error
	// GetJob returns a snapshot of the job.
	GetJob(ctx context.Context, id string) (*entity.RenderJob, bool)
	GetActiveJobID(ctx context.Context, clientID string) (string, bool)
	// UpdateJob applies a transition and refreshes updatedAt.
	UpdateJob(ctx context.Context, id string, u entity.JobUpdate)
	// AppendLog appends one line and trims to the retention cap.
	AppendLog(ctx context.Context, id, line string)
	// RetireJob clears the client's active entry only while it still points at id.
	RetireJob(ctx context.Context, id string)
}
