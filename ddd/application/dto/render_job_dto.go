package dto

import (
	"io"
	"time"

	"manim-service/ddd/domain/entity"
	"manim-service/ddd/domain/gateway"
)

// StartRenderJobDTO 提交结果
type StartRenderJobDTO struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
	Reused bool   `json:"reused"`
}

// RenderJobDTO is the job projection returned to pollers. The artifact path
// is never exposed, only whether it exists.
type RenderJobDTO struct {
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

// NewRenderJobDTO 从实体创建DTO
func NewRenderJobDTO(job *entity.RenderJob) *RenderJobDTO {
	if job == nil {
		return nil
	}
	return &RenderJobDTO{
		ID:        job.ID(),
		ClientID:  job.ClientID(),
		Prompt:    job.Prompt(),
		Status:    job.Status().String(),
		Step:      job.Step().String(),
		CreatedAt: job.CreatedAt(),
		UpdatedAt: job.UpdatedAt(),
		Error:     job.Error(),
		Logs:      job.Logs(),
		HasVideo:  job.HasVideo(),
	}
}

// NewRenderJobDTOFromRemote converts a worker answer.
func NewRenderJobDTOFromRemote(job *gateway.RemoteJob) *RenderJobDTO {
	if job == nil {
		return nil
	}
	logs := job.Logs
	if logs == nil {
		logs = []string{}
	}
	return &RenderJobDTO{
		ID:        job.ID,
		ClientID:  job.ClientID,
		Prompt:    job.Prompt,
		Status:    job.Status,
		Step:      job.Step,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
		Error:     job.Error,
		Logs:      logs,
		HasVideo:  job.HasVideo,
	}
}

// VideoDTO is an open artifact stream. The caller closes Body.
type VideoDTO struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
}
