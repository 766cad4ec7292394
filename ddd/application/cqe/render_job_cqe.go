package cqe

import (
	"strings"

	"manim-service/pkg/errno"
)

// StartRenderJobReq 提交渲染任务请求
type StartRenderJobReq struct {
	Prompt   string `json:"prompt"`   // 自然语言描述
	ClientID string `json:"clientId"` // 提交方ID
	// JobID is set by a delegating instance so both sides share one id.
	JobID string `json:"jobId,omitempty"`
}

// Normalize trims every field.
func (req *StartRenderJobReq) Normalize() {
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.JobID = strings.TrimSpace(req.JobID)
}

// Validate checks clientId before prompt.
func (req *StartRenderJobReq) Validate() error {
	req.Normalize()
	if req.ClientID == "" {
		return errno.ErrClientIDRequired
	}
	if req.Prompt == "" {
		return errno.ErrPromptRequired
	}
	return nil
}

// RenderJobQuery 查询任务请求
type RenderJobQuery struct {
	JobID string `form:"jobId"`
}

func (q *RenderJobQuery) Validate() error {
	q.JobID = strings.TrimSpace(q.JobID)
	if q.JobID == "" {
		return errno.ErrJobIDRequired
	}
	return nil
}
