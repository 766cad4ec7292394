package convertor

import (
	"encoding/json"

	"manim-service/ddd/domain/entity"
	"manim-service/ddd/domain/vo"
	"manim-service/ddd/infrastructure/database/po"
)

// RenderJobConvertor 渲染任务转换器
type RenderJobConvertor struct{}

func NewRenderJobConvertor() *RenderJobConvertor {
	return &RenderJobConvertor{}
}

// ToEntity 将PO转换为Entity
func (c *RenderJobConvertor) ToEntity(p *po.RenderJob) (*entity.RenderJob, error) {
	phase, err := vo.PhaseFromStep(vo.JobStep(p.Step))
	if err != nil {
		return nil, err
	}
	logs, err := c.DecodeLogs(p.Logs)
	if err != nil {
		return nil, err
	}
	return entity.RestoreRenderJob(
		p.JobID,
		p.ClientID,
		p.Prompt,
		phase,
		p.ErrorMessage,
		p.VideoPath,
		logs,
		p.CreatedAt,
		p.UpdatedAt,
	), nil
}

// ToPO 将Entity转换为PO
func (c *RenderJobConvertor) ToPO(j *entity.RenderJob) *po.RenderJob {
	return &po.RenderJob{
		BaseModel: po.BaseModel{
			CreatedAt: j.CreatedAt(),
			UpdatedAt: j.UpdatedAt(),
		},
		JobID:        j.ID(),
		ClientID:     j.ClientID(),
		Prompt:       j.Prompt(),
		Status:       string(j.Status()),
		Step:         string(j.Step()),
		ErrorMessage: j.Error(),
		VideoPath:    j.VideoPath(),
		Logs:         c.EncodeLogs(j.Logs()),
	}
}

// StateColumns returns the columns a transition may change.
func (c *RenderJobConvertor) StateColumns(j *entity.RenderJob) map[string]interface{} {
	return map[string]interface{}{
		"status":        string(j.Status()),
		"step":          string(j.Step()),
		"error_message": j.Error(),
		"video_path":    j.VideoPath(),
		"updated_at":    j.UpdatedAt(),
	}
}

func (c *RenderJobConvertor) EncodeLogs(logs []string) string {
	if len(logs) == 0 {
		return "[]"
	}
	b, err := json.Marshal(logs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func (c *RenderJobConvertor) DecodeLogs(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var logs []string
	if err := json.Unmarshal([]byte(raw), &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
