package entity

import (
	"time"

	"github.com/google/uuid"

	"manim-service/ddd/domain/vo"
)

// RenderJob 渲染任务实体
type RenderJob struct {
	id        string    // 任务ID
	clientID  string    // 提交方ID，用于去重
	prompt    string    // 原始提示词，不可变
	phase     vo.Phase  // 当前阶段
	errMsg    string    // 失败原因，仅 failed 时有值
	videoPath string    // 成品路径，仅 succeeded 时有值
	logs      []string  // 进度日志，保留最近 N 条
	createdAt time.Time // 创建时间
	updatedAt time.Time // 更新时间
}

// NewRenderJob creates a queued job with a fresh id.
func NewRenderJob(clientID, prompt string) *RenderJob {
	return NewRenderJobWithID(uuid.NewString(), clientID, prompt)
}

// NewRenderJobWithID creates a queued job under an id allocated elsewhere,
// e.g. by a remote worker.
func NewRenderJobWithID(id, clientID, prompt string) *RenderJob {
	now := time.Now()
	return &RenderJob{
		id:        id,
		clientID:  clientID,
		prompt:    prompt,
		phase:     vo.PhaseQueued,
		logs:      make([]string, 0, 16),
		createdAt: now,
		updatedAt: now,
	}
}

// RestoreRenderJob rebuilds a job from persisted state.
func RestoreRenderJob(id, clientID, prompt string, phase vo.Phase, errMsg, videoPath string, logs []string, createdAt, updatedAt time.Time) *RenderJob {
	if logs == nil {
		logs = []string{}
	}
	return &RenderJob{
		id:        id,
		clientID:  clientID,
		prompt:    prompt,
		phase:     phase,
		errMsg:    errMsg,
		videoPath: videoPath,
		logs:      logs,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// Getters
func (j *RenderJob) ID() string           { return j.id }
func (j *RenderJob) ClientID() string     { return j.clientID }
func (j *RenderJob) Prompt() string       { return j.prompt }
func (j *RenderJob) Phase() vo.Phase      { return j.phase }
func (j *RenderJob) Status() vo.JobStatus { return j.phase.Status() }
func (j *RenderJob) Step() vo.JobStep     { return j.phase.Step() }
func (j *RenderJob) Error() string        { return j.errMsg }
func (j *RenderJob) VideoPath() string    { return j.videoPath }
func (j *RenderJob) CreatedAt() time.Time { return j.createdAt }
func (j *RenderJob) UpdatedAt() time.Time { return j.updatedAt }

// Logs returns a copy of the retained log lines.
func (j *RenderJob) Logs() []string {
	out := make([]string, len(j.logs))
	copy(out, j.logs)
	return out
}

// IsActive 是否仍占用客户端的活跃位
func (j *RenderJob) IsActive() bool {
	return j.phase.Status().IsActive()
}

// HasVideo reports whether a finished artifact is recorded.
func (j *RenderJob) HasVideo() bool {
	return j.phase == vo.PhaseDone && j.videoPath != ""
}

// Apply performs a state transition. Illegal transitions leave the job untouched.
func (j *RenderJob) Apply(u JobUpdate, now time.Time) error {
	if err := u.validate(); err != nil {
		return err
	}
	if !j.phase.CanTransitionTo(u.phase) {
		return NewDomainError("illegal transition " + j.phase.String() + " -> " + u.phase.String())
	}
	j.phase = u.phase
	switch u.phase {
	case vo.PhaseDone:
		j.videoPath = u.videoPath
	case vo.PhaseError:
		j.errMsg = u.errMsg
	}
	j.updatedAt = now
	return nil
}

// AppendLog appends a line and evicts the oldest lines beyond limit.
func (j *RenderJob) AppendLog(line string, limit int, now time.Time) {
	j.logs = append(j.logs, line)
	if limit > 0 && len(j.logs) > limit {
		trimmed := make([]string, limit)
		copy(trimmed, j.logs[len(j.logs)-limit:])
		j.logs = trimmed
	}
	j.updatedAt = now
}

// Clone returns a deep copy safe to hand to other goroutines.
func (j *RenderJob) Clone() *RenderJob {
	if j == nil {
		return nil
	}
	c := *j
	c.logs = j.Logs()
	return &c
}
