package vo

// JobStatus 渲染任务粗粒度状态
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// IsValid 检查状态是否有效
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusSucceeded, JobStatusFailed:
		return true
	default:
		return false
	}
}

func (s JobStatus) String() string {
	return string(s)
}

// IsFinalStatus 检查是否为最终状态
func (s JobStatus) IsFinalStatus() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// IsActive reports whether a job in this status still owns its client's active slot.
func (s JobStatus) IsActive() bool {
	return s == JobStatusQueued || s == JobStatusRunning
}

// JobStep 流水线细粒度阶段
type JobStep string

const (
	JobStepQueued    JobStep = "queued"
	JobStepScript    JobStep = "script"
	JobStepTTS       JobStep = "tts"
	JobStepManimCode JobStep = "manim_code"
	JobStepDuration  JobStep = "duration"
	JobStepRender    JobStep = "render"
	JobStepStitch    JobStep = "stitch"
	JobStepDone      JobStep = "done"
	JobStepError     JobStep = "error"
)

func (s JobStep) String() string {
	return string(s)
}
