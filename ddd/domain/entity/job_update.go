package entity

import (
	"strings"

	"manim-service/ddd/domain/vo"
)

// JobUpdate is a state change for a render job. Build it with Advance,
// Succeed or Fail; the zero value is rejected by RenderJob.Apply.
type JobUpdate struct {
	phase     vo.Phase
	videoPath string
	errMsg    string
}

// Advance moves a running job into a non-terminal phase.
func Advance(p vo.Phase) JobUpdate {
	return JobUpdate{phase: p}
}

// Succeed finishes a job with its final artifact.
func Succeed(videoPath string) JobUpdate {
	return JobUpdate{phase: vo.PhaseDone, videoPath: videoPath}
}

// Fail moves a job into the error phase.
func Fail(msg string) JobUpdate {
	return JobUpdate{phase: vo.PhaseError, errMsg: msg}
}

func (u JobUpdate) Phase() vo.Phase   { return u.phase }
func (u JobUpdate) VideoPath() string { return u.videoPath }
func (u JobUpdate) ErrorMsg() string  { return u.errMsg }

func (u JobUpdate) validate() error {
	switch {
	case u.phase.IsZero():
		return NewDomainError("empty job update")
	case u.phase == vo.PhaseDone && strings.TrimSpace(u.videoPath) == "":
		return NewDomainError("succeeded job requires a video path")
	case u.phase == vo.PhaseError && strings.TrimSpace(u.errMsg) == "":
		return NewDomainError("failed job requires an error message")
	case u.phase == vo.PhaseQueued:
		return NewDomainError("cannot move a job back to queued")
	}
	return nil
}
