package vo

import "fmt"

// Phase is one legal {status, step} pair of a render job. The zero value is
// not a valid phase; use the exported Phase* values.
type Phase struct {
	step   JobStep
	status JobStatus
	order  int
}

var (
	PhaseQueued    = Phase{step: JobStepQueued, status: JobStatusQueued, order: 0}
	PhaseScript    = Phase{step: JobStepScript, status: JobStatusRunning, order: 1}
	PhaseTTS       = Phase{step: JobStepTTS, status: JobStatusRunning, order: 2}
	PhaseSceneCode = Phase{step: JobStepManimCode, status: JobStatusRunning, order: 3}
	PhaseDuration  = Phase{step: JobStepDuration, status: JobStatusRunning, order: 4}
	PhaseRender    = Phase{step: JobStepRender, status: JobStatusRunning, order: 5}
	PhaseStitch    = Phase{step: JobStepStitch, status: JobStatusRunning, order: 6}
	PhaseDone      = Phase{step: JobStepDone, status: JobStatusSucceeded, order: 7}
	PhaseError     = Phase{step: JobStepError, status: JobStatusFailed, order: -1}
)

var phasesByStep = map[JobStep]Phase{
	JobStepQueued:    PhaseQueued,
	JobStepScript:    PhaseScript,
	JobStepTTS:       PhaseTTS,
	JobStepManimCode: PhaseSceneCode,
	JobStepDuration:  PhaseDuration,
	JobStepRender:    PhaseRender,
	JobStepStitch:    PhaseStitch,
	JobStepDone:      PhaseDone,
	JobStepError:     PhaseError,
}

// PhaseFromStep restores a phase from its persisted step.
func PhaseFromStep(step JobStep) (Phase, error) {
	p, ok := phasesByStep[step]
	if !ok {
		return Phase{}, fmt.Errorf("unknown job step %q", step)
	}
	return p, nil
}

func (p Phase) Step() JobStep     { return p.step }
func (p Phase) Status() JobStatus { return p.status }

// IsZero reports whether p is the unset value.
func (p Phase) IsZero() bool { return p.step == "" }

// IsTerminal 是否为终态
func (p Phase) IsTerminal() bool {
	return p.status.IsFinalStatus()
}

// CanTransitionTo allows the immediate successor, or error from any non-terminal phase.
func (p Phase) CanTransitionTo(next Phase) bool {
	if p.IsZero() || next.IsZero() || p.IsTerminal() {
		return false
	}
	if next == PhaseError {
		return true
	}
	return next.order == p.order+1
}

func (p Phase) String() string {
	return string(p.status) + "/" + string(p.step)
}
