package vo

import "testing"

func TestPhaseCanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from Phase
		to   Phase
		want bool
	}{
		{"queued to script", PhaseQueued, PhaseScript, true},
		{"script to tts", PhaseScript, PhaseTTS, true},
		{"tts to scene code", PhaseTTS, PhaseSceneCode, true},
		{"scene code to duration", PhaseSceneCode, PhaseDuration, true},
		{"duration to render", PhaseDuration, PhaseRender, true},
		{"render to stitch", PhaseRender, PhaseStitch, true},
		{"stitch to done", PhaseStitch, PhaseDone, true},
		{"queued to error", PhaseQueued, PhaseError, true},
		{"render to error", PhaseRender, PhaseError, true},
		{"skip a step", PhaseScript, PhaseSceneCode, false},
		{"backwards", PhaseRender, PhaseTTS, false},
		{"queued straight to done", PhaseQueued, PhaseDone, false},
		{"out of done", PhaseDone, PhaseError, false},
		{"out of error", PhaseError, PhaseQueued, false},
		{"self", PhaseTTS, PhaseTTS, false},
		{"zero target", PhaseQueued, Phase{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestPhaseStatusProjection(t *testing.T) {
	if PhaseQueued.Status() != JobStatusQueued {
		t.Errorf("queued phase status = %s", PhaseQueued.Status())
	}
	for _, p := range []Phase{PhaseScript, PhaseTTS, PhaseSceneCode, PhaseDuration, PhaseRender, PhaseStitch} {
		if p.Status() != JobStatusRunning {
			t.Errorf("%s: expected running", p)
		}
	}
	if PhaseDone.Status() != JobStatusSucceeded {
		t.Errorf("done phase status = %s", PhaseDone.Status())
	}
	if PhaseError.Status() != JobStatusFailed {
		t.Errorf("error phase status = %s", PhaseError.Status())
	}
}

func TestPhaseFromStep(t *testing.T) {
	p, err := PhaseFromStep(JobStepManimCode)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != PhaseSceneCode {
		t.Errorf("got %s, want %s", p, PhaseSceneCode)
	}
	if _, err := PhaseFromStep("bogus"); err == nil {
		t.Error("expected error for unknown step")
	}
}

func TestParseRunnerMode(t *testing.T) {
	if m, ok := ParseRunnerMode(" Remote "); !ok || m != RunnerModeRemote {
		t.Errorf("got %q %v", m, ok)
	}
	if _, ok := ParseRunnerMode("hybrid"); ok {
		t.Error("expected hybrid to be rejected")
	}
}
