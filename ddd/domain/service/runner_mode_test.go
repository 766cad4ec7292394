package service

import (
	"testing"

	"manim-service/ddd/domain/vo"
)

func TestSelectRunnerMode(t *testing.T) {
	tests := []struct {
		name string
		env  RunnerEnvironment
		want vo.RunnerMode
	}{
		{"hosted beats local override", RunnerEnvironment{Hosted: true, Override: "local"}, vo.RunnerModeRemote},
		{"hosted without worker", RunnerEnvironment{Hosted: true}, vo.RunnerModeRemote},
		{"override remote in development", RunnerEnvironment{Override: "remote", Development: true}, vo.RunnerModeRemote},
		{"override is case insensitive", RunnerEnvironment{Override: " LOCAL ", WorkerConfigured: true}, vo.RunnerModeLocal},
		{"invalid override ignored", RunnerEnvironment{Override: "cloud", WorkerConfigured: true}, vo.RunnerModeRemote},
		{"development runs locally", RunnerEnvironment{Development: true, WorkerConfigured: true}, vo.RunnerModeLocal},
		{"worker configured", RunnerEnvironment{WorkerConfigured: true}, vo.RunnerModeRemote},
		{"nothing configured", RunnerEnvironment{}, vo.RunnerModeLocal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectRunnerMode(tt.env); got != tt.want {
				t.Errorf("SelectRunnerMode(%+v) = %s, want %s", tt.env, got, tt.want)
			}
		})
	}
}
