package service

import "manim-service/ddd/domain/vo"

// RunnerEnvironment is everything the runner mode depends on.
type RunnerEnvironment struct {
	// Override is the explicitly configured mode, possibly empty or invalid.
	Override string
	// Hosted is set on platforms that cannot run the toolchain.
	Hosted           bool
	Development      bool
	WorkerConfigured bool
}

// SelectRunnerMode decides where render jobs execute. A hosted deployment
// is always remote, then a valid override applies, then development
// environments run locally, then a configured worker means remote.
func SelectRunnerMode(env RunnerEnvironment) vo.RunnerMode {
	if env.Hosted {
		return vo.RunnerModeRemote
	}
	if mode, ok := vo.ParseRunnerMode(env.Override); ok {
		return mode
	}
	if env.Development {
		return vo.RunnerModeLocal
	}
	if env.WorkerConfigured {
		return vo.RunnerModeRemote
	}
	return vo.RunnerModeLocal
}
