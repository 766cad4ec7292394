package vo

import "strings"

// RunnerMode 任务执行位置
type RunnerMode string

const (
	RunnerModeLocal  RunnerMode = "local"
	RunnerModeRemote RunnerMode = "remote"
)

// ParseRunnerMode accepts "local" or "remote" case-insensitively.
func ParseRunnerMode(s string) (RunnerMode, bool) {
	switch RunnerMode(strings.ToLower(strings.TrimSpace(s))) {
	case RunnerModeLocal:
		return RunnerModeLocal, true
	case RunnerModeRemote:
		return RunnerModeRemote, true
	}
	return "", false
}

func (m RunnerMode) String() string {
	return string(m)
}
