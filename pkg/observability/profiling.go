package observability

import (
	"strings"

	"github.com/grafana/pyroscope-go"

	"manim-service/pkg/logger"
)

// StartProfiling pushes continuous profiles to a pyroscope server. An empty
// address disables profiling and returns a nil profiler.
func StartProfiling(appName, serverAddress string) *pyroscope.Profiler {
	serverAddress = strings.TrimSpace(serverAddress)
	if serverAddress == "" {
		return nil
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   serverAddress,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		logger.Warnf("Pyroscope profiling disabled: %v", err)
		return nil
	}
	logger.Infof("Pyroscope profiling started app=%s server=%s", appName, serverAddress)
	return profiler
}
