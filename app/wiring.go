package app

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	renderapp "manim-service/ddd/application/app"
	"manim-service/ddd/domain/gateway"
	"manim-service/ddd/domain/port"
	"manim-service/ddd/domain/repo"
	"manim-service/ddd/domain/service"
	"manim-service/ddd/domain/vo"
	"manim-service/ddd/infrastructure/database/persistence"
	"manim-service/ddd/infrastructure/discovery"
	"manim-service/ddd/infrastructure/executor"
	"manim-service/ddd/infrastructure/llm"
	"manim-service/ddd/infrastructure/remote"
	"manim-service/ddd/infrastructure/store"
	"manim-service/ddd/infrastructure/worker"
	"manim-service/pkg/config"
	"manim-service/pkg/logger"
)

// resolveRunnerMode decides once at startup where jobs execute.
func resolveRunnerMode(cfg *config.Config) vo.RunnerMode {
	return service.SelectRunnerMode(service.RunnerEnvironment{
		Override:         cfg.Runner.Mode,
		Hosted:           cfg.Runner.Hosted,
		Development:      cfg.App.IsDevelopment(),
		WorkerConfigured: discovery.Configured(cfg.Runner),
	})
}

// newJobStore picks the backend named by store.backend. rdb and db are only
// consulted for their backend.
func newJobStore(cfg *config.Config, rdb redis.UniversalClient, db *gorm.DB) (repo.JobStore, error) {
	switch cfg.Store.Backend {
	case "", "memory":
		return store.NewMemoryJobStore(cfg.Pipeline.LogCap), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("store.backend=redis but redis is not available")
		}
		return store.NewRedisJobStore(rdb, cfg.Store.KeyPrefix, cfg.Pipeline.LogCap, cfg.Store.JobTTL), nil
	case "mysql":
		if db == nil {
			return nil, fmt.Errorf("store.backend=mysql but mysql is not available")
		}
		s := persistence.NewMysqlJobStore(db, cfg.Pipeline.LogCap)
		if cfg.Database.AutoMigrate {
			if err := s.Migrate(); err != nil {
				return nil, fmt.Errorf("migrate render jobs: %w", err)
			}
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store.backend %q", cfg.Store.Backend)
	}
}

// credentialsPresent reports whether both generation services have a key.
func credentialsPresent(cfg *config.Config) bool {
	return strings.TrimSpace(cfg.OpenAI.APIKey) != "" && strings.TrimSpace(cfg.TTS.APIKey) != ""
}

// localPipeline builds the in-process orchestrator and its launcher.
func localPipeline(cfg *config.Config, jobs repo.JobStore, events gateway.JobEventPublisher, observer port.PipelineObserver) *worker.PipelineLauncher {
	for _, bin := range []string{cfg.Pipeline.Manim.BinaryPath, cfg.Pipeline.FFmpeg.BinaryPath, cfg.Pipeline.FFmpeg.ProbeBinaryPath} {
		if _, err := exec.LookPath(bin); err != nil {
			logger.Warnf("Binary not found, local jobs will fail binary=%s error=%s", bin, err.Error())
		}
	}

	runner := executor.NewCommandRunner(cfg.Pipeline.CommandTimeout)
	openaiClient := llm.NewOpenAIClient(cfg)
	pipeline := service.NewPipelineService(service.PipelineDeps{
		Store:    jobs,
		LLM:      openaiClient,
		Speech:   openaiClient,
		Media:    executor.NewFFmpegExecutor(cfg, runner),
		Renderer: executor.NewManimRenderer(cfg, runner),
		Events:   events,
		Observer: observer,
	}, service.PipelineOptions{
		WorkDir:          cfg.Pipeline.WorkDir,
		MinSegments:      cfg.Pipeline.MinSegments,
		MaxSegments:      cfg.Pipeline.MaxSegments,
		FallbackDuration: cfg.Pipeline.FallbackDuration,
	})
	return worker.NewPipelineLauncher(pipeline, cfg.Pipeline.ShutdownGrace)
}

// newRenderApp wires the use cases for the selected mode. launcher is used in
// local mode, resolver only in remote mode with discovery enabled.
func newRenderApp(cfg *config.Config, mode vo.RunnerMode, jobs repo.JobStore, launcher *worker.PipelineLauncher, resolver discovery.AddressResolver) renderapp.RenderApp {
	var (
		l renderapp.Launcher
		w gateway.WorkerGateway
	)
	if mode == vo.RunnerModeRemote {
		w = remote.NewWorkerClient(discovery.NewWorkerLocator(cfg.Runner, resolver), cfg.Runner.RequestTimeout)
	} else if launcher != nil {
		l = launcher
	}
	return renderapp.NewRenderApp(jobs, l, w, renderapp.RenderAppOptions{
		Mode:               mode,
		CredentialsPresent: credentialsPresent(cfg),
	})
}

// registryAddress is the host:port other instances use to reach this one.
func registryAddress(cfg *config.Config) string {
	host := strings.TrimSpace(cfg.ServiceRegistry.RegisterHost)
	if host == "" {
		host = cfg.Server.Host
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		if h, err := os.Hostname(); err == nil {
			host = h
		}
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
}

// registryServiceID defaults to the registered address so restarts reuse the key.
func registryServiceID(cfg *config.Config, addr string) string {
	if id := strings.TrimSpace(cfg.ServiceRegistry.ServiceID); id != "" {
		return id
	}
	return strings.NewReplacer(":", "-", "[", "", "]", "").Replace(addr)
}
