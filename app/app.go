package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	adapterhttp "manim-service/ddd/adapter/http"
	"manim-service/ddd/domain/gateway"
	"manim-service/ddd/domain/port"
	"manim-service/ddd/domain/vo"
	"manim-service/ddd/infrastructure/discovery"
	"manim-service/ddd/infrastructure/event"
	"manim-service/ddd/infrastructure/metrics"
	"manim-service/ddd/infrastructure/worker"
	"manim-service/internal/resource"
	"manim-service/pkg/config"
	"manim-service/pkg/kafka"
	"manim-service/pkg/logger"
	"manim-service/pkg/manager"
	"manim-service/pkg/observability"
	"manim-service/pkg/registry"
	"manim-service/pkg/task"

	_ "manim-service/ddd/adapter/component"
)

const serviceName = "manim-service"

func Run() {
	fmt.Println("[STARTUP] Starting manim service...")

	// 加载配置
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to load config (%s): %v\n", cfgPath, err)
		os.Exit(1)
	}
	// 设置全局配置（必须在资源管理器初始化之前）
	config.SetGlobalConfig(cfg)

	logService := logger.NewLogger(cfg)
	logger.SetGlobalLogger(logService)
	defer logService.Close()
	logger.Debug("Logger initialized", map[string]interface{}{
		"level":  cfg.Log.Level,
		"format": cfg.Log.Format,
		"output": cfg.Log.Output,
		"config": cfgPath,
	})

	if profiler := observability.StartProfiling(serviceName, cfg.Observability.PyroscopeAddress); profiler != nil {
		defer func() { _ = profiler.Stop() }()
	}

	var (
		metricsHandler  http.Handler
		metricsShutdown func(context.Context) error
		observer        port.PipelineObserver = port.NopObserver{}
	)
	if cfg.Observability.MetricsEnabled {
		metricsHandler, metricsShutdown, err = observability.InitMetrics()
		if err != nil {
			logger.Fatal(fmt.Sprintf("Failed to initialize metrics error=%v", err))
		}
		pipelineMetrics, err := metrics.NewPipelineObserver()
		if err != nil {
			logger.Fatal(fmt.Sprintf("Failed to create pipeline metrics error=%v", err))
		}
		observer = pipelineMetrics
	}

	// 资源管理器初始化
	manager.MustInitResources()
	defer manager.CloseResources()

	var (
		rdb redis.UniversalClient
		db  *gorm.DB
	)
	switch cfg.Store.Backend {
	case "redis":
		rdb = resource.DefaultRedisResource().Client()
	case "mysql":
		db = resource.DefaultMysqlResource().MainDB()
	}
	jobs, err := newJobStore(cfg, rdb, db)
	if err != nil {
		logger.Fatal(fmt.Sprintf("Failed to create job store error=%v", err))
	}

	var events gateway.JobEventPublisher = gateway.NopEventPublisher{}
	if cfg.Kafka.Enabled {
		events = event.NewKafkaJobEventPublisher(kafka.DefaultClient(), cfg.Kafka.Topics.JobEvents)
	}

	mode := resolveRunnerMode(cfg)
	logger.Info("Runner mode selected", map[string]interface{}{
		"mode":       mode.String(),
		"override":   cfg.Runner.Mode,
		"hosted":     cfg.Runner.Hosted,
		"env":        cfg.App.Env,
		"store":      cfg.Store.Backend,
		"worker_url": cfg.Runner.WorkerURL,
	})

	var (
		launcher *worker.PipelineLauncher
		resolver discovery.AddressResolver
	)
	if mode == vo.RunnerModeLocal {
		launcher = localPipeline(cfg, jobs, events, observer)
		task.Register(launcher)
	} else if cfg.Runner.Discovery.Enabled && strings.TrimSpace(cfg.Runner.WorkerURL) == "" {
		sd := registry.NewServiceDiscovery(resource.DefaultEtcdResource().Client())
		sd.WatchService(cfg.Runner.Discovery.ServiceName)
		defer sd.Close()
		resolver = sd
	}
	renderApp := newRenderApp(cfg, mode, jobs, launcher, resolver)

	deps := &manager.Dependencies{
		Config:    cfg,
		RenderApp: renderApp,
	}
	manager.MustInitComponents(deps)
	if err := task.StartAll(context.Background()); err != nil {
		logger.Fatal(fmt.Sprintf("Failed to start background tasks error=%v", err))
	}

	// 创建Gin引擎
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	engine := gin.New()
	router := adapterhttp.NewRouter(deps, metricsHandler)
	router.SetupMiddleware(engine)
	router.SetupRoutes(engine)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(fmt.Sprintf("Failed to start HTTP server error=%v", err))
		}
	}()
	logger.Infof("HTTP server started address=%s mode=%s health_url=http://%s/health", addr, mode, addr)

	// 注册到 etcd，供远程模式的实例发现
	var serviceRegistry *registry.ServiceRegistry
	if cfg.ServiceRegistry.Enabled {
		regCfg := cfg.ServiceRegistry
		regAddr := registryAddress(cfg)
		regCfg.ServiceID = registryServiceID(cfg, regAddr)
		serviceRegistry = registry.NewServiceRegistry(resource.DefaultEtcdResource().Client(), regCfg, regAddr)
		if err := serviceRegistry.Register(); err != nil {
			logger.Warnf("Service registration failed address=%s error=%v", regAddr, err)
			serviceRegistry = nil
		}
	}

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("Received shutdown signal, shutting down server...")

	if serviceRegistry != nil {
		if err := serviceRegistry.Deregister(); err != nil {
			logger.Warnf("Service deregistration failed error=%v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	if err := server.Shutdown(ctx); err != nil {
		logger.Warnf("Server forced to close error=%v", err)
	}
	cancel()

	// 后台任务：先停消费者，再等待流水线（超过宽限期后取消）
	task.StopAll()
	manager.Shutdown()

	if metricsShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		_ = metricsShutdown(ctx)
		cancel()
	}

	logger.Infof("Server exited safely")
}

// resolveConfigPath 根据环境选择配置文件，支持CONFIG_PATH覆盖、CONFIG_ENV区分环境
func resolveConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	env := strings.ToLower(strings.TrimSpace(os.Getenv("CONFIG_ENV")))
	if env == "" {
		env = "dev"
	}

	switch env {
	case "prod", "production":
		return "configs/config.prod.yaml"
	case "dev", "development":
		return "configs/config.dev.yaml"
	default:
		return fmt.Sprintf("configs/config.%s.yaml", env)
	}
}
