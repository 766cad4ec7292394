package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config application configuration
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	App             AppConfig             `mapstructure:"app"`
	Log             LogConfig             `mapstructure:"log"`
	Runner          RunnerConfig          `mapstructure:"runner"`
	OpenAI          OpenAIConfig          `mapstructure:"openai"`
	TTS             TTSConfig             `mapstructure:"tts"`
	Pipeline        PipelineConfig        `mapstructure:"pipeline"`
	Store           StoreConfig           `mapstructure:"store"`
	Redis           RedisConfig           `mapstructure:"redis"`
	Database        DatabaseConfig        `mapstructure:"database"`
	Kafka           KafkaConfig           `mapstructure:"kafka"`
	Etcd            EtcdConfig            `mapstructure:"etcd"`
	ServiceRegistry ServiceRegistryConfig `mapstructure:"service_registry"`
	RateLimit       RateLimitConfig       `mapstructure:"rate_limit"`
	Observability   ObservabilityConfig   `mapstructure:"observability"`
}

// ServerConfig HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AppConfig deployment environment
type AppConfig struct {
	Env string `mapstructure:"env"`
}

// IsDevelopment reports whether the process runs in a development environment.
func (a AppConfig) IsDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(a.Env)) {
	case "dev", "development":
		return true
	}
	return false
}

// LogConfig logging configuration
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// RunnerConfig decides where pipelines execute.
type RunnerConfig struct {
	Mode           string          `mapstructure:"mode"`
	WorkerURL      string          `mapstructure:"worker_url"`
	Hosted         bool            `mapstructure:"hosted"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	Discovery      DiscoveryConfig `mapstructure:"discovery"`
}

// DiscoveryConfig resolves the worker address through etcd when no static URL is set.
type DiscoveryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	BasePath    string `mapstructure:"base_path"`
}

// OpenAIConfig language-generation service
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	ChatModel   string        `mapstructure:"chat_model"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// TTSConfig speech-synthesis service. APIKey falls back to openai.api_key.
type TTSConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	Voice  string `mapstructure:"voice"`
}

// PipelineConfig render pipeline knobs
type PipelineConfig struct {
	WorkDir          string        `mapstructure:"work_dir"`
	LogCap           int           `mapstructure:"log_cap"`
	MinSegments      int           `mapstructure:"min_segments"`
	MaxSegments      int           `mapstructure:"max_segments"`
	CommandTimeout   time.Duration `mapstructure:"command_timeout"`
	FallbackDuration float64       `mapstructure:"fallback_duration"`
	ShutdownGrace    time.Duration `mapstructure:"shutdown_grace"`
	Manim            ManimConfig   `mapstructure:"manim"`
	FFmpeg           FFmpegConfig  `mapstructure:"ffmpeg"`
}

// ManimConfig rendering engine
type ManimConfig struct {
	BinaryPath string `mapstructure:"binary_path"`
	Quality    string `mapstructure:"quality"`
}

// FFmpegConfig muxing / probing tools
type FFmpegConfig struct {
	BinaryPath      string `mapstructure:"binary_path"`
	ProbeBinaryPath string `mapstructure:"probe_binary_path"`
	VideoCodec      string `mapstructure:"video_codec"`
	AudioCodec      string `mapstructure:"audio_codec"`
}

// StoreConfig job store backend selection: memory | redis | mysql
type StoreConfig struct {
	Backend   string        `mapstructure:"backend"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	JobTTL    time.Duration `mapstructure:"job_ttl"`
}

// RedisConfig Redis configuration
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnableTLS    bool          `mapstructure:"enable_tls"`
}

// DatabaseConfig MySQL configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	Charset         string        `mapstructure:"charset"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// KafkaConfig Kafka configuration
type KafkaConfig struct {
	BootstrapServers []string          `mapstructure:"bootstrap_servers"`
	ClientID         string            `mapstructure:"client_id"`
	GroupID          string            `mapstructure:"group_id"`
	Enabled          bool              `mapstructure:"enabled"`
	ConsumeRequests  bool              `mapstructure:"consume_requests"`
	Topics           KafkaTopicsConfig `mapstructure:"topics"`
}

type KafkaTopicsConfig struct {
	JobEvents   string `mapstructure:"job_events"`
	JobRequests string `mapstructure:"job_requests"`
}

// EtcdConfig etcd client configuration
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
}

// ServiceRegistryConfig registration configuration.
type ServiceRegistryConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	ServiceName  string        `mapstructure:"service_name"`
	ServiceID    string        `mapstructure:"service_id"`
	RegisterHost string        `mapstructure:"register_host"`
	TTL          time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig per-client submission limits
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// ObservabilityConfig metrics and profiling
type ObservabilityConfig struct {
	MetricsEnabled   bool   `mapstructure:"metrics_enabled"`
	PyroscopeAddress string `mapstructure:"pyroscope_address"`
}

var (
	globalMu  sync.RWMutex
	globalCfg *Config
)

// SetGlobalConfig stores the process-wide configuration.
func SetGlobalConfig(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCfg = cfg
}

// GetGlobalConfig returns the process-wide configuration, nil before Load.
func GetGlobalConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalCfg
}

// Load reads the YAML file at configPath (optional) and environment overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("MANIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// names used by existing deployments
	_ = v.BindEnv("runner.mode", "MANIM_RUNNER_MODE", "MANIM_RUNNER")
	_ = v.BindEnv("runner.worker_url", "MANIM_RUNNER_WORKER_URL", "MANIM_WORKER_URL")
	_ = v.BindEnv("runner.hosted", "MANIM_RUNNER_HOSTED", "VERCEL")
	_ = v.BindEnv("openai.api_key", "MANIM_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("app.env", "MANIM_APP_ENV", "NODE_ENV")

	if strings.TrimSpace(configPath) != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8083)
	v.SetDefault("server.mode", "release")
	v.SetDefault("app.env", "production")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("runner.mode", "")
	v.SetDefault("runner.worker_url", "")
	v.SetDefault("runner.hosted", false)
	v.SetDefault("runner.discovery.enabled", false)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("tts.api_key", "")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.consume_requests", false)
	v.SetDefault("service_registry.enabled", false)
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.pyroscope_address", "")
}

// normalize fills defaults that depend on other fields.
func (c *Config) normalize() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8083
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}

	c.Runner.Mode = strings.ToLower(strings.TrimSpace(c.Runner.Mode))
	c.Runner.WorkerURL = strings.TrimRight(strings.TrimSpace(c.Runner.WorkerURL), "/")
	if c.Runner.RequestTimeout <= 0 {
		c.Runner.RequestTimeout = 30 * time.Second
	}
	if c.Runner.Discovery.ServiceName == "" {
		c.Runner.Discovery.ServiceName = "manim-worker"
	}
	if c.Runner.Discovery.BasePath == "" {
		c.Runner.Discovery.BasePath = "/api/manim"
	}

	c.OpenAI.APIKey = strings.TrimSpace(c.OpenAI.APIKey)
	if c.OpenAI.ChatModel == "" {
		c.OpenAI.ChatModel = "gpt-4o"
	}
	// 0 is a valid temperature; only out-of-range values fall back
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		c.OpenAI.Temperature = 0.2
	}
	if c.OpenAI.Timeout <= 0 {
		c.OpenAI.Timeout = 2 * time.Minute
	}
	c.TTS.APIKey = strings.TrimSpace(c.TTS.APIKey)
	if c.TTS.APIKey == "" {
		c.TTS.APIKey = c.OpenAI.APIKey
	}
	if c.TTS.Model == "" {
		c.TTS.Model = "tts-1"
	}
	if c.TTS.Voice == "" {
		c.TTS.Voice = "echo"
	}

	if c.Pipeline.WorkDir == "" {
		c.Pipeline.WorkDir = ".manim_jobs"
	}
	if c.Pipeline.LogCap <= 0 {
		c.Pipeline.LogCap = 400
	}
	if c.Pipeline.MinSegments <= 0 {
		c.Pipeline.MinSegments = 3
	}
	if c.Pipeline.MaxSegments < c.Pipeline.MinSegments {
		c.Pipeline.MaxSegments = 6
		if c.Pipeline.MaxSegments < c.Pipeline.MinSegments {
			c.Pipeline.MaxSegments = c.Pipeline.MinSegments
		}
	}
	if c.Pipeline.CommandTimeout <= 0 {
		c.Pipeline.CommandTimeout = 10 * time.Minute
	}
	if c.Pipeline.FallbackDuration <= 0 {
		c.Pipeline.FallbackDuration = 12
	}
	if c.Pipeline.ShutdownGrace <= 0 {
		c.Pipeline.ShutdownGrace = 30 * time.Second
	}
	if c.Pipeline.Manim.BinaryPath == "" {
		c.Pipeline.Manim.BinaryPath = "manim"
	}
	switch c.Pipeline.Manim.Quality {
	case "l", "m", "h", "p", "k":
	default:
		c.Pipeline.Manim.Quality = "l"
	}
	if c.Pipeline.FFmpeg.BinaryPath == "" {
		c.Pipeline.FFmpeg.BinaryPath = "ffmpeg"
	}
	if c.Pipeline.FFmpeg.ProbeBinaryPath == "" {
		c.Pipeline.FFmpeg.ProbeBinaryPath = "ffprobe"
	}
	if c.Pipeline.FFmpeg.VideoCodec == "" {
		c.Pipeline.FFmpeg.VideoCodec = "libx264"
	}
	if c.Pipeline.FFmpeg.AudioCodec == "" {
		c.Pipeline.FFmpeg.AudioCodec = "aac"
	}

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Store.KeyPrefix == "" {
		c.Store.KeyPrefix = "manim"
	}

	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}

	if len(c.Kafka.BootstrapServers) == 0 {
		c.Kafka.BootstrapServers = []string{"localhost:29092"}
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "manim-service"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "manim-service-group"
	}
	if c.Kafka.Topics.JobEvents == "" {
		c.Kafka.Topics.JobEvents = "manim.job.events"
	}
	if c.Kafka.Topics.JobRequests == "" {
		c.Kafka.Topics.JobRequests = "manim.job.requests"
	}

	if len(c.Etcd.Endpoints) == 0 {
		c.Etcd.Endpoints = []string{"localhost:2379"}
	}
	if c.Etcd.DialTimeout <= 0 {
		c.Etcd.DialTimeout = 5 * time.Second
	}
	if c.ServiceRegistry.ServiceName == "" {
		c.ServiceRegistry.ServiceName = c.Runner.Discovery.ServiceName
	}
	if c.ServiceRegistry.TTL <= 0 {
		c.ServiceRegistry.TTL = 30 * time.Second
	}

	if c.RateLimit.RPS <= 0 {
		c.RateLimit.RPS = 1
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 3
	}
}

// GetDSN returns the MySQL connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// GetRedisAddr returns host:port.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
