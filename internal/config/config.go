// Copyright 2025 James Ross
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store configures the persistence layer.
type Store struct {
	Path string `mapstructure:"path"`
}

// Worker configures the queue/worker state machine.
type Worker struct {
	Count           int           `mapstructure:"count"`
	DefaultAttempts int           `mapstructure:"default_attempts"`
	IdlePollMin     time.Duration `mapstructure:"idle_poll_min"`
	IdlePollMax     time.Duration `mapstructure:"idle_poll_max"`
	StuckThreshold  time.Duration `mapstructure:"stuck_threshold"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
}

// CircuitBreaker configures the per-backend breaker that gates adapter
// invocation when a backend is failing at a high rate.
type CircuitBreaker struct {
	FailureThreshold float64       `mapstructure:"failure_threshold"`
	Window           time.Duration `mapstructure:"window"`
	CooldownPeriod   time.Duration `mapstructure:"cooldown_period"`
	MinSamples       int           `mapstructure:"min_samples"`
}

// Adapters configures the backend-adapter registry.
type Adapters struct {
	Workdir      string `mapstructure:"workdir"`
	BridgeDistro string `mapstructure:"bridge_distro"`
}

// HTTP configures the HTTP edge.
type HTTP struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	APIKey string `mapstructure:"api_key"`

	RateLimitEnabled bool          `mapstructure:"rate_limit_enabled"`
	RateLimitMax     int           `mapstructure:"rate_limit_max"`
	RateLimitWindow  time.Duration `mapstructure:"rate_limit_window"`

	AuditEnabled    bool   `mapstructure:"audit_enabled"`
	AuditLogPath    string `mapstructure:"audit_log_path"`
	AuditMaxSizeMB  int    `mapstructure:"audit_max_size_mb"`
	AuditMaxBackups int    `mapstructure:"audit_max_backups"`
}

// Observability configures logging and metrics.
type Observability struct {
	MetricsPort int    `mapstructure:"metrics_port"`
	LogLevel    string `mapstructure:"log_level"`
}

// Engine configures the cognitive experiment engine and memory.
type Engine struct {
	MemoryPath string `mapstructure:"memory_path"`
	PurgeCron  string `mapstructure:"purge_cron"`
	KeepLatest int    `mapstructure:"keep_latest"`
}

type Config struct {
	Store          Store          `mapstructure:"store"`
	Worker         Worker         `mapstructure:"worker"`
	CircuitBreaker CircuitBreaker `mapstructure:"circuit_breaker"`
	Adapters       Adapters       `mapstructure:"adapters"`
	HTTP           HTTP           `mapstructure:"http"`
	Observability  Observability  `mapstructure:"observability"`
	Engine         Engine         `mapstructure:"engine"`
}

func defaultConfig() *Config {
	return &Config{
		Store: Store{Path: "./data/service.db"},
		Worker: Worker{
			Count:           4,
			DefaultAttempts: 3,
			IdlePollMin:     100 * time.Millisecond,
			IdlePollMax:     2 * time.Second,
			StuckThreshold:  10 * time.Minute,
			SweepInterval:   30 * time.Second,
		},
		CircuitBreaker: CircuitBreaker{
			FailureThreshold: 0.5,
			Window:           1 * time.Minute,
			CooldownPeriod:   30 * time.Second,
			MinSamples:       5,
		},
		Adapters: Adapters{
			Workdir:      "./data/jobs",
			BridgeDistro: "Ubuntu",
		},
		HTTP: HTTP{
			ListenAddr:      ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,

			APIKey: "",

			RateLimitEnabled: true,
			RateLimitMax:     100,
			RateLimitWindow:  time.Minute,

			AuditEnabled:    true,
			AuditLogPath:    "./data/audit.log",
			AuditMaxSizeMB:  100,
			AuditMaxBackups: 10,
		},
		Observability: Observability{
			MetricsPort: 9090,
			LogLevel:    "info",
		},
		Engine: Engine{
			MemoryPath: "./data/memory.jsonl",
			PurgeCron:  "0 */6 * * *",
			KeepLatest: 500,
		},
	}
}

// Load reads configuration from a YAML file with environment overrides
// (SECTION_FIELD, e.g. HTTP_API_KEY overrides http.api_key).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	v.SetDefault("store.path", def.Store.Path)

	v.SetDefault("worker.count", def.Worker.Count)
	v.SetDefault("worker.default_attempts", def.Worker.DefaultAttempts)
	v.SetDefault("worker.idle_poll_min", def.Worker.IdlePollMin)
	v.SetDefault("worker.idle_poll_max", def.Worker.IdlePollMax)
	v.SetDefault("worker.stuck_threshold", def.Worker.StuckThreshold)
	v.SetDefault("worker.sweep_interval", def.Worker.SweepInterval)

	v.SetDefault("circuit_breaker.failure_threshold", def.CircuitBreaker.FailureThreshold)
	v.SetDefault("circuit_breaker.window", def.CircuitBreaker.Window)
	v.SetDefault("circuit_breaker.cooldown_period", def.CircuitBreaker.CooldownPeriod)
	v.SetDefault("circuit_breaker.min_samples", def.CircuitBreaker.MinSamples)

	v.SetDefault("adapters.workdir", def.Adapters.Workdir)
	v.SetDefault("adapters.bridge_distro", def.Adapters.BridgeDistro)

	v.SetDefault("http.listen_addr", def.HTTP.ListenAddr)
	v.SetDefault("http.read_timeout", def.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", def.HTTP.WriteTimeout)
	v.SetDefault("http.shutdown_timeout", def.HTTP.ShutdownTimeout)
	v.SetDefault("http.api_key", def.HTTP.APIKey)
	v.SetDefault("http.rate_limit_enabled", def.HTTP.RateLimitEnabled)
	v.SetDefault("http.rate_limit_max", def.HTTP.RateLimitMax)
	v.SetDefault("http.rate_limit_window", def.HTTP.RateLimitWindow)
	v.SetDefault("http.audit_enabled", def.HTTP.AuditEnabled)
	v.SetDefault("http.audit_log_path", def.HTTP.AuditLogPath)
	v.SetDefault("http.audit_max_size_mb", def.HTTP.AuditMaxSizeMB)
	v.SetDefault("http.audit_max_backups", def.HTTP.AuditMaxBackups)

	v.SetDefault("observability.metrics_port", def.Observability.MetricsPort)
	v.SetDefault("observability.log_level", def.Observability.LogLevel)

	v.SetDefault("engine.memory_path", def.Engine.MemoryPath)
	v.SetDefault("engine.purge_cron", def.Engine.PurgeCron)
	v.SetDefault("engine.keep_latest", def.Engine.KeepLatest)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks config constraints and returns an error on invalid settings.
func Validate(cfg *Config) error {
	if cfg.Worker.Count < 1 {
		return fmt.Errorf("worker.count must be >= 1")
	}
	if cfg.Worker.DefaultAttempts < 1 {
		return fmt.Errorf("worker.default_attempts must be >= 1")
	}
	if cfg.Worker.IdlePollMin <= 0 || cfg.Worker.IdlePollMax < cfg.Worker.IdlePollMin {
		return fmt.Errorf("worker.idle_poll_min must be >0 and <= idle_poll_max")
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("store.path must be set")
	}
	if cfg.Observability.MetricsPort <= 0 || cfg.Observability.MetricsPort > 65535 {
		return fmt.Errorf("observability.metrics_port must be 1..65535")
	}
	if cfg.HTTP.RateLimitEnabled && cfg.HTTP.RateLimitMax < 1 {
		return fmt.Errorf("http.rate_limit_max must be >= 1 when rate limiting is enabled")
	}
	return nil
}
