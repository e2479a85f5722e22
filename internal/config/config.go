// Package config loads process configuration from .env, YAML and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"stock-backfill/internal/backfill"
	"stock-backfill/internal/gaps"
	"stock-backfill/internal/orchestrator"
	"stock-backfill/internal/queue"
	"stock-backfill/internal/worker"
)

// EnvPrefix prefixes every environment override, e.g. BACKFILL_STORAGE_POSTGRES_DSN.
// Leaf names come from the field names (split_words), so a bare MAX_RETRIES
// or ADDR is never consulted.
const EnvPrefix = "BACKFILL"

// Storage drivers.
const (
	DriverMemory     = "memory"
	DriverPostgres   = "postgres"
	DriverClickHouse = "clickhouse"
	DriverSQLite     = "sqlite"
)

// Config is the complete configuration shared by all commands.
type Config struct {
	Log          LogConfig          `yaml:"log" envconfig:"LOG"`
	Storage      StorageConfig      `yaml:"storage" envconfig:"STORAGE"`
	Alpaca       AlpacaConfig       `yaml:"alpaca" envconfig:"ALPACA"`
	Gaps         GapsConfig         `yaml:"gaps" envconfig:"GAPS"`
	Backfill     BackfillConfig     `yaml:"backfill" envconfig:"EXECUTOR"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" envconfig:"ORCHESTRATOR"`
	Worker       WorkerConfig       `yaml:"worker" envconfig:"WORKER"`
}

// LogConfig configures pkg/logger.
type LogConfig struct {
	Level  string `yaml:"level" split_words:"true"`
	Pretty bool   `yaml:"pretty" split_words:"true"`
}

// StorageConfig selects and configures the bar/symbol/blacklist backend.
type StorageConfig struct {
	Driver        string `yaml:"driver" split_words:"true"`
	PostgresDSN   string `yaml:"postgres_dsn" split_words:"true"`
	ClickhouseDSN string `yaml:"clickhouse_dsn" split_words:"true"`
	SqlitePath    string `yaml:"sqlite_path" split_words:"true"`
}

// AlpacaConfig holds market-data and trading API settings.
type AlpacaConfig struct {
	APIKey     string  `yaml:"api_key" split_words:"true"`
	APISecret  string  `yaml:"api_secret" split_words:"true"`
	DataURL    string  `yaml:"data_url" split_words:"true"`
	TradingURL string  `yaml:"trading_url" split_words:"true"`
	Feed       string  `yaml:"feed" split_words:"true"`
	RateLimit  float64 `yaml:"rate_limit" split_words:"true"`
	Burst      int     `yaml:"burst" split_words:"true"`
}

// GapsConfig holds the per-band completeness rules.
type GapsConfig struct {
	CoarseWindow    time.Duration `yaml:"coarse_window" split_words:"true"`
	CoarseThreshold time.Duration `yaml:"coarse_threshold" split_words:"true"`
	CoarseRecency   time.Duration `yaml:"coarse_recency" split_words:"true"`
	FineWindow      time.Duration `yaml:"fine_window" split_words:"true"`
	FineThreshold   time.Duration `yaml:"fine_threshold" split_words:"true"`
	FineRecency     time.Duration `yaml:"fine_recency" split_words:"true"`
	BlacklistTTL    time.Duration `yaml:"blacklist_ttl" split_words:"true"`
}

// BackfillConfig holds executor retry and pacing settings.
type BackfillConfig struct {
	MaxRetries int           `yaml:"max_retries" split_words:"true"`
	RetryDelay time.Duration `yaml:"retry_delay" split_words:"true"`
	Cooldown   time.Duration `yaml:"cooldown" split_words:"true"`
	FineChunk  time.Duration `yaml:"fine_chunk" split_words:"true"`

	// DelayStrategy is "fixed" or "exponential". Exponential starts at
	// RetryDelay and doubles up to MaxRetryDelay.
	DelayStrategy string        `yaml:"delay_strategy" split_words:"true"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" split_words:"true"`
}

// OrchestratorConfig configures the queue service.
type OrchestratorConfig struct {
	Addr            string        `yaml:"addr" split_words:"true"`
	BatchSize       int           `yaml:"batch_size" split_words:"true"`
	RefreshInterval time.Duration `yaml:"refresh_interval" split_words:"true"`
	RefreshCron     string        `yaml:"refresh_cron" split_words:"true"`
	ReseedTimeout   time.Duration `yaml:"reseed_timeout" split_words:"true"`
	StreamInterval  time.Duration `yaml:"stream_interval" split_words:"true"`
	UniverseFile    string        `yaml:"universe_file" split_words:"true"`
}

// WorkerConfig configures the polling worker.
type WorkerConfig struct {
	ID              string        `yaml:"id" split_words:"true"`
	Addr            string        `yaml:"addr" split_words:"true"`
	OrchestratorURL string        `yaml:"orchestrator_url" split_words:"true"`
	PollInterval    time.Duration `yaml:"poll_interval" split_words:"true"`
	FailureMargin   int           `yaml:"failure_margin" split_words:"true"`
	CooldownWindow  time.Duration `yaml:"cooldown_window" split_words:"true"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:     LogConfig{Level: "info"},
		Storage: StorageConfig{Driver: DriverMemory, SqlitePath: "data/backfill.db"},
		Alpaca: AlpacaConfig{
			Feed:      "iex",
			RateLimit: 3,
			Burst:     1,
		},
		Gaps: GapsConfig{
			CoarseWindow:    gaps.DefaultCoarseWindow,
			CoarseThreshold: gaps.DefaultCoarseThreshold,
			CoarseRecency:   gaps.DefaultCoarseRecency,
			FineWindow:      gaps.DefaultFineWindow,
			FineThreshold:   gaps.DefaultFineThreshold,
			FineRecency:     gaps.DefaultFineRecency,
			BlacklistTTL:    gaps.DefaultBlacklistTTL,
		},
		Backfill: BackfillConfig{
			MaxRetries: backfill.DefaultMaxRetries,
			RetryDelay: backfill.DefaultRetryDelay,
			Cooldown:   backfill.DefaultCooldown,
			FineChunk:  backfill.DefaultFineChunk,

			DelayStrategy: backfill.DelayFixed,
			MaxRetryDelay: backfill.DefaultMaxRetryDelay,
		},
		Orchestrator: OrchestratorConfig{
			Addr:            ":8000",
			BatchSize:       queue.DefaultBatchSize,
			RefreshInterval: queue.DefaultRefreshInterval,
			RefreshCron:     orchestrator.DefaultReseedSchedule,
			ReseedTimeout:   orchestrator.DefaultReseedTimeout,
			StreamInterval:  5 * time.Second,
		},
		Worker: WorkerConfig{
			Addr:            ":8001",
			OrchestratorURL: "http://localhost:8000",
			PollInterval:    worker.DefaultPollInterval,
			FailureMargin:   backfill.DefaultFailureMargin,
			CooldownWindow:  backfill.DefaultCooldownWindow,
		},
	}
}

// Load builds the configuration. Later sources win:
// defaults, .env, the YAML file at path (optional), BACKFILL_* variables,
// then the conventional unprefixed variables.
func Load(path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}
	applyConventionalEnv(cfg)

	if cfg.Worker.ID == "" {
		cfg.Worker.ID = "worker-" + uuid.NewString()[:8]
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyConventionalEnv honors the unprefixed names used by the Alpaca SDK
// and by container deployments.
func applyConventionalEnv(cfg *Config) {
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ORCHESTRATOR_URL"); v != "" {
		cfg.Worker.OrchestratorURL = v
	}
	if v := os.Getenv("WORKER_ID"); v != "" {
		cfg.Worker.ID = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" && cfg.Storage.PostgresDSN == "" {
		cfg.Storage.PostgresDSN = v
	}
}

// Validate rejects unusable values.
func (c *Config) Validate() error {
	var errs []error

	if err := c.GapsPolicy().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Backfill.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("backfill.max_retries must be positive"))
	}
	if c.Backfill.RetryDelay <= 0 || c.Backfill.Cooldown <= 0 || c.Backfill.FineChunk <= 0 || c.Backfill.MaxRetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("backfill durations must be positive"))
	}
	switch c.Backfill.DelayStrategy {
	case backfill.DelayFixed, backfill.DelayExponential:
	default:
		errs = append(errs, fmt.Errorf("backfill.delay_strategy %q: want %s or %s",
			c.Backfill.DelayStrategy, backfill.DelayFixed, backfill.DelayExponential))
	}
	if c.Orchestrator.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("orchestrator.batch_size must be positive"))
	}
	if c.Orchestrator.RefreshInterval <= 0 || c.Orchestrator.ReseedTimeout <= 0 || c.Orchestrator.StreamInterval <= 0 {
		errs = append(errs, fmt.Errorf("orchestrator durations must be positive"))
	}
	if c.Worker.PollInterval <= 0 || c.Worker.CooldownWindow <= 0 {
		errs = append(errs, fmt.Errorf("worker durations must be positive"))
	}
	if c.Worker.FailureMargin < 0 {
		errs = append(errs, fmt.Errorf("worker.failure_margin must not be negative"))
	}
	if c.Alpaca.RateLimit <= 0 || c.Alpaca.Burst <= 0 {
		errs = append(errs, fmt.Errorf("alpaca.rate_limit and alpaca.burst must be positive"))
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, fmt.Errorf("storage.postgres_dsn is required for driver postgres"))
		}
	case DriverClickHouse:
		if c.Storage.ClickhouseDSN == "" || c.Storage.PostgresDSN == "" {
			errs = append(errs, fmt.Errorf("storage.clickhouse_dsn and storage.postgres_dsn are required for driver clickhouse"))
		}
	case DriverSQLite:
		if c.Storage.SqlitePath == "" {
			errs = append(errs, fmt.Errorf("storage.sqlite_path is required for driver sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	return errors.Join(errs...)
}

// GapsPolicy converts the gaps section to detector configuration.
func (c *Config) GapsPolicy() gaps.Config {
	g := gaps.DefaultConfig()
	g.Coarse.Window = c.Gaps.CoarseWindow
	g.Coarse.GapThreshold = c.Gaps.CoarseThreshold
	g.Coarse.RecencyThreshold = c.Gaps.CoarseRecency
	g.Fine.Window = c.Gaps.FineWindow
	g.Fine.GapThreshold = c.Gaps.FineThreshold
	g.Fine.RecencyThreshold = c.Gaps.FineRecency
	g.BlacklistTTL = c.Gaps.BlacklistTTL
	return g
}

// Delays returns the executor delay strategy selected by backfill.delay_strategy.
func (c *Config) Delays() backfill.DelayStrategy {
	if c.Backfill.DelayStrategy == backfill.DelayExponential {
		return backfill.ExponentialBackoff{
			Initial:      c.Backfill.RetryDelay,
			Max:          c.Backfill.MaxRetryDelay,
			Multiplier:   2,
			AfterFailure: c.Backfill.Cooldown,
		}
	}
	return backfill.FixedDelay{Retry: c.Backfill.RetryDelay, AfterFailure: c.Backfill.Cooldown}
}
