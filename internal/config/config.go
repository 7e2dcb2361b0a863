// Package config loads service and solver settings with priority
// env > file > defaults.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pdproute/internal/model"
	"pdproute/internal/opt"
)

// Config is the full configuration of the service and the CLI.
type Config struct {
	Server        ServerConfig        `json:"server" yaml:"server"`
	Solver        SolverConfig        `json:"solver" yaml:"solver"`
	Storage       StorageConfig       `json:"storage" yaml:"storage"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

type ServerConfig struct {
	Port              int           `json:"port" yaml:"port"`
	RateRPS           float64       `json:"rate_rps" yaml:"rate_rps"`
	RateBurst         int           `json:"rate_burst" yaml:"rate_burst"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`

	// WebhookMaxAttempts bounds delivery attempts of run callbacks.
	WebhookMaxAttempts int `json:"webhook_max_attempts" yaml:"webhook_max_attempts"`
}

// SolverConfig holds the solver defaults. Tenants may override any field
// through the admin API using the same keys.
type SolverConfig struct {
	Strategy       string        `json:"strategy" yaml:"strategy"`
	InitPolicy     string        `json:"init_policy" yaml:"init_policy"`
	CapacityPolicy string        `json:"capacity_policy" yaml:"capacity_policy"`
	InitVehicle    int           `json:"init_vehicle" yaml:"init_vehicle"`
	MaxIterations  int           `json:"max_iterations" yaml:"max_iterations"`
	TimeBudget     time.Duration `json:"time_budget" yaml:"time_budget"`
	InitialTemp    float64       `json:"initial_temp" yaml:"initial_temp"`
	Seed           int64         `json:"seed" yaml:"seed"`
	Workers        int           `json:"workers" yaml:"workers"`
	MaxTasks       int           `json:"max_tasks" yaml:"max_tasks"`
}

type StorageConfig struct {
	DatabaseURL    string        `json:"database_url" yaml:"database_url"`
	Migrate        bool          `json:"migrate" yaml:"migrate"`
	RedisURL       string        `json:"redis_url" yaml:"redis_url"`
	MatrixCacheTTL time.Duration `json:"matrix_cache_ttl" yaml:"matrix_cache_ttl"`
}

type ObservabilityConfig struct {
	LogLevel    string `json:"log_level" yaml:"log_level"`
	LogFormat   string `json:"log_format" yaml:"log_format"`
	Tracing     string `json:"tracing" yaml:"tracing"`
	ServiceName string `json:"service_name" yaml:"service_name"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:               8080,
			RateRPS:            10,
			RateBurst:          20,
			ReadHeaderTimeout:  5 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			WebhookMaxAttempts: 5,
		},
		Solver: SolverConfig{
			Strategy:       opt.StrategySteepest,
			InitPolicy:     string(opt.InitSingle),
			CapacityPolicy: string(opt.CapacityFallback),
			InitVehicle:    -1,
			MaxIterations:  10000,
			TimeBudget:     2 * time.Second,
			Workers:        1,
			MaxTasks:       500,
		},
		Storage: StorageConfig{
			Migrate:        true,
			MatrixCacheTTL: 24 * time.Hour,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			Tracing:     "none",
			ServiceName: "pdproute",
		},
	}
}

// Load reads path (YAML or JSON, optional) over the defaults, applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	loadEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = i
		}
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.RateRPS = f
		}
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateBurst = i
		}
	}
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			cfg.Server.WebhookMaxAttempts = i
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := os.Getenv("DB_MIGRATE"); v != "" {
		cfg.Storage.Migrate = v != "false" && v != "0"
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Storage.RedisURL = v
	}

	if v := os.Getenv("PDP_STRATEGY"); v != "" {
		cfg.Solver.Strategy = v
	}
	if v := os.Getenv("PDP_INIT_POLICY"); v != "" {
		cfg.Solver.InitPolicy = v
	}
	if v := os.Getenv("PDP_CAPACITY_POLICY"); v != "" {
		cfg.Solver.CapacityPolicy = v
	}
	if v := os.Getenv("PDP_MAX_ITERATIONS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Solver.MaxIterations = i
		}
	}
	if v := os.Getenv("PDP_TIME_BUDGET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Solver.TimeBudget = d
		}
	}
	if v := os.Getenv("PDP_INITIAL_TEMP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Solver.InitialTemp = f
		}
	}
	if v := os.Getenv("PDP_SEED"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Solver.Seed = i
		}
	}
	if v := os.Getenv("PDP_WORKERS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Solver.Workers = i
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
	if v := os.Getenv("TRACING"); v != "" {
		cfg.Observability.Tracing = v
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535")
	}
	if c.Server.RateRPS < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("rate_rps and rate_burst must be >= 0")
	}
	if err := c.Solver.Validate(); err != nil {
		return err
	}
	switch strings.ToLower(c.Observability.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	switch c.Observability.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text")
	}
	switch c.Observability.Tracing {
	case "none", "stdout":
	default:
		return fmt.Errorf("tracing must be none or stdout")
	}
	return nil
}

// Validate checks the solver section.
func (s SolverConfig) Validate() error {
	switch s.Strategy {
	case opt.StrategySteepest, opt.StrategyAnneal:
	default:
		return fmt.Errorf("strategy must be %s or %s", opt.StrategySteepest, opt.StrategyAnneal)
	}
	switch opt.InitPolicy(s.InitPolicy) {
	case opt.InitSingle, opt.InitPack:
	default:
		return fmt.Errorf("init_policy must be %s or %s", opt.InitSingle, opt.InitPack)
	}
	switch opt.CapacityPolicy(s.CapacityPolicy) {
	case opt.CapacityFallback, opt.CapacityStrict:
	default:
		return fmt.Errorf("capacity_policy must be %s or %s", opt.CapacityFallback, opt.CapacityStrict)
	}
	if s.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be >= 0")
	}
	if s.Strategy == opt.StrategyAnneal && s.MaxIterations == 0 {
		return fmt.Errorf("max_iterations must be > 0 for %s", opt.StrategyAnneal)
	}
	if s.TimeBudget < 0 {
		return fmt.Errorf("time_budget must be >= 0")
	}
	if s.InitialTemp < 0 {
		return fmt.Errorf("initial_temp must be >= 0")
	}
	if s.Workers < 1 {
		return fmt.Errorf("workers must be >= 1")
	}
	if s.MaxTasks < 1 {
		return fmt.Errorf("max_tasks must be >= 1")
	}
	return nil
}

// WithOverrides returns s with the fields named in m replaced. Keys are the
// YAML keys of SolverConfig; unknown keys are ignored.
func (s SolverConfig) WithOverrides(m map[string]any) (SolverConfig, error) {
	if len(m) == 0 {
		return s, nil
	}
	b, err := yaml.Marshal(m)
	if err != nil {
		return s, fmt.Errorf("encode overrides: %w", err)
	}
	out := s
	if err := yaml.Unmarshal(b, &out); err != nil {
		return s, fmt.Errorf("decode overrides: %w", err)
	}
	return out, nil
}

// Apply layers per-request overrides on top of s.
func (s SolverConfig) Apply(o *model.SolverOverrides) SolverConfig {
	if o == nil {
		return s
	}
	if o.Strategy != "" {
		s.Strategy = o.Strategy
	}
	if o.InitPolicy != "" {
		s.InitPolicy = o.InitPolicy
	}
	if o.CapacityPolicy != "" {
		s.CapacityPolicy = o.CapacityPolicy
	}
	if o.InitVehicle != nil {
		s.InitVehicle = *o.InitVehicle
	}
	if o.MaxIterations > 0 {
		s.MaxIterations = o.MaxIterations
	}
	if o.TimeBudgetMs > 0 {
		s.TimeBudget = time.Duration(o.TimeBudgetMs) * time.Millisecond
	}
	if o.InitialTemp > 0 {
		s.InitialTemp = o.InitialTemp
	}
	if o.Seed != 0 {
		s.Seed = o.Seed
	}
	if o.Workers > 0 {
		s.Workers = o.Workers
	}
	return s
}

// Options converts the solver section into solve options.
func (s SolverConfig) Options() opt.Options {
	return opt.Options{
		Strategy: s.Strategy,
		Init: opt.InitOptions{
			Policy:   opt.InitPolicy(s.InitPolicy),
			Capacity: opt.CapacityPolicy(s.CapacityPolicy),
			Vehicle:  s.InitVehicle,
		},
		MaxIterations: s.MaxIterations,
		TimeLimit:     s.TimeBudget,
		InitialTemp:   s.InitialTemp,
		Seed:          s.Seed,
		Workers:       s.Workers,
	}
}

// Level maps LogLevel to a slog level.
func (o ObservabilityConfig) Level() slog.Level {
	switch strings.ToLower(o.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Logger builds the process logger writing to w.
func (o ObservabilityConfig) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: o.Level()}
	if o.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts)).With("service", o.ServiceName)
}
