// Package config loads server configuration from a YAML file, a .env file
// and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"provision-risk-lab/internal/domain"
)

// Config is the complete server configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Storage    StorageConfig    `yaml:"storage"`
	Auth       AuthConfig       `yaml:"auth"`
	Simulation SimulationConfig `yaml:"simulation"`
	Log        LogConfig        `yaml:"log"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

// StorageConfig selects and configures the stores.
type StorageConfig struct {
	UseMemory        bool          `yaml:"use_memory"`
	PostgresDSN      string        `yaml:"postgres_dsn"`
	PostgresMaxConns int32         `yaml:"postgres_max_conns"`
	PostgresConnTTL  time.Duration `yaml:"postgres_conn_ttl"`
	ClickhouseDSN    string        `yaml:"clickhouse_dsn"` // optional analytics sink
}

// AuthConfig configures bearer-token verification.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	Disabled  bool   `yaml:"disabled"` // every request runs as AnonymousOwner
}

// SimulationConfig holds estimation defaults and limits.
type SimulationConfig struct {
	DefaultSamples  int           `yaml:"default_samples"`
	DefaultAlpha    float64       `yaml:"default_alpha"`
	Workers         int           `yaml:"workers"` // 0 means GOMAXPROCS
	Timeout         time.Duration `yaml:"timeout"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
	TrajectoryCount int           `yaml:"trajectory_count"`
	SweepSchedule   string        `yaml:"sweep_schedule"` // cron expression
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 30 * time.Second,
			MaxUploadBytes:  32 << 20,
		},
		Storage: StorageConfig{
			UseMemory:        true,
			PostgresMaxConns: 10,
			PostgresConnTTL:  time.Hour,
		},
		Auth: AuthConfig{
			Issuer: "provision-risk-lab",
		},
		Simulation: SimulationConfig{
			DefaultSamples:  domain.DefaultSamples,
			DefaultAlpha:    domain.DefaultAlpha,
			Timeout:         10 * time.Minute,
			MaxConcurrent:   4,
			TrajectoryCount: 10,
			SweepSchedule:   "@every 1m",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds a Config from defaults, the optional YAML file at path,
// the optional .env file at envFile and the process environment.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if envFile != "" {
		// Existing environment variables win over the file.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setString(&c.Storage.PostgresDSN, "POSTGRES_DSN")
	setString(&c.Storage.ClickhouseDSN, "CLICKHOUSE_DSN")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.Issuer, "JWT_ISSUER")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Simulation.SweepSchedule, "SWEEP_SCHEDULE")

	if v := os.Getenv("USE_MEMORY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("USE_MEMORY: %w", err)
		}
		c.Storage.UseMemory = b
	}
	if v := os.Getenv("AUTH_DISABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AUTH_DISABLED: %w", err)
		}
		c.Auth.Disabled = b
	}
	if v := os.Getenv("SIMULATION_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SIMULATION_WORKERS: %w", err)
		}
		c.Simulation.Workers = n
	}
	if v := os.Getenv("SIMULATION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SIMULATION_TIMEOUT: %w", err)
		}
		c.Simulation.Timeout = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if !c.Storage.UseMemory && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn is required unless storage.use_memory is set")
	}
	if !c.Auth.Disabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required unless auth.disabled is set")
	}
	s := c.Simulation
	if s.DefaultSamples < domain.MinSamples || s.DefaultSamples > domain.MaxSamples {
		return fmt.Errorf("simulation.default_samples must be in [%d, %d]", domain.MinSamples, domain.MaxSamples)
	}
	if !(s.DefaultAlpha > 0 && s.DefaultAlpha < 1) {
		return fmt.Errorf("simulation.default_alpha must be in (0, 1)")
	}
	if s.Workers < 0 {
		return fmt.Errorf("simulation.workers must not be negative")
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("simulation.timeout must be positive")
	}
	if s.MaxConcurrent <= 0 {
		return fmt.Errorf("simulation.max_concurrent must be positive")
	}
	if s.TrajectoryCount < 0 {
		return fmt.Errorf("simulation.trajectory_count must not be negative")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be json or text")
	}
	return nil
}

// NewLogger builds a logrus logger from the log settings.
func (c LogConfig) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if c.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(c.Level); err == nil {
		logger.SetLevel(level)
	}
	return logger
}
