package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backends accepted in Config.Backend.
const (
	backendMemory = "memory"
	backendRedis  = "redis"
)

// Config is the resolved daemon configuration.
type Config struct {
	HTTPAddr        string
	BasePath        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	Governor      string
	ExactYearWalk bool

	Backend     string
	RedisURL    string
	RedisPrefix string

	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret string
	JWTIssuer string

	AuditLog bool
	LogLevel slog.Level
}

// configFile mirrors the YAML schema of carbond.yaml.
type configFile struct {
	Server struct {
		Addr            string `yaml:"addr"`
		BasePath        string `yaml:"base_path"`
		RequestTimeout  string `yaml:"request_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Ledger struct {
		Governor      string `yaml:"governor"`
		ExactYearWalk bool   `yaml:"exact_year_walk"`
	} `yaml:"ledger"`
	Store struct {
		Backend     string `yaml:"backend"`
		RedisURL    string `yaml:"redis_url"`
		RedisPrefix string `yaml:"redis_prefix"`
	} `yaml:"store"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		JWTIssuer string `yaml:"jwt_issuer"`
	} `yaml:"auth"`
	Log struct {
		Level string `yaml:"level"`
		Audit bool   `yaml:"audit"`
	} `yaml:"log"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		HTTPAddr:        ":8080",
		BasePath:        "/carbon",
		RequestTimeout:  15 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Backend:         backendMemory,
		RedisPrefix:     "carbon:",
		JWTIssuer:       "carbond",
		LogLevel:        slog.LevelInfo,
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.applyFile(raw); err != nil {
			return Config{}, err
		}
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg.HTTPAddr = envOrDefault("CARBON_HTTP_ADDR", cfg.HTTPAddr)
	cfg.BasePath = envOrDefault("CARBON_BASE_PATH", cfg.BasePath)
	cfg.Governor = envOrDefault("CARBON_GOVERNOR", cfg.Governor)
	cfg.ExactYearWalk = envBool("CARBON_EXACT_YEAR_WALK", cfg.ExactYearWalk)
	cfg.Backend = envOrDefault("CARBON_BACKEND", cfg.Backend)
	cfg.RedisURL = envOrDefault("CARBON_REDIS_URL", envOrDefault("REDIS_URL", cfg.RedisURL))
	cfg.RedisPrefix = envOrDefault("CARBON_REDIS_PREFIX", cfg.RedisPrefix)
	cfg.KafkaBrokers = envCSV("CARBON_KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = envOrDefault("CARBON_KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.JWTSecret = envOrDefault("CARBON_JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = envOrDefault("CARBON_JWT_ISSUER", cfg.JWTIssuer)
	cfg.AuditLog = envBool("CARBON_AUDIT_LOG", cfg.AuditLog)
	if level := os.Getenv("CARBON_LOG_LEVEL"); level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			return Config{}, fmt.Errorf("CARBON_LOG_LEVEL: %w", err)
		}
	}

	if cfg.Governor == "" {
		return Config{}, errors.New("missing CARBON_GOVERNOR")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("missing CARBON_JWT_SECRET")
	}
	switch cfg.Backend {
	case backendMemory:
	case backendRedis:
		if cfg.RedisURL == "" {
			return Config{}, errors.New("missing CARBON_REDIS_URL for redis backend")
		}
	default:
		return Config{}, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	return cfg, nil
}

func (cfg *Config) applyFile(raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if f.Server.Addr != "" {
		cfg.HTTPAddr = f.Server.Addr
	}
	if f.Server.BasePath != "" {
		cfg.BasePath = f.Server.BasePath
	}
	if f.Server.RequestTimeout != "" {
		d, err := time.ParseDuration(f.Server.RequestTimeout)
		if err != nil {
			return fmt.Errorf("server.request_timeout: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if f.Server.ShutdownTimeout != "" {
		d, err := time.ParseDuration(f.Server.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("server.shutdown_timeout: %w", err)
		}
		cfg.ShutdownTimeout = d
	}
	if f.Ledger.Governor != "" {
		cfg.Governor = f.Ledger.Governor
	}
	cfg.ExactYearWalk = f.Ledger.ExactYearWalk
	if f.Store.Backend != "" {
		cfg.Backend = f.Store.Backend
	}
	if f.Store.RedisURL != "" {
		cfg.RedisURL = f.Store.RedisURL
	}
	if f.Store.RedisPrefix != "" {
		cfg.RedisPrefix = f.Store.RedisPrefix
	}
	if len(f.Kafka.Brokers) > 0 {
		cfg.KafkaBrokers = f.Kafka.Brokers
	}
	if f.Kafka.Topic != "" {
		cfg.KafkaTopic = f.Kafka.Topic
	}
	if f.Auth.JWTSecret != "" {
		cfg.JWTSecret = f.Auth.JWTSecret
	}
	if f.Auth.JWTIssuer != "" {
		cfg.JWTIssuer = f.Auth.JWTIssuer
	}
	if f.Log.Level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(f.Log.Level)); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}
	cfg.AuditLog = f.Log.Audit
	return nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	switch os.Getenv(name) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
