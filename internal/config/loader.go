package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "partyledger.yaml"

// DefaultEnvFile is the dotenv file merged into the process environment.
const DefaultEnvFile = ".env"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML and .env files are optional; missing files are not an error.
func Load() (*Config, error) {
	if err := loadDotEnv(DefaultEnvFile); err != nil {
		return nil, fmt.Errorf("config dotenv: %w", err)
	}
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv merges a dotenv file into the environment without overriding
// variables that are already set. Returns nil if the file does not exist.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.Port, "PARTYLEDGER_PORT")
	setString(&cfg.Server.CORSOrigin, "PARTYLEDGER_CORS_ORIGIN")
	setDuration(&cfg.Server.RequestTimeout, "PARTYLEDGER_REQUEST_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "PARTYLEDGER_SHUTDOWN_TIMEOUT")

	setString(&cfg.Logging.Level, "PARTYLEDGER_LOG_LEVEL")
	setString(&cfg.Logging.Service, "PARTYLEDGER_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "PARTYLEDGER_LOG_ASYNC")
	setString(&cfg.Logging.File, "PARTYLEDGER_LOG_FILE")
	setInt(&cfg.Logging.MaxSizeMB, "PARTYLEDGER_LOG_MAX_SIZE_MB")
	setInt(&cfg.Logging.MaxBackups, "PARTYLEDGER_LOG_MAX_BACKUPS")
	setInt(&cfg.Logging.MaxAgeDays, "PARTYLEDGER_LOG_MAX_AGE_DAYS")

	// Stream
	setDuration(&cfg.Stream.HeartbeatInterval, "PARTYLEDGER_HEARTBEAT_INTERVAL")
	setInt(&cfg.Stream.ReplayLimit, "PARTYLEDGER_REPLAY_LIMIT")
	setDuration(&cfg.Stream.WriteTimeout, "PARTYLEDGER_STREAM_WRITE_TIMEOUT")
	setInt(&cfg.Stream.MaxStreams, "PARTYLEDGER_MAX_STREAMS")

	// Rate
	setFloat64(&cfg.Rate.RequestsPerSecond, "PARTYLEDGER_RATE_RPS")
	setInt(&cfg.Rate.Burst, "PARTYLEDGER_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "PARTYLEDGER_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "PARTYLEDGER_RATE_MAX_IDLE_TIME")

	// Cache
	setInt64(&cfg.Cache.FrameMaxSizeMB, "PARTYLEDGER_FRAME_CACHE_MB")
	setDuration(&cfg.Cache.FrameTTL, "PARTYLEDGER_FRAME_CACHE_TTL")
	setDuration(&cfg.Cache.IdempotencyTTL, "PARTYLEDGER_IDEMPOTENCY_TTL")

	// OpenTelemetry
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "PARTYLEDGER_OTEL_INSECURE")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setDuration(&cfg.OTEL.MetricInterval, "PARTYLEDGER_OTEL_METRIC_INTERVAL")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Stream.HeartbeatInterval <= 0 {
		return errors.New("stream.heartbeat_interval must be > 0")
	}
	if cfg.Stream.ReplayLimit < 1 {
		return errors.New("stream.replay_limit must be >= 1")
	}
	if cfg.Stream.WriteTimeout < 0 {
		return errors.New("stream.write_timeout must be >= 0")
	}
	if cfg.Stream.MaxStreams < 0 {
		return errors.New("stream.max_streams must be >= 0")
	}
	if cfg.Rate.RequestsPerSecond <= 0 {
		return errors.New("rate.requests_per_second must be > 0")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Cache.FrameMaxSizeMB < 0 {
		return errors.New("cache.frame_max_size_mb must be >= 0")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
