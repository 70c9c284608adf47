// Package config provides hierarchical configuration loading for PartyLedger.
// Precedence: defaults < YAML file < environment variables (.env included).
package config

import "time"

// Config holds all runtime configuration for the live events service.
type Config struct {
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
	Stream  Stream  `yaml:"stream"`
	Rate    Rate    `yaml:"rate"`
	Cache   Cache   `yaml:"cache"`
	OTEL    OTEL    `yaml:"otel"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port            string        `yaml:"port"`
	CORSOrigin      string        `yaml:"cors_origin"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`  // non-streaming routes only
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // grace period for open streams
}

// Logging holds structured logging configuration.
type Logging struct {
	Level      string `yaml:"level"`
	Service    string `yaml:"service"`
	Async      bool   `yaml:"async"`
	File       string `yaml:"file"`         // empty = stdout only
	MaxSizeMB  int    `yaml:"max_size_mb"`  // rotate after this size
	MaxBackups int    `yaml:"max_backups"`  // rotated files to keep
	MaxAgeDays int    `yaml:"max_age_days"` // 0 = keep forever
}

// Stream holds live event distribution settings.
type Stream struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ReplayLimit       int           `yaml:"replay_limit"`  // events kept per topic for reconnects
	WriteTimeout      time.Duration `yaml:"write_timeout"` // per frame; 0 disables
	MaxStreams        int           `yaml:"max_streams"`   // concurrent viewer streams; 0 = unlimited
}

// Rate holds the per-IP limiter applied to stream connects.
type Rate struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	MaxIdleTime       time.Duration `yaml:"max_idle_time"`
}

// Cache holds the encoded-frame L1 cache configuration.
type Cache struct {
	FrameMaxSizeMB int64         `yaml:"frame_max_size_mb"` // 0 disables the cache
	FrameTTL       time.Duration `yaml:"frame_ttl"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"` // remembered publish responses
}

// OTEL holds OpenTelemetry exporter configuration.
type OTEL struct {
	Endpoint       string        `yaml:"endpoint"` // OTLP gRPC host:port; empty disables export
	Insecure       bool          `yaml:"insecure"`
	ServiceName    string        `yaml:"service_name"`
	MetricInterval time.Duration `yaml:"metric_interval"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:            "8000",
			CORSOrigin:      "http://localhost:5173",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: Logging{
			Level:      "info",
			Service:    "partyledger-events",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Stream: Stream{
			HeartbeatInterval: 30 * time.Second,
			ReplayLimit:       100,
			WriteTimeout:      10 * time.Second,
			MaxStreams:        2000,
		},
		Rate: Rate{
			RequestsPerSecond: 2,
			Burst:             10,
			CleanupInterval:   5 * time.Minute,
			MaxIdleTime:       10 * time.Minute,
		},
		Cache: Cache{
			FrameMaxSizeMB: 16,
			FrameTTL:       10 * time.Minute,
			IdempotencyTTL: 10 * time.Minute,
		},
		OTEL: OTEL{
			Insecure:       true,
			ServiceName:    "partyledger-events",
			MetricInterval: 30 * time.Second,
		},
	}
}
