// Package config defines all configuration structures for ChargeMatch.
// No I/O or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GRPCConfig holds gRPC server tunables.
type GRPCConfig struct {
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`
	Debug bool   `mapstructure:"debug"`
}

// ChargeConfig holds the charger defaults applied when a request leaves a
// parameter unset.
type ChargeConfig struct {
	Variant         string        `mapstructure:"variant"` // "simple" | "ilp" | "dp"
	RoundingDigits  int           `mapstructure:"rounding_digits"`
	MaxBins         int           `mapstructure:"max_bins"`
	TimeBudget      time.Duration `mapstructure:"time_budget"`
	TotalChargeDiff float64       `mapstructure:"total_charge_diff"`
	Shells          []int         `mapstructure:"shells"`
	IACMize         bool          `mapstructure:"iacmize"`
	IACMDataOnly    bool          `mapstructure:"iacm_data_only"`
	Canonizer       string        `mapstructure:"canonizer"` // "refine" | "dreadnaut"
	DreadnautPath   string        `mapstructure:"dreadnaut_path"`
}

// RepositoryConfig selects where the charge repository is loaded from.
type RepositoryConfig struct {
	Source      string `mapstructure:"source"` // "file" | "postgres" | "redis" | "minio"
	Path        string `mapstructure:"path"`
	SnapshotKey string `mapstructure:"snapshot_key"`
	MaxShell    int    `mapstructure:"max_shell"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// DSN renders the connection string understood by both pgx and golang-migrate.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr            string        `mapstructure:"addr"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
	LocalCacheBytes int           `mapstructure:"local_cache_bytes"`
	LocalCacheTTL   time.Duration `mapstructure:"local_cache_ttl"`
}

// KafkaConfig holds Apache Kafka producer/consumer parameters.
type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	GroupID     string   `mapstructure:"group_id"`
	JobTopic    string   `mapstructure:"job_topic"`
	ResultTopic string   `mapstructure:"result_topic"`
	DLQTopic    string   `mapstructure:"dlq_topic"`
	StartOffset string   `mapstructure:"start_offset"` // "earliest" | "latest"
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
}

// WorkerConfig holds background-worker execution parameters.
type WorkerConfig struct {
	Concurrency  int           `mapstructure:"concurrency"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// LogFileConfig configures rotation of an optional log file.
type LogFileConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level       string        `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format      string        `mapstructure:"format"` // "json" | "console"
	OutputPaths []string      `mapstructure:"output_paths"`
	File        LogFileConfig `mapstructure:"file"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Subsystem string `mapstructure:"subsystem"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure shared by every binary.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	GRPC       GRPCConfig       `mapstructure:"grpc"`
	Charge     ChargeConfig     `mapstructure:"charge"`
	Repository RepositoryConfig `mapstructure:"repository"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered.  Rounding digits and bin counts are
// clamped by the charger and therefore not rejected here.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if c.GRPC.Port < 0 || c.GRPC.Port > 65535 {
		return fmt.Errorf("config: grpc.port %d is out of range [0, 65535]", c.GRPC.Port)
	}

	// Charge
	switch c.Charge.Variant {
	case "simple", "ilp", "dp":
	default:
		return fmt.Errorf("config: charge.variant %q is invalid; expected simple|ilp|dp", c.Charge.Variant)
	}
	if c.Charge.TimeBudget <= 0 {
		return fmt.Errorf("config: charge.time_budget must be positive, got %s", c.Charge.TimeBudget)
	}
	if c.Charge.TotalChargeDiff < 0 {
		return fmt.Errorf("config: charge.total_charge_diff must be ≥ 0, got %g", c.Charge.TotalChargeDiff)
	}
	for _, s := range c.Charge.Shells {
		if s < 0 {
			return fmt.Errorf("config: charge.shells contains negative shell %d", s)
		}
	}
	switch c.Charge.Canonizer {
	case "refine":
	case "dreadnaut":
		if c.Charge.DreadnautPath == "" {
			return fmt.Errorf("config: charge.dreadnaut_path is required for the dreadnaut canonizer")
		}
	default:
		return fmt.Errorf("config: charge.canonizer %q is invalid; expected refine|dreadnaut", c.Charge.Canonizer)
	}

	// Repository
	switch c.Repository.Source {
	case "file":
		if c.Repository.Path == "" {
			return fmt.Errorf("config: repository.path is required for the file source")
		}
	case "postgres":
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("config: database.host, database.user and database.db_name are required for the postgres source")
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.Database.MaxConns)
		}
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required for the redis source")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
		}
	case "minio":
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" || c.Repository.SnapshotKey == "" {
			return fmt.Errorf("config: minio.endpoint, minio.bucket and repository.snapshot_key are required for the minio source")
		}
	default:
		return fmt.Errorf("config: repository.source %q is invalid; expected file|postgres|redis|minio", c.Repository.Source)
	}
	if c.Repository.MaxShell < 0 {
		return fmt.Errorf("config: repository.max_shell must be ≥ 0, got %d", c.Repository.MaxShell)
	}

	// Worker
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be ≥ 1, got %d", c.Worker.Concurrency)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}

//Personal.AI order the ending
