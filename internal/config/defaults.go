// Package config provides configuration loading, defaults, and validation for
// ChargeMatch.
package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"
	DefaultGRPCPort   = 9090

	DefaultChargeVariant      = "simple"
	DefaultRoundingDigits     = 3
	DefaultMaxBins            = 7
	DefaultTimeBudget         = 60 * time.Second
	DefaultTotalChargeDiff    = 0.01
	DefaultCanonizer          = "refine"
	DefaultRepositorySource   = "file"
	DefaultRepositoryPath     = "repository.yaml"
	DefaultRepositoryMaxShell = 3

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "chargematch"
	DefaultDBMaxConns = 10

	DefaultRedisAddr            = "localhost:6379"
	DefaultRedisKeyPrefix       = "chargematch"
	DefaultRedisLocalCacheBytes = 32 * 1024 * 1024
	DefaultRedisLocalCacheTTL   = 10 * time.Minute

	DefaultKafkaBroker      = "localhost:9092"
	DefaultKafkaGroupID     = "chargematch-workers"
	DefaultKafkaJobTopic    = "charge.jobs"
	DefaultKafkaResultTopic = "charge.results"
	DefaultKafkaDLQTopic    = "charge.jobs.dlq"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "chargematch"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultWorkerConcurrency = 4

	DefaultMetricsNamespace = "chargematch"
)

// ApplyDefaults fills every zero-value field in cfg with its default.
// Fields that have already been set (non-zero values) are left unchanged so
// that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 2 * time.Minute
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 8 << 20
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	if cfg.GRPC.Port == 0 {
		cfg.GRPC.Port = DefaultGRPCPort
	}

	// ── Charge ────────────────────────────────────────────────────────────────
	if cfg.Charge.Variant == "" {
		cfg.Charge.Variant = DefaultChargeVariant
	}
	// Zero means unset here; requests may still ask for 0 digits explicitly.
	if cfg.Charge.RoundingDigits == 0 {
		cfg.Charge.RoundingDigits = DefaultRoundingDigits
	}
	if cfg.Charge.MaxBins == 0 {
		cfg.Charge.MaxBins = DefaultMaxBins
	}
	if cfg.Charge.TimeBudget == 0 {
		cfg.Charge.TimeBudget = DefaultTimeBudget
	}
	if cfg.Charge.TotalChargeDiff == 0 {
		cfg.Charge.TotalChargeDiff = DefaultTotalChargeDiff
	}
	if cfg.Charge.Canonizer == "" {
		cfg.Charge.Canonizer = DefaultCanonizer
	}

	// ── Repository ────────────────────────────────────────────────────────────
	if cfg.Repository.Source == "" {
		cfg.Repository.Source = DefaultRepositorySource
	}
	if cfg.Repository.Source == "file" && cfg.Repository.Path == "" {
		cfg.Repository.Path = DefaultRepositoryPath
	}
	if cfg.Repository.MaxShell == 0 {
		cfg.Repository.MaxShell = DefaultRepositoryMaxShell
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "file://migrations"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.LocalCacheBytes == 0 {
		cfg.Redis.LocalCacheBytes = DefaultRedisLocalCacheBytes
	}
	if cfg.Redis.LocalCacheTTL == 0 {
		cfg.Redis.LocalCacheTTL = DefaultRedisLocalCacheTTL
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.JobTopic == "" {
		cfg.Kafka.JobTopic = DefaultKafkaJobTopic
	}
	if cfg.Kafka.ResultTopic == "" {
		cfg.Kafka.ResultTopic = DefaultKafkaResultTopic
	}
	if cfg.Kafka.DLQTopic == "" {
		cfg.Kafka.DLQTopic = DefaultKafkaDLQTopic
	}
	if cfg.Kafka.StartOffset == "" {
		cfg.Kafka.StartOffset = "earliest"
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.RetryBackoff == 0 {
		cfg.Worker.RetryBackoff = 500 * time.Millisecond
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}

//Personal.AI order the ending
