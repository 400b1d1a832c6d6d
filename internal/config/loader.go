// Package config provides configuration loading, defaults, and validation for
// ChargeMatch.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "CHARGEMATCH"

// envKeys lists every key that may be supplied through the environment.
// Viper only resolves AutomaticEnv for keys it already knows about, so keys
// absent from the config file must be bound explicitly.
var envKeys = []string{
	"server.port", "server.mode", "server.read_timeout", "server.write_timeout",
	"server.max_body_size", "server.shutdown_timeout",
	"grpc.host", "grpc.port", "grpc.debug",
	"charge.variant", "charge.rounding_digits", "charge.max_bins", "charge.time_budget",
	"charge.total_charge_diff", "charge.shells", "charge.iacmize", "charge.iacm_data_only",
	"charge.canonizer", "charge.dreadnaut_path",
	"repository.source", "repository.path", "repository.snapshot_key", "repository.max_shell",
	"database.host", "database.port", "database.user", "database.password", "database.db_name",
	"database.ssl_mode", "database.max_conns", "database.max_idle_conns",
	"database.conn_max_lifetime", "database.conn_max_idle_time", "database.migration_path",
	"redis.addr", "redis.password", "redis.db", "redis.pool_size", "redis.min_idle_conns",
	"redis.dial_timeout", "redis.read_timeout", "redis.write_timeout", "redis.key_prefix",
	"redis.local_cache_bytes", "redis.local_cache_ttl",
	"kafka.brokers", "kafka.group_id", "kafka.job_topic", "kafka.result_topic",
	"kafka.dlq_topic", "kafka.start_offset",
	"minio.endpoint", "minio.access_key", "minio.secret_key", "minio.bucket",
	"minio.use_ssl", "minio.region",
	"worker.concurrency", "worker.max_retries", "worker.retry_backoff",
	"log.level", "log.format", "log.output_paths",
	"log.file.filename", "log.file.max_size_mb", "log.file.max_backups",
	"log.file.max_age_days", "log.file.compress",
	"metrics.enabled", "metrics.namespace", "metrics.subsystem",
}

// newViper builds a pre-configured Viper instance: YAML file type,
// CHARGEMATCH_ env prefix, automatic env binding, and a key replacer that maps
// "." → "_" so that "database.host" resolves to "CHARGEMATCH_DATABASE_HOST".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}
	return v
}

// Load reads the YAML file at configPath, merges any CHARGEMATCH_*
// environment overrides, applies defaults for unset fields, and validates the
// result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from CHARGEMATCH_* environment
// variables, with no config file required.
//
//	CHARGEMATCH_<SECTION>_<FIELD>   e.g.  CHARGEMATCH_CHARGE_VARIANT
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

// LoadOptional loads configPath when it is non-empty and falls back to the
// environment otherwise.  The CLI uses it so that a config file is optional.
func LoadOptional(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	return Load(configPath)
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath for changes and invokes onChange with the newly
// parsed Config whenever the file is modified on disk.  Only the log level and
// charge defaults are meant to be applied at runtime.
//
// If the changed file fails to parse or validate, onError is called (when
// non-nil) and onChange is skipped.
func Watch(configPath string, onChange func(*Config), onError func(error)) {
	v := newViper()
	v.SetConfigFile(configPath)

	// Initial read; callers are expected to have called Load already.
	_ = v.ReadInConfig()

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

// MustLoad is a convenience wrapper around Load that panics on any error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

//Personal.AI order the ending
