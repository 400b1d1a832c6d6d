package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChargeMatch/internal/config"
)

// validConfig returns a Config that passes Validate() with the file source.
func validConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_InvalidServerPort(t *testing.T) {
	t.Parallel()
	cases := []int{0, -1, 65536, 100000}
	for _, p := range cases {
		p := p
		t.Run("", func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			cfg.Server.Port = p
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "server.port")
		})
	}
}

func TestConfig_Validate_InvalidServerMode(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Server.Mode = "production"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.mode")
}

func TestConfig_Validate_InvalidVariant(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Charge.Variant = "greedy"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "charge.variant")
}

func TestConfig_Validate_AllVariants(t *testing.T) {
	t.Parallel()
	for _, v := range []string{"simple", "ilp", "dp"} {
		cfg := validConfig()
		cfg.Charge.Variant = v
		assert.NoError(t, cfg.Validate(), v)
	}
}

func TestConfig_Validate_NonPositiveTimeBudget(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Charge.TimeBudget = -time.Second
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "charge.time_budget")
}

func TestConfig_Validate_NegativeShell(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Charge.Shells = []int{2, -1}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "charge.shells")
}

func TestConfig_Validate_DreadnautRequiresPath(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Charge.Canonizer = "dreadnaut"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dreadnaut_path")

	cfg.Charge.DreadnautPath = "/usr/bin/dreadnaut"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_UnknownCanonizer(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Charge.Canonizer = "bliss"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "charge.canonizer")
}

func TestConfig_Validate_PostgresSourceRequiresUser(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Repository.Source = "postgres"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.user")

	cfg.Database.User = "chargematch"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_RedisSourceRejectsNegativeDB(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Repository.Source = "redis"
	cfg.Redis.DB = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.db")
}

func TestConfig_Validate_MinIOSourceRequiresSnapshotKey(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Repository.Source = "minio"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository.snapshot_key")

	cfg.Repository.SnapshotKey = "snapshots/repo.yaml.zst"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_UnknownSource(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Repository.Source = "s3"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository.source")
}

func TestConfig_Validate_WorkerConcurrencyLessThanOne(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Worker.Concurrency = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker.concurrency")
}

func TestConfig_Validate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Log.Level = "verbose"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestConfig_Validate_InvalidLogFormat(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Log.Format = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()
	d := config.DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p", DBName: "charges", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p@db:5433/charges?sslmode=disable", d.DSN())
}

//Personal.AI order the ending
