package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  port: 8081
  mode: debug
charge:
  variant: dp
  rounding_digits: 4
  max_bins: 5
  time_budget: 10s
  shells: [2, 1]
repository:
  source: file
  path: ./charges.yaml
kafka:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
log:
  level: debug
  format: console
`

func createTempConfigFile(t *testing.T, content string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "dp", cfg.Charge.Variant)
	assert.Equal(t, 4, cfg.Charge.RoundingDigits)
	assert.Equal(t, 5, cfg.Charge.MaxBins)
	assert.Equal(t, 10*time.Second, cfg.Charge.TimeBudget)
	assert.Equal(t, []int{2, 1}, cfg.Charge.Shells)
	assert.Equal(t, "./charges.yaml", cfg.Repository.Path)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_FromFile_DefaultsFilled(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultCanonizer, cfg.Charge.Canonizer)
	assert.Equal(t, DefaultKafkaJobTopic, cfg.Kafka.JobTopic)
	assert.Equal(t, DefaultRedisAddr, cfg.Redis.Addr)
}

func TestLoad_FromFile_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_FromFile_InvalidYAML(t *testing.T) {
	path := createTempConfigFile(t, "invalid_yaml: [")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_FromFile_ValidationFailure(t *testing.T) {
	path := createTempConfigFile(t, "charge:\n  variant: annealing\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoad_EnvOverride(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	t.Setenv("CHARGEMATCH_CHARGE_VARIANT", "ilp")
	t.Setenv("CHARGEMATCH_SERVER_PORT", "9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ilp", cfg.Charge.Variant)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoadFromEnv_NoFile(t *testing.T) {
	t.Setenv("CHARGEMATCH_REPOSITORY_SOURCE", "redis")
	t.Setenv("CHARGEMATCH_REDIS_ADDR", "cache:6380")
	t.Setenv("CHARGEMATCH_LOG_LEVEL", "warn")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Repository.Source)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, DefaultChargeVariant, cfg.Charge.Variant)
}

func TestLoadOptional_EmptyPathUsesEnv(t *testing.T) {
	t.Setenv("CHARGEMATCH_CHARGE_VARIANT", "dp")
	cfg, err := LoadOptional("")
	require.NoError(t, err)
	assert.Equal(t, "dp", cfg.Charge.Variant)
}

func TestMustLoad_Success(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	assert.NotPanics(t, func() {
		cfg := MustLoad(path)
		assert.NotNil(t, cfg)
	})
}

func TestMustLoad_Panic(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	})
}

//Personal.AI order the ending
