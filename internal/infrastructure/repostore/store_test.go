package repostore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChargeMatch/internal/config"
	"github.com/turtacn/ChargeMatch/internal/domain/charge"
	"github.com/turtacn/ChargeMatch/internal/testutil"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

func sampleData() *charge.RepositoryData {
	return &charge.RepositoryData{
		IACM: charge.ChargeTable{
			0: {"0|HC": {0.118, 0.12}, "0|CH4": {-0.472}},
			1: {"1|HC|CH4": {0.118}},
		},
		Elem: charge.ChargeTable{
			0: {"0|C": {-0.48}, "0|H": {0.12, 0.118}},
		},
	}
}

func TestFileRoundTrip(t *testing.T) {
	cfg := &config.Config{}
	cfg.Repository.Path = filepath.Join(t.TempDir(), "repo.yaml")
	ctx := context.Background()

	require.NoError(t, Export(ctx, cfg, SourceFile, sampleData(), Options{}))

	log := testutil.NewMockLogger()
	h, err := Open(ctx, cfg, SourceFile, Options{Logger: log})
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, SourceFile, h.Source)
	assert.Equal(t, sampleData(), h.Data)
	assert.Equal(t, []int{0, 1}, h.Repository.IACM.Shells())
	assert.NoError(t, h.Ping(ctx))
	assert.True(t, log.HasMessage("info", "charge repository opened"))

	stats := h.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, charge.KindIACM, stats[0].Kind)

	data, err := h.Materialize(ctx)
	require.NoError(t, err)
	assert.Same(t, h.Data, data)
}

func TestOpen_MissingFile(t *testing.T) {
	cfg := &config.Config{}
	cfg.Repository.Path = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := Open(context.Background(), cfg, SourceFile, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRepositoryUnavailable))
}

func TestRedisRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{}
	cfg.Redis = config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "cm", LocalCacheBytes: 1 << 20, LocalCacheTTL: time.Minute}
	ctx := context.Background()

	require.NoError(t, Export(ctx, cfg, SourceRedis, sampleData(), Options{}))

	h, err := Open(ctx, cfg, SourceRedis, Options{})
	require.NoError(t, err)
	defer h.Close()

	assert.Nil(t, h.Data)
	assert.Nil(t, h.Stats())
	assert.NoError(t, h.Ping(ctx))

	vals, ok, err := h.Repository.IACM.Lookup(ctx, 1, "1|HC|CH4")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{0.118}, vals)

	data, err := h.Materialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleData(), data)

	require.NoError(t, h.Close())
	assert.NoError(t, h.Close())
}

func TestOpen_RedisUnavailable(t *testing.T) {
	cfg := &config.Config{}
	cfg.Redis = config.RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond}

	_, err := Open(context.Background(), cfg, SourceRedis, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRepositoryUnavailable))
}

func TestUnknownSource(t *testing.T) {
	cfg := &config.Config{}
	ctx := context.Background()

	_, err := Open(ctx, cfg, "sqlite", Options{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	err = Export(ctx, cfg, "sqlite", sampleData(), Options{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestSources(t *testing.T) {
	assert.Equal(t, []string{"file", "postgres", "redis", "minio"}, Sources())
}

//Personal.AI order the ending
