package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChargeMatch/internal/config"
	"github.com/turtacn/ChargeMatch/internal/testutil"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "cm"}, testutil.NewMockLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewClient_Success(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := testutil.NewMockLogger()

	client, err := NewClient(config.RedisConfig{Addr: mr.Addr()}, logger)
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))
	assert.True(t, logger.HasMessage("info", "Redis client connected"))
	assert.Equal(t, "chargematch:elem:shells", client.Key("elem", "shells"))
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client, err := NewClient(config.RedisConfig{Addr: addr, DialTimeout: 200 * time.Millisecond}, nil)
	assert.Nil(t, client)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRepositoryUnavailable))
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	client, _ := newTestClient(t)

	require.NoError(t, client.Close())
	assert.NoError(t, client.Close())
	assert.True(t, errors.IsCode(client.Ping(context.Background()), errors.ErrCodeCacheError))
}

func TestMutex_LockUnlock(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	lock := client.NewMutex("publish", WithLockTTL(time.Second))
	require.NoError(t, lock.Lock(ctx))
	assert.True(t, mr.Exists("cm:lock:publish"))

	require.NoError(t, lock.Unlock(ctx))
	assert.False(t, mr.Exists("cm:lock:publish"))
}

func TestMutex_Contention(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	lock1 := client.NewMutex("publish", WithRetryCount(1), WithRetryDelay(10*time.Millisecond))
	lock2 := client.NewMutex("publish", WithRetryCount(1), WithRetryDelay(10*time.Millisecond))

	require.NoError(t, lock1.Lock(ctx))
	err := lock2.Lock(ctx)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConflict))

	require.NoError(t, lock1.Unlock(ctx))
	assert.NoError(t, lock2.Lock(ctx))
}

func TestMutex_UnlockNotHeld(t *testing.T) {
	client, _ := newTestClient(t)

	lock := client.NewMutex("never-taken")
	err := lock.Unlock(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeConflict))
}

func TestMutex_WatchdogStopsOnUnlock(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	lock := client.NewMutex("watched", WithLockTTL(300*time.Millisecond), WithWatchdog(true))
	require.NoError(t, lock.Lock(ctx))
	require.NoError(t, lock.Unlock(ctx))
	assert.False(t, mr.Exists("cm:lock:watched"))
}

//Personal.AI order the ending
