package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "failed to acquire lock")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lock not held by this owner")
)

// Mutex is a single-owner lock stored under one Redis key.  A watchdog keeps
// extending the TTL while the lock is held.
type Mutex struct {
	client *Client
	key    string
	value  string
	config lockConfig
	logger logging.Logger

	mu             sync.Mutex
	watchdogCancel context.CancelFunc
	watchdogDone   chan struct{}
}

type LockOption func(*lockConfig)

func WithLockTTL(ttl time.Duration) LockOption {
	return func(c *lockConfig) { c.ttl = ttl }
}

func WithRetryDelay(delay time.Duration) LockOption {
	return func(c *lockConfig) { c.retryDelay = delay }
}

func WithRetryCount(count int) LockOption {
	return func(c *lockConfig) { c.retryCount = count }
}

func WithWatchdog(enabled bool) LockOption {
	return func(c *lockConfig) { c.watchdogEnabled = enabled }
}

type lockConfig struct {
	ttl              time.Duration
	retryDelay       time.Duration
	retryCount       int
	watchdogEnabled  bool
	watchdogInterval time.Duration
}

// NewMutex returns an unlocked mutex named name.
func (c *Client) NewMutex(name string, opts ...LockOption) *Mutex {
	cfg := lockConfig{
		ttl:        30 * time.Second,
		retryDelay: 100 * time.Millisecond,
		retryCount: 30,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.watchdogInterval = cfg.ttl / 3

	return &Mutex{
		client: c,
		key:    c.Key("lock", name),
		value:  uuid.NewString(),
		config: cfg,
		logger: c.logger,
	}
}

var mutexUnlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var mutexExtendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Lock retries until the lock is taken, the retries run out or ctx ends.
func (m *Mutex) Lock(ctx context.Context) error {
	for i := 0; i <= m.config.retryCount; i++ {
		ok, err := m.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if i == m.config.retryCount {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "waiting for lock")
		case <-time.After(m.config.retryDelay):
		}
	}
	return ErrLockNotAcquired.WithDetail("key=" + m.key)
}

func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	rdb, err := m.client.conn()
	if err != nil {
		return false, err
	}
	ok, err := rdb.SetNX(ctx, m.key, m.value, m.config.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to set lock")
	}
	if ok && m.config.watchdogEnabled {
		m.startWatchdog()
	}
	return ok, nil
}

func (m *Mutex) Unlock(ctx context.Context) error {
	m.stopWatchdog()
	rdb, err := m.client.conn()
	if err != nil {
		return err
	}
	res, err := mutexUnlockScript.Run(ctx, rdb, []string{m.key}, m.value).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to release lock")
	}
	if res == 0 {
		return ErrLockNotHeld.WithDetail("key=" + m.key)
	}
	return nil
}

func (m *Mutex) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	rdb, err := m.client.conn()
	if err != nil {
		return false, err
	}
	res, err := mutexExtendScript.Run(ctx, rdb, []string{m.key}, m.value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (m *Mutex) startWatchdog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watchdogCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.watchdogCancel = cancel
	m.watchdogDone = make(chan struct{})
	go runWatchdog(ctx, m.Extend, m.config.watchdogInterval, m.config.ttl, m.logger, m.watchdogDone)
}

func (m *Mutex) stopWatchdog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watchdogCancel != nil {
		m.watchdogCancel()
		<-m.watchdogDone
		m.watchdogCancel = nil
	}
}

func runWatchdog(ctx context.Context, extendFn func(context.Context, time.Duration) (bool, error), interval, ttl time.Duration, log logging.Logger, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := extendFn(ctx, ttl)
			if err != nil {
				if ctx.Err() == nil {
					log.Error("Watchdog failed to extend lock", logging.Err(err))
				}
				return
			}
			if !ok {
				log.Warn("Watchdog lost lock")
				return
			}
		}
	}
}

//Personal.AI order the ending
