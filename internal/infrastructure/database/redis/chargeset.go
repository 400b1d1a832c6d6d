package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/coocood/freecache"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/ChargeMatch/internal/domain/charge"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// CacheRecorder receives L1 hit/miss events.
type CacheRecorder interface {
	RecordCacheAccess(cache string, hit bool)
}

type nopCacheRecorder struct{}

func (nopCacheRecorder) RecordCacheAccess(string, bool) {}

// cacheName labels L1 events.
const cacheName = "charge_l1"

// absent is the L1 payload for keys known to be missing from Redis.
var absent = []byte{0}

// ChargeSet is a charge.ChargeSet served from Redis hashes with a local
// freecache in front.  The shell list is read once at construction.
type ChargeSet struct {
	client   *Client
	kind     string
	shells   []int
	l1       *freecache.Cache
	l1TTL    int
	sf       singleflight.Group
	recorder CacheRecorder
	logger   logging.Logger
}

type ChargeSetOption func(*ChargeSet)

// WithLocalCache shares cache between charge sets.  ttl rounds down to whole
// seconds; zero keeps entries until evicted.
func WithLocalCache(cache *freecache.Cache, ttl time.Duration) ChargeSetOption {
	return func(s *ChargeSet) {
		s.l1 = cache
		s.l1TTL = int(ttl / time.Second)
	}
}

func WithCacheRecorder(r CacheRecorder) ChargeSetOption {
	return func(s *ChargeSet) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewChargeSet opens the charge set of the given kind.
func NewChargeSet(ctx context.Context, client *Client, kind string, opts ...ChargeSetOption) (*ChargeSet, error) {
	if kind != charge.KindIACM && kind != charge.KindElem {
		return nil, errors.InvalidParam("unknown charge set kind").WithDetail("kind=" + kind)
	}
	s := &ChargeSet{client: client, kind: kind, recorder: nopCacheRecorder{}, logger: client.logger}
	for _, opt := range opts {
		opt(s)
	}

	shells, err := readShells(ctx, client, kind)
	if err != nil {
		return nil, err
	}
	s.shells = shells
	return s, nil
}

func readShells(ctx context.Context, client *Client, kind string) ([]int, error) {
	rdb, err := client.conn()
	if err != nil {
		return nil, err
	}
	members, err := rdb.SMembers(ctx, client.Key(kind, "shells")).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRepositoryUnavailable, "failed to read shells").
			WithDetail("kind=" + kind)
	}
	shells := make([]int, 0, len(members))
	for _, m := range members {
		n, err := strconv.Atoi(m)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "malformed shell entry").
				WithDetail(fmt.Sprintf("kind=%s member=%q", kind, m))
		}
		shells = append(shells, n)
	}
	sort.Ints(shells)
	return shells, nil
}

func (s *ChargeSet) Shells() []int {
	return append([]int(nil), s.shells...)
}

func (s *ChargeSet) HasShell(shell int) bool {
	i := sort.SearchInts(s.shells, shell)
	return i < len(s.shells) && s.shells[i] == shell
}

func (s *ChargeSet) shellKey(shell int) string {
	return s.client.Key(s.kind, strconv.Itoa(shell))
}

// Lookup reads key from the L1 cache, falling back to HGET.  Concurrent
// misses on one key share a single round trip.
func (s *ChargeSet) Lookup(ctx context.Context, shell int, key charge.CanonicalKey) ([]float64, bool, error) {
	if !s.HasShell(shell) {
		return nil, false, nil
	}
	l1Key := []byte(fmt.Sprintf("%s|%d|%s", s.kind, shell, key))
	if s.l1 != nil {
		if raw, err := s.l1.Get(l1Key); err == nil {
			s.recorder.RecordCacheAccess(cacheName, true)
			return decodeCached(raw)
		}
		s.recorder.RecordCacheAccess(cacheName, false)
	}

	v, err, _ := s.sf.Do(string(l1Key), func() (interface{}, error) {
		rdb, err := s.client.conn()
		if err != nil {
			return nil, err
		}
		raw, err := rdb.HGet(ctx, s.shellKey(shell), string(key)).Bytes()
		if stderrors.Is(err, redis.Nil) {
			raw = absent
		} else if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeRepositoryUnavailable, "charge lookup failed").
				WithDetail(fmt.Sprintf("kind=%s shell=%d", s.kind, shell))
		}
		if s.l1 != nil {
			if err := s.l1.Set(l1Key, raw, s.l1TTL); err != nil {
				s.logger.Debug("l1 cache set failed", logging.Err(err))
			}
		}
		return raw, nil
	})
	if err != nil {
		return nil, false, err
	}
	return decodeCached(v.([]byte))
}

func decodeCached(raw []byte) ([]float64, bool, error) {
	if len(raw) == 1 && raw[0] == absent[0] {
		return nil, false, nil
	}
	var vals []float64
	if err := json.Unmarshal(raw, &vals); err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeSerialization, "malformed charge list")
	}
	if len(vals) == 0 {
		return nil, false, nil
	}
	return vals, true, nil
}

// Table reads every shell hash.
func (s *ChargeSet) Table(ctx context.Context) (charge.ChargeTable, error) {
	rdb, err := s.client.conn()
	if err != nil {
		return nil, err
	}
	table := make(charge.ChargeTable, len(s.shells))
	for _, shell := range s.shells {
		fields, err := rdb.HGetAll(ctx, s.shellKey(shell)).Result()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeRepositoryUnavailable, "failed to read shell").
				WithDetail(fmt.Sprintf("kind=%s shell=%d", s.kind, shell))
		}
		keys := make(map[charge.CanonicalKey][]float64, len(fields))
		for k, raw := range fields {
			vals, ok, err := decodeCached([]byte(raw))
			if err != nil {
				return nil, err
			}
			if ok {
				keys[charge.CanonicalKey(k)] = vals
			}
		}
		table[shell] = keys
	}
	return table, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Repository
// ─────────────────────────────────────────────────────────────────────────────

// LoadRepository opens both charge sets over client.
func LoadRepository(ctx context.Context, client *Client, opts ...ChargeSetOption) (*charge.Repository, error) {
	iacm, err := NewChargeSet(ctx, client, charge.KindIACM, opts...)
	if err != nil {
		return nil, err
	}
	elem, err := NewChargeSet(ctx, client, charge.KindElem, opts...)
	if err != nil {
		return nil, err
	}
	return charge.NewRepository(iacm, elem), nil
}

// Publish replaces the stored repository with data.  Concurrent publishers
// are serialised through a Redis mutex; the swap itself is one MULTI block.
func Publish(ctx context.Context, client *Client, data *charge.RepositoryData) error {
	lock := client.NewMutex("publish", WithWatchdog(true))
	if err := lock.Lock(ctx); err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(context.Background()); err != nil {
			client.logger.Warn("failed to release publish lock", logging.Err(err))
		}
	}()

	rdb, err := client.conn()
	if err != nil {
		return err
	}

	old := make(map[string][]int, 2)
	for _, kind := range []string{charge.KindIACM, charge.KindElem} {
		shells, err := readShells(ctx, client, kind)
		if err != nil {
			return err
		}
		old[kind] = shells
	}

	_, err = rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, kind := range []string{charge.KindIACM, charge.KindElem} {
			stale := []string{client.Key(kind, "shells")}
			for _, shell := range old[kind] {
				stale = append(stale, client.Key(kind, strconv.Itoa(shell)))
			}
			p.Del(ctx, stale...)

			table := data.Table(kind)
			for shell, keys := range table {
				if len(keys) == 0 {
					continue
				}
				fields := make(map[string]interface{}, len(keys))
				for k, vals := range keys {
					raw, err := json.Marshal(vals)
					if err != nil {
						return err
					}
					fields[string(k)] = raw
				}
				p.HSet(ctx, client.Key(kind, strconv.Itoa(shell)), fields)
				p.SAdd(ctx, client.Key(kind, "shells"), shell)
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeRepositoryUnavailable, "failed to publish repository")
	}

	client.logger.Info("published charge repository",
		logging.Int("iacm_shells", len(data.IACM)),
		logging.Int("elem_shells", len(data.Elem)))
	return nil
}

//Personal.AI order the ending
