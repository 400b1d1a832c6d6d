// Package repostore opens and writes charge repositories in whichever backend
// the configuration names: a YAML/JSON file, PostgreSQL, Redis or a MinIO
// snapshot.  It is the only place binaries and commands choose a backend.
package repostore

import (
	"context"
	"fmt"

	"github.com/coocood/freecache"

	"github.com/turtacn/ChargeMatch/internal/config"
	"github.com/turtacn/ChargeMatch/internal/domain/charge"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/database/postgres"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/database/redis"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/storage/minio"
	"github.com/turtacn/ChargeMatch/pkg/errors"
	ctypes "github.com/turtacn/ChargeMatch/pkg/types/charge"
)

// Backend names accepted by Open and Export.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceRedis    = "redis"
	SourceMinIO    = "minio"
)

// Sources lists every backend name.
func Sources() []string {
	return []string{SourceFile, SourcePostgres, SourceRedis, SourceMinIO}
}

// Options tune Open and Export.
type Options struct {
	Logger        logging.Logger
	CacheRecorder redis.CacheRecorder
}

func (o Options) logger() logging.Logger {
	if o.Logger == nil {
		return logging.NewNopLogger()
	}
	return o.Logger
}

// Handle is an opened repository plus the connections backing it.
type Handle struct {
	Repository *charge.Repository
	// Data is the materialised repository; nil when lookups go to Redis.
	Data   *charge.RepositoryData
	Source string

	ping    func(ctx context.Context) error
	closers []func() error
}

// Stats returns per-shell key counts, or nil when Data is nil.
func (h *Handle) Stats() []ctypes.RepositoryStats {
	if h.Data == nil {
		return nil
	}
	return h.Data.Stats()
}

// Ping checks the backend the repository is served from.  In-memory
// repositories are always reachable.
func (h *Handle) Ping(ctx context.Context) error {
	if h.ping == nil {
		return nil
	}
	return h.ping(ctx)
}

// Close releases every connection opened for the handle.
func (h *Handle) Close() error {
	var first error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	h.closers = nil
	return first
}

// Open loads the repository from source, using the matching section of cfg.
// File, Postgres and MinIO repositories are read into memory; a Redis
// repository is served live with a freecache L1 in front of it.
func Open(ctx context.Context, cfg *config.Config, source string, opts Options) (*Handle, error) {
	log := opts.logger()
	h := &Handle{Source: source}

	switch source {
	case SourceFile:
		data, err := charge.ReadRepositoryFile(cfg.Repository.Path)
		if err != nil {
			return nil, err
		}
		h.Data = data

	case SourcePostgres:
		conn, err := postgres.NewConnection(cfg.Database, log)
		if err != nil {
			return nil, unavailable(err, source)
		}
		h.closers = append(h.closers, conn.Close)
		data, err := repositories.NewChargeRepo(conn, log).LoadData(ctx)
		if err != nil {
			_ = h.Close()
			return nil, err
		}
		h.Data = data
		h.ping = conn.HealthCheck

	case SourceRedis:
		client, err := redis.NewClient(cfg.Redis, log)
		if err != nil {
			return nil, unavailable(err, source)
		}
		h.closers = append(h.closers, client.Close)
		setOpts := []redis.ChargeSetOption{}
		if cfg.Redis.LocalCacheBytes > 0 {
			setOpts = append(setOpts, redis.WithLocalCache(freecache.NewCache(cfg.Redis.LocalCacheBytes), cfg.Redis.LocalCacheTTL))
		}
		if opts.CacheRecorder != nil {
			setOpts = append(setOpts, redis.WithCacheRecorder(opts.CacheRecorder))
		}
		repo, err := redis.LoadRepository(ctx, client, setOpts...)
		if err != nil {
			_ = h.Close()
			return nil, err
		}
		h.Repository = repo
		h.ping = client.Ping

	case SourceMinIO:
		store, err := snapshotStore(cfg, log)
		if err != nil {
			return nil, unavailable(err, source)
		}
		data, err := store.Get(ctx, cfg.Repository.SnapshotKey)
		if err != nil {
			return nil, err
		}
		h.Data = data

	default:
		return nil, unknownSource(source)
	}

	if h.Repository == nil {
		h.Repository = h.Data.Repository()
	}
	log.Info("charge repository opened",
		logging.String("source", source),
		logging.Ints("iacm_shells", h.Repository.IACM.Shells()),
		logging.Ints("elem_shells", h.Repository.Elem.Shells()))
	return h, nil
}

// Materialize returns the full contents of h, reading them from the backend
// when the handle serves lookups live.
func (h *Handle) Materialize(ctx context.Context) (*charge.RepositoryData, error) {
	if h.Data != nil {
		return h.Data, nil
	}
	return charge.Snapshot(ctx, h.Repository)
}

// Export writes data to target, replacing what the backend held.
func Export(ctx context.Context, cfg *config.Config, target string, data *charge.RepositoryData, opts Options) error {
	log := opts.logger()

	switch target {
	case SourceFile:
		return charge.SaveRepositoryFile(cfg.Repository.Path, data)

	case SourcePostgres:
		conn, err := postgres.NewConnection(cfg.Database, log)
		if err != nil {
			return unavailable(err, target)
		}
		defer conn.Close()
		return repositories.NewChargeRepo(conn, log).SaveRepository(ctx, data)

	case SourceRedis:
		client, err := redis.NewClient(cfg.Redis, log)
		if err != nil {
			return unavailable(err, target)
		}
		defer client.Close()
		return redis.Publish(ctx, client, data)

	case SourceMinIO:
		store, err := snapshotStore(cfg, log)
		if err != nil {
			return unavailable(err, target)
		}
		info, err := store.Put(ctx, cfg.Repository.SnapshotKey, data)
		if err != nil {
			return err
		}
		log.Info("charge repository snapshot stored",
			logging.String("key", info.Key),
			logging.Int64("bytes", info.Size))
		return nil
	}
	return unknownSource(target)
}

func snapshotStore(cfg *config.Config, log logging.Logger) (*minio.SnapshotStore, error) {
	api, bucket, err := minio.NewClient(cfg.MinIO, log)
	if err != nil {
		return nil, err
	}
	return minio.NewSnapshotStore(api, bucket, log), nil
}

func unavailable(err error, source string) error {
	if errors.GetCode(err) != errors.CodeUnknown {
		return err
	}
	return errors.Wrap(err, errors.ErrCodeRepositoryUnavailable, "charge repository backend unavailable").
		WithDetail("source=" + source)
}

func unknownSource(source string) error {
	return errors.InvalidParam("unknown repository source").
		WithDetail(fmt.Sprintf("source=%q expected one of %v", source, Sources()))
}

//Personal.AI order the ending
