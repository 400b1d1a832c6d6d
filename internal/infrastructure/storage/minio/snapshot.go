package minio

import (
	"bytes"
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/turtacn/ChargeMatch/internal/domain/charge"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

const (
	snapshotContentType = "application/zstd"
	snapshotSuffix      = ".yaml.zst"

	metaFormat = "format"
	metaIACM   = "iacm-keys"
	metaElem   = "elem-keys"
)

// SnapshotInfo describes a stored repository snapshot.
type SnapshotInfo struct {
	Key       string
	Size      int64
	ETag      string
	CreatedAt time.Time
	IACMKeys  int
	ElemKeys  int
}

// SnapshotStore keeps charge repository snapshots in one bucket as
// zstd-compressed YAML documents.
type SnapshotStore struct {
	api    ObjectAPI
	bucket string
	logger logging.Logger
}

func NewSnapshotStore(api ObjectAPI, bucket string, log logging.Logger) *SnapshotStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &SnapshotStore{api: api, bucket: bucket, logger: log}
}

// ObjectKey maps a snapshot name to its object key.
func ObjectKey(name string) string {
	if strings.HasSuffix(name, snapshotSuffix) {
		return name
	}
	return name + snapshotSuffix
}

// Put stores data under name, replacing any previous snapshot.
func (s *SnapshotStore) Put(ctx context.Context, name string, data *charge.RepositoryData) (*SnapshotInfo, error) {
	if name == "" {
		return nil, errors.InvalidParam("snapshot name required")
	}
	payload, err := compress(data)
	if err != nil {
		return nil, err
	}

	iacm, elem := countKeys(data.IACM), countKeys(data.Elem)
	meta := map[string]string{
		metaFormat: "yaml",
		metaIACM:   strconv.Itoa(iacm),
		metaElem:   strconv.Itoa(elem),
	}
	key := ObjectKey(name)
	info, err := s.api.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), snapshotContentType, meta)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "failed to upload snapshot").
			WithDetail("bucket=" + s.bucket + " key=" + key)
	}
	s.logger.Info("stored repository snapshot",
		logging.String("key", key),
		logging.Int64("bytes", int64(len(payload))),
		logging.Int("iacm_keys", iacm),
		logging.Int("elem_keys", elem))
	return &SnapshotInfo{Key: key, Size: int64(len(payload)), ETag: info.ETag, CreatedAt: info.LastModified, IACMKeys: iacm, ElemKeys: elem}, nil
}

// Get loads the snapshot stored under name.
func (s *SnapshotStore) Get(ctx context.Context, name string) (*charge.RepositoryData, error) {
	key := ObjectKey(name)
	body, _, err := s.api.GetObject(ctx, s.bucket, key)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("snapshot not found").WithDetail("key=" + key)
		}
		return nil, errors.Wrap(err, errors.ErrCodeRepositoryUnavailable, "failed to fetch snapshot").
			WithDetail("key=" + key)
	}
	defer body.Close()

	dec, err := zstd.NewReader(body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to open snapshot stream").WithDetail("key=" + key)
	}
	defer dec.Close()

	data, err := charge.ReadRepositoryData(dec)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode snapshot").WithDetail("key=" + key)
	}
	return data, nil
}

// LoadRepository returns the in-memory repository held by snapshot name.
func (s *SnapshotStore) LoadRepository(ctx context.Context, name string) (*charge.Repository, error) {
	data, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return data.Repository(), nil
}

// List returns every snapshot under prefix, newest first.
func (s *SnapshotStore) List(ctx context.Context, prefix string) ([]SnapshotInfo, error) {
	objs, err := s.api.ListObjects(ctx, s.bucket, prefix)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "failed to list snapshots").WithDetail("bucket=" + s.bucket)
	}
	out := make([]SnapshotInfo, 0, len(objs))
	for _, o := range objs {
		if !strings.HasSuffix(o.Key, snapshotSuffix) {
			continue
		}
		info := SnapshotInfo{Key: o.Key, Size: o.Size, ETag: o.ETag, CreatedAt: o.LastModified}
		info.IACMKeys, _ = strconv.Atoi(metaValue(o.Metadata, metaIACM))
		info.ElemKeys, _ = strconv.Atoi(metaValue(o.Metadata, metaElem))
		out = append(out, info)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete removes snapshot name.  Deleting a missing snapshot is not an error.
func (s *SnapshotStore) Delete(ctx context.Context, name string) error {
	key := ObjectKey(name)
	if err := s.api.RemoveObject(ctx, s.bucket, key); err != nil && !isNotFound(err) {
		return errors.Wrap(err, errors.CodeStorageError, "failed to delete snapshot").WithDetail("key=" + key)
	}
	return nil
}

// HealthCheck reports whether the snapshot bucket is reachable.
func (s *SnapshotStore) HealthCheck(ctx context.Context) error {
	ok, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeRepositoryUnavailable, "snapshot store unreachable")
	}
	if !ok {
		return errors.NotFound("snapshot bucket missing").WithDetail("bucket=" + s.bucket)
	}
	return nil
}

func compress(data *charge.RepositoryData) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to create zstd encoder")
	}
	if err := charge.WriteRepositoryData(enc, data); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to compress snapshot")
	}
	return buf.Bytes(), nil
}

func countKeys(t charge.ChargeTable) int {
	n := 0
	for _, keys := range t {
		n += len(keys)
	}
	return n
}

// metaValue looks key up case-insensitively; S3 returns user metadata with
// canonicalised header names.
func metaValue(meta map[string]string, key string) string {
	if v, ok := meta[key]; ok {
		return v
	}
	for k, v := range meta {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

//Personal.AI order the ending
