package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/ChargeMatch/internal/config"
	"github.com/turtacn/ChargeMatch/internal/domain/charge"
	"github.com/turtacn/ChargeMatch/internal/testutil"
	apperrors "github.com/turtacn/ChargeMatch/pkg/errors"
)

// memoryObjects is an in-memory ObjectAPI.
type memoryObjects struct {
	mu      sync.Mutex
	buckets map[string]map[string]storedObject
	clock   time.Time
	failPut error
}

type storedObject struct {
	data []byte
	info ObjectInfo
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{buckets: map[string]map[string]storedObject{}, clock: time.Unix(1700000000, 0)}
}

func noSuchKey() error {
	return minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404, Message: "The specified key does not exist."}
}

func (m *memoryObjects) BucketExists(_ context.Context, bucket string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.buckets[bucket]
	return ok, nil
}

func (m *memoryObjects) MakeBucket(_ context.Context, bucket, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket] = map[string]storedObject{}
	return nil
}

func (m *memoryObjects) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, _ string, meta map[string]string) (ObjectInfo, error) {
	if m.failPut != nil {
		return ObjectInfo{}, m.failPut
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, err
	}
	if int64(len(data)) != size {
		return ObjectInfo{}, errors.New("size mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		return ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: 404}
	}
	m.clock = m.clock.Add(time.Minute)
	// S3 returns user metadata under canonical header names.
	canon := map[string]string{}
	for k, v := range meta {
		canon[textproto.CanonicalMIMEHeaderKey(k)] = v
	}
	info := ObjectInfo{Key: key, Size: size, ETag: "etag-" + key, LastModified: m.clock, Metadata: canon}
	b[key] = storedObject{data: data, info: info}
	return info, nil
}

func (m *memoryObjects) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.buckets[bucket][key]
	if !ok {
		return nil, ObjectInfo{}, noSuchKey()
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.info, nil
}

func (m *memoryObjects) ListObjects(_ context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for k, o := range m.buckets[bucket] {
		if strings.HasPrefix(k, prefix) {
			out = append(out, o.info)
		}
	}
	return out, nil
}

func (m *memoryObjects) RemoveObject(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket][key]; !ok {
		return noSuchKey()
	}
	delete(m.buckets[bucket], key)
	return nil
}

func (m *memoryObjects) raw(bucket, key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buckets[bucket][key].data
}

type SnapshotStoreSuite struct {
	suite.Suite
	api   *memoryObjects
	store *SnapshotStore
	log   *testutil.MockLogger
	ctx   context.Context
}

func (s *SnapshotStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.api = newMemoryObjects()
	s.log = testutil.NewMockLogger()
	require.NoError(s.T(), EnsureBucket(s.ctx, s.api, "snapshots", "us-east-1", s.log))
	s.store = NewSnapshotStore(s.api, "snapshots", s.log)
}

func sampleData() *charge.RepositoryData {
	return &charge.RepositoryData{
		IACM: charge.ChargeTable{
			0: {"C": {-0.48}, "HC": {0.118, 0.118, 0.118, 0.118}},
			1: {"C|HC,HC,HC,HC": {-0.48}},
		},
		Elem: charge.ChargeTable{
			0: {"C": {-0.48}, "H": {0.118, 0.118}},
		},
	}
}

func (s *SnapshotStoreSuite) TestPutGetRoundTrip() {
	info, err := s.store.Put(s.ctx, "releases/v1", sampleData())
	s.Require().NoError(err)
	s.Equal("releases/v1.yaml.zst", info.Key)
	s.Equal(3, info.IACMKeys)
	s.Equal(2, info.ElemKeys)
	s.True(s.log.HasMessage("info", "stored repository snapshot"))

	raw := s.api.raw("snapshots", info.Key)
	s.Equal([]byte{0x28, 0xb5, 0x2f, 0xfd}, raw[:4], "zstd frame magic")

	got, err := s.store.Get(s.ctx, "releases/v1")
	s.Require().NoError(err)
	s.Equal(sampleData(), got)

	repo, err := s.store.LoadRepository(s.ctx, "releases/v1.yaml.zst")
	s.Require().NoError(err)
	vals, ok, err := repo.IACM.Lookup(s.ctx, 0, "HC")
	s.Require().NoError(err)
	s.True(ok)
	s.Len(vals, 4)
}

func (s *SnapshotStoreSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, "nope")
	s.True(apperrors.IsNotFound(err))
}

func (s *SnapshotStoreSuite) TestGetCorrupt() {
	_, err := s.api.PutObject(s.ctx, "snapshots", "bad.yaml.zst", strings.NewReader("plain text"), 10, "text/plain", nil)
	s.Require().NoError(err)
	_, err = s.store.Get(s.ctx, "bad")
	s.True(apperrors.IsCode(err, apperrors.ErrCodeSerialization))
}

func (s *SnapshotStoreSuite) TestPutFailures() {
	_, err := s.store.Put(s.ctx, "", sampleData())
	s.True(apperrors.IsValidation(err))

	s.api.failPut = errors.New("connection reset")
	_, err = s.store.Put(s.ctx, "x", sampleData())
	s.True(apperrors.IsCode(err, apperrors.CodeStorageError))
}

func (s *SnapshotStoreSuite) TestListNewestFirst() {
	_, err := s.store.Put(s.ctx, "releases/v1", sampleData())
	s.Require().NoError(err)
	_, err = s.store.Put(s.ctx, "releases/v2", &charge.RepositoryData{})
	s.Require().NoError(err)
	_, err = s.api.PutObject(s.ctx, "snapshots", "releases/README", strings.NewReader("x"), 1, "text/plain", nil)
	s.Require().NoError(err)

	list, err := s.store.List(s.ctx, "releases/")
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("releases/v2.yaml.zst", list[0].Key)
	s.Equal(0, list[0].IACMKeys)
	s.Equal("releases/v1.yaml.zst", list[1].Key)
	s.Equal(3, list[1].IACMKeys)
}

func (s *SnapshotStoreSuite) TestDelete() {
	_, err := s.store.Put(s.ctx, "old", sampleData())
	s.Require().NoError(err)
	s.NoError(s.store.Delete(s.ctx, "old"))
	s.NoError(s.store.Delete(s.ctx, "old"))
	_, err = s.store.Get(s.ctx, "old")
	s.True(apperrors.IsNotFound(err))
}

func (s *SnapshotStoreSuite) TestHealthCheck() {
	s.NoError(s.store.HealthCheck(s.ctx))
	missing := NewSnapshotStore(s.api, "other", nil)
	s.True(apperrors.IsNotFound(missing.HealthCheck(s.ctx)))
}

func TestSnapshotStoreSuite(t *testing.T) {
	suite.Run(t, new(SnapshotStoreSuite))
}

func TestEnsureBucket_Creates(t *testing.T) {
	api := newMemoryObjects()
	log := testutil.NewMockLogger()
	require.NoError(t, EnsureBucket(context.Background(), api, "b", "", log))
	require.NoError(t, EnsureBucket(context.Background(), api, "b", "", log))
	ok, _ := api.BucketExists(context.Background(), "b")
	assert.True(t, ok)
	assert.Len(t, log.GetMessages(), 1)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "a.yaml.zst", ObjectKey("a"))
	assert.Equal(t, "a.yaml.zst", ObjectKey("a.yaml.zst"))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(noSuchKey()))
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchBucket"}))
	assert.False(t, isNotFound(errors.New("boom")))
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	_, _, err := NewClient(config.MinIOConfig{}, nil)
	assert.True(t, apperrors.IsValidation(err))
}

//Personal.AI order the ending
