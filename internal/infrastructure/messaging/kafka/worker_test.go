package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChargeMatch/internal/testutil"
	apperrors "github.com/turtacn/ChargeMatch/pkg/errors"
	ctypes "github.com/turtacn/ChargeMatch/pkg/types/charge"
)

type stubCharger struct {
	calls atomic.Int64
	fn    func(req *ctypes.ChargeRequest) (*ctypes.ChargeResponse, error)
}

func (s *stubCharger) Charge(_ context.Context, req *ctypes.ChargeRequest) (*ctypes.ChargeResponse, error) {
	s.calls.Add(1)
	return s.fn(req)
}

func okCharger() *stubCharger {
	return &stubCharger{fn: func(req *ctypes.ChargeRequest) (*ctypes.ChargeResponse, error) {
		return &ctypes.ChargeResponse{RunID: "run-1", Variant: req.Variant, Molecule: req.Molecule}, nil
	}}
}

func newJob(t *testing.T) *Message {
	t.Helper()
	out, _, err := NewJobMessage("charge.jobs", *testutil.ChargeRequest(testutil.MethaneDocument(false), ctypes.VariantDP))
	require.NoError(t, err)
	return &Message{Topic: out.Topic, Key: out.Key, Value: out.Value, Headers: out.Headers}
}

func decodePublished(t *testing.T, msg *ProducerMessage) *ctypes.ChargeResult {
	t.Helper()
	var res ctypes.ChargeResult
	require.NoError(t, json.Unmarshal(msg.Value, &res))
	return &res
}

func TestWorker_Success(t *testing.T) {
	results := &recordingPublisher{}
	w := NewWorker(okCharger(), results, "charge.results", nil)
	job := newJob(t)

	require.NoError(t, w.Handle(context.Background(), job))

	out := results.published()
	require.Len(t, out, 1)
	assert.Equal(t, "charge.results", out[0].Topic)
	assert.Equal(t, string(job.Key), string(out[0].Key))
	assert.Equal(t, "run-1", out[0].Headers[HeaderRunID])

	res := decodePublished(t, out[0])
	assert.Equal(t, string(job.Key), res.JobID)
	require.NotNil(t, res.Response)
	assert.Nil(t, res.Error)
	assert.Equal(t, ctypes.VariantDP, res.Response.Variant)
}

func TestWorker_ChargeFailureIsPublished(t *testing.T) {
	results := &recordingPublisher{}
	charger := &stubCharger{fn: func(*ctypes.ChargeRequest) (*ctypes.ChargeResponse, error) {
		return nil, apperrors.New(apperrors.ErrCodeSolverInfeasible, "no assignment within tolerance")
	}}
	log := testutil.NewMockLogger()
	w := NewWorker(charger, results, "charge.results", log)

	require.NoError(t, w.Handle(context.Background(), newJob(t)))

	out := results.published()
	require.Len(t, out, 1)
	res := decodePublished(t, out[0])
	assert.Nil(t, res.Response)
	require.NotNil(t, res.Error)
	assert.Equal(t, string(apperrors.ErrCodeSolverInfeasible), res.Error.Code)
	assert.Equal(t, string(apperrors.ErrCodeSolverInfeasible), out[0].Headers[HeaderErrorCode])

	entry, ok := log.Find("info", "charge job failed")
	require.True(t, ok)
	jobID, _ := entry.Field(HeaderJobID)
	assert.Equal(t, res.JobID, jobID)
}

func TestWorker_TransientFailureIsRetried(t *testing.T) {
	results := &recordingPublisher{}
	charger := &stubCharger{fn: func(*ctypes.ChargeRequest) (*ctypes.ChargeResponse, error) {
		return nil, apperrors.New(apperrors.ErrCodeRepositoryUnavailable, "redis down")
	}}
	w := NewWorker(charger, results, "charge.results", nil)

	err := w.Handle(context.Background(), newJob(t))
	require.Error(t, err)
	assert.False(t, IsNonRetryable(err))
	assert.Empty(t, results.published())
}

func TestWorker_MalformedJobIsNotRetried(t *testing.T) {
	charger := okCharger()
	w := NewWorker(charger, &recordingPublisher{}, "charge.results", nil)

	err := w.Handle(context.Background(), &Message{Value: []byte("{")})
	assert.True(t, IsNonRetryable(err))
	assert.Zero(t, charger.calls.Load())
}

func TestWorker_PublishFailureIsRetried(t *testing.T) {
	w := NewWorker(okCharger(), &recordingPublisher{err: errors.New("broker down")}, "charge.results", nil)
	err := w.Handle(context.Background(), newJob(t))
	require.Error(t, err)
	assert.False(t, IsNonRetryable(err))
}

func TestWorker_WithConsumer(t *testing.T) {
	job := newJob(t)
	reader := newMockReader(
		kafka.Message{Topic: "charge.jobs", Offset: 1, Key: job.Key, Value: job.Value},
		kafka.Message{Topic: "charge.jobs", Offset: 2, Value: []byte("garbage")},
	)
	results := &recordingPublisher{}
	dlq := &recordingPublisher{}
	rec := &countingJobRecorder{}

	cfg := newTestConsumerConfig()
	cfg.Concurrency = 2
	c := newConsumerWithReader(reader, dlq, cfg, rec, nil)
	c.Subscribe("charge.jobs", NewWorker(okCharger(), results, "charge.results", nil).Handle)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return reader.commits() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	assert.Len(t, results.published(), 1)
	dead := dlq.published()
	require.Len(t, dead, 1)
	assert.Equal(t, "garbage", string(dead[0].Value))
	assert.Equal(t, string(apperrors.ErrCodeSerialization), dead[0].Headers[HeaderErrorCode])
	assert.Equal(t, 1, rec.count("success"))
	assert.Equal(t, 1, rec.count("dead_letter"))
	assert.Zero(t, rec.count("retry"))
}

//Personal.AI order the ending
