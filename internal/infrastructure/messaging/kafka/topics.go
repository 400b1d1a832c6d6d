package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/turtacn/ChargeMatch/internal/config"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/pkg/errors"
	ctypes "github.com/turtacn/ChargeMatch/pkg/types/charge"
)

// Message headers set by ChargeMatch producers.
const (
	HeaderJobID         = "job_id"
	HeaderRunID         = "run_id"
	HeaderSchemaVersion = "schema_version"
	HeaderOriginalTopic = "original_topic"
	HeaderErrorCode     = "error_code"
	HeaderErrorMessage  = "error_message"

	SchemaVersion = "v1"
)

// ─────────────────────────────────────────────────────────────────────────────
// Job and result envelopes
// ─────────────────────────────────────────────────────────────────────────────

// NewJobMessage wraps req in a ChargeJob with a fresh job ID and returns the
// message to publish on topic, keyed by that ID.
func NewJobMessage(topic string, req ctypes.ChargeRequest) (*ProducerMessage, string, error) {
	job := ctypes.ChargeJob{JobID: uuid.NewString(), Request: req}
	val, err := json.Marshal(job)
	if err != nil {
		return nil, "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal charge job")
	}
	return &ProducerMessage{
		Topic: topic,
		Key:   []byte(job.JobID),
		Value: val,
		Headers: map[string]string{
			HeaderJobID:         job.JobID,
			HeaderSchemaVersion: SchemaVersion,
		},
		Timestamp: time.Now().UTC(),
	}, job.JobID, nil
}

// DecodeJob parses a ChargeJob.  A job without an ID takes the message key.
func DecodeJob(msg *Message) (*ctypes.ChargeJob, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty charge job").
			WithDetail("offset=" + strconv.FormatInt(msg.Offset, 10))
	}
	var job ctypes.ChargeJob
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal charge job").
			WithDetail("offset=" + strconv.FormatInt(msg.Offset, 10))
	}
	if job.JobID == "" {
		job.JobID = string(msg.Key)
	}
	return &job, nil
}

// NewResultMessage renders res for topic, keyed by its job ID.
func NewResultMessage(topic string, res *ctypes.ChargeResult) (*ProducerMessage, error) {
	val, err := json.Marshal(res)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal charge result")
	}
	headers := map[string]string{
		HeaderJobID:         res.JobID,
		HeaderSchemaVersion: SchemaVersion,
	}
	if res.RunID != "" {
		headers[HeaderRunID] = res.RunID
	}
	if res.Error != nil {
		headers[HeaderErrorCode] = res.Error.Code
	}
	return &ProducerMessage{Topic: topic, Key: []byte(res.JobID), Value: val, Headers: headers}, nil
}

// DecodeResult parses a ChargeResult.
func DecodeResult(msg *Message) (*ctypes.ChargeResult, error) {
	var res ctypes.ChargeResult
	if err := json.Unmarshal(msg.Value, &res); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal charge result")
	}
	return &res, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Topic administration
// ─────────────────────────────────────────────────────────────────────────────

// TopicConfig describes a topic to create.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates the charge topics.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeMessageQueueError, "failed to dial kafka").
			WithDetail("broker=" + brokers[0])
	}
	return newTopicManager(conn, logger), nil
}

func newTopicManager(conn ConnInterface, logger logging.Logger) *TopicManager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TopicManager{conn: conn, logger: logger}
}

// CreateTopic creates cfg.Name.  An existing topic is not an error.
func (m *TopicManager) CreateTopic(ctx context.Context, cfg TopicConfig) error {
	if cfg.Name == "" {
		return errors.New(errors.ErrCodeValidation, "topic name required")
	}
	if cfg.NumPartitions <= 0 || cfg.ReplicationFactor <= 0 {
		return errors.New(errors.ErrCodeValidation, "partitions and replication factor must be > 0").
			WithDetail("topic=" + cfg.Name)
	}

	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.RetentionMs > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{
			ConfigName:  "retention.ms",
			ConfigValue: strconv.FormatInt(cfg.RetentionMs, 10),
		})
	}

	if err := m.conn.CreateTopics(kCfg); err != nil {
		if stderrors.Is(err, kafka.TopicAlreadyExists) {
			return nil
		}
		if exists, _ := m.TopicExists(ctx, cfg.Name); exists {
			return nil
		}
		return errors.Wrap(err, errors.CodeMessageQueueError, "failed to create topic").WithDetail("topic=" + cfg.Name)
	}
	m.logger.Info("Topic created", logging.String("topic", cfg.Name))
	return nil
}

func (m *TopicManager) TopicExists(_ context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}

// EnsureTopics creates every topic in topics.
func (m *TopicManager) EnsureTopics(ctx context.Context, topics []TopicConfig) error {
	for _, topic := range topics {
		if err := m.CreateTopic(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

func (m *TopicManager) Close() error {
	return m.conn.Close()
}

// DefaultTopics returns the job, result and dead-letter topics named in cfg.
func DefaultTopics(cfg config.KafkaConfig) []TopicConfig {
	const day = int64(24 * time.Hour / time.Millisecond)
	topics := []TopicConfig{
		{Name: cfg.JobTopic, NumPartitions: 6, ReplicationFactor: 1, RetentionMs: 7 * day},
		{Name: cfg.ResultTopic, NumPartitions: 6, ReplicationFactor: 1, RetentionMs: 7 * day},
	}
	if cfg.DLQTopic != "" {
		topics = append(topics, TopicConfig{Name: cfg.DLQTopic, NumPartitions: 1, ReplicationFactor: 1, RetentionMs: 30 * day})
	}
	return topics
}

//Personal.AI order the ending
