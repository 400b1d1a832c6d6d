package kafka

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

var (
	ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")
)

// Message is a message read from a topic.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one message.  Returning an error schedules a
// retry unless the error is marked with NonRetryable.
type MessageHandler func(ctx context.Context, msg *Message) error

type nonRetryable struct{ err error }

func (e *nonRetryable) Error() string { return e.err.Error() }
func (e *nonRetryable) Unwrap() error { return e.err }

// NonRetryable marks err so the consumer dead-letters the message without
// retrying it.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryable{err: err}
}

// IsNonRetryable reports whether err was marked with NonRetryable.
func IsNonRetryable(err error) bool {
	var nr *nonRetryable
	return stderrors.As(err, &nr)
}

// JobRecorder receives per-message outcomes.  Status is "success", "retry"
// or "dead_letter".
type JobRecorder interface {
	RecordJob(status string, duration time.Duration)
	TrackActiveJob() func()
}

type nopJobRecorder struct{}

func (nopJobRecorder) RecordJob(string, time.Duration) {}
func (nopJobRecorder) TrackActiveJob() func()          { return func() {} }

// Publisher writes a message; *Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// RetryConfig defines retry behaviour for failing handlers.
type RetryConfig struct {
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	DeadLetterTopic string
}

// ConsumerConfig holds configuration for the Consumer.
type ConsumerConfig struct {
	Brokers         []string
	GroupID         string
	Topics          []string
	AutoOffsetReset string // "earliest" | "latest"
	Concurrency     int
	SessionTimeout  time.Duration
	MaxWait         time.Duration
	FetchMaxBytes   int
	Security        SecurityConfig
	RetryConfig     RetryConfig
}

// ConsumerMetrics holds consumer counters.
type ConsumerMetrics struct {
	MessagesConsumed     atomic.Int64
	MessagesProcessed    atomic.Int64
	MessagesRetried      atomic.Int64
	MessagesDeadLettered atomic.Int64
	MessagesDropped      atomic.Int64
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.ReaderStats
}

// Consumer reads a consumer group's topics and dispatches messages to
// per-topic handlers on Concurrency goroutines.  Offsets are committed once
// a message has been handled, retried to exhaustion or dead-lettered, so
// delivery is at least once.
type Consumer struct {
	reader     ReaderInterface
	deadLetter Publisher
	config     ConsumerConfig
	logger     logging.Logger
	recorder   JobRecorder

	handlers map[string]MessageHandler
	mu       sync.RWMutex

	running atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error

	metrics *ConsumerMetrics
}

// fetchErrorBackoff is the pause after a failed fetch.
const fetchErrorBackoff = time.Second

func (cfg *ConsumerConfig) applyDefaults() {
	if cfg.AutoOffsetReset == "" {
		cfg.AutoOffsetReset = "earliest"
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = 30 * time.Second
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = 500 * time.Millisecond
	}
	if cfg.FetchMaxBytes == 0 {
		cfg.FetchMaxBytes = 10 << 20
	}
	if cfg.RetryConfig.RetryBackoff == 0 {
		cfg.RetryConfig.RetryBackoff = time.Second
	}
	if cfg.RetryConfig.MaxRetryBackoff == 0 {
		cfg.RetryConfig.MaxRetryBackoff = 30 * time.Second
	}
}

// NewConsumer creates a Consumer.  deadLetter may be nil, in which case
// messages that exhaust their retries are dropped after logging.
func NewConsumer(cfg ConsumerConfig, deadLetter Publisher, recorder JobRecorder, logger logging.Logger) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	tlsCfg, err := cfg.Security.tlsConfig()
	if err != nil {
		return nil, err
	}
	dialer.TLS = tlsCfg
	mech, err := cfg.Security.mechanism()
	if err != nil {
		return nil, err
	}
	dialer.SASLMechanism = mech

	readerCfg := kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		GroupTopics:    cfg.Topics,
		MaxBytes:       cfg.FetchMaxBytes,
		MaxWait:        cfg.MaxWait,
		SessionTimeout: cfg.SessionTimeout,
		StartOffset:    kafka.FirstOffset,
		Dialer:         dialer,
	}
	if cfg.AutoOffsetReset == "latest" {
		readerCfg.StartOffset = kafka.LastOffset
	}
	return newConsumerWithReader(kafka.NewReader(readerCfg), deadLetter, cfg, recorder, logger), nil
}

func newConsumerWithReader(r ReaderInterface, deadLetter Publisher, cfg ConsumerConfig, recorder JobRecorder, logger logging.Logger) *Consumer {
	cfg.applyDefaults()
	if recorder == nil {
		recorder = nopJobRecorder{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Consumer{
		reader:     r,
		deadLetter: deadLetter,
		config:     cfg,
		logger:     logger,
		recorder:   recorder,
		handlers:   make(map[string]MessageHandler),
		metrics:    &ConsumerMetrics{},
	}
}

// Subscribe registers handler for topic, replacing any previous handler.
func (c *Consumer) Subscribe(topic string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	c.logger.Info("Subscribed to topic", logging.String("topic", topic))
}

// Start runs the consumer in the background until ctx ends or Close is
// called.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.runErr = c.run(ctx)
	}()
	c.logger.Info("Kafka consumer started",
		logging.String("group", c.config.GroupID),
		logging.Int("concurrency", c.config.Concurrency))
	return nil
}

// Run consumes in the foreground and returns when ctx ends.
func (c *Consumer) Run(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)
	return c.run(ctx)
}

func (c *Consumer) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	msgs := make(chan kafka.Message)

	g.Go(func() error {
		defer close(msgs)
		for {
			m, err := c.reader.FetchMessage(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				c.logger.Error("FetchMessage failed", logging.Err(err))
				select {
				case <-gctx.Done():
					return nil
				case <-time.After(fetchErrorBackoff):
				}
				continue
			}
			select {
			case msgs <- m:
			case <-gctx.Done():
				return nil
			}
		}
	})
	for i := 0; i < c.config.Concurrency; i++ {
		g.Go(func() error {
			for m := range msgs {
				c.dispatch(gctx, m)
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *Consumer) dispatch(ctx context.Context, m kafka.Message) {
	c.metrics.MessagesConsumed.Add(1)
	msg := &Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Timestamp: m.Time,
		Headers:   make(map[string]string, len(m.Headers)),
	}
	for _, h := range m.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}

	c.mu.RLock()
	handler, ok := c.handlers[m.Topic]
	c.mu.RUnlock()
	if !ok {
		c.logger.Warn("No handler for topic", logging.String("topic", m.Topic))
	} else if !c.process(ctx, msg, handler) {
		// Context ended mid-retry; leave the offset for redelivery.
		return
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.logger.Error("CommitMessages failed",
			logging.String("topic", m.Topic),
			logging.Int64("offset", m.Offset),
			logging.Err(err))
	}
}

// process runs handler with retries and dead-lettering.  It returns false
// only when ctx ended before the message reached a final outcome.
func (c *Consumer) process(ctx context.Context, msg *Message, handler MessageHandler) bool {
	defer c.recorder.TrackActiveJob()()
	start := time.Now()
	rc := c.config.RetryConfig
	backoff := rc.RetryBackoff

	err := handler(ctx, msg)
	for attempt := 0; err != nil && !IsNonRetryable(err) && attempt < rc.MaxRetries; attempt++ {
		c.metrics.MessagesRetried.Add(1)
		c.recorder.RecordJob("retry", time.Since(start))
		c.logger.Warn("Retrying message",
			logging.String("topic", msg.Topic),
			logging.Int64("offset", msg.Offset),
			logging.Int("attempt", attempt+1),
			logging.Err(err))

		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		err = handler(ctx, msg)

		backoff *= 2
		if backoff > rc.MaxRetryBackoff {
			backoff = rc.MaxRetryBackoff
		}
	}
	if err == nil {
		c.metrics.MessagesProcessed.Add(1)
		c.recorder.RecordJob("success", time.Since(start))
		return true
	}
	if ctx.Err() != nil {
		return false
	}

	c.logger.Error("Message processing failed",
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.Bool("retryable", !IsNonRetryable(err)),
		logging.Err(err))
	c.recorder.RecordJob("dead_letter", time.Since(start))
	c.sendToDeadLetter(ctx, msg, err)
	return true
}

func (c *Consumer) sendToDeadLetter(ctx context.Context, msg *Message, cause error) {
	if c.deadLetter == nil || c.config.RetryConfig.DeadLetterTopic == "" {
		c.metrics.MessagesDropped.Add(1)
		return
	}
	headers := make(map[string]string, len(msg.Headers)+3)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[HeaderOriginalTopic] = msg.Topic
	headers[HeaderErrorCode] = string(errors.GetCode(cause))
	headers[HeaderErrorMessage] = cause.Error()

	dl := &ProducerMessage{
		Topic:   c.config.RetryConfig.DeadLetterTopic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
	if err := c.deadLetter.Publish(ctx, dl); err != nil {
		c.metrics.MessagesDropped.Add(1)
		c.logger.Error("Failed to send to dead letter queue", logging.Err(err))
		return
	}
	c.metrics.MessagesDeadLettered.Add(1)
}

// Metrics returns the current counters.
func (c *Consumer) Metrics() (consumed, processed, retried, deadLettered, dropped int64) {
	m := c.metrics
	return m.MessagesConsumed.Load(), m.MessagesProcessed.Load(), m.MessagesRetried.Load(),
		m.MessagesDeadLettered.Load(), m.MessagesDropped.Load()
}

// Close stops a consumer started with Start, waits for in-flight messages
// and closes the reader.  A consumer driven by Run must have returned first.
func (c *Consumer) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.running.CompareAndSwap(true, false) && c.cancel != nil {
		c.cancel()
		<-c.done
	}
	err := c.reader.Close()
	c.logger.Info("Kafka consumer closed",
		logging.Int64("consumed", c.metrics.MessagesConsumed.Load()))
	if err != nil {
		return errors.Wrap(err, errors.CodeMessageQueueError, "failed to close reader")
	}
	return c.runErr
}

// ValidateConsumerConfig validates configuration.
func ValidateConsumerConfig(cfg ConsumerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "brokers required")
	}
	if cfg.GroupID == "" {
		return errors.New(errors.ErrCodeValidation, "group ID required")
	}
	if len(cfg.Topics) == 0 {
		return errors.New(errors.ErrCodeValidation, "at least one topic required")
	}
	if cfg.AutoOffsetReset != "" && cfg.AutoOffsetReset != "earliest" && cfg.AutoOffsetReset != "latest" {
		return errors.New(errors.ErrCodeValidation, "invalid auto offset reset").WithDetail("value=" + cfg.AutoOffsetReset)
	}
	if cfg.RetryConfig.MaxRetries < 0 {
		return errors.New(errors.ErrCodeValidation, "max retries must be >= 0")
	}
	return cfg.Security.validate()
}

//Personal.AI order the ending
