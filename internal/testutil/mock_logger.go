// Package testutil provides shared test doubles and fixtures for ChargeMatch.
package testutil

import (
	"context"
	"sync"

	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
)

// MockLogger implements logging.Logger and records every entry, including
// the fields attached through With and WithContext.
type MockLogger struct {
	sink   *logSink
	fields []logging.Field
}

// LogMessage represents a single log entry captured by MockLogger.
type LogMessage struct {
	Level   string
	Message string
	Fields  []logging.Field
}

// Field returns the value of the named field, if present.
func (m LogMessage) Field(key string) (interface{}, bool) {
	for _, f := range m.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

type logSink struct {
	mu       sync.Mutex
	messages []LogMessage
}

// NewMockLogger creates a new MockLogger instance.
func NewMockLogger() *MockLogger {
	return &MockLogger{sink: &logSink{}}
}

func (m *MockLogger) log(level, msg string, fields []logging.Field) {
	all := make([]logging.Field, 0, len(m.fields)+len(fields))
	all = append(all, m.fields...)
	all = append(all, fields...)

	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	m.sink.messages = append(m.sink.messages, LogMessage{Level: level, Message: msg, Fields: all})
}

func (m *MockLogger) child(fields ...logging.Field) *MockLogger {
	c := &MockLogger{sink: m.sink, fields: make([]logging.Field, 0, len(m.fields)+len(fields))}
	c.fields = append(c.fields, m.fields...)
	c.fields = append(c.fields, fields...)
	return c
}

func (m *MockLogger) Debug(msg string, fields ...logging.Field) { m.log("debug", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...logging.Field)  { m.log("info", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...logging.Field)  { m.log("warn", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...logging.Field) { m.log("error", msg, fields) }
func (m *MockLogger) Fatal(msg string, fields ...logging.Field) { m.log("fatal", msg, fields) }

func (m *MockLogger) With(fields ...logging.Field) logging.Logger { return m.child(fields...) }

func (m *MockLogger) Named(name string) logging.Logger {
	return m.child(logging.String("logger", name))
}

func (m *MockLogger) WithContext(ctx context.Context) logging.Logger {
	if id := logging.RunIDFromContext(ctx); id != "" {
		return m.child(logging.String(logging.FieldRunID, id))
	}
	return m
}

func (m *MockLogger) WithError(err error) logging.Logger { return m.child(logging.Err(err)) }

func (m *MockLogger) Sync() error { return nil }

// GetMessages returns a copy of all logged messages.
func (m *MockLogger) GetMessages() []LogMessage {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	result := make([]LogMessage, len(m.sink.messages))
	copy(result, m.sink.messages)
	return result
}

// Clear removes all logged messages.
func (m *MockLogger) Clear() {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	m.sink.messages = m.sink.messages[:0]
}

// HasMessage checks if a message with the given level and content was logged.
func (m *MockLogger) HasMessage(level, msg string) bool {
	_, ok := m.Find(level, msg)
	return ok
}

// Find returns the first entry with the given level and message.
func (m *MockLogger) Find(level, msg string) (LogMessage, bool) {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	for _, logged := range m.sink.messages {
		if logged.Level == level && logged.Message == msg {
			return logged, true
		}
	}
	return LogMessage{}, false
}

//Personal.AI order the ending
