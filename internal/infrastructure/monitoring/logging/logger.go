// Package logging provides the structured logging interface and its
// zap-backed implementation.  Every component that requires logging depends
// on the Logger interface defined here; direct use of go.uber.org/zap is
// confined to this package.
//
// Initialisation order in cmd/*/main.go:
//
//  1. Parse configuration.
//  2. Call NewLogger(cfg.Log) → store result in logging.SetDefault.
//  3. Initialise all other components, injecting the Logger instance.
package logging

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Field: structured log field carrier
// ─────────────────────────────────────────────────────────────────────────────

// Field is a typed key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// Canonical field keys shared by every component.
const (
	FieldRunID    = "run_id"
	FieldVariant  = "variant"
	FieldShell    = "shell"
	FieldAtom     = "atom"
	FieldDuration = "duration"
	FieldCode     = "error_code"
)

// String constructs a Field with a string value.
func String(key, val string) Field { return Field{Key: key, Value: val} }

// Int constructs a Field with an int value.
func Int(key string, val int) Field { return Field{Key: key, Value: val} }

// Int64 constructs a Field with an int64 value.
func Int64(key string, val int64) Field { return Field{Key: key, Value: val} }

// Float64 constructs a Field with a float64 value.
func Float64(key string, val float64) Field { return Field{Key: key, Value: val} }

// Bool constructs a Field with a bool value.
func Bool(key string, val bool) Field { return Field{Key: key, Value: val} }

// Err constructs a Field that captures an error under the key "error".
// If err is nil the field value is the string "<nil>".
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any constructs a Field with an arbitrary value.
func Any(key string, val interface{}) Field { return Field{Key: key, Value: val} }

// Duration constructs a Field with a time.Duration value.
func Duration(key string, val time.Duration) Field { return Field{Key: key, Value: val} }

// Ints constructs a Field holding an int slice.
func Ints(key string, val []int) Field { return Field{Key: key, Value: val} }

// ─────────────────────────────────────────────────────────────────────────────
// Logger interface
// ─────────────────────────────────────────────────────────────────────────────

// Logger is the structured logging contract.  Components receive a Logger via
// constructor injection.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// Fatal logs a message at FATAL level and then calls os.Exit(1).
	// Reserve for startup failures.
	Fatal(msg string, fields ...Field)

	// With returns a child Logger that includes the supplied fields in every
	// subsequent log entry.
	With(fields ...Field) Logger

	// Named returns a child Logger whose name is appended to the parent's
	// name with a period separator (e.g., "chargeit" → "chargeit.solver").
	Named(name string) Logger

	// WithContext returns a child Logger carrying the run ID stored in ctx,
	// if any.
	WithContext(ctx context.Context) Logger

	// WithError returns a child Logger carrying err and, for AppErrors, its
	// code.
	WithError(err error) Logger

	// Sync flushes buffered entries.
	Sync() error
}

// ─────────────────────────────────────────────────────────────────────────────
// Context propagation
// ─────────────────────────────────────────────────────────────────────────────

type runIDKey struct{}

// ContextWithRunID stores a charge run identifier in ctx.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run identifier stored in ctx, or "".
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(runIDKey{}).(string); ok {
		return v
	}
	return ""
}

// ─────────────────────────────────────────────────────────────────────────────
// LogConfig: logger construction parameters
// ─────────────────────────────────────────────────────────────────────────────

// FileConfig enables size-based rotation of a log file.
type FileConfig struct {
	// Filename is the log file path; rotation is disabled when empty.
	Filename   string `mapstructure:"filename" yaml:"filename" json:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress" json:"compress"`
}

// LogConfig carries all parameters required to construct a Logger instance.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error" (case-insensitive).
	// Defaults to "info" when empty or unrecognised.
	Level string `mapstructure:"level" yaml:"level" json:"level"`

	// Format is "json" or "console".  Defaults to "json".
	Format string `mapstructure:"format" yaml:"format" json:"format"`

	// OutputPaths lists zap sink URLs or file paths; "stdout" and "stderr"
	// are special values.  Defaults to ["stdout"] when nil.
	OutputPaths []string `mapstructure:"output_paths" yaml:"output_paths" json:"output_paths"`

	// ErrorOutputPaths receives internal zap errors.  Defaults to ["stderr"].
	ErrorOutputPaths []string `mapstructure:"error_output_paths" yaml:"error_output_paths" json:"error_output_paths"`

	// File, when Filename is set, tees entries into a rotating log file.
	File FileConfig `mapstructure:"file" yaml:"file" json:"file"`
}

// ─────────────────────────────────────────────────────────────────────────────
// zapLogger: zap-backed Logger implementation
// ─────────────────────────────────────────────────────────────────────────────

type zapLogger struct {
	z *zap.Logger
}

// toZapFields converts a slice of our Field values into zap.Field values.
func toZapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			out = append(out, zap.String(f.Key, v))
		case int:
			out = append(out, zap.Int(f.Key, v))
		case int64:
			out = append(out, zap.Int64(f.Key, v))
		case float64:
			out = append(out, zap.Float64(f.Key, v))
		case bool:
			out = append(out, zap.Bool(f.Key, v))
		case time.Duration:
			out = append(out, zap.Duration(f.Key, v))
		case []int:
			out = append(out, zap.Ints(f.Key, v))
		case error:
			out = append(out, zap.NamedError(f.Key, v))
		default:
			out = append(out, zap.Any(f.Key, v))
		}
	}
	return out
}

func (l *zapLogger) Debug(msg string, fields ...Field) {
	l.z.Debug(msg, toZapFields(fields)...)
}

func (l *zapLogger) Info(msg string, fields ...Field) {
	l.z.Info(msg, toZapFields(fields)...)
}

func (l *zapLogger) Warn(msg string, fields ...Field) {
	l.z.Warn(msg, toZapFields(fields)...)
}

func (l *zapLogger) Error(msg string, fields ...Field) {
	l.z.Error(msg, toZapFields(fields)...)
}

func (l *zapLogger) Fatal(msg string, fields ...Field) {
	l.z.Fatal(msg, toZapFields(fields)...)
}

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{z: l.z.With(toZapFields(fields)...)}
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{z: l.z.Named(name)}
}

func (l *zapLogger) WithContext(ctx context.Context) Logger {
	if id := RunIDFromContext(ctx); id != "" {
		return l.With(String(FieldRunID, id))
	}
	return l
}

func (l *zapLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	fields := []Field{Err(err)}
	if code := errors.GetCode(err); code != errors.CodeUnknown {
		fields = append(fields, String(FieldCode, code.String()))
	}
	return l.With(fields...)
}

func (l *zapLogger) Sync() error {
	return l.z.Sync()
}

// ─────────────────────────────────────────────────────────────────────────────
// NewLogger: factory
// ─────────────────────────────────────────────────────────────────────────────

// ParseLevel converts a string level to a zapcore.Level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("logging: unknown level %q", s)
	}
}

func encoderConfig(format string) zapcore.EncoderConfig {
	var encCfg zapcore.EncoderConfig
	if format == "console" {
		encCfg = zap.NewDevelopmentEncoderConfig()
	} else {
		encCfg = zap.NewProductionEncoderConfig()
	}
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return encCfg
}

// NewLogger constructs a Logger backed by zap according to cfg.
// Defaults: level "info", format "json", output ["stdout"], error output
// ["stderr"].
func NewLogger(cfg LogConfig) (Logger, error) {
	if len(cfg.OutputPaths) == 0 {
		cfg.OutputPaths = []string{"stdout"}
	}
	if len(cfg.ErrorOutputPaths) == 0 {
		cfg.ErrorOutputPaths = []string{"stderr"}
	}

	level, _ := ParseLevel(cfg.Level)

	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig(cfg.Format),
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: cfg.ErrorOutputPaths,
	}

	var opts []zap.Option
	opts = append(opts, zap.AddCallerSkip(1))
	if cfg.File.Filename != "" {
		rotating := zapcore.AddSync(newRotatingWriter(cfg.File))
		var enc zapcore.Encoder
		if encoding == "console" {
			enc = zapcore.NewConsoleEncoder(encoderConfig(cfg.Format))
		} else {
			enc = zapcore.NewJSONEncoder(encoderConfig(cfg.Format))
		}
		fileCore := zapcore.NewCore(enc, rotating, zapCfg.Level)
		opts = append(opts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	z, err := zapCfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("logging: failed to build zap logger: %w", err)
	}
	return &zapLogger{z: z}, nil
}

func newRotatingWriter(fc FileConfig) *lumberjack.Logger {
	maxSize := fc.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	return &lumberjack.Logger{
		Filename:   fc.Filename,
		MaxSize:    maxSize, // megabytes
		MaxBackups: fc.MaxBackups,
		MaxAge:     fc.MaxAgeDays, // days
		Compress:   fc.Compress,
	}
}

// NewLoggerFromCore constructs a Logger from an existing zapcore.Core.
// This is primarily used for testing with observed logs.
func NewLoggerFromCore(core zapcore.Core) Logger {
	return &zapLogger{z: zap.New(core, zap.AddCallerSkip(1))}
}

// NewDevelopmentLogger returns a console logger at debug level writing to
// stderr.  The CLI uses it when --verbose is set.
func NewDevelopmentLogger() Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig("console")),
		zapcore.Lock(os.Stderr),
		zapcore.DebugLevel,
	)
	return NewLoggerFromCore(core)
}

// slowOperationThreshold marks operations logged at WARN by LogOperationDuration.
const slowOperationThreshold = 5 * time.Second

// LogOperationDuration logs the elapsed time since start for op.  Operations
// slower than five seconds are logged at WARN.
func LogOperationDuration(l Logger, op string, start time.Time, fields ...Field) {
	elapsed := time.Since(start)
	fields = append(fields, String("operation", op), Int64("duration_ms", elapsed.Milliseconds()))
	if elapsed > slowOperationThreshold {
		l.Warn("slow operation", fields...)
		return
	}
	l.Info("operation completed", fields...)
}

// ─────────────────────────────────────────────────────────────────────────────
// nopLogger: no-op implementation for tests and disabled components
// ─────────────────────────────────────────────────────────────────────────────

type nopLogger struct{}

func (nopLogger) Debug(_ string, _ ...Field)             {}
func (nopLogger) Info(_ string, _ ...Field)              {}
func (nopLogger) Warn(_ string, _ ...Field)              {}
func (nopLogger) Error(_ string, _ ...Field)             {}
func (nopLogger) Fatal(_ string, _ ...Field)             {}
func (n nopLogger) With(_ ...Field) Logger               { return n }
func (n nopLogger) Named(_ string) Logger                { return n }
func (n nopLogger) WithContext(_ context.Context) Logger { return n }
func (n nopLogger) WithError(_ error) Logger             { return n }
func (nopLogger) Sync() error                            { return nil }

// NewNopLogger returns a Logger that discards all log entries.
func NewNopLogger() Logger { return nopLogger{} }

// ─────────────────────────────────────────────────────────────────────────────
// Global default Logger
// ─────────────────────────────────────────────────────────────────────────────

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = nopLogger{}
)

// SetDefault replaces the process-wide default Logger.
func SetDefault(l Logger) {
	if l == nil {
		return
	}
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default returns the process-wide default Logger.  Constructor injection is
// always preferred.
func Default() Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	return l
}

//Personal.AI order the ending
