// Package observability provides the logging, metrics, and tracing
// surface shared by every gomem component.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds the configuration for tracing.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	ServiceName string `mapstructure:"service_name" json:"service_name,omitempty"`
	Environment string `mapstructure:"environment" json:"environment,omitempty"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint,omitempty"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	Level string `mapstructure:"level" json:"level,omitempty"`
}

// LogLevel defines log message severity.
type LogLevel string

// Log levels
const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelFatal LogLevel = "FATAL"
)

// Logger defines the interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Fatal(msg string, fields map[string]interface{})

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})

	// WithPrefix returns a logger whose lines carry the given component prefix.
	WithPrefix(prefix string) Logger
	// With returns a logger that attaches the given fields to every line.
	With(fields map[string]interface{}) Logger
}

// MetricsClient defines the interface for metrics collection.
type MetricsClient interface {
	RecordCounter(name string, value float64, labels map[string]string)
	RecordGauge(name string, value float64, labels map[string]string)
	RecordLatency(operation string, duration time.Duration)
	IncrementCounter(name string, value float64)

	// StartTimer returns a func that records the elapsed time when called.
	StartTimer(name string, labels map[string]string) func()

	Close() error
}

// Span represents a trace span.
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
	SpanContext() trace.SpanContext
}

// StartSpanFunc creates and starts a new span. Repositories and services
// accept this type so tests can substitute a no-op.
type StartSpanFunc func(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span)

// NoopStartSpan is a StartSpanFunc that records nothing.
func NoopStartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End()                                      {}
func (noopSpan) SetAttribute(key string, value interface{}) {}
func (noopSpan) RecordError(err error)                     {}
func (noopSpan) SpanContext() trace.SpanContext            { return trace.SpanContext{} }
