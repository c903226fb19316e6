package core

import (
	"context"
	"time"

	"plantsim/pkg/domain"
)

// Logger is the structured logger used by the coordinator. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// MetricsRecorder observes coordinator operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// TraceSpan is ended once per traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around coordinator operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopTracer struct{}

type noopSpan struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

func (noopSpan) End(error) {}

// StepSink receives a record of every completed step. Sink failures are
// logged and counted; they never fail the step.
type StepSink interface {
	Record(ctx context.Context, record domain.StepRecord) error
}

// StepSinkFunc adapts a function to StepSink.
type StepSinkFunc func(ctx context.Context, record domain.StepRecord) error

// Record implements StepSink.
func (f StepSinkFunc) Record(ctx context.Context, record domain.StepRecord) error {
	return f(ctx, record)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(logger Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the clock used for record timestamps and durations.
func WithClock(clock Clock) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(c *Coordinator) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) Option {
	return func(c *Coordinator) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithStepSink appends a sink. Sinks run in registration order.
func WithStepSink(sink StepSink) Option {
	return func(c *Coordinator) {
		if sink != nil {
			c.sinks = append(c.sinks, sink)
		}
	}
}

// WithRunID tags ledgers and records with id instead of a generated one.
func WithRunID(id string) Option {
	return func(c *Coordinator) {
		if id != "" {
			c.runID = id
		}
	}
}

// WithTolerances sets comparator tolerances.
func WithTolerances(tol domain.Tolerances) Option {
	return func(c *Coordinator) {
		c.tolerances = tol
	}
}

// WithRule registers an additional audit rule after the defaults.
func WithRule(rule domain.Rule) Option {
	return func(c *Coordinator) {
		c.extraRules = append(c.extraRules, rule)
	}
}

// WithModule replaces the default module registered under the same ID.
func WithModule(module domain.Module) Option {
	return func(c *Coordinator) {
		if module != nil {
			c.overrides = append(c.overrides, module)
		}
	}
}
