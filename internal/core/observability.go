package core

import (
	"context"
	"time"
)

// Logger is the narrow structured logger used across the pipeline. *slog.Logger
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

// MetricsRecorder observes operation outcomes and latencies.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// ReportRecorder is implemented by recorders that also count report outcomes.
type ReportRecorder interface {
	RecordReport(ctx context.Context, report ExecutionReport)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts spans around pipeline stages.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the stage's error, if any.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

type observer struct {
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
}

func (o observer) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	start := o.clock.Now()
	ctx, span := o.tracer.Start(ctx, operation)
	err := fn(ctx)
	span.End(err)
	elapsed := o.clock.Now().Sub(start)
	o.metrics.Observe(ctx, operation, err == nil, elapsed)
	if err != nil {
		o.logger.Error("pipeline stage failed", "operation", operation, "error", err, "duration", elapsed)
	} else {
		o.logger.Debug("pipeline stage finished", "operation", operation, "duration", elapsed)
	}
	return err
}

// Operation names observed by the pipeline.
const (
	OpResolve  = "pipeline.resolve"
	OpMerge    = "pipeline.merge"
	OpValidate = "pipeline.validate"
	OpExecute  = "pipeline.execute"
	OpPipeline = "pipeline.run"
)
