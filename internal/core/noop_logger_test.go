package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopObservabilityDefaults(t *testing.T) {
	logger := noopLogger{}
	logger.Debug("debug", "key", "value")
	logger.Info("info", "key", "value")
	logger.Warn("warn", "key", "value")
	logger.Error("error", "key", "value")

	obs := observer{logger: logger, metrics: noopMetrics{}, tracer: noopTracer{}, clock: ClockFunc(time.Now)}
	boom := errors.New("boom")
	if err := obs.observe(context.Background(), OpResolve, func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected stage error to propagate, got %v", err)
	}
	if err := obs.observe(context.Background(), OpMerge, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
