package core

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const otelInstrumentation = "mortgageintake/internal/core"

// AttrBatchID tags pipeline spans with the batch being processed.
var AttrBatchID = attribute.Key("mortgageintake.batch.id")

// OTelTracer adapts an OpenTelemetry tracer to the pipeline Tracer interface.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer wraps tracer. A nil tracer uses the global provider.
func NewOTelTracer(tracer trace.Tracer) *OTelTracer {
	if tracer == nil {
		tracer = otel.Tracer(otelInstrumentation)
	}
	return &OTelTracer{tracer: tracer}
}

// Start implements Tracer.
func (t *OTelTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	var opts []trace.SpanStartOption
	if id := BatchIDFromContext(ctx); id != "" {
		opts = append(opts, trace.WithAttributes(AttrBatchID.String(id)))
	}
	ctx, span := t.tracer.Start(ctx, operation, opts...)
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
