package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"plantsim/internal/core"
)

const tracerName = "plantsim/coordinator"

var _ core.Tracer = (*Tracer)(nil)

// Tracer adapts an OpenTelemetry tracer to core.Tracer.
type Tracer struct {
	tracer trace.Tracer
	attrs  []attribute.KeyValue
}

// NewTracer returns a tracer from tp, or from the global provider when tp is
// nil. runID, if set, is attached to every span.
func NewTracer(tp trace.TracerProvider, runID string) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	t := &Tracer{tracer: tp.Tracer(tracerName)}
	if runID != "" {
		t.attrs = append(t.attrs, attribute.String("plantsim.run_id", runID))
	}
	return t
}

// Start implements core.Tracer.
func (t *Tracer) Start(ctx context.Context, operation string) (context.Context, core.TraceSpan) {
	attrs := t.attrs
	if step, ok := core.StepFromContext(ctx); ok {
		attrs = append(attrs[:len(attrs):len(attrs)], attribute.Int64("plantsim.step", step))
	}
	ctx, span := t.tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
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
