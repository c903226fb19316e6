package core

import (
	"bytes"
	"context"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"
)

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

func TestStepStatsRecorderAggregates(t *testing.T) {
	recorder := NewStepStatsRecorder("")
	if !strings.HasPrefix(recorder.Name(), "plantsim_step_stats_") {
		t.Fatalf("unexpected export name %q", recorder.Name())
	}
	ctx := ContextWithStep(context.Background(), 7)
	recorder.Observe(ctx, opStep, true, 10*time.Millisecond)
	recorder.Observe(ctx, opStep, false, 30*time.Millisecond)
	recorder.Observe(ctx, "", true, time.Second)

	stats := recorder.Snapshot()
	if len(stats) != 1 {
		t.Fatalf("empty operation names must be ignored: %+v", stats)
	}
	s := stats[opStep]
	if s.Count != 2 || s.Failures != 1 || s.MaxMS != 30 || s.LastMS != 30 || s.LastStep != 7 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if s.MeanMS() != 20 {
		t.Fatalf("mean = %v, want 20", s.MeanMS())
	}
	if (OperationStats{}).MeanMS() != 0 {
		t.Fatalf("mean of empty stats must be zero")
	}
	if v := expvar.Get(recorder.Name()); v == nil {
		t.Fatalf("expected expvar export to be registered")
	} else if !strings.Contains(v.String(), `"last_step":7`) {
		t.Fatalf("expvar output missing step: %s", v.String())
	}
}

func TestJSONSpanTracerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONSpanTracer(&buf, "run-j")
	ctx, span := tracer.Start(ContextWithStep(context.Background(), 3), opStep)
	span.End(nil)
	_, span = tracer.Start(ctx, opSink)
	span.End(errors.New("sink down"))

	spans := tracer.Spans()
	if len(spans) != 2 {
		t.Fatalf("expected two spans, got %d", len(spans))
	}
	if spans[0].Operation != opStep || spans[0].Status != "ok" || spans[0].Step != 3 || spans[0].RunID != "run-j" {
		t.Fatalf("unexpected span: %+v", spans[0])
	}
	if spans[1].Status != "error" || spans[1].Error != "sink down" || spans[1].Step != 3 {
		t.Fatalf("unexpected error span: %+v", spans[1])
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `"operation":"coordinator.step"`) {
		t.Fatalf("unexpected JSON output: %q", buf.String())
	}
}

func TestMultiRecorderAndTracerFanOut(t *testing.T) {
	a, b := &captureMetricsRecorder{}, &captureMetricsRecorder{}
	MultiRecorder(a, nil, b).Observe(context.Background(), opStep, true, time.Millisecond)
	if !a.has(opStep, true) || !b.has(opStep, true) {
		t.Fatalf("every recorder must observe")
	}

	first, second := &captureTracer{}, &captureTracer{}
	_, span := MultiTracer(first, nil, second).Start(context.Background(), opSink)
	span.End(errors.New("boom"))
	if !first.has(opSink, false) || !second.has(opSink, false) {
		t.Fatalf("every tracer must end the span with the error")
	}
}

func TestCoordinatorTagsSpansWithStep(t *testing.T) {
	stats := NewStepStatsRecorder("")
	tracer := NewJSONSpanTracer(nil, "")
	c, err := NewCoordinator(newEngine(t), modularPZR(), WithRunID("run-s"), WithMetricsRecorder(stats), WithTracer(tracer))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := c.Step(context.Background(), 1); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	spans := tracer.Spans()
	if len(spans) != 2 || spans[0].Step != 1 || spans[1].Step != 2 {
		t.Fatalf("spans should carry step indices, got %+v", spans)
	}
	if s := stats.Snapshot()[opStep]; s.Count != 2 || s.Failures != 0 || s.LastStep != 2 {
		t.Fatalf("unexpected step stats %+v", s)
	}
}
