package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

type stepKey struct{}

// ContextWithStep tags ctx with the index of the step being run.
func ContextWithStep(ctx context.Context, step int64) context.Context {
	return context.WithValue(ctx, stepKey{}, step)
}

// StepFromContext returns the step index set by ContextWithStep.
func StepFromContext(ctx context.Context) (int64, bool) {
	step, ok := ctx.Value(stepKey{}).(int64)
	return step, ok
}

var statsSeq uint64

// OperationStats aggregates one coordinator operation.
type OperationStats struct {
	Count    int64   `json:"count"`
	Failures int64   `json:"failures"`
	TotalMS  float64 `json:"total_ms"`
	MaxMS    float64 `json:"max_ms"`
	LastMS   float64 `json:"last_ms"`
	LastStep int64   `json:"last_step,omitempty"`
}

// MeanMS is the average duration, or zero before the first observation.
func (s OperationStats) MeanMS() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.TotalMS / float64(s.Count)
}

// StepStatsRecorder keeps per-operation step statistics and publishes them
// through expvar, so /debug/vars shows a live view of a long run.
type StepStatsRecorder struct {
	name string
	mu   sync.Mutex
	ops  map[string]OperationStats
}

// NewStepStatsRecorder publishes a recorder under name, or under a generated
// name when name is empty. expvar panics on reused names.
func NewStepStatsRecorder(name string) *StepStatsRecorder {
	if name == "" {
		name = fmt.Sprintf("plantsim_step_stats_%d", atomic.AddUint64(&statsSeq, 1))
	}
	rec := &StepStatsRecorder{name: name, ops: make(map[string]OperationStats)}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name returns the expvar name.
func (r *StepStatsRecorder) Name() string { return r.name }

// Snapshot copies the current statistics.
func (r *StepStatsRecorder) Snapshot() map[string]OperationStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]OperationStats, len(r.ops))
	for op, s := range r.ops {
		out[op] = s
	}
	return out
}

// Observe implements MetricsRecorder.
func (r *StepStatsRecorder) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	step, _ := StepFromContext(ctx)

	r.mu.Lock()
	s := r.ops[operation]
	s.Count++
	if !success {
		s.Failures++
	}
	s.TotalMS += ms
	s.LastMS = ms
	if ms > s.MaxMS {
		s.MaxMS = ms
	}
	if step > 0 {
		s.LastStep = step
	}
	r.ops[operation] = s
	r.mu.Unlock()
}

// MultiRecorder fans observations out to every non-nil recorder.
func MultiRecorder(recorders ...MetricsRecorder) MetricsRecorder {
	out := make(multiRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type multiRecorder []MetricsRecorder

func (m multiRecorder) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range m {
		r.Observe(ctx, operation, success, duration)
	}
}

// SpanRecord is one ended span as written by JSONSpanTracer.
type SpanRecord struct {
	Operation  string    `json:"operation"`
	RunID      string    `json:"run_id,omitempty"`
	Step       int64     `json:"step,omitempty"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

// JSONSpanTracer writes each ended span as a JSON line and retains it.
type JSONSpanTracer struct {
	runID string
	clock Clock
	mu    sync.Mutex
	spans []SpanRecord
	enc   *json.Encoder
}

// NewJSONSpanTracer writes spans to w. A nil writer only retains them.
func NewJSONSpanTracer(w io.Writer, runID string) *JSONSpanTracer {
	t := &JSONSpanTracer{runID: runID, clock: systemClock{}}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Spans returns a copy of the ended spans.
func (t *JSONSpanTracer) Spans() []SpanRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SpanRecord, len(t.spans))
	copy(out, t.spans)
	return out
}

// Start implements Tracer.
func (t *JSONSpanTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	step, _ := StepFromContext(ctx)
	return ctx, &jsonSpan{tracer: t, rec: SpanRecord{
		Operation: operation,
		RunID:     t.runID,
		Step:      step,
		StartedAt: t.clock.Now(),
	}}
}

type jsonSpan struct {
	tracer *JSONSpanTracer
	rec    SpanRecord
}

func (s *jsonSpan) End(err error) {
	rec := s.rec
	rec.Status = "ok"
	if err != nil {
		rec.Status = "error"
		rec.Error = err.Error()
	}
	rec.DurationMS = float64(s.tracer.clock.Now().Sub(rec.StartedAt)) / float64(time.Millisecond)

	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.spans = append(s.tracer.spans, rec)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(rec)
	}
}

// MultiTracer starts a span on every non-nil tracer. Context values set by
// earlier tracers are visible to later ones.
func MultiTracer(tracers ...Tracer) Tracer {
	out := make(multiTracer, 0, len(tracers))
	for _, t := range tracers {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

type multiTracer []Tracer

func (m multiTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	spans := make(multiSpan, 0, len(m))
	for _, t := range m {
		var span TraceSpan
		ctx, span = t.Start(ctx, operation)
		spans = append(spans, span)
	}
	return ctx, spans
}

type multiSpan []TraceSpan

func (m multiSpan) End(err error) {
	for i := len(m) - 1; i >= 0; i-- {
		m[i].End(err)
	}
}
