package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"plantsim/internal/core"
	"plantsim/pkg/domain"
)

const (
	metricsNamespace   = "plantsim"
	coordinatorSubsys  = "coordinator"
	statusSuccess      = "success"
	statusError        = "error"
	comparatorPass     = "pass"
	comparatorMismatch = "mismatch"
)

var (
	_ core.MetricsRecorder = (*Metrics)(nil)
	_ core.StepSink        = (*Metrics)(nil)
)

// Metrics holds the coordinator's Prometheus collectors. It serves both as
// the MetricsRecorder and as a StepSink that counts ledger outcomes.
type Metrics struct {
	// OperationsTotal counts coordinator operations.
	// Labels: operation (coordinator.step, coordinator.sink), status (success, error)
	OperationsTotal *prometheus.CounterVec

	// OperationDurationSeconds measures operation latency.
	// Labels: operation
	OperationDurationSeconds *prometheus.HistogramVec

	// TransferEventsTotal counts ledgered transfers.
	// Labels: signal, authority
	TransferEventsTotal *prometheus.CounterVec

	// UnledgeredStepsTotal counts steps whose ledger raised the unledgered
	// mutation flag.
	UnledgeredStepsTotal prometheus.Counter

	// ComparatorResultsTotal counts comparator outcomes.
	// Labels: module, result (pass, mismatch)
	ComparatorResultsTotal *prometheus.CounterVec

	// SimTimeSeconds is the simulated time of the last recorded step.
	SimTimeSeconds prometheus.Gauge
}

// NewMetrics registers the collectors with reg. Passing
// prometheus.DefaultRegisterer exposes them on the default promhttp handler;
// tests pass a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OperationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: coordinatorSubsys,
			Name:      "operations_total",
			Help:      "Coordinator operations by operation and status",
		}, []string{"operation", "status"}),
		OperationDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: coordinatorSubsys,
			Name:      "operation_duration_seconds",
			Help:      "Coordinator operation latency in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"operation"}),
		TransferEventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ledger",
			Name:      "transfer_events_total",
			Help:      "Ledgered transfer events by signal and authority",
		}, []string{"signal", "authority"}),
		UnledgeredStepsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ledger",
			Name:      "unledgered_steps_total",
			Help:      "Steps flagged with an unledgered mutation",
		}),
		ComparatorResultsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "comparator",
			Name:      "results_total",
			Help:      "Comparator outcomes by module and result",
		}, []string{"module", "result"}),
		SimTimeSeconds: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: coordinatorSubsys,
			Name:      "sim_time_seconds",
			Help:      "Simulated time of the last recorded step",
		}),
	}
}

// Observe implements core.MetricsRecorder.
func (m *Metrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// Record implements core.StepSink.
func (m *Metrics) Record(_ context.Context, record domain.StepRecord) error {
	for _, ev := range record.Ledger.Events {
		m.TransferEventsTotal.WithLabelValues(string(ev.Signal), string(ev.Authority)).Inc()
	}
	if record.Ledger.UnledgeredMutationDetected {
		m.UnledgeredStepsTotal.Inc()
	}
	for _, cmp := range record.Comparisons {
		result := comparatorPass
		if !cmp.Pass {
			result = comparatorMismatch
		}
		m.ComparatorResultsTotal.WithLabelValues(string(cmp.ModuleID), result).Inc()
	}
	m.SimTimeSeconds.Set(record.Ledger.SimTimeSec)
	return nil
}
