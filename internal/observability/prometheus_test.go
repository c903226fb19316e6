package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantsim/internal/core"
	"plantsim/internal/legacy"
	"plantsim/pkg/domain"
)

func TestMetricsObserve(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	ctx := context.Background()

	m.Observe(ctx, "coordinator.step", true, 2*time.Millisecond)
	m.Observe(ctx, "coordinator.step", true, time.Millisecond)
	m.Observe(ctx, "coordinator.step", false, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("coordinator.step", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("coordinator.step", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.OperationDurationSeconds))
}

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	rec := domain.StepRecord{
		RunID: "r",
		Ledger: domain.TransferLedger{
			Step:       7,
			SimTimeSec: 3.5,
			Events: []domain.TransferEvent{
				{Signal: domain.SignalSurgeFlow, Quantity: domain.QuantityFlow, Authority: domain.AuthorityLegacy},
				{Signal: domain.SignalHeaterPower, Quantity: domain.QuantityEnergy, Authority: domain.AuthorityModularPZR},
			},
			UnledgeredMutationDetected: true,
		},
		Comparisons: []domain.ComparatorResult{
			{ModuleID: domain.ModulePZR, Pass: true},
			{ModuleID: domain.ModuleRCS, Pass: false},
		},
	}
	require.NoError(t, m.Record(context.Background(), rec))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransferEventsTotal.WithLabelValues(string(domain.SignalSurgeFlow), string(domain.AuthorityLegacy))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransferEventsTotal.WithLabelValues(string(domain.SignalHeaterPower), string(domain.AuthorityModularPZR))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnledgeredStepsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ComparatorResultsTotal.WithLabelValues("PZR", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ComparatorResultsTotal.WithLabelValues("RCS", "mismatch")))
	assert.Equal(t, 3.5, testutil.ToFloat64(m.SimTimeSeconds))
}

func TestMetricsRegisterOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) }, "duplicate registration must panic")
}

func TestCoordinatorFeedsMetrics(t *testing.T) {
	engine, err := legacy.New(legacy.DefaultConfig())
	require.NoError(t, err)
	m := NewMetrics(prometheus.NewRegistry())
	flags := domain.FeatureFlags{
		CoordinatorEnabled: true,
		PZR:                domain.SubsystemFlags{UseModular: true, BypassLegacy: true, EnableComparator: true},
	}
	c, err := core.NewCoordinator(engine, flags, core.WithMetricsRecorder(m), core.WithStepSink(m))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := c.Step(context.Background(), 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 5.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("coordinator.step", "success")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("coordinator.sink", "success")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ComparatorResultsTotal.WithLabelValues("PZR", "pass")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.UnledgeredStepsTotal))
}
