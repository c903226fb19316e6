package main

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"plantsim/internal/archive"
	"plantsim/internal/config"
	"plantsim/internal/core"
	"plantsim/internal/legacy"
	"plantsim/internal/modules/facade"
	"plantsim/internal/observability"
	"plantsim/internal/validation"
	"plantsim/pkg/domain"
)

type runOptions struct {
	steps       int
	dt          float64
	runID       string
	metricsAddr string
	traceFile   string
	export      bool
}

// runReport summarizes a finished run.
type runReport struct {
	RunID                string            `json:"run_id"`
	Steps                int64             `json:"steps"`
	CoordinatorEnabled   bool              `json:"coordinator_enabled"`
	UnledgeredSteps      int               `json:"unledgered_steps"`
	ComparatorMismatches int               `json:"comparator_mismatches"`
	SinkFailures         int64             `json:"sink_failures"`
	MeanStepMS           float64           `json:"mean_step_ms,omitempty"`
	Final                domain.PlantState `json:"final"`
	Archive              *archive.Summary  `json:"archive,omitempty"`
}

func newRunCmd(g *globalOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Step the plant and record a ledger per step",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("steps") {
				cfg.Run.Steps = opts.steps
			}
			if f.Changed("dt") {
				cfg.Run.DtSec = opts.dt
			}
			if f.Changed("run-id") {
				cfg.Run.RunID = opts.runID
			}
			if f.Changed("metrics-addr") {
				cfg.Metrics.Listen = opts.metricsAddr
			}
			if f.Changed("export") {
				cfg.Archive.Enabled = opts.export
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Log)
			report, err := runSimulation(cmd.Context(), cfg, logger, opts.traceFile)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), report, g.jsonOutput)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.steps, "steps", 0, "number of steps (overrides config)")
	f.Float64Var(&opts.dt, "dt", 0, "step size in seconds (overrides config)")
	f.StringVar(&opts.runID, "run-id", "", "run identifier (default: generated)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.StringVar(&opts.traceFile, "trace-file", "", "write one JSON line per coordinator span to this file")
	f.BoolVar(&opts.export, "export", false, "export the run to the configured archive when done")
	return cmd
}

func runSimulation(ctx context.Context, cfg config.Config, logger *slog.Logger, traceFile string) (runReport, error) {
	runID := cfg.Run.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	engine, err := legacy.New(cfg.LegacyConfig())
	if err != nil {
		return runReport{}, fmt.Errorf("legacy engine: %w", err)
	}
	if !cfg.Flags.CoordinatorEnabled {
		return runLegacyOnly(ctx, cfg, engine, runID, logger)
	}

	store, err := core.OpenLedgerStore(ctx, cfg.StorageConfig())
	if err != nil {
		return runReport{}, fmt.Errorf("open ledger store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("close ledger store", "error", cerr)
		}
	}()

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	stopMetrics := serveMetrics(cfg.Metrics.Listen, reg, logger)
	defer stopMetrics()

	validator, err := validation.NewLedgerValidator()
	if err != nil {
		return runReport{}, err
	}
	stats := core.NewStepStatsRecorder("")
	opts := []core.Option{
		core.WithLogger(logger),
		core.WithRunID(runID),
		core.WithTolerances(cfg.Tolerances),
		core.WithMetricsRecorder(core.MultiRecorder(metrics, stats)),
		core.WithStepSink(core.NewStoreSink(store)),
		core.WithStepSink(metrics),
		core.WithStepSink(validation.NewSink(validator)),
	}
	var tracers []core.Tracer
	if cfg.Metrics.Tracing {
		tracers = append(tracers, observability.NewTracer(nil, runID))
	}
	if traceFile != "" {
		tf, err := os.Create(traceFile)
		if err != nil {
			return runReport{}, fmt.Errorf("open trace file: %w", err)
		}
		defer func() {
			if cerr := tf.Close(); cerr != nil {
				logger.Error("close trace file", "path", traceFile, "error", cerr)
			}
		}()
		tracers = append(tracers, core.NewJSONSpanTracer(tf, runID))
	}
	if len(tracers) > 0 {
		opts = append(opts, core.WithTracer(core.MultiTracer(tracers...)))
	}
	if cfg.Telemetry.Enabled {
		influx, err := observability.NewInfluxSink(cfg.InfluxConfig())
		if err != nil {
			return runReport{}, err
		}
		defer influx.Close()
		opts = append(opts, core.WithStepSink(influx))
	}

	coord, err := core.NewCoordinator(engine, cfg.Flags, opts...)
	if err != nil {
		return runReport{}, err
	}
	defer coord.Shutdown()

	report := runReport{RunID: runID, CoordinatorEnabled: true}
	logger.Info("run started", "run_id", runID, "steps", cfg.Run.Steps, "dt", cfg.Run.DtSec, "storage", cfg.Storage.Driver)
	for i := 0; i < cfg.Run.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		ledger, err := coord.Step(ctx, cfg.Run.DtSec)
		if err != nil {
			return report, err
		}
		if ledger.UnledgeredMutationDetected {
			report.UnledgeredSteps++
		}
		for _, res := range coord.ComparatorResults() {
			if !res.Pass {
				report.ComparatorMismatches++
			}
		}
	}
	report.Steps = coord.StepIndex()
	report.SinkFailures = coord.SinkFailures()
	report.MeanStepMS = stats.Snapshot()["coordinator.step"].MeanMS()
	report.Final = engine.ReadFields().Plant
	logger.Info("run finished", "run_id", runID, "steps", report.Steps,
		"unledgered_steps", report.UnledgeredSteps, "comparator_mismatches", report.ComparatorMismatches)

	if cfg.Archive.Enabled {
		summary, err := exportRun(ctx, cfg, store, runID)
		if err != nil {
			return report, err
		}
		report.Archive = &summary
		logger.Info("run archived", "run_id", runID, "key", summary.LedgerKey)
	}
	return report, nil
}

// runLegacyOnly steps the engine on its own, without ledgers or comparators.
func runLegacyOnly(ctx context.Context, cfg config.Config, engine *legacy.Engine, runID string, logger *slog.Logger) (runReport, error) {
	adapter, err := facade.NewLegacyAdapter(engine)
	if err != nil {
		return runReport{}, err
	}
	adapter.Initialize()
	defer adapter.Shutdown()
	logger.Info("coordinator disabled, running legacy engine only", "run_id", runID, "steps", cfg.Run.Steps)
	report := runReport{RunID: runID}
	for i := 0; i < cfg.Run.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := adapter.Step(cfg.Run.DtSec); err != nil {
			return report, fmt.Errorf("legacy step %d: %w", i+1, err)
		}
		report.Steps++
	}
	report.Final = adapter.Plant()
	return report, nil
}

func exportRun(ctx context.Context, cfg config.Config, ledger domain.LedgerStore, runID string) (archive.Summary, error) {
	store, err := archive.Open(ctx, cfg.ArchiveConfig())
	if err != nil {
		return archive.Summary{}, fmt.Errorf("open archive: %w", err)
	}
	exp, err := archive.NewExporter(store, ledger)
	if err != nil {
		return archive.Summary{}, err
	}
	return exp.ExportRun(ctx, runID)
}

// serveMetrics exposes reg and the expvar step stats on addr until the returned func is called. An
// empty addr serves nothing.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/debug/vars", expvar.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "addr", addr, "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func printReport(w io.Writer, r runReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	fmt.Fprintf(w, "run %s: %d steps (coordinator %s)\n", r.RunID, r.Steps, onOff(r.CoordinatorEnabled))
	if r.CoordinatorEnabled {
		fmt.Fprintf(w, "unledgered steps: %d\ncomparator mismatches: %d\nsink failures: %d\n",
			r.UnledgeredSteps, r.ComparatorMismatches, r.SinkFailures)
	}
	fmt.Fprintf(w, "final: t=%.1fs P=%.1f psia Tavg=%.2f F level=%.2f%% mode=%s\n",
		r.Final.SimTimeSec, r.Final.PressurePsia, r.Final.TavgF, r.Final.PzrLevelPct, r.Final.PlantModeName)
	if r.Archive != nil {
		fmt.Fprintf(w, "archived: %s\n", r.Archive.LedgerKey)
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
