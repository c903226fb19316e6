package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"plantsim/internal/archive"
	"plantsim/internal/core"
	"plantsim/internal/validation"
	"plantsim/pkg/domain"
)

func newLedgerCmd(g *globalOptions) *cobra.Command {
	var (
		runID       string
		step        int64
		fromArchive bool
		validate    bool
	)
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List recorded runs or print a run's ledgers as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			var records []domain.StepRecord
			if fromArchive {
				if runID == "" {
					return fmt.Errorf("--archive needs --run")
				}
				store, err := archive.Open(ctx, cfg.ArchiveConfig())
				if err != nil {
					return err
				}
				if records, err = archive.ReadRun(ctx, store, runID); err != nil {
					return err
				}
			} else {
				store, err := core.OpenLedgerStore(ctx, cfg.StorageConfig())
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()
				if runID == "" {
					runs, err := store.Runs(ctx)
					if err != nil {
						return err
					}
					for _, id := range runs {
						fmt.Fprintln(w, id)
					}
					return nil
				}
				if records, err = store.ListSteps(ctx, runID); err != nil {
					return err
				}
			}

			var v *validation.LedgerValidator
			if validate {
				if v, err = validation.NewLedgerValidator(); err != nil {
					return err
				}
			}
			enc := json.NewEncoder(w)
			printed := 0
			for _, rec := range records {
				if step > 0 && rec.Ledger.Step != step {
					continue
				}
				if v != nil {
					if err := v.Validate(rec.Ledger); err != nil {
						return fmt.Errorf("run %s step %d: %w", runID, rec.Ledger.Step, err)
					}
				}
				if err := enc.Encode(rec.Ledger); err != nil {
					return err
				}
				printed++
			}
			if printed == 0 {
				return fmt.Errorf("no ledgers recorded for run %q", runID)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&runID, "run", "", "run id (omit to list runs)")
	f.Int64Var(&step, "step", 0, "only print this step")
	f.BoolVar(&fromArchive, "archive", false, "read the run from the configured archive instead of the ledger store")
	f.BoolVar(&validate, "validate", false, "validate every ledger against the wire schema")
	return cmd
}
