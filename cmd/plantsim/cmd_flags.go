package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"plantsim/internal/config"
	"plantsim/pkg/domain"
)

func newFlagsCmd(g *globalOptions) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "flags",
		Short: "Print the effective feature flags and check the single-writer rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if g.configPath != "" {
				loaded, err := config.Load(g.configPath)
				if err != nil && !isFlagsOnlyError(err) {
					return err
				}
				cfg = loaded
			}
			flags := cfg.Flags
			if reset {
				flags.ResetAll()
			}
			w := cmd.OutOrStdout()
			if g.jsonOutput {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(flags); err != nil {
					return err
				}
			} else {
				enc := yaml.NewEncoder(w)
				enc.SetIndent(2)
				if err := enc.Encode(flags); err != nil {
					return err
				}
				if err := enc.Close(); err != nil {
					return err
				}
			}
			if err := flags.Validate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "single-writer: ok")
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "show the legacy-only defaults instead")
	return cmd
}

// isFlagsOnlyError reports whether err is purely a single-writer violation,
// which the flags command reports itself after printing.
func isFlagsOnlyError(err error) bool {
	var ce *config.ConfigError
	return errors.Is(err, domain.ErrSingleWriterViolation) && !errors.As(err, &ce)
}
