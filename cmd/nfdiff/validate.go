package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/nfdiff/internal/assess"
	"github.com/dshills/nfdiff/internal/config"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration, schema and rules and report problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(a.cfg, cmd.OutOrStdout())
		},
	}
}

func runValidate(cfg *config.Config, w io.Writer) error {
	settings, err := cfg.Settings()
	if err != nil {
		return exitWith(exitCodeBadInput, err)
	}
	if _, err := assess.New(settings); err != nil {
		return exitWith(exitCodeBadInput, err)
	}
	s := settings.Schema
	fmt.Fprintf(w, "preset:  %s\n", cfg.Preset)
	fmt.Fprintf(w, "schema:  %s (%d fields, %d optional)\n", cfg.SchemaPath, len(s.AllFields()), len(s.OptionalFields()))
	fmt.Fprintf(w, "rules:   %s (%d rules)\n", cfg.RulesPath, len(settings.Rules))
	fmt.Fprintf(w, "tolerance=%g strict_optional=%t max_diff_volume=%d\n",
		settings.NumericTolerance, settings.StrictOptional, settings.MaxDiffVolume)
	_, err = fmt.Fprintln(w, "ok")
	return err
}
