package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/nfdiff/internal/config"
	"github.com/dshills/nfdiff/internal/logging"
)

// Exit codes.
const (
	exitCodeFailOn    = 2 // verdict at or above --fail-on
	exitCodeBadInput  = 3 // missing or unreadable input, unusable configuration
	exitCodeTransport = 4 // Redis unavailable
)

// exitError carries a process exit code through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configFile     string
	schemaPath     string
	rulesPath      string
	preset         string
	strictOptional bool
	maxDiffVolume  int
	tolerance      float64
	logLevel       string
	logFormat      string
	verbose        bool
}

// app is the state PersistentPreRunE prepares for the subcommands.
type app struct {
	flags  globalFlags
	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return (&app{}).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nfdiff",
		Short:         "Divergence verdicts for NF profiles served by two 5G cores",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configFile, "config", "", "YAML configuration file")
	pf.StringVar(&a.flags.schemaPath, "schema", "", "reference JSON schema (overrides schema_path)")
	pf.StringVar(&a.flags.rulesPath, "rules", "", "comparison rules file (overrides rules_path)")
	pf.StringVar(&a.flags.preset, "preset", "", "threshold preset: default, strict, lenient")
	pf.BoolVar(&a.flags.strictOptional, "strict-optional", false, "do not cross-fill optional fields")
	pf.IntVar(&a.flags.maxDiffVolume, "max-diff-volume", 0, "mismatch count above which a verdict becomes SUSPICIOUS")
	pf.Float64Var(&a.flags.tolerance, "tolerance", 0, "default numeric tolerance")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "debug, info, warn, error")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "json or console")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newAssessCmd(a),
		newServeCmd(a),
		newValidateCmd(a),
		newLabelsCmd(a),
		newAccuracyCmd(a),
	)
	return root
}

// setup loads the configuration, applies flag overrides and builds the
// logger. Flags win over the environment and the file.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadPreset(a.flags.configFile, a.flags.preset)
	if err != nil {
		return exitWith(exitCodeBadInput, err)
	}
	flags := cmd.Flags()
	if flags.Changed("schema") {
		cfg.SchemaPath = a.flags.schemaPath
	}
	if flags.Changed("rules") {
		cfg.RulesPath = a.flags.rulesPath
	}
	if flags.Changed("strict-optional") {
		cfg.StrictOptional = a.flags.strictOptional
	}
	if flags.Changed("max-diff-volume") {
		cfg.MaxDiffVolume = a.flags.maxDiffVolume
	}
	if flags.Changed("tolerance") {
		cfg.NumericTolerance = a.flags.tolerance
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.flags.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = a.flags.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return exitWith(exitCodeBadInput, fmt.Errorf("config: %w", err))
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, a.flags.verbose)
	if err != nil {
		return exitWith(exitCodeBadInput, err)
	}
	a.logger = logger
	return nil
}
