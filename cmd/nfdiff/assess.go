package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/nfdiff/internal/assess"
	"github.com/dshills/nfdiff/internal/config"
	"github.com/dshills/nfdiff/internal/render"
	"github.com/dshills/nfdiff/internal/schema"
	"github.com/dshills/nfdiff/internal/verdict"
)

type assessFlags struct {
	requestFile  string
	aFile        string
	bFile        string
	envelopeFile string
	format       string
	out          string
	failOn       string
}

func newAssessCmd(a *app) *cobra.Command {
	var f assessFlags
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess one pair of NF profiles and print the verdict record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssess(a.cfg, a.logger, f, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&f.requestFile, "request", "", "reference document carrying the identifier")
	cmd.Flags().StringVar(&f.aFile, "a", "", "candidate A document (open5gs)")
	cmd.Flags().StringVar(&f.bFile, "b", "", "candidate B document (free5gc)")
	cmd.Flags().StringVar(&f.envelopeFile, "envelope", "", "pub/sub envelope holding all three documents")
	cmd.Flags().StringVar(&f.format, "format", "json", "output format: json, markdown, text")
	cmd.Flags().StringVar(&f.out, "out", "", "write output to this file instead of stdout")
	cmd.Flags().StringVar(&f.failOn, "fail-on", "", "exit 2 when the verdict is at or above this one")
	return cmd
}

func runAssess(cfg *config.Config, logger *zap.Logger, f assessFlags, stdout io.Writer) error {
	var threshold schema.Verdict
	if f.failOn != "" {
		v, ok := schema.ParseVerdict(f.failOn)
		if !ok {
			return exitWith(exitCodeBadInput, fmt.Errorf("--fail-on: unknown verdict %q", f.failOn))
		}
		threshold = v
	}
	switch f.format {
	case "json", "markdown", "text":
	default:
		return exitWith(exitCodeBadInput, fmt.Errorf("--format: unknown format %q", f.format))
	}

	settings, err := cfg.Settings()
	if err != nil {
		return exitWith(exitCodeBadInput, err)
	}
	engine, err := assess.New(settings)
	if err != nil {
		return exitWith(exitCodeBadInput, err)
	}

	res, err := assessInput(engine, f)
	if err != nil {
		return exitWith(exitCodeBadInput, err)
	}
	if !res.Diagnostics.Empty() {
		logger.Warn("assessment recovered from input problems",
			zap.Int("decode_failures", res.Diagnostics.DecodeFailures),
			zap.Int("resolution_failures", res.Diagnostics.ResolutionFailures),
			zap.Int("structural_failures", res.Diagnostics.StructuralFailures),
			zap.Int("comparator_failures", res.Diagnostics.ComparatorFailures),
		)
	}

	w := stdout
	if f.out != "" {
		file, err := os.Create(f.out)
		if err != nil {
			return exitWith(exitCodeBadInput, fmt.Errorf("create output: %w", err))
		}
		defer file.Close()
		w = file
	}
	if err := writeReport(w, res.Report, f.format, f.out == "" && !color.NoColor); err != nil {
		return err
	}

	if threshold != "" && verdict.Ordinal(res.Report.Verdict) >= verdict.Ordinal(threshold) {
		return exitWith(exitCodeFailOn, fmt.Errorf("verdict %s is at or above %s", res.Report.Verdict, threshold))
	}
	return nil
}

// assessInput reads either an envelope file or the three document files.
// Unreadable files are input errors; unparsable content is assessed degraded.
func assessInput(engine *assess.Engine, f assessFlags) (assess.Result, error) {
	if f.envelopeFile != "" {
		if f.requestFile != "" || f.aFile != "" || f.bFile != "" {
			return assess.Result{}, errors.New("--envelope excludes --request, --a and --b")
		}
		msg, err := os.ReadFile(f.envelopeFile)
		if err != nil {
			return assess.Result{}, fmt.Errorf("read envelope: %w", err)
		}
		return engine.AssessMessage(msg), nil
	}
	if f.aFile == "" || f.bFile == "" {
		return assess.Result{}, errors.New("--a and --b are required (or --envelope)")
	}
	var ref []byte
	if f.requestFile != "" {
		b, err := os.ReadFile(f.requestFile)
		if err != nil {
			return assess.Result{}, fmt.Errorf("read request: %w", err)
		}
		ref = b
	}
	a, err := os.ReadFile(f.aFile)
	if err != nil {
		return assess.Result{}, fmt.Errorf("read candidate a: %w", err)
	}
	b, err := os.ReadFile(f.bFile)
	if err != nil {
		return assess.Result{}, fmt.Errorf("read candidate b: %w", err)
	}
	return engine.AssessRaw(ref, a, b), nil
}

func writeReport(w io.Writer, r *schema.Report, format string, colored bool) error {
	switch format {
	case "markdown":
		_, err := io.WriteString(w, render.RenderMarkdown(r))
		return err
	case "text":
		return render.RenderText(w, r, render.TextOptions{Color: colored})
	default:
		b, err := render.RenderJSON(r)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	}
}
