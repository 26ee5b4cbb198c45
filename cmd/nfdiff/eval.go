package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/nfdiff/internal/config"
	"github.com/dshills/nfdiff/internal/evaluation"
	"github.com/dshills/nfdiff/internal/transport"
)

func newLabelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "Write a CSV of published verdicts joined with ground-truth labels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLabels(cmd.Context(), a.cfg, a.logger, cmd.OutOrStdout())
		},
	}
}

func runLabels(ctx context.Context, cfg *config.Config, logger *zap.Logger, w io.Writer) error {
	client, err := transport.Open(ctx, cfg.Redis)
	if err != nil {
		return exitWith(exitCodeTransport, err)
	}
	defer client.Close()
	sub, err := client.SubscribeVerdicts(ctx)
	if err != nil {
		return exitWith(exitCodeTransport, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()
	if err := evaluation.RunLabels(ctx, sub, evaluation.NewLabelWriter(w, client, logger)); err != nil {
		return exitWith(exitCodeTransport, err)
	}
	return nil
}

func newAccuracyCmd(a *app) *cobra.Command {
	var positive string
	cmd := &cobra.Command{
		Use:   "accuracy <labels.csv>",
		Short: "Score a label CSV: TP, FP, FN, precision and recall",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccuracy(args[0], positive, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&positive, "positive", "CRITICAL", "comma-separated verdicts counted as a malicious prediction")
	return cmd
}

func runAccuracy(path, positive string, w io.Writer) error {
	verdicts, err := evaluation.ParsePositive(positive)
	if err != nil {
		return exitWith(exitCodeBadInput, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return exitWith(exitCodeBadInput, fmt.Errorf("open labels: %w", err))
	}
	defer f.Close()
	counts, err := evaluation.Accuracy(f, verdicts)
	if err != nil {
		return exitWith(exitCodeBadInput, err)
	}
	return counts.Print(w)
}
