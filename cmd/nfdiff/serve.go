package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/nfdiff/internal/assess"
	"github.com/dshills/nfdiff/internal/config"
	"github.com/dshills/nfdiff/internal/server"
	"github.com/dshills/nfdiff/internal/service"
	"github.com/dshills/nfdiff/internal/stream"
	"github.com/dshills/nfdiff/internal/transport"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Consume the diffs channel and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("http") {
				a.cfg.HTTP.Addr = addr
			}
			return runServe(cmd.Context(), a.cfg, a.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "http", "", "HTTP listen address (overrides http.addr)")
	return cmd
}

// runServe runs the consumption loop and the HTTP server until ctx is
// cancelled or either of them fails.
func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	settings, err := cfg.Settings()
	if err != nil {
		return exitWith(exitCodeBadInput, err)
	}
	engine, err := assess.New(settings)
	if err != nil {
		return exitWith(exitCodeBadInput, err)
	}
	logger.Info("configuration loaded",
		zap.String("preset", cfg.Preset),
		zap.String("schema", cfg.SchemaPath),
		zap.String("rules", cfg.RulesPath),
		zap.Int("rule_count", len(settings.Rules)),
		zap.Float64("numeric_tolerance", settings.NumericTolerance),
		zap.Bool("strict_optional", settings.StrictOptional),
		zap.Int("max_diff_volume", settings.MaxDiffVolume),
	)

	client, err := transport.Open(ctx, cfg.Redis)
	if err != nil {
		return exitWith(exitCodeTransport, err)
	}
	defer client.Close()
	sub, err := client.SubscribeDiffs(ctx)
	if err != nil {
		return exitWith(exitCodeTransport, err)
	}

	hub := stream.NewHub()
	loop := service.New(engine, sub,
		service.WithSink(client),
		service.WithHub(hub),
		service.WithLogger(logger),
	)
	srv := server.New(loop, hub,
		server.WithIngest(client),
		server.WithLogger(logger),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := loop.Run(gctx); err != nil {
			return exitWith(exitCodeTransport, err)
		}
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.HTTP.Addr)
	})
	g.Go(func() error {
		// A blocked pub/sub read does not observe cancellation; closing the
		// subscription releases it.
		<-gctx.Done()
		_ = sub.Close()
		return nil
	})
	err = g.Wait()
	logger.Info("shutdown", zap.Any("stats", loop.Stats()), zap.Error(err))
	return err
}
