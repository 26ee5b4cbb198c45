// Package service runs the consumption loop: receive a diff envelope, assess
// it, then publish the verdict record. One message is processed to completion
// before the next is received, so verdicts leave in arrival order.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/nfdiff/internal/assess"
	"github.com/dshills/nfdiff/internal/logging"
	"github.com/dshills/nfdiff/internal/schema"
	"github.com/dshills/nfdiff/internal/stream"
)

// Source yields raw envelopes. Receive blocks until a message arrives.
type Source interface {
	Receive(ctx context.Context) ([]byte, error)
}

// Sink receives each encoded verdict record.
type Sink interface {
	Publish(ctx context.Context, payload []byte) error
}

// Loop wires a Source to the engine and fans results out to a Sink and a Hub.
// Handle is safe for concurrent use; Run must be called at most once.
type Loop struct {
	engine *assess.Engine
	source Source
	sink   Sink
	hub    *stream.Hub
	logger *zap.Logger
	stats  Stats
}

// Option configures a Loop.
type Option func(*Loop)

// WithSink publishes every verdict record to s.
func WithSink(s Sink) Option { return func(l *Loop) { l.sink = s } }

// WithHub broadcasts every verdict record on h.
func WithHub(h *stream.Hub) Option { return func(l *Loop) { l.hub = h } }

// WithLogger sets the logger. The default discards everything.
func WithLogger(lg *zap.Logger) Option { return func(l *Loop) { l.logger = lg } }

// New returns a Loop. source may be nil when only Handle is used.
func New(engine *assess.Engine, source Source, opts ...Option) *Loop {
	l := &Loop{engine: engine, source: source}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = logging.OrNop(l.logger)
	return l
}

// Run consumes messages until ctx is cancelled or the source fails. A
// cancelled context is a clean shutdown and returns nil; any other receive
// error means the transport is gone and is returned.
func (l *Loop) Run(ctx context.Context) error {
	if l.source == nil {
		return errors.New("service: loop has no source")
	}
	l.logger.Info("consumption loop started")
	for {
		msg, err := l.source.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("consumption loop stopped")
				return nil
			}
			return fmt.Errorf("service: receive: %w", err)
		}
		l.Handle(ctx, msg)
	}
}

// Handle assesses one envelope and delivers the verdict record. It never
// fails: decode, resolution and comparator problems are counted, and a
// publish failure is logged and counted.
func (l *Loop) Handle(ctx context.Context, msg []byte) *schema.Report {
	id := uuid.NewString()
	l.stats.received.Add(1)
	l.logger.Debug("message received", zap.String("msg_id", id), zap.Int("bytes", len(msg)))

	res := l.engine.AssessMessage(msg)
	l.stats.record(res)

	log := l.logger.With(zap.String("msg_id", id), zap.String("identifier", res.Report.ID()))
	if res.Diagnostics.DecodeFailures > 0 {
		log.Warn("payload degraded to empty document", zap.Int("decode_failures", res.Diagnostics.DecodeFailures))
	}
	if res.Diagnostics.ComparatorFailures > 0 {
		log.Warn("comparator failures", zap.Int("comparator_failures", res.Diagnostics.ComparatorFailures))
	}
	log.Info("verdict",
		zap.String("verdict", string(res.Report.Verdict)),
		zap.Int("mismatches", len(res.Report.Outcomes)),
		zap.Int("resolution_failures", res.Diagnostics.ResolutionFailures),
	)

	if l.hub != nil {
		l.hub.Publish(res.Report)
	}
	if l.sink != nil {
		if err := l.publish(ctx, res.Report); err != nil {
			l.stats.publishFailures.Add(1)
			log.Error("publish failed", zap.Error(err))
		}
	}
	return res.Report
}

func (l *Loop) publish(ctx context.Context, r *schema.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("service: encode verdict: %w", err)
	}
	return l.sink.Publish(ctx, payload)
}

// Stats returns a snapshot of the counters.
func (l *Loop) Stats() Snapshot {
	return l.stats.Snapshot()
}
