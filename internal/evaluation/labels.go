// Package evaluation correlates published verdicts with the ground-truth
// labels recorded by the load generator and scores detection accuracy.
package evaluation

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/nfdiff/internal/logging"
	"github.com/dshills/nfdiff/internal/schema"
	"github.com/dshills/nfdiff/internal/transport"
)

// LabelHeader is the first row of a label CSV.
var LabelHeader = []string{"nfInstanceId", "malicious", "verdict", "timestamp"}

// TruthSource looks up the ground truth for an NF instance.
type TruthSource interface {
	Truth(ctx context.Context, id string) (transport.Truth, error)
}

// Source yields published verdict records.
type Source interface {
	Receive(ctx context.Context) ([]byte, error)
}

// LabelWriter writes one CSV row per verdict record.
type LabelWriter struct {
	csv    *csv.Writer
	truth  TruthSource
	logger *zap.Logger
	now    func() time.Time
}

// NewLabelWriter returns a LabelWriter writing to w. logger may be nil.
func NewLabelWriter(w io.Writer, truth TruthSource, logger *zap.Logger) *LabelWriter {
	return &LabelWriter{
		csv:    csv.NewWriter(w),
		truth:  truth,
		logger: logging.OrNop(logger),
		now:    time.Now,
	}
}

// WriteHeader writes LabelHeader.
func (lw *LabelWriter) WriteHeader() error {
	return lw.writeRow(LabelHeader)
}

// Write labels one encoded verdict record. A failed ground-truth lookup is
// logged and the row is written as benign at the current time.
func (lw *LabelWriter) Write(ctx context.Context, payload []byte) error {
	var r schema.Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("evaluation: decode verdict: %w", err)
	}
	id := r.ID()
	truth, err := lw.truth.Truth(ctx, id)
	if err != nil {
		lw.logger.Warn("ground truth lookup failed", zap.String("identifier", id), zap.Error(err))
		truth = transport.Truth{Timestamp: lw.now().Unix()}
	}
	return lw.writeRow([]string{
		id,
		strconv.Itoa(truth.Malicious),
		string(r.Verdict),
		strconv.FormatInt(truth.Timestamp, 10),
	})
}

func (lw *LabelWriter) writeRow(row []string) error {
	if err := lw.csv.Write(row); err != nil {
		return fmt.Errorf("evaluation: write row: %w", err)
	}
	lw.csv.Flush()
	if err := lw.csv.Error(); err != nil {
		return fmt.Errorf("evaluation: flush: %w", err)
	}
	return nil
}

// RunLabels writes the header and then one row per message from src until
// ctx is cancelled (nil) or src fails. Undecodable messages are logged and
// skipped.
func RunLabels(ctx context.Context, src Source, lw *LabelWriter) error {
	if err := lw.WriteHeader(); err != nil {
		return err
	}
	for {
		msg, err := src.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("evaluation: receive: %w", err)
		}
		if err := lw.Write(ctx, msg); err != nil {
			lw.logger.Warn("verdict skipped", zap.Error(err))
		}
	}
}
