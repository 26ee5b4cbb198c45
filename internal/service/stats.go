package service

import (
	"sync/atomic"

	"github.com/dshills/nfdiff/internal/assess"
	"github.com/dshills/nfdiff/internal/schema"
)

// Stats counts loop activity. All fields are updated atomically.
type Stats struct {
	received           atomic.Uint64
	assessed           atomic.Uint64
	decodeFailures     atomic.Uint64
	resolutionFailures atomic.Uint64
	structuralFailures atomic.Uint64
	comparatorFailures atomic.Uint64
	publishFailures    atomic.Uint64

	ok, warning, suspicious, critical atomic.Uint64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Received           uint64            `json:"received"`
	Assessed           uint64            `json:"assessed"`
	DecodeFailures     uint64            `json:"decode_failures"`
	ResolutionFailures uint64            `json:"resolution_failures"`
	StructuralFailures uint64            `json:"structural_failures"`
	ComparatorFailures uint64            `json:"comparator_failures"`
	PublishFailures    uint64            `json:"publish_failures"`
	Verdicts           map[string]uint64 `json:"verdicts"`
}

func (s *Stats) record(res assess.Result) {
	s.assessed.Add(1)
	d := res.Diagnostics
	s.decodeFailures.Add(uint64(d.DecodeFailures))
	s.resolutionFailures.Add(uint64(d.ResolutionFailures))
	s.structuralFailures.Add(uint64(d.StructuralFailures))
	s.comparatorFailures.Add(uint64(d.ComparatorFailures))

	switch res.Report.Verdict {
	case schema.VerdictOK:
		s.ok.Add(1)
	case schema.VerdictWarning:
		s.warning.Add(1)
	case schema.VerdictSuspicious:
		s.suspicious.Add(1)
	case schema.VerdictCritical:
		s.critical.Add(1)
	}
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Received:           s.received.Load(),
		Assessed:           s.assessed.Load(),
		DecodeFailures:     s.decodeFailures.Load(),
		ResolutionFailures: s.resolutionFailures.Load(),
		StructuralFailures: s.structuralFailures.Load(),
		ComparatorFailures: s.comparatorFailures.Load(),
		PublishFailures:    s.publishFailures.Load(),
		Verdicts: map[string]uint64{
			string(schema.VerdictOK):         s.ok.Load(),
			string(schema.VerdictWarning):    s.warning.Load(),
			string(schema.VerdictSuspicious): s.suspicious.Load(),
			string(schema.VerdictCritical):   s.critical.Load(),
		},
	}
}
