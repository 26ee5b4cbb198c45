// Package schema defines all canonical data types for the nfdiff verdict record.
package schema

import "github.com/dshills/nfdiff/internal/document"

// Verdict represents the overall classification of a divergence.
type Verdict string

const (
	VerdictOK         Verdict = "OK"
	VerdictWarning    Verdict = "WARNING"
	VerdictSuspicious Verdict = "SUSPICIOUS"
	VerdictCritical   Verdict = "CRITICAL"
)

// Severity represents the severity level attached to a rule and to each
// mismatch it produces.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityCritical Severity = "critical"
)

// ParseVerdict converts s to a Verdict. It reports false for unknown values.
func ParseVerdict(s string) (Verdict, bool) {
	switch v := Verdict(s); v {
	case VerdictOK, VerdictWarning, VerdictSuspicious, VerdictCritical:
		return v, true
	}
	return "", false
}

// Outcome is one failed rule: both candidates' resolved values and why they
// did not match.
type Outcome struct {
	Path     string         `json:"path"`
	ValueA   document.Value `json:"value_a"`
	ValueB   document.Value `json:"value_b"`
	Severity Severity       `json:"severity"`
	Reason   string         `json:"reason"`
}

// Report is the verdict record emitted for one assessment.
type Report struct {
	Identifier *string   `json:"identifier"`
	Verdict    Verdict   `json:"verdict"`
	Outcomes   []Outcome `json:"report"`
	Timestamp  int64     `json:"timestamp"`
}

// ID returns the identifier or "" when the reference carried none.
func (r *Report) ID() string {
	if r == nil || r.Identifier == nil {
		return ""
	}
	return *r.Identifier
}

// Diagnostics counts the locally recovered failures of one assessment.
// They never appear in the verdict record; the consumption loop aggregates them.
type Diagnostics struct {
	DecodeFailures     int `json:"decode_failures"`
	ResolutionFailures int `json:"resolution_failures"`
	StructuralFailures int `json:"structural_failures"`
	ComparatorFailures int `json:"comparator_failures"`
}

// Add accumulates other into d.
func (d *Diagnostics) Add(other Diagnostics) {
	d.DecodeFailures += other.DecodeFailures
	d.ResolutionFailures += other.ResolutionFailures
	d.StructuralFailures += other.StructuralFailures
	d.ComparatorFailures += other.ComparatorFailures
}

// Empty reports whether nothing was recovered.
func (d Diagnostics) Empty() bool {
	return d == Diagnostics{}
}
