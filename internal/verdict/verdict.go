// Package verdict folds a mismatch list into a single verdict. It is pure and
// deterministic.
package verdict

import (
	"github.com/dshills/nfdiff/internal/schema"
)

// DefaultMaxDiffVolume is the mismatch count above which a non-critical
// verdict is overridden to SUSPICIOUS.
const DefaultMaxDiffVolume = 50

// Ordinal returns the numeric ordinal for a verdict, used to compare
// strictness. OK=0, WARNING=1, SUSPICIOUS=2, CRITICAL=3.
// Used by --fail-on comparison: exit 2 if Ordinal(actual) >= Ordinal(threshold).
func Ordinal(v schema.Verdict) int {
	switch v {
	case schema.VerdictOK:
		return 0
	case schema.VerdictWarning:
		return 1
	case schema.VerdictSuspicious:
		return 2
	case schema.VerdictCritical:
		return 3
	default:
		return -1
	}
}

// Determine applies severity escalation to outcomes in order, then the volume
// override.
//
// Rules:
//  1. Start at OK.
//  2. A critical outcome sets CRITICAL; nothing processed later can lower it.
//  3. A moderate outcome sets WARNING unless the verdict is already CRITICAL.
//  4. A low outcome never changes the verdict.
//  5. After the fold, more than maxDiffVolume outcomes turn any non-CRITICAL
//     verdict into SUSPICIOUS.
//
// Precedence is therefore CRITICAL > SUSPICIOUS > WARNING > OK.
func Determine(outcomes []schema.Outcome, maxDiffVolume int) schema.Verdict {
	v := schema.VerdictOK
	for _, o := range outcomes {
		if v == schema.VerdictCritical {
			break
		}
		switch o.Severity {
		case schema.SeverityCritical:
			v = schema.VerdictCritical
		case schema.SeverityModerate:
			v = schema.VerdictWarning
		}
	}

	if len(outcomes) > maxDiffVolume && v != schema.VerdictCritical {
		v = schema.VerdictSuspicious
	}
	return v
}

// CountSeverities aggregates severity counts across outcomes.
func CountSeverities(outcomes []schema.Outcome) (critical, moderate, low int) {
	for _, o := range outcomes {
		switch o.Severity {
		case schema.SeverityCritical:
			critical++
		case schema.SeverityModerate:
			moderate++
		case schema.SeverityLow:
			low++
		}
	}
	return
}
