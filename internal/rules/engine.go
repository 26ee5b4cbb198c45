package rules

import (
	"errors"
	"fmt"

	"github.com/dshills/nfdiff/internal/document"
	"github.com/dshills/nfdiff/internal/schema"
)

// Evaluation is the result of running a rule set over one candidate pair.
type Evaluation struct {
	Outcomes    []schema.Outcome
	Diagnostics schema.Diagnostics
}

// Evaluate runs rs in order against a and b and returns one outcome per rule
// that did not pass. Unresolved paths, structural resolution failures and
// comparator failures are recovered here and counted in Diagnostics.
func Evaluate(rs []Rule, a, b document.Value, defaultEpsilon float64) Evaluation {
	ev := Evaluation{Outcomes: []schema.Outcome{}}
	for _, r := range rs {
		va, errA := document.Resolve(a, r.Path)
		vb, errB := document.Resolve(b, r.Path)
		if errA != nil {
			ev.Diagnostics.ResolutionFailures++
		}
		if errB != nil {
			ev.Diagnostics.ResolutionFailures++
		}
		if isStructural(errA) || isStructural(errB) {
			ev.Diagnostics.StructuralFailures++
			va, vb = document.Null(), document.Null()
		}

		pass, detail, err := Match(r, va, vb, defaultEpsilon)
		if err != nil {
			ev.Diagnostics.ComparatorFailures++
		}
		if pass {
			continue
		}
		reason := fmt.Sprintf("Field mismatch using %s comparison", r.Compare)
		if detail != "" {
			reason += " (" + detail + ")"
		}
		ev.Outcomes = append(ev.Outcomes, schema.Outcome{
			Path:     r.Path,
			ValueA:   va,
			ValueB:   vb,
			Severity: r.EffectiveSeverity(),
			Reason:   reason,
		})
	}
	return ev
}

// Match decides a single rule. An absent value (unresolved or null) on either
// side passes only under the ignore comparator, even when both sides are
// absent. detail explains a failure that is not a plain value difference.
func Match(r Rule, a, b document.Value, defaultEpsilon float64) (pass bool, detail string, err error) {
	if r.Compare == CompareIgnore {
		return true, "", nil
	}
	switch {
	case a.IsNull() && b.IsNull():
		return false, "value absent on both sides", nil
	case a.IsNull():
		return false, "value_a absent", nil
	case b.IsNull():
		return false, "value_b absent", nil
	}
	ok, err := Compare(r.Compare, a, b, r.EffectiveEpsilon(defaultEpsilon))
	if err != nil {
		var ce *ComparatorError
		if errors.As(err, &ce) {
			return false, fmt.Sprintf("value_%s %s", ce.Side, ce.Reason), err
		}
		return false, err.Error(), err
	}
	return ok, "", nil
}

func isStructural(err error) bool {
	var re *document.ResolveError
	return errors.As(err, &re) && re.Structural()
}
