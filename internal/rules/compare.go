package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dshills/nfdiff/internal/document"
)

// ComparatorError reports a value the comparator could not interpret. The
// comparison is recorded as a mismatch.
type ComparatorError struct {
	Comparison Comparison
	Side       string
	Reason     string
}

func (e *ComparatorError) Error() string {
	return fmt.Sprintf("rules: %s: value_%s %s", e.Comparison, e.Side, e.Reason)
}

// toleranceSlack absorbs binary representation error at the epsilon
// boundary, so 1.00 and 1.01 are within 0.01 of each other.
const toleranceSlack = 1e-9

// Compare applies comparator c to two present values. A non-nil error is
// always a *ComparatorError and always comes with a false result.
func Compare(c Comparison, a, b document.Value, epsilon float64) (bool, error) {
	switch c {
	case CompareIgnore:
		return true, nil
	case CompareExact:
		return document.Equal(a, b), nil
	case CompareNumericTolerance:
		return withinTolerance(a, b, epsilon)
	case CompareSetEquality:
		return setsEqual(a, b)
	default:
		return false, &ComparatorError{Comparison: c, Side: "a", Reason: "has no comparator"}
	}
}

func withinTolerance(a, b document.Value, epsilon float64) (bool, error) {
	x, err := toFloat(a)
	if err != nil {
		return false, &ComparatorError{Comparison: CompareNumericTolerance, Side: "a", Reason: err.Error()}
	}
	y, err := toFloat(b)
	if err != nil {
		return false, &ComparatorError{Comparison: CompareNumericTolerance, Side: "b", Reason: err.Error()}
	}
	diff := math.Abs(x - y)
	return diff <= epsilon*(1+toleranceSlack), nil
}

// toFloat casts numbers, numeric strings and booleans.
func toFloat(v document.Value) (float64, error) {
	switch v.Kind() {
	case document.KindNumber:
		n, _ := v.NumberValue()
		return n, nil
	case document.KindString:
		s, _ := v.Text()
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not numeric", s)
		}
		return f, nil
	case document.KindBool:
		if b, _ := v.BoolValue(); b {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("of kind %s is not numeric", v.Kind())
	}
}

func setsEqual(a, b document.Value) (bool, error) {
	sa, err := toSet(a)
	if err != nil {
		return false, &ComparatorError{Comparison: CompareSetEquality, Side: "a", Reason: err.Error()}
	}
	sb, err := toSet(b)
	if err != nil {
		return false, &ComparatorError{Comparison: CompareSetEquality, Side: "b", Reason: err.Error()}
	}
	if len(sa) != len(sb) {
		return false, nil
	}
	for k := range sa {
		if _, ok := sb[k]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func toSet(v document.Value) (map[string]struct{}, error) {
	elems, ok := v.Elements()
	if !ok {
		return nil, fmt.Errorf("of kind %s is not a collection", v.Kind())
	}
	set := make(map[string]struct{}, len(elems))
	for _, e := range elems {
		set[e.CanonicalKey()] = struct{}{}
	}
	return set, nil
}
