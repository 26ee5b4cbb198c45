package rules

import (
	"errors"
	"testing"

	"github.com/dshills/nfdiff/internal/document"
)

var d = document.MustDecode

func TestCompare_Ignore(t *testing.T) {
	values := []string{`1`, `"x"`, `null`, `[1]`, `{"a":1}`, `true`}
	for _, a := range values {
		for _, b := range values {
			r := Rule{Path: "p", Compare: CompareIgnore}
			pass, _, err := Match(r, d(a), d(b), 0)
			if !pass || err != nil {
				t.Errorf("ignore(%s, %s) = %v, %v; want pass", a, b, pass, err)
			}
		}
	}
}

func TestCompare_Exact(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{`"REGISTERED"`, `"REGISTERED"`, true},
		{`"REGISTERED"`, `"SUSPENDED"`, false},
		{`1`, `"1"`, false},
		{`1`, `1.0000001`, false},
		{`{"a":[1,2]}`, `{"a":[1,2]}`, true},
		{`[1,2]`, `[2,1]`, false},
		{`9007199254740993`, `9007199254740992`, false},
		{`18446744073709551617`, `18446744073709551617`, true},
		{`0`, `-0`, true},
	}
	for _, c := range cases {
		got, err := Compare(CompareExact, d(c.a), d(c.b), 0)
		if err != nil {
			t.Fatalf("exact(%s, %s): unexpected error %v", c.a, c.b, err)
		}
		if got != c.want {
			t.Errorf("exact(%s, %s) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestCompare_NumericTolerance(t *testing.T) {
	cases := []struct {
		a, b    string
		epsilon float64
		want    bool
		wantErr bool
	}{
		{`1.00`, `1.01`, 0.01, true, false},
		{`1.00`, `1.02`, 0.01, false, false},
		{`100`, `100`, 0, true, false},
		{`100`, `100.5`, 0, false, false},
		{`"42.5"`, `42.5`, 1e-6, true, false},
		{`true`, `1`, 1e-6, true, false},
		{`"abc"`, `1`, 1, false, true},
		{`1`, `[1]`, 1, false, true},
		{`{"a":1}`, `1`, 1, false, true},
	}
	for _, c := range cases {
		got, err := Compare(CompareNumericTolerance, d(c.a), d(c.b), c.epsilon)
		if (err != nil) != c.wantErr {
			t.Errorf("numeric(%s, %s): err = %v, wantErr %v", c.a, c.b, err, c.wantErr)
		}
		if err != nil {
			var ce *ComparatorError
			if !errors.As(err, &ce) {
				t.Errorf("numeric(%s, %s): error %T is not *ComparatorError", c.a, c.b, err)
			}
		}
		if got != c.want {
			t.Errorf("numeric(%s, %s, eps=%v) = %v, want %v", c.a, c.b, c.epsilon, got, c.want)
		}
	}
}

func TestCompare_SetEquality(t *testing.T) {
	cases := []struct {
		a, b    string
		want    bool
		wantErr bool
	}{
		{`[1,2,2,3]`, `[3,2,1]`, true, false},
		{`["10.0.0.1","10.0.0.2"]`, `["10.0.0.2","10.0.0.1","10.0.0.1"]`, true, false},
		{`[1,2]`, `[1,2,3]`, false, false},
		{`[]`, `[]`, true, false},
		{`[{"mcc":"208"},{"mcc":"001"}]`, `[{"mcc":"001"},{"mcc":"208"}]`, true, false},
		{`[1]`, `[1.0]`, true, false},
		{`[1]`, `["1"]`, false, false},
		{`[9007199254740993]`, `[9007199254740992]`, false, false},
		{`[0]`, `[-0]`, true, false},
		{`"abc"`, `["a","b","c"]`, false, true},
		{`[1]`, `{"a":1}`, false, true},
		{`5`, `5`, false, true},
	}
	for _, c := range cases {
		got, err := Compare(CompareSetEquality, d(c.a), d(c.b), 0)
		if (err != nil) != c.wantErr {
			t.Errorf("set(%s, %s): err = %v, wantErr %v", c.a, c.b, err, c.wantErr)
		}
		if got != c.want {
			t.Errorf("set(%s, %s) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestMatch_AbsentValuesAreMismatches(t *testing.T) {
	for _, c := range []Comparison{CompareExact, CompareNumericTolerance, CompareSetEquality} {
		r := Rule{Path: "p", Compare: c}
		for _, pair := range [][2]document.Value{
			{document.Null(), document.Null()},
			{document.Null(), document.Number(1)},
			{document.Array(), document.Null()},
		} {
			pass, detail, err := Match(r, pair[0], pair[1], 1)
			if pass {
				t.Errorf("%s with absent value passed", c)
			}
			if detail == "" {
				t.Errorf("%s with absent value: empty detail", c)
			}
			if err != nil {
				t.Errorf("%s with absent value: absence is not a comparator error, got %v", c, err)
			}
		}
	}
}

func TestMatch_RuleEpsilonOverridesDefault(t *testing.T) {
	r := Rule{Path: "load", Compare: CompareNumericTolerance, Epsilon: eps(5)}
	pass, _, _ := Match(r, document.Number(10), document.Number(14), 1e-6)
	if !pass {
		t.Error("epsilon override of 5 should accept a difference of 4")
	}
	r.Epsilon = nil
	pass, _, _ = Match(r, document.Number(10), document.Number(14), 1e-6)
	if pass {
		t.Error("default epsilon should reject a difference of 4")
	}
}
