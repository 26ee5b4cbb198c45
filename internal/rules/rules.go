// Package rules loads the ordered comparison rule set and evaluates it against
// a pair of reconciled candidate documents.
package rules

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/nfdiff/internal/schema"
)

// Comparison names the comparator a rule applies.
type Comparison string

const (
	CompareExact            Comparison = "exact"
	CompareNumericTolerance Comparison = "numeric_tolerance"
	CompareSetEquality      Comparison = "set_equality"
	CompareIgnore           Comparison = "ignore"
)

// ErrUnknownComparison is returned by ParseComparison for unrecognized names.
var ErrUnknownComparison = errors.New("rules: unknown comparison")

// ParseComparison converts a string to a Comparison constant.
func ParseComparison(s string) (Comparison, error) {
	switch c := Comparison(s); c {
	case CompareExact, CompareNumericTolerance, CompareSetEquality, CompareIgnore:
		return c, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownComparison, s)
}

// Rule is one entry of the rule set.
type Rule struct {
	Path     string          `yaml:"path" json:"path"`
	Compare  Comparison      `yaml:"compare" json:"compare"`
	Severity schema.Severity `yaml:"severity,omitempty" json:"severity,omitempty"`
	// Epsilon overrides the global numeric tolerance for this rule.
	Epsilon *float64 `yaml:"epsilon,omitempty" json:"epsilon,omitempty"`
}

// EffectiveSeverity returns the rule's severity, defaulting to low.
func (r Rule) EffectiveSeverity() schema.Severity {
	if r.Severity == "" {
		return schema.SeverityLow
	}
	return r.Severity
}

// EffectiveEpsilon returns the rule's epsilon override or def.
func (r Rule) EffectiveEpsilon(def float64) float64 {
	if r.Epsilon != nil {
		return *r.Epsilon
	}
	return def
}

// File is the root of a rule set document.
type File struct {
	Rules []Rule `yaml:"rules"`
}

// Load reads the rule set at path. The document is YAML (JSON is accepted as
// a YAML subset) whose root is either a mapping with a "rules" key or a bare
// sequence of rules. Rules are validated and normalized before return.
func Load(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules: %s: %w", path, err)
	}
	return rs, nil
}

// Parse decodes and validates a rule set document.
func Parse(data []byte) ([]Rule, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, errors.New("empty rule set document")
	}

	var rs []Rule
	switch doc := root.Content[0]; doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&rs); err != nil {
			return nil, fmt.Errorf("decode rules: %w", err)
		}
	case yaml.MappingNode:
		if !hasKey(doc, "rules") {
			return nil, errors.New(`missing "rules" key`)
		}
		var f File
		if err := doc.Decode(&f); err != nil {
			return nil, fmt.Errorf("decode rules: %w", err)
		}
		rs = f.Rules
	default:
		return nil, errors.New("rule set must be a mapping or a sequence")
	}

	if problems := Validate(rs); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return Normalize(rs), nil
}

func hasKey(m *yaml.Node, key string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return true
		}
	}
	return false
}

// ValidationError lists every problem found in a rule set.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid rule set: " + strings.Join(e.Problems, "; ")
}

// Validate returns one message per problem in rs. An empty result means the
// rule set is usable.
func Validate(rs []Rule) []string {
	var errs []string
	for i, r := range rs {
		prefix := fmt.Sprintf("rules[%d]", i)
		if strings.TrimSpace(r.Path) == "" {
			errs = append(errs, prefix+": path is required")
		}
		if r.Compare == "" {
			errs = append(errs, prefix+": compare is required")
		} else if _, err := ParseComparison(string(r.Compare)); err != nil {
			errs = append(errs, fmt.Sprintf("%s: compare %q is not valid", prefix, r.Compare))
		}
		switch r.Severity {
		case "", schema.SeverityLow, schema.SeverityModerate, schema.SeverityCritical:
			// valid
		default:
			errs = append(errs, fmt.Sprintf("%s: severity %q is not valid", prefix, r.Severity))
		}
		if r.Epsilon != nil {
			if e := *r.Epsilon; e < 0 || math.IsNaN(e) || math.IsInf(e, 0) {
				errs = append(errs, fmt.Sprintf("%s: epsilon %v must be a finite non-negative number", prefix, e))
			}
		}
	}
	return errs
}

// Normalize returns a copy of rs with defaults filled in.
func Normalize(rs []Rule) []Rule {
	out := make([]Rule, len(rs))
	for i, r := range rs {
		r.Path = strings.TrimSpace(r.Path)
		r.Severity = r.EffectiveSeverity()
		out[i] = r
	}
	return out
}
