// Package assess is the verdict-assessment engine. It prunes both candidates
// against the reference schema, reconciles optional fields, evaluates the
// rule set and folds the mismatches into a verdict record.
//
// An Engine holds only immutable configuration and is safe for concurrent use.
package assess

import (
	"errors"
	"time"

	"github.com/dshills/nfdiff/internal/contract"
	"github.com/dshills/nfdiff/internal/document"
	"github.com/dshills/nfdiff/internal/rules"
	"github.com/dshills/nfdiff/internal/schema"
	"github.com/dshills/nfdiff/internal/verdict"
)

// DefaultIdentifierPath locates the NF instance id in the reference document.
const DefaultIdentifierPath = "nfInstanceId"

// Settings is the engine configuration: reference schema, ordered rule set and
// thresholds. It is loaded once at startup.
type Settings struct {
	Schema           *contract.Schema
	Rules            []rules.Rule
	NumericTolerance float64
	StrictOptional   bool
	MaxDiffVolume    int
	IdentifierPath   string
}

// Result is one assessment: the verdict record plus the failures that were
// recovered while producing it.
type Result struct {
	Report      *schema.Report
	Diagnostics schema.Diagnostics
}

// Engine assesses candidate pairs against fixed Settings.
type Engine struct {
	settings Settings
	now      func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New validates s and returns an Engine that owns a private copy of the rule
// set.
func New(s Settings, opts ...Option) (*Engine, error) {
	if s.Schema == nil {
		return nil, errors.New("assess: schema is required")
	}
	if s.MaxDiffVolume < 0 {
		return nil, errors.New("assess: max diff volume must not be negative")
	}
	if s.NumericTolerance < 0 {
		return nil, errors.New("assess: numeric tolerance must not be negative")
	}
	if problems := rules.Validate(s.Rules); len(problems) > 0 {
		return nil, &rules.ValidationError{Problems: problems}
	}
	s.Rules = rules.Normalize(s.Rules)
	if s.IdentifierPath == "" {
		s.IdentifierPath = DefaultIdentifierPath
	}
	e := &Engine{settings: s, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Settings returns the engine configuration. The rule slice must not be
// modified.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Assess compares candidates a and b. ref only supplies the identifier. The
// caller's values are never mutated.
func (e *Engine) Assess(ref, a, b document.Value) Result {
	s := e.settings

	prunedA := contract.Prune(a, s.Schema)
	prunedB := contract.Prune(b, s.Schema)
	recA, recB := contract.Reconcile(prunedA, prunedB, s.Schema, s.StrictOptional)

	ev := rules.Evaluate(s.Rules, recA, recB, s.NumericTolerance)

	return Result{
		Report: &schema.Report{
			Identifier: identifier(ref, s.IdentifierPath),
			Verdict:    verdict.Determine(ev.Outcomes, s.MaxDiffVolume),
			Outcomes:   ev.Outcomes,
			Timestamp:  e.now().Unix(),
		},
		Diagnostics: ev.Diagnostics,
	}
}

// AssessRaw decodes the three raw documents and assesses them. Empty or
// malformed payloads degrade to empty objects and are counted as decode
// failures.
func (e *Engine) AssessRaw(ref, a, b []byte) Result {
	var decodeFailures int
	decode := func(source string, data []byte) document.Value {
		v, err := document.Decode(source, data)
		if err != nil {
			decodeFailures++
		}
		return v
	}
	res := e.Assess(
		decode(FieldRequest, ref),
		decode(FieldCandidateA, a),
		decode(FieldCandidateB, b),
	)
	res.Diagnostics.DecodeFailures += decodeFailures
	return res
}

// AssessMessage decodes a pub/sub envelope and assesses it. A malformed
// envelope is assessed as three empty documents.
func (e *Engine) AssessMessage(msg []byte) Result {
	env, err := DecodeEnvelope(msg)
	res := e.AssessRaw(env.Request, env.CandidateA, env.CandidateB)
	if err != nil {
		res.Diagnostics.DecodeFailures++
	}
	return res
}

func identifier(ref document.Value, path string) *string {
	v, err := document.Resolve(ref, path)
	if err != nil {
		return nil
	}
	s, ok := v.Text()
	if !ok {
		return nil
	}
	return &s
}
