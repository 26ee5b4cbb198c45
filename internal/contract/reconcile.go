package contract

import "github.com/dshills/nfdiff/internal/document"

// Reconcile cross-fills optional top-level fields between two pruned
// candidates. A field in s.OptionalFields() that is absent from one side takes
// the other side's value, or an explicit null when both lack it. Required
// fields are never touched.
//
// With strict set the candidates are returned unchanged, so a missing
// optional field stays unresolved for the rule engine. Non-object candidates
// are returned as they are. The inputs are never mutated.
func Reconcile(a, b document.Value, s *Schema, strict bool) (document.Value, document.Value) {
	if strict || s == nil {
		return a, b
	}
	optional := s.OptionalFields()
	if len(optional) == 0 {
		return a, b
	}

	aFields, aObj := a.Fields()
	bFields, bObj := b.Fields()

	var outA, outB map[string]document.Value
	if aObj {
		outA = shallowCopy(aFields)
	}
	if bObj {
		outB = shallowCopy(bFields)
	}

	for _, name := range optional {
		if aObj {
			if _, ok := aFields[name]; !ok {
				outA[name] = valueOrNull(bFields, name)
			}
		}
		if bObj {
			if _, ok := bFields[name]; !ok {
				outB[name] = valueOrNull(aFields, name)
			}
		}
	}

	if aObj {
		a = document.Object(outA)
	}
	if bObj {
		b = document.Object(outB)
	}
	return a, b
}

func shallowCopy(in map[string]document.Value) map[string]document.Value {
	out := make(map[string]document.Value, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// valueOrNull reads name from fields, which is nil when the other candidate
// is not an object.
func valueOrNull(fields map[string]document.Value, name string) document.Value {
	if v, ok := fields[name]; ok {
		return v
	}
	return document.Null()
}
