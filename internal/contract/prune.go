package contract

import "github.com/dshills/nfdiff/internal/document"

// Prune returns a copy of v holding only what s declares. Object members not
// listed in the level's properties are dropped and kept members are pruned
// against their own sub-schema. Array elements are pruned against Items.
//
// An object under a level that declares no properties keeps no members. An
// array with no items schema, or any value under a nil schema, is copied
// through unmodified. The input is never mutated.
func Prune(v document.Value, s *Schema) document.Value {
	switch v.Kind() {
	case document.KindObject:
		if s == nil {
			return v.Clone()
		}
		fields, _ := v.Fields()
		out := make(map[string]document.Value, len(fields))
		for name, child := range fields {
			sub, ok := s.Properties[name]
			if !ok {
				continue
			}
			out[name] = Prune(child, sub)
		}
		return document.Object(out)
	case document.KindArray:
		var items *Schema
		if s != nil {
			items = s.Items
		}
		if items == nil {
			return v.Clone()
		}
		elems, _ := v.Elements()
		out := make([]document.Value, len(elems))
		for i, e := range elems {
			out[i] = Prune(e, items)
		}
		return document.Array(out...)
	default:
		return v
	}
}
