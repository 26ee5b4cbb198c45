// Package contract holds the reference schema that defines the canonical NF
// profile contract, and the two pre-comparison passes driven by it: vendor
// extension pruning and optional-field reconciliation.
package contract

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Schema is one level of the reference schema. It is immutable once parsed.
type Schema struct {
	// Properties maps declared field names to their sub-schemas. It is nil
	// when the level declares no "properties" keyword at all.
	Properties map[string]*Schema
	// Items is the element sub-schema for arrays, or nil when undeclared.
	Items    *Schema
	Required []string

	required map[string]struct{}
}

// Load reads and parses the schema document at path.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("contract: read schema: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("contract: %s: %w", path, err)
	}
	return s, nil
}

// Parse builds a Schema from a JSON schema document. Only "properties",
// "items" and "required" are interpreted; every other keyword is ignored.
func Parse(data []byte) (*Schema, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("parse schema: root must be an object")
	}
	return build(raw, "")
}

func build(raw map[string]any, path string) (*Schema, error) {
	s := &Schema{required: map[string]struct{}{}}

	if p, ok := raw["properties"]; ok {
		props, ok := p.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s.properties: must be object", pathOrRoot(path))
		}
		s.Properties = make(map[string]*Schema, len(props))
		for name, sub := range props {
			subMap, ok := sub.(map[string]any)
			if !ok {
				// Boolean schemas and other shorthands carry no structure.
				s.Properties[name] = &Schema{required: map[string]struct{}{}}
				continue
			}
			child, err := build(subMap, join(path, name))
			if err != nil {
				return nil, err
			}
			s.Properties[name] = child
		}
	}

	if it, ok := raw["items"]; ok {
		if itemMap, ok := it.(map[string]any); ok {
			child, err := build(itemMap, join(path, "items"))
			if err != nil {
				return nil, err
			}
			s.Items = child
		}
	}

	if r, ok := raw["required"]; ok {
		list, ok := r.([]any)
		if !ok {
			return nil, fmt.Errorf("%s.required: must be array", pathOrRoot(path))
		}
		for i, item := range list {
			name, ok := item.(string)
			if !ok || name == "" {
				return nil, fmt.Errorf("%s.required[%d]: must be a non-empty string", pathOrRoot(path), i)
			}
			if _, dup := s.required[name]; dup {
				continue
			}
			s.required[name] = struct{}{}
			s.Required = append(s.Required, name)
		}
	}
	return s, nil
}

// DeclaresProperties reports whether this level constrains object members.
func (s *Schema) DeclaresProperties() bool {
	return s != nil && s.Properties != nil
}

// IsRequired reports whether name is listed in this level's "required".
func (s *Schema) IsRequired(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.required[name]
	return ok
}

// AllFields returns every declared property name, sorted.
func (s *Schema) AllFields() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// OptionalFields returns AllFields minus Required, sorted.
func (s *Schema) OptionalFields() []string {
	var out []string
	for _, name := range s.AllFields() {
		if !s.IsRequired(name) {
			out = append(out, name)
		}
	}
	return out
}

func pathOrRoot(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}

func join(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}
