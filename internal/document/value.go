// Package document models candidate JSON documents as a closed tagged variant
// and provides the decoding and path navigation used by the assessment engine.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is an immutable-by-convention JSON value. The zero Value is null.
//
// Arrays and objects share their backing storage when a Value is copied; use
// Clone before mutating a container obtained from a Value you do not own.
type Value struct {
	kind Kind
	b    bool
	n    float64
	// lit is the number's source text when it came from a decoder; n alone
	// cannot hold integers beyond 2^53.
	lit  string
	s    string
	arr  []Value
	obj  map[string]Value
}

// Null returns the JSON null value.
func Null() Value { return Value{} }

// Bool returns a JSON boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a JSON number.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// NumberLiteral returns a JSON number from its decimal text, keeping the text
// so comparisons stay exact. The float64 value is the nearest approximation.
func NumberLiteral(text string) (Value, error) {
	if text == "" || !(text[0] == '-' || (text[0] >= '0' && text[0] <= '9')) || !json.Valid([]byte(text)) {
		return Value{}, fmt.Errorf("document: number %q: not a JSON number", text)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Value{}, fmt.Errorf("document: number %q: %w", text, err)
	}
	if _, ok := canonicalDecimal(text); !ok {
		return Value{}, fmt.Errorf("document: number %q: not a decimal literal", text)
	}
	return Value{kind: KindNumber, n: f, lit: text}, nil
}

// String returns a JSON string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array returns a JSON array holding elems. The slice is not copied.
func Array(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: KindArray, arr: elems}
}

// Object returns a JSON object holding fields. The map is not copied.
func Object(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindObject, obj: fields}
}

// EmptyObject returns a fresh {}.
func EmptyObject() Value { return Object(nil) }

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is JSON null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsObject reports whether v is a JSON object.
func (v Value) IsObject() bool { return v.kind == KindObject }

// BoolValue returns the boolean held by v.
func (v Value) BoolValue() (bool, bool) { return v.b, v.kind == KindBool }

// NumberValue returns the number held by v, rounded to float64.
func (v Value) NumberValue() (float64, bool) { return v.n, v.kind == KindNumber }

// Text returns the string held by v.
func (v Value) Text() (string, bool) { return v.s, v.kind == KindString }

// Elements returns the elements of an array value.
func (v Value) Elements() ([]Value, bool) { return v.arr, v.kind == KindArray }

// Fields returns the members of an object value.
func (v Value) Fields() (map[string]Value, bool) { return v.obj, v.kind == KindObject }

// Field looks up key on an object value. It reports false for missing keys and
// for values that are not objects.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	f, ok := v.obj[key]
	return f, ok
}

// Has reports whether v is an object with a member named key.
func (v Value) Has(key string) bool {
	_, ok := v.Field(key)
	return ok
}

// Keys returns the sorted member names of an object value.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		out := make([]Value, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Clone()
		}
		return Array(out...)
	case KindObject:
		out := make(map[string]Value, len(v.obj))
		for k, f := range v.obj {
			out[k] = f.Clone()
		}
		return Object(out)
	default:
		return v
	}
}

// Equal reports structural equality: same kind and same content. Numbers
// compare by exact decimal value, so 1 and 1.0 are equal while 1 and "1" are
// not, and integers beyond float64 precision stay distinct.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.numberKey() == b.numberKey()
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// CanonicalKey returns a deterministic encoding of v usable as a map key.
// Two values produce the same key exactly when Equal reports them equal.
func (v Value) CanonicalKey() string {
	var sb strings.Builder
	v.writeKey(&sb)
	return sb.String()
}

func (v Value) writeKey(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		sb.WriteString(v.numberKey())
	case KindString:
		sb.WriteString(strconv.Quote(v.s))
	case KindArray:
		sb.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				sb.WriteByte(',')
			}
			e.writeKey(sb)
		}
		sb.WriteByte(']')
	case KindObject:
		sb.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteByte(':')
			v.obj[k].writeKey(sb)
		}
		sb.WriteByte('}')
	}
}

// numberKey is the canonical decimal form of a number: 1, 1.0 and 10e-1 all
// map to "1e0", and -0 maps to "0".
func (v Value) numberKey() string {
	text := v.lit
	if text == "" {
		text = strconv.FormatFloat(v.n, 'g', -1, 64)
	}
	if k, ok := canonicalDecimal(text); ok {
		return k
	}
	// NaN and infinities.
	return text
}

// canonicalDecimal rewrites a decimal literal as sign, significant digits
// without leading or trailing zeros, and a base-ten exponent.
func canonicalDecimal(text string) (string, bool) {
	s, neg := text, false
	switch {
	case strings.HasPrefix(s, "-"):
		s, neg = s[1:], true
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	mant, exp := s, 0
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		e, err := strconv.Atoi(s[i+1:])
		if err != nil {
			return "", false
		}
		mant, exp = s[:i], e
	}
	whole, frac := mant, ""
	if i := strings.IndexByte(mant, '.'); i >= 0 {
		whole, frac = mant[:i], mant[i+1:]
	}
	digits := whole + frac
	if digits == "" {
		return "", false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	exp -= len(frac)
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "0", true
	}
	sig := strings.TrimRight(digits, "0")
	exp += len(digits) - len(sig)
	if neg {
		sig = "-" + sig
	}
	return sig + "e" + strconv.Itoa(exp), true
}

// Interface converts v to the encoding/json generic representation. Decoded
// numbers come back as json.Number so their text survives re-encoding.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if v.lit != "" {
			return json.Number(v.lit)
		}
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, f := range v.obj {
			out[k] = f.Interface()
		}
		return out
	default:
		return nil
	}
}

// FromInterface converts an encoding/json generic value into a Value.
// Unsupported Go types are an error.
func FromInterface(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case json.Number:
		return NumberLiteral(t.String())
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case string:
		return String(t), nil
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			ev, err := FromInterface(e)
			if err != nil {
				return Value{}, err
			}
			out[i] = ev
		}
		return Array(out...), nil
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			ev, err := FromInterface(e)
			if err != nil {
				return Value{}, err
			}
			out[k] = ev
		}
		return Object(out), nil
	default:
		return Value{}, fmt.Errorf("document: unsupported type %T", x)
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return err
	}
	parsed, err := FromInterface(x)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
