package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyPayload is wrapped by a DecodeError when the payload has no content.
var ErrEmptyPayload = errors.New("empty payload")

// DecodeError records a payload that could not be decoded. It is recovered
// locally: Decode still returns a usable empty object alongside it.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("document: decode: %v", e.Err)
	}
	return fmt.Sprintf("document: decode %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses a single JSON document. Empty or malformed input yields an
// empty object together with a *DecodeError; the returned Value is always
// safe to assess.
func Decode(source string, data []byte) (Value, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return EmptyObject(), &DecodeError{Source: source, Err: ErrEmptyPayload}
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return EmptyObject(), &DecodeError{Source: source, Err: err}
	}
	if dec.More() {
		return EmptyObject(), &DecodeError{Source: source, Err: errors.New("trailing data after document")}
	}
	v, err := FromInterface(x)
	if err != nil {
		return EmptyObject(), &DecodeError{Source: source, Err: err}
	}
	return v, nil
}

// MustDecode is Decode for literals known to be valid. It panics on error.
func MustDecode(text string) Value {
	v, err := Decode("literal", []byte(text))
	if err != nil {
		panic(err)
	}
	return v
}
