package assess

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Envelope member names used on the diffs channel.
const (
	FieldRequest    = "request"
	FieldCandidateA = "open5gs"
	FieldCandidateB = "free5gc"
)

// ErrMalformedEnvelope is wrapped by DecodeEnvelope when the message is not a
// JSON object.
var ErrMalformedEnvelope = errors.New("assess: malformed envelope")

// Envelope holds the raw document text of one pub/sub message. A member may
// be nil when the message did not carry it.
type Envelope struct {
	Request    []byte
	CandidateA []byte
	CandidateB []byte
}

// DecodeEnvelope splits msg into its three documents. Each member is either a
// JSON string holding a document or the document embedded as-is. A missing or
// null member is left nil. On error the returned Envelope is empty and still
// usable.
func DecodeEnvelope(msg []byte) (Envelope, error) {
	if !gjson.ValidBytes(msg) {
		return Envelope{}, fmt.Errorf("%w: invalid JSON", ErrMalformedEnvelope)
	}
	root := gjson.ParseBytes(msg)
	if !root.IsObject() {
		return Envelope{}, fmt.Errorf("%w: %s is not an object", ErrMalformedEnvelope, root.Type)
	}
	m := root.Get(FieldRequest)
	a := root.Get(FieldCandidateA)
	b := root.Get(FieldCandidateB)
	return Envelope{
		Request:    member(m),
		CandidateA: member(a),
		CandidateB: member(b),
	}, nil
}

func member(r gjson.Result) []byte {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.String:
		return []byte(r.Str)
	default:
		return []byte(r.Raw)
	}
}

// EncodeEnvelope builds a message in the string-member form.
func EncodeEnvelope(ref, a, b []byte) ([]byte, error) {
	msg, err := json.Marshal(map[string]string{
		FieldRequest:    string(ref),
		FieldCandidateA: string(a),
		FieldCandidateB: string(b),
	})
	if err != nil {
		return nil, fmt.Errorf("assess: encode envelope: %w", err)
	}
	return msg, nil
}
