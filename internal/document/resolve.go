package document

import (
	"fmt"
	"strconv"
	"strings"
)

// ResolveFailure classifies why a path did not resolve.
type ResolveFailure uint8

const (
	// MissingKey: the segment names a key absent from an object.
	MissingKey ResolveFailure = iota + 1
	// IndexOutOfRange: the segment is a valid index but the array is too short.
	IndexOutOfRange
	// InvalidIndex: the segment is not a non-negative integer but the value is an array.
	InvalidIndex
	// ScalarTraversal: segments remain but the current value is a scalar or null.
	ScalarTraversal
)

func (f ResolveFailure) String() string {
	switch f {
	case MissingKey:
		return "missing key"
	case IndexOutOfRange:
		return "index out of range"
	case InvalidIndex:
		return "invalid array index"
	case ScalarTraversal:
		return "cannot traverse scalar"
	default:
		return "unknown failure"
	}
}

// ResolveError reports a path that did not resolve against a document.
type ResolveError struct {
	Path    string
	Segment string
	Depth   int
	Failure ResolveFailure
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("document: resolve %q: segment %q at depth %d: %s", e.Path, e.Segment, e.Depth, e.Failure)
}

// Structural reports whether the failure came from type confusion mid-path
// rather than from data that is simply absent.
func (e *ResolveError) Structural() bool {
	return e.Failure == InvalidIndex || e.Failure == ScalarTraversal
}

// Resolve walks a dot-separated path through v. Array values consume the
// segment as a non-negative integer index; object values consume it as a key.
// On failure the returned Value is null and the error is a *ResolveError.
func Resolve(v Value, path string) (Value, error) {
	cur := v
	for depth, seg := range strings.Split(path, ".") {
		switch cur.kind {
		case KindArray:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 {
				return Null(), &ResolveError{Path: path, Segment: seg, Depth: depth, Failure: InvalidIndex}
			}
			if idx >= len(cur.arr) {
				return Null(), &ResolveError{Path: path, Segment: seg, Depth: depth, Failure: IndexOutOfRange}
			}
			cur = cur.arr[idx]
		case KindObject:
			next, ok := cur.obj[seg]
			if !ok {
				return Null(), &ResolveError{Path: path, Segment: seg, Depth: depth, Failure: MissingKey}
			}
			cur = next
		default:
			return Null(), &ResolveError{Path: path, Segment: seg, Depth: depth, Failure: ScalarTraversal}
		}
	}
	return cur, nil
}
