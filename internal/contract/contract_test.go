package contract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/nfdiff/internal/document"
)

const profileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["nfInstanceId", "nfType", "nfStatus"],
  "properties": {
    "nfInstanceId": {"type": "string"},
    "nfType": {"type": "string"},
    "nfStatus": {"type": "string"},
    "heartBeatTimer": {"type": "integer"},
    "ipv4Addresses": {"type": "array", "items": {"type": "string"}},
    "plmnList": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {"mcc": {"type": "string"}, "mnc": {"type": "string"}}
      }
    },
    "customInfo": {"type": "object"},
    "amfInfo": {
      "type": "object",
      "properties": {"amfSetId": {"type": "string"}, "amfRegionId": {"type": "string"}}
    },
    "tags": {"type": "array"}
  }
}`

func mustParse(t *testing.T, text string) *Schema {
	t.Helper()
	s, err := Parse([]byte(text))
	require.NoError(t, err)
	return s
}

func keysOf(v document.Value) []string { return v.Keys() }

func TestParse_FieldSets(t *testing.T) {
	s := mustParse(t, profileSchema)

	assert.Equal(t, []string{
		"amfInfo", "customInfo", "heartBeatTimer", "ipv4Addresses", "nfInstanceId",
		"nfStatus", "nfType", "plmnList", "tags",
	}, s.AllFields())
	assert.Equal(t, []string{
		"amfInfo", "customInfo", "heartBeatTimer", "ipv4Addresses", "plmnList", "tags",
	}, s.OptionalFields())
	assert.True(t, s.IsRequired("nfStatus"))
	assert.False(t, s.IsRequired("plmnList"))

	require.NotNil(t, s.Properties["plmnList"].Items)
	assert.True(t, s.Properties["plmnList"].Items.DeclaresProperties())
	assert.False(t, s.Properties["customInfo"].DeclaresProperties())
	assert.Nil(t, s.Properties["tags"].Items)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"not json":              `{`,
		"array root":            `[]`,
		"null root":             `null`,
		"properties not object": `{"properties": []}`,
		"required not array":    `{"required": "a"}`,
		"required bad entry":    `{"required": [1]}`,
		"nested error":          `{"properties": {"a": {"properties": 3}}}`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(text))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nf_profile_schema.json")
	require.NoError(t, os.WriteFile(path, []byte(profileSchema), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Required, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestPrune_DropsUndeclaredFields(t *testing.T) {
	s := mustParse(t, `{"properties": {"a": {}, "b": {}}}`)
	in := document.MustDecode(`{"a":1,"b":2,"c":3}`)

	got := Prune(in, s)

	assert.True(t, document.Equal(document.MustDecode(`{"a":1,"b":2}`), got))
	assert.Equal(t, []string{"a", "b", "c"}, keysOf(in), "input must not be mutated")
}

func TestPrune_Nested(t *testing.T) {
	s := mustParse(t, profileSchema)
	in := document.MustDecode(`{
	  "nfInstanceId": "id-1",
	  "nfStatus": "REGISTERED",
	  "x-vendor": {"build": "7"},
	  "amfInfo": {"amfSetId": "1", "x-open5gs-extra": true},
	  "plmnList": [{"mcc": "208", "mnc": "93", "vendorTag": 1}, "odd"],
	  "customInfo": {"anything": {"goes": 1}},
	  "tags": [{"kept": true}],
	  "ipv4Addresses": ["10.0.0.1"]
	}`)

	got := Prune(in, s)
	want := document.MustDecode(`{
	  "nfInstanceId": "id-1",
	  "nfStatus": "REGISTERED",
	  "amfInfo": {"amfSetId": "1"},
	  "plmnList": [{"mcc": "208", "mnc": "93"}, "odd"],
	  "customInfo": {},
	  "tags": [{"kept": true}],
	  "ipv4Addresses": ["10.0.0.1"]
	}`)
	if !document.Equal(want, got) {
		t.Errorf("Prune mismatch (-want +got):\n%s", cmp.Diff(want.Interface(), got.Interface()))
	}
}

func TestPrune_ObjectWithoutPropertiesKeepsNoMembers(t *testing.T) {
	s := mustParse(t, `{"properties": {"customInfo": {"type": "object"}, "flag": true}}`)
	a := Prune(document.MustDecode(`{"customInfo": {"x-vendor": 1}, "flag": {"x": 1}}`), s)
	b := Prune(document.MustDecode(`{"customInfo": {"x-other": 2}, "flag": {"y": 2}}`), s)

	want := document.MustDecode(`{"customInfo": {}, "flag": {}}`)
	assert.True(t, document.Equal(want, a), "got %v", a.Interface())
	assert.True(t, document.Equal(a, b), "vendor members must not survive pruning")
}

func TestPrune_ScalarsAndNilSchema(t *testing.T) {
	assert.True(t, document.Equal(document.Number(3), Prune(document.Number(3), nil)))
	obj := document.MustDecode(`{"a":{"b":1}}`)
	assert.True(t, document.Equal(obj, Prune(obj, nil)))
}

func TestReconcile_FillsOptionalFromOtherSide(t *testing.T) {
	s := mustParse(t, `{"required": ["a"], "properties": {"a": {}, "b": {}}}`)
	a := document.MustDecode(`{"a":1}`)
	b := document.MustDecode(`{"a":1,"b":5}`)

	gotA, gotB := Reconcile(a, b, s, false)

	assert.True(t, document.Equal(document.MustDecode(`{"a":1,"b":5}`), gotA))
	assert.True(t, document.Equal(document.MustDecode(`{"a":1,"b":5}`), gotB))
	assert.Equal(t, []string{"a"}, keysOf(a), "input must not be mutated")
}

func TestReconcile_AbsentOnBothSidesBecomesNull(t *testing.T) {
	s := mustParse(t, `{"required": ["a"], "properties": {"a": {}, "b": {}}}`)
	gotA, gotB := Reconcile(document.MustDecode(`{"a":1}`), document.MustDecode(`{"a":2}`), s, false)

	for _, v := range []document.Value{gotA, gotB} {
		f, ok := v.Field("b")
		require.True(t, ok)
		assert.True(t, f.IsNull())
	}
}

func TestReconcile_RequiredNeverTouched(t *testing.T) {
	s := mustParse(t, `{"required": ["a"], "properties": {"a": {}, "b": {}}}`)
	gotA, gotB := Reconcile(document.MustDecode(`{"b":1}`), document.MustDecode(`{"a":1,"b":1}`), s, false)

	assert.False(t, gotA.Has("a"))
	assert.True(t, gotB.Has("a"))
}

func TestReconcile_StrictIsNoop(t *testing.T) {
	s := mustParse(t, `{"required": ["a"], "properties": {"a": {}, "b": {}}}`)
	a := document.MustDecode(`{"a":1}`)
	b := document.MustDecode(`{"a":1,"b":5}`)

	gotA, gotB := Reconcile(a, b, s, true)

	assert.True(t, document.Equal(a, gotA))
	assert.True(t, document.Equal(b, gotB))
}

func TestReconcile_NonObjectCandidate(t *testing.T) {
	s := mustParse(t, `{"properties": {"b": {}}}`)
	gotA, gotB := Reconcile(document.Array(), document.MustDecode(`{}`), s, false)

	assert.Equal(t, document.KindArray, gotA.Kind())
	f, ok := gotB.Field("b")
	require.True(t, ok)
	assert.True(t, f.IsNull())
}
