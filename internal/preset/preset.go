// Package preset defines named assessment presets. A preset seeds the numeric
// tolerance, strict-optional flag and volume threshold before the config file,
// environment and flags are applied on top.
package preset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownPreset is wrapped by Load for names that are not built in.
var ErrUnknownPreset = errors.New("preset: unknown preset")

// DefaultName is the preset used when none is configured.
const DefaultName = "default"

// Preset describes one assessment posture.
type Preset struct {
	Name             string
	Description      string
	NumericTolerance float64
	// StrictOptional, when true, disables cross-filling of optional fields so
	// an optional field populated by only one implementation is a mismatch.
	StrictOptional bool
	MaxDiffVolume  int
}

// builtins is the registry of built-in presets keyed by name.
var builtins = map[string]Preset{
	"default": {
		Name:             "default",
		Description:      "Reconciles optional fields; flags more than 50 mismatches as suspicious.",
		NumericTolerance: 1e-6,
		StrictOptional:   false,
		MaxDiffVolume:    50,
	},
	"strict": {
		Name: "strict",
		Description: "Compares candidates exactly as pruned and treats more than 10 mismatches " +
			"as suspicious.",
		NumericTolerance: 1e-6,
		StrictOptional:   true,
		MaxDiffVolume:    10,
	},
	"lenient": {
		Name: "lenient",
		Description: "Wider numeric tolerance and a high volume threshold, for deployments " +
			"whose implementations round load and capacity figures differently.",
		NumericTolerance: 1e-3,
		StrictOptional:   false,
		MaxDiffVolume:    200,
	},
}

// Names returns the built-in preset names, sorted.
func Names() []string {
	out := make([]string, 0, len(builtins))
	for name := range builtins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Load returns the named built-in preset or an error if the name is unknown.
// An empty name selects DefaultName.
func Load(name string) (Preset, error) {
	if name == "" {
		name = DefaultName
	}
	p, ok := builtins[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w %q (available: %s)", ErrUnknownPreset, name, strings.Join(Names(), ", "))
	}
	return p, nil
}
