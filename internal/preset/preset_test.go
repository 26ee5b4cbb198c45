package preset

import (
	"errors"
	"testing"
)

func TestLoad_AllBuiltins(t *testing.T) {
	for _, name := range Names() {
		p, err := Load(name)
		if err != nil {
			t.Errorf("Load(%q) error: %v", name, err)
			continue
		}
		if p.Name != name {
			t.Errorf("Load(%q).Name = %q, want %q", name, p.Name, name)
		}
		if p.Description == "" {
			t.Errorf("Load(%q).Description is empty", name)
		}
		if p.NumericTolerance <= 0 {
			t.Errorf("Load(%q).NumericTolerance = %v, want > 0", name, p.NumericTolerance)
		}
		if p.MaxDiffVolume <= 0 {
			t.Errorf("Load(%q).MaxDiffVolume = %d, want > 0", name, p.MaxDiffVolume)
		}
	}
}

func TestLoad_EmptyIsDefault(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if p.Name != DefaultName || p.MaxDiffVolume != 50 || p.StrictOptional {
		t.Errorf("Load(\"\") = %+v, want the default preset", p)
	}
}

func TestLoad_StrictDisablesReconciliation(t *testing.T) {
	p, err := Load("strict")
	if err != nil {
		t.Fatal(err)
	}
	if !p.StrictOptional {
		t.Error("strict preset must enable strict-optional mode")
	}
}

func TestLoad_Unknown(t *testing.T) {
	_, err := Load("nonexistent")
	if err == nil {
		t.Fatal("Load(\"nonexistent\") expected error, got nil")
	}
	if !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("error %v does not wrap ErrUnknownPreset", err)
	}
}
