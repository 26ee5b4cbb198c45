package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv blanks the variables config.Load reads so the host cannot leak
// into a test.
func unsetEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "NUMERIC_TOLERANCE",
		"STRICT_OPTIONAL", "MAX_DIFF_VOLUME", "SCHEMA_PATH", "RULES_PATH",
		"IDENTIFIER_PATH", "LISTEN_ADDR", "LOG_LEVEL", "LOG_FORMAT", "NFDIFF_PRESET",
	} {
		t.Setenv(k, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func codeOf(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func TestValidateCommand(t *testing.T) {
	unsetEnv(t)
	out, err := execute(t, "validate",
		"--schema", "../../testdata/nf_profile_schema.json",
		"--rules", "../../testdata/comparison_rules.yaml",
		"--preset", "strict",
		"--max-diff-volume", "7",
		"--log-level", "error",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "preset:  strict")
	assert.Contains(t, out, "(9 rules)")
	assert.Contains(t, out, "strict_optional=true max_diff_volume=7")
	assert.Contains(t, out, "ok")
}

func TestValidateCommand_MissingSchema(t *testing.T) {
	unsetEnv(t)
	_, err := execute(t, "validate",
		"--schema", filepath.Join(t.TempDir(), "absent.json"),
		"--rules", "../../testdata/comparison_rules.yaml",
	)
	assert.Equal(t, exitCodeBadInput, codeOf(err), "got %v", err)
}

func TestSetup_Precedence(t *testing.T) {
	unsetEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "nfdiff.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"schema_path: ../../testdata/nf_profile_schema.json\n"+
			"rules_path: ../../testdata/comparison_rules.yaml\n"+
			"numeric_tolerance: 0.25\n"+
			"max_diff_volume: 5\n"+
			"logging:\n  level: error\n"), 0o644))
	t.Setenv("MAX_DIFF_VOLUME", "6")
	t.Setenv("NUMERIC_TOLERANCE", "0.5")

	a := &app{}
	root := a.rootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"validate", "--config", cfgPath, "--tolerance", "0.75"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	require.NotNil(t, a.cfg)
	assert.Equal(t, 6, a.cfg.MaxDiffVolume, "env wins over file")
	assert.Equal(t, 0.75, a.cfg.NumericTolerance, "flag wins over env")
	assert.Equal(t, "default", a.cfg.Preset)
	assert.NotNil(t, a.logger)
}

func TestSetup_InvalidConfig(t *testing.T) {
	unsetEnv(t)
	_, err := execute(t, "validate", "--max-diff-volume", "-3")
	assert.Equal(t, exitCodeBadInput, codeOf(err), "got %v", err)

	_, err = execute(t, "validate", "--preset", "paranoid")
	assert.Equal(t, exitCodeBadInput, codeOf(err), "got %v", err)
}

func TestAccuracyCommand(t *testing.T) {
	unsetEnv(t)
	path := filepath.Join(t.TempDir(), "labels.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"nfInstanceId,malicious,verdict,timestamp\n"+
			"nf-1,1,CRITICAL,1700000000\n"+
			"nf-2,0,CRITICAL,1700000001\n"+
			"nf-3,1,OK,1700000002\n"+
			"nf-4,0,OK,1700000003\n"+
			"nf-5,1,SUSPICIOUS,1700000004\n"), 0o644))

	var out bytes.Buffer
	require.NoError(t, runAccuracy(path, "CRITICAL,SUSPICIOUS", &out))
	assert.Equal(t, "TP = 2\nFP = 1\nFN = 1\nPrecision = 0.667\nRecall    = 0.667\n", out.String())

	out.Reset()
	require.NoError(t, runAccuracy(path, "CRITICAL", &out))
	assert.Contains(t, out.String(), "TP = 1\nFP = 1\nFN = 2\n")

	assert.Equal(t, exitCodeBadInput, codeOf(runAccuracy(path, "BAD", &out)))
	assert.Equal(t, exitCodeBadInput, codeOf(runAccuracy(filepath.Join(t.TempDir(), "none.csv"), "CRITICAL", &out)))
}

func TestAssessCommand(t *testing.T) {
	unsetEnv(t)
	out, err := execute(t, "assess",
		"--schema", "../../testdata/nf_profile_schema.json",
		"--rules", "../../testdata/comparison_rules.yaml",
		"--log-level", "error",
		"--request", "../../testdata/profiles/request.json",
		"--a", "../../testdata/profiles/open5gs.json",
		"--b", "../../testdata/profiles/free5gc_tampered.json",
		"--fail-on", "CRITICAL",
	)
	assert.Equal(t, exitCodeFailOn, codeOf(err), "got %v", err)
	assert.Contains(t, out, `"verdict": "CRITICAL"`)
	assert.Contains(t, out, `"path": "nfStatus"`)
}
