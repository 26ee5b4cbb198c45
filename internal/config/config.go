// Package config loads the nfdiff service configuration: a YAML file layered
// over a named preset, with environment variable overrides on top.
package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/nfdiff/internal/assess"
	"github.com/dshills/nfdiff/internal/contract"
	"github.com/dshills/nfdiff/internal/preset"
	"github.com/dshills/nfdiff/internal/rules"
)

// Config holds all nfdiff configuration.
type Config struct {
	Preset string `yaml:"preset"`

	// Reference artifacts
	SchemaPath string `yaml:"schema_path"`
	RulesPath  string `yaml:"rules_path"`

	// Thresholds
	NumericTolerance float64 `yaml:"numeric_tolerance"`
	StrictOptional   bool    `yaml:"strict_optional"`
	MaxDiffVolume    int     `yaml:"max_diff_volume"`

	// IdentifierPath locates the request identifier in the reference payload.
	IdentifierPath string `yaml:"identifier_path"`

	HTTP    HTTPConfig    `yaml:"http"`
	Redis   RedisConfig   `yaml:"redis"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig configures the HTTP surface of `nfdiff serve`.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// RedisConfig configures the pub/sub transport and the ingest list.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	DiffsChannel    string `yaml:"diffs_channel"`
	VerdictsChannel string `yaml:"verdicts_channel"`
	DiffsList       string `yaml:"diffs_list"`
	DiffsListCap    int64  `yaml:"diffs_list_cap"`
	TruthHash       string `yaml:"truth_hash"`
	TruthTSHash     string `yaml:"truth_ts_hash"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// LoadError is a configuration failure. It is fatal: nothing is served with
// an unusable configuration.
type LoadError struct {
	Artifact string // config, schema, rules or env
	Path     string
	Err      error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %s: %v", e.Artifact, e.Err)
	}
	return fmt.Sprintf("config: %s %s: %v", e.Artifact, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// DefaultConfig returns the configuration of the default preset with the
// docker-compose deployment's file names and Redis keys.
func DefaultConfig() *Config {
	cfg := &Config{
		Preset:         preset.DefaultName,
		SchemaPath:     "nf_profile_schema.json",
		RulesPath:      "comparison_rules.yaml",
		IdentifierPath: "nfInstanceId",
		HTTP:           HTTPConfig{Addr: ":9100"},
		Redis: RedisConfig{
			Addr:            "redis:6379",
			DiffsChannel:    "diffs",
			VerdictsChannel: "verdicts",
			DiffsList:       "diffs",
			DiffsListCap:    1000,
			TruthHash:       "truth",
			TruthTSHash:     "truth_ts",
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
	p, _ := preset.Load(preset.DefaultName)
	cfg.applyPresetValues(p)
	return cfg
}

// Load builds the configuration from path (optional; "" skips the file) and
// the process environment. Precedence: defaults < preset < file < env.
func Load(path string) (*Config, error) {
	return LoadPreset(path, "")
}

// LoadPreset is Load with the preset name forced to presetName when it is not
// empty. The preset still sits below the file and the environment.
func LoadPreset(path, presetName string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, &LoadError{Artifact: "config", Path: path, Err: err}
		}
		var head struct {
			Preset string `yaml:"preset"`
		}
		if err := yaml.Unmarshal(data, &head); err != nil {
			return nil, &LoadError{Artifact: "config", Path: path, Err: err}
		}
		if head.Preset != "" {
			cfg.Preset = head.Preset
		}
	}
	if name := os.Getenv("NFDIFF_PRESET"); name != "" {
		cfg.Preset = name
	}
	if presetName != "" {
		cfg.Preset = presetName
	}
	if err := cfg.ApplyPreset(cfg.Preset); err != nil {
		return nil, &LoadError{Artifact: "config", Path: path, Err: err}
	}

	if data != nil {
		name := cfg.Preset
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &LoadError{Artifact: "config", Path: path, Err: err}
		}
		cfg.Preset = name
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, &LoadError{Artifact: "env", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &LoadError{Artifact: "config", Path: path, Err: err}
	}
	return cfg, nil
}

// ApplyPreset resets the thresholds to those of the named preset.
func (c *Config) ApplyPreset(name string) error {
	p, err := preset.Load(name)
	if err != nil {
		return err
	}
	c.Preset = p.Name
	c.applyPresetValues(p)
	return nil
}

func (c *Config) applyPresetValues(p preset.Preset) {
	c.NumericTolerance = p.NumericTolerance
	c.StrictOptional = p.StrictOptional
	c.MaxDiffVolume = p.MaxDiffVolume
}

// applyEnvOverrides applies the deployment's environment variables.
func (c *Config) applyEnvOverrides() error {
	host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")
	if host != "" || port != "" {
		defHost, defPort, err := net.SplitHostPort(c.Redis.Addr)
		if err != nil {
			defHost, defPort = c.Redis.Addr, "6379"
		}
		if host == "" {
			host = defHost
		}
		if port == "" {
			port = defPort
		}
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("REDIS_PORT %q: %w", port, err)
		}
		c.Redis.Addr = net.JoinHostPort(host, port)
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("NUMERIC_TOLERANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("NUMERIC_TOLERANCE %q: %w", v, err)
		}
		c.NumericTolerance = f
	}
	if v := os.Getenv("STRICT_OPTIONAL"); v != "" {
		b, err := strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			return fmt.Errorf("STRICT_OPTIONAL %q: %w", v, err)
		}
		c.StrictOptional = b
	}
	if v := os.Getenv("MAX_DIFF_VOLUME"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_DIFF_VOLUME %q: %w", v, err)
		}
		c.MaxDiffVolume = n
	}
	if v := os.Getenv("SCHEMA_PATH"); v != "" {
		c.SchemaPath = v
	}
	if v := os.Getenv("RULES_PATH"); v != "" {
		c.RulesPath = v
	}
	if v := os.Getenv("IDENTIFIER_PATH"); v != "" {
		c.IdentifierPath = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	return nil
}

// Validate reports every problem that makes the configuration unusable.
func (c *Config) Validate() error {
	var errs []error
	if c.NumericTolerance < 0 || math.IsNaN(c.NumericTolerance) || math.IsInf(c.NumericTolerance, 0) {
		errs = append(errs, fmt.Errorf("numeric_tolerance %v must be a finite non-negative number", c.NumericTolerance))
	}
	if c.MaxDiffVolume < 0 {
		errs = append(errs, fmt.Errorf("max_diff_volume %d must not be negative", c.MaxDiffVolume))
	}
	if strings.TrimSpace(c.SchemaPath) == "" {
		errs = append(errs, errors.New("schema_path is required"))
	}
	if strings.TrimSpace(c.RulesPath) == "" {
		errs = append(errs, errors.New("rules_path is required"))
	}
	if strings.TrimSpace(c.IdentifierPath) == "" {
		errs = append(errs, errors.New("identifier_path is required"))
	}
	if c.Redis.DiffsListCap <= 0 {
		errs = append(errs, fmt.Errorf("redis.diffs_list_cap %d must be positive", c.Redis.DiffsListCap))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not valid", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not valid", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// Settings loads the schema and rule set named by c and returns the immutable
// engine configuration. Failures are *LoadError.
func (c *Config) Settings() (assess.Settings, error) {
	s, err := contract.Load(c.SchemaPath)
	if err != nil {
		return assess.Settings{}, &LoadError{Artifact: "schema", Path: c.SchemaPath, Err: err}
	}
	rs, err := rules.Load(c.RulesPath)
	if err != nil {
		return assess.Settings{}, &LoadError{Artifact: "rules", Path: c.RulesPath, Err: err}
	}
	return assess.Settings{
		Schema:           s,
		Rules:            rs,
		NumericTolerance: c.NumericTolerance,
		StrictOptional:   c.StrictOptional,
		MaxDiffVolume:    c.MaxDiffVolume,
		IdentifierPath:   c.IdentifierPath,
	}, nil
}
