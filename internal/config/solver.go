// Package config loads solver and service settings from JSON, YAML or TOML
// files. Every field is optional; the Get* methods supply defaults for
// anything a file leaves out.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/platetemp/internal/plate"
)

// DefaultConfigPath is the canonical defaults file, relative to the
// repository root.
const DefaultConfigPath = "config/solver.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// SolverConfig holds settings shared by the CLI and the HTTP server.
type SolverConfig struct {
	// Plate
	Width        *float64  `json:"width,omitempty" yaml:"width,omitempty" toml:"width,omitempty"`
	Height       *float64  `json:"height,omitempty" yaml:"height,omitempty" toml:"height,omitempty"`
	Temperatures []float64 `json:"temperatures,omitempty" yaml:"temperatures,omitempty" toml:"temperatures,omitempty"` // bottom, right, left, top

	// Estimator
	Trials   *int     `json:"trials,omitempty" yaml:"trials,omitempty" toml:"trials,omitempty"`
	Epsilon  *float64 `json:"epsilon,omitempty" yaml:"epsilon,omitempty" toml:"epsilon,omitempty"`
	MaxSteps *int     `json:"max_steps,omitempty" yaml:"max_steps,omitempty" toml:"max_steps,omitempty"`
	Workers  *int     `json:"workers,omitempty" yaml:"workers,omitempty" toml:"workers,omitempty"`
	Seed     *uint64  `json:"seed,omitempty" yaml:"seed,omitempty" toml:"seed,omitempty"`

	// Field sweeps
	GridStep         *float64 `json:"grid_step,omitempty" yaml:"grid_step,omitempty" toml:"grid_step,omitempty"`
	FieldWorkers     *int     `json:"field_workers,omitempty" yaml:"field_workers,omitempty" toml:"field_workers,omitempty"`
	ProgressInterval *string  `json:"progress_interval,omitempty" yaml:"progress_interval,omitempty" toml:"progress_interval,omitempty"` // duration string like "2s"

	// Service
	Database  *string `json:"database,omitempty" yaml:"database,omitempty" toml:"database,omitempty"`
	Listen    *string `json:"listen,omitempty" yaml:"listen,omitempty" toml:"listen,omitempty"`
	MaxTrials *int    `json:"max_trials,omitempty" yaml:"max_trials,omitempty" toml:"max_trials,omitempty"`
	LogLevel  *string `json:"log_level,omitempty" yaml:"log_level,omitempty" toml:"log_level,omitempty"`
	LogFormat *string `json:"log_format,omitempty" yaml:"log_format,omitempty" toml:"log_format,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }
func ptrString(v string) *string    { return &v }

// EmptySolverConfig returns a SolverConfig with every field unset.
func EmptySolverConfig() *SolverConfig {
	return &SolverConfig{}
}

// DefaultSolverConfig returns a SolverConfig with every field set to the
// value its getter would fall back to.
func DefaultSolverConfig() *SolverConfig {
	return &SolverConfig{
		Width:            ptrFloat64(15),
		Height:           ptrFloat64(10),
		Temperatures:     []float64{10, 5, 5, 20},
		Trials:           ptrInt(plate.DefaultTrials),
		Epsilon:          ptrFloat64(plate.DefaultEpsilon),
		MaxSteps:         ptrInt(plate.DefaultMaxSteps),
		Workers:          ptrInt(1),
		Seed:             ptrUint64(0),
		GridStep:         ptrFloat64(0.5),
		FieldWorkers:     ptrInt(4),
		ProgressInterval: ptrString("2s"),
		Database:         ptrString("platetemp.db"),
		Listen:           ptrString(":8080"),
		MaxTrials:        ptrInt(100000),
		LogLevel:         ptrString("info"),
		LogFormat:        ptrString("text"),
	}
}

// LoadSolverConfig reads a config file. The format follows the extension:
// .json, .yaml, .yml or .toml. Unknown keys are rejected.
func LoadSolverConfig(path string) (*SolverConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	switch ext {
	case ".json", ".yaml", ".yml", ".toml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml, .yml or .toml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := ParseSolverConfig(data, ext)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ParseSolverConfig decodes data in the format named by ext without
// validating the result.
func ParseSolverConfig(data []byte, ext string) (*SolverConfig, error) {
	cfg := EmptySolverConfig()
	switch ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config TOML: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("failed to parse config TOML: unknown key %q", undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. It panics if the file cannot be found, and is
// meant for tests.
func MustLoadDefaultConfig() *SolverConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadSolverConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the fields that are set.
func (c *SolverConfig) Validate() error {
	if c.Width != nil || c.Height != nil || c.Temperatures != nil {
		if _, err := c.Domain(); err != nil {
			return err
		}
	}
	if err := c.Options().Validate(); err != nil {
		return err
	}
	if c.GridStep != nil && (!(*c.GridStep > 0) || math.IsInf(*c.GridStep, 0)) {
		return fmt.Errorf("grid_step must be positive and finite, got %v", *c.GridStep)
	}
	if c.FieldWorkers != nil && *c.FieldWorkers < 0 {
		return fmt.Errorf("field_workers must be non-negative, got %d", *c.FieldWorkers)
	}
	if c.ProgressInterval != nil && *c.ProgressInterval != "" {
		d, err := time.ParseDuration(*c.ProgressInterval)
		if err != nil {
			return fmt.Errorf("invalid progress_interval '%s': %w", *c.ProgressInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("progress_interval must be positive, got %s", d)
		}
	}
	if c.MaxTrials != nil && *c.MaxTrials <= 0 {
		return fmt.Errorf("max_trials must be positive, got %d", *c.MaxTrials)
	}
	if c.LogFormat != nil {
		switch strings.ToLower(*c.LogFormat) {
		case "", "text", "json", "logfmt":
		default:
			return fmt.Errorf("log_format must be text, json or logfmt, got %q", *c.LogFormat)
		}
	}
	return nil
}

// Domain builds the plate described by the config.
func (c *SolverConfig) Domain() (plate.Domain, error) {
	return plate.NewDomain(c.GetWidth(), c.GetHeight(), c.GetTemperatures())
}

// Options returns the estimator options described by the config.
func (c *SolverConfig) Options() plate.Options {
	return plate.Options{
		Trials:   c.GetTrials(),
		Epsilon:  c.GetEpsilon(),
		MaxSteps: c.GetMaxSteps(),
		Workers:  c.GetWorkers(),
		Seed:     c.GetSeed(),
	}
}

// GetWidth returns the width value or the default.
func (c *SolverConfig) GetWidth() float64 {
	if c.Width == nil {
		return 15
	}
	return *c.Width
}

// GetHeight returns the height value or the default.
func (c *SolverConfig) GetHeight() float64 {
	if c.Height == nil {
		return 10
	}
	return *c.Height
}

// GetTemperatures returns a copy of the edge temperatures or the default
// [10, 5, 5, 20].
func (c *SolverConfig) GetTemperatures() []float64 {
	if c.Temperatures == nil {
		return []float64{10, 5, 5, 20}
	}
	return append([]float64(nil), c.Temperatures...)
}

// GetTrials returns the trials value or the default.
func (c *SolverConfig) GetTrials() int {
	if c.Trials == nil {
		return plate.DefaultTrials
	}
	return *c.Trials
}

// GetEpsilon returns the epsilon value or the default.
func (c *SolverConfig) GetEpsilon() float64 {
	if c.Epsilon == nil {
		return plate.DefaultEpsilon
	}
	return *c.Epsilon
}

// GetMaxSteps returns the max_steps value or the default.
func (c *SolverConfig) GetMaxSteps() int {
	if c.MaxSteps == nil {
		return plate.DefaultMaxSteps
	}
	return *c.MaxSteps
}

// GetWorkers returns the workers value or the default.
func (c *SolverConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetSeed returns the seed value or the default of zero (fresh seed per
// estimate).
func (c *SolverConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}

func (c *SolverConfig) GetGridStep() float64 {
	if c.GridStep == nil {
		return 0.5
	}
	return *c.GridStep
}

func (c *SolverConfig) GetFieldWorkers() int {
	if c.FieldWorkers == nil {
		return 4
	}
	return *c.FieldWorkers
}

// GetProgressInterval parses and returns the ProgressInterval as a time.Duration.
func (c *SolverConfig) GetProgressInterval() time.Duration {
	if c.ProgressInterval == nil || *c.ProgressInterval == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(*c.ProgressInterval)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

func (c *SolverConfig) GetDatabase() string {
	if c.Database == nil || *c.Database == "" {
		return "platetemp.db"
	}
	return *c.Database
}

func (c *SolverConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8080"
	}
	return *c.Listen
}

// GetMaxTrials returns the largest trial count the HTTP API accepts.
func (c *SolverConfig) GetMaxTrials() int {
	if c.MaxTrials == nil {
		return 100000
	}
	return *c.MaxTrials
}

func (c *SolverConfig) GetLogLevel() string {
	if c.LogLevel == nil || *c.LogLevel == "" {
		return "info"
	}
	return *c.LogLevel
}

func (c *SolverConfig) GetLogFormat() string {
	if c.LogFormat == nil || *c.LogFormat == "" {
		return "text"
	}
	return *c.LogFormat
}
