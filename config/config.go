package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/dustyfingers/synthy/synth"
)

// SchemaVersion is written by SaveJSON.
const SchemaVersion = "1.0.0"

// supportedSchema is the range of schema versions LoadJSON accepts.
const supportedSchema = "^1"

// ErrSchemaVersion is returned when a file's schema_version is missing a valid
// version or falls outside the supported range.
var ErrSchemaVersion = errors.New("config: unsupported schema version")

// File is the JSON schema for engine configuration files. Nil fields keep the
// default value.
type File struct {
	SchemaVersion   string             `json:"schema_version"`
	SampleRate      *float64           `json:"sample_rate,omitempty"`
	FrequencyScalar *float64           `json:"frequency_scalar,omitempty"`
	ModulationScale *float64           `json:"modulation_scale,omitempty"`
	FrequencySource string             `json:"frequency_source,omitempty"`
	TuningA4        *float64           `json:"tuning_a4,omitempty"`
	EnvelopeRate    *float64           `json:"envelope_rate,omitempty"`
	DeclickTime     *float64           `json:"declick_time,omitempty"`
	MixGain         *float64           `json:"mix_gain,omitempty"`
	QueueCapacity   *int               `json:"queue_capacity,omitempty"`
	Params          map[string]float32 `json:"params,omitempty"`
	// Score is a Lua score path. Relative paths are resolved against the config file.
	Score string `json:"score,omitempty"`
}

// ReadFile parses and version-checks a config file without applying it.
func ReadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := checkSchema(f.SchemaVersion); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Score = strings.TrimSpace(f.Score)
	if f.Score != "" && !filepath.IsAbs(f.Score) {
		f.Score = filepath.Clean(filepath.Join(filepath.Dir(path), f.Score))
	}
	return &f, nil
}

// LoadJSON loads a config file and applies it on top of synth.DefaultConfig.
func LoadJSON(path string) (synth.Config, *File, error) {
	cfg := synth.DefaultConfig()
	f, err := ReadFile(path)
	if err != nil {
		return cfg, nil, err
	}
	if err := ApplyFile(&cfg, f); err != nil {
		return cfg, nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, f, nil
}

// ApplyFile applies a parsed file onto dst and validates the result.
func ApplyFile(dst *synth.Config, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination config")
	}
	if f == nil {
		return nil
	}

	setFloat(&dst.SampleRate, f.SampleRate)
	setFloat(&dst.FrequencyScalar, f.FrequencyScalar)
	setFloat(&dst.ModulationScale, f.ModulationScale)
	setFloat(&dst.TuningA4, f.TuningA4)
	setFloat(&dst.EnvelopeRate, f.EnvelopeRate)
	setFloat(&dst.DeclickTime, f.DeclickTime)
	setFloat(&dst.MixGain, f.MixGain)
	if f.QueueCapacity != nil {
		dst.QueueCapacity = *f.QueueCapacity
	}
	if f.FrequencySource != "" {
		src, err := synth.ParseFrequencySource(f.FrequencySource)
		if err != nil {
			return err
		}
		dst.FrequencySource = src
	}
	for name, v := range f.Params {
		idx, ok := synth.LookupParam(name)
		if !ok {
			return fmt.Errorf("%w: unknown parameter %q", synth.ErrInvalidConfig, name)
		}
		dst.Defaults[idx] = v
	}
	return dst.Validate()
}

// FromConfig builds a File carrying every field of cfg.
func FromConfig(cfg synth.Config) File {
	params := make(map[string]float32, len(cfg.Defaults))
	for i, v := range cfg.Defaults {
		params[synth.ParamID(i).String()] = v
	}
	return File{
		SchemaVersion:   SchemaVersion,
		SampleRate:      &cfg.SampleRate,
		FrequencyScalar: &cfg.FrequencyScalar,
		ModulationScale: &cfg.ModulationScale,
		FrequencySource: cfg.FrequencySource.String(),
		TuningA4:        &cfg.TuningA4,
		EnvelopeRate:    &cfg.EnvelopeRate,
		DeclickTime:     &cfg.DeclickTime,
		MixGain:         &cfg.MixGain,
		QueueCapacity:   &cfg.QueueCapacity,
		Params:          params,
	}
}

// SaveJSON writes cfg as an indented config file.
func SaveJSON(path string, cfg synth.Config) error {
	f := FromConfig(cfg)
	b, err := json.MarshalIndent(&f, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

func checkSchema(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: schema_version is required", ErrSchemaVersion)
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrSchemaVersion, raw, err)
	}
	c, err := semver.NewConstraint(supportedSchema)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrSchemaVersion, v, supportedSchema)
	}
	return nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
