package synth

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("synth: invalid config")

// FrequencySource selects what drives the frequency tag.
type FrequencySource int

const (
	// FrequencyFromNote follows the sounding note and holds the last value while idle.
	FrequencyFromNote FrequencySource = iota
	// FrequencyFromParameter scales the Frequency parameter every block.
	FrequencyFromParameter
)

// String returns the config-file spelling of the source.
func (s FrequencySource) String() string {
	switch s {
	case FrequencyFromNote:
		return "note"
	case FrequencyFromParameter:
		return "parameter"
	default:
		return "unknown"
	}
}

// ParseFrequencySource accepts "note" or "parameter".
func ParseFrequencySource(s string) (FrequencySource, error) {
	switch s {
	case "note", "":
		return FrequencyFromNote, nil
	case "parameter":
		return FrequencyFromParameter, nil
	default:
		return 0, fmt.Errorf("%w: unknown frequency source %q", ErrInvalidConfig, s)
	}
}

// Config holds construction-time engine settings.
type Config struct {
	SampleRate float64

	// FrequencyScalar converts the normalized Frequency parameter to Hz.
	FrequencyScalar float64
	// ModulationScale converts the normalized Modulation parameter to FM depth.
	ModulationScale float64
	FrequencySource FrequencySource
	TuningA4        float64

	// EnvelopeRate is the decay constant of the enveloped branch, per second.
	EnvelopeRate float64
	DeclickTime  float64
	MixGain      float64

	// Defaults seeds the parameter store.
	Defaults [NumParams]float32

	// QueueCapacity sizes the ring created by Engine.EnableQueue.
	QueueCapacity int

	Logger *slog.Logger
}

// DefaultConfig returns the stock engine settings.
func DefaultConfig() Config {
	return Config{
		SampleRate:      44100,
		FrequencyScalar: 1000,
		ModulationScale: 1,
		FrequencySource: FrequencyFromNote,
		TuningA4:        440,
		EnvelopeRate:    6,
		DeclickTime:     0.01,
		MixGain:         0.5,
		Defaults:        [NumParams]float32{ParamFrequency: 0.44, ParamModulation: 1.0},
		QueueCapacity:   256,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if !positive(c.SampleRate) {
		return fmt.Errorf("%w: sample rate must be > 0, got %v", ErrInvalidConfig, c.SampleRate)
	}
	if !positive(c.FrequencyScalar) {
		return fmt.Errorf("%w: frequency scalar must be > 0, got %v", ErrInvalidConfig, c.FrequencyScalar)
	}
	if c.ModulationScale < 0 || !finite(c.ModulationScale) {
		return fmt.Errorf("%w: modulation scale must be >= 0, got %v", ErrInvalidConfig, c.ModulationScale)
	}
	if !positive(c.TuningA4) {
		return fmt.Errorf("%w: tuning A4 must be > 0, got %v", ErrInvalidConfig, c.TuningA4)
	}
	if !positive(c.EnvelopeRate) {
		return fmt.Errorf("%w: envelope rate must be > 0, got %v", ErrInvalidConfig, c.EnvelopeRate)
	}
	if c.DeclickTime < 0 || !finite(c.DeclickTime) {
		return fmt.Errorf("%w: declick time must be >= 0, got %v", ErrInvalidConfig, c.DeclickTime)
	}
	if c.MixGain < 0 || c.MixGain > 1 || !finite(c.MixGain) {
		return fmt.Errorf("%w: mix gain must be in [0,1], got %v", ErrInvalidConfig, c.MixGain)
	}
	if c.FrequencySource != FrequencyFromNote && c.FrequencySource != FrequencyFromParameter {
		return fmt.Errorf("%w: unknown frequency source %d", ErrInvalidConfig, c.FrequencySource)
	}
	for i, v := range c.Defaults {
		if v < 0 || v > 1 || v != v {
			return fmt.Errorf("%w: default for %q must be in [0,1], got %v", ErrInvalidConfig, ParamID(i), v)
		}
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("%w: queue capacity must be >= 0, got %d", ErrInvalidConfig, c.QueueCapacity)
	}
	return nil
}

func positive(x float64) bool {
	return x > 0 && finite(x)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
