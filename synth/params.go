package synth

import (
	"math"
	"sync/atomic"
)

// ParamID indexes the host-automatable parameters.
type ParamID int

const (
	// ParamFrequency is the idle/parameter-driven pitch, scaled by FrequencyScalar.
	ParamFrequency ParamID = iota
	// ParamModulation is the FM depth, scaled by ModulationScale.
	ParamModulation

	// NumParams is the size of the closed parameter set.
	NumParams
)

// UnknownParamName is reported for indices outside the parameter set.
const UnknownParamName = "unknown"

var paramNames = [NumParams]string{
	ParamFrequency:  "frequency",
	ParamModulation: "modulation",
}

// String returns the parameter's display name.
func (id ParamID) String() string {
	if id < 0 || id >= NumParams {
		return UnknownParamName
	}
	return paramNames[id]
}

// Params stores normalized parameter values as float32 bits so the control
// thread and the audio thread can share them without locks or torn reads.
type Params struct {
	values [NumParams]atomic.Uint32
}

// NewParams creates a store seeded with defaults. Out-of-range defaults are clamped.
func NewParams(defaults [NumParams]float32) *Params {
	p := &Params{}
	for i, v := range defaults {
		p.Set(i, v)
	}
	return p
}

// Count returns the number of parameters.
func (p *Params) Count() int {
	return int(NumParams)
}

// Get returns the normalized value at index, or 0 for an unknown index.
func (p *Params) Get(index int) float32 {
	if index < 0 || index >= int(NumParams) {
		return 0
	}
	return math.Float32frombits(p.values[index].Load())
}

// Set stores value clamped to [0,1]. Unknown indices and NaN are ignored.
func (p *Params) Set(index int, value float32) {
	if index < 0 || index >= int(NumParams) {
		return
	}
	if value != value {
		return
	}
	if value < 0 {
		value = 0
	} else if value > 1 {
		value = 1
	}
	p.values[index].Store(math.Float32bits(value))
}

// Name returns the parameter name at index, or "unknown".
func (p *Params) Name(index int) string {
	return ParamID(index).String()
}

// Lookup resolves a parameter name to its index.
func (p *Params) Lookup(name string) (int, bool) {
	return LookupParam(name)
}

// Snapshot copies every value.
func (p *Params) Snapshot() [NumParams]float32 {
	var out [NumParams]float32
	for i := range out {
		out[i] = p.Get(i)
	}
	return out
}

// LookupParam resolves a parameter name to its index.
func LookupParam(name string) (int, bool) {
	for i, n := range paramNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}
