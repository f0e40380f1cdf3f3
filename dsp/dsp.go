package dsp

import (
	"math"

	"github.com/cwbudde/algo-approx"
	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

// Sine is a phase-accumulator sine oscillator whose frequency is supplied per
// sample, so it can be driven by a modulated input.
type Sine struct {
	phase   float64
	invRate float64
}

// NewSine creates an oscillator for the given sample rate.
func NewSine(sampleRate float64) Sine {
	var s Sine
	s.Reset(sampleRate)
	return s
}

// Reset rewinds the phase and re-derives the phase increment scale.
func (s *Sine) Reset(sampleRate float64) {
	s.phase = 0
	s.invRate = 1.0 / sampleRate
}

// Next returns the current sample and advances the phase by freq Hz.
func (s *Sine) Next(freq float64) float64 {
	y := math.Sin(2.0 * math.Pi * s.phase)
	s.phase += freq * s.invRate
	if s.phase >= 1.0 || s.phase < 0.0 {
		s.phase -= math.Floor(s.phase)
	}
	return y
}

// Biquad implements a second-order IIR filter (no heap allocations in Process)
type Biquad struct {
	// Coefficients
	b0, b1, b2 float64
	a1, a2     float64

	// State (previous samples)
	x1, x2 float64 // input history
	y1, y2 float64 // output history
}

// Process processes one sample through the biquad filter
func (b *Biquad) Process(input float64) float64 {
	// Direct Form I implementation
	output := b.b0*input + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2
	output = dspcore.FlushDenormals(output)

	b.x2 = b.x1
	b.x1 = input
	b.y2 = b.y1
	b.y1 = output

	return output
}

// Reset clears the filter state
func (b *Biquad) Reset() {
	b.x1, b.x2 = 0, 0
	b.y1, b.y2 = 0, 0
}

// SetLowpass recomputes RBJ lowpass coefficients in place and clears state.
func (b *Biquad) SetLowpass(cutoff, sampleRate, q float64) {
	w0 := 2.0 * math.Pi * cutoff / sampleRate
	alpha := math.Sin(w0) / (2.0 * q)
	cosw0 := math.Cos(w0)

	a0 := 1.0 + alpha
	b.b0 = (1.0 - cosw0) / 2.0 / a0
	b.b1 = (1.0 - cosw0) / a0
	b.b2 = (1.0 - cosw0) / 2.0 / a0
	b.a1 = -2.0 * cosw0 / a0
	b.a2 = (1.0 - alpha) / a0
	b.Reset()
}

// NewLowpass creates a lowpass biquad filter
func NewLowpass(cutoff, sampleRate, q float64) Biquad {
	var b Biquad
	b.SetLowpass(cutoff, sampleRate, q)
	return b
}

const (
	declickCutoffHz = 18000.0
	declickQ        = 0.70710678118654752
	// fade residual at the end of the ramp is exp(-declickFadeDepth), about -60 dB
	declickFadeDepth = 6.907755
)

// Declick is the anti-pop output stage: a short fade-in after Reset or Retrigger
// followed by a gentle lowpass that rounds off waveform discontinuities.
// Smooth blends out a jump in an already sounding input over the same length.
type Declick struct {
	duration float64
	length   int
	pos      int
	fadeStep float32
	lp       Biquad

	last     float64
	offset   float64
	blendPos int
	pending  bool
}

// NewDeclick creates a declick stage with a fade of duration seconds.
func NewDeclick(duration, sampleRate float64) Declick {
	d := Declick{duration: duration}
	d.Reset(sampleRate)
	return d
}

// Reset derives the fade length and filter coefficients for sampleRate and
// restarts the fade.
func (d *Declick) Reset(sampleRate float64) {
	d.length = int(d.duration * sampleRate)
	if d.length > 0 {
		d.fadeStep = float32(declickFadeDepth / float64(d.length))
	}
	cutoff := math.Min(declickCutoffHz, 0.45*sampleRate)
	d.lp.SetLowpass(cutoff, sampleRate, declickQ)
	d.Retrigger()
}

// Retrigger restarts the fade from silence and clears the filter state.
func (d *Declick) Retrigger() {
	d.lp.Reset()
	d.pos = 0
	d.last = 0
	d.offset = 0
	d.pending = false
}

// Smooth arms a crossfade for the next sample: the step between the previous
// input and the next one is carried as an offset that decays to zero over the
// fade length. The fade gain is left alone.
func (d *Declick) Smooth() {
	d.pending = true
}

// Gain returns the current fade gain in [0,1].
func (d *Declick) Gain() float64 {
	if d.pos >= d.length {
		return 1
	}
	g := 1.0 - float64(approx.FastExp(-d.fadeStep*float32(d.pos)))
	if g < 0 {
		return 0
	}
	if g > 1 {
		return 1
	}
	return g
}

// Process applies fade, crossfade and lowpass to one sample.
func (d *Declick) Process(x float64) float64 {
	x *= d.Gain()
	if d.pos < d.length {
		d.pos++
	}

	if d.pending {
		d.pending = false
		d.offset = d.last - x
		d.blendPos = 0
	}
	if d.offset != 0 {
		if d.blendPos >= d.length {
			d.offset = 0
		} else {
			x += d.offset * float64(approx.FastExp(-d.fadeStep*float32(d.blendPos)))
			d.blendPos++
		}
	}
	d.last = x
	return d.lp.Process(x)
}

// NoteToFreq converts a MIDI note number to Hz using the given A4 reference.
func NoteToFreq(note uint8, tuningA4 float64) float64 {
	if tuningA4 <= 0 {
		tuningA4 = 440.0
	}
	return tuningA4 * math.Pow(2.0, (float64(note)-69.0)/12.0)
}
