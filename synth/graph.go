package synth

import (
	"github.com/dustyfingers/synthy/dsp"
)

// Tag addresses a mutable scalar slot inside the graph.
type Tag int

const (
	// TagFrequency is the oscillator frequency in Hz.
	TagFrequency Tag = iota
	// TagModulation is the FM depth as a fraction of the frequency.
	TagModulation
	// TagNoteOn is the transport time in seconds of the last note-on.
	TagNoteOn
	// TagTime is the transport time in seconds of the first frame of the next Process call.
	TagTime

	numTags
)

// GraphOutputs is the fixed output channel count of the graph.
const GraphOutputs = 2

// GraphConfig holds the fixed shape constants of the graph.
type GraphConfig struct {
	EnvelopeRate float64
	DeclickTime  float64
	MixGain      float64
}

// Graph is the statically composed signal flow
//
//	sine_c(f + sine_m(f)*f*depth) + sine_e(f)*envelope(t - noteOn) >> declick >> split(2)
//
// Only tag values change after construction.
type Graph struct {
	tags       [numTags]float64
	sampleRate float64
	invRate    float64

	modulator dsp.Sine
	carrier   dsp.Sine
	envOsc    dsp.Sine
	env       Envelope
	declick   dsp.Declick
	mixGain   float64
}

// NewGraph builds the graph for sampleRate with initial tag values.
func NewGraph(sampleRate float64, cfg GraphConfig, initial map[Tag]float64) *Graph {
	g := &Graph{
		env:     NewEnvelope(cfg.EnvelopeRate),
		declick: dsp.NewDeclick(cfg.DeclickTime, sampleRate),
		mixGain: cfg.MixGain,
	}
	for tag, v := range initial {
		if tag >= 0 && tag < numTags {
			g.tags[tag] = v
		}
	}
	g.Reset(sampleRate)
	return g
}

// Inputs returns the input channel count; the graph is a pure generator.
func (g *Graph) Inputs() int { return 0 }

// Outputs returns the output channel count.
func (g *Graph) Outputs() int { return GraphOutputs }

// Set overwrites a tag value.
func (g *Graph) Set(tag Tag, value float64) {
	if tag < 0 || tag >= numTags {
		return
	}
	g.tags[tag] = value
}

// RestartFade fades the output in from silence, for a note starting from Idle.
func (g *Graph) RestartFade() {
	g.declick.Retrigger()
}

// SmoothTransition crossfades the jump caused by a note replacing a sounding one.
func (g *Graph) SmoothTransition() {
	g.declick.Smooth()
}

// Get returns a tag value, or 0 for an unknown tag.
func (g *Graph) Get(tag Tag) float64 {
	if tag < 0 || tag >= numTags {
		return 0
	}
	return g.tags[tag]
}

// SampleRate returns the rate the graph was last reset to.
func (g *Graph) SampleRate() float64 {
	return g.sampleRate
}

// Reset re-derives rate-dependent coefficients and clears oscillator and
// filter state. Tag values are kept.
func (g *Graph) Reset(sampleRate float64) {
	g.sampleRate = sampleRate
	g.invRate = 1.0 / sampleRate
	g.modulator.Reset(sampleRate)
	g.carrier.Reset(sampleRate)
	g.envOsc.Reset(sampleRate)
	g.declick.Reset(sampleRate)
}

// Process evaluates frames samples into outputs[0] and outputs[1]. It writes
// nothing unless exactly two channels of at least frames samples are given.
func (g *Graph) Process(frames int, outputs [][]float64) {
	if len(outputs) != GraphOutputs || frames <= 0 {
		return
	}
	left, right := outputs[0], outputs[1]
	if len(left) < frames || len(right) < frames {
		return
	}

	f := g.tags[TagFrequency]
	depth := g.tags[TagModulation]
	elapsed := g.tags[TagTime] - g.tags[TagNoteOn]

	for i := 0; i < frames; i++ {
		m := g.modulator.Next(f) * f * depth
		modulated := g.carrier.Next(f + m)
		enveloped := g.envOsc.Next(f) * g.env.Value(elapsed+float64(i)*g.invRate)

		y := g.declick.Process(g.mixGain * (modulated + enveloped))
		left[i] = y
		right[i] = y
	}
}
