package synth

import (
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

// Envelope is a single-segment exponential decay anchored at note-on.
// It is a pure function of elapsed time.
type Envelope struct {
	rate float64
}

// NewEnvelope creates a decay envelope with rate in 1/seconds.
func NewEnvelope(rate float64) Envelope {
	return Envelope{rate: rate}
}

// Rate returns the decay constant.
func (e Envelope) Rate() float64 {
	return e.rate
}

// Value returns the envelope level elapsed seconds after note-on. The onset
// itself and anything before it (a stale anchor) is 0.
func (e Envelope) Value(elapsed float64) float64 {
	if !(elapsed > 0) {
		return 0
	}
	v := dspcore.FlushDenormals(math.Exp(-e.rate * elapsed))
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
