package synth

import (
	"fmt"
	"log/slog"

	"github.com/dustyfingers/synthy/dsp"
)

// MaxBlockSize is the sub-chunk length B. Control state is sampled once per sub-chunk.
const MaxBlockSize = 64

// Engine is one synthesizer instance: parameters, note state, graph and
// transport time. Process, NoteOn, NoteOff, HandleMIDI and SetSampleRate must
// be called serially (the host's audio/event thread). Params may be used from
// any goroutine, and an attached EventQueue may be fed from one other goroutine.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	params *Params
	graph  *Graph
	notes  NoteState
	queue  *EventQueue

	sampleRate float64
	transport  float64

	scratch [GraphOutputs][MaxBlockSize]float64
	outs    [GraphOutputs][]float64
}

// NewEngine validates cfg and builds the graph from the initial parameter snapshot.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:        cfg,
		logger:     logger,
		params:     NewParams(cfg.Defaults),
		sampleRate: cfg.SampleRate,
	}
	e.graph = NewGraph(cfg.SampleRate, GraphConfig{
		EnvelopeRate: cfg.EnvelopeRate,
		DeclickTime:  cfg.DeclickTime,
		MixGain:      cfg.MixGain,
	}, map[Tag]float64{
		TagFrequency:  e.parameterFrequency(),
		TagModulation: e.modulationDepth(),
	})
	for i := range e.outs {
		e.outs[i] = e.scratch[i][:]
	}

	logger.Debug("synth engine created",
		"sample_rate", cfg.SampleRate,
		"frequency_source", cfg.FrequencySource.String(),
		"envelope_rate", cfg.EnvelopeRate,
	)
	return e, nil
}

// Params returns the shared parameter store.
func (e *Engine) Params() *Params {
	return e.params
}

// Graph exposes the signal graph for inspection.
func (e *Engine) Graph() *Graph {
	return e.graph
}

// Config returns the construction settings.
func (e *Engine) Config() Config {
	return e.cfg
}

// AttachQueue makes Process drain q at every sub-chunk boundary. Pass nil to detach.
func (e *Engine) AttachQueue(q *EventQueue) {
	e.queue = q
}

// EnableQueue creates and attaches a ring of QueueCapacity events.
func (e *Engine) EnableQueue() *EventQueue {
	q := NewEventQueue(max(e.cfg.QueueCapacity, 1))
	e.queue = q
	return q
}

// SampleRate returns the current sample rate.
func (e *Engine) SampleRate() float64 {
	return e.sampleRate
}

// TransportTime returns the elapsed sounding time in seconds.
func (e *Engine) TransportTime() float64 {
	return e.transport
}

// Enabled reports whether a note is sounding and the graph will be evaluated.
func (e *Engine) Enabled() bool {
	return e.notes.Enabled()
}

// Note returns the sounding note.
func (e *Engine) Note() (Note, bool) {
	return e.notes.Current()
}

// NoteOn starts pitch, replacing any sounding note, and anchors the envelope at
// the current transport time. A note from Idle fades in; a note replacing a
// sounding one is crossfaded.
func (e *Engine) NoteOn(pitch, velocity uint8) {
	legato := e.notes.Enabled()
	e.notes.NoteOn(pitch, velocity, e.transport)
	e.graph.Set(TagNoteOn, e.transport)
	if legato {
		e.graph.SmoothTransition()
	} else {
		e.graph.RestartFade()
	}
}

// NoteOff releases the sounding note if pitch matches it.
func (e *Engine) NoteOff(pitch uint8) {
	e.notes.NoteOff(pitch)
}

// Apply dispatches a decoded event.
func (e *Engine) Apply(ev Event) {
	switch ev.Kind {
	case EventNoteOn:
		e.NoteOn(ev.Pitch, ev.Velocity)
	case EventNoteOff:
		e.NoteOff(ev.Pitch)
	}
}

// HandleMIDI applies a raw MIDI message. Malformed or unsupported data is
// dropped and reported as false.
func (e *Engine) HandleMIDI(data []byte) bool {
	ev, ok := DecodeMIDI(data)
	if !ok {
		return false
	}
	e.Apply(ev)
	return true
}

// ProcessEvents applies raw MIDI messages in delivery order.
func (e *Engine) ProcessEvents(msgs [][]byte) {
	for _, msg := range msgs {
		e.HandleMIDI(msg)
	}
}

// SetSampleRate re-derives graph coefficients for rate and restarts transport
// time at zero. A sounding note is re-anchored to the new origin. Invalid rates
// are ignored.
func (e *Engine) SetSampleRate(rate float64) {
	if !positive(rate) {
		e.logger.Warn("ignoring invalid sample rate", "rate", rate)
		return
	}
	e.sampleRate = rate
	e.transport = 0
	e.graph.Reset(rate)
	e.graph.Set(TagTime, 0)
	if e.notes.Enabled() {
		e.notes.Reanchor(0)
		e.graph.Set(TagNoteOn, 0)
	}
	e.logger.Debug("sample rate changed", "rate", rate)
}

// Process renders len(outputs[0]) frames into a stereo pair of host buffers.
// Any channel count other than two yields silence in every provided buffer.
func (e *Engine) Process(outputs [][]float32) {
	if len(outputs) != GraphOutputs {
		for _, ch := range outputs {
			clear(ch)
		}
		return
	}
	left, right := outputs[0], outputs[1]
	frames := min(len(left), len(right))
	clear(left[frames:])
	clear(right[frames:])

	for pos := 0; pos < frames; {
		n := min(MaxBlockSize, frames-pos)
		e.renderChunk(left[pos:pos+n], right[pos:pos+n])
		pos += n
	}
}

func (e *Engine) renderChunk(left, right []float32) {
	n := len(left)
	e.drainQueue()

	e.graph.Set(TagModulation, e.modulationDepth())
	switch e.cfg.FrequencySource {
	case FrequencyFromParameter:
		e.graph.Set(TagFrequency, e.parameterFrequency())
	default:
		if note, ok := e.notes.Current(); ok {
			e.graph.Set(TagFrequency, dsp.NoteToFreq(note.Pitch, e.cfg.TuningA4))
		}
	}

	if !e.notes.Enabled() {
		clear(left)
		clear(right)
		return
	}

	e.graph.Set(TagTime, e.transport)
	e.graph.Process(n, e.outs[:])
	e.transport += float64(n) / e.sampleRate

	l, r := e.scratch[0][:n], e.scratch[1][:n]
	for i := range left {
		left[i] = float32(l[i])
		right[i] = float32(r[i])
	}
}

func (e *Engine) drainQueue() {
	if e.queue == nil {
		return
	}
	for {
		ev, ok := e.queue.Pop()
		if !ok {
			return
		}
		e.Apply(ev)
	}
}

func (e *Engine) modulationDepth() float64 {
	return float64(e.params.Get(int(ParamModulation))) * e.cfg.ModulationScale
}

func (e *Engine) parameterFrequency() float64 {
	return float64(e.params.Get(int(ParamFrequency))) * e.cfg.FrequencyScalar
}

// Dropped returns the attached queue's drop count.
func (e *Engine) Dropped() uint64 {
	if e.queue == nil {
		return 0
	}
	return e.queue.Dropped()
}

// String summarizes engine state for diagnostics.
func (e *Engine) String() string {
	note, ok := e.notes.Current()
	if !ok {
		return fmt.Sprintf("Engine{rate:%g, t:%.4fs, idle}", e.sampleRate, e.transport)
	}
	return fmt.Sprintf("Engine{rate:%g, t:%.4fs, note:%d}", e.sampleRate, e.transport, note.Pitch)
}
