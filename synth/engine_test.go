package synth

import (
	"errors"
	"math"
	"testing"
)

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"zero sample rate":   func(c *Config) { c.SampleRate = 0 },
		"nan sample rate":    func(c *Config) { c.SampleRate = math.NaN() },
		"negative scale":     func(c *Config) { c.ModulationScale = -1 },
		"zero envelope rate": func(c *Config) { c.EnvelopeRate = 0 },
		"mix gain above one": func(c *Config) { c.MixGain = 1.5 },
		"bad default":        func(c *Config) { c.Defaults[ParamModulation] = 2 },
		"bad source":         func(c *Config) { c.FrequencySource = FrequencySource(9) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			_, err := NewEngine(cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSilenceBeforeAnyNote(t *testing.T) {
	e := newTestEngine(t, nil)
	left, right := renderBlocks(e, 20, 256)
	if !allZero(left) || !allZero(right) {
		t.Fatalf("expected silence before any note-on")
	}
	if e.TransportTime() != 0 {
		t.Fatalf("transport advanced while idle: %f", e.TransportTime())
	}
}

func TestNoteOnProducesIdenticalStereoChannels(t *testing.T) {
	e := newTestEngine(t, nil)
	e.NoteOn(69, 100)
	left, right := renderBlocks(e, 40, 256)
	if windowRMS(left) < 0.05 {
		t.Fatalf("expected audible output, rms=%f", windowRMS(left))
	}
	for i := range left {
		if left[i] != right[i] {
			t.Fatalf("channels differ at %d: %f vs %f", i, left[i], right[i])
		}
		if math.Abs(float64(left[i])) > 1.1 {
			t.Fatalf("sample %d out of range: %f", i, left[i])
		}
	}
}

func TestOutputFollowsNotePitch(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.Defaults[ParamModulation] = 0 })
	e.NoteOn(69, 100)
	left, _ := render(e, 48000)
	got := measureFundamentalFreq(left, 48000)
	if math.Abs(got-440) > 5 {
		t.Fatalf("expected ~440 Hz, got %f", got)
	}

	e.NoteOn(81, 100)
	left, _ = render(e, 48000)
	got = measureFundamentalFreq(left, 48000)
	if math.Abs(got-880) > 10 {
		t.Fatalf("expected new note to win at ~880 Hz, got %f", got)
	}
}

func maxStep(samples []float32) float64 {
	var step float64
	for i := 1; i < len(samples); i++ {
		step = math.Max(step, math.Abs(float64(samples[i]-samples[i-1])))
	}
	return step
}

func TestLegatoNoteOnDoesNotClick(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.Defaults[ParamModulation] = 0 })
	e.NoteOn(60, 100)
	before, _ := render(e, 4800)
	steady := maxStep(before[len(before)-2048:])
	if steady == 0 {
		t.Fatalf("expected a sounding note before the change")
	}

	e.NoteOn(64, 100)
	after, _ := render(e, 256)
	boundary := append([]float32{before[len(before)-1]}, after...)
	if got := maxStep(boundary); got > 3*steady {
		t.Fatalf("note change jumped by %f, steady-state step is %f", got, steady)
	}
	if windowRMS(after) < 0.05 {
		t.Fatalf("legato note should keep sounding, rms=%f", windowRMS(after))
	}
}

func TestNoteOnFromIdleFadesIn(t *testing.T) {
	e := newTestEngine(t, nil)
	e.NoteOn(60, 100)
	render(e, 4800)
	e.NoteOff(60)
	render(e, 256)

	e.NoteOn(64, 100)
	left, _ := render(e, 4)
	if math.Abs(float64(left[0])) > 1e-3 {
		t.Fatalf("expected fade-in from silence, first sample %f", left[0])
	}
}

func TestMismatchedNoteOffKeepsSounding(t *testing.T) {
	e := newTestEngine(t, nil)
	e.NoteOn(60, 100)
	e.NoteOff(61)
	note, ok := e.Note()
	if !ok || note.Pitch != 60 {
		t.Fatalf("expected note 60 still sounding, got %+v ok=%v", note, ok)
	}
	left, _ := render(e, 4096)
	if allZero(left) {
		t.Fatalf("expected sound after mismatched note-off")
	}
}

func TestNoteOffSilencesUntilNextNoteOn(t *testing.T) {
	e := newTestEngine(t, nil)
	e.NoteOn(60, 100)
	render(e, 1024)
	e.NoteOff(60)
	if e.Enabled() {
		t.Fatalf("expected idle after matching note-off")
	}
	left, right := renderBlocks(e, 10, 512)
	if !allZero(left) || !allZero(right) {
		t.Fatalf("expected silence after note-off")
	}
	e.NoteOn(64, 90)
	left, _ = render(e, 2048)
	if allZero(left) {
		t.Fatalf("expected sound after the next note-on")
	}
}

func TestTransportAdvancesByFramesProcessed(t *testing.T) {
	e := newTestEngine(t, nil)
	render(e, 1000)
	if e.TransportTime() != 0 {
		t.Fatalf("expected transport to stay at 0 before note-on, got %f", e.TransportTime())
	}
	e.NoteOn(60, 100)
	prev := e.TransportTime()
	for _, frames := range []int{64, 100, 1000, 1, 333} {
		render(e, frames)
		now := e.TransportTime()
		want := prev + float64(frames)/48000
		if now <= prev {
			t.Fatalf("transport did not increase: %f -> %f", prev, now)
		}
		if math.Abs(now-want) > 1e-12 {
			t.Fatalf("after %d frames transport=%f want %f", frames, now, want)
		}
		prev = now
	}
}

func TestTransportFreezesWhileIdle(t *testing.T) {
	e := newTestEngine(t, nil)
	e.NoteOn(60, 100)
	render(e, 480)
	e.NoteOff(60)
	frozen := e.TransportTime()
	render(e, 4800)
	if e.TransportTime() != frozen {
		t.Fatalf("transport moved while idle: %f -> %f", frozen, e.TransportTime())
	}
	e.NoteOn(62, 100)
	note, _ := e.Note()
	if note.Start != frozen {
		t.Fatalf("expected note anchored at %f, got %f", frozen, note.Start)
	}
	if got := e.Graph().Get(TagNoteOn); got != frozen {
		t.Fatalf("expected note-on tag %f, got %f", frozen, got)
	}
}

func TestWrongChannelCountYieldsSilence(t *testing.T) {
	for _, channels := range []int{0, 1, 3, 6} {
		e := newTestEngine(t, nil)
		e.NoteOn(60, 100)
		outs := make([][]float32, channels)
		for i := range outs {
			outs[i] = make([]float32, 256)
			for j := range outs[i] {
				outs[i][j] = 0.5
			}
		}
		e.Process(outs)
		for ch, buf := range outs {
			if !allZero(buf) {
				t.Fatalf("channels=%d: expected silence in channel %d", channels, ch)
			}
		}
	}
}

func TestMismatchedChannelLengthsRenderShortest(t *testing.T) {
	e := newTestEngine(t, nil)
	e.NoteOn(60, 100)
	left := make([]float32, 300)
	right := make([]float32, 200)
	for i := range left {
		left[i] = 0.5
	}
	e.Process([][]float32{left, right})
	if !allZero(left[200:]) {
		t.Fatalf("expected tail beyond shortest channel to be cleared")
	}
	if got, want := e.TransportTime(), 200.0/48000; math.Abs(got-want) > 1e-12 {
		t.Fatalf("transport=%f want %f", got, want)
	}
}

func TestHostBlockSizeDoesNotChangeOutput(t *testing.T) {
	a := newTestEngine(t, nil)
	b := newTestEngine(t, nil)
	a.NoteOn(57, 100)
	b.NoteOn(57, 100)

	la, _ := render(a, 4096)
	lb, _ := renderBlocks(b, 64, 64)
	for i := range la {
		if la[i] != lb[i] {
			t.Fatalf("sample %d differs between one large block and many small ones: %f vs %f", i, la[i], lb[i])
		}
	}
}

func TestSetSampleRateIsIdempotent(t *testing.T) {
	run := func(e *Engine) []float32 {
		e.SetSampleRate(44100)
		e.NoteOn(60, 100)
		e.Params().Set(int(ParamModulation), 0.3)
		left, _ := renderBlocks(e, 8, 512)
		e.NoteOff(60)
		return left
	}

	e := newTestEngine(t, nil)
	first := run(e)
	second := run(e)
	if len(first) != len(second) {
		t.Fatalf("length mismatch")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("sample %d differs after repeated rate reset: %f vs %f", i, first[i], second[i])
		}
	}
}

func TestSetSampleRateResetsTransportAndReanchors(t *testing.T) {
	e := newTestEngine(t, nil)
	e.NoteOn(60, 100)
	render(e, 4800)
	e.SetSampleRate(96000)
	if e.SampleRate() != 96000 {
		t.Fatalf("rate not applied: %f", e.SampleRate())
	}
	if e.TransportTime() != 0 {
		t.Fatalf("expected transport reset, got %f", e.TransportTime())
	}
	note, ok := e.Note()
	if !ok || note.Start != 0 {
		t.Fatalf("expected sounding note re-anchored at 0, got %+v ok=%v", note, ok)
	}
	render(e, 960)
	if got, want := e.TransportTime(), 960.0/96000; math.Abs(got-want) > 1e-12 {
		t.Fatalf("transport=%f want %f", got, want)
	}
}

func TestSetSampleRateIgnoresInvalidRate(t *testing.T) {
	e := newTestEngine(t, nil)
	for _, rate := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		e.SetSampleRate(rate)
		if e.SampleRate() != 48000 {
			t.Fatalf("rate %v was applied", rate)
		}
	}
}

func TestModulationParameterReachesTagEachBlock(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.ModulationScale = 2 })
	e.Params().Set(int(ParamModulation), 0.25)
	render(e, 64)
	if got := e.Graph().Get(TagModulation); got != 0.5 {
		t.Fatalf("expected modulation tag 0.5, got %f", got)
	}
	e.Params().Set(int(ParamModulation), 1)
	render(e, 64)
	if got := e.Graph().Get(TagModulation); got != 2 {
		t.Fatalf("expected modulation tag 2, got %f", got)
	}
}

func TestFrequencyTagHeldWhileIdle(t *testing.T) {
	e := newTestEngine(t, nil)
	if got := e.Graph().Get(TagFrequency); math.Abs(got-440) > 1e-3 {
		t.Fatalf("expected initial frequency from parameter snapshot (440), got %f", got)
	}
	e.NoteOn(81, 100)
	render(e, 64)
	e.NoteOff(81)
	render(e, 64)
	if got := e.Graph().Get(TagFrequency); math.Abs(got-880) > 1e-9 {
		t.Fatalf("expected frequency tag held at 880, got %f", got)
	}
}

func TestFrequencyFromParameterSource(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.FrequencySource = FrequencyFromParameter })
	e.Params().Set(int(ParamFrequency), 0.25)
	e.NoteOn(100, 100)
	render(e, 64)
	if got := e.Graph().Get(TagFrequency); math.Abs(got-250) > 1e-3 {
		t.Fatalf("expected parameter-driven 250 Hz, got %f", got)
	}
}

func TestHandleMIDIDropsMalformedData(t *testing.T) {
	e := newTestEngine(t, nil)
	bad := [][]byte{
		nil,
		{0x90},
		{0x90, 60},
		{0x90, 0x80, 100},
		{0xB0, 1, 64},
		{0xF0, 0x7E, 0xF7},
		{0x90, 60, 100, 0},
	}
	for _, msg := range bad {
		if e.HandleMIDI(msg) {
			t.Fatalf("expected %v to be dropped", msg)
		}
	}
	if e.Enabled() {
		t.Fatalf("malformed data changed note state")
	}
	left, _ := render(e, 512)
	if !allZero(left) {
		t.Fatalf("malformed data produced sound")
	}
}

func TestProcessEventsAppliesInDeliveryOrder(t *testing.T) {
	e := newTestEngine(t, nil)
	e.ProcessEvents([][]byte{
		{0x90, 60, 100},
		{0x90, 64, 100},
		{0x80, 60, 0},
		{0x91, 67, 80},
		{0x80, 64, 0},
	})
	note, ok := e.Note()
	if !ok || note.Pitch != 67 || note.Velocity != 80 {
		t.Fatalf("expected net state note 67 vel 80, got %+v ok=%v", note, ok)
	}

	e.ProcessEvents([][]byte{{0x90, 67, 0}})
	if e.Enabled() {
		t.Fatalf("expected velocity-0 note-on to release")
	}
}

func TestAttachedQueueDrainsAtSubChunkBoundary(t *testing.T) {
	e := newTestEngine(t, nil)
	q := e.EnableQueue()
	q.Push(NoteOnEvent(60, 100))
	if e.Enabled() {
		t.Fatalf("queued event applied before Process")
	}
	left, _ := render(e, 128)
	if !e.Enabled() || allZero(left) {
		t.Fatalf("expected queued note-on to sound in the next block")
	}
	q.Push(NoteOffEvent(60))
	render(e, 64)
	if e.Enabled() {
		t.Fatalf("expected queued note-off applied")
	}
}

func TestProcessDoesNotAllocate(t *testing.T) {
	e := newTestEngine(t, nil)
	e.EnableQueue()
	e.NoteOn(60, 100)
	left := make([]float32, 512)
	right := make([]float32, 512)
	outs := [][]float32{left, right}
	allocs := testing.AllocsPerRun(100, func() {
		e.Process(outs)
	})
	if allocs != 0 {
		t.Fatalf("expected zero allocations per Process, got %f", allocs)
	}
}

func BenchmarkProcess512(b *testing.B) {
	e := newTestEngine(b, nil)
	e.NoteOn(60, 100)
	outs := [][]float32{make([]float32, 512), make([]float32, 512)}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Process(outs)
	}
}
