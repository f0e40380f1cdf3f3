package dsp

import (
	"math"
	"testing"
)

func TestSineCompletesOneCyclePerPeriod(t *testing.T) {
	const sr = 48000.0
	s := NewSine(sr)
	freq := sr / 64
	crossings := 0
	prev := s.Next(freq)
	for i := 1; i < 64*10; i++ {
		y := s.Next(freq)
		if prev < 0 && y >= 0 {
			crossings++
		}
		prev = y
	}
	if crossings < 9 || crossings > 10 {
		t.Fatalf("expected ~10 upward crossings, got %d", crossings)
	}
}

func TestSineHandlesNegativeFrequency(t *testing.T) {
	s := NewSine(48000)
	for i := 0; i < 1000; i++ {
		y := s.Next(-300)
		if math.IsNaN(y) || y < -1 || y > 1 {
			t.Fatalf("sample %d out of range: %f", i, y)
		}
	}
	if s.phase < 0 || s.phase >= 1 {
		t.Fatalf("phase not wrapped: %f", s.phase)
	}
}

func TestSineResetRewindsPhase(t *testing.T) {
	s := NewSine(44100)
	for i := 0; i < 123; i++ {
		s.Next(440)
	}
	s.Reset(44100)
	if got := s.Next(440); got != 0 {
		t.Fatalf("expected first sample after reset to be 0, got %f", got)
	}
}

func TestLowpassPassesDC(t *testing.T) {
	lp := NewLowpass(1000, 48000, declickQ)
	var y float64
	for i := 0; i < 48000; i++ {
		y = lp.Process(1)
	}
	if math.Abs(y-1) > 1e-6 {
		t.Fatalf("expected unity DC gain, got %f", y)
	}
}

func TestLowpassAttenuatesNyquist(t *testing.T) {
	lp := NewLowpass(1000, 48000, declickQ)
	var peak float64
	for i := 0; i < 4800; i++ {
		x := 1.0
		if i%2 == 1 {
			x = -1
		}
		y := lp.Process(x)
		if i > 2400 && math.Abs(y) > peak {
			peak = math.Abs(y)
		}
	}
	if peak > 0.01 {
		t.Fatalf("expected strong attenuation at nyquist, got peak %f", peak)
	}
}

func TestBiquadFlushesDenormals(t *testing.T) {
	lp := NewLowpass(1000, 48000, declickQ)
	lp.Process(1)
	for i := 0; i < 200000; i++ {
		lp.Process(0)
	}
	if lp.y1 != 0 || lp.y2 != 0 {
		t.Fatalf("expected decayed state to flush to zero, got y1=%g y2=%g", lp.y1, lp.y2)
	}
}

func TestDeclickFadesIn(t *testing.T) {
	const sr = 48000.0
	d := NewDeclick(0.01, sr)
	if g := d.Gain(); g > 1e-3 {
		t.Fatalf("expected fade to start near zero, got %f", g)
	}
	prev := -1.0
	for i := 0; i < int(0.01*sr); i++ {
		g := d.Gain()
		if g < prev-1e-3 {
			t.Fatalf("fade not monotonic at %d: %f < %f", i, g, prev)
		}
		prev = g
		d.Process(1)
	}
	if g := d.Gain(); g != 1 {
		t.Fatalf("expected unity gain after fade, got %f", g)
	}
}

func TestDeclickRetriggerRestartsFade(t *testing.T) {
	d := NewDeclick(0.005, 44100)
	for i := 0; i < 1000; i++ {
		d.Process(0.5)
	}
	d.Retrigger()
	if g := d.Gain(); g > 1e-3 {
		t.Fatalf("expected fade restart, got gain %f", g)
	}
}

func TestDeclickSmoothCrossfadesStep(t *testing.T) {
	d := NewDeclick(0.005, 44100)
	prev := 0.0
	for i := 0; i < 1000; i++ {
		prev = d.Process(0.5)
	}
	d.Smooth()
	maxStep := 0.0
	for i := 0; i < 2*d.length; i++ {
		y := d.Process(-0.5)
		maxStep = math.Max(maxStep, math.Abs(y-prev))
		prev = y
	}
	if g := d.Gain(); g != 1 {
		t.Fatalf("smooth touched the fade gain: %f", g)
	}
	if maxStep > 0.1 {
		t.Fatalf("step of 1.0 leaked through, max per-sample change %f", maxStep)
	}
	if math.Abs(prev+0.5) > 1e-3 {
		t.Fatalf("expected output to settle at -0.5, got %f", prev)
	}
}

func TestDeclickResetFollowsSampleRate(t *testing.T) {
	d := NewDeclick(0.01, 44100)
	if d.length != 441 {
		t.Fatalf("length at 44.1k = %d, want 441", d.length)
	}
	d.Reset(96000)
	if d.length != 960 {
		t.Fatalf("length at 96k = %d, want 960", d.length)
	}
}

func TestNoteToFreq(t *testing.T) {
	cases := []struct {
		note uint8
		a4   float64
		want float64
	}{
		{69, 440, 440},
		{81, 440, 880},
		{57, 440, 220},
		{60, 440, 261.6255653},
		{69, 432, 432},
		{69, 0, 440},
	}
	for _, tc := range cases {
		got := NoteToFreq(tc.note, tc.a4)
		if math.Abs(got-tc.want) > 1e-6*tc.want {
			t.Fatalf("NoteToFreq(%d, %f) = %f, want %f", tc.note, tc.a4, got, tc.want)
		}
	}
}
