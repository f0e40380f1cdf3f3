package score

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dustyfingers/synthy/synth"
)

func TestParseLuaSchedulesEvents(t *testing.T) {
	src := `
param("modulation", 0.25)
note_on(60)
wait(0.5)
note_off(60)
param(0, 0.5)
note(64, 90, 0.25)
`
	s, err := ParseLua(context.Background(), src, "inline", 1000)
	if err != nil {
		t.Fatalf("ParseLua: %v", err)
	}
	want := []Event{
		{Frame: 0, Kind: Param, Param: int(synth.ParamModulation), Value: 0.25},
		{Frame: 0, Kind: NoteOn, Pitch: 60, Velocity: 100},
		{Frame: 500, Kind: NoteOff, Pitch: 60},
		{Frame: 500, Kind: Param, Param: int(synth.ParamFrequency), Value: 0.5},
		{Frame: 500, Kind: NoteOn, Pitch: 64, Velocity: 90},
		{Frame: 750, Kind: NoteOff, Pitch: 64},
	}
	if len(s.Events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(s.Events), len(want), s.Events)
	}
	for i := range want {
		if s.Events[i] != want[i] {
			t.Fatalf("event %d: got %+v want %+v", i, s.Events[i], want[i])
		}
	}
	if s.Length != 750 {
		t.Fatalf("length=%d", s.Length)
	}
}

func TestParseLuaExposesSampleRateAndLoops(t *testing.T) {
	src := `
for i = 0, 3 do
  note(60 + i, 100, 64 / sample_rate)
end`
	s, err := ParseLua(context.Background(), src, "loop", 48000)
	if err != nil {
		t.Fatalf("ParseLua: %v", err)
	}
	if len(s.Events) != 8 || s.Length != 256 {
		t.Fatalf("events=%d length=%d", len(s.Events), s.Length)
	}
}

func TestParseLuaErrorsWrapErrScript(t *testing.T) {
	cases := map[string]string{
		"syntax":         `note_on(`,
		"pitch range":    `note_on(128)`,
		"fractional":     `note_on(60.5)`,
		"velocity range": `note_on(60, -1)`,
		"unknown param":  `param("cutoff", 1)`,
		"param index":    `param(5, 1)`,
		"negative wait":  `wait(-1)`,
		"runtime":        `error("boom")`,
		"no os library":  `os.exit(1)`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseLua(context.Background(), src, name, 48000)
			if !errors.Is(err, ErrScript) {
				t.Fatalf("expected ErrScript, got %v", err)
			}
		})
	}
}

func TestLoadLuaMissingFile(t *testing.T) {
	_, err := LoadLua(context.Background(), filepath.Join(t.TempDir(), "none.lua"), 48000)
	if !errors.Is(err, ErrScript) {
		t.Fatalf("expected ErrScript, got %v", err)
	}
}

func TestLoadLuaFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.lua")
	if err := os.WriteFile(path, []byte(`note(69, 100, 0.1)`), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadLua(context.Background(), path, 44100)
	if err != nil {
		t.Fatalf("LoadLua: %v", err)
	}
	if s.Length != 4410 {
		t.Fatalf("length=%d", s.Length)
	}
}

func newEngine(t *testing.T) *synth.Engine {
	t.Helper()
	cfg := synth.DefaultConfig()
	cfg.SampleRate = 1000
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := synth.NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestRenderLandsEventsOnExactFrames(t *testing.T) {
	s := &Score{
		SampleRate: 1000,
		Events: []Event{
			{Frame: 37, Kind: NoteOn, Pitch: 69, Velocity: 100},
			{Frame: 101, Kind: NoteOff, Pitch: 69},
		},
		Length: 150,
	}
	e := newEngine(t)
	left, right := Render(e, s, 512, 50)
	if len(left) != 200 || len(right) != 200 {
		t.Fatalf("len=%d", len(left))
	}
	for i := 0; i < 37; i++ {
		if left[i] != 0 {
			t.Fatalf("sound before note-on at %d", i)
		}
	}
	for i := 101; i < len(left); i++ {
		if left[i] != 0 {
			t.Fatalf("sound after note-off at %d", i)
		}
	}
	if got, want := e.TransportTime(), 64.0/1000; got < want-1e-12 || got > want+1e-12 {
		t.Fatalf("transport=%f want %f", got, want)
	}
}

func TestRenderAppliesTrailingEvents(t *testing.T) {
	s := &Score{SampleRate: 1000, Events: []Event{{Frame: 10, Kind: NoteOn, Pitch: 60, Velocity: 1}}, Length: 10}
	e := newEngine(t)
	Render(e, s, 64, 0)
	if !e.Enabled() {
		t.Fatalf("event at the final frame was not applied")
	}
}
