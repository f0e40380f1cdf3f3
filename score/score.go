// Package score turns Lua scripts into frame-stamped note and parameter events
// for offline rendering.
package score

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/dustyfingers/synthy/synth"
	lua "github.com/yuin/gopher-lua"
)

// ErrScript wraps every script load, syntax and runtime failure.
var ErrScript = errors.New("score: script error")

// EventKind is the type of a score event.
type EventKind uint8

const (
	NoteOn EventKind = iota + 1
	NoteOff
	Param
)

func (k EventKind) String() string {
	switch k {
	case NoteOn:
		return "note_on"
	case NoteOff:
		return "note_off"
	case Param:
		return "param"
	default:
		return "unknown"
	}
}

// Event is one scheduled action at Frame.
type Event struct {
	Frame    int64
	Kind     EventKind
	Pitch    uint8
	Velocity uint8
	Param    int
	Value    float32
}

// Score is an ordered event list. Length is the final cursor position in frames.
type Score struct {
	SampleRate float64
	Events     []Event
	Length     int64
}

// LoadLua runs the script at path.
func LoadLua(ctx context.Context, path string, sampleRate float64) (*Score, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}
	return ParseLua(ctx, string(src), path, sampleRate)
}

// ParseLua runs src and collects the events it schedules. name labels errors.
func ParseLua(ctx context.Context, src, name string, sampleRate float64) (*Score, error) {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("%w: sample rate must be > 0, got %v", ErrScript, sampleRate)
	}
	b := &builder{score: &Score{SampleRate: sampleRate}}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	if ctx != nil {
		L.SetContext(ctx)
	}
	if err := openLibs(L); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}
	b.register(L)

	if err := L.DoString(src); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrScript, name, err)
	}
	sort.SliceStable(b.score.Events, func(i, j int) bool {
		return b.score.Events[i].Frame < b.score.Events[j].Frame
	})
	return b.score, nil
}

func openLibs(L *lua.LState) error {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			return err
		}
	}
	return nil
}

type builder struct {
	score  *Score
	cursor int64
}

func (b *builder) register(L *lua.LState) {
	L.SetGlobal("sample_rate", lua.LNumber(b.score.SampleRate))
	L.SetGlobal("note_on", L.NewFunction(b.noteOn))
	L.SetGlobal("note_off", L.NewFunction(b.noteOff))
	L.SetGlobal("param", L.NewFunction(b.param))
	L.SetGlobal("wait", L.NewFunction(b.wait))
	L.SetGlobal("note", L.NewFunction(b.note))
}

func (b *builder) push(ev Event) {
	ev.Frame = b.cursor
	b.score.Events = append(b.score.Events, ev)
}

func (b *builder) noteOn(L *lua.LState) int {
	pitch := checkMIDI(L, 1, "pitch")
	velocity := uint8(100)
	if L.GetTop() >= 2 {
		velocity = checkMIDI(L, 2, "velocity")
	}
	b.push(Event{Kind: NoteOn, Pitch: pitch, Velocity: velocity})
	return 0
}

func (b *builder) noteOff(L *lua.LState) int {
	b.push(Event{Kind: NoteOff, Pitch: checkMIDI(L, 1, "pitch")})
	return 0
}

func (b *builder) param(L *lua.LState) int {
	var idx int
	switch v := L.Get(1).(type) {
	case lua.LString:
		i, ok := synth.LookupParam(string(v))
		if !ok {
			L.ArgError(1, fmt.Sprintf("unknown parameter %q", string(v)))
		}
		idx = i
	case lua.LNumber:
		idx = int(v)
		if float64(idx) != float64(v) || idx < 0 || idx >= int(synth.NumParams) {
			L.ArgError(1, fmt.Sprintf("parameter index %v out of range", v))
		}
	default:
		L.ArgError(1, "parameter name or index expected")
	}
	value := float64(L.CheckNumber(2))
	if math.IsNaN(value) {
		L.ArgError(2, "value is NaN")
	}
	b.push(Event{Kind: Param, Param: idx, Value: float32(value)})
	return 0
}

func (b *builder) wait(L *lua.LState) int {
	b.advance(L, 1)
	return 0
}

func (b *builder) note(L *lua.LState) int {
	pitch := checkMIDI(L, 1, "pitch")
	velocity := checkMIDI(L, 2, "velocity")
	b.push(Event{Kind: NoteOn, Pitch: pitch, Velocity: velocity})
	b.advance(L, 3)
	b.push(Event{Kind: NoteOff, Pitch: pitch})
	return 0
}

func (b *builder) advance(L *lua.LState, arg int) {
	seconds := float64(L.CheckNumber(arg))
	if !(seconds >= 0) || math.IsInf(seconds, 0) {
		L.ArgError(arg, "seconds must be a finite value >= 0")
	}
	b.cursor += int64(math.Round(seconds * b.score.SampleRate))
	if b.cursor > b.score.Length {
		b.score.Length = b.cursor
	}
}

func checkMIDI(L *lua.LState, arg int, what string) uint8 {
	n := L.CheckNumber(arg)
	v := int(n)
	if float64(v) != float64(n) || v < 0 || v > 127 {
		L.ArgError(arg, fmt.Sprintf("%s must be an integer in 0..127, got %v", what, n))
	}
	return uint8(v)
}

// Apply performs ev on e.
func Apply(e *synth.Engine, ev Event) {
	switch ev.Kind {
	case NoteOn:
		e.NoteOn(ev.Pitch, ev.Velocity)
	case NoteOff:
		e.NoteOff(ev.Pitch)
	case Param:
		e.Params().Set(ev.Param, ev.Value)
	}
}
