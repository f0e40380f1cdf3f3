package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dustyfingers/synthy/synth"
	"golang.org/x/term"
)

const keyHelp = "keys: a w s e d f t g y h u j k = C..C, z/x octave -/+, [/] modulation -/+, space release, q quit\r\n"

const (
	noteKeys       = "awsedftgyhujk"
	modulationStep = 0.05
	minOctave      = 0
	maxOctave      = 8
	ctrlC          = 3
)

// keyboard maps terminal key presses to note events. Raw terminals report no
// key releases, so a note sounds until space or the next note.
type keyboard struct {
	params *synth.Params
	octave int
	last   int
}

func newKeyboard(p *synth.Params) *keyboard {
	return &keyboard{params: p, octave: 4, last: -1}
}

func (k *keyboard) press(b byte) (events []synth.Event, quit bool) {
	if i := strings.IndexByte(noteKeys, b); i >= 0 {
		pitch := 12*(k.octave+1) + i
		k.last = pitch
		return []synth.Event{synth.NoteOnEvent(uint8(pitch), 100)}, false
	}
	switch b {
	case 'q', 'Q', ctrlC:
		return nil, true
	case ' ':
		if k.last < 0 {
			return nil, false
		}
		off := synth.NoteOffEvent(uint8(k.last))
		k.last = -1
		return []synth.Event{off}, false
	case 'z':
		k.octave = max(k.octave-1, minOctave)
	case 'x':
		k.octave = min(k.octave+1, maxOctave)
	case '[':
		k.nudgeModulation(-modulationStep)
	case ']':
		k.nudgeModulation(modulationStep)
	}
	return nil, false
}

func (k *keyboard) nudgeModulation(delta float32) {
	idx := int(synth.ParamModulation)
	k.params.Set(idx, k.params.Get(idx)+delta)
}

// readKeys puts stdin in raw mode and forwards each byte to keys. The returned
// func restores the terminal.
func readKeys(ctx context.Context, keys chan<- byte, logger *slog.Logger) (func(), error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("stdin is not a terminal; use -keyboard=false")
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("set raw mode: %w", err)
	}

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				logger.Debug("keyboard reader stopped", "err", err)
				return
			}
			if n == 0 {
				continue
			}
			select {
			case keys <- buf[0]:
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() { _ = term.Restore(fd, old) }, nil
}
