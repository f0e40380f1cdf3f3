package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/dustyfingers/synthy/analysis"
	"github.com/dustyfingers/synthy/config"
	"github.com/dustyfingers/synthy/internal/audiofile"
	"github.com/dustyfingers/synthy/score"
	"github.com/dustyfingers/synthy/synth"
)

type options struct {
	note         int
	velocity     int
	duration     float64
	releaseAfter float64
	sampleRate   int
	block        int
	configPath   string
	scorePath    string
	tail         float64
	outRate      int
	output       string
	debug        bool
}

func main() {
	var o options
	flag.IntVar(&o.note, "note", 69, "MIDI note number (69 = A4 = 440 Hz)")
	flag.IntVar(&o.velocity, "velocity", 100, "MIDI velocity (1-127)")
	flag.Float64Var(&o.duration, "duration", 2.0, "Duration in seconds (single-note mode)")
	flag.Float64Var(&o.releaseAfter, "release-after", 1.5, "Send NoteOff after this many seconds (single-note mode, <0 to hold)")
	flag.IntVar(&o.sampleRate, "sample-rate", 0, "Render sample rate in Hz (0 = config value)")
	flag.IntVar(&o.block, "block", 512, "Host block size in frames")
	flag.StringVar(&o.configPath, "config", "", "Engine config JSON path (optional)")
	flag.StringVar(&o.scorePath, "score", "", "Lua score path; overrides -note/-duration")
	flag.Float64Var(&o.tail, "tail", 0.5, "Silence/ring-out rendered after the score ends, in seconds")
	flag.IntVar(&o.outRate, "out-rate", 0, "Resample the output to this rate (0 = render rate)")
	flag.StringVar(&o.output, "output", "output.wav", "Output WAV file path")
	flag.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	flag.Parse()

	logger := newLogger(o.debug)
	if err := run(context.Background(), o, logger, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "synthy-render: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	}))
}

func run(ctx context.Context, o options, logger *slog.Logger, stdout io.Writer) error {
	cfg := synth.DefaultConfig()
	scorePath := o.scorePath
	if o.configPath != "" {
		loaded, f, err := config.LoadJSON(o.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		if scorePath == "" {
			scorePath = f.Score
		}
	}
	if o.sampleRate > 0 {
		cfg.SampleRate = float64(o.sampleRate)
	}
	cfg.Logger = logger
	if cfg.SampleRate != math.Trunc(cfg.SampleRate) {
		return fmt.Errorf("sample rate must be a whole number of Hz for WAV output, got %v", cfg.SampleRate)
	}

	e, err := synth.NewEngine(cfg)
	if err != nil {
		return err
	}

	var s *score.Score
	if scorePath != "" {
		s, err = score.LoadLua(ctx, scorePath, cfg.SampleRate)
		if err != nil {
			return err
		}
	} else {
		s, err = singleNote(o, cfg.SampleRate)
		if err != nil {
			return err
		}
	}

	tail := int64(0)
	if scorePath != "" && o.tail > 0 {
		tail = int64(o.tail * cfg.SampleRate)
	}
	fmt.Fprintf(stdout, "Rendering %d events over %d frames at %g Hz (block %d)...\n",
		len(s.Events), s.Length+tail, cfg.SampleRate, o.block)
	left, right := score.Render(e, s, o.block, tail)

	rate := int(cfg.SampleRate)
	peak := analysis.PeakFrequency(audiofile.Mix(left, right), rate)

	if o.outRate > 0 && o.outRate != rate {
		if left, err = resample32(left, rate, o.outRate); err != nil {
			return err
		}
		if right, err = resample32(right, rate, o.outRate); err != nil {
			return err
		}
		rate = o.outRate
	}
	if err := audiofile.WriteStereo(o.output, left, right, rate); err != nil {
		return fmt.Errorf("write %s: %w", o.output, err)
	}
	fmt.Fprintf(stdout, "Wrote %s (%d frames at %d Hz, peak %.1f Hz)\n", o.output, len(left), rate, peak)
	return nil
}

func singleNote(o options, sampleRate float64) (*score.Score, error) {
	if o.note < 0 || o.note > 127 {
		return nil, fmt.Errorf("note %d out of range 0..127", o.note)
	}
	if o.velocity < 1 || o.velocity > 127 {
		return nil, fmt.Errorf("velocity %d out of range 1..127", o.velocity)
	}
	if o.duration <= 0 {
		return nil, fmt.Errorf("duration must be > 0")
	}
	s := &score.Score{
		SampleRate: sampleRate,
		Events: []score.Event{
			{Frame: 0, Kind: score.NoteOn, Pitch: uint8(o.note), Velocity: uint8(o.velocity)},
		},
		Length: max(int64(o.duration*sampleRate), 1),
	}
	if o.releaseAfter >= 0 {
		at := min(int64(o.releaseAfter*sampleRate), s.Length)
		s.Events = append(s.Events, score.Event{Frame: at, Kind: score.NoteOff, Pitch: uint8(o.note)})
	}
	return s, nil
}

func resample32(x []float32, from, to int) ([]float32, error) {
	in := make([]float64, len(x))
	for i, v := range x {
		in[i] = float64(v)
	}
	out, err := audiofile.Resample(in, from, to)
	if err != nil {
		return nil, err
	}
	y := make([]float32, len(out))
	for i, v := range out {
		y[i] = float32(v)
	}
	return y, nil
}
