package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustyfingers/synthy/config"
	"github.com/dustyfingers/synthy/internal/audiofile"
	"github.com/dustyfingers/synthy/synth"
)

func main() {
	referencePath := flag.String("reference", "reference/a4.wav", "Reference WAV path")
	configPath := flag.String("config", "", "Starting engine config JSON (optional)")
	note := flag.Int("note", 69, "MIDI note to render")
	velocity := flag.Int("velocity", 100, "MIDI velocity to render")
	duration := flag.Float64("duration", 2.0, "Render duration in seconds")
	releaseAfter := flag.Float64("release-after", 1.5, "Note hold time before NoteOff")
	sampleRate := flag.Int("sample-rate", 48000, "Analysis and render sample rate in Hz")
	iters := flag.Int("iters", 30, "Mayfly iterations")
	pop := flag.Int("pop", 10, "Mayfly population size")
	variant := flag.String("variant", "ma", "Mayfly variant: ma|desma|olce|eobbma|gsasma|mpma|aoblmoa")
	seed := flag.Int64("seed", 1, "Random seed")
	output := flag.String("output", "fitted.json", "Output engine config JSON path")
	flag.Parse()

	base := synth.DefaultConfig()
	if *configPath != "" {
		loaded, _, err := config.LoadJSON(*configPath)
		if err != nil {
			die("load config: %v", err)
		}
		base = loaded
	}
	base.SampleRate = float64(*sampleRate)
	base.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	ref, err := audiofile.ReadMonoAt(*referencePath, *sampleRate)
	if err != nil {
		die("read reference: %v", err)
	}

	res, err := runOptimization(&optimizationConfig{
		reference:    ref,
		base:         base,
		note:         *note,
		velocity:     *velocity,
		duration:     *duration,
		releaseAfter: *releaseAfter,
		iters:        *iters,
		pop:          *pop,
		variant:      *variant,
		seed:         *seed,
		progress:     os.Stdout,
	})
	if err != nil {
		die("optimize: %v", err)
	}

	fmt.Printf("Best score=%.4f similarity=%.2f%% after %d evals\n",
		res.bestMetrics.Score, res.bestMetrics.Similarity*100, res.evals)
	fmt.Printf("  modulation=%.4f envelope_rate=%.3f\n",
		res.best.Defaults[synth.ParamModulation], res.best.EnvelopeRate)
	if err := config.SaveJSON(*output, res.best); err != nil {
		die("write %s: %v", *output, err)
	}
	fmt.Printf("Wrote %s\n", *output)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
