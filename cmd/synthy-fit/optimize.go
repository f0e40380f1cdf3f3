package main

import (
	"fmt"
	"io"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
	"github.com/dustyfingers/synthy/analysis"
	"github.com/dustyfingers/synthy/internal/audiofile"
	"github.com/dustyfingers/synthy/score"
	"github.com/dustyfingers/synthy/synth"
)

const (
	minEnvelopeRate = 0.5
	maxEnvelopeRate = 40.0
	numKnobs        = 2
)

type optimizationConfig struct {
	reference    []float64
	base         synth.Config
	note         int
	velocity     int
	duration     float64
	releaseAfter float64
	iters        int
	pop          int
	variant      string
	seed         int64
	progress     io.Writer
}

type optimizationResult struct {
	best        synth.Config
	bestMetrics analysis.Metrics
	evals       int
}

// applyKnobs maps a normalized position onto cfg: pos[0] is the Modulation
// parameter, pos[1] the envelope rate on a log scale.
func applyKnobs(cfg synth.Config, pos []float64) synth.Config {
	cfg.Defaults[synth.ParamModulation] = float32(clamp(pos[0], 0, 1))
	u := clamp(pos[1], 0, 1)
	cfg.EnvelopeRate = minEnvelopeRate * math.Pow(maxEnvelopeRate/minEnvelopeRate, u)
	return cfg
}

func knobsOf(cfg synth.Config) []float64 {
	rate := clamp(cfg.EnvelopeRate, minEnvelopeRate, maxEnvelopeRate)
	return []float64{
		float64(cfg.Defaults[synth.ParamModulation]),
		math.Log(rate/minEnvelopeRate) / math.Log(maxEnvelopeRate/minEnvelopeRate),
	}
}

// renderNote plays one note through a fresh engine and returns the mono mix.
func renderNote(cfg synth.Config, note, velocity int, duration, releaseAfter float64) ([]float64, error) {
	if note < 0 || note > 127 || velocity < 1 || velocity > 127 {
		return nil, fmt.Errorf("note %d / velocity %d out of range", note, velocity)
	}
	e, err := synth.NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	length := max(int64(duration*cfg.SampleRate), 1)
	s := &score.Score{
		SampleRate: cfg.SampleRate,
		Events: []score.Event{
			{Frame: 0, Kind: score.NoteOn, Pitch: uint8(note), Velocity: uint8(velocity)},
			{Frame: min(max(int64(releaseAfter*cfg.SampleRate), 0), length), Kind: score.NoteOff, Pitch: uint8(note)},
		},
		Length: length,
	}
	left, right := score.Render(e, s, synth.MaxBlockSize*8, 0)
	return audiofile.Mix(left, right), nil
}

func runOptimization(cfg *optimizationConfig) (*optimizationResult, error) {
	rate := int(cfg.base.SampleRate)
	evaluate := func(c synth.Config) (analysis.Metrics, error) {
		mono, err := renderNote(c, cfg.note, cfg.velocity, cfg.duration, cfg.releaseAfter)
		if err != nil {
			return analysis.Metrics{}, err
		}
		return analysis.Compare(cfg.reference, mono, rate), nil
	}
	progress := cfg.progress
	if progress == nil {
		progress = io.Discard
	}

	res := &optimizationResult{best: cfg.base}
	m, err := evaluate(cfg.base)
	if err != nil {
		return nil, fmt.Errorf("initial evaluation failed: %w", err)
	}
	res.bestMetrics = m
	res.evals = 1
	start := knobsOf(cfg.base)
	fmt.Fprintf(progress, "Start score=%.4f similarity=%.2f%% knobs=[%.3f %.3f]\n",
		m.Score, m.Similarity*100, start[0], start[1])

	mc, err := newMayflyConfig(cfg.variant, max(cfg.pop, 2), numKnobs, max(cfg.iters, 1))
	if err != nil {
		return nil, err
	}
	mc.Rand = rand.New(rand.NewSource(cfg.seed))
	mc.ObjectiveFunc = func(pos []float64) float64 {
		c := applyKnobs(cfg.base, pos)
		m, err := evaluate(c)
		res.evals++
		if err != nil {
			return res.bestMetrics.Score + 0.8
		}
		if m.Score < res.bestMetrics.Score {
			res.best = c
			res.bestMetrics = m
			fmt.Fprintf(progress, "Improved eval=%d score=%.4f sim=%.2f%% modulation=%.3f envelope_rate=%.3f\n",
				res.evals, m.Score, m.Similarity*100, c.Defaults[synth.ParamModulation], c.EnvelopeRate)
		}
		return m.Score
	}
	if _, err := runMayfly(mc); err != nil {
		return nil, err
	}
	return res, nil
}

func newMayflyConfig(variant string, pop int, dims int, iters int) (*mayfly.Config, error) {
	var cfg *mayfly.Config
	switch variant {
	case "ma", "":
		cfg = mayfly.NewDefaultConfig()
	case "desma":
		cfg = mayfly.NewDESMAConfig()
	case "olce":
		cfg = mayfly.NewOLCEConfig()
	case "eobbma":
		cfg = mayfly.NewEOBBMAConfig()
	case "gsasma":
		cfg = mayfly.NewGSASMAConfig()
	case "mpma":
		cfg = mayfly.NewMPMAConfig()
	case "aoblmoa":
		cfg = mayfly.NewAOBLMOAConfig()
	default:
		return nil, fmt.Errorf("unsupported variant %q", variant)
	}
	cfg.ProblemSize = dims
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = iters
	cfg.NPop = pop
	cfg.NPopF = pop
	// NC/2 parent pairs must exist in both populations.
	cfg.NC = 2 * pop
	cfg.NM = max(1, int(math.Round(0.05*float64(pop))))
	return cfg, nil
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
