package synth

import (
	"io"
	"log/slog"
	"math"
	"testing"
)

func newTestEngine(t testing.TB, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SampleRate = 48000
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func render(e *Engine, frames int) ([]float32, []float32) {
	left := make([]float32, frames)
	right := make([]float32, frames)
	e.Process([][]float32{left, right})
	return left, right
}

func renderBlocks(e *Engine, blocks int, blockSize int) ([]float32, []float32) {
	left := make([]float32, 0, blocks*blockSize)
	right := make([]float32, 0, blocks*blockSize)
	for b := 0; b < blocks; b++ {
		l, r := render(e, blockSize)
		left = append(left, l...)
		right = append(right, r...)
	}
	return left, right
}

func allZero(samples []float32) bool {
	for _, s := range samples {
		if s != 0 {
			return false
		}
	}
	return true
}

func windowRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func measureFundamentalFreq(samples []float32, sampleRate float64) float64 {
	startIdx := len(samples) / 10
	crossings := 0
	for i := startIdx + 1; i < len(samples); i++ {
		if samples[i-1] < 0 && samples[i] >= 0 {
			crossings++
		}
	}
	duration := float64(len(samples)-startIdx) / sampleRate
	return float64(crossings) / duration
}
