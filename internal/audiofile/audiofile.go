// Package audiofile reads and writes the WAV files the command-line tools
// exchange and converts between sample rates.
package audiofile

import (
	"fmt"
	"os"
	"path/filepath"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// ReadMono decodes a WAV file and averages its channels.
func ReadMono(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, fmt.Errorf("invalid wav buffer: %s", path)
	}

	ch := buf.Format.NumChannels
	out := make([]float64, len(buf.Data)/ch)
	for i := range out {
		var sum float64
		for c := 0; c < ch; c++ {
			sum += float64(buf.Data[i*ch+c])
		}
		out[i] = sum / float64(ch)
	}
	return out, buf.Format.SampleRate, nil
}

// ReadMonoAt reads path and resamples it to rate when the file differs.
func ReadMonoAt(path string, rate int) ([]float64, error) {
	x, fileRate, err := ReadMono(path)
	if err != nil {
		return nil, err
	}
	return Resample(x, fileRate, rate)
}

// Resample converts in from fromRate to toRate. Equal rates return in unchanged.
func Resample(in []float64, fromRate int, toRate int) ([]float64, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid resample rates %d -> %d", fromRate, toRate)
	}
	if fromRate == toRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	return r.Process(in), nil
}

// WriteStereo writes left/right as a 16-bit stereo WAV, creating parent directories.
func WriteStereo(path string, left []float32, right []float32, sampleRate int) error {
	if len(left) != len(right) {
		return fmt.Errorf("left/right length mismatch: %d vs %d", len(left), len(right))
	}
	data := make([]float32, len(left)*2)
	for i := range left {
		data[i*2] = left[i]
		data[i*2+1] = right[i]
	}
	return write(path, data, 2, sampleRate)
}

// WriteMono writes a 16-bit mono WAV.
func WriteMono(path string, samples []float32, sampleRate int) error {
	return write(path, samples, 1, sampleRate)
}

func write(path string, interleaved []float32, channels int, sampleRate int) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: channels,
		},
		Data:           interleaved,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return enc.Close()
}

// Mix averages a stereo pair into one float64 channel.
func Mix(left []float32, right []float32) []float64 {
	out := make([]float64, min(len(left), len(right)))
	for i := range out {
		out[i] = 0.5 * (float64(left[i]) + float64(right[i]))
	}
	return out
}
