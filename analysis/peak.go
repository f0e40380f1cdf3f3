package analysis

import (
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
)

const maxPeakFFT = 1 << 16

// PeakFrequency estimates the strongest spectral component of x in Hz using a
// Hann-windowed FFT of the largest power-of-two prefix (up to 65536 samples)
// and parabolic interpolation around the peak bin. It returns 0 for signals
// that are too short or silent.
func PeakFrequency(x []float64, sampleRate int) float64 {
	if sampleRate <= 0 || len(x) < 64 {
		return 0
	}
	size := 64
	for size*2 <= len(x) && size*2 <= maxPeakFFT {
		size *= 2
	}
	plan, err := algofft.NewPlanReal64(size)
	if err != nil {
		return 0
	}
	win := hann(size)
	buf := make([]float64, size)
	for i := range buf {
		buf[i] = x[i] * win[i]
	}
	spec := make([]complex128, size/2+1)
	plan.Forward(spec, buf)

	mag := make([]float64, len(spec))
	peak := 1
	for k := 1; k < len(spec)-1; k++ {
		mag[k] = cmplx.Abs(spec[k])
		if mag[k] > mag[peak] {
			peak = k
		}
	}
	if mag[peak] <= 1e-12 {
		return 0
	}

	offset := 0.0
	if peak > 1 && peak < len(spec)-2 {
		a := linToDB(mag[peak-1])
		b := linToDB(mag[peak])
		c := linToDB(mag[peak+1])
		if den := a - 2*b + c; math.Abs(den) > 1e-12 {
			offset = 0.5 * (a - c) / den
		}
	}
	return (float64(peak) + offset) * float64(sampleRate) / float64(size)
}
