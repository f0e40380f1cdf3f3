package analysis

import (
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
)

const (
	envFrame = 256
	envHop   = 128
	// specSize is the STFT frame length used by the spectral distance.
	specSize = 4096
	specHop  = 2048
	// maxSpecFrames bounds spectral work on long signals.
	maxSpecFrames = 32
)

// Score weights per component.
const (
	WeightTime     = 0.30
	WeightEnvelope = 0.25
	WeightSpectral = 0.30
	WeightDecay    = 0.15
)

// Metrics holds distance measurements between a reference and a candidate render.
type Metrics struct {
	SampleRate int `json:"sample_rate"`

	ReferenceFrames int `json:"reference_frames"`
	CandidateFrames int `json:"candidate_frames"`
	AlignedFrames   int `json:"aligned_frames"`
	LagSamples      int `json:"lag_samples"`

	ReferencePeakHz float64 `json:"reference_peak_hz"`
	CandidatePeakHz float64 `json:"candidate_peak_hz"`

	TimeRMSE        float64 `json:"time_rmse"`
	EnvelopeRMSEDB  float64 `json:"envelope_rmse_db"`
	SpectralRMSEDB  float64 `json:"spectral_rmse_db"`
	RefDecayDBPerS  float64 `json:"ref_decay_db_per_s"`
	CandDecayDBPerS float64 `json:"cand_decay_db_per_s"`
	DecayDiffDBPerS float64 `json:"decay_diff_db_per_s"`

	TimeNorm     float64 `json:"time_norm"`
	EnvelopeNorm float64 `json:"envelope_norm"`
	SpectralNorm float64 `json:"spectral_norm"`
	DecayNorm    float64 `json:"decay_norm"`
	// Dominant names the component contributing most to Score.
	Dominant string `json:"dominant"`

	// Score is the weighted distance in [0,1]; 0 means indistinguishable.
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

func worst(m Metrics) Metrics {
	m.Score = 1
	m.Similarity = 0
	return m
}

// Compare aligns candidate to reference and scores how far apart they are in
// time, loudness contour, spectrum and decay rate.
func Compare(reference []float64, candidate []float64, sampleRate int) Metrics {
	m := Metrics{
		SampleRate:      sampleRate,
		ReferenceFrames: len(reference),
		CandidateFrames: len(candidate),
	}
	if sampleRate <= 0 {
		return worst(m)
	}

	ref := normalizeRMS(trimLeadingSilence(reference, 1e-6), 0.1)
	cand := normalizeRMS(trimLeadingSilence(candidate, 1e-6), 0.1)
	if len(ref) < 2 || len(cand) < 2 {
		return worst(m)
	}
	m.ReferencePeakHz = PeakFrequency(ref, sampleRate)
	m.CandidatePeakHz = PeakFrequency(cand, sampleRate)

	maxLag := min(max(sampleRate/2, 1), len(ref)-1, len(cand)-1)
	lag := estimateLag(ref, cand, maxLag)
	m.LagSamples = lag

	refA, candA := alignByLag(ref, cand, lag)
	n := min(len(refA), len(candA), sampleRate*12)
	if n < 256 {
		return worst(m)
	}
	refA, candA = refA[:n], candA[:n]
	m.AlignedFrames = n

	m.TimeRMSE = rmse(refA, candA)

	refEnv := rmsEnvelope(refA, envFrame, envHop)
	candEnv := rmsEnvelope(candA, envFrame, envHop)
	if envN := min(len(refEnv), len(candEnv)); envN > 0 {
		var sum float64
		for i := 0; i < envN; i++ {
			d := linToDB(refEnv[i]) - linToDB(candEnv[i])
			sum += d * d
		}
		m.EnvelopeRMSEDB = math.Sqrt(sum / float64(envN))
	}

	m.SpectralRMSEDB = spectralRMSEDB(refA, candA)

	hopSec := float64(envHop) / float64(sampleRate)
	m.RefDecayDBPerS = decaySlopeDBPerS(refEnv, hopSec)
	m.CandDecayDBPerS = decaySlopeDBPerS(candEnv, hopSec)
	if isFinite(m.RefDecayDBPerS) && isFinite(m.CandDecayDBPerS) {
		m.DecayDiffDBPerS = math.Abs(m.RefDecayDBPerS - m.CandDecayDBPerS)
	}

	m.TimeNorm = clamp01(m.TimeRMSE / 0.25)
	m.EnvelopeNorm = clamp01(m.EnvelopeRMSEDB / 30)
	m.SpectralNorm = clamp01(m.SpectralRMSEDB / 30)
	m.DecayNorm = clamp01(m.DecayDiffDBPerS / 40)
	parts := []struct {
		name string
		v    float64
	}{
		{"time", WeightTime * m.TimeNorm},
		{"envelope", WeightEnvelope * m.EnvelopeNorm},
		{"spectral", WeightSpectral * m.SpectralNorm},
		{"decay", WeightDecay * m.DecayNorm},
	}
	var total, top float64
	for _, p := range parts {
		total += p.v
		if p.v > top {
			top = p.v
			m.Dominant = p.name
		}
	}
	m.Score = clamp01(total)
	m.Similarity = clamp01(math.Exp(-4 * m.Score))
	return m
}

func trimLeadingSilence(x []float64, threshold float64) []float64 {
	for i, v := range x {
		if math.Abs(v) > threshold {
			return x[i:]
		}
	}
	return nil
}

func normalizeRMS(x []float64, target float64) []float64 {
	out := append([]float64(nil), x...)
	r := rms1(x)
	if r <= 1e-12 {
		return out
	}
	g := target / r
	for i := range out {
		out[i] *= g
	}
	return out
}

// estimateLag returns the shift in [-maxLag, maxLag] that maximizes the cross
// correlation sum ref[i+lag]*cand[i]. The correlation is computed as an FFT
// convolution of ref with the reversed candidate.
func estimateLag(ref []float64, cand []float64, maxLag int) int {
	if len(ref) == 0 || len(cand) == 0 || maxLag < 0 {
		return 0
	}
	a := make([]float32, len(ref))
	for i, v := range ref {
		a[i] = float32(v)
	}
	b := make([]float32, len(cand))
	for i, v := range cand {
		b[len(cand)-1-i] = float32(v)
	}
	corr := make([]float32, len(a)+len(b)-1)
	if err := algofft.ConvolveReal(corr, a, b); err != nil {
		return 0
	}

	bestLag := 0
	best := math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		k := len(cand) - 1 + lag
		if k < 0 || k >= len(corr) {
			continue
		}
		if s := float64(corr[k]); s > best {
			best = s
			bestLag = lag
		}
	}
	return bestLag
}

func alignByLag(ref []float64, cand []float64, lag int) ([]float64, []float64) {
	if lag >= 0 {
		if lag >= len(ref) {
			return nil, nil
		}
		return ref[lag:], cand
	}
	if -lag >= len(cand) {
		return nil, nil
	}
	return ref, cand[-lag:]
}

func rmse(a []float64, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

func rms1(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func rmsEnvelope(x []float64, frame int, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	out := make([]float64, 1+(len(x)-frame)/hop)
	for i := range out {
		out[i] = rms1(x[i*hop : i*hop+frame])
	}
	return out
}

// spectralRMSEDB compares Hann-windowed STFT magnitude spectra averaged over
// up to maxSpecFrames frames. Signals shorter than one frame use a single
// zero-padded frame.
func spectralRMSEDB(a []float64, b []float64) float64 {
	n := min(len(a), len(b))
	if n < 512 {
		return 0
	}
	size := specSize
	for size > n && size > 512 {
		size >>= 1
	}
	plan, err := algofft.NewPlanReal64(size)
	if err != nil {
		return 0
	}
	win := hann(size)
	bins := size / 2
	avgA := make([]float64, bins)
	avgB := make([]float64, bins)
	specA := make([]complex128, bins+1)
	specB := make([]complex128, bins+1)
	bufA := make([]float64, size)
	bufB := make([]float64, size)

	frames := 0
	for pos := 0; pos+size <= n && frames < maxSpecFrames; pos += specHop {
		for i := 0; i < size; i++ {
			bufA[i] = a[pos+i] * win[i]
			bufB[i] = b[pos+i] * win[i]
		}
		plan.Forward(specA, bufA)
		plan.Forward(specB, bufB)
		for k := 1; k < bins; k++ {
			avgA[k] += cmplx.Abs(specA[k])
			avgB[k] += cmplx.Abs(specB[k])
		}
		frames++
	}
	if frames == 0 {
		return 0
	}

	var sum float64
	for k := 1; k < bins; k++ {
		d := linToDB(avgA[k]/float64(frames)) - linToDB(avgB[k]/float64(frames))
		sum += d * d
	}
	return math.Sqrt(sum / float64(bins-1))
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func linToDB(x float64) float64 {
	return 20 * math.Log10(max(x, 1e-12))
}

// decaySlopeDBPerS fits a line to the envelope in dB from its peak down to
// 60 dB below it.
func decaySlopeDBPerS(env []float64, hopSec float64) float64 {
	if len(env) < 8 || hopSec <= 0 {
		return math.NaN()
	}
	peak := math.Inf(-1)
	peakIdx := 0
	for i, v := range env {
		if db := linToDB(v); db > peak {
			peak = db
			peakIdx = i
		}
	}
	start := peakIdx + 1
	if start >= len(env)-4 {
		return math.NaN()
	}
	end := len(env)
	for i := start; i < len(env); i++ {
		if linToDB(env[i]) < peak-60 {
			end = i
			break
		}
	}
	if end-start < 6 {
		return math.NaN()
	}

	var sx, sy, sxx, sxy float64
	n := float64(end - start)
	for i := start; i < end; i++ {
		x := float64(i-start) * hopSec
		y := linToDB(env[i])
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	den := n*sxx - sx*sx
	if math.Abs(den) < 1e-12 {
		return math.NaN()
	}
	return (n*sxy - sx*sy) / den
}

func clamp01(x float64) float64 {
	return min(max(x, 0), 1)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
