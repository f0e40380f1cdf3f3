package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dustyfingers/synthy/analysis"
	"github.com/dustyfingers/synthy/internal/audiofile"
)

func main() {
	referencePath := flag.String("reference", "reference/a4.wav", "Reference WAV path")
	candidatePath := flag.String("candidate", "output.wav", "Candidate WAV path")
	sampleRate := flag.Int("sample-rate", 48000, "Analysis sample rate in Hz")
	jsonOut := flag.Bool("json", false, "Print metrics as JSON")
	flag.Parse()

	m, err := compareFiles(*referencePath, *candidatePath, *sampleRate)
	if err != nil {
		die("%v", err)
	}
	if *jsonOut {
		err = writeJSON(os.Stdout, m)
	} else {
		err = writeReport(os.Stdout, m)
	}
	if err != nil {
		die("write report: %v", err)
	}
}

func compareFiles(referencePath, candidatePath string, sampleRate int) (analysis.Metrics, error) {
	ref, err := audiofile.ReadMonoAt(referencePath, sampleRate)
	if err != nil {
		return analysis.Metrics{}, fmt.Errorf("read reference: %w", err)
	}
	cand, err := audiofile.ReadMonoAt(candidatePath, sampleRate)
	if err != nil {
		return analysis.Metrics{}, fmt.Errorf("read candidate: %w", err)
	}
	return analysis.Compare(ref, cand, sampleRate), nil
}

func writeJSON(w io.Writer, m analysis.Metrics) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

func writeReport(w io.Writer, m analysis.Metrics) error {
	lagMS := 0.0
	if m.SampleRate > 0 {
		lagMS = 1000 * float64(m.LagSamples) / float64(m.SampleRate)
	}
	fmt.Fprintf(w, "Reference frames: %d (peak %.1f Hz)\n", m.ReferenceFrames, m.ReferencePeakHz)
	fmt.Fprintf(w, "Candidate frames: %d (peak %.1f Hz)\n", m.CandidateFrames, m.CandidatePeakHz)
	fmt.Fprintf(w, "Aligned frames:   %d\n", m.AlignedFrames)
	fmt.Fprintf(w, "Lag:              %d samples (%.3f ms)\n\n", m.LagSamples, lagMS)

	fmt.Fprintf(w, "Component        Raw          Norm   Weight  Contribution\n")
	row := func(name, raw string, norm, weight float64) {
		marker := ""
		if m.Dominant != "" && name == dominantLabel(m.Dominant) {
			marker = " <"
		}
		fmt.Fprintf(w, "%-16s %-12s %5.1f%%  x%.2f   = %.4f%s\n", name, raw, norm*100, weight, norm*weight, marker)
	}
	row("Time RMSE", fmt.Sprintf("%.6f", m.TimeRMSE), m.TimeNorm, analysis.WeightTime)
	row("Envelope RMSE", fmt.Sprintf("%.1f dB", m.EnvelopeRMSEDB), m.EnvelopeNorm, analysis.WeightEnvelope)
	row("Spectral RMSE", fmt.Sprintf("%.1f dB", m.SpectralRMSEDB), m.SpectralNorm, analysis.WeightSpectral)
	row("Decay diff", fmt.Sprintf("%.1f dB/s", m.DecayDiffDBPerS), m.DecayNorm, analysis.WeightDecay)

	fmt.Fprintf(w, "\nScore:            %.4f  (0 best, 1 worst)\n", m.Score)
	fmt.Fprintf(w, "Similarity:       %.2f%%\n", m.Similarity*100)
	_, err := fmt.Fprintf(w, "Decay slopes:     ref=%.1f dB/s  cand=%.1f dB/s\n", m.RefDecayDBPerS, m.CandDecayDBPerS)
	return err
}

func dominantLabel(component string) string {
	switch component {
	case "time":
		return "Time RMSE"
	case "envelope":
		return "Envelope RMSE"
	case "spectral":
		return "Spectral RMSE"
	case "decay":
		return "Decay diff"
	}
	return ""
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
