package main

import (
	"encoding/binary"
	"math"

	"github.com/dustyfingers/synthy/synth"
	"github.com/ebitengine/oto/v3"
)

const bytesPerFrame = 2 * 4

// engineSource adapts an Engine to the interleaved float32 little-endian
// stream the audio device pulls. Read runs on the device goroutine.
type engineSource struct {
	engine      *synth.Engine
	left, right []float32
	outs        [][]float32
}

func newEngineSource(e *synth.Engine, frames int) *engineSource {
	s := &engineSource{engine: e, outs: make([][]float32, 2)}
	s.grow(frames)
	return s
}

func (s *engineSource) grow(frames int) {
	s.left = make([]float32, frames)
	s.right = make([]float32, frames)
}

func (s *engineSource) Read(p []byte) (int, error) {
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	if len(s.left) < frames {
		s.grow(frames)
	}
	l, r := s.left[:frames], s.right[:frames]
	s.outs[0], s.outs[1] = l, r
	s.engine.Process(s.outs)
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint32(p[i*bytesPerFrame:], math.Float32bits(l[i]))
		binary.LittleEndian.PutUint32(p[i*bytesPerFrame+4:], math.Float32bits(r[i]))
	}
	return frames * bytesPerFrame, nil
}

type output struct {
	player *oto.Player
}

func openOutput(e *synth.Engine) (*output, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(e.SampleRate()),
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready

	player := ctx.NewPlayer(newEngineSource(e, 4096))
	player.Play()
	return &output{player: player}, nil
}

func (o *output) Close() error {
	return o.player.Close()
}
