package score

import "github.com/dustyfingers/synthy/synth"

// Render plays s through e in host blocks of at most block frames and returns
// s.Length+tail frames of stereo output. A block is split wherever an event
// falls inside it so every event lands on its exact frame.
func Render(e *synth.Engine, s *Score, block int, tail int64) (left, right []float32) {
	if block <= 0 {
		block = synth.MaxBlockSize
	}
	total := s.Length + max(tail, 0)
	left = make([]float32, total)
	right = make([]float32, total)

	next := 0
	for pos := int64(0); pos < total; {
		for next < len(s.Events) && s.Events[next].Frame <= pos {
			Apply(e, s.Events[next])
			next++
		}
		end := min(pos+int64(block), total)
		if next < len(s.Events) && s.Events[next].Frame < end {
			end = s.Events[next].Frame
		}
		e.Process([][]float32{left[pos:end], right[pos:end]})
		pos = end
	}
	for ; next < len(s.Events); next++ {
		Apply(e, s.Events[next])
	}
	return left, right
}
