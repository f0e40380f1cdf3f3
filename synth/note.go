package synth

// Note is the single sounding note.
type Note struct {
	Pitch    uint8
	Velocity uint8
	// Start is the transport time in seconds at which the note began.
	Start float64
}

// NoteState is the monophonic gate: Idle, or Sounding with exactly one note.
// The newest note-on always wins and only a note-off for the sounding pitch
// releases it.
type NoteState struct {
	note     Note
	sounding bool
}

// NoteOn starts pitch at time now, replacing any sounding note.
func (s *NoteState) NoteOn(pitch, velocity uint8, now float64) {
	s.note = Note{Pitch: pitch, Velocity: velocity, Start: now}
	s.sounding = true
}

// NoteOff releases the note if pitch matches it. It reports whether the state changed.
func (s *NoteState) NoteOff(pitch uint8) bool {
	if !s.sounding || s.note.Pitch != pitch {
		return false
	}
	s.sounding = false
	s.note = Note{}
	return true
}

// Current returns the sounding note.
func (s *NoteState) Current() (Note, bool) {
	return s.note, s.sounding
}

// Enabled reports whether a note is sounding.
func (s *NoteState) Enabled() bool {
	return s.sounding
}

// Reanchor moves the sounding note's start time, used when transport time is reset.
func (s *NoteState) Reanchor(now float64) {
	if s.sounding {
		s.note.Start = now
	}
}

// Reset returns to Idle.
func (s *NoteState) Reset() {
	s.note = Note{}
	s.sounding = false
}
