package synth

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// EventKind is the type of a note-control event.
type EventKind uint8

const (
	// EventNone is the zero value and is never applied.
	EventNone EventKind = iota
	EventNoteOn
	EventNoteOff
)

// Event is a decoded note-control event.
type Event struct {
	Kind     EventKind
	Pitch    uint8
	Velocity uint8
}

// NoteOnEvent builds a note-on event.
func NoteOnEvent(pitch, velocity uint8) Event {
	return Event{Kind: EventNoteOn, Pitch: pitch, Velocity: velocity}
}

// NoteOffEvent builds a note-off event.
func NoteOffEvent(pitch uint8) Event {
	return Event{Kind: EventNoteOff, Pitch: pitch}
}

func (e Event) String() string {
	switch e.Kind {
	case EventNoteOn:
		return fmt.Sprintf("NoteOn{note:%d, vel:%d}", e.Pitch, e.Velocity)
	case EventNoteOff:
		return fmt.Sprintf("NoteOff{note:%d}", e.Pitch)
	default:
		return "None"
	}
}

// DecodeMIDI turns a raw channel message into an Event. Anything that is not a
// well-formed note-on or note-off is rejected. A note-on with velocity 0 is a
// note-off.
func DecodeMIDI(data []byte) (Event, bool) {
	if len(data) != 3 {
		return Event{}, false
	}
	status := data[0] & 0xF0
	if status != 0x80 && status != 0x90 {
		return Event{}, false
	}
	if data[1] > 0x7F || data[2] > 0x7F {
		return Event{}, false
	}

	msg := midi.Message(data)
	var channel, key, velocity uint8
	switch {
	case msg.GetNoteStart(&channel, &key, &velocity):
		return NoteOnEvent(key, velocity), true
	case msg.GetNoteEnd(&channel, &key):
		return NoteOffEvent(key), true
	}
	return Event{}, false
}
