package midi

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/PixPMusic/gopher-learn/internal/event"
)

// FromMessage converts a channel voice message into a raw event. System
// messages are not mapped and report false. Pitch bend keeps the wire layout:
// Data1 is the low 7 bits, Data2 the high 7 bits.
func FromMessage(msg midi.Message) (event.Raw, bool) {
	var channel, d1, d2 uint8
	var rel int16
	var abs uint16
	switch {
	case msg.GetNoteOn(&channel, &d1, &d2):
		return event.MidiEvent(event.StatusNoteOn, channel, d1, d2), true
	case msg.GetNoteOff(&channel, &d1, &d2):
		return event.MidiEvent(event.StatusNoteOff, channel, d1, d2), true
	case msg.GetControlChange(&channel, &d1, &d2):
		return event.MidiEvent(event.StatusControlChange, channel, d1, d2), true
	case msg.GetPolyAfterTouch(&channel, &d1, &d2):
		return event.MidiEvent(event.StatusPolyPressure, channel, d1, d2), true
	case msg.GetAfterTouch(&channel, &d1):
		return event.MidiEvent(event.StatusChannelPressure, channel, d1, 0), true
	case msg.GetProgramChange(&channel, &d1):
		return event.MidiEvent(event.StatusProgramChange, channel, d1, 0), true
	case msg.GetPitchBend(&channel, &rel, &abs):
		return event.MidiEvent(event.StatusPitchBend, channel, uint8(abs&0x7F), uint8(abs>>7)), true
	}
	return event.Raw{}, false
}

// ToMessage converts a raw MIDI event back into a wire message
func ToMessage(ev event.Midi) midi.Message {
	switch ev.Status {
	case event.StatusNoteOn:
		return midi.NoteOn(ev.Channel, ev.Data1, ev.Data2)
	case event.StatusNoteOff:
		return midi.NoteOffVelocity(ev.Channel, ev.Data1, ev.Data2)
	case event.StatusControlChange:
		return midi.ControlChange(ev.Channel, ev.Data1, ev.Data2)
	case event.StatusPolyPressure:
		return midi.PolyAfterTouch(ev.Channel, ev.Data1, ev.Data2)
	case event.StatusChannelPressure:
		return midi.AfterTouch(ev.Channel, ev.Data1)
	case event.StatusProgramChange:
		return midi.ProgramChange(ev.Channel, ev.Data1)
	case event.StatusPitchBend:
		abs := int16(ev.Data2)<<7 | int16(ev.Data1)
		return midi.Pitchbend(ev.Channel, abs-8192)
	}
	return nil
}
