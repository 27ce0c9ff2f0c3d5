package source

import "github.com/PixPMusic/gopher-learn/internal/event"

// FromEvent derives a source descriptor that would match ev, for interactive
// learning. It reports false for events that cannot become a source.
func FromEvent(ev event.Raw) (Source, bool) {
	switch ev.Kind {
	case event.KindOsc:
		if ev.Osc.Address == "" {
			return Source{}, false
		}
		s := Source{Kind: KindOsc, Address: ev.Osc.Address, Channel: Any, Number: Any, RangeMin: 0, RangeMax: 1}
		if ev.Osc.Len() > 0 && ev.Osc.At(0).Kind == event.ArgBool {
			s.Character = CharacterButton
		}
		return s, true
	case event.KindMidi:
	default:
		return Source{}, false
	}
	m := ev.Midi
	s := Source{Channel: int(m.Channel), Number: Any}
	switch m.Status {
	case event.StatusNoteOn, event.StatusNoteOff:
		s.Kind = KindMidiNoteVelocity
		s.Number = int(m.Data1)
	case event.StatusControlChange:
		s.Kind = KindMidiControlChange
		s.Number = int(m.Data1)
	case event.StatusPolyPressure:
		s.Kind = KindMidiPolyPressure
		s.Number = int(m.Data1)
	case event.StatusChannelPressure:
		s.Kind = KindMidiChannelPressure
	case event.StatusProgramChange:
		s.Kind = KindMidiProgramChange
	case event.StatusPitchBend:
		s.Kind = KindMidiPitchBend
	default:
		return Source{}, false
	}
	return s, true
}
