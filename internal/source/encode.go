package source

import (
	"math"

	"github.com/PixPMusic/gopher-learn/internal/control"
	"github.com/PixPMusic/gopher-learn/internal/event"
)

// Encode appends the feedback events representing v (a unit value in the
// source's own range) to dst. Values are clamped to what the source can
// represent. Sources without feedback support append nothing.
func (s *Source) Encode(dst []event.Raw, v float64) []event.Raw {
	if !s.SupportsFeedback() {
		return dst
	}
	v = control.ClampUnit(v)
	ch := uint8(0)
	if s.Channel != Any {
		ch = uint8(s.Channel)
	}
	switch s.Kind {
	case KindMidiControlChange:
		if s.FourteenBit {
			v14 := scale(v, max14)
			return append(dst,
				event.MidiEvent(event.StatusControlChange, ch, uint8(s.Number), uint8(v14>>7)),
				event.MidiEvent(event.StatusControlChange, ch, uint8(s.Number+32), uint8(v14&0x7F)),
			)
		}
		return append(dst, event.MidiEvent(event.StatusControlChange, ch, uint8(s.Number), s.encode7(v)))
	case KindMidiNoteVelocity:
		return append(dst, event.MidiEvent(event.StatusNoteOn, ch, uint8(s.Number), s.encode7(v)))
	case KindMidiPolyPressure:
		return append(dst, event.MidiEvent(event.StatusPolyPressure, ch, uint8(s.Number), s.encode7(v)))
	case KindMidiChannelPressure:
		return append(dst, event.MidiEvent(event.StatusChannelPressure, ch, s.encode7(v), 0))
	case KindMidiProgramChange:
		return append(dst, event.MidiEvent(event.StatusProgramChange, ch, s.encode7(v), 0))
	case KindMidiPitchBend:
		v14 := scale(v, max14)
		return append(dst, event.MidiEvent(event.StatusPitchBend, ch, uint8(v14&0x7F), uint8(v14>>7)))
	case KindMidiParameterNumber:
		msbCC, lsbCC := uint8(ccNRPNMSB), uint8(ccNRPNLSB)
		if s.Registered {
			msbCC, lsbCC = ccRPNMSB, ccRPNLSB
		}
		dst = append(dst,
			event.MidiEvent(event.StatusControlChange, ch, msbCC, uint8(s.Number>>7)),
			event.MidiEvent(event.StatusControlChange, ch, lsbCC, uint8(s.Number&0x7F)),
		)
		if s.FourteenBit {
			v14 := scale(v, max14)
			return append(dst,
				event.MidiEvent(event.StatusControlChange, ch, ccDataEntryMSB, uint8(v14>>7)),
				event.MidiEvent(event.StatusControlChange, ch, ccDataEntryLSB, uint8(v14&0x7F)),
			)
		}
		return append(dst, event.MidiEvent(event.StatusControlChange, ch, ccDataEntryMSB, s.encode7(v)))
	case KindOsc:
		return append(dst, s.encodeOsc(v))
	}
	return dst
}

func (s *Source) encode7(v float64) uint8 {
	if s.Character == CharacterButton {
		if v >= 0.5 {
			return max7
		}
		return 0
	}
	return uint8(scale(v, max7))
}

func (s *Source) encodeOsc(v float64) event.Raw {
	var arg event.Arg
	if s.Character == CharacterButton {
		arg = event.BoolArg(v >= 0.5)
	} else {
		arg = event.FloatArg(s.RangeMin + v*(s.RangeMax-s.RangeMin))
	}
	return event.OscValue(s.Address, s.ArgIndex, arg)
}

func scale(v float64, max int) int {
	return int(math.Round(v * float64(max)))
}
