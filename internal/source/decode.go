package source

import (
	"math"
	"time"

	"github.com/PixPMusic/gopher-learn/internal/control"
	"github.com/PixPMusic/gopher-learn/internal/event"
)

const (
	max7  = 127
	max14 = 16383
)

// Decode extracts a control value from ev. It reports false when the event
// does not belong to this source or does not complete a value (the first half
// of a 14-bit pair, a relative "no change" byte). The assembler is the only
// state touched and belongs to the caller.
func (s *Source) Decode(ev event.Raw, asm *Assembler, now time.Duration) (control.Value, bool) {
	if !s.Matches(ev, asm) {
		return control.Value{}, false
	}
	if s.Kind == KindOsc {
		return s.decodeOsc(ev.Osc)
	}
	m := ev.Midi
	switch s.Kind {
	case KindMidiControlChange:
		if !s.FourteenBit {
			return s.decode7(m.Data2)
		}
		if int(m.Data1) == s.Number {
			asm.hold(int(m.Data2), now)
			return control.Value{}, false
		}
		v, ok := asm.complete(int(m.Data2), now)
		if !ok {
			return control.Value{}, false
		}
		return control.Discrete(v, max14), true
	case KindMidiNoteVelocity:
		velocity := m.Data2
		if m.Status == event.StatusNoteOff {
			velocity = 0
		}
		return s.decode7(velocity)
	case KindMidiNoteKeyNumber:
		if m.Data2 == 0 {
			return control.Value{}, false
		}
		return control.Discrete(int(m.Data1), max7), true
	case KindMidiPolyPressure:
		return s.decode7(m.Data2)
	case KindMidiChannelPressure, KindMidiProgramChange:
		return s.decode7(m.Data1)
	case KindMidiPitchBend:
		return control.Discrete(int(m.Data2)<<7|int(m.Data1), max14), true
	case KindMidiParameterNumber:
		return s.decodeParameterNumber(m, asm, now)
	}
	return control.Value{}, false
}

func (s *Source) decodeParameterNumber(m event.Midi, asm *Assembler, now time.Duration) (control.Value, bool) {
	switch m.Data1 {
	case ccNRPNMSB, ccNRPNLSB, ccRPNMSB, ccRPNLSB:
		asm.selectParameter(m.Data1, int(m.Data2))
		return control.Value{}, false
	}
	if !s.selected(asm) {
		return control.Value{}, false
	}
	switch m.Data1 {
	case ccDataIncrement:
		return control.Relative(1), true
	case ccDataDecrement:
		return control.Relative(-1), true
	case ccDataEntryMSB:
		if !s.FourteenBit {
			return s.decode7(m.Data2)
		}
		asm.hold(int(m.Data2), now)
		return control.Value{}, false
	case ccDataEntryLSB:
		if !s.FourteenBit {
			return control.Value{}, false
		}
		v, ok := asm.complete(int(m.Data2), now)
		if !ok {
			return control.Value{}, false
		}
		return control.Discrete(v, max14), true
	}
	return control.Value{}, false
}

// decode7 interprets a 7-bit value according to the source character
func (s *Source) decode7(v uint8) (control.Value, bool) {
	switch s.Character {
	case CharacterButton:
		if v > 0 {
			return control.Absolute(1), true
		}
		return control.Absolute(0), true
	case CharacterRelative1:
		switch {
		case v == 0:
			return control.Value{}, false
		case v < 64:
			return control.Relative(int(v)), true
		default:
			return control.Relative(int(v) - 128), true
		}
	case CharacterRelative2:
		if v == 64 {
			return control.Value{}, false
		}
		return control.Relative(int(v) - 64), true
	case CharacterRelative3:
		switch {
		case v == 0 || v == 64:
			return control.Value{}, false
		case v < 64:
			return control.Relative(int(v)), true
		default:
			return control.Relative(-(int(v) - 64)), true
		}
	default:
		return control.Discrete(int(v), max7), true
	}
}

func (s *Source) decodeOsc(m event.Osc) (control.Value, bool) {
	if m.Len() == 0 {
		// Argument-less messages act as triggers
		return control.Absolute(1), true
	}
	if s.ArgIndex >= m.Len() {
		return control.Value{}, false
	}
	n, ok := m.At(s.ArgIndex).Number()
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return control.Value{}, false
	}
	if s.Relative {
		delta := int(math.Round(n))
		if delta == 0 {
			if n > 0 {
				delta = 1
			} else if n < 0 {
				delta = -1
			} else {
				return control.Value{}, false
			}
		}
		return control.Relative(delta), true
	}
	if s.Character == CharacterButton {
		if n > s.RangeMin {
			return control.Absolute(1), true
		}
		return control.Absolute(0), true
	}
	return control.Absolute((n - s.RangeMin) / (s.RangeMax - s.RangeMin)), true
}
