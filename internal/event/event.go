// Package event defines the raw control events exchanged with controllers,
// in both directions.
package event

import (
	"fmt"
	"strings"
)

// MIDI status nibbles (channel voice messages)
const (
	StatusNoteOff         uint8 = 0x80
	StatusNoteOn          uint8 = 0x90
	StatusPolyPressure    uint8 = 0xA0
	StatusControlChange   uint8 = 0xB0
	StatusProgramChange   uint8 = 0xC0
	StatusChannelPressure uint8 = 0xD0
	StatusPitchBend       uint8 = 0xE0
)

// Kind discriminates Raw events
type Kind uint8

const (
	KindMidi Kind = iota + 1
	KindOsc
)

// Midi is a channel voice message split into its parts. Status holds the
// upper nibble only; Channel is 0-15.
type Midi struct {
	Channel uint8
	Status  uint8
	Data1   uint8
	Data2   uint8
}

// ArgKind discriminates OSC argument types
type ArgKind uint8

const (
	ArgNil ArgKind = iota
	ArgInt
	ArgFloat
	ArgBool
	ArgString
)

// Arg is a typed OSC argument
type Arg struct {
	Kind   ArgKind
	Int    int64
	Float  float64
	Bool   bool
	String string
}

// IntArg, FloatArg, BoolArg and StringArg build typed arguments
func IntArg(v int64) Arg { return Arg{Kind: ArgInt, Int: v} }
func FloatArg(v float64) Arg { return Arg{Kind: ArgFloat, Float: v} }
func BoolArg(v bool) Arg { return Arg{Kind: ArgBool, Bool: v} }
func StringArg(v string) Arg { return Arg{Kind: ArgString, String: v} }

// Number returns the argument as a float, reporting whether it is numeric
func (a Arg) Number() (float64, bool) {
	switch a.Kind {
	case ArgInt:
		return float64(a.Int), true
	case ArgFloat:
		return a.Float, true
	case ArgBool:
		if a.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Osc is an OSC message with its ordered arguments. Feedback encoded on the
// real-time path does not own a slice: it sets Sparse and carries its single
// value inline at Index, every argument before it being nil. Read arguments
// through Len and At to cover both forms.
type Osc struct {
	Address string
	Args    []Arg
	Sparse  bool
	Index   int
	Value   Arg
}

// Len returns the number of arguments
func (o Osc) Len() int {
	if o.Sparse {
		return o.Index + 1
	}
	return len(o.Args)
}

// At returns argument i, which must be below Len
func (o Osc) At(i int) Arg {
	if o.Sparse {
		if i == o.Index {
			return o.Value
		}
		return Arg{}
	}
	return o.Args[i]
}

// Arguments returns the arguments as a slice, expanding the sparse form
func (o Osc) Arguments() []Arg {
	if !o.Sparse {
		return o.Args
	}
	args := make([]Arg, o.Index+1)
	args[o.Index] = o.Value
	return args
}

// Raw is one incoming or outgoing control event
type Raw struct {
	Kind Kind
	Midi Midi
	Osc  Osc
}

// MidiEvent builds a MIDI raw event from a status byte (with or without channel)
func MidiEvent(status, channel, data1, data2 uint8) Raw {
	return Raw{Kind: KindMidi, Midi: Midi{
		Channel: channel & 0x0F,
		Status:  status & 0xF0,
		Data1:   data1 & 0x7F,
		Data2:   data2 & 0x7F,
	}}
}

// OscEvent builds an OSC raw event
func OscEvent(address string, args ...Arg) Raw {
	return Raw{Kind: KindOsc, Osc: Osc{Address: address, Args: args}}
}

// OscValue builds an OSC event whose only non-nil argument is v at index,
// without allocating
func OscValue(address string, index int, v Arg) Raw {
	return Raw{Kind: KindOsc, Osc: Osc{Address: address, Sparse: true, Index: index, Value: v}}
}

// Equal compares two events field by field
func (r Raw) Equal(o Raw) bool {
	if r.Kind != o.Kind {
		return false
	}
	if r.Kind == KindMidi {
		return r.Midi == o.Midi
	}
	n := r.Osc.Len()
	if r.Osc.Address != o.Osc.Address || n != o.Osc.Len() {
		return false
	}
	for i := 0; i < n; i++ {
		if r.Osc.At(i) != o.Osc.At(i) {
			return false
		}
	}
	return true
}

func (r Raw) String() string {
	switch r.Kind {
	case KindMidi:
		return fmt.Sprintf("midi[%02X ch%d %d %d]", r.Midi.Status, r.Midi.Channel+1, r.Midi.Data1, r.Midi.Data2)
	case KindOsc:
		parts := make([]string, 0, r.Osc.Len())
		for _, a := range r.Osc.Arguments() {
			switch a.Kind {
			case ArgInt:
				parts = append(parts, fmt.Sprintf("i:%d", a.Int))
			case ArgFloat:
				parts = append(parts, fmt.Sprintf("f:%g", a.Float))
			case ArgBool:
				parts = append(parts, fmt.Sprintf("b:%t", a.Bool))
			case ArgString:
				parts = append(parts, fmt.Sprintf("s:%q", a.String))
			default:
				parts = append(parts, "nil")
			}
		}
		return fmt.Sprintf("osc[%s %s]", r.Osc.Address, strings.Join(parts, " "))
	default:
		return "invalid"
	}
}
