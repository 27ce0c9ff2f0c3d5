// Package source decodes raw MIDI and OSC events into control values and
// encodes feedback values back into raw events.
package source

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PixPMusic/gopher-learn/internal/event"
)

// Any matches every channel or number
const Any = -1

// Kind discriminates source variants
type Kind uint8

const (
	KindMidiControlChange Kind = iota + 1
	KindMidiNoteVelocity
	KindMidiNoteKeyNumber
	KindMidiPolyPressure
	KindMidiChannelPressure
	KindMidiProgramChange
	KindMidiPitchBend
	KindMidiParameterNumber
	KindOsc
	KindVirtual
)

var kindNames = map[Kind]string{
	KindMidiControlChange:   "cc",
	KindMidiNoteVelocity:    "note_velocity",
	KindMidiNoteKeyNumber:   "note_key",
	KindMidiPolyPressure:    "poly_pressure",
	KindMidiChannelPressure: "channel_pressure",
	KindMidiProgramChange:   "program_change",
	KindMidiPitchBend:       "pitch_bend",
	KindMidiParameterNumber: "parameter_number",
	KindOsc:                 "osc",
	KindVirtual:             "virtual",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind converts a configuration name into a Kind
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown source kind: %q", name)
}

// IsMidi reports whether the kind listens to MIDI events
func (k Kind) IsMidi() bool {
	return k >= KindMidiControlChange && k <= KindMidiParameterNumber
}

// Character describes how 7-bit values of a control are interpreted
type Character uint8

const (
	CharacterRange     Character = iota // Absolute 0-127
	CharacterButton                     // >0 is pressed
	CharacterRelative1                  // 127 = -1, 1 = +1
	CharacterRelative2                  // 63 = -1, 65 = +1
	CharacterRelative3                  // 65 = -1, 1 = +1
)

var characterNames = map[Character]string{
	CharacterRange:     "range",
	CharacterButton:    "button",
	CharacterRelative1: "relative1",
	CharacterRelative2: "relative2",
	CharacterRelative3: "relative3",
}

func (c Character) String() string {
	if name, ok := characterNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCharacter converts a configuration name into a Character. Empty means range.
func ParseCharacter(name string) (Character, error) {
	if name == "" {
		return CharacterRange, nil
	}
	for c, n := range characterNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown source character: %q", name)
}

// IsRelative reports whether the character produces deltas
func (c Character) IsRelative() bool {
	return c == CharacterRelative1 || c == CharacterRelative2 || c == CharacterRelative3
}

// FeedbackBehavior controls echo feedback for a source
type FeedbackBehavior uint8

const (
	FeedbackNormal           FeedbackBehavior = iota // suppress echo of own writes
	FeedbackPreventEcho                              // same as normal, stated explicitly
	FeedbackSendAfterControl                         // echo back after every control, even without a change
)

// ParseFeedbackBehavior converts a configuration name. Empty means normal.
func ParseFeedbackBehavior(name string) (FeedbackBehavior, error) {
	switch name {
	case "", "normal":
		return FeedbackNormal, nil
	case "prevent_echo":
		return FeedbackPreventEcho, nil
	case "send_after_control":
		return FeedbackSendAfterControl, nil
	default:
		return 0, fmt.Errorf("unknown feedback behavior: %q", name)
	}
}

// Source is one control input pattern. Only the fields relevant to Kind are used.
type Source struct {
	Kind      Kind
	Character Character
	Feedback  FeedbackBehavior

	// MIDI
	Channel     int // 0-15 or Any
	Number      int // controller, key or parameter number; Any where allowed
	FourteenBit bool
	Registered  bool // RPN instead of NRPN

	// OSC
	Address  string
	ArgIndex int
	RangeMin float64
	RangeMax float64
	Relative bool

	// Virtual
	VirtualID string
}

var (
	// ErrInvalidSource is returned by Validate
	ErrInvalidSource = errors.New("invalid source")
)

// Validate checks the configuration of the source
func (s *Source) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidSource, fmt.Sprintf(format, args...))
	}
	if s.Kind.IsMidi() {
		if s.Channel < Any || s.Channel > 15 {
			return invalid("channel %d out of range", s.Channel)
		}
	}
	switch s.Kind {
	case KindMidiControlChange:
		if s.FourteenBit {
			if s.Number < 0 || s.Number > 31 {
				return invalid("14-bit controller number must be 0-31, got %d", s.Number)
			}
			if s.Character != CharacterRange {
				return invalid("14-bit controllers only support the range character")
			}
		} else if s.Number < Any || s.Number > 127 {
			return invalid("controller number %d out of range", s.Number)
		}
	case KindMidiNoteVelocity, KindMidiPolyPressure:
		if s.Number < Any || s.Number > 127 {
			return invalid("key number %d out of range", s.Number)
		}
	case KindMidiNoteKeyNumber, KindMidiChannelPressure, KindMidiProgramChange, KindMidiPitchBend:
	case KindMidiParameterNumber:
		if s.Number < 0 || s.Number > 16383 {
			return invalid("parameter number must be 0-16383, got %d", s.Number)
		}
	case KindOsc:
		if !strings.HasPrefix(s.Address, "/") {
			return invalid("OSC address %q must start with /", s.Address)
		}
		if s.ArgIndex < 0 {
			return invalid("negative OSC argument index")
		}
		if s.RangeMin == s.RangeMax {
			return invalid("OSC value range is empty")
		}
	case KindVirtual:
		if s.VirtualID == "" {
			return invalid("virtual source needs an id")
		}
	default:
		return invalid("unknown kind %d", s.Kind)
	}
	return nil
}

// Matches reports whether the event is addressed to this source, regardless
// of whether it completes a value. For parameter number sources the
// parameter selection always matches; data messages match only while asm
// has this source's parameter selected. asm may be nil for other kinds.
func (s *Source) Matches(ev event.Raw, asm *Assembler) bool {
	switch s.Kind {
	case KindOsc:
		return ev.Kind == event.KindOsc && MatchAddress(s.Address, ev.Osc.Address)
	case KindVirtual:
		return false
	}
	if ev.Kind != event.KindMidi || !s.channelMatches(ev.Midi.Channel) {
		return false
	}
	m := ev.Midi
	switch s.Kind {
	case KindMidiControlChange:
		if m.Status != event.StatusControlChange {
			return false
		}
		if s.FourteenBit {
			return int(m.Data1) == s.Number || int(m.Data1) == s.Number+32
		}
		return s.numberMatches(m.Data1)
	case KindMidiNoteVelocity:
		return (m.Status == event.StatusNoteOn || m.Status == event.StatusNoteOff) && s.numberMatches(m.Data1)
	case KindMidiNoteKeyNumber:
		return m.Status == event.StatusNoteOn
	case KindMidiPolyPressure:
		return m.Status == event.StatusPolyPressure && s.numberMatches(m.Data1)
	case KindMidiChannelPressure:
		return m.Status == event.StatusChannelPressure
	case KindMidiProgramChange:
		return m.Status == event.StatusProgramChange
	case KindMidiPitchBend:
		return m.Status == event.StatusPitchBend
	case KindMidiParameterNumber:
		if m.Status != event.StatusControlChange {
			return false
		}
		switch m.Data1 {
		case ccNRPNMSB, ccNRPNLSB, ccRPNMSB, ccRPNLSB:
			return true
		case ccDataEntryMSB, ccDataEntryLSB, ccDataIncrement, ccDataDecrement:
			return asm != nil && s.selected(asm)
		}
	}
	return false
}

func (s *Source) selected(asm *Assembler) bool {
	number, registered, ok := asm.parameter()
	return ok && number == s.Number && registered == s.Registered
}

// SupportsFeedback reports whether Encode can produce events for this source
func (s *Source) SupportsFeedback() bool {
	switch s.Kind {
	case KindMidiControlChange, KindMidiNoteVelocity, KindMidiPolyPressure:
		return s.Number != Any
	case KindMidiChannelPressure, KindMidiProgramChange, KindMidiPitchBend, KindMidiParameterNumber:
		return true
	case KindOsc:
		return !strings.ContainsAny(s.Address, "*?")
	default:
		return false
	}
}

func (s *Source) channelMatches(ch uint8) bool {
	return s.Channel == Any || int(ch) == s.Channel
}

func (s *Source) numberMatches(n uint8) bool {
	return s.Number == Any || int(n) == s.Number
}

func (s *Source) String() string {
	switch s.Kind {
	case KindOsc:
		return fmt.Sprintf("osc %s[%d]", s.Address, s.ArgIndex)
	case KindVirtual:
		return "virtual " + s.VirtualID
	}
	ch := "any"
	if s.Channel != Any {
		ch = fmt.Sprintf("%d", s.Channel+1)
	}
	num := "any"
	if s.Number != Any {
		num = fmt.Sprintf("%d", s.Number)
	}
	return fmt.Sprintf("%s ch=%s n=%s", s.Kind, ch, num)
}
