package midi

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"

	"github.com/PixPMusic/gopher-learn/internal/event"
)

// ClassicDevice implements Device for Launchpad S
type ClassicDevice struct{}

func (d *ClassicDevice) Init(send func(midi.Message) error) error {
	// Launchpad S - reset to default state
	// Send reset: B0 00 00 (CC 0 value 0)
	if err := send(midi.ControlChange(0, 0, 0)); err != nil {
		return fmt.Errorf("failed to reset Launchpad S: %w", err)
	}
	return nil
}

func (d *ClassicDevice) Reset(send func(midi.Message) error) error {
	return send(midi.ControlChange(0, 0, 0))
}

// Feedback lights grid pads (notes) and top row buttons (CC 104-111) with a
// level color. Everything else is passed through.
func (d *ClassicDevice) Feedback(send func(midi.Message) error, ev event.Midi) error {
	switch {
	case ev.Status == event.StatusNoteOn && d.isPad(ev.Data1):
		return send(midi.NoteOn(0, ev.Data1, d.velocity(LevelColor(ev.Data2))))
	case ev.Status == event.StatusControlChange && ev.Data1 >= 104 && ev.Data1 <= 111:
		return send(midi.ControlChange(0, ev.Data1, d.velocity(LevelColor(ev.Data2))))
	}
	return send(ToMessage(ev))
}

// isPad reports whether a note addresses the grid or the right column.
// Row 1 = notes 0-8, Row 2 = notes 16-24, etc.
func (d *ClassicDevice) isPad(note uint8) bool {
	return note%16 <= 8 && note/16 < 8
}

// velocity encodes a color in the Launchpad S velocity format:
// bits 5-4 green, bits 3-2 copy and clear flags, bits 1-0 red
func (d *ClassicDevice) velocity(color PadColor) uint8 {
	if color.R < 5 && color.G < 5 && color.B < 5 {
		return 0x0C // flags only, no color = off
	}
	// Blue adds mostly to green, a little to red for brightness
	effectiveR := int(color.R) + int(color.B)/4
	effectiveG := int(color.G) + (int(color.B)*3)/4
	if effectiveR > 127 {
		effectiveR = 127
	}
	if effectiveG > 127 {
		effectiveG = 127
	}
	redLevel := d.colorTo4Level(uint8(effectiveR))
	greenLevel := d.colorTo4Level(uint8(effectiveG))
	return (greenLevel << 4) | 0x0C | redLevel
}

func (d *ClassicDevice) colorTo4Level(value uint8) uint8 {
	if value < 32 {
		return 0
	} else if value < 64 {
		return 1
	} else if value < 96 {
		return 2
	}
	return 3
}
