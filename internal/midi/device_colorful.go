package midi

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"

	"github.com/PixPMusic/gopher-learn/internal/event"
)

// ColorfulDevice implements Device for Launchpad Mini Mk3 in programmer mode
type ColorfulDevice struct{}

func (d *ColorfulDevice) Init(send func(midi.Message) error) error {
	// SysEx for programmer mode: 00 20 29 02 0D 0E 01
	sysexContent := []byte{0x00, 0x20, 0x29, 0x02, 0x0D, 0x0E, 0x01}
	if err := send(midi.SysEx(sysexContent)); err != nil {
		return fmt.Errorf("failed to send programmer mode message: %w", err)
	}
	return nil
}

func (d *ColorfulDevice) Reset(send func(midi.Message) error) error {
	// Static color 0 for every valid LED index
	sysexContent := []byte{0x00, 0x20, 0x29, 0x02, 0x0D, 0x03}
	for i := 11; i <= 99; i++ {
		if i%10 >= 1 && i%10 <= 9 {
			sysexContent = append(sysexContent, 0x00, uint8(i), 0x00)
		}
	}
	return send(midi.SysEx(sysexContent))
}

// Feedback colors the LED addressed by a note or CC number. In programmer
// mode the note and CC numbers of the pads are their LED indices (11-99).
func (d *ColorfulDevice) Feedback(send func(midi.Message) error, ev event.Midi) error {
	if (ev.Status == event.StatusNoteOn || ev.Status == event.StatusControlChange) && d.isLED(ev.Data1) {
		return send(d.rgb(ev.Data1, LevelColor(ev.Data2)))
	}
	return send(ToMessage(ev))
}

func (d *ColorfulDevice) isLED(index uint8) bool {
	return index >= 11 && index <= 99 && index%10 >= 1
}

// rgb builds F0 00 20 29 02 0D 03 03 <led> <r> <g> <b> F7
func (d *ColorfulDevice) rgb(ledIndex uint8, color PadColor) midi.Message {
	r := d.scaleColor(color.R)
	g := d.scaleColor(color.G)
	b := d.scaleColor(color.B)
	return midi.SysEx([]byte{
		0x00, 0x20, 0x29, 0x02, 0x0D, 0x03,
		0x03,     // RGB mode
		ledIndex, // LED index
		r & 0x7F,
		g & 0x7F,
		b & 0x7F,
	})
}

// scaleColor applies a power curve so mid-range values stay distinct
func (d *ColorfulDevice) scaleColor(value uint8) uint8 {
	if value == 0 {
		return 0
	}
	f := float64(value) / 127.0
	scaled := f * f * 127.0
	if scaled < 1 {
		scaled = 1 // Ensure non-zero input gives non-zero output
	}
	return uint8(scaled)
}
