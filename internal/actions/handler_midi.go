package actions

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
)

// MidiSender sends a message to a named output port. midi.Manager implements it.
type MidiSender interface {
	Send(outPortName string, msg midi.Message) error
}

// MidiHandler handles MIDI message sending
type MidiHandler struct {
	sender MidiSender
}

// MidiActionData structure for JSON storage in Code field
type MidiActionData struct {
	DeviceName string `json:"device_name"` // output port name
	MsgType    string `json:"msg_type"`    // "note_on", "note_off", "cc", "pc", "sysex"
	Channel    int    `json:"channel"`     // 1-16
	Note       int    `json:"note"`        // 0-127
	Velocity   int    `json:"velocity"`    // 0-127 (value for CC)
	Program    int    `json:"program"`     // 0-127
	SysEx      string `json:"sysex"`       // Hex string "F0 01 ... F7"
}

func NewMidiHandler(sender MidiSender) *MidiHandler {
	return &MidiHandler{sender: sender}
}

func (h *MidiHandler) IsSupported() bool {
	return true
}

func (h *MidiHandler) Execute(_ context.Context, code string) (string, error) {
	var data MidiActionData
	if err := json.Unmarshal([]byte(code), &data); err != nil {
		return "", fmt.Errorf("invalid MIDI action data: %v", err)
	}

	if data.DeviceName == "" {
		return "", fmt.Errorf("no device specified")
	}

	// Prepare message
	var msg midi.Message
	channel := uint8(data.Channel - 1) // 0-based
	if channel > 15 {
		channel = 0
	}

	switch data.MsgType {
	case "note_on":
		msg = midi.NoteOn(channel, uint8(data.Note), uint8(data.Velocity))
	case "note_off":
		msg = midi.NoteOff(channel, uint8(data.Note))
	case "cc":
		msg = midi.ControlChange(channel, uint8(data.Note), uint8(data.Velocity)) // reusing Note/Velocity fields for generic Number/Value
	case "pc":
		msg = midi.ProgramChange(channel, uint8(data.Program))
	case "sysex":
		payload, err := parseSysEx(data.SysEx)
		if err != nil {
			return "", err
		}
		msg = midi.SysEx(payload)
	default:
		return "", fmt.Errorf("unknown message type: %s", data.MsgType)
	}

	if h.sender == nil {
		return "", fmt.Errorf("no MIDI output available")
	}
	if err := h.sender.Send(data.DeviceName, msg); err != nil {
		return "", fmt.Errorf("send failed: %w", err)
	}

	return fmt.Sprintf("Sent %s to %s", data.MsgType, data.DeviceName), nil
}

func (h *MidiHandler) Validate(code string) error {
	var data MidiActionData
	if err := json.Unmarshal([]byte(code), &data); err != nil {
		return fmt.Errorf("invalid MIDI data format")
	}
	if data.DeviceName == "" {
		return fmt.Errorf("device required")
	}
	return nil
}

// parseSysEx reads a hex string like "F0 00 20 29 F7". The framing bytes are
// optional.
func parseSysEx(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return nil, fmt.Errorf("invalid sysex: %w", err)
	}
	if len(b) > 0 && b[0] == 0xF0 {
		b = b[1:]
	}
	if len(b) > 0 && b[len(b)-1] == 0xF7 {
		b = b[:len(b)-1]
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("empty sysex")
	}
	for _, c := range b {
		if c > 0x7F {
			return nil, fmt.Errorf("invalid sysex data byte %02X", c)
		}
	}
	return b, nil
}
