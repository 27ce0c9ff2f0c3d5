package midi

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"

	"github.com/PixPMusic/gopher-learn/internal/event"
)

// Device renders feedback for one kind of controller
type Device interface {
	// Init sends the commands that put the device into a mode the mappings expect
	Init(send func(midi.Message) error) error

	// Reset switches all lights off, used on shutdown
	Reset(send func(midi.Message) error) error

	// Feedback sends one feedback event in the device's own format
	Feedback(send func(midi.Message) error, ev event.Midi) error
}

// ParseDeviceType converts a configuration name. Empty means generic.
func ParseDeviceType(name string) (DeviceType, error) {
	switch t := DeviceType(name); t {
	case "":
		return DeviceTypeGeneric, nil
	case DeviceTypeClassic, DeviceTypeColorful, DeviceTypeGeneric:
		return t, nil
	default:
		return "", fmt.Errorf("unknown device type: %q", name)
	}
}

// NewDevice returns the profile for a device type. Unknown types get the
// generic profile, which passes feedback through unchanged.
func NewDevice(t DeviceType) Device {
	switch t {
	case DeviceTypeClassic:
		return &ClassicDevice{}
	case DeviceTypeColorful:
		return &ColorfulDevice{}
	default:
		return &GenericDevice{}
	}
}
