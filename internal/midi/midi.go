// Package midi connects controllers through gomidi: port discovery,
// listening into raw events and sending feedback through device profiles.
package midi

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register rtmidi driver

	"github.com/PixPMusic/gopher-learn/internal/event"
)

// Manager handles MIDI device discovery and management
type Manager struct {
	mu      sync.Mutex
	senders map[string]func(midi.Message) error
}

// NewManager creates a new MIDI manager
func NewManager() *Manager {
	return &Manager{senders: make(map[string]func(midi.Message) error)}
}

// Close cleans up the MIDI driver
func (m *Manager) Close() {
	midi.CloseDriver()
}

// ListInPorts returns the names of available MIDI input ports
func (m *Manager) ListInPorts() []string {
	ins := midi.GetInPorts()
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names
}

// ListOutPorts returns the names of available MIDI output ports
func (m *Manager) ListOutPorts() []string {
	outs := midi.GetOutPorts()
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	return names
}

// GetInPort returns an input port by name
func (m *Manager) GetInPort(name string) (drivers.In, error) {
	for _, in := range midi.GetInPorts() {
		if in.String() == name {
			return in, nil
		}
	}
	return nil, fmt.Errorf("input port not found: %s", name)
}

// GetOutPort returns an output port by name
func (m *Manager) GetOutPort(name string) (drivers.Out, error) {
	for _, out := range midi.GetOutPorts() {
		if out.String() == name {
			return out, nil
		}
	}
	return nil, fmt.Errorf("output port not found: %s", name)
}

// Listen delivers every channel voice message arriving on the input port as
// a raw event. fn runs on the driver's goroutine and must not block.
func (m *Manager) Listen(inPortName string, fn func(event.Raw)) (func(), error) {
	inPort, err := m.GetInPort(inPortName)
	if err != nil {
		return nil, err
	}
	stop, err := midi.ListenTo(inPort, func(msg midi.Message, timestampms int32) {
		if ev, ok := FromMessage(msg); ok {
			fn(ev)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start listening: %w", err)
	}
	return stop, nil
}

// Send sends a message to an output port. Senders are opened once per port.
func (m *Manager) Send(outPortName string, msg midi.Message) error {
	send, err := m.sender(outPortName)
	if err != nil {
		return err
	}
	return send(msg)
}

func (m *Manager) sender(outPortName string) (func(midi.Message) error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if send, ok := m.senders[outPortName]; ok {
		return send, nil
	}
	outPort, err := m.GetOutPort(outPortName)
	if err != nil {
		return nil, err
	}
	send, err := midi.SendTo(outPort)
	if err != nil {
		return nil, fmt.Errorf("failed to create sender: %w", err)
	}
	m.senders[outPortName] = send
	return send, nil
}

// Output opens an output port with the profile of a device type
func (m *Manager) Output(outPortName string, deviceType DeviceType) (*Output, error) {
	send, err := m.sender(outPortName)
	if err != nil {
		return nil, err
	}
	return NewOutput(send, NewDevice(deviceType)), nil
}

// Output sends feedback to one controller
type Output struct {
	send   func(midi.Message) error
	device Device
}

// NewOutput wraps a send function with a device profile
func NewOutput(send func(midi.Message) error, device Device) *Output {
	return &Output{send: send, device: device}
}

// Init prepares the controller, e.g. programmer mode on a Launchpad
func (o *Output) Init() error {
	return o.device.Init(o.send)
}

// Reset switches the controller's lights off
func (o *Output) Reset() error {
	return o.device.Reset(o.send)
}

// Feedback sends one feedback event. OSC events are not for this output and
// are ignored.
func (o *Output) Feedback(ev event.Raw) error {
	if ev.Kind != event.KindMidi {
		return nil
	}
	return o.device.Feedback(o.send, ev.Midi)
}
