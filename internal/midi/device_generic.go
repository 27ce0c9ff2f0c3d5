package midi

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/PixPMusic/gopher-learn/internal/event"
)

// GenericDevice sends feedback unchanged and needs no initialization
type GenericDevice struct{}

func (d *GenericDevice) Init(send func(midi.Message) error) error {
	return nil
}

func (d *GenericDevice) Reset(send func(midi.Message) error) error {
	return nil
}

func (d *GenericDevice) Feedback(send func(midi.Message) error, ev event.Midi) error {
	return send(ToMessage(ev))
}
