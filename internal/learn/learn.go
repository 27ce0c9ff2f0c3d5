// Package learn captures the source a user just touched, for interactive
// mapping creation. The detector runs on the real-time path next to
// dispatch and never allocates.
package learn

import (
	"time"

	"github.com/PixPMusic/gopher-learn/internal/control"
	"github.com/PixPMusic/gopher-learn/internal/event"
	"github.com/PixPMusic/gopher-learn/internal/source"
)

// Status tells how an arm cycle ended
type Status uint8

const (
	StatusLearned   Status = iota + 1 // an unmatched event was captured
	StatusNoInput                     // the timeout passed without input
	StatusCancelled                   // superseded by another request or cancelled
)

func (s Status) String() string {
	switch s {
	case StatusLearned:
		return "learned"
	case StatusNoInput:
		return "no_input"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Request arms the detector. Timeout 0 waits forever.
type Request struct {
	ID      string
	Timeout time.Duration
}

// Result is produced exactly once per arm cycle
type Result struct {
	RequestID string
	Status    Status
	Source    source.Source
	Value     control.Value
}

// Detector is the Idle/Armed state machine. The zero value is idle.
type Detector struct {
	armed    bool
	req      Request
	deadline time.Duration
}

// Armed reports whether the detector waits for input
func (d *Detector) Armed() bool {
	return d.armed
}

// Arm starts a cycle. Arming while armed ends the previous cycle with a
// cancelled result, which is returned.
func (d *Detector) Arm(req Request, now time.Duration) (Result, bool) {
	prev, cancelled := d.Cancel()
	d.armed = true
	d.req = req
	d.deadline = 0
	if req.Timeout > 0 {
		d.deadline = now + req.Timeout
	}
	return prev, cancelled
}

// Cancel ends the current cycle, if any
func (d *Detector) Cancel() (Result, bool) {
	if !d.armed {
		return Result{}, false
	}
	return d.finish(Result{Status: StatusCancelled}), true
}

// Observe inspects a raw event. matched tells whether any enabled mapping
// listens to it; matched events are never learned. Note releases are
// skipped so that learning a button captures its press.
func (d *Detector) Observe(ev event.Raw, matched bool) (Result, bool) {
	if !d.armed || matched || isRelease(ev) {
		return Result{}, false
	}
	src, ok := source.FromEvent(ev)
	if !ok {
		return Result{}, false
	}
	asm := source.NewAssembler()
	v, _ := src.Decode(ev, &asm, 0)
	return d.finish(Result{Status: StatusLearned, Source: src, Value: v}), true
}

// Tick ends the cycle with a no-input result once the deadline passed
func (d *Detector) Tick(now time.Duration) (Result, bool) {
	if !d.armed || d.deadline == 0 || now < d.deadline {
		return Result{}, false
	}
	return d.finish(Result{Status: StatusNoInput}), true
}

func (d *Detector) finish(r Result) Result {
	r.RequestID = d.req.ID
	d.armed = false
	d.req = Request{}
	d.deadline = 0
	return r
}

func isRelease(ev event.Raw) bool {
	if ev.Kind != event.KindMidi {
		return false
	}
	switch ev.Midi.Status {
	case event.StatusNoteOff:
		return true
	case event.StatusNoteOn:
		return ev.Midi.Data2 == 0
	}
	return false
}
