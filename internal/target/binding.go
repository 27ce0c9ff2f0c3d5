package target

import "github.com/PixPMusic/gopher-learn/internal/control"

// Binding is the engine's handle on one parameter. All mappings targeting the
// same parameter share a binding; it belongs to the real-time path.
type Binding struct {
	Key   string
	Kind  Kind
	Param Parameter

	deferred bool
	// echoes holds written values whose host notification is still due,
	// oldest first
	echoes  [maxPendingEchoes]float64
	nechoes int
}

// maxPendingEchoes bounds the writes tracked between two notification drains.
// Older entries are forgotten.
const maxPendingEchoes = 16

// NewBinding binds a parameter
func NewBinding(key string, kind Kind, p Parameter) *Binding {
	b := &Binding{Key: key, Kind: kind, Param: p}
	if d, ok := p.(Deferred); ok {
		b.deferred = d.WritesBlock()
	}
	return b
}

// Deferred reports whether writes must go through the control path
func (b *Binding) Deferred() bool {
	return b.deferred
}

// Current returns the parameter's normalized value
func (b *Binding) Current() float64 {
	return b.Param.CurrentValue()
}

// Available reports whether the parameter exists right now
func (b *Binding) Available() bool {
	return b.Param.IsAvailable()
}

// StepCount returns the number of steps writes are rounded to, 0 if continuous
func (b *Binding) StepCount() int {
	if b.Kind == KindToggle {
		return 1
	}
	return b.Param.StepCount()
}

// Discrete reports whether writes are rounded to whole steps
func (b *Binding) Discrete() bool {
	return b.Kind == KindDiscrete || b.Kind == KindToggle
}

// Write sets the parameter to v. Writes that would not change the parameter
// are suppressed unless force is set; changed reports whether a write took
// place. A successful write is remembered as a pending echo.
func (b *Binding) Write(v float64, force bool) (changed bool, err error) {
	if !b.Param.IsAvailable() {
		return false, ErrTargetUnavailable
	}
	v = control.ClampUnit(v)
	if b.Discrete() {
		v = control.RoundToStep(v, b.StepCount())
	}
	if !force && control.Equal(b.Param.CurrentValue(), v) {
		return false, nil
	}
	if err := b.Param.Write(v); err != nil {
		return false, err
	}
	if b.nechoes == maxPendingEchoes {
		copy(b.echoes[:], b.echoes[1:])
		b.nechoes--
	}
	b.echoes[b.nechoes] = v
	b.nechoes++
	return true, nil
}

// ConsumeEcho reports whether a host change notification with value v is the
// echo of one of the engine's writes. The matching echo and every older one
// are consumed.
func (b *Binding) ConsumeEcho(v float64) bool {
	for i := 0; i < b.nechoes; i++ {
		if control.Equal(b.echoes[i], v) {
			n := copy(b.echoes[:], b.echoes[i+1:b.nechoes])
			b.nechoes = n
			return true
		}
	}
	return false
}
