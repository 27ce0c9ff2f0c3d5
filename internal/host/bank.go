// Package host is an in-memory parameter bank playing the host role for the
// daemon and for tests. Parameter reads and writes are lock-free so the
// real-time path can use them directly.
package host

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/PixPMusic/gopher-learn/internal/control"
	"github.com/PixPMusic/gopher-learn/internal/target"
)

// Param is one host parameter
type Param struct {
	key   string
	label string
	index int
	min   float64
	max   float64
	steps int

	value     atomic.Uint64
	available atomic.Bool
	writes    atomic.Int64
	bank      *Bank
}

// Key returns the parameter key
func (p *Param) Key() string { return p.key }

// Index returns the position of the parameter in its bank
func (p *Param) Index() int { return p.index }

// CurrentValue implements target.Parameter
func (p *Param) CurrentValue() float64 {
	return math.Float64frombits(p.value.Load())
}

// Write implements target.Parameter. It notifies the bank's subscriber like
// any other change.
func (p *Param) Write(v float64) error {
	if !p.available.Load() {
		return target.ErrTargetUnavailable
	}
	p.store(v)
	p.writes.Add(1)
	return nil
}

// Writes returns how many times the engine wrote the parameter
func (p *Param) Writes() int64 {
	return p.writes.Load()
}

// ValueRange implements target.Parameter
func (p *Param) ValueRange() (float64, float64) { return p.min, p.max }

// StepCount implements target.Parameter
func (p *Param) StepCount() int { return p.steps }

// IsAvailable implements target.Parameter
func (p *Param) IsAvailable() bool { return p.available.Load() }

// Label implements target.Parameter
func (p *Param) Label() string { return p.label }

func (p *Param) store(v float64) {
	v = control.ClampUnit(v)
	p.value.Store(math.Float64bits(v))
	p.bank.notify(target.Change{Kind: target.ChangeValue, Key: p.key, Index: p.index, Value: v, Available: true})
}

// Spec declares a parameter
type Spec struct {
	Key     string
	Label   string
	Min     float64
	Max     float64
	Steps   int
	Initial float64
}

// Bank holds the host parameters
type Bank struct {
	mu     sync.RWMutex
	params []*Param
	byKey  map[string]*Param

	subscriber atomic.Pointer[func(target.Change)]
}

// NewBank creates a bank with the declared parameters
func NewBank(specs ...Spec) (*Bank, error) {
	b := &Bank{byKey: make(map[string]*Param)}
	for _, s := range specs {
		if _, err := b.Add(s); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Add declares another parameter
func (b *Bank) Add(s Spec) (*Param, error) {
	if s.Key == "" {
		return nil, fmt.Errorf("parameter needs a key")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.byKey[s.Key]; dup {
		return nil, fmt.Errorf("duplicate parameter %q", s.Key)
	}
	if s.Max == s.Min {
		s.Min, s.Max = 0, 1
	}
	if s.Label == "" {
		s.Label = s.Key
	}
	p := &Param{key: s.Key, label: s.Label, index: len(b.params), min: s.Min, max: s.Max, steps: s.Steps, bank: b}
	p.value.Store(math.Float64bits(control.ClampUnit(s.Initial)))
	p.available.Store(true)
	b.params = append(b.params, p)
	b.byKey[s.Key] = p
	return p, nil
}

// OnChange registers the single change subscriber, typically Engine.Notify.
// fn must not block.
func (b *Bank) OnChange(fn func(target.Change)) {
	b.subscriber.Store(&fn)
}

func (b *Bank) notify(c target.Change) {
	if fn := b.subscriber.Load(); fn != nil {
		(*fn)(c)
	}
}

// Get returns the parameter with the given key
func (b *Bank) Get(key string) (*Param, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.byKey[key]
	return p, ok
}

// Resolve implements target.Resolver. Unknown keys are an error; parameters
// that exist but are unavailable resolve fine.
func (b *Bank) Resolve(kind target.Kind, key string) (target.Parameter, error) {
	p, ok := b.Get(key)
	if !ok {
		return nil, fmt.Errorf("unknown parameter %q", key)
	}
	if kind == target.KindDiscrete && p.steps <= 0 {
		return nil, fmt.Errorf("parameter %q is not discrete", key)
	}
	return p, nil
}

// Set changes a parameter from outside the engine
func (b *Bank) Set(key string, v float64) error {
	p, ok := b.Get(key)
	if !ok {
		return fmt.Errorf("unknown parameter %q", key)
	}
	p.store(v)
	return nil
}

// SetAvailable makes a parameter appear or disappear
func (b *Bank) SetAvailable(key string, available bool) error {
	p, ok := b.Get(key)
	if !ok {
		return fmt.Errorf("unknown parameter %q", key)
	}
	p.available.Store(available)
	b.notify(target.Change{Kind: target.ChangeAvailability, Key: key, Index: p.index, Value: p.CurrentValue(), Available: available})
	return nil
}

// Values returns a snapshot of all parameter values in index order
func (b *Bank) Values() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]float64, len(b.params))
	for i, p := range b.params {
		out[i] = p.CurrentValue()
	}
	return out
}
