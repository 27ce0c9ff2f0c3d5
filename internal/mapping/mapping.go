// Package mapping holds the compiled, runtime form of a configuration: the
// mappings with their per-mapping state, groups, compartments with their
// virtual control namespaces, and the target bindings they share.
package mapping

import (
	"math"

	"github.com/PixPMusic/gopher-learn/internal/event"
	"github.com/PixPMusic/gopher-learn/internal/formula"
	"github.com/PixPMusic/gopher-learn/internal/mode"
	"github.com/PixPMusic/gopher-learn/internal/source"
	"github.com/PixPMusic/gopher-learn/internal/target"
)

// CompartmentKind discriminates compartments
type CompartmentKind uint8

const (
	CompartmentController CompartmentKind = iota + 1 // physical controls, may emit virtual controls
	CompartmentMain                                  // the actual mappings, may consume virtual controls
)

func (k CompartmentKind) String() string {
	switch k {
	case CompartmentController:
		return "controller"
	case CompartmentMain:
		return "main"
	default:
		return "unknown"
	}
}

// ConditionKind discriminates activation conditions
type ConditionKind uint8

const (
	ConditionAlways ConditionKind = iota
	ConditionModifier
	ConditionBank
	ConditionExpression
)

// Modifier requires a host parameter to be on (> 0) or off
type Modifier struct {
	Param int
	On    bool
}

// Condition is an activation predicate over host parameter values
type Condition struct {
	Kind      ConditionKind
	Modifiers []Modifier
	BankParam int
	Bank      int
	Expr      *formula.Condition
}

// Holds evaluates the condition. Missing parameters read as 0; an expression
// that fails to evaluate does not hold.
func (c *Condition) Holds(params []float64) bool {
	switch c.Kind {
	case ConditionModifier:
		for _, m := range c.Modifiers {
			if (param(params, m.Param) > 0) != m.On {
				return false
			}
		}
		return true
	case ConditionBank:
		return int(math.Round(param(params, c.BankParam)*99)) == c.Bank
	case ConditionExpression:
		ok, err := c.Expr.Holds(params)
		return err == nil && ok
	default:
		return true
	}
}

func param(params []float64, i int) float64 {
	if i < 0 || i >= len(params) {
		return 0
	}
	return params[i]
}

// Group is a named subset of mappings sharing switches and a condition
type Group struct {
	Key             string
	Name            string
	Enabled         bool
	ControlEnabled  bool
	FeedbackEnabled bool
	Condition       Condition
}

// Mapping binds one source to one target through one mode. The exported
// configuration fields are immutable once the plan is built; the runtime
// fields belong to the real-time path.
type Mapping struct {
	Key             string
	Name            string
	Compartment     CompartmentKind
	Source          source.Source
	Mode            mode.Mode
	Target          target.Target
	Binding         int // index into Plan.Bindings, -1 for virtual targets
	Group           int // index into the compartment's groups, -1 if ungrouped
	Enabled         bool
	ControlEnabled  bool
	FeedbackEnabled bool
	Condition       Condition

	State     mode.State
	Assembler source.Assembler
	// Inert is set after a write failed because the target was unavailable
	Inert bool
	// Active caches the combined activation of mapping and group conditions
	Active bool
	// LastControl is the engine block in which the mapping last received input
	LastControl uint64

	group         *Group
	lastFeedback  [maxFeedbackEvents]event.Raw
	feedbackCount int
}

// maxFeedbackEvents is the longest event sequence a source encodes to (RPN
// select plus two data bytes is four)
const maxFeedbackEvents = 4

// Reset returns the runtime state to what a freshly activated mapping has
func (m *Mapping) Reset() {
	m.State.Reset()
	m.Assembler.Reset()
	m.feedbackCount = 0
}

// SameFeedback reports whether evs equals the last feedback sent for this mapping
func (m *Mapping) SameFeedback(evs []event.Raw) bool {
	if len(evs) != m.feedbackCount {
		return false
	}
	for i := range evs {
		if !evs[i].Equal(m.lastFeedback[i]) {
			return false
		}
	}
	return true
}

// RememberFeedback records evs as the last feedback sent
func (m *Mapping) RememberFeedback(evs []event.Raw) {
	m.feedbackCount = copy(m.lastFeedback[:], evs)
}

// Activation evaluates the enabled switches and activation conditions of the
// mapping and its group
func (m *Mapping) Activation(params []float64) bool {
	if !m.Enabled {
		return false
	}
	if g := m.group; g != nil && (!g.Enabled || !g.Condition.Holds(params)) {
		return false
	}
	return m.Condition.Holds(params)
}

// Controllable reports whether control input is processed by the mapping
func (m *Mapping) Controllable() bool {
	return m.Active && !m.Inert && m.ControlEnabled && (m.group == nil || m.group.ControlEnabled)
}

// Feedbackable reports whether the mapping sends feedback
func (m *Mapping) Feedbackable() bool {
	return m.Active && m.FeedbackEnabled && (m.group == nil || m.group.FeedbackEnabled)
}

// IsVirtualSource reports whether the mapping is fed by a controller mapping
func (m *Mapping) IsVirtualSource() bool {
	return m.Source.Kind == source.KindVirtual
}

// IsVirtualTarget reports whether the mapping feeds main mappings
func (m *Mapping) IsVirtualTarget() bool {
	return m.Target.Kind == target.KindVirtual
}

// Compartment is an ordered list of mappings with its groups and virtual
// control namespace
type Compartment struct {
	Kind     CompartmentKind
	Mappings []*Mapping
	Groups   []Group
	// Virtual maps a virtual control id to the mappings that consume it
	Virtual map[string][]*Mapping
}

// GroupOf returns the group of m, or nil if ungrouped
func (c *Compartment) GroupOf(m *Mapping) *Group {
	if m.Group < 0 || m.Group >= len(c.Groups) {
		return nil
	}
	return &c.Groups[m.Group]
}

// Plan is a complete compiled configuration. The real-time path swaps plans
// whole.
type Plan struct {
	Generation   uint64
	Compartments []*Compartment
	Bindings     []*target.Binding
	// BindingIndex maps a parameter key to its binding
	BindingIndex map[string]int
	// Targeting lists, per binding, the mappings that write it
	Targeting [][]*Mapping
	// Emitters maps a virtual control id to the controller mappings whose
	// virtual target has that id, for feedback routing
	Emitters map[string][]*Mapping
	// Params is the number of host parameters visible to conditions
	Params int
	// Values holds the host parameter values, Params long. It is filled by
	// the control path before loading and owned by the real-time path after.
	Values []float64
}

// Mappings calls fn for every mapping in dispatch order
func (p *Plan) Mappings(fn func(c *Compartment, m *Mapping)) {
	for _, c := range p.Compartments {
		for _, m := range c.Mappings {
			fn(c, m)
		}
	}
}

// Find returns the mapping with the given key in a compartment of the given kind
func (p *Plan) Find(kind CompartmentKind, key string) *Mapping {
	for _, c := range p.Compartments {
		if c.Kind != kind {
			continue
		}
		for _, m := range c.Mappings {
			if m.Key == key {
				return m
			}
		}
	}
	return nil
}
