// Package target adapts host parameters to the mapping engine: the
// collaborator interface, target descriptors and per-parameter bindings that
// track echoes of the engine's own writes.
package target

import (
	"errors"
	"fmt"
)

// Kind discriminates target variants
type Kind uint8

const (
	KindContinuous Kind = iota + 1
	KindDiscrete
	KindToggle
	KindAction
	KindVirtual
)

func (k Kind) String() string {
	switch k {
	case KindContinuous:
		return "continuous"
	case KindDiscrete:
		return "discrete"
	case KindToggle:
		return "toggle"
	case KindAction:
		return "action"
	case KindVirtual:
		return "virtual"
	default:
		return "unknown"
	}
}

// ParseKind converts a configuration name. Empty means continuous.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "", "continuous":
		return KindContinuous, nil
	case "discrete":
		return KindDiscrete, nil
	case "toggle":
		return KindToggle, nil
	case "action":
		return KindAction, nil
	case "virtual":
		return KindVirtual, nil
	default:
		return 0, fmt.Errorf("unknown target kind: %q", name)
	}
}

// Parameter is the host collaborator behind a target. Implementations must
// not block in CurrentValue, Write or IsAvailable unless they also implement
// Deferred.
type Parameter interface {
	// CurrentValue returns the normalized value in [0,1]
	CurrentValue() float64
	// Write sets the normalized value
	Write(v float64) error
	// ValueRange returns the parameter's native range, for display
	ValueRange() (min, max float64)
	// StepCount returns the number of steps of a discrete parameter, 0 if continuous
	StepCount() int
	IsAvailable() bool
	Label() string
}

// Deferred is implemented by parameters whose writes may block. Such writes
// are handed to the control path and applied there one block later.
type Deferred interface {
	WritesBlock() bool
}

// Resolver looks up the parameter behind a target at configuration load
type Resolver interface {
	Resolve(kind Kind, key string) (Parameter, error)
}

// Router sends action targets to one resolver and everything else to another
type Router struct {
	Params  Resolver
	Actions Resolver
}

// Resolve implements Resolver
func (r Router) Resolve(kind Kind, key string) (Parameter, error) {
	if kind == KindAction {
		if r.Actions == nil {
			return nil, fmt.Errorf("no action store for %q", key)
		}
		return r.Actions.Resolve(kind, key)
	}
	if r.Params == nil {
		return nil, fmt.Errorf("no parameter bank for %q", key)
	}
	return r.Params.Resolve(kind, key)
}

var (
	// ErrTargetUnavailable is returned when writing to a parameter that
	// currently does not exist on the host side
	ErrTargetUnavailable = errors.New("target unavailable")
	// ErrInvalidTarget is returned by Validate
	ErrInvalidTarget = errors.New("invalid target")
)

// Target describes what a mapping controls
type Target struct {
	Kind      Kind
	Param     string // host parameter key or action id
	VirtualID string
}

// Validate checks the target descriptor
func (t *Target) Validate() error {
	switch t.Kind {
	case KindContinuous, KindDiscrete, KindToggle, KindAction:
		if t.Param == "" {
			return fmt.Errorf("%w: %s target needs a parameter", ErrInvalidTarget, t.Kind)
		}
	case KindVirtual:
		if t.VirtualID == "" {
			return fmt.Errorf("%w: virtual target needs an id", ErrInvalidTarget)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidTarget, t.Kind)
	}
	return nil
}

// BindingKey identifies the binding shared by all targets on one parameter
func (t *Target) BindingKey() string {
	if t.Kind == KindAction {
		return "action:" + t.Param
	}
	return t.Param
}

func (t *Target) String() string {
	if t.Kind == KindVirtual {
		return "virtual " + t.VirtualID
	}
	return t.Kind.String() + " " + t.Param
}

// ChangeKind discriminates host change notifications
type ChangeKind uint8

const (
	ChangeValue        ChangeKind = iota + 1 // a parameter value changed
	ChangeAvailability                       // a parameter appeared or disappeared
	ChangeStructure                          // parameters may have appeared or disappeared; recheck all
)

// Change is a host notification, delivered to the engine without blocking
type Change struct {
	Kind      ChangeKind
	Key       string
	Index     int // position in the host's parameter list, -1 if unknown
	Value     float64
	Available bool
}
