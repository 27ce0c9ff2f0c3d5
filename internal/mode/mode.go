// Package mode implements the numeric transform between a decoded control
// value and a target's normalized value, in both directions, including
// takeover and guard policies.
//
// Control, Feedback and Tick never allocate or block; timers are deadlines
// on the engine clock that Tick checks.
package mode

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/PixPMusic/gopher-learn/internal/control"
	"github.com/PixPMusic/gopher-learn/internal/formula"
)

// Kind selects the transform
type Kind uint8

const (
	KindAbsolute          Kind = iota + 1 // absolute continuous remap
	KindToggle                            // flip between target min and max
	KindRelative                          // relative steps onto the current value
	KindIncrementalButton                 // button presses become relative steps
)

func (k Kind) String() string {
	switch k {
	case KindAbsolute:
		return "absolute"
	case KindToggle:
		return "toggle"
	case KindRelative:
		return "relative"
	case KindIncrementalButton:
		return "incremental_button"
	default:
		return "unknown"
	}
}

// ParseKind converts a configuration name. Empty means absolute.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "", "absolute":
		return KindAbsolute, nil
	case "toggle":
		return KindToggle, nil
	case "relative":
		return KindRelative, nil
	case "incremental_button":
		return KindIncrementalButton, nil
	default:
		return 0, fmt.Errorf("unknown mode kind: %q", name)
	}
}

// Takeover decides how an absolute control reconciles its position with a
// target value that changed behind its back
type Takeover uint8

const (
	TakeoverOff           Takeover = iota // apply directly, jump guard active
	TakeoverPickup                        // wait until the control crosses the target value
	TakeoverLongTimeNoSee                 // interpolate toward the control over a few blocks
	TakeoverParallel                      // apply directly, no guard
)

func (t Takeover) String() string {
	switch t {
	case TakeoverOff:
		return "off"
	case TakeoverPickup:
		return "pickup"
	case TakeoverLongTimeNoSee:
		return "long_time_no_see"
	case TakeoverParallel:
		return "parallel"
	default:
		return "unknown"
	}
}

// ParseTakeover converts a configuration name. Empty means off.
func ParseTakeover(name string) (Takeover, error) {
	switch name {
	case "", "off":
		return TakeoverOff, nil
	case "pickup":
		return TakeoverPickup, nil
	case "long_time_no_see":
		return TakeoverLongTimeNoSee, nil
	case "parallel":
		return TakeoverParallel, nil
	default:
		return 0, fmt.Errorf("unknown takeover policy: %q", name)
	}
}

// OutOfRange decides what happens to input outside the source interval
type OutOfRange uint8

const (
	OutOfRangeMinOrMax OutOfRange = iota // clamp to the nearest bound
	OutOfRangeMin                        // always use the lower bound
	OutOfRangeIgnore                     // drop the value
)

// ParseOutOfRange converts a configuration name. Empty means min_or_max.
func ParseOutOfRange(name string) (OutOfRange, error) {
	switch name {
	case "", "min_or_max":
		return OutOfRangeMinOrMax, nil
	case "min":
		return OutOfRangeMin, nil
	case "ignore":
		return OutOfRangeIgnore, nil
	default:
		return 0, fmt.Errorf("unknown out-of-range behavior: %q", name)
	}
}

const (
	// DefaultTakeoverBlocks is the LongTimeNoSee interpolation length
	DefaultTakeoverBlocks = 8
	// DefaultThreshold is the toggle and button trigger level
	DefaultThreshold = 0.5
	// DefaultStepSize is the relative step for continuous targets
	DefaultStepSize = 0.01
	// DefaultMaxStep caps the change of one relative event, so a faster
	// turn moves up to five steps
	DefaultMaxStep = 0.05
	// PickupTolerance is how close an absolute control must land to the
	// target value to pick it up without crossing it
	PickupTolerance = 0.5 / 127
)

// DurationInterval bounds a press duration. Max 0 means unbounded.
type DurationInterval struct {
	Min time.Duration
	Max time.Duration
}

// Contains reports whether d lies within the interval
func (i DurationInterval) Contains(d time.Duration) bool {
	return d >= i.Min && (i.Max <= 0 || d <= i.Max)
}

// Mode is the immutable configuration of a transform. Runtime state lives
// in State.
type Mode struct {
	Kind Kind

	SourceInterval control.Interval
	TargetInterval control.Interval

	// StepInterval.Min is the size of one relative step on continuous
	// targets, StepInterval.Max caps the change per event
	StepInterval       control.Interval
	AccelerationWindow time.Duration
	AccelerationMax    int // maximum step multiplier, <= 1 disables

	Takeover       Takeover
	TakeoverBlocks int

	Rotate  bool
	Reverse bool
	// MaxJump >= 1 disables the jump guard
	MaxJump float64

	Threshold     float64
	FireOnRelease bool
	PressDuration DurationInterval

	OutOfRange OutOfRange
	// Round snaps to StepCount even for targets that are not discrete
	Round bool

	ControlFormula  *formula.Program
	FeedbackFormula *formula.Program
}

// Default returns an absolute mode over the full ranges
func Default() Mode {
	return Mode{
		Kind:           KindAbsolute,
		SourceInterval: control.FullInterval(),
		TargetInterval: control.FullInterval(),
		StepInterval:   control.Interval{Min: DefaultStepSize, Max: DefaultMaxStep},
		TakeoverBlocks: DefaultTakeoverBlocks,
		MaxJump:        1,
		Threshold:      DefaultThreshold,
	}
}

var (
	// ErrInvalidConfig is returned by Validate
	ErrInvalidConfig = errors.New("invalid mode configuration")
)

// Validate checks the mode configuration
func (m *Mode) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	switch m.Kind {
	case KindAbsolute, KindToggle, KindRelative, KindIncrementalButton:
	default:
		return invalid("unknown kind %d", m.Kind)
	}
	if !m.SourceInterval.Valid() {
		return invalid("source interval [%g, %g] outside [0,1] or reversed", m.SourceInterval.Min, m.SourceInterval.Max)
	}
	if !m.TargetInterval.Valid() {
		return invalid("target interval [%g, %g] outside [0,1] or reversed", m.TargetInterval.Min, m.TargetInterval.Max)
	}
	if m.isRelative() && (!m.StepInterval.Valid() || m.StepInterval.Min <= 0) {
		return invalid("step interval [%g, %g] must be positive and within [0,1]", m.StepInterval.Min, m.StepInterval.Max)
	}
	if m.AccelerationMax > 1 && m.AccelerationWindow <= 0 {
		return invalid("acceleration needs a window")
	}
	if m.TakeoverBlocks < 0 {
		return invalid("negative takeover block count")
	}
	if math.IsNaN(m.MaxJump) || m.MaxJump < 0 {
		return invalid("max jump must be non-negative")
	}
	if m.Threshold <= 0 || m.Threshold > 1 {
		return invalid("threshold %g must be in (0,1]", m.Threshold)
	}
	if m.PressDuration.Min < 0 || (m.PressDuration.Max > 0 && m.PressDuration.Max < m.PressDuration.Min) {
		return invalid("press duration interval reversed")
	}
	if m.Takeover > TakeoverParallel {
		return invalid("unknown takeover %d", m.Takeover)
	}
	if m.OutOfRange > OutOfRangeIgnore {
		return invalid("unknown out-of-range behavior %d", m.OutOfRange)
	}
	return nil
}

// AcceptsRelative reports whether the transform consumes relative values
func (m *Mode) AcceptsRelative() bool {
	return m.Kind == KindRelative
}

func (m *Mode) isRelative() bool {
	return m.Kind == KindRelative || m.Kind == KindIncrementalButton
}

func (m *Mode) takeoverBlocks() int {
	if m.TakeoverBlocks <= 0 {
		return DefaultTakeoverBlocks
	}
	return m.TakeoverBlocks
}

func (m *Mode) guarded(out, current float64) bool {
	return m.MaxJump < 1 && math.Abs(out-current) > m.MaxJump+control.Epsilon
}
