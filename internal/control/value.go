// Package control holds the protocol-independent representation of "how much"
// a control element was moved, plus the unit-interval helpers the mode engine
// builds on.
package control

import "fmt"

// Kind discriminates the variants of Value
type Kind uint8

const (
	KindAbsoluteContinuous Kind = iota // Fraction in [0,1]
	KindAbsoluteDiscrete               // Actual out of Max
	KindRelative                       // Signed Delta
)

func (k Kind) String() string {
	switch k {
	case KindAbsoluteContinuous:
		return "absolute"
	case KindAbsoluteDiscrete:
		return "discrete"
	case KindRelative:
		return "relative"
	default:
		return "unknown"
	}
}

// Value is a decoded control value. It is created per event and never mutated.
type Value struct {
	Kind     Kind
	Fraction float64
	Actual   int
	Max      int
	Delta    int
}

// Absolute creates a continuous absolute value, clamped to [0,1]
func Absolute(fraction float64) Value {
	return Value{Kind: KindAbsoluteContinuous, Fraction: ClampUnit(fraction)}
}

// Discrete creates a discrete absolute value (e.g. 64 of 127)
func Discrete(actual, max int) Value {
	if max < 1 {
		max = 1
	}
	if actual < 0 {
		actual = 0
	} else if actual > max {
		actual = max
	}
	return Value{Kind: KindAbsoluteDiscrete, Actual: actual, Max: max}
}

// Relative creates a relative (incremental) value
func Relative(delta int) Value {
	return Value{Kind: KindRelative, Delta: delta}
}

// IsAbsolute reports whether the value carries a position rather than a delta
func (v Value) IsAbsolute() bool {
	return v.Kind == KindAbsoluteContinuous || v.Kind == KindAbsoluteDiscrete
}

// Unit returns the value as a fraction in [0,1]. Relative values map to 0.
func (v Value) Unit() float64 {
	switch v.Kind {
	case KindAbsoluteContinuous:
		return v.Fraction
	case KindAbsoluteDiscrete:
		return float64(v.Actual) / float64(v.Max)
	default:
		return 0
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindAbsoluteContinuous:
		return fmt.Sprintf("abs(%.4f)", v.Fraction)
	case KindAbsoluteDiscrete:
		return fmt.Sprintf("abs(%d/%d)", v.Actual, v.Max)
	case KindRelative:
		return fmt.Sprintf("rel(%+d)", v.Delta)
	default:
		return "invalid"
	}
}
