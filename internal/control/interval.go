package control

import "math"

// Epsilon is the tolerance used when comparing unit values
const Epsilon = 1e-9

// Interval is a closed sub-range of the unit interval
type Interval struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// FullInterval returns [0,1]
func FullInterval() Interval {
	return Interval{Min: 0, Max: 1}
}

// Span returns Max - Min
func (i Interval) Span() float64 {
	return i.Max - i.Min
}

// Valid reports whether the interval lies within [0,1] and is ordered
func (i Interval) Valid() bool {
	return i.Min >= 0 && i.Max <= 1 && i.Min <= i.Max &&
		!math.IsNaN(i.Min) && !math.IsNaN(i.Max)
}

// Contains reports whether v lies within the interval (inclusive)
func (i Interval) Contains(v float64) bool {
	return v >= i.Min-Epsilon && v <= i.Max+Epsilon
}

// Clamp limits v to the interval
func (i Interval) Clamp(v float64) float64 {
	if v < i.Min {
		return i.Min
	}
	if v > i.Max {
		return i.Max
	}
	return v
}

// Normalize maps v from this interval onto [0,1]. A zero-width interval
// maps everything to 0 (or 1 when v is at or above it).
func (i Interval) Normalize(v float64) float64 {
	span := i.Span()
	if span < Epsilon {
		if v >= i.Max {
			return 1
		}
		return 0
	}
	return ClampUnit((v - i.Min) / span)
}

// Denormalize maps a fraction in [0,1] onto this interval
func (i Interval) Denormalize(f float64) float64 {
	return i.Min + ClampUnit(f)*i.Span()
}

// ClampUnit limits v to [0,1]; NaN becomes 0
func ClampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Equal reports whether two unit values are equal within Epsilon
func Equal(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// RoundToStep snaps v to the nearest multiple of 1/steps. steps <= 0 leaves v untouched.
func RoundToStep(v float64, steps int) float64 {
	if steps <= 0 {
		return v
	}
	return math.Round(v*float64(steps)) / float64(steps)
}
