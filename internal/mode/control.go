package mode

import (
	"time"

	"github.com/PixPMusic/gopher-learn/internal/control"
)

// Reason explains why Control produced no value
type Reason uint8

const (
	ReasonNone          Reason = iota // a value was produced
	ReasonIncompatible                // value kind not consumed by this mode
	ReasonOutOfRange                  // dropped by OutOfRangeIgnore
	ReasonJumpRejected                // jump guard
	ReasonPickupWaiting               // pickup has not caught the target yet
	ReasonInterpolating               // LongTimeNoSee owns the target for now
	ReasonNotTriggered                // no trigger edge for toggle or button
	ReasonPressDuration               // release outside the press-duration interval
	ReasonFormula                     // control formula failed
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonIncompatible:
		return "incompatible"
	case ReasonOutOfRange:
		return "out_of_range"
	case ReasonJumpRejected:
		return "jump_rejected"
	case ReasonPickupWaiting:
		return "pickup_waiting"
	case ReasonInterpolating:
		return "interpolating"
	case ReasonNotTriggered:
		return "not_triggered"
	case ReasonPressDuration:
		return "press_duration"
	case ReasonFormula:
		return "formula"
	default:
		return "unknown"
	}
}

// Outcome is the result of Control. When Ok is false, Reason says why.
type Outcome struct {
	Value  float64
	Ok     bool
	Reason Reason
}

func some(v float64) Outcome {
	return Outcome{Value: v, Ok: true}
}

func none(r Reason) Outcome {
	return Outcome{Reason: r}
}

// Control runs the forward transform of v against the target
func (m *Mode) Control(v control.Value, st *State, tgt Target, now time.Duration) Outcome {
	switch m.Kind {
	case KindAbsolute:
		return m.absolute(v, st, tgt)
	case KindToggle:
		return m.toggle(v, st, tgt, now)
	case KindRelative:
		if v.Kind != control.KindRelative {
			return none(ReasonIncompatible)
		}
		return m.relative(v.Delta, st, tgt, now)
	case KindIncrementalButton:
		if !v.IsAbsolute() {
			return none(ReasonIncompatible)
		}
		if r := m.trigger(v.Unit(), st, now); r != ReasonNone {
			return none(r)
		}
		delta := 1
		if m.Reverse {
			delta = -1
		}
		return m.relative(delta, st, tgt, now)
	}
	return none(ReasonIncompatible)
}

func (m *Mode) absolute(v control.Value, st *State, tgt Target) Outcome {
	if !v.IsAbsolute() {
		return none(ReasonIncompatible)
	}
	in := v.Unit()
	if !m.SourceInterval.Contains(in) {
		switch m.OutOfRange {
		case OutOfRangeIgnore:
			return none(ReasonOutOfRange)
		case OutOfRangeMin:
			in = m.SourceInterval.Min
		default:
			in = m.SourceInterval.Clamp(in)
		}
	}
	f := m.SourceInterval.Normalize(in)
	if m.Reverse {
		f = 1 - f
	}
	out := m.TargetInterval.Denormalize(f)
	if m.ControlFormula != nil {
		y, err := m.ControlFormula.Eval(out, tgt.Current, st.lastOutput, tgt.Params)
		if err != nil {
			return none(ReasonFormula)
		}
		out = control.ClampUnit(y)
	}
	out = m.round(out, tgt)

	if st.takeover {
		switch m.Takeover {
		case TakeoverParallel:
			st.takeover = false
			st.lastOutput = out
			return some(out)
		case TakeoverPickup:
			if !m.pickedUp(out, st, tgt.Current) {
				return none(ReasonPickupWaiting)
			}
			st.takeover = false
		case TakeoverLongTimeNoSee:
			if !st.interpolating {
				st.interpolating = true
				st.interpFrom = tgt.Current
				st.interpStep = 0
			}
			st.interpTo = out
			return none(ReasonInterpolating)
		default:
			st.takeover = false
		}
	}
	if m.Takeover != TakeoverParallel && m.guarded(out, tgt.Current) {
		return none(ReasonJumpRejected)
	}
	st.lastOutput = out
	return some(out)
}

// pickedUp reports whether out landed on or crossed the target value since
// the previous event
func (m *Mode) pickedUp(out float64, st *State, current float64) bool {
	if d := out - current; d <= PickupTolerance && d >= -PickupTolerance {
		return true
	}
	crossed := st.hasPickupPrev && (st.pickupPrev-current)*(out-current) < 0
	st.pickupPrev, st.hasPickupPrev = out, true
	return crossed
}

func (m *Mode) toggle(v control.Value, st *State, tgt Target, now time.Duration) Outcome {
	if !v.IsAbsolute() {
		return none(ReasonIncompatible)
	}
	if r := m.trigger(v.Unit(), st, now); r != ReasonNone {
		return none(r)
	}
	mid := m.TargetInterval.Min + m.TargetInterval.Span()/2
	out := m.TargetInterval.Max
	if tgt.Current >= mid && m.TargetInterval.Span() > control.Epsilon {
		out = m.TargetInterval.Min
	}
	out = m.round(out, tgt)
	st.lastOutput = out
	return some(out)
}

// trigger detects the configured edge of a button-like input. It returns
// ReasonNone when the edge fired.
func (m *Mode) trigger(in float64, st *State, now time.Duration) Reason {
	above := in >= m.Threshold-control.Epsilon
	was := st.above
	st.above = above
	if !m.FireOnRelease {
		if above && !was {
			return ReasonNone
		}
		return ReasonNotTriggered
	}
	if above && !was {
		st.pressStart = now
		return ReasonNotTriggered
	}
	if !above && was {
		if !m.PressDuration.Contains(now - st.pressStart) {
			return ReasonPressDuration
		}
		return ReasonNone
	}
	return ReasonNotTriggered
}

func (m *Mode) relative(delta int, st *State, tgt Target, now time.Duration) Outcome {
	if delta == 0 {
		return none(ReasonNotTriggered)
	}
	if m.Kind == KindRelative && m.Reverse {
		delta = -delta
	}
	n := delta * m.accelerate(delta, st, now)

	var amount float64
	if tgt.StepCount > 0 && (tgt.Discrete || m.Round) {
		amount = float64(n) / float64(tgt.StepCount)
	} else {
		amount = float64(n) * m.StepInterval.Min
		if limit := m.StepInterval.Max; limit >= m.StepInterval.Min {
			if amount > limit {
				amount = limit
			} else if amount < -limit {
				amount = -limit
			}
		}
	}

	lo, hi := m.TargetInterval.Min, m.TargetInterval.Max
	out := tgt.Current + amount
	switch {
	case out > hi+control.Epsilon:
		if m.Rotate {
			out = lo
		} else {
			out = hi
		}
	case out < lo-control.Epsilon:
		if m.Rotate {
			out = hi
		} else {
			out = lo
		}
	}
	out = m.round(m.TargetInterval.Clamp(out), tgt)
	st.lastOutput = out
	return some(out)
}

// accelerate returns the step multiplier for an event in direction delta
func (m *Mode) accelerate(delta int, st *State, now time.Duration) int {
	if m.AccelerationMax <= 1 || m.AccelerationWindow <= 0 {
		return 1
	}
	dir := 1
	if delta < 0 {
		dir = -1
	}
	if st.accelCount > 0 && dir == st.accelDir && now <= st.accelDeadline {
		if st.accelCount < m.AccelerationMax {
			st.accelCount++
		}
	} else {
		st.accelCount = 1
	}
	st.accelDir = dir
	st.accelDeadline = now + m.AccelerationWindow
	return st.accelCount
}

func (m *Mode) round(v float64, tgt Target) float64 {
	if tgt.StepCount > 0 && (tgt.Discrete || m.Round) {
		return control.RoundToStep(v, tgt.StepCount)
	}
	return v
}
