package mode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PixPMusic/gopher-learn/internal/control"
	"github.com/PixPMusic/gopher-learn/internal/formula"
)

func newState() *State {
	st := &State{}
	st.Reset()
	return st
}

func TestAbsoluteRemap(t *testing.T) {
	m := Default()
	m.TargetInterval = control.Interval{Min: 0.2, Max: 0.6}
	require.NoError(t, m.Validate())

	for _, f := range []float64{0, 0.25, 0.5, 1} {
		st := newState()
		out := m.Control(control.Absolute(f), st, Target{}, 0)
		require.True(t, out.Ok)
		assert.InDelta(t, 0.2+f*0.4, out.Value, 1e-12, "f=%g", f)
	}

	m.Reverse = true
	for _, f := range []float64{0, 0.25, 0.5, 1} {
		st := newState()
		out := m.Control(control.Absolute(f), st, Target{}, 0)
		require.True(t, out.Ok)
		assert.InDelta(t, 0.6-f*0.4, out.Value, 1e-12, "reverse f=%g", f)
	}
}

func TestAbsoluteSourceIntervalAndOutOfRange(t *testing.T) {
	m := Default()
	m.SourceInterval = control.Interval{Min: 0.25, Max: 0.75}

	st := newState()
	out := m.Control(control.Absolute(0.5), st, Target{}, 0)
	require.True(t, out.Ok)
	assert.InDelta(t, 0.5, out.Value, 1e-12)

	out = m.Control(control.Absolute(0.9), st, Target{}, 0)
	require.True(t, out.Ok)
	assert.InDelta(t, 1, out.Value, 1e-12, "min_or_max clamps to the upper bound")

	m.OutOfRange = OutOfRangeMin
	out = m.Control(control.Absolute(0.9), st, Target{}, 0)
	require.True(t, out.Ok)
	assert.InDelta(t, 0, out.Value, 1e-12)

	m.OutOfRange = OutOfRangeIgnore
	out = m.Control(control.Absolute(0.9), st, Target{}, 0)
	assert.False(t, out.Ok)
	assert.Equal(t, ReasonOutOfRange, out.Reason)
}

func TestAbsoluteDiscreteTargetRounds(t *testing.T) {
	m := Default()
	st := newState()
	out := m.Control(control.Discrete(70, 127), st, Target{StepCount: 4, Discrete: true}, 0)
	require.True(t, out.Ok)
	assert.InDelta(t, 0.5, out.Value, 1e-12)
}

func TestJumpGuard(t *testing.T) {
	m := Default()
	m.MaxJump = 0.2
	tgt := Target{Current: 0.1}

	st := newState()
	out := m.Control(control.Absolute(0.9), st, tgt, 0)
	assert.False(t, out.Ok)
	assert.Equal(t, ReasonJumpRejected, out.Reason)

	out = m.Control(control.Absolute(0.25), st, tgt, 0)
	require.True(t, out.Ok)
	assert.InDelta(t, 0.25, out.Value, 1e-12)

	m.Takeover = TakeoverParallel
	st = newState()
	out = m.Control(control.Absolute(0.9), st, tgt, 0)
	assert.True(t, out.Ok, "parallel ignores the guard")
}

func TestPickupTakeover(t *testing.T) {
	m := Default()
	m.Takeover = TakeoverPickup
	st := newState()
	tgt := Target{Current: 0.5}

	for _, v := range []float64{0.1, 0.2, 0.3} {
		out := m.Control(control.Absolute(v), st, tgt, 0)
		assert.False(t, out.Ok, "below target: %g", v)
		assert.Equal(t, ReasonPickupWaiting, out.Reason)
	}

	out := m.Control(control.Absolute(0.6), st, tgt, 0)
	require.True(t, out.Ok, "crossing picks up")
	assert.InDelta(t, 0.6, out.Value, 1e-12)

	tgt.Current = 0.6
	out = m.Control(control.Absolute(0.2), st, tgt, 0)
	require.True(t, out.Ok, "tracks exactly once picked up")
	assert.InDelta(t, 0.2, out.Value, 1e-12)

	t.Run("from above", func(t *testing.T) {
		st := newState()
		tgt := Target{Current: 0.5}
		assert.False(t, m.Control(control.Absolute(0.9), st, tgt, 0).Ok)
		assert.False(t, m.Control(control.Absolute(0.7), st, tgt, 0).Ok)
		out := m.Control(control.Absolute(0.45), st, tgt, 0)
		require.True(t, out.Ok)
		assert.InDelta(t, 0.45, out.Value, 1e-12)
	})

	t.Run("landing on the target", func(t *testing.T) {
		st := newState()
		out := m.Control(control.Absolute(0.5), st, Target{Current: 0.5}, 0)
		assert.True(t, out.Ok)
	})

	t.Run("external change re-arms", func(t *testing.T) {
		st := newState()
		require.True(t, m.Control(control.Absolute(0.5), st, Target{Current: 0.5}, 0).Ok)
		st.Invalidate()
		out := m.Control(control.Absolute(0.55), st, Target{Current: 0.9}, 0)
		assert.False(t, out.Ok)
		assert.Equal(t, ReasonPickupWaiting, out.Reason)
	})
}

func TestLongTimeNoSeeInterpolates(t *testing.T) {
	m := Default()
	m.Takeover = TakeoverLongTimeNoSee
	m.TakeoverBlocks = 4
	st := newState()

	out := m.Control(control.Absolute(1), st, Target{Current: 0.2}, 0)
	assert.False(t, out.Ok)
	assert.Equal(t, ReasonInterpolating, out.Reason)
	require.True(t, st.Interpolating())

	var got []float64
	for i := 1; i <= 6; i++ {
		if v, ok := m.Tick(st, time.Duration(i)*time.Millisecond); ok {
			got = append(got, v)
		}
	}
	require.Len(t, got, 4)
	assert.InDelta(t, 0.4, got[0], 1e-12)
	assert.InDelta(t, 0.6, got[1], 1e-12)
	assert.InDelta(t, 0.8, got[2], 1e-12)
	assert.InDelta(t, 1.0, got[3], 1e-12)
	assert.False(t, st.Interpolating())

	out = m.Control(control.Absolute(0.7), st, Target{Current: 1}, 0)
	require.True(t, out.Ok, "direct tracking after takeover")
	assert.InDelta(t, 0.7, out.Value, 1e-12)
}

func TestToggleIsIdempotentPair(t *testing.T) {
	m := Default()
	m.Kind = KindToggle
	st := newState()
	tgt := Target{Current: 0}

	press := func() Outcome {
		out := m.Control(control.Absolute(1), st, tgt, 0)
		m.Control(control.Absolute(0), st, tgt, 0)
		return out
	}

	out := press()
	require.True(t, out.Ok)
	assert.Equal(t, 1.0, out.Value)
	tgt.Current = out.Value

	out = press()
	require.True(t, out.Ok)
	assert.Equal(t, 0.0, out.Value)
}

func TestToggleFireOnRelease(t *testing.T) {
	m := Default()
	m.Kind = KindToggle
	m.FireOnRelease = true
	m.PressDuration = DurationInterval{Max: 500 * time.Millisecond}
	st := newState()

	out := m.Control(control.Absolute(1), st, Target{}, 0)
	assert.False(t, out.Ok)
	out = m.Control(control.Absolute(0), st, Target{}, 100*time.Millisecond)
	require.True(t, out.Ok)
	assert.Equal(t, 1.0, out.Value)

	m.Control(control.Absolute(1), st, Target{Current: 1}, time.Second)
	out = m.Control(control.Absolute(0), st, Target{Current: 1}, 2*time.Second)
	assert.False(t, out.Ok)
	assert.Equal(t, ReasonPressDuration, out.Reason)
}

// apply feeds outcomes back into the target the way the engine does
func apply(t *testing.T, m Mode, st *State, tgt *Target, values ...control.Value) {
	t.Helper()
	for _, v := range values {
		out := m.Control(v, st, *tgt, 0)
		if out.Ok {
			tgt.Current = out.Value
		}
	}
}

func TestRelativeNetChange(t *testing.T) {
	m := Default()
	m.Kind = KindRelative
	m.StepInterval = control.Interval{Min: 0.05, Max: 0.05}
	require.NoError(t, m.Validate())

	st := newState()
	tgt := &Target{Current: 0.3}
	apply(t, m, st, tgt, control.Relative(1), control.Relative(1), control.Relative(-1))
	assert.InDelta(t, 0.35, tgt.Current, 1e-12)

	tgt.Current = 0.98
	apply(t, m, st, tgt, control.Relative(1), control.Relative(1), control.Relative(-1))
	assert.InDelta(t, 0.95, tgt.Current, 1e-12, "clamped at max before stepping back")
}

func TestRelativeDefaultScalesWithDelta(t *testing.T) {
	m := Default()
	m.Kind = KindRelative
	require.NoError(t, m.Validate())

	st := newState()
	out := m.Control(control.Relative(5), st, Target{Current: 0.5}, 0)
	require.True(t, out.Ok)
	assert.InDelta(t, 0.55, out.Value, 1e-12)

	out = m.Control(control.Relative(-20), st, Target{Current: 0.5}, time.Second)
	require.True(t, out.Ok)
	assert.InDelta(t, 0.45, out.Value, 1e-12, "capped at the maximum step")
}

func TestRelativeDoesNotDrift(t *testing.T) {
	m := Default()
	m.Kind = KindRelative
	m.StepInterval = control.Interval{Min: 0.1, Max: 0.1}
	st := newState()
	tgt := &Target{Current: 0}
	for i := 0; i < 1000; i++ {
		apply(t, m, st, tgt, control.Relative(1), control.Relative(-1))
	}
	assert.InDelta(t, 0, tgt.Current, 1e-9)
}

func TestRelativeRotateAndDiscrete(t *testing.T) {
	m := Default()
	m.Kind = KindRelative
	m.Rotate = true
	st := newState()

	out := m.Control(control.Relative(1), st, Target{Current: 1}, 0)
	require.True(t, out.Ok)
	assert.Equal(t, 0.0, out.Value)
	out = m.Control(control.Relative(-1), st, Target{Current: 0}, 0)
	require.True(t, out.Ok)
	assert.Equal(t, 1.0, out.Value)

	m.Rotate = false
	out = m.Control(control.Relative(2), st, Target{Current: 0.25, StepCount: 4, Discrete: true}, 0)
	require.True(t, out.Ok)
	assert.InDelta(t, 0.75, out.Value, 1e-12)
}

func TestRelativeAcceleration(t *testing.T) {
	m := Default()
	m.Kind = KindRelative
	m.StepInterval = control.Interval{Min: 0.01, Max: 1}
	m.AccelerationWindow = 50 * time.Millisecond
	m.AccelerationMax = 3
	require.NoError(t, m.Validate())
	st := newState()

	steps := func(now time.Duration) float64 {
		out := m.Control(control.Relative(1), st, Target{Current: 0.5}, now)
		require.True(t, out.Ok)
		return out.Value - 0.5
	}
	assert.InDelta(t, 0.01, steps(0), 1e-12)
	assert.InDelta(t, 0.02, steps(10*time.Millisecond), 1e-12)
	assert.InDelta(t, 0.03, steps(20*time.Millisecond), 1e-12)
	assert.InDelta(t, 0.03, steps(30*time.Millisecond), 1e-12, "capped")

	m.Tick(st, time.Second)
	assert.InDelta(t, 0.01, steps(time.Second+time.Millisecond), 1e-12, "decayed on tick")
}

func TestIncrementalButton(t *testing.T) {
	m := Default()
	m.Kind = KindIncrementalButton
	m.StepInterval = control.Interval{Min: 0.1, Max: 0.1}
	st := newState()
	tgt := &Target{Current: 0.5}

	apply(t, m, st, tgt, control.Absolute(1), control.Absolute(0), control.Absolute(1), control.Absolute(0))
	assert.InDelta(t, 0.7, tgt.Current, 1e-12)

	m.Reverse = true
	apply(t, m, st, tgt, control.Absolute(1), control.Absolute(0))
	assert.InDelta(t, 0.6, tgt.Current, 1e-12)

	out := m.Control(control.Relative(1), st, *tgt, 0)
	assert.Equal(t, ReasonIncompatible, out.Reason)
}

func TestFeedbackInverse(t *testing.T) {
	m := Default()
	m.SourceInterval = control.Interval{Min: 0, Max: 0.5}
	m.TargetInterval = control.Interval{Min: 0.5, Max: 1}

	v, ok := m.Feedback(0.75, nil)
	require.True(t, ok)
	assert.InDelta(t, 0.25, v, 1e-12)

	m.Reverse = true
	v, ok = m.Feedback(0.75, nil)
	require.True(t, ok)
	assert.InDelta(t, 0.25, v, 1e-12)
	v, ok = m.Feedback(1, nil)
	require.True(t, ok)
	assert.InDelta(t, 0, v, 1e-12)

	st := newState()
	out := m.Control(control.Absolute(0.1), st, Target{}, 0)
	require.True(t, out.Ok)
	back, ok := m.Feedback(out.Value, nil)
	require.True(t, ok)
	assert.InDelta(t, 0.1, back, 1e-12, "feedback inverts control")
}

func TestFormulas(t *testing.T) {
	m := Default()
	var err error
	m.ControlFormula, err = formula.Compile("x * x")
	require.NoError(t, err)
	m.FeedbackFormula, err = formula.Compile("x / 0")
	require.NoError(t, err)

	st := newState()
	out := m.Control(control.Absolute(0.5), st, Target{}, 0)
	require.True(t, out.Ok)
	assert.InDelta(t, 0.25, out.Value, 1e-12)

	_, ok := m.Feedback(0.5, nil)
	assert.False(t, ok)

	m.ControlFormula, err = formula.Compile("p[5]")
	require.NoError(t, err)
	out = m.Control(control.Absolute(0.5), st, Target{}, 0)
	assert.False(t, out.Ok)
	assert.Equal(t, ReasonFormula, out.Reason)
}

func TestValidate(t *testing.T) {
	bad := map[string]func(*Mode){
		"kind":            func(m *Mode) { m.Kind = 0 },
		"target interval": func(m *Mode) { m.TargetInterval = control.Interval{Min: 0.8, Max: 0.2} },
		"source interval": func(m *Mode) { m.SourceInterval = control.Interval{Min: -1, Max: 1} },
		"threshold":       func(m *Mode) { m.Threshold = 0 },
		"max jump":        func(m *Mode) { m.MaxJump = -0.1 },
		"step": func(m *Mode) {
			m.Kind = KindRelative
			m.StepInterval = control.Interval{}
		},
		"acceleration": func(m *Mode) { m.AccelerationMax = 4 },
		"press duration": func(m *Mode) {
			m.PressDuration = DurationInterval{Min: time.Second, Max: time.Millisecond}
		},
	}
	for name, mutate := range bad {
		t.Run(name, func(t *testing.T) {
			m := Default()
			mutate(&m)
			assert.ErrorIs(t, m.Validate(), ErrInvalidConfig)
		})
	}
	m := Default()
	assert.NoError(t, m.Validate())
}
