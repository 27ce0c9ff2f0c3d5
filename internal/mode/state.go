package mode

import "time"

// Target is what the transform needs to know about the bound parameter at
// the time of the call
type Target struct {
	Current   float64 // current normalized value at full precision
	StepCount int     // number of steps for discrete targets, 0 if continuous
	Discrete  bool
	Params    []float64 // host parameters visible to formulas
}

// State is the per-mapping runtime state of a transform. The zero value is
// not ready for use; call Reset.
type State struct {
	takeover bool // next absolute value needs takeover handling

	pickupPrev    float64
	hasPickupPrev bool

	interpolating bool
	interpFrom    float64
	interpTo      float64
	interpStep    int

	lastOutput float64

	above      bool // last input was at or above the threshold
	pressStart time.Duration

	accelCount    int
	accelDir      int
	accelDeadline time.Duration
}

// Reset returns the state to what a freshly activated mapping has
func (st *State) Reset() {
	*st = State{takeover: true}
}

// Invalidate marks the last known target value as stale after an external
// change so the next absolute value goes through takeover again
func (st *State) Invalidate() {
	st.takeover = true
	st.hasPickupPrev = false
	st.interpolating = false
}

// Interpolating reports whether a LongTimeNoSee takeover is in progress
func (st *State) Interpolating() bool {
	return st.interpolating
}

// LastOutput returns the last value this state produced
func (st *State) LastOutput() float64 {
	return st.lastOutput
}

// Tick advances the timers of the state. It returns a value to write when an
// interpolation step is due.
func (m *Mode) Tick(st *State, now time.Duration) (float64, bool) {
	if st.accelCount > 0 && now > st.accelDeadline {
		st.accelCount = 0
		st.accelDir = 0
	}
	if !st.interpolating {
		return 0, false
	}
	blocks := m.takeoverBlocks()
	st.interpStep++
	v := st.interpFrom + (st.interpTo-st.interpFrom)*float64(st.interpStep)/float64(blocks)
	if st.interpStep >= blocks {
		v = st.interpTo
		st.interpolating = false
		st.takeover = false
	}
	st.lastOutput = v
	return v, true
}
