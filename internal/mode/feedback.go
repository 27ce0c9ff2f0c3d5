package mode

import "github.com/PixPMusic/gopher-learn/internal/control"

// Feedback maps a target value back into the source range. Reverse is applied
// symmetrically to Control. It reports false when the feedback formula fails.
func (m *Mode) Feedback(targetValue float64, params []float64) (float64, bool) {
	f := m.TargetInterval.Normalize(targetValue)
	if m.Reverse && m.Kind != KindIncrementalButton {
		f = 1 - f
	}
	out := m.SourceInterval.Denormalize(f)
	if m.FeedbackFormula != nil {
		y, err := m.FeedbackFormula.Eval(out, targetValue, out, params)
		if err != nil {
			return 0, false
		}
		out = y
	}
	return control.ClampUnit(out), true
}

// OffValue is what the source shows when its mapping deactivates
func (m *Mode) OffValue() float64 {
	return m.SourceInterval.Min
}
