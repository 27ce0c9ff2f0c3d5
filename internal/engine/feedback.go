package engine

import (
	"github.com/PixPMusic/gopher-learn/internal/mapping"
	"github.com/PixPMusic/gopher-learn/internal/source"
)

// initialFeedback shows the current target value on the source of m
func (e *Engine) initialFeedback(m *mapping.Mapping) {
	if m.Binding < 0 || m.Inert {
		return
	}
	e.feedbackTo(m, e.plan.Bindings[m.Binding].Current(), true)
}

// feedbackTo sends targetValue back to the source of m. force bypasses echo
// prevention and redundancy suppression.
func (e *Engine) feedbackTo(m *mapping.Mapping, targetValue float64, force bool) {
	if !m.Feedbackable() {
		return
	}
	// prevent_echo mutes feedback for the block of the control and the next,
	// when the host's notification of the write usually arrives
	if !force && m.Source.Feedback == source.FeedbackPreventEcho && m.LastControl != 0 && e.block-m.LastControl <= 1 {
		e.stats.FeedbackSuppressed.Add(1)
		return
	}
	v, ok := m.Mode.Feedback(targetValue, e.params)
	if !ok {
		e.stats.FormulaErrors.Add(1)
		return
	}
	e.send(m, v, force)
}

// send encodes a source-range value for m. Mappings with a virtual source
// route it through the controller mappings emitting that virtual control.
func (e *Engine) send(m *mapping.Mapping, v float64, force bool) {
	if !m.IsVirtualSource() {
		e.encode(m, v, force)
		return
	}
	for _, em := range e.plan.Emitters[m.Source.VirtualID] {
		if !em.Feedbackable() {
			continue
		}
		ev, ok := em.Mode.Feedback(v, e.params)
		if !ok {
			e.stats.FormulaErrors.Add(1)
			continue
		}
		e.encode(em, ev, force)
	}
}

func (e *Engine) encode(m *mapping.Mapping, v float64, force bool) {
	if !m.Source.SupportsFeedback() {
		return
	}
	evs := m.Source.Encode(e.scratch[:0], v)
	e.scratch = evs[:0]
	if len(evs) == 0 {
		return
	}
	if !force && m.SameFeedback(evs) {
		e.stats.FeedbackSuppressed.Add(1)
		return
	}
	m.RememberFeedback(evs)
	for _, ev := range evs {
		select {
		case e.feedback <- Feedback{Event: ev, Mapping: m.Key}:
			e.stats.FeedbackSent.Add(1)
		default:
			e.stats.DroppedFeedback.Add(1)
		}
	}
}
