package engine

import (
	"errors"

	"github.com/PixPMusic/gopher-learn/internal/control"
	"github.com/PixPMusic/gopher-learn/internal/event"
	"github.com/PixPMusic/gopher-learn/internal/mapping"
	"github.com/PixPMusic/gopher-learn/internal/mode"
	"github.com/PixPMusic/gopher-learn/internal/source"
	"github.com/PixPMusic/gopher-learn/internal/target"
)

// dispatch hands ev to every mapping whose source matches, compartments in
// order and mappings in insertion order. It reports whether any active
// mapping listens to ev.
func (e *Engine) dispatch(ev event.Raw) bool {
	if e.plan == nil {
		return false
	}
	matched := false
	for _, c := range e.plan.Compartments {
		for _, m := range c.Mappings {
			if m.IsVirtualSource() || !m.Active || !m.Source.Matches(ev, &m.Assembler) {
				continue
			}
			matched = true
			if !m.Controllable() {
				continue
			}
			v, ok := m.Source.Decode(ev, &m.Assembler, e.now)
			if !ok {
				continue
			}
			e.stats.Matches.Add(1)
			m.LastControl = e.block
			if m.IsVirtualTarget() {
				e.emitVirtual(m, v)
				continue
			}
			e.control(m, v)
		}
	}
	return matched
}

// emitVirtual passes the value of a controller mapping to the main mappings
// listening to its virtual control. Absolute values go through the
// controller mapping's mode; relative values are forwarded as they are.
// Resolution is a single hop: main mappings never have virtual targets.
func (e *Engine) emitVirtual(m *mapping.Mapping, v control.Value) {
	if v.IsAbsolute() {
		out := m.Mode.Control(v, &m.State, mode.Target{Current: m.State.LastOutput(), Params: e.params}, e.now)
		if !out.Ok {
			e.rejected(out.Reason)
			return
		}
		v = control.Absolute(out.Value)
	} else if m.Mode.Reverse {
		v = control.Relative(-v.Delta)
	}
	for _, c := range e.plan.Compartments {
		if c.Kind != mapping.CompartmentMain {
			continue
		}
		for _, vm := range c.Virtual[m.Target.VirtualID] {
			if !vm.Controllable() {
				continue
			}
			vm.LastControl = e.block
			e.control(vm, v)
		}
	}
}

// control runs the mode transform of m and writes the result
func (e *Engine) control(m *mapping.Mapping, v control.Value) {
	b := e.plan.Bindings[m.Binding]
	out := m.Mode.Control(v, &m.State, mode.Target{
		Current:   b.Current(),
		StepCount: b.StepCount(),
		Discrete:  b.Discrete(),
		Params:    e.params,
	}, e.now)
	if !out.Ok {
		e.rejected(out.Reason)
		return
	}
	e.write(m, out.Value)
}

func (e *Engine) rejected(r mode.Reason) {
	switch r {
	case mode.ReasonJumpRejected:
		e.stats.JumpRejected.Add(1)
	case mode.ReasonFormula:
		e.stats.FormulaErrors.Add(1)
	default:
		e.stats.Suppressed.Add(1)
	}
}

// write applies a transformed value to the binding of m and sends the
// resulting feedback
func (e *Engine) write(m *mapping.Mapping, v float64) {
	b := e.plan.Bindings[m.Binding]
	if b.Deferred() {
		select {
		case e.deferred <- DeferredWrite{Generation: e.plan.Generation, Param: b.Param, Value: v, Mapping: m.Key, Target: b.Key}:
			e.stats.DeferredWrites.Add(1)
		default:
			e.stats.DroppedDeferred.Add(1)
		}
		return
	}
	changed, err := b.Write(v, b.Kind == target.KindAction)
	if err != nil {
		e.writeFailed(m, b, err)
		return
	}
	if !changed {
		if m.Source.Feedback == source.FeedbackSendAfterControl {
			e.feedbackTo(m, b.Current(), true)
		}
		return
	}
	e.stats.Writes.Add(1)
	current := b.Current()
	for _, other := range e.plan.Targeting[m.Binding] {
		if other == m {
			if m.Source.Feedback == source.FeedbackSendAfterControl {
				e.feedbackTo(m, current, true)
			}
			continue
		}
		other.State.Invalidate()
		e.feedbackTo(other, current, false)
	}
}

func (e *Engine) writeFailed(m *mapping.Mapping, b *target.Binding, err error) {
	if errors.Is(err, target.ErrTargetUnavailable) {
		e.stats.Unavailable.Add(1)
		if !m.Inert {
			m.Inert = true
			e.report(Report{Kind: ReportUnavailable, Compartment: m.Compartment, Mapping: m.Key, Target: b.Key, Err: err})
		}
		return
	}
	e.report(Report{Kind: ReportWriteFailed, Compartment: m.Compartment, Mapping: m.Key, Target: b.Key, Err: err})
}

// notification handles one host change
func (e *Engine) notification(n Notification) {
	if e.plan == nil {
		return
	}
	switch n.Kind {
	case target.ChangeValue:
		e.paramChanged(n.Index, n.Value)
		bi, ok := e.plan.BindingIndex[n.Key]
		if !ok || e.plan.Bindings[bi].ConsumeEcho(n.Value) {
			return
		}
		e.stats.ExternalChanges.Add(1)
		for _, m := range e.plan.Targeting[bi] {
			m.State.Invalidate()
			e.feedbackTo(m, n.Value, false)
		}
	case target.ChangeAvailability:
		if bi, ok := e.plan.BindingIndex[n.Key]; ok && n.Available {
			e.recoverBinding(bi)
		}
	case target.ChangeStructure:
		for bi, b := range e.plan.Bindings {
			if b.Available() {
				e.recoverBinding(bi)
			}
		}
	}
}

// recoverBinding brings the inert mappings on a binding back
func (e *Engine) recoverBinding(bi int) {
	for _, m := range e.plan.Targeting[bi] {
		if !m.Inert {
			continue
		}
		m.Inert = false
		m.Reset()
		e.report(Report{Kind: ReportRecovered, Compartment: m.Compartment, Mapping: m.Key, Target: e.plan.Bindings[bi].Key})
		if m.Active {
			e.initialFeedback(m)
		}
	}
}

// paramChanged updates the parameter values seen by conditions and formulas
// and re-evaluates activation when one changed
func (e *Engine) paramChanged(i int, v float64) {
	if i < 0 || i >= len(e.params) || e.params[i] == v {
		return
	}
	e.params[i] = v
	for _, c := range e.plan.Compartments {
		for _, m := range c.Mappings {
			active := m.Activation(e.params)
			if active == m.Active {
				continue
			}
			if active {
				m.Active = true
				m.Reset()
				e.initialFeedback(m)
				continue
			}
			if m.Feedbackable() {
				e.send(m, m.Mode.OffValue(), true)
			}
			m.Active = false
			m.Reset()
		}
	}
}
