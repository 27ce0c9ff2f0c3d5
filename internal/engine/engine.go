// Package engine is the real-time mapping processor. ProcessBlock is called
// once per block by a single goroutine; everything else in the package talks
// to it through bounded channels that neither side ever blocks on.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/PixPMusic/gopher-learn/internal/event"
	"github.com/PixPMusic/gopher-learn/internal/learn"
	"github.com/PixPMusic/gopher-learn/internal/mapping"
	"github.com/PixPMusic/gopher-learn/internal/target"
)

// Notification is a host change notification
type Notification = target.Change

// Feedback is one outgoing event for the physical address of a mapping's source
type Feedback struct {
	Event   event.Raw
	Mapping string
}

// ReportKind discriminates reports
type ReportKind uint8

const (
	ReportPlanApplied ReportKind = iota + 1
	ReportUnavailable            // a mapping went inert
	ReportRecovered              // an inert mapping is back
	ReportWriteFailed
)

func (k ReportKind) String() string {
	switch k {
	case ReportPlanApplied:
		return "plan_applied"
	case ReportUnavailable:
		return "unavailable"
	case ReportRecovered:
		return "recovered"
	case ReportWriteFailed:
		return "write_failed"
	default:
		return "unknown"
	}
}

// Report tells the control path about a state transition on the real-time
// path. Reports are sent once per transition.
type Report struct {
	Kind        ReportKind
	Generation  uint64
	Compartment mapping.CompartmentKind
	Mapping     string
	Target      string
	Err         error
}

// DeferredWrite is a write to a parameter that may block, applied by the
// control path if Generation is still current
type DeferredWrite struct {
	Generation uint64
	Param      target.Parameter
	Value      float64
	Mapping    string
	Target     string
}

// Options sizes the queues. Zero fields take the defaults.
type Options struct {
	EventQueue        int
	NotificationQueue int
	FeedbackQueue     int
	ReportQueue       int
	DeferredQueue     int
}

const (
	defaultEventQueue        = 1024
	defaultNotificationQueue = 1024
	defaultFeedbackQueue     = 1024
	defaultReportQueue       = 256
	defaultDeferredQueue     = 256
	learnQueue               = 4
	scratchEvents            = 8
)

type learnCommand struct {
	req    learn.Request
	cancel bool
}

// Engine owns the active plan and its runtime state
type Engine struct {
	events        chan event.Raw
	plans         chan *mapping.Plan
	notifications chan Notification
	learnCommands chan learnCommand

	feedback     chan Feedback
	reports      chan Report
	deferred     chan DeferredWrite
	learnResults chan learn.Result

	nextGeneration atomic.Uint64
	generation     atomic.Uint64
	stats          Stats

	// real-time state, touched only by ProcessBlock
	plan     *mapping.Plan
	params   []float64
	detector learn.Detector
	now      time.Duration
	block    uint64
	scratch  []event.Raw
}

// New creates an engine without a plan
func New(opts Options) *Engine {
	size := func(n, def int) int {
		if n <= 0 {
			return def
		}
		return n
	}
	return &Engine{
		events:        make(chan event.Raw, size(opts.EventQueue, defaultEventQueue)),
		plans:         make(chan *mapping.Plan, 1),
		notifications: make(chan Notification, size(opts.NotificationQueue, defaultNotificationQueue)),
		learnCommands: make(chan learnCommand, learnQueue),
		feedback:      make(chan Feedback, size(opts.FeedbackQueue, defaultFeedbackQueue)),
		reports:       make(chan Report, size(opts.ReportQueue, defaultReportQueue)),
		deferred:      make(chan DeferredWrite, size(opts.DeferredQueue, defaultDeferredQueue)),
		learnResults:  make(chan learn.Result, learnQueue),
		scratch:       make([]event.Raw, 0, scratchEvents),
	}
}

// Submit queues a raw control event. It never blocks; it reports false if
// the queue was full and the event was dropped.
func (e *Engine) Submit(ev event.Raw) bool {
	select {
	case e.events <- ev:
		return true
	default:
		e.stats.DroppedEvents.Add(1)
		return false
	}
}

// Notify queues a host change notification without blocking
func (e *Engine) Notify(n Notification) {
	select {
	case e.notifications <- n:
	default:
		e.stats.DroppedNotifications.Add(1)
	}
}

// Load stamps p with the next generation and queues it. A plan the real-time
// path has not picked up yet is replaced.
func (e *Engine) Load(p *mapping.Plan) uint64 {
	p.Generation = e.nextGeneration.Add(1)
	for {
		select {
		case e.plans <- p:
			return p.Generation
		default:
		}
		select {
		case <-e.plans:
			e.stats.PlansSuperseded.Add(1)
		default:
		}
	}
}

// Learn arms the learning detector
func (e *Engine) Learn(req learn.Request) bool {
	return e.sendLearn(learnCommand{req: req})
}

// CancelLearn disarms the learning detector
func (e *Engine) CancelLearn() bool {
	return e.sendLearn(learnCommand{cancel: true})
}

func (e *Engine) sendLearn(cmd learnCommand) bool {
	select {
	case e.learnCommands <- cmd:
		return true
	default:
		e.stats.DroppedLearn.Add(1)
		return false
	}
}

// Feedback returns the outgoing feedback events
func (e *Engine) Feedback() <-chan Feedback { return e.feedback }

// Reports returns the transition reports
func (e *Engine) Reports() <-chan Report { return e.reports }

// Deferred returns the writes the control path has to apply
func (e *Engine) Deferred() <-chan DeferredWrite { return e.deferred }

// LearnResults returns the learning results
func (e *Engine) LearnResults() <-chan learn.Result { return e.learnResults }

// Generation returns the generation of the plan the real-time path runs
func (e *Engine) Generation() uint64 {
	return e.generation.Load()
}

// Stats returns the live counters
func (e *Engine) Stats() *Stats {
	return &e.stats
}

// Run drives ProcessBlock from a ticker until ctx is done. Engine time starts
// at zero when Run is called.
func (e *Engine) Run(ctx context.Context, block time.Duration) error {
	ticker := time.NewTicker(block)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.ProcessBlock(time.Since(start))
		}
	}
}

// ProcessBlock runs one block: apply at most one pending plan, handle learn
// commands, drain notifications, dispatch the queued events, then advance
// the timers. now is the engine time and must not go backwards.
func (e *Engine) ProcessBlock(now time.Duration) {
	e.now = now
	e.block++

	select {
	case p := <-e.plans:
		e.apply(p)
	default:
	}
	e.drainLearn()
	e.drainNotifications()
	e.drainEvents()
	e.tick()
}

func (e *Engine) drainLearn() {
	for i := 0; i < learnQueue; i++ {
		select {
		case cmd := <-e.learnCommands:
			var r learn.Result
			var ok bool
			if cmd.cancel {
				r, ok = e.detector.Cancel()
			} else {
				r, ok = e.detector.Arm(cmd.req, e.now)
			}
			if ok {
				e.learned(r)
			}
		default:
			return
		}
	}
}

// the drain loops are bounded by the queue capacity so a flood of input
// cannot stall a block
func (e *Engine) drainNotifications() {
	for i := 0; i < cap(e.notifications); i++ {
		select {
		case n := <-e.notifications:
			e.notification(n)
		default:
			return
		}
	}
}

func (e *Engine) drainEvents() {
	for i := 0; i < cap(e.events); i++ {
		select {
		case ev := <-e.events:
			e.stats.Events.Add(1)
			matched := e.dispatch(ev)
			if e.detector.Armed() {
				if r, ok := e.detector.Observe(ev, matched); ok {
					e.learned(r)
				}
			}
		default:
			return
		}
	}
}

func (e *Engine) learned(r learn.Result) {
	select {
	case e.learnResults <- r:
	default:
		e.stats.DroppedLearn.Add(1)
	}
}

func (e *Engine) report(r Report) {
	if e.plan != nil {
		r.Generation = e.plan.Generation
	}
	select {
	case e.reports <- r:
	default:
		e.stats.DroppedReports.Add(1)
	}
}

// apply swaps in a new plan whole and sends the initial feedback
func (e *Engine) apply(p *mapping.Plan) {
	e.plan = p
	e.params = p.Values
	e.generation.Store(p.Generation)
	e.stats.PlansApplied.Add(1)

	for _, c := range p.Compartments {
		for _, m := range c.Mappings {
			m.Reset()
			m.Active = m.Activation(e.params)
			m.Inert = false
			if m.Binding >= 0 && !p.Bindings[m.Binding].Available() {
				m.Inert = true
				e.report(Report{Kind: ReportUnavailable, Compartment: c.Kind, Mapping: m.Key, Target: p.Bindings[m.Binding].Key, Err: target.ErrTargetUnavailable})
			}
		}
	}
	e.report(Report{Kind: ReportPlanApplied})
	for _, c := range p.Compartments {
		for _, m := range c.Mappings {
			if m.Active {
				e.initialFeedback(m)
			}
		}
	}
}

// tick advances learn, assembly and mode timers
func (e *Engine) tick() {
	if r, ok := e.detector.Tick(e.now); ok {
		e.learned(r)
	}
	if e.plan == nil {
		return
	}
	for _, c := range e.plan.Compartments {
		for _, m := range c.Mappings {
			m.Assembler.Expire(e.now)
			v, ok := m.Mode.Tick(&m.State, e.now)
			if !ok || m.Binding < 0 || m.Inert || !m.Active {
				continue
			}
			e.write(m, v)
		}
	}
}
