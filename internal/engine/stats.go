package engine

import "sync/atomic"

// Stats are the engine counters. The real-time path only ever adds to them;
// readers on other goroutines load them atomically.
type Stats struct {
	Events             atomic.Uint64
	Matches            atomic.Uint64
	Writes             atomic.Uint64
	DeferredWrites     atomic.Uint64
	ExternalChanges    atomic.Uint64
	Suppressed         atomic.Uint64
	JumpRejected       atomic.Uint64
	FormulaErrors      atomic.Uint64
	Unavailable        atomic.Uint64
	FeedbackSent       atomic.Uint64
	FeedbackSuppressed atomic.Uint64
	PlansApplied       atomic.Uint64
	PlansSuperseded    atomic.Uint64

	DroppedEvents        atomic.Uint64
	DroppedNotifications atomic.Uint64
	DroppedFeedback      atomic.Uint64
	DroppedReports       atomic.Uint64
	DroppedDeferred      atomic.Uint64
	DroppedLearn         atomic.Uint64
}

// Snapshot is a point-in-time copy of Stats
type Snapshot struct {
	Events             uint64
	Matches            uint64
	Writes             uint64
	DeferredWrites     uint64
	ExternalChanges    uint64
	Suppressed         uint64
	JumpRejected       uint64
	FormulaErrors      uint64
	Unavailable        uint64
	FeedbackSent       uint64
	FeedbackSuppressed uint64
	PlansApplied       uint64
	PlansSuperseded    uint64

	DroppedEvents        uint64
	DroppedNotifications uint64
	DroppedFeedback      uint64
	DroppedReports       uint64
	DroppedDeferred      uint64
	DroppedLearn         uint64
}

// Snapshot copies the counters
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Events:               s.Events.Load(),
		Matches:              s.Matches.Load(),
		Writes:               s.Writes.Load(),
		DeferredWrites:       s.DeferredWrites.Load(),
		ExternalChanges:      s.ExternalChanges.Load(),
		Suppressed:           s.Suppressed.Load(),
		JumpRejected:         s.JumpRejected.Load(),
		FormulaErrors:        s.FormulaErrors.Load(),
		Unavailable:          s.Unavailable.Load(),
		FeedbackSent:         s.FeedbackSent.Load(),
		FeedbackSuppressed:   s.FeedbackSuppressed.Load(),
		PlansApplied:         s.PlansApplied.Load(),
		PlansSuperseded:      s.PlansSuperseded.Load(),
		DroppedEvents:        s.DroppedEvents.Load(),
		DroppedNotifications: s.DroppedNotifications.Load(),
		DroppedFeedback:      s.DroppedFeedback.Load(),
		DroppedReports:       s.DroppedReports.Load(),
		DroppedDeferred:      s.DroppedDeferred.Load(),
		DroppedLearn:         s.DroppedLearn.Load(),
	}
}
