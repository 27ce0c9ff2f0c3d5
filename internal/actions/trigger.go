package actions

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/PixPMusic/gopher-learn/internal/target"
)

// Trigger exposes an action or group as a mapping target. A write above zero
// runs the sequence; zero is the release and does nothing.
type Trigger struct {
	ctx   context.Context
	id    string
	label string
	store *ActionStore
	exec  *Executor
	last  atomic.Uint64
}

// CurrentValue returns the last value written
func (t *Trigger) CurrentValue() float64 { return math.Float64frombits(t.last.Load()) }

// Write starts the sequence when v is above zero. It returns once the
// sequence is started; failures of its actions are logged by the executor.
func (t *Trigger) Write(v float64) error {
	t.last.Store(math.Float64bits(v))
	if v <= 0 {
		return nil
	}
	seq, err := t.store.Sequence(t.id)
	if err != nil {
		return fmt.Errorf("%w: %v", target.ErrTargetUnavailable, err)
	}
	t.exec.Start(t.ctx, seq)
	return nil
}

func (t *Trigger) ValueRange() (float64, float64) { return 0, 1 }
func (t *Trigger) StepCount() int                 { return 0 }
func (t *Trigger) Label() string                  { return t.label }

// IsAvailable reports whether the action still exists in the store
func (t *Trigger) IsAvailable() bool {
	_, ok := t.store.Name(t.id)
	return ok
}

// WritesBlock is always true: actions run shell commands and sleep
func (t *Trigger) WritesBlock() bool { return true }

// Resolver resolves action targets against a store
type Resolver struct {
	ctx   context.Context
	store *ActionStore
	exec  *Executor
}

// NewResolver creates a resolver. Sequences started by its triggers stop
// between actions once ctx is done.
func NewResolver(ctx context.Context, store *ActionStore, exec *Executor) *Resolver {
	return &Resolver{ctx: ctx, store: store, exec: exec}
}

// Resolve implements target.Resolver
func (r *Resolver) Resolve(_ target.Kind, id string) (target.Parameter, error) {
	label, ok := r.store.Name(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, id)
	}
	return &Trigger{ctx: r.ctx, id: id, label: label, store: r.store, exec: r.exec}, nil
}
