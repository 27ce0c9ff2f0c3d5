package actions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Executor handles action execution with platform-specific logic
type Executor struct {
	handlers map[ActionType]ActionHandler
	log      *slog.Logger
	running  sync.WaitGroup
}

// NewExecutor creates a new action executor. MIDI actions go out through
// sender; with a nil sender they fail.
func NewExecutor(sender MidiSender, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		handlers: map[ActionType]ActionHandler{
			ActionTypeAppleScript:  &AppleScriptHandler{},
			ActionTypeShellCommand: &ShellHandler{},
			ActionTypeSleep:        &SleepHandler{},
			ActionTypeMidi:         NewMidiHandler(sender),
		},
		log: log.With(slog.String("component", "actions")),
	}
}

// Execute runs an action based on its type
// Returns output and error (error if type not supported on current platform)
func (e *Executor) Execute(ctx context.Context, action *Action) (string, error) {
	if action == nil {
		return "", fmt.Errorf("action is nil")
	}

	handler, ok := e.handlers[action.Type]
	if !ok {
		return "", fmt.Errorf("unknown action type: %s", action.Type)
	}

	return handler.Execute(ctx, action.Code)
}

// Validate checks the code of an action without running it
func (e *Executor) Validate(action *Action) error {
	handler, ok := e.handlers[action.Type]
	if !ok {
		return fmt.Errorf("unknown action type: %s", action.Type)
	}
	if !handler.IsSupported() {
		return fmt.Errorf("%s actions are not supported on this platform", action.Type)
	}
	return handler.Validate(action.Code)
}

// Start runs seq in the background, like a pad press in the editor did, so
// the caller never waits for shell commands or sleeps. Wait returns once
// every started sequence is done.
func (e *Executor) Start(ctx context.Context, seq []Action) {
	e.running.Add(1)
	go func() {
		defer e.running.Done()
		if err := e.RunSequence(ctx, seq); err != nil {
			e.log.Warn("sequence stopped", slog.Int("actions", len(seq)), slog.Any("error", err))
		}
	}()
}

// Wait blocks until the sequences and background actions started so far
// have finished
func (e *Executor) Wait() {
	e.running.Wait()
}

// RunSequence executes actions in order. An action with WaitForCompletion
// finishes before the next one starts; the others run in the background.
// The sequence stops at the first failing action it waited for.
func (e *Executor) RunSequence(ctx context.Context, seq []Action) error {
	for i := range seq {
		if err := ctx.Err(); err != nil {
			return err
		}
		a := seq[i]
		if !a.WaitForCompletion {
			e.running.Add(1)
			go func() {
				defer e.running.Done()
				e.run(ctx, &a)
			}()
			continue
		}
		if err := e.run(ctx, &a); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) run(ctx context.Context, a *Action) error {
	out, err := e.Execute(ctx, a)
	if err != nil {
		e.log.Error("action failed", slog.String("action", a.Name), slog.String("id", a.ID), slog.Any("error", err))
		return fmt.Errorf("action %q: %w", a.Name, err)
	}
	e.log.Debug("action done", slog.String("action", a.Name), slog.String("output", out))
	return nil
}

// ValidateStore checks the tree structure and every action in the store
func (e *Executor) ValidateStore(s *ActionStore) []error {
	var errs []error
	if err := s.Check(); err != nil {
		errs = append(errs, err)
	}
	actions, _ := s.Snapshot()
	for i := range actions {
		if err := e.Validate(&actions[i]); err != nil {
			errs = append(errs, fmt.Errorf("action %q: %w", actions[i].Name, err))
		}
	}
	return errs
}
