package actions

import "context"

// ActionHandler runs and checks the code of one action type. Execute may
// block; it returns early with ctx's error once ctx is done.
type ActionHandler interface {
	Execute(ctx context.Context, code string) (string, error)
	// Validate checks the code without running it
	Validate(code string) error
	// IsSupported returns true if the handler can run on the current platform
	IsSupported() bool
}
