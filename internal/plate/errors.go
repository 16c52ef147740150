package plate

import (
	"errors"
	"fmt"
)

// Domain errors returned by the solver. Callers should match them with
// errors.Is; the returned values usually wrap them with more context.
var (
	// ErrInvalidDomain indicates non-positive dimensions or a temperature
	// list that does not have exactly four entries.
	ErrInvalidDomain = errors.New("plate: invalid domain")

	// ErrInvalidQueryPoint indicates a query point outside [0,width]x[0,height].
	ErrInvalidQueryPoint = errors.New("plate: query point outside domain")

	// ErrInvalidOptions indicates estimator options that cannot be used.
	ErrInvalidOptions = errors.New("plate: invalid estimator options")

	// ErrCancelled indicates the estimate was aborted by its context.
	ErrCancelled = errors.New("plate: estimate cancelled")

	// ErrNonConvergent indicates a walk exceeded its step ceiling without
	// being absorbed by a wall.
	ErrNonConvergent = errors.New("plate: walk did not reach a wall")
)

// WalkError describes the trial that stopped an estimate.
type WalkError struct {
	Trial    int
	Steps    int
	Position Point
	Err      error
}

func (e *WalkError) Error() string {
	return fmt.Sprintf("trial %d after %d steps at (%.4f, %.4f): %v",
		e.Trial, e.Steps, e.Position.X, e.Position.Y, e.Err)
}

func (e *WalkError) Unwrap() error {
	return e.Err
}

// cancelled wraps a context error so that it matches both ErrCancelled and
// the underlying context.Canceled / context.DeadlineExceeded.
func cancelled(cause error) error {
	if cause == nil {
		return ErrCancelled
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
