package quergo

import (
	"errors"
	"fmt"

	"github.com/quergo/quergo/core"
)

var (
	// ErrClosed is returned by Execute after the engine has been closed.
	ErrClosed = errors.New("quergo: engine is closed")

	// ErrNilScanner is returned by New when no component store is supplied.
	ErrNilScanner = errors.New("quergo: scanner is nil")

	// ErrNilAction is returned by Execute for a nil per-entity action.
	ErrNilAction = errors.New("quergo: per-entity action is nil")
)

// EntityError records a single isolated per-entity action failure.
//
// The original underlying error can be accessed via errors.Unwrap.
type EntityError struct {
	Entity core.EntityID
	cause  error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("entity %d: %v", e.Entity, e.cause)
}

func (e *EntityError) Unwrap() error { return e.cause }

// EntityErrors aggregates the per-entity failures of one Execute call.
// Failures are isolated: one entity's bad data never prevents processing of
// its siblings, so the batch always runs to completion (or cancellation)
// before this is returned.
type EntityErrors struct {
	Failures []*EntityError
}

func (e *EntityErrors) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("1 entity failed: %v", e.Failures[0])
	}
	return fmt.Sprintf("%d entities failed (first: %v)", len(e.Failures), e.Failures[0])
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *EntityErrors) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
