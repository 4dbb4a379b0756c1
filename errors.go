package sequence

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	// ErrNilStep is the panic value when a nil step is appended to a sequence.
	ErrNilStep = errors.New("sequence: nil step")

	// ErrNilIterator is returned when running a nil iterator.
	ErrNilIterator = errors.New("sequence: nil iterator")

	// ErrNilHandle rejects the outcome of a step that returned a nil handle.
	ErrNilHandle = errors.New("sequence: nil async handle")

	// ErrNilReason replaces a nil error passed to Promise.Reject.
	ErrNilReason = errors.New("sequence: rejected with nil reason")

	// ErrReentrant is returned when Next is called from inside a running step
	// of the same sequence.
	ErrReentrant = errors.New("sequence: next called while a step is running")

	// ErrRunnerUsed is returned when a Runner is started a second time.
	ErrRunnerUsed = errors.New("sequence: runner already started")

	// ErrClosed is returned by a generator's yield once the generator has
	// been stopped.
	ErrClosed = errors.New("sequence: generator closed")
)

// PanicError is a panic recovered from a step, a generator body or a
// function started with Go.
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

// Error returns the error message for a PanicError.
func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// Unwrap returns the panic value when it is an error.
func (p *PanicError) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}

var _ error = (*PanicError)(nil)
