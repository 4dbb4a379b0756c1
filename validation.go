package sequence

import (
	"context"
	"fmt"
	"reflect"
)

// StepValidator provides validation for steps and sequences
type StepValidator[T any] struct{}

// ValidateStep validates a step for common issues
func (v StepValidator[T]) ValidateStep(step Step[T]) error {
	if step == nil {
		return ErrNilStep
	}

	if step.String() == "" {
		return fmt.Errorf("step must provide a non-empty string representation")
	}

	return nil
}

// ValidateSequence validates every step appended to a sequence so far
func (v StepValidator[T]) ValidateSequence(s *Sequence[T]) error {
	if s == nil {
		return fmt.Errorf("sequence cannot be nil")
	}

	for i, step := range s.Steps() {
		if err := v.ValidateStep(step); err != nil {
			return fmt.Errorf("step %d validation failed: %w", i, err)
		}
	}

	return nil
}

// SafeRun checks its arguments before running it with a Runner
func SafeRun[T any](ctx context.Context, it Iterator[T], input T) *Promise[T] {
	if it == nil {
		return Rejected[T](ErrNilIterator)
	}
	if s, ok := it.(*Sequence[T]); ok {
		if err := (StepValidator[T]{}).ValidateSequence(s); err != nil {
			return Rejected[T](err)
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}

	return Run(ctx, it, input)
}

// Cloner is implemented by values that can deep copy themselves
type Cloner[T any] interface {
	Clone() T
}

// SafeCopy copies v before it is handed to concurrent steps. Values
// implementing Cloner are deep copied; pointers are copied one level deep;
// anything else is returned as is.
func SafeCopy[T any](v T) T {
	if c, ok := any(v).(Cloner[T]); ok {
		return c.Clone()
	}

	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return v
	}
	cp := reflect.New(rv.Elem().Type())
	cp.Elem().Set(rv.Elem())
	return cp.Interface().(T)
}
