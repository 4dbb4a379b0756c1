package sequence

import (
	"context"
	"fmt"
)

// Callback is the completion callback of a callback style function.
type Callback[R any] func(err error, res R)

// Wrap turns fn, which reports its result through a trailing callback, into
// a function returning a promise. A non-nil error rejects the promise,
// anything else fulfills it. fn is expected to call back exactly once; later
// calls are ignored by the promise.
func Wrap[A, R any](fn func(A, Callback[R])) func(A) *Promise[R] {
	return func(a A) *Promise[R] {
		p := NewPromise[R]()
		fn(a, settleWith(p))
		return p
	}
}

// Wrap2 is Wrap for functions taking two arguments before the callback.
func Wrap2[A, B, R any](fn func(A, B, Callback[R])) func(A, B) *Promise[R] {
	return func(a A, b B) *Promise[R] {
		p := NewPromise[R]()
		fn(a, b, settleWith(p))
		return p
	}
}

func settleWith[R any](p *Promise[R]) Callback[R] {
	return func(err error, res R) {
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(res)
	}
}

// wrapped is a step built from a callback style function.
type wrapped[T any] struct {
	fn func(context.Context, T, Callback[T])
}

// WrapStep returns a step that calls fn with its input and a callback, and
// produces an async outcome settled by that callback.
func WrapStep[T any](fn func(context.Context, T, Callback[T])) Step[T] {
	return &wrapped[T]{fn: fn}
}

// Run executes the function.
func (w *wrapped[T]) Run(ctx context.Context, in T) (Outcome[T], error) {
	p := NewPromise[T]()
	w.fn(ctx, in, settleWith(p))
	return Async[T](p), nil
}

func (w *wrapped[T]) String() string {
	var z T
	return fmt.Sprintf("Wrapped[%T]", z)
}
