package sequence

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// Step is the basic unit of work in a sequence. Run takes the input of the
// step and returns an Outcome: either a plain value or an async handle that
// settles later. A non-nil error is a synchronous fault.
type Step[T any] interface {
	Run(context.Context, T) (Outcome[T], error)
	fmt.Stringer
}

// Name returns the name of a step.
func Name[T any](s Step[T]) string {
	t := reflect.TypeOf(s)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	var z [0]T // zero alloc
	zt := reflect.TypeOf(z).Elem()
	for zt.Kind() == reflect.Pointer {
		zt = zt.Elem()
	}
	if zt.PkgPath() == "" {
		return t.Name()
	}
	return strings.ReplaceAll(t.Name(), zt.PkgPath()+".", "")
}

type typ struct{}

var (
	_ Step[typ] = StepFunc[typ](nil)
	_ Step[typ] = SyncFunc[typ](nil)
	_ Step[typ] = AsyncFunc[typ](nil)
	_ Step[typ] = (*MidFunc[typ])(nil)
	_ Step[typ] = (*Sequence[typ])(nil)
	_ Step[typ] = (*parallel[typ])(nil)
	_ Step[typ] = (*wrapped[typ])(nil)
)

// Outcome is what a step produces: a plain value or an async handle.
// The zero Outcome carries nothing; a finished iterator returns it.
type Outcome[T any] struct {
	value  T
	handle Thenable[T]
	ok     bool
}

// Value returns an Outcome holding the plain value v.
func Value[T any](v T) Outcome[T] {
	return Outcome[T]{value: v, ok: true}
}

// Async returns an Outcome holding the handle h. A nil handle is turned into
// one rejected with ErrNilHandle.
func Async[T any](h Thenable[T]) Outcome[T] {
	if h == nil {
		h = Rejected[T](ErrNilHandle)
	}
	return Outcome[T]{handle: h, ok: true}
}

// IsAsync reports whether the outcome is an async handle.
func (o Outcome[T]) IsAsync() bool {
	return o.handle != nil
}

// IsZero reports whether the outcome carries neither a value nor a handle.
func (o Outcome[T]) IsZero() bool {
	return !o.ok
}

// Get returns the plain value. The boolean is false for async or zero outcomes.
func (o Outcome[T]) Get() (T, bool) {
	return o.value, o.ok && o.handle == nil
}

// Handle returns the async handle, if any.
func (o Outcome[T]) Handle() (Thenable[T], bool) {
	return o.handle, o.handle != nil
}

// Promise collapses the outcome into a promise that settles to T.
// Plain values and the zero outcome give an already fulfilled promise.
func (o Outcome[T]) Promise() *Promise[T] {
	if o.handle == nil {
		return Resolved(o.value)
	}
	if p, ok := o.handle.(*Promise[T]); ok {
		return p
	}
	p := NewPromise[T]()
	o.handle.Then(func(v T) { p.Resolve(v) }, func(err error) { p.Reject(err) })
	return p
}

func (o Outcome[T]) String() string {
	switch {
	case !o.ok:
		return "none"
	case o.handle != nil:
		return fmt.Sprintf("async(%T)", o.handle)
	default:
		return fmt.Sprintf("%v", o.value)
	}
}

// StepFunc is an adapter to allow the use of ordinary functions as steps.
type StepFunc[T any] func(context.Context, T) (Outcome[T], error)

// Run executes the function.
func (f StepFunc[T]) Run(ctx context.Context, in T) (Outcome[T], error) {
	return f(ctx, in)
}

// String returns the name of the function.
func (f StepFunc[T]) String() string {
	var z T
	return fmt.Sprintf("StepFunc[%T]", z)
}

// SyncFunc adapts a function that computes its result immediately.
type SyncFunc[T any] func(context.Context, T) (T, error)

// Run executes the function.
func (f SyncFunc[T]) Run(ctx context.Context, in T) (Outcome[T], error) {
	v, err := f(ctx, in)
	if err != nil {
		return Outcome[T]{}, err
	}
	return Value(v), nil
}

func (f SyncFunc[T]) String() string {
	var z T
	return fmt.Sprintf("SyncFunc[%T]", z)
}

// AsyncFunc adapts a function that hands back a handle for its result.
type AsyncFunc[T any] func(context.Context, T) Thenable[T]

// Run executes the function.
func (f AsyncFunc[T]) Run(ctx context.Context, in T) (Outcome[T], error) {
	return Async(f(ctx, in)), nil
}

func (f AsyncFunc[T]) String() string {
	var z T
	return fmt.Sprintf("AsyncFunc[%T]", z)
}

// Middleware

// MidFunc is a step produced by a middleware: Fn runs in place of Next and
// usually delegates to it.
type MidFunc[T any] struct {
	Name string
	Next Step[T]
	Fn   StepFunc[T]
}

// Run executes the function.
func (f *MidFunc[T]) Run(ctx context.Context, in T) (Outcome[T], error) {
	return f.Fn(ctx, in)
}

// String returns the middleware name around the wrapped step.
func (f *MidFunc[T]) String() string {
	return fmt.Sprintf("%s(%v)", f.Name, f.Next)
}

// Middleware is a function that wraps a step to add functionality, such as
// logging.
type Middleware[T any] func(s Step[T]) Step[T]

// Mid is a slice of middleware.
type Mid[T any] []Middleware[T]
