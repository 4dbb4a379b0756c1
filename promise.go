package sequence

import (
	"context"
	"sync"
)

// Thenable is the async handle contract. Any value that can attach success and
// failure continuations is treated as pending work, whatever its concrete type.
type Thenable[T any] interface {
	Then(onFulfilled func(T), onRejected func(error))
}

// PromiseState is the settlement state of a Promise.
type PromiseState uint8

const (
	// PromisePending means the promise has not settled yet.
	PromisePending PromiseState = iota
	// PromiseFulfilled means the promise settled with a value.
	PromiseFulfilled
	// PromiseRejected means the promise settled with an error.
	PromiseRejected
)

func (s PromiseState) String() string {
	switch s {
	case PromisePending:
		return "pending"
	case PromiseFulfilled:
		return "fulfilled"
	case PromiseRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

var _ Thenable[typ] = (*Promise[typ])(nil)

type continuation[T any] struct {
	onFulfilled func(T)
	onRejected  func(error)
}

// Promise is a value that settles exactly once, either fulfilled with a T or
// rejected with an error. Settling again is a no-op. It is safe for
// concurrent use.
type Promise[T any] struct {
	mu    sync.Mutex
	state PromiseState
	value T
	err   error
	conts []continuation[T]
	done  chan struct{}
}

// NewPromise returns a pending promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Resolved returns a promise already fulfilled with v.
func Resolved[T any](v T) *Promise[T] {
	p := NewPromise[T]()
	p.Resolve(v)
	return p
}

// Rejected returns a promise already rejected with err.
func Rejected[T any](err error) *Promise[T] {
	p := NewPromise[T]()
	p.Reject(err)
	return p
}

// Go runs fn on a new goroutine and returns a promise for its result.
// A panic in fn rejects the promise with a *PanicError.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Promise[T] {
	p := NewPromise[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.Reject(newPanicError(r))
			}
		}()
		v, err := fn(ctx)
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(v)
	}()
	return p
}

// Resolve fulfills the promise with v. It reports whether this call settled
// the promise.
func (p *Promise[T]) Resolve(v T) bool {
	return p.settle(PromiseFulfilled, v, nil)
}

// Reject rejects the promise with err. A nil err is replaced by ErrNilReason.
// It reports whether this call settled the promise.
func (p *Promise[T]) Reject(err error) bool {
	if err == nil {
		err = ErrNilReason
	}
	var zero T
	return p.settle(PromiseRejected, zero, err)
}

func (p *Promise[T]) settle(state PromiseState, v T, err error) bool {
	p.mu.Lock()
	if p.state != PromisePending {
		p.mu.Unlock()
		return false
	}
	p.state = state
	p.value = v
	p.err = err
	conts := p.conts
	p.conts = nil
	close(p.done)
	p.mu.Unlock()

	for _, c := range conts {
		p.call(c)
	}
	return true
}

// Then attaches continuations. They run on the goroutine that settles the
// promise, or immediately on the caller's goroutine if it already settled.
// Either callback may be nil.
func (p *Promise[T]) Then(onFulfilled func(T), onRejected func(error)) {
	c := continuation[T]{onFulfilled: onFulfilled, onRejected: onRejected}
	p.mu.Lock()
	if p.state == PromisePending {
		p.conts = append(p.conts, c)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.call(c)
}

func (p *Promise[T]) call(c continuation[T]) {
	switch p.state {
	case PromiseFulfilled:
		if c.onFulfilled != nil {
			c.onFulfilled(p.value)
		}
	case PromiseRejected:
		if c.onRejected != nil {
			c.onRejected(p.err)
		}
	}
}

// Done returns a channel that is closed once the promise settles.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// State returns the current settlement state.
func (p *Promise[T]) State() PromiseState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Await blocks until the promise settles or ctx is done. The context only
// bounds the wait: the work behind the promise is not cancelled.
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
