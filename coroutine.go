package sequence

import (
	"context"
	"sync"
)

// Yield hands an outcome to the consumer of a generator and returns the input
// of the following Next call. It fails with ErrClosed once the generator has
// been stopped, or with the context error when the generator's context ends
// while it waits.
type Yield[T any] func(Outcome[T]) (T, error)

type genMsg[T any] struct {
	o    Outcome[T]
	done bool
	err  error
}

// Generator is a coroutine style iterator: its body runs on its own
// goroutine and pauses at each yield until the consumer calls Next again.
// A Runner drives it like a Sequence.
type Generator[T any] struct {
	body func(context.Context, T, Yield[T]) (T, error)

	mu       sync.Mutex
	started  bool
	finished bool
	ctx      context.Context

	out       chan genMsg[T]
	in        chan T
	closed    chan struct{}
	closeOnce sync.Once
}

// Coroutine returns a generator running body. The first Next starts body
// with its input; body's return value is reported with Done.
func Coroutine[T any](body func(ctx context.Context, in T, yield Yield[T]) (T, error)) *Generator[T] {
	return &Generator[T]{
		body:   body,
		out:    make(chan genMsg[T]),
		in:     make(chan T),
		closed: make(chan struct{}),
	}
}

// Next resumes the body with in and waits for its next yield or return.
func (g *Generator[T]) Next(ctx context.Context, in T) (Result[T], error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.closed:
		g.finished = true
	default:
	}
	if g.finished {
		return Result[T]{Done: true}, nil
	}

	if !g.started {
		g.started = true
		g.ctx = ctx
		go g.start(ctx, in)
	} else {
		select {
		case g.in <- in:
		case <-g.closed:
			g.finished = true
			return Result[T]{Done: true}, nil
		}
	}

	select {
	case m := <-g.out:
		if m.err != nil {
			g.finished = true
			return Result[T]{}, m.err
		}
		if m.done {
			g.finished = true
		}
		return Result[T]{Value: m.o, Done: m.done}, nil
	case <-g.closed:
		g.finished = true
		return Result[T]{Done: true}, nil
	}
}

func (g *Generator[T]) start(ctx context.Context, in T) {
	var m genMsg[T]
	defer func() {
		if r := recover(); r != nil {
			m = genMsg[T]{err: newPanicError(r)}
		}
		select {
		case g.out <- m:
		case <-g.closed:
		}
	}()

	v, err := g.body(ctx, in, g.yield)
	if err != nil {
		m.err = err
		return
	}
	m = genMsg[T]{o: Value(v), done: true}
}

func (g *Generator[T]) yield(o Outcome[T]) (T, error) {
	var zero T
	select {
	case g.out <- genMsg[T]{o: o}:
	case <-g.closed:
		return zero, ErrClosed
	}
	select {
	case v := <-g.in:
		return v, nil
	case <-g.closed:
		return zero, ErrClosed
	case <-g.ctx.Done():
		return zero, g.ctx.Err()
	}
}

func (g *Generator[T]) stop() {
	g.closeOnce.Do(func() { close(g.closed) })
}

// Return stops the generator and reports v as its final value. A body
// paused in yield gets ErrClosed.
func (g *Generator[T]) Return(v T) Result[T] {
	g.stop()
	return Result[T]{Value: Value(v), Done: true}
}

// Throw stops the generator and returns err.
func (g *Generator[T]) Throw(err error) error {
	g.stop()
	return err
}
