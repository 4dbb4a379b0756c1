package sequence

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
)

// RunnerState is the lifecycle state of a Runner.
type RunnerState uint32

const (
	// Ready means Run has not been called.
	Ready RunnerState = iota
	// Running means the runner is calling Next.
	Running
	// Suspended means the runner waits for an async handle to settle.
	Suspended
	// Done means the iterator finished and the result is fulfilled.
	Done
	// Errored means a step failed and the result is rejected.
	Errored
)

func (s RunnerState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Done:
		return "done"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// RunnerConfig defines the configuration of a Runner.
type RunnerConfig struct {
	// Logger receives the runner's events. Default discards them.
	Logger *slog.Logger

	// IDs generates the run ID. Default is RandomID.
	IDs IDGenerator
}

// DefaultRunnerConfig returns a runner configuration with sensible defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Logger: slog.New(slog.DiscardHandler),
		IDs:    RandomID{},
	}
}

// Runner drives an iterator to completion. Plain values are fed straight
// back into the next call; async handles suspend the runner until they
// settle. The first fault or rejection ends the run and the iterator is not
// advanced again. A Runner runs once.
//
// There is no cancellation: a handle that never settles keeps the runner
// suspended.
type Runner[T any] struct {
	it      Iterator[T]
	cfg     RunnerConfig
	id      uuid.UUID
	state   atomic.Uint32
	started atomic.Bool
	steps   atomic.Int64
}

// NewRunner creates a runner for it. Zero fields of cfg take their default.
func NewRunner[T any](it Iterator[T], cfg RunnerConfig) *Runner[T] {
	def := DefaultRunnerConfig()
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	if cfg.IDs == nil {
		cfg.IDs = def.IDs
	}
	return &Runner[T]{
		it:  it,
		cfg: cfg,
		id:  cfg.IDs.ID(),
	}
}

// Run drives it from input with a default runner.
func Run[T any](ctx context.Context, it Iterator[T], input T) *Promise[T] {
	return NewRunner(it, DefaultRunnerConfig()).Run(ctx, input)
}

// ID returns the run ID, also available to steps through GetRunID.
func (r *Runner[T]) ID() uuid.UUID { return r.id }

// State returns the current state of the runner.
func (r *Runner[T]) State() RunnerState {
	return RunnerState(r.state.Load())
}

// Steps returns how many steps the runner has advanced so far.
func (r *Runner[T]) Steps() int {
	return int(r.steps.Load())
}

func (r *Runner[T]) setState(s RunnerState) {
	r.state.Store(uint32(s))
}

// Run starts driving the iterator on a new goroutine and returns a promise
// for the final value: the value the iterator reports when done or, when it
// reports none, the last value fed to it.
func (r *Runner[T]) Run(ctx context.Context, input T) *Promise[T] {
	if !r.started.CompareAndSwap(false, true) {
		return Rejected[T](ErrRunnerUsed)
	}
	if r.it == nil {
		r.setState(Errored)
		return Rejected[T](ErrNilIterator)
	}
	p := NewPromise[T]()
	r.setState(Running)
	go r.loop(setRunID(ctx, r.id), input, p)
	return p
}

type settlement[T any] struct {
	v   T
	err error
}

func (r *Runner[T]) loop(ctx context.Context, cur T, p *Promise[T]) {
	log := r.cfg.Logger.With("run", r.id)
	defer func() {
		if rec := recover(); rec != nil {
			r.fail(log, p, newPanicError(rec))
		}
	}()

	log.Debug("run start")
	for {
		res, err := r.it.Next(ctx, cur)
		if err != nil {
			r.fail(log, p, err)
			return
		}
		if res.Done {
			if res.Value.IsZero() {
				r.finish(log, p, cur)
				return
			}
			v, err := r.settle(log, res.Value)
			if err != nil {
				r.fail(log, p, err)
				return
			}
			r.finish(log, p, v)
			return
		}
		n := r.steps.Add(1)
		log.Debug("step", "n", n, "async", res.Value.IsAsync())

		cur, err = r.settle(log, res.Value)
		if err != nil {
			r.fail(log, p, err)
			return
		}
	}
}

// settle returns the plain value of o, suspending until it settles when it
// is async.
func (r *Runner[T]) settle(log *slog.Logger, o Outcome[T]) (T, error) {
	h, ok := o.Handle()
	if !ok {
		v, _ := o.Get()
		return v, nil
	}

	r.setState(Suspended)
	log.Debug("suspended")
	v, err := wait(h)
	r.setState(Running)
	return v, err
}

func (r *Runner[T]) finish(log *slog.Logger, p *Promise[T], v T) {
	r.setState(Done)
	log.Debug("run done", "steps", r.steps.Load())
	p.Resolve(v)
}

func (r *Runner[T]) fail(log *slog.Logger, p *Promise[T], err error) {
	r.setState(Errored)
	log.Error("run failed", "steps", r.steps.Load(), "err", err)
	p.Reject(err)
}
