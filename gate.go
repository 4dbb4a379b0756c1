package sequence

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"dario.cat/mergo"
	"golang.org/x/sync/errgroup"
)

// Gate joins outcomes into one promise for their values, in argument order.
// Plain values count as already fulfilled. The promise rejects with the
// first rejection observed, without waiting for the others; what the other
// handles do afterwards is ignored. With no handles it is fulfilled before
// Gate returns.
func Gate[T any](items ...Outcome[T]) *Promise[[]T] {
	out := NewPromise[[]T]()
	vals := make([]T, len(items))

	var handles []int
	for i, item := range items {
		if _, ok := item.Handle(); ok {
			handles = append(handles, i)
			continue
		}
		vals[i], _ = item.Get()
	}
	if len(handles) == 0 {
		out.Resolve(vals)
		return out
	}

	var mu sync.Mutex
	pending := len(handles)
	for _, i := range handles {
		h, _ := items[i].Handle()
		settled := false
		h.Then(
			func(v T) {
				mu.Lock()
				if settled {
					mu.Unlock()
					return
				}
				settled = true
				vals[i] = v
				pending--
				last := pending == 0
				mu.Unlock()
				if last {
					out.Resolve(vals)
				}
			},
			func(err error) {
				mu.Lock()
				if settled {
					mu.Unlock()
					return
				}
				settled = true
				mu.Unlock()
				if err == nil {
					err = ErrNilReason
				}
				out.Reject(err)
			},
		)
	}
	return out
}

// wait blocks until h settles. Extra settlements of a misbehaving handle are
// dropped.
func wait[T any](h Thenable[T]) (T, error) {
	ch := make(chan settlement[T], 1)
	send := func(s settlement[T]) {
		select {
		case ch <- s:
		default:
		}
	}
	h.Then(
		func(v T) { send(settlement[T]{v: v}) },
		func(err error) {
			if err == nil {
				err = ErrNilReason
			}
			send(settlement[T]{err: err})
		},
	)
	s := <-ch
	return s.v, s.err
}

// Parallel

// parallel is a step that runs several steps on the same input and gates
// their outcomes.
type parallel[T any] struct {
	merge MergeRequest[T]
	Tasks []Step[T]
	Mid[T]
}

// MergeRequest is a function that merges the results of multiple steps into a
// single result.
type MergeRequest[T any] func(context.Context, T, ...T) (T, error)

// Parallel returns a step that runs every step concurrently with a copy of
// its input (see SafeCopy), gates their outcomes and merges the values with
// merge. A synchronous fault of any step fails the parallel step.
func Parallel[T any](mid Mid[T], merge MergeRequest[T], steps ...Step[T]) Step[T] {
	return &parallel[T]{
		merge: merge,
		Tasks: steps,
		Mid:   mid,
	}
}

// Run executes the parallel step.
func (p *parallel[T]) Run(ctx context.Context, in T) (Outcome[T], error) {
	tasks := make([]Step[T], len(p.Tasks))
	for i, task := range p.Tasks {
		tasks[i] = task
		for _, m := range slices.Backward(p.Mid) {
			tasks[i] = m(tasks[i])
		}
	}

	var g errgroup.Group
	outs := make([]Outcome[T], len(tasks))
	for i, task := range tasks {
		g.Go(func() error {
			o, err := runStep(setStepID(ctx, gen.ID()), task, SafeCopy(in))
			if err != nil {
				return fmt.Errorf("parallel task %d: %w", i, err)
			}
			outs[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Outcome[T]{}, err
	}

	res := NewPromise[T]()
	Gate(outs...).Then(
		func(vals []T) {
			defer func() {
				if r := recover(); r != nil {
					res.Reject(newPanicError(r))
				}
			}()
			v, err := p.merge(ctx, in, vals...)
			if err != nil {
				res.Reject(err)
				return
			}
			res.Resolve(v)
		},
		func(err error) { res.Reject(err) },
	)
	return Async[T](res), nil
}

func (p *parallel[T]) String() string {
	if p == nil {
		return "none"
	}
	tt := make([]string, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		tt = append(tt, t.String())
	}
	return tree(Name[T](p), tt)
}

// MergeTransform is a merge request that merges the results of multiple steps
// into the input using the mergo library. T must be a pointer to a struct.
func MergeTransform[T any](t ...func(*mergo.Config)) MergeRequest[T] {
	return func(ctx context.Context, in T, outs ...T) (T, error) {
		for _, o := range outs {
			if err := ctx.Err(); err != nil {
				return in, fmt.Errorf("aborting: %w", err)
			}
			if err := mergo.Merge(in, o, t...); err != nil {
				return in, err
			}
		}
		return in, nil
	}
}

// Merge is a merge request that merges the results of multiple steps into the
// input using the mergo library, filling only fields that are still zero.
func Merge[T any](ctx context.Context, in T, outs ...T) (T, error) {
	return MergeTransform[T]()(ctx, in, outs...)
}

// Collect is a merge request that keeps the last value, for steps whose
// results need no merging.
func Collect[T any](_ context.Context, in T, outs ...T) (T, error) {
	if len(outs) == 0 {
		return in, nil
	}
	return outs[len(outs)-1], nil
}
