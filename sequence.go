package sequence

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
)

// Result is what an iterator returns from Next.
type Result[T any] struct {
	Value Outcome[T]
	Done  bool
}

// Iterator is the pull contract a Runner drives. The argument of Next is the
// input of the step about to run, not a reply to the step that just ran.
type Iterator[T any] interface {
	Next(ctx context.Context, in T) (Result[T], error)
}

var (
	_ Iterator[typ] = (*Sequence[typ])(nil)
	_ Iterator[typ] = (*Generator[typ])(nil)
)

// Sequence is an append-only list of steps and a cursor over it.
//
// Steps are read from the live list when the cursor reaches them, so a step
// that appends to its own sequence while running is always followed by what
// it appended. Then may be called from any goroutine; Next is meant for a
// single consumer.
type Sequence[T any] struct {
	mu      sync.Mutex
	steps   []Step[T]
	cursor  int
	last    Outcome[T]
	done    bool
	running bool
	Mid[T]
}

// New creates an empty sequence. The middleware wraps each step when it runs.
func New[T any](mid ...Middleware[T]) *Sequence[T] {
	return &Sequence[T]{
		Mid:   mid,
		steps: make([]Step[T], 0),
	}
}

// Of creates a sequence holding steps.
func Of[T any](steps ...Step[T]) *Sequence[T] {
	return New[T]().Then(steps...)
}

// Then appends steps to the tail and returns the sequence. It panics with
// ErrNilStep if any step is nil.
func (s *Sequence[T]) Then(steps ...Step[T]) *Sequence[T] {
	for _, st := range steps {
		if st == nil {
			panic(ErrNilStep)
		}
	}
	s.mu.Lock()
	s.steps = append(s.steps, steps...)
	s.mu.Unlock()
	return s
}

// ThenFrom appends the step returned by build, which receives the sequence
// so that the step can extend it.
func (s *Sequence[T]) ThenFrom(build func(*Sequence[T]) Step[T]) *Sequence[T] {
	return s.Then(build(s))
}

// Next runs the step under the cursor with in and advances. Once the cursor
// has reached the tail, Next reports Done and keeps doing so even if steps
// are appended later. A step fault is returned as is and also ends the
// sequence. The outcome is not unwrapped.
func (s *Sequence[T]) Next(ctx context.Context, in T) (Result[T], error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Result[T]{}, ErrReentrant
	}
	if s.done || s.cursor == len(s.steps) {
		s.done = true
		s.mu.Unlock()
		return Result[T]{Done: true}, nil
	}
	step := s.steps[s.cursor]
	s.cursor++
	s.running = true
	s.mu.Unlock()

	for _, m := range slices.Backward(s.Mid) {
		step = m(step)
	}
	out, err := runStep(setStepID(ctx, gen.ID()), step, in)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if err != nil {
		s.done = true
		return Result[T]{}, err
	}
	s.last = out
	return Result[T]{Value: out}, nil
}

func runStep[T any](ctx context.Context, step Step[T], in T) (out Outcome[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	return step.Run(ctx, in)
}

// Run lets a sequence be a step of another one: it drives the sequence to
// completion with a Runner and returns the result as an async outcome.
// A sequence can only be consumed once.
func (s *Sequence[T]) Run(ctx context.Context, in T) (Outcome[T], error) {
	return Async[T](Run[T](ctx, s, in)), nil
}

// Return ends the sequence and reports v as its final value.
func (s *Sequence[T]) Return(v T) Result[T] {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	return Result[T]{Value: Value(v), Done: true}
}

// Throw ends the sequence and returns err.
func (s *Sequence[T]) Throw(err error) error {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	return err
}

// Values runs the sequence from in and yields every outcome. Each step gets
// the plain value produced before it, or the zero value when that outcome
// was async. A fault is yielded once and ends the loop.
func (s *Sequence[T]) Values(ctx context.Context, in T) iter.Seq2[Outcome[T], error] {
	return func(yield func(Outcome[T], error) bool) {
		cur := in
		for {
			res, err := s.Next(ctx, cur)
			if err != nil {
				yield(Outcome[T]{}, err)
				return
			}
			if res.Done {
				return
			}
			if !yield(res.Value, nil) {
				return
			}
			cur, _ = res.Value.Get()
		}
	}
}

// Len returns the number of steps appended so far.
func (s *Sequence[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}

// Cursor returns the index of the next step to run.
func (s *Sequence[T]) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Finished reports whether Next has reported Done.
func (s *Sequence[T]) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Last returns the most recent outcome produced by a step.
func (s *Sequence[T]) Last() Outcome[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Steps returns a copy of the step list.
func (s *Sequence[T]) Steps() []Step[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.steps)
}

// String renders the sequence as a tree of its steps.
func (s *Sequence[T]) String() string {
	children := make([]string, 0, s.Len())
	for _, st := range s.Steps() {
		children = append(children, st.String())
	}
	return tree(Name[T](s), children)
}

func tree(root string, children []string) string {
	var buf strings.Builder
	buf.WriteString(root)
	buf.WriteString("\n")
	for i, c := range children {
		branch, indent := "├── ", "│   "
		if i == len(children)-1 {
			branch, indent = "└── ", "    "
		}
		lines := strings.Split(strings.TrimSuffix(c, "\n"), "\n")
		for j, l := range lines {
			if j == 0 {
				buf.WriteString(branch)
			} else {
				buf.WriteString(indent)
			}
			buf.WriteString(l)
			buf.WriteString("\n")
		}
	}
	return buf.String()
}
