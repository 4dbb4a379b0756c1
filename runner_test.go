package sequence_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	sq "github.com/veggiemonk/sequence"
)

func later[T any](d time.Duration, v T) sq.Step[T] {
	return sq.AsyncFunc[T](func(ctx context.Context, _ T) sq.Thenable[T] {
		return sq.Go(ctx, func(context.Context) (T, error) {
			time.Sleep(d)
			return v, nil
		})
	})
}

func TestRunConcreteScenario(t *testing.T) {
	got, err := await(t, sq.Run[int](t.Context(), sq.Of[int](mul(2), add(3), mul(4)), 8))
	if err != nil {
		t.Fatal(err)
	}
	if got != 76 {
		t.Fatalf("got %d, want 76", got)
	}
}

func TestRunEmptySequenceReturnsInput(t *testing.T) {
	got, err := await(t, sq.Run[int](t.Context(), sq.New[int](), 7))
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}

func TestRunUnwrapsAsync(t *testing.T) {
	s := sq.Of[int](
		mul(2),
		sq.AsyncFunc[int](func(ctx context.Context, x int) sq.Thenable[int] {
			return sq.Go(ctx, func(context.Context) (int, error) {
				time.Sleep(10 * time.Millisecond)
				return x + 1, nil
			})
		}),
		add(10),
		later(5*time.Millisecond, 1000),
	)

	got, err := await(t, sq.Run[int](t.Context(), s, 4))
	if err != nil {
		t.Fatal(err)
	}
	if got != 1000 {
		t.Fatalf("got %d, want 1000", got)
	}
}

func TestRunnerHaltsOnRejection(t *testing.T) {
	errReject := errors.New("rejected")
	ran := false
	s := sq.Of[int](
		add(1),
		sq.AsyncFunc[int](func(context.Context, int) sq.Thenable[int] { return sq.Rejected[int](errReject) }),
		sq.SyncFunc[int](func(_ context.Context, x int) (int, error) {
			ran = true
			return x, nil
		}),
	)

	r := sq.NewRunner[int](s, sq.RunnerConfig{Logger: logger()})
	_, err := await(t, r.Run(t.Context(), 0))
	if !errors.Is(err, errReject) {
		t.Fatalf("got %v, want %v", err, errReject)
	}
	if ran {
		t.Fatal("step 3 ran after rejection")
	}
	if s.Cursor() != 2 {
		t.Errorf("cursor %d, want 2", s.Cursor())
	}
	if r.State() != sq.Errored {
		t.Errorf("state %v, want %v", r.State(), sq.Errored)
	}
}

func TestRunnerStepFault(t *testing.T) {
	errBoom := errors.New("boom")
	var log []string
	s := sq.Of[int](
		record(&log, "1"),
		sq.SyncFunc[int](func(context.Context, int) (int, error) { return 0, errBoom }),
		record(&log, "3"),
	)

	_, err := await(t, sq.Run[int](t.Context(), s, 0))
	if !errors.Is(err, errBoom) {
		t.Fatalf("got %v, want %v", err, errBoom)
	}
	if diff := Diff(log, []string{"1"}); diff != "" {
		t.Fatal(diff)
	}
}

func TestRunnerStepPanic(t *testing.T) {
	s := sq.Of[int](sq.SyncFunc[int](func(context.Context, int) (int, error) { panic("kaboom") }))

	_, err := await(t, sq.Run[int](t.Context(), s, 0))
	var pe *sq.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PanicError, got %v", err)
	}
}

func TestRunnerRunsOnce(t *testing.T) {
	r := sq.NewRunner[int](sq.Of[int](add(1)), sq.DefaultRunnerConfig())
	if _, err := await(t, r.Run(t.Context(), 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := await(t, r.Run(t.Context(), 0)); !errors.Is(err, sq.ErrRunnerUsed) {
		t.Fatalf("got %v, want %v", err, sq.ErrRunnerUsed)
	}
}

func TestRunNilIterator(t *testing.T) {
	_, err := await(t, sq.Run[int](t.Context(), nil, 0))
	if !errors.Is(err, sq.ErrNilIterator) {
		t.Fatalf("got %v, want %v", err, sq.ErrNilIterator)
	}
}

func TestRunnerStates(t *testing.T) {
	gate := sq.NewPromise[int]()
	s := sq.Of[int](sq.AsyncFunc[int](func(context.Context, int) sq.Thenable[int] { return gate }))

	r := sq.NewRunner[int](s, sq.RunnerConfig{})
	if r.State() != sq.Ready {
		t.Fatalf("state %v, want %v", r.State(), sq.Ready)
	}
	p := r.Run(t.Context(), 0)

	deadline := time.Now().Add(5 * time.Second)
	for r.State() != sq.Suspended {
		if time.Now().After(deadline) {
			t.Fatalf("runner never suspended, state %v", r.State())
		}
		time.Sleep(time.Millisecond)
	}
	select {
	case <-p.Done():
		t.Fatal("result settled while suspended")
	default:
	}

	gate.Resolve(3)
	got, err := await(t, p)
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Fatalf("got %d, want 3", got)
	}
	if r.State() != sq.Done {
		t.Errorf("state %v, want %v", r.State(), sq.Done)
	}
	if r.Steps() != 1 {
		t.Errorf("steps %d, want 1", r.Steps())
	}
}

// A step that keeps extending its own sequence must always be followed by the
// extension, whatever the timing of async steps around it.
func TestRunnerSelfExtensionIsDeterministic(t *testing.T) {
	for i := range 50 {
		s := sq.New[int]()
		var grow func(self *sq.Sequence[int]) sq.Step[int]
		grow = func(self *sq.Sequence[int]) sq.Step[int] {
			return sq.AsyncFunc[int](func(ctx context.Context, x int) sq.Thenable[int] {
				if x < 10 {
					self.ThenFrom(grow)
				}
				return sq.Go(ctx, func(context.Context) (int, error) { return x + 1, nil })
			})
		}
		s.ThenFrom(grow)

		got, err := await(t, sq.Run[int](t.Context(), s, 0))
		if err != nil {
			t.Fatal(err)
		}
		if got != 11 {
			t.Fatalf("run %d: got %d, want 11", i, got)
		}
		if s.Len() != 11 {
			t.Fatalf("run %d: len %d, want 11", i, s.Len())
		}
	}
}

func TestExternalAppendWhileSuspended(t *testing.T) {
	hold := sq.NewPromise[int]()
	s := sq.Of[int](sq.AsyncFunc[int](func(context.Context, int) sq.Thenable[int] { return hold }))

	r := sq.NewRunner[int](s, sq.RunnerConfig{})
	p := r.Run(t.Context(), 0)
	for r.State() != sq.Suspended {
		time.Sleep(time.Millisecond)
	}

	s.Then(add(5))
	hold.Resolve(1)

	got, err := await(t, p)
	if err != nil {
		t.Fatal(err)
	}
	if got != 6 {
		t.Fatalf("got %d, want 6", got)
	}
}

func TestRunnerIDs(t *testing.T) {
	ids, err := sq.NewStaticID(7)
	if err != nil {
		t.Fatal(err)
	}

	var runID, stepID string
	s := sq.Of[int](sq.SyncFunc[int](func(ctx context.Context, x int) (int, error) {
		id, err := sq.GetRunID(ctx)
		if err != nil {
			return 0, err
		}
		sid, err := sq.GetStepID(ctx)
		if err != nil {
			return 0, err
		}
		runID, stepID = id.String(), sid.String()
		return x, nil
	}))

	r := sq.NewRunner[int](s, sq.RunnerConfig{IDs: ids})
	if _, err := await(t, r.Run(t.Context(), 0)); err != nil {
		t.Fatal(err)
	}
	if runID != "00000000-0000-0000-0000-000000000007" {
		t.Errorf("run id %q", runID)
	}
	if runID != r.ID().String() {
		t.Errorf("run id %q, runner reports %q", runID, r.ID())
	}
	if stepID == "" || stepID == runID {
		t.Errorf("step id %q", stepID)
	}
}

type lateThenable struct {
	mu    sync.Mutex
	v     int
	conts []func(int)
}

func (l *lateThenable) Then(ok func(int), _ func(error)) {
	l.mu.Lock()
	l.conts = append(l.conts, ok)
	l.mu.Unlock()
	go func() {
		time.Sleep(time.Millisecond)
		l.mu.Lock()
		defer l.mu.Unlock()
		for _, c := range l.conts {
			c(l.v)
			c(l.v + 1) // settling twice must not matter
		}
		l.conts = nil
	}()
}

func TestRunnerAcceptsAnyThenable(t *testing.T) {
	s := sq.Of[int](sq.AsyncFunc[int](func(context.Context, int) sq.Thenable[int] { return &lateThenable{v: 9} }))

	got, err := await(t, sq.Run[int](t.Context(), s, 0))
	if err != nil {
		t.Fatal(err)
	}
	if got != 9 {
		t.Fatalf("got %d, want 9", got)
	}
}

func TestRunnerLogs(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := sq.NewRunner[int](sq.Of[int](add(1), later(time.Millisecond, 2)), sq.RunnerConfig{Logger: l})
	if _, err := await(t, r.Run(t.Context(), 0)); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, msg := range []string{"run start", "suspended", "run done"} {
		if !strings.Contains(out, msg) {
			t.Errorf("log is missing %q:\n%s", msg, out)
		}
	}
}

func TestNestedSequence(t *testing.T) {
	inner := sq.Of[int](add(1), later(time.Millisecond, 50), add(1))
	outer := sq.Of[int](mul(10), inner, mul(2))

	got, err := await(t, sq.Run[int](t.Context(), outer, 1))
	if err != nil {
		t.Fatal(err)
	}
	if got != 102 {
		t.Fatalf("got %d, want 102", got)
	}
}

func TestSafeRun(t *testing.T) {
	if _, err := await(t, sq.SafeRun[int](t.Context(), nil, 0)); !errors.Is(err, sq.ErrNilIterator) {
		t.Fatalf("got %v, want %v", err, sq.ErrNilIterator)
	}

	got, err := await(t, sq.SafeRun[int](t.Context(), sq.Of[int](add(2)), 1))
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Fatalf("got %d, want 3", got)
	}
}
