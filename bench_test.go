package sequence_test

import (
	"context"
	"testing"

	sq "github.com/veggiemonk/sequence"
)

type BenchData struct {
	Counter int
	Value   int
	Data    []byte
}

func benchSteps() []sq.Step[*BenchData] {
	return []sq.Step[*BenchData]{
		sq.SyncFunc[*BenchData](func(_ context.Context, data *BenchData) (*BenchData, error) {
			data.Counter++
			return data, nil
		}),
		sq.SyncFunc[*BenchData](func(_ context.Context, data *BenchData) (*BenchData, error) {
			data.Value *= 2
			return data, nil
		}),
		sq.SyncFunc[*BenchData](func(_ context.Context, data *BenchData) (*BenchData, error) {
			data.Counter += data.Value
			return data, nil
		}),
	}
}

func BenchmarkSequenceNext(b *testing.B) {
	ctx := context.Background()
	steps := benchSteps()

	for b.Loop() {
		s := sq.Of(steps...)
		data := &BenchData{Value: 1}
		for {
			res, err := s.Next(ctx, data)
			if err != nil {
				b.Fatal(err)
			}
			if res.Done {
				break
			}
			data, _ = res.Value.Get()
		}
	}
}

func BenchmarkRunner(b *testing.B) {
	ctx := context.Background()
	steps := benchSteps()

	for b.Loop() {
		_, err := sq.Run[*BenchData](ctx, sq.Of(steps...), &BenchData{Value: 1}).Await(ctx)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRunnerAsync(b *testing.B) {
	ctx := context.Background()
	async := sq.AsyncFunc[*BenchData](func(ctx context.Context, data *BenchData) sq.Thenable[*BenchData] {
		return sq.Go(ctx, func(context.Context) (*BenchData, error) {
			data.Counter++
			return data, nil
		})
	})

	for b.Loop() {
		_, err := sq.Run[*BenchData](ctx, sq.Of[*BenchData](async, async, async), &BenchData{}).Await(ctx)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParallel(b *testing.B) {
	ctx := context.Background()
	p := sq.Parallel(nil, sq.Merge[*BenchData], benchSteps()...)

	for b.Loop() {
		_, err := sq.Run[*BenchData](ctx, sq.Of(p), &BenchData{Value: 1}).Await(ctx)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGate(b *testing.B) {
	items := make([]sq.Outcome[int], 16)
	for i := range items {
		items[i] = sq.Async[int](sq.Resolved(i))
	}

	for b.Loop() {
		if _, err := sq.Gate(items...).Await(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}
