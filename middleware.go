package sequence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// LoggerMiddleware returns a middleware that logs step execution using the
// provided slog.Logger. For async outcomes the settlement is logged when it
// happens.
func LoggerMiddleware[T any](l *slog.Logger) Middleware[T] {
	return func(next Step[T]) Step[T] {
		return &MidFunc[T]{
			Name: "Logger",
			Next: next,
			Fn: func(ctx context.Context, in T) (Outcome[T], error) {
				name := Name(next)
				if strings.HasPrefix(name, "MidFunc") {
					return next.Run(ctx, in)
				}
				start := time.Now()
				id, _ := GetStepID(ctx)
				l.Info("start", "Type", name, "id", id, "STEP", next)

				out, err := next.Run(ctx, in)
				if err != nil {
					l.Error("failed", "Type", name, "id", id, "duration", time.Since(start), "err", err)
					return out, err
				}
				h, ok := out.Handle()
				if !ok {
					l.Info("done", "Type", name, "id", id, "duration", time.Since(start),
						"Result", fmt.Sprintf("%v", out))
					return out, nil
				}
				l.Info("suspended", "Type", name, "id", id)
				h.Then(
					func(v T) {
						l.Info("done", "Type", name, "id", id, "duration", time.Since(start),
							"Result", fmt.Sprintf("%v", v))
					},
					func(err error) {
						l.Error("rejected", "Type", name, "id", id, "duration", time.Since(start), "err", err)
					},
				)
				return out, nil
			},
		}
	}
}
