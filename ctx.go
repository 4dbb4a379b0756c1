package sequence

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/ccoveille/go-safecast"
	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// StepIDKey is the context key for the ID of the step being run.
	StepIDKey contextKey = "step_id"
	// RunIDKey is the context key for the ID of the runner driving the step.
	RunIDKey contextKey = "run_id"
)

var (
	// ErrNoStepID is returned by GetStepID outside of a step.
	ErrNoStepID = errors.New("no step id in context")
	// ErrNoRunID is returned by GetRunID outside of a runner.
	ErrNoRunID = errors.New("no run id in context")
)

// IDGenerator hands out the IDs attached to steps and runs.
type IDGenerator interface {
	ID() uuid.UUID
}

// RandomID generates random (version 4) UUIDs.
type RandomID struct{}

// ID returns a new random UUID.
func (RandomID) ID() uuid.UUID { return uuid.New() }

// StaticID generates predictable IDs from a counter, which is handy in tests.
// The zero value starts at 0.
type StaticID struct {
	mu   sync.Mutex
	next uint64
}

// NewStaticID returns a StaticID whose first ID encodes start.
func NewStaticID(start int) (*StaticID, error) {
	n, err := safecast.ToUint64(start)
	if err != nil {
		return nil, fmt.Errorf("static id start: %w", err)
	}
	return &StaticID{next: n}, nil
}

// ID returns the next ID of the counter.
func (s *StaticID) ID() uuid.UUID {
	s.mu.Lock()
	n := s.next
	s.next++
	s.mu.Unlock()

	var id uuid.UUID
	binary.BigEndian.PutUint64(id[8:], n)
	return id
}

type generator struct {
	mu sync.RWMutex
	g  IDGenerator
}

func (g *generator) ID() uuid.UUID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.g.ID()
}

var gen = &generator{g: RandomID{}}

// SetIDGenerator replaces the package wide ID generator. A nil generator
// restores RandomID.
func SetIDGenerator(g IDGenerator) {
	if g == nil {
		g = RandomID{}
	}
	gen.mu.Lock()
	gen.g = g
	gen.mu.Unlock()
}

func setStepID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, StepIDKey, id)
}

// GetStepID returns the ID of the step running with ctx.
func GetStepID(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(StepIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrNoStepID
	}
	return id, nil
}

func setRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, RunIDKey, id)
}

// GetRunID returns the ID of the runner driving ctx.
func GetRunID(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(RunIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrNoRunID
	}
	return id, nil
}
