package pkgroutine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxGoroutine is used when NewManager receives a non-positive limit.
const DefaultMaxGoroutine int = 10

// ErrPanic wraps a value recovered from a panicking task.
var ErrPanic = errors.New("goroutine panicked")

// Manager runs functions in goroutines with a configurable concurrency limit.
//
// It collects errors returned by tasks and can be waited on using Wait.
type Manager struct {
	mu   sync.Mutex
	errs []error
	wg   sync.WaitGroup
	sema *semaphore.Weighted
	max  int
}

// NewManager creates a new Manager with the provided maximum concurrency.
func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = DefaultMaxGoroutine
	}

	return &Manager{
		sema: semaphore.NewWeighted(int64(maxGoroutine)),
		max:  maxGoroutine,
	}
}

// Limit returns the configured concurrency limit.
func (g *Manager) Limit() int {
	return g.max
}

// Go schedules a function to run in a goroutine once a slot is free and
// reports whether it was scheduled.
//
// It blocks while the manager is at its limit. If pCtx is canceled before a
// slot frees up, f is never run and Go returns false, so callers that hand
// resources to f must release them. Once scheduled, f always runs and sees
// pCtx as is. A panic inside f is recovered and recorded as an ErrPanic error.
func (g *Manager) Go(pCtx context.Context, f func(ctx context.Context) error) bool {
	if err := g.sema.Acquire(pCtx, 1); err != nil {
		slog.WarnContext(pCtx, "goroutine canceled before start", "because", err)
		return false
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.sema.Release(1)
		defer func() {
			if rvr := recover(); rvr != nil {
				slog.ErrorContext(pCtx, "panic occurred in goroutine", "panic", rvr, "stack", string(debug.Stack()))
				g.record(fmt.Errorf("%w: %v", ErrPanic, rvr))
			}
		}()

		if err := f(pCtx); err != nil {
			g.record(err)
		}
	}()

	return true
}

// Wait blocks until all scheduled goroutines finish and returns any collected errors.
func (g *Manager) Wait() error {
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	return errors.Join(g.errs...)
}

func (g *Manager) record(err error) {
	g.mu.Lock()
	g.errs = append(g.errs, err)
	g.mu.Unlock()
}
