// Package indexguard serves a swappable snapshot to concurrent readers while it is rebuilt.
//
// Readers hold one unit of a FIFO weighted semaphore. Writers take the full weight, so a
// waiting writer blocks new readers and only waits for readers already in flight.
package indexguard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gobusters/ectologger"
	"golang.org/x/sync/semaphore"

	"github.com/Ramsey-B/iris/pkg/tracing"
)

// ErrIndexUnavailable means a read permit could not be obtained in time or no snapshot is
// loaded yet. Callers may retry.
var ErrIndexUnavailable = errors.New("index unavailable")

const (
	defaultReaders     = 1 << 20
	defaultReadTimeout = 2 * time.Second
)

// Options configure a Guard
type Options struct {
	// ReadTimeout bounds how long a reader waits for a permit
	ReadTimeout time.Duration
	// MaxReaders caps concurrent readers
	MaxReaders int64
}

// Guard holds the current snapshot of type T
type Guard[T any] struct {
	sem         *semaphore.Weighted
	capacity    int64
	readTimeout time.Duration
	current     atomic.Pointer[T]
	generation  atomic.Uint64
	writeMu     sync.Mutex
	logger      ectologger.Logger
}

// New creates an empty Guard. Reads fail with ErrIndexUnavailable until the first Rebuild.
func New[T any](opts Options, logger ectologger.Logger) *Guard[T] {
	capacity := opts.MaxReaders
	if capacity <= 0 {
		capacity = defaultReaders
	}
	timeout := opts.ReadTimeout
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}
	return &Guard[T]{
		sem:         semaphore.NewWeighted(capacity),
		capacity:    capacity,
		readTimeout: timeout,
		logger:      logger,
	}
}

// Loaded reports whether a snapshot has been installed
func (g *Guard[T]) Loaded() bool {
	return g.current.Load() != nil
}

// Generation counts installed snapshots
func (g *Guard[T]) Generation() uint64 {
	return g.generation.Load()
}

// WithReadAccess runs fn against the current snapshot while holding a read permit.
// The snapshot passed to fn stays valid until fn returns, even if a rebuild swaps it.
func (g *Guard[T]) WithReadAccess(ctx context.Context, fn func(ctx context.Context, snapshot *T) error) error {
	ctx, span := tracing.StartSpan(ctx, "indexguard.Guard.WithReadAccess")
	defer span.End()

	acquireCtx, cancel := context.WithTimeout(ctx, g.readTimeout)
	defer cancel()

	if err := g.sem.Acquire(acquireCtx, 1); err != nil {
		g.logger.WithContext(ctx).WithError(err).Warn("Timed out waiting for index read permit")
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	defer g.sem.Release(1)

	snapshot := g.current.Load()
	if snapshot == nil {
		return fmt.Errorf("%w: no snapshot loaded", ErrIndexUnavailable)
	}

	return fn(ctx, snapshot)
}

// Rebuild builds a new snapshot and swaps it in. Builds are serialized and run without
// blocking readers. The swap waits for in-flight readers, and new readers queue behind it.
// The replaced snapshot is closed if it implements io.Closer.
func (g *Guard[T]) Rebuild(ctx context.Context, build func(ctx context.Context) (*T, error)) error {
	ctx, span := tracing.StartSpan(ctx, "indexguard.Guard.Rebuild")
	defer span.End()

	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	next, err := build(ctx)
	if err != nil {
		return err
	}
	if next == nil {
		return fmt.Errorf("rebuild produced no snapshot")
	}

	return g.swap(ctx, next)
}

// Update derives a new snapshot from the current one and swaps it in. mutate receives
// the current snapshot, which may be nil, and must not modify it.
func (g *Guard[T]) Update(ctx context.Context, mutate func(ctx context.Context, current *T) (*T, error)) error {
	ctx, span := tracing.StartSpan(ctx, "indexguard.Guard.Update")
	defer span.End()

	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	next, err := mutate(ctx, g.current.Load())
	if err != nil {
		return err
	}
	if next == nil {
		return fmt.Errorf("update produced no snapshot")
	}

	return g.swap(ctx, next)
}

// Exclusive runs fn with the writer permit held. No reader runs concurrently with fn.
func (g *Guard[T]) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartSpan(ctx, "indexguard.Guard.Exclusive")
	defer span.End()

	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	if err := g.sem.Acquire(ctx, g.capacity); err != nil {
		return fmt.Errorf("acquire exclusive permit: %w", err)
	}
	defer g.sem.Release(g.capacity)

	return fn(ctx)
}

func (g *Guard[T]) swap(ctx context.Context, next *T) error {
	start := time.Now()
	if err := g.sem.Acquire(ctx, g.capacity); err != nil {
		return fmt.Errorf("acquire exclusive permit: %w", err)
	}

	previous := g.current.Swap(next)
	generation := g.generation.Add(1)

	if closer, ok := any(previous).(io.Closer); ok && previous != nil {
		if err := closer.Close(); err != nil {
			g.logger.WithContext(ctx).WithError(err).Warn("Failed to close replaced snapshot")
		}
	}
	g.sem.Release(g.capacity)

	g.logger.WithContext(ctx).WithFields(map[string]any{
		"generation": generation,
		"wait_time":  time.Since(start).String(),
	}).Debug("Swapped index snapshot")

	return nil
}
