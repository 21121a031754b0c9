// Package mutation applies a state change to a cache key before the server confirms it,
// and rolls it back when the server refuses.
package mutation

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/apperr"
	"github.com/spigell/skillmatch/internal/cache"
)

// Mutation describes one optimistic change of a cache key.
type Mutation[T any] struct {
	Key string
	// Transform must be pure: it receives the current value and returns the optimistic one.
	Transform func(current T) T
	Remote    func(ctx context.Context) error
}

type Option func(*options)

type options struct {
	awaitRevalidate bool
}

// WithAwaitRevalidate makes Do wait for the post-success revalidation to finish.
func WithAwaitRevalidate() Option {
	return func(o *options) {
		o.awaitRevalidate = true
	}
}

type Mutator[T any] struct {
	cache  *cache.Cache[T]
	logger *zap.Logger
	opts   options

	mu      sync.Mutex
	pending map[string]struct{}
}

func New[T any](c *cache.Cache[T], logger *zap.Logger, opts ...Option) *Mutator[T] {
	if logger == nil {
		logger = zap.NewNop()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return &Mutator[T]{
		cache:   c,
		logger:  logger,
		opts:    o,
		pending: make(map[string]struct{}),
	}
}

// Pending reports whether a mutation for key has not resolved yet.
func (m *Mutator[T]) Pending(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[key]
	return ok
}

func (m *Mutator[T]) lock(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.pending[key]; busy {
		return false
	}
	m.pending[key] = struct{}{}
	return true
}

func (m *Mutator[T]) unlock(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, key)
}

// Do applies mut.Transform to the cache, runs mut.Remote and then either revalidates the key
// or restores the value seen before the mutation. A restored value that was itself never
// confirmed by the server is revalidated too. A second mutation of the same key started
// before the first resolves fails with ConcurrentMutationError.
func (m *Mutator[T]) Do(ctx context.Context, mut Mutation[T]) error {
	if !m.lock(mut.Key) {
		m.logger.Debug("mutation rejected, another one is pending", zap.String("key", mut.Key))
		return &apperr.ConcurrentMutationError{Key: mut.Key}
	}
	defer m.unlock(mut.Key)

	prev := m.cache.Mutate(mut.Key, func(current T, _ bool) T {
		return mut.Transform(current)
	})

	if err := mut.Remote(ctx); err != nil {
		m.cache.Restore(mut.Key, prev)
		m.logger.Info("mutation failed, optimistic value rolled back",
			zap.String("key", mut.Key),
			zap.Error(err),
		)
		// The restored value may come from an earlier mutation whose revalidation was just dropped.
		if prev.Unconfirmed {
			m.revalidate(ctx, mut.Key)
		}
		return apperr.Transport("mutate "+mut.Key, err)
	}

	m.revalidate(ctx, mut.Key)

	return nil
}

func (m *Mutator[T]) revalidate(ctx context.Context, key string) {
	revalidated := m.cache.Revalidate(key)
	if !m.opts.awaitRevalidate {
		return
	}

	select {
	case err := <-revalidated:
		if err != nil {
			// The cache keeps the current value and records the error.
			m.logger.Warn("revalidation after mutation failed", zap.String("key", key), zap.Error(err))
		}
	case <-ctx.Done():
	}
}
