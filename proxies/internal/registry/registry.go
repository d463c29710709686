// Package registry is the process-wide memo of synthesized types.
//
// Definition is guarded by one mutex so that racing callers asking for the
// same key observe a single published value: the first caller defines it,
// the others reuse it. A failed definition publishes nothing.
package registry

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/on-the-ground/proxy_ive_go/proxies/model"
)

type Registry[V any] struct {
	mu     sync.Mutex
	store  Store[V]
	logger *zap.Logger
}

func New[V any](store Store[V], logger *zap.Logger) *Registry[V] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry[V]{store: store, logger: logger}
}

// GetOrDefine returns the value published under key, calling define at most
// once per key for the lifetime of the registry. define runs under the
// registry lock and must not call back into the registry.
func (r *Registry[V]) GetOrDefine(key Key, define func() (V, error)) (V, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero V
	v, ok, err := r.store.Load(key)
	if err != nil {
		return zero, fmt.Errorf("loading %s: %w", key, err)
	}
	if ok {
		return v, nil
	}

	v, err = define()
	if err != nil {
		r.logger.Debug("synthesis failed",
			zap.Stringer("strategy", key.Strategy),
			zap.String("key", key.String()),
			zap.Error(err),
		)
		return zero, err
	}

	inserted, err := r.store.InsertIfAbsent(key, v)
	if err != nil {
		return zero, fmt.Errorf("publishing %s: %w", key, err)
	}
	if !inserted {
		panic(fmt.Errorf("%w: %s published twice under the registry lock", model.ErrInternalInvariant, key))
	}
	r.logger.Debug("defined synthesized type",
		zap.Stringer("strategy", key.Strategy),
		zap.String("key", key.String()),
	)
	return v, nil
}

// Entries lists published values; an empty strategy lists all of them.
func (r *Registry[V]) Entries(strategy model.Strategy) ([]Entry[V], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Entries(strategy)
}

// Reset drops every published value. Only meant for tests and shutdown.
func (r *Registry[V]) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger.Info("resetting type registry")
	return r.store.Reset()
}
