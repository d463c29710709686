package proxies

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/on-the-ground/proxy_ive_go/proxies/config"
	"github.com/on-the-ground/proxy_ive_go/proxies/descriptor"
	"github.com/on-the-ground/proxy_ive_go/proxies/internal/registry"
	"github.com/on-the-ground/proxy_ive_go/proxies/log"
	"github.com/on-the-ground/proxy_ive_go/proxies/model"
)

type engine struct {
	cfg    config.Config
	logger *zap.Logger
	types  *registry.Registry[*TypeHandle]
}

var (
	engineMu sync.Mutex
	current  *engine
)

type Option func(*engine)

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger *zap.Logger) Option {
	return func(e *engine) {
		e.logger = logger
	}
}

// Init replaces the process-wide engine. Types synthesized by a previous
// engine stay valid but are no longer cached.
func Init(cfg config.Config, opts ...Option) error {
	e, err := newEngine(cfg, opts...)
	if err != nil {
		return err
	}
	engineMu.Lock()
	defer engineMu.Unlock()
	current = e
	return nil
}

// Reset drops the process-wide engine and everything it cached. The next
// synthesis starts a fresh engine from config.Default.
func Reset() error {
	engineMu.Lock()
	defer engineMu.Unlock()
	if current == nil {
		return nil
	}
	err := current.types.Reset()
	_ = current.logger.Sync()
	current = nil
	return err
}

// Logger returns the engine logger.
func Logger() *zap.Logger {
	return get().logger
}

// Define returns the cached type for (strategy, target, source, aux),
// calling build on a miss. build must not call Define.
func Define(
	strategy model.Strategy,
	target *descriptor.Descriptor,
	source reflect.Type,
	aux string,
	build func() (*TypeHandle, error),
) (*TypeHandle, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: nil target descriptor", model.ErrInvalidTarget)
	}
	key := registry.Key{Strategy: strategy, Target: target.ID(), Aux: aux}
	if source != nil {
		key.Source = descriptor.IdentityOf(source)
	}
	h, err := get().types.GetOrDefine(key, build)
	if err != nil {
		return nil, err
	}
	if h == nil || h.strategy != strategy {
		panic(fmt.Errorf("%w: %s resolved to %v", model.ErrInternalInvariant, key, h))
	}
	return h, nil
}

// Defined lists the cached types of one strategy, or of all strategies when
// strategy is empty.
func Defined(strategy model.Strategy) ([]*TypeHandle, error) {
	entries, err := get().types.Entries(strategy)
	if err != nil {
		return nil, err
	}
	out := make([]*TypeHandle, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out, nil
}

func get() *engine {
	engineMu.Lock()
	defer engineMu.Unlock()
	if current == nil {
		e, err := newEngine(config.Default())
		if err != nil {
			panic(fmt.Errorf("%w: default engine: %v", model.ErrInternalInvariant, err))
		}
		current = e
	}
	return current
}

func newEngine(cfg config.Config, opts ...Option) (*engine, error) {
	e := &engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		logger, err := log.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("building logger: %w", err)
		}
		e.logger = logger
	}

	var store registry.Store[*TypeHandle]
	switch cfg.Store {
	case config.StoreMemDB:
		s, err := registry.NewMemDBStore[*TypeHandle]()
		if err != nil {
			return nil, fmt.Errorf("building memdb store: %w", err)
		}
		store = s
	default:
		store = registry.NewMemoryStore[*TypeHandle]()
	}
	e.types = registry.New(store, e.logger)

	e.logger.Info("type synthesis engine initialized",
		zap.String("store", string(cfg.Store)),
		zap.String("log_level", cfg.LogLevel),
	)
	return e, nil
}
