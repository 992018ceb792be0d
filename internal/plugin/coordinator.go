package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/seantiz/cadence/internal/model"
)

// registration is one handler attached to a key by a named plugin.
type registration struct {
	plugin  string
	handler any
	timeout time.Duration
}

// cleanupEntry pairs a cleanup callback with the plugin that returned it.
type cleanupEntry struct {
	plugin string
	fn     Cleanup
}

// Coordinator owns the handler lists and cleanup callbacks for exactly one
// run. Registration is allowed until the first dispatch; after that the
// handler lists are frozen.
type Coordinator struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]registration
	cleanups []cleanupEntry
	plugins  []string
	timeout  time.Duration
	frozen   bool
	cleaned  bool
}

// NewCoordinator creates an empty coordinator for a single run.
func NewCoordinator(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		logger:   logger,
		handlers: make(map[string][]registration, len(catalog)),
	}
}

// pluginRegistrar is the Registrar handed to one plugin. It records which
// plugin attached each handler.
type pluginRegistrar struct {
	c      *Coordinator
	plugin string
}

func (r *pluginRegistrar) register(key EventKey, handler any) error {
	return r.c.add(r.plugin, key, handler)
}

func (c *Coordinator) add(pluginName string, key EventKey, handler any) error {
	if key == nil || !inCatalog(key) {
		return fmt.Errorf("register %v: %w", key, ErrUnknownKey)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen || c.cleaned {
		return fmt.Errorf("register %s for plugin %q: %w", key.Name(), pluginName, ErrRegistrationClosed)
	}
	c.handlers[key.Name()] = append(c.handlers[key.Name()], registration{plugin: pluginName, handler: handler, timeout: c.timeout})
	return nil
}

// SetHandlerTimeout bounds every handler registered from now on to d, as
// TimeoutVoid, TimeoutTransform and TimeoutPredicate do. Handlers registered
// earlier keep their bound. Zero removes the bound.
func (c *Coordinator) SetHandlerTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
}

// Init runs p.Coordinate with a fresh Context and captures the returned
// cleanup, if any. It must be called for every plugin before the first
// dispatch; afterwards, and after Cleanup, it returns ErrRegistrationClosed
// without calling Coordinate. A logger of nil uses the coordinator's logger.
func Init[O any](ctx context.Context, c *Coordinator, op model.Operation, p Plugin[O], options O, logger *slog.Logger, env model.RunEnvironment) error {
	if !model.ValidOperation(op) {
		return fmt.Errorf("init plugin %q: %w: %q", p.Name(), ErrUnknownOperation, op)
	}
	if logger == nil {
		logger = c.logger
	}

	name := p.Name()
	c.mu.RLock()
	closed := c.frozen || c.cleaned
	c.mu.RUnlock()
	if closed {
		return fmt.Errorf("init plugin %q: %w", name, ErrRegistrationClosed)
	}

	pc := Context[O]{
		Registrar:   &pluginRegistrar{c: c, plugin: name},
		Operation:   op,
		Options:     options,
		Logger:      logger.With("plugin", name),
		Environment: env,
	}

	cleanup, err := p.Coordinate(ctx, pc)
	if err != nil {
		return fmt.Errorf("init plugin %q: %w", name, err)
	}

	c.mu.Lock()
	if c.cleaned {
		c.mu.Unlock()
		return fmt.Errorf("init plugin %q: %w", name, ErrRegistrationClosed)
	}
	c.plugins = append(c.plugins, name)
	if cleanup != nil {
		c.cleanups = append(c.cleanups, cleanupEntry{plugin: name, fn: cleanup})
	}
	c.mu.Unlock()

	c.logger.Debug("plugin initialized", "plugin", name, "operation", string(op), "cleanup", cleanup != nil)
	return nil
}

// snapshot freezes registration and returns the handlers attached to key.
func (c *Coordinator) snapshot(key EventKey) ([]registration, error) {
	if key == nil || !inCatalog(key) {
		return nil, fmt.Errorf("dispatch %v: %w", key, ErrUnknownKey)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.frozen = true
	dispatchTotal.WithLabelValues(key.Name(), key.Kind().String()).Inc()
	return c.handlers[key.Name()], nil
}

// Emit invokes every handler attached to key with value, in registration
// order. The first handler error stops the remaining handlers for this call.
func Emit[V any](ctx context.Context, c *Coordinator, key VoidKey[V], value V) error {
	regs, err := c.snapshot(key)
	if err != nil {
		return err
	}
	for i, reg := range regs {
		h, ok := reg.handler.(VoidHandler[V])
		if !ok {
			return mismatch(key, i, reg)
		}
		if reg.timeout > 0 {
			h = TimeoutVoid(reg.timeout, h)
		}
		start := time.Now()
		err := h(ctx, value)
		observe(key, start, err)
		if err != nil {
			return handlerError(key, i, reg, err)
		}
	}
	return nil
}

// Transform threads value through every handler attached to key. Each handler
// sees the output of the one before it; an Unchanged result carries the
// current value forward. The value after the last handler is returned.
func Transform[V any](ctx context.Context, c *Coordinator, key TransformKey[V], value V) (V, error) {
	regs, err := c.snapshot(key)
	if err != nil {
		return value, err
	}
	current := value
	for i, reg := range regs {
		h, ok := reg.handler.(TransformHandler[V])
		if !ok {
			return current, mismatch(key, i, reg)
		}
		if reg.timeout > 0 {
			h = TimeoutTransform(reg.timeout, h)
		}
		start := time.Now()
		res, err := h(ctx, current)
		observe(key, start, err)
		if err != nil {
			return current, handlerError(key, i, reg, err)
		}
		current = res.apply(current)
	}
	return current, nil
}

// Predicate asks each handler attached to key in turn and returns true at the
// first true answer without consulting the rest. It returns false when every
// handler answers false or none are attached.
func Predicate[V any](ctx context.Context, c *Coordinator, key PredicateKey[V], value V) (bool, error) {
	regs, err := c.snapshot(key)
	if err != nil {
		return false, err
	}
	for i, reg := range regs {
		h, ok := reg.handler.(PredicateHandler[V])
		if !ok {
			return false, mismatch(key, i, reg)
		}
		if reg.timeout > 0 {
			h = TimeoutPredicate(reg.timeout, h)
		}
		start := time.Now()
		vote, err := h(ctx, value)
		observe(key, start, err)
		if err != nil {
			return false, handlerError(key, i, reg, err)
		}
		if vote {
			return true, nil
		}
	}
	return false, nil
}

// Cleanup runs every captured cleanup callback once, in plugin initialization
// order. A failing cleanup does not stop the others; all failures are
// combined into the returned error. Handlers are released afterwards and
// further calls are no-ops.
func (c *Coordinator) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	if c.cleaned {
		c.mu.Unlock()
		return nil
	}
	c.cleaned = true
	cleanups := c.cleanups
	c.cleanups = nil
	c.handlers = make(map[string][]registration)
	c.mu.Unlock()

	var errs error
	for _, entry := range cleanups {
		if err := entry.fn(ctx); err != nil {
			cleanupFailuresTotal.Inc()
			c.logger.Error("plugin cleanup failed", "plugin", entry.plugin, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("cleanup plugin %q: %w", entry.plugin, err))
		}
	}
	return errs
}

// HandlerCount returns how many handlers are attached to key.
func (c *Coordinator) HandlerCount(key EventKey) int {
	if key == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handlers[key.Name()])
}

// Plugins returns the names of initialized plugins in initialization order.
func (c *Coordinator) Plugins() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.plugins))
	copy(out, c.plugins)
	return out
}

func mismatch(key EventKey, i int, reg registration) error {
	return fmt.Errorf("%s handler %d from plugin %q (%T): %w", key.Name(), i, reg.plugin, reg.handler, ErrKindMismatch)
}

func handlerError(key EventKey, i int, reg registration, err error) error {
	return fmt.Errorf("%s handler %d from plugin %q: %w", key.Name(), i, reg.plugin, err)
}
