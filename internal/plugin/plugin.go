package plugin

import (
	"context"
	"log/slog"

	"github.com/seantiz/cadence/internal/model"
)

// Cleanup releases whatever a plugin acquired during Coordinate. It runs once,
// at the end of the run.
type Cleanup func(ctx context.Context) error

// Plugin is a unit of extension initialized once per run. O is the type of
// options the plugin is configured with.
type Plugin[O any] interface {
	// Name identifies the plugin in logs, metrics and errors.
	Name() string

	// Coordinate registers the plugin's handlers through pc and optionally
	// returns a cleanup callback. An error aborts the run's setup.
	Coordinate(ctx context.Context, pc Context[O]) (Cleanup, error)
}

// CoordinateFunc adapts a function to the Coordinate half of Plugin.
type CoordinateFunc[O any] func(ctx context.Context, pc Context[O]) (Cleanup, error)

type funcPlugin[O any] struct {
	name string
	fn   CoordinateFunc[O]
}

// New returns a Plugin named name whose Coordinate calls fn.
func New[O any](name string, fn CoordinateFunc[O]) Plugin[O] {
	return &funcPlugin[O]{name: name, fn: fn}
}

func (p *funcPlugin[O]) Name() string { return p.name }

func (p *funcPlugin[O]) Coordinate(ctx context.Context, pc Context[O]) (Cleanup, error) {
	if p.fn == nil {
		return nil, nil
	}
	return p.fn(ctx, pc)
}

// Registrar is the only capability a plugin gets over the coordinator:
// attaching handlers with OnVoid, OnTransform and OnPredicate.
type Registrar interface {
	register(key EventKey, handler any) error
}

// Context is passed to Plugin.Coordinate.
type Context[O any] struct {
	Registrar

	Operation   model.Operation
	Options     O
	Logger      *slog.Logger
	Environment model.RunEnvironment
}

// OnVoid attaches h to a notification point.
func OnVoid[V any](r Registrar, key VoidKey[V], h VoidHandler[V]) error {
	if h == nil {
		return ErrNilHandler
	}
	return r.register(key, h)
}

// OnTransform attaches h to a transform pipeline. Handlers run in the order
// they were attached.
func OnTransform[V any](r Registrar, key TransformKey[V], h TransformHandler[V]) error {
	if h == nil {
		return ErrNilHandler
	}
	return r.register(key, h)
}

// OnPredicate attaches h to a decision point.
func OnPredicate[V any](r Registrar, key PredicateKey[V], h PredicateHandler[V]) error {
	if h == nil {
		return ErrNilHandler
	}
	return r.register(key, h)
}
