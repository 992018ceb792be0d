package plugin

import (
	"context"
	"time"
)

// VoidHandler observes a notification. Its error aborts the Emit call it was
// invoked from.
type VoidHandler[V any] func(ctx context.Context, value V) error

// TransformHandler receives the current pipeline value and returns either a
// replacement or Unchanged.
type TransformHandler[V any] func(ctx context.Context, value V) (Result[V], error)

// PredicateHandler votes on a decision. The first true vote wins.
type PredicateHandler[V any] func(ctx context.Context, value V) (bool, error)

// Result is the outcome of one transform step. The zero Result means
// "no change"; use Replace to substitute a value.
type Result[V any] struct {
	value   V
	changed bool
}

// Replace returns a Result that replaces the pipeline value with v, even when
// v is empty.
func Replace[V any](v V) Result[V] {
	return Result[V]{value: v, changed: true}
}

// Unchanged returns a Result that passes the pipeline value through.
func Unchanged[V any]() Result[V] {
	return Result[V]{}
}

// Changed reports whether the result replaces the pipeline value.
func (r Result[V]) Changed() bool { return r.changed }

// Value returns the replacement value. It is the zero V when !Changed().
func (r Result[V]) Value() V { return r.value }

// apply returns the value carried into the next step.
func (r Result[V]) apply(current V) V {
	if !r.changed {
		return current
	}
	return r.value
}

// TimeoutVoid bounds h to d. A handler still running at the deadline is
// dropped: the notification counts as delivered and its eventual result is
// ignored.
func TimeoutVoid[V any](d time.Duration, h VoidHandler[V]) VoidHandler[V] {
	return func(ctx context.Context, value V) error {
		_, err := race(ctx, d, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, h(ctx, value)
		})
		return err
	}
}

// TimeoutTransform bounds h to d. A late handler is treated as Unchanged.
func TimeoutTransform[V any](d time.Duration, h TransformHandler[V]) TransformHandler[V] {
	return func(ctx context.Context, value V) (Result[V], error) {
		return race(ctx, d, func(ctx context.Context) (Result[V], error) {
			return h(ctx, value)
		})
	}
}

// TimeoutPredicate bounds h to d. A late handler is treated as voting false.
func TimeoutPredicate[V any](d time.Duration, h PredicateHandler[V]) PredicateHandler[V] {
	return func(ctx context.Context, value V) (bool, error) {
		return race(ctx, d, func(ctx context.Context) (bool, error) {
			return h(ctx, value)
		})
	}
}

// race runs fn against a timer. When the timer wins it returns the zero T and
// a nil error; the goroutine finishes into a buffered channel nobody reads.
// Cancellation of the parent context is reported as an error.
func race[T any](parent context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}

	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()

	var zero T
	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		if err := parent.Err(); err != nil {
			return zero, err
		}
		handlerTimeoutsTotal.Inc()
		return zero, nil
	}
}
