package plugin

import "errors"

var (
	// ErrRegistrationClosed is returned when a handler is registered after
	// dispatch has started or after cleanup.
	ErrRegistrationClosed = errors.New("handler registration is closed")

	// ErrKindMismatch is returned when a stored handler does not match the
	// semantics kind or value type of the key it is dispatched through.
	ErrKindMismatch = errors.New("handler does not match event kind")

	// ErrUnknownOperation is returned by Init for an unrecognized operation.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrUnknownKey is returned when registering against a key outside the catalog.
	ErrUnknownKey = errors.New("unknown event key")

	// ErrNilHandler is returned when registering a nil handler.
	ErrNilHandler = errors.New("handler is nil")
)
