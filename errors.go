package didevent

import (
	"errors"
)

var (
	// A mandatory event argument was empty
	ErrMissingArgument = errors.New("missing event argument")

	// An event argument was present but not acceptable
	ErrInvalidArgument = errors.New("invalid event argument")

	// An event ID did not match the grammar expected by its variant
	ErrInvalidIdentifier = errors.New("invalid event identifier")

	// No decoder is registered for the (operation, target) pair
	ErrUnsupportedEvent = errors.New("unsupported event type")

	// The serialized event could not be parsed
	ErrMalformedEvent = errors.New("malformed event")
)

// Error is returned for every event validation failure. The message is stable and
// human-readable; use errors.Is against the sentinel errors above to classify it.
type Error struct {
	kind    error
	message string
}

func newError(kind error, message string) *Error {
	return &Error{kind: kind, message: message}
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) Unwrap() error {
	return e.kind
}

func missingArgs(section string) error {
	return newError(ErrMissingArgument, "Validation failed. "+section+" args are missing")
}
