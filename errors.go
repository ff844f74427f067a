package orange

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling via errors.Is.
var (
	// ErrTypeNotSerializable indicates a value's Kind is unsupported:
	// function values, channels, unsafe pointers, or an opaque untyped
	// pointer with no registered handler.
	ErrTypeNotSerializable = errors.New("type not serializable")

	// ErrUnregisteredType indicates a polymorphic object's runtime type has
	// neither a RegisterType call nor a registered (de)serializer.
	ErrUnregisteredType = errors.New("unregistered runtime type")

	// ErrMalformedArchive indicates the backend found a required element
	// or attribute missing, a duplicate key within a scope, or a primitive
	// literal it could not parse.
	ErrMalformedArchive = errors.New("malformed archive")

	// ErrAPIMisuse indicates a nested deserialize call with no run in
	// progress, or an operation called in a state the state machine
	// forbids (see Serializer.state).
	ErrAPIMisuse = errors.New("serializer API misuse")
)

// SerializationError is the single error type every failure in the engine
// and its archives is reported as, wrapping one of the sentinels above with
// positional context.
type SerializationError struct {
	Err      error  // one of the sentinel errors above
	TypeName string // the Go type name involved, if any
	Key      string // the scope key involved, if any
	ID       int    // the node id involved, or MaxID
	Detail   string // free-text detail (e.g. the offending literal)
}

func (e *SerializationError) Error() string {
	msg := e.Err.Error()
	if e.TypeName != "" {
		msg = fmt.Sprintf("%s: type %s", msg, e.TypeName)
	}
	if e.Key != "" {
		msg = fmt.Sprintf("%s (key %q)", msg, e.Key)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	return msg
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

func newSerializationError(sentinel error, typeName, key string, id int, detail string) *SerializationError {
	return &SerializationError{
		Err:      sentinel,
		TypeName: typeName,
		Key:      key,
		ID:       id,
		Detail:   detail,
	}
}

// defaultErrorCallback is installed on every new Serializer: it raises by
// panicking with the SerializationError, matching the "default callback
// raises" policy in the failure semantics.
func defaultErrorCallback(err error) {
	panic(err)
}

// doNothingErrorCallback swallows the error, letting the caller continue
// with whatever kind-specific default the caller produced before invoking
// the callback.
func doNothingErrorCallback(error) {}
