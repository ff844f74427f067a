package orange

import (
	"reflect"
	"time"
)

// state tracks where a Serializer sits in the lifecycle described by the
// engine's state machine: idle between runs, serializing or deserializing
// while one is in progress. Nested calls (a custom ToData/FromData hook
// calling back into the same Serializer) are legal only from the matching
// in-progress state.
type state int

const (
	stateIdle state = iota
	stateSerializing
	stateDeserializing
)

// Serializer is the engine: it walks a Go value with reflection, guided by
// Descriptors, and drives an Archive backend to record or reconstruct it.
// A Serializer is single-threaded and not safe for concurrent use; run one
// per goroutine, or serialize access externally.
type Serializer struct {
	archive Archive
	errorCB ErrorCallback

	state    state
	lastMode state // the mode of the previous run, to detect a mode switch

	tr *tracker

	customSerializers   map[string]func(s *Serializer, value any, key string) error
	customDeserializers map[string]func(s *Serializer, out reflect.Value, key string) error
}

// New builds a Serializer over the given Archive backend. The default error
// callback raises; call SetDoNothingOnErrorCallback to swallow errors and
// continue with kind-specific defaults instead.
func New(archive Archive) *Serializer {
	s := &Serializer{
		archive:             archive,
		errorCB:             defaultErrorCallback,
		tr:                  newTracker(),
		customSerializers:   make(map[string]func(s *Serializer, value any, key string) error),
		customDeserializers: make(map[string]func(s *Serializer, out reflect.Value, key string) error),
	}
	archive.SetErrorCallback(func(err error) { s.fail(err) })
	return s
}

// fail routes a structural failure through the installed ErrorCallback,
// after emitting the observability event every failure produces regardless
// of how the callback handles it.
func (s *Serializer) fail(err error) {
	emitErrorCallback(err)
	s.errorCB(err)
}

// SetErrorCallback installs a custom callback, replacing the default
// panic-and-unwind behavior.
func (s *Serializer) SetErrorCallback(cb ErrorCallback) { s.errorCB = cb }

// SetThrowOnErrorCallback restores the default behavior: every structural
// failure panics with its *SerializationError, which Serialize/Deserialize
// recover into a returned error.
func (s *Serializer) SetThrowOnErrorCallback() { s.errorCB = defaultErrorCallback }

// SetDoNothingOnErrorCallback installs a callback that swallows the error;
// the run continues, filling in a kind-specific default (a zero value, a
// null node, a skipped field) at the failing position.
func (s *Serializer) SetDoNothingOnErrorCallback() { s.errorCB = doNothingErrorCallback }

// ErrorCallback returns the currently installed callback.
func (s *Serializer) ErrorCallback() ErrorCallback { return s.errorCB }

// RegisterSerializer installs a callback that takes over serialization of
// every value whose runtime type name matches typeName, bypassing both the
// Serializable capability and the reflection field walk.
func (s *Serializer) RegisterSerializer(typeName string, cb func(s *Serializer, value any, key string) error) {
	s.customSerializers[typeName] = cb
}

// RegisterDeserializer is the read-side counterpart of RegisterSerializer.
// out is addressable and already allocated to the target type; the callback
// is responsible for populating it.
func (s *Serializer) RegisterDeserializer(typeName string, cb func(s *Serializer, out reflect.Value, key string) error) {
	s.customDeserializers[typeName] = cb
}

// Reset clears the identity tables and id/key counters and returns the
// Serializer to idle, independent of a mode switch. Archive state itself is
// not retained between runs; BeginArchiving/BeginUnarchiving start fresh.
func (s *Serializer) Reset() {
	s.tr.reset()
	s.state = stateIdle
	s.lastMode = stateIdle
}

// recoverInto turns a panic raised by the default error callback into a
// returned error, so the common case is ordinary Go error handling; a
// custom callback that panics with something other than an error escapes
// unchanged, since that is the caller's own choice.
func recoverInto(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok {
		*err = e
		return
	}
	panic(r)
}

// Serialize walks value and returns the finished document. key names the
// root position; an empty key gets a synthetic one. Serialize always starts a
// new run: called while a run is in progress (for instance from inside a
// custom ToData hook) it archives nothing and returns an ErrAPIMisuse error.
// SerializeField is the call that recurses into the run in progress.
func (s *Serializer) Serialize(value any, key string) (data []byte, err error) {
	if s.state != stateIdle {
		return nil, newSerializationError(ErrAPIMisuse, "", key, MaxID, "Serialize called while a run is already in progress")
	}
	defer recoverInto(&err)

	if s.lastMode == stateDeserializing {
		s.tr.reset()
	}
	s.lastMode = stateSerializing
	s.state = stateSerializing
	defer func() { s.state = stateIdle }()

	if key == "" {
		key = s.tr.allocKey()
	}

	typeName := ""
	rv := reflect.ValueOf(value)
	if rv.IsValid() {
		typeName = rv.Type().String()
	}
	emitSerializeStart(typeName)
	start := time.Now()

	s.archive.BeginArchiving()

	if !rv.IsValid() {
		s.archive.ArchiveNull("", key)
	} else {
		s.archiveValue(rv, rv.Type(), key)
	}

	s.runSerializePostProcess()

	data, err = s.archive.UntypedData()
	emitSerializeComplete(typeName, time.Since(start), s.tr.nextID, err)
	return data, err
}

// SerializeField serializes value under key as one position within an
// already-running serialize pass; it is how a custom Serializable.ToData
// hook (or a RegisterSerializer callback) recurses into its own fields.
func (s *Serializer) SerializeField(value any, key string) (err error) {
	if s.state != stateSerializing {
		return newSerializationError(ErrAPIMisuse, "", key, MaxID, "SerializeField called outside an active serialize run")
	}
	if key == "" {
		key = s.tr.allocKey()
	}
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		s.archive.ArchiveNull("", key)
		return nil
	}
	s.archiveValue(rv, rv.Type(), key)
	return nil
}

// SerializeBase walks value's anonymous embedded base field, if it has one,
// under the fixed base-class position; it is a no-op at the root of an
// inheritance chain. Call it from a Serializable.ToData hook that wants the
// default base-walk behavior for the portion it does not own.
func (s *Serializer) SerializeBase(value any) error {
	if s.state != stateSerializing {
		return newSerializationError(ErrAPIMisuse, "", "", MaxID, "SerializeBase called outside an active serialize run")
	}
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return nil
	}
	d := describeType(rv.Type())
	if d.BaseType == nil {
		return nil
	}
	base := findAnonymousField(rv, d.BaseType)
	id := s.tr.allocID()
	s.archive.ArchiveBaseClass(d.BaseType.String(), baseClassKey, id, func() {
		s.archiveRecordFields(base, d.BaseType, id)
	})
	return nil
}

// Deserialize reconstructs a T from data. key names the root position. Pass
// nil data to use the nested form from inside a custom FromData hook or
// RegisterDeserializer callback, reusing the archive already being read by
// the enclosing Deserialize call; key is then required.
func Deserialize[T any](s *Serializer, data []byte, key string) (result T, err error) {
	if s.state == stateIdle {
		defer recoverInto(&err)

		if s.lastMode == stateSerializing {
			s.tr.reset()
		}
		s.lastMode = stateDeserializing
		s.state = stateDeserializing
		defer func() { s.state = stateIdle }()

		typeName := reflect.TypeFor[T]().String()
		emitDeserializeStart(typeName)
		start := time.Now()

		if beginErr := s.archive.BeginUnarchiving(data); beginErr != nil {
			s.fail(beginErr)
			emitDeserializeComplete(typeName, time.Since(start), beginErr)
			return result, nil
		}

		if key == "" {
			key = s.tr.allocKey()
		}

		rt := reflect.TypeFor[T]()
		rv := reflect.New(rt).Elem()
		s.unarchiveValue(rv, rt, key)

		s.runDeserializePostProcess()

		emitDeserializeComplete(typeName, time.Since(start), nil)
		return rv.Interface().(T), nil
	}

	if s.state != stateDeserializing {
		err = newSerializationError(ErrAPIMisuse, "", key, MaxID, "Deserialize called mid-serialize")
		s.fail(err)
		return result, err
	}
	if key == "" {
		err = newSerializationError(ErrAPIMisuse, "", key, MaxID, "nested Deserialize requires an explicit key")
		s.fail(err)
		return result, err
	}

	rt := reflect.TypeFor[T]()
	rv := reflect.New(rt).Elem()
	s.unarchiveValue(rv, rt, key)
	return rv.Interface().(T), nil
}

// DeserializeBase is the read-side counterpart of SerializeBase: it
// populates value's anonymous embedded base field from the fixed
// base-class position, if value's type has one.
func (s *Serializer) DeserializeBase(value any) error {
	if s.state != stateDeserializing {
		return newSerializationError(ErrAPIMisuse, "", "", MaxID, "DeserializeBase called outside an active deserialize run")
	}
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || rv.Kind() != reflect.Ptr || rv.IsNil() {
		return newSerializationError(ErrAPIMisuse, "", "", MaxID, "DeserializeBase requires a non-nil pointer")
	}
	elem := rv.Elem()
	d := describeType(elem.Type())
	if d.BaseType == nil {
		return nil
	}
	baseField := findAnonymousField(elem, d.BaseType)
	return s.archive.UnarchiveBaseClass(baseClassKey, func() error {
		s.unarchiveFieldsInto(baseField, d.BaseType)
		return nil
	})
}

// baseClassKey is the fixed wire position an embedded inheritance base is
// archived under, matching how ArchiveBaseClass/UnarchiveBaseClass address
// it regardless of the derived type's own field keys.
const baseClassKey = "base"
