package orange

// Serializable lets a type bypass the reflection-based field walk entirely
// and own its own wire representation. When a value implements Serializable
// the engine calls ToData/FromData instead of enumerating fields.
type Serializable interface {
	// ToData is called with the Serializer positioned to archive the
	// receiver under key; the method is free to call s.Serialize on its
	// own fields.
	ToData(s *Serializer, key string) error
}

// DeserializableFrom is the read-side half of Serializable. It is a
// separate interface (rather than a second method on Serializable) because
// the receiver for deserialization must be addressable.
type DeserializableFrom interface {
	FromData(s *Serializer, key string) error
}

// Lifecycle hook capabilities. A type implements whichever subset is
// relevant; the engine queries for each via a type assertion around every
// record/object (de)serialization action, per the Descriptor's job of
// reporting "optional lifecycle hook names" in language-neutral terms.
type (
	// OnSerializingHook fires immediately before a record/object is walked
	// for serialization.
	OnSerializingHook interface{ OnSerializing() }

	// OnSerializedHook fires immediately after.
	OnSerializedHook interface{ OnSerialized() }

	// OnDeserializingHook fires immediately before a record/object's
	// fields are populated during deserialization.
	OnDeserializingHook interface{ OnDeserializing() }

	// OnDeserializedHook fires immediately after.
	OnDeserializedHook interface{ OnDeserialized() }
)

// nonSerializedTag is the struct tag the descriptor scans for to exclude
// a field from the reflection-based walk: `orange:"-"`.
const nonSerializedTag = "orange"

// nonSerializedValue is the tag value that marks a field skipped.
const nonSerializedValue = "-"
