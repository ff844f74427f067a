package orange

// MaxID is the sentinel identifier meaning "no id" — used for pointers that
// target nothing (nil) and for lookups that miss.
const MaxID = int(^uint(0) >> 1)

// ArrayRecord captures the backing storage of an archived array or string:
// enough to detect, during post-processing, whether some other archived
// array is actually a slice sharing storage with this one.
type ArrayRecord struct {
	// Base is a stable identity for the backing buffer: for slices, the
	// address of element zero; for strings, the address of the first byte.
	Base uintptr

	// Len is the element count.
	Len int

	// ElemSize is the size in bytes of one element (1 for strings).
	ElemSize uintptr
}

// contains reports whether other is a sub-range of the same backing buffer
// as r, per the slice-detection rule in the Identity & Alias Tracker:
// same element size, r's range strictly contains other's, and they are not
// the same array.
func (r ArrayRecord) contains(other ArrayRecord) bool {
	if r.ElemSize != other.ElemSize || r.ElemSize == 0 {
		return false
	}
	if r == other {
		return false
	}
	rEnd := r.Base + r.ElemSize*uintptr(r.Len)
	otherEnd := other.Base + other.ElemSize*uintptr(other.Len)
	return r.Base <= other.Base && otherEnd <= rEnd
}

// Slice describes a sub-range of a parent array, relative to the parent's
// Id: the parent is not repeated, only named.
type Slice struct {
	ParentID int
	Offset   int // in elements
	Length   int // in elements
}

// ErrorCallback is invoked whenever the engine or an Archive detects a
// structural failure. The default callback raises; a no-op callback lets
// the caller continue with a kind-specific default.
type ErrorCallback func(err error)

// Archive is the narrow contract between the Serializer engine and a
// pluggable document backend. Every opener is "scoped": it runs inner with
// the archive positioned inside the newly opened node, and restores the
// enclosing position on every exit path, including a panic propagating
// through inner (see the reference xml backend for the canonical
// implementation of this guarantee).
type Archive interface {
	// --- emitting side ---

	// BeginArchiving resets the archive to start recording a fresh
	// document. Called once at the start of every Serialize call.
	BeginArchiving()

	ArchivePrimitive(value any, typeName string, key string, id int)
	ArchiveString(value string, key string, id int)
	ArchiveEnum(value any, typeName string, key string, id int)
	ArchiveNull(typeName string, key string)
	ArchiveReference(key string, targetID int)

	// ArchiveArray opens an array node; inner is called once per element,
	// with the archive positioned to receive that element's own archive
	// call. The ArrayRecord used for slice detection is computed by the
	// engine directly from the Go value, not by the backend.
	ArchiveArray(elemTypeName string, key string, id int, length int, inner func())

	ArchiveAssociativeArray(keyTypeName, valueTypeName string, length int, key string, id int, inner func())
	ArchiveAssociativeArrayKey(entryKey string, inner func())
	ArchiveAssociativeArrayValue(entryKey string, inner func())

	ArchiveStruct(typeName string, key string, id int, inner func())
	ArchiveObject(runtimeType, staticType string, key string, id int, inner func())
	ArchiveBaseClass(typeName string, key string, id int, inner func())

	ArchivePointer(key string, id int, inner func())
	// ArchivePointerToValue records, during post-processing, that the
	// pointer identified by pointerID targets the value already archived
	// as targetID/targetKey.
	ArchivePointerToValue(targetID int, targetKey string, pointerID int)

	ArchiveTypedef(typeName string, key string, id int, inner func())

	// ArchiveSlice retroactively turns the array/string already archived as
	// sliceID into a slice annotation over s.ParentID's backing storage.
	ArchiveSlice(s Slice, sliceID int)

	// PostProcessArray confirms that id did not turn out to be a slice of
	// another array: the backend may need to do nothing, since the full
	// node was already emitted during the main pass.
	PostProcessArray(id int)
	// PostProcessPointer confirms that id's pointer target was never
	// archived as a value (dangling, in-memory-only edge).
	PostProcessPointer(id int)

	// UntypedData returns the finished document.
	UntypedData() ([]byte, error)

	// --- reading side ---

	BeginUnarchiving(data []byte) error

	UnarchivePrimitive(key string, out any) error
	UnarchiveString(key string) (string, int, error)
	UnarchiveEnum(key string, out any) error
	// UnarchiveNull reports whether the node at key is a null marker (a nil
	// pointer, map, or interface archived via ArchiveNull).
	UnarchiveNull(key string) (bool, error)
	UnarchiveReference(key string) (int, bool, error)
	// UnarchiveSlice reports whether the node at key is a slice annotation
	// rather than a regular array/string node; ok is false when it is not,
	// letting the caller fall back to UnarchiveArray/UnarchiveString.
	UnarchiveSlice(key string) (s Slice, ownID int, ok bool, err error)

	// UnarchiveArray positions the archive inside the array node named key,
	// reports its length and id, and calls inner once per element in
	// order; inner is responsible for reading each element's own node.
	UnarchiveArray(key string) (length int, id int, inner func(each func(elementKey string) error) error, err error)

	UnarchiveAssociativeArray(key string) (length int, id int, inner func(each func(entryKey string) error) error, err error)
	UnarchiveAssociativeArrayKey(entryKey string, inner func() error) error
	UnarchiveAssociativeArrayValue(entryKey string, inner func() error) error

	// UnarchiveStruct positions the archive inside the struct/object node
	// named key and calls inner with the archive so positioned. It reports
	// the runtime type name carried by object nodes (empty for plain
	// structs) and the node's id (MaxID if the node carries none).
	UnarchiveStruct(key string) (runtimeType string, id int, inner func(func() error) error, err error)

	UnarchiveBaseClass(key string, inner func() error) error

	// UnarchivePointer reports whether the pointer node named key is null;
	// if not, inner is invoked with the archive positioned at the pointee.
	UnarchivePointer(key string) (id int, isNull bool, inner func(func() error) error, err error)

	UnarchiveTypedef(key string, inner func() error) error

	// SetErrorCallback installs the callback the archive invokes when a
	// structural expectation fails (missing node, duplicate key, bad
	// literal). The engine installs this before use.
	SetErrorCallback(cb ErrorCallback)
}
