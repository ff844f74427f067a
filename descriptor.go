package orange

import (
	"reflect"
	"sync"
)

// FieldInfo describes one field of a Record or Object, in declaration
// order, as the Type Descriptor is required to expose them.
type FieldInfo struct {
	Name  string       // Go field name, used for lifecycle/error messages
	Key   string        // wire key; defaults to Name
	Type  reflect.Type
	Index []int         // reflect.Value.FieldByIndex path, supports embedding
}

// Descriptor classifies a single reflect.Type and, for the compound kinds,
// supplies the information the Serializer needs to walk it: field lists
// for Record/Object, element/key types for Array/Mapping/Pointer, and the
// base type for an embedded-field inheritance chain.
type Descriptor struct {
	Kind     Kind
	GoType   reflect.Type
	TypeName string

	ElemType reflect.Type // Array, Pointer, Alias(string-base only n/a), Mapping value
	KeyType  reflect.Type // Mapping key

	Fields   []FieldInfo  // Record only; Object fields come from the runtime Record descriptor
	BaseType reflect.Type // non-nil when an anonymous embedded field promotes a base
}

var (
	descriptorCacheMu sync.RWMutex
	descriptorCache   = make(map[reflect.Type]*Descriptor)
)

// describeType classifies t, building and caching a Descriptor.
func describeType(t reflect.Type) *Descriptor {
	descriptorCacheMu.RLock()
	if d, ok := descriptorCache[t]; ok {
		descriptorCacheMu.RUnlock()
		return d
	}
	descriptorCacheMu.RUnlock()

	d := buildDescriptor(t)

	descriptorCacheMu.Lock()
	descriptorCache[t] = d
	descriptorCacheMu.Unlock()

	return d
}

// resetDescriptorCache clears cached Descriptors. Exposed for test
// isolation.
func resetDescriptorCache() {
	descriptorCacheMu.Lock()
	defer descriptorCacheMu.Unlock()
	descriptorCache = make(map[reflect.Type]*Descriptor)
}

func buildDescriptor(t reflect.Type) *Descriptor {
	d := &Descriptor{GoType: t, TypeName: typeRegistryName(t)}

	switch t.Kind() {
	case reflect.Interface:
		d.Kind = KindObject
	case reflect.Ptr:
		d.Kind = KindPointer
		d.ElemType = t.Elem()
	case reflect.Struct:
		d.Kind = KindRecord
		d.Fields, d.BaseType = describeStructFields(t)
	case reflect.Slice, reflect.Array:
		d.Kind = KindArray
		d.ElemType = t.Elem()
	case reflect.Map:
		d.Kind = KindMapping
		d.KeyType = t.Key()
		d.ElemType = t.Elem()
	case reflect.String:
		if t.PkgPath() == "" {
			d.Kind = KindString
		} else {
			d.Kind = KindAlias
		}
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		if t.PkgPath() == "" {
			d.Kind = KindPrimitive
		} else {
			d.Kind = KindEnum
		}
	default:
		d.Kind = KindInvalid
	}

	return d
}
