package orange

import (
	"reflect"

	"github.com/zoobzio/sentinel"
)

// Descriptor's field enumeration leans on an external reflection library
// to enumerate the fields of user types rather than hand-rolling one:
// github.com/zoobzio/sentinel.
//
// DescribeStructOf primes both sentinel's own registry and this package's
// Descriptor cache for T in one call, picking up sentinel's tag scanning
// (including the "orange" skip tag) along the way. Call it from an init
// function for every Record/Object type you serialize, the same way
// RegisterType primes the polymorphic type registry.
func DescribeStructOf[T any]() {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		return
	}
	spec := sentinel.Scan[T]()
	fields, base := fieldsFromSentinel(spec, t)
	descriptorCacheMu.Lock()
	descriptorCache[t] = &Descriptor{
		Kind:     KindRecord,
		GoType:   t,
		TypeName: typeRegistryName(t),
		Fields:   fields,
		BaseType: base,
	}
	descriptorCacheMu.Unlock()
}

func init() {
	sentinel.Tag(nonSerializedTag)
}

// describeStructFields enumerates a struct's serializable fields in
// declaration order, preferring a previously primed sentinel.Metadata
// (via DescribeStructOf or another package's sentinel.Scan of the same
// type) and falling back to a direct reflect walk when none is cached —
// the same two-tier lookup nested struct types get when they were never
// scanned at the top level.
func describeStructFields(t reflect.Type) ([]FieldInfo, reflect.Type) {
	if spec, ok := sentinel.Lookup(t.String()); ok {
		return fieldsFromSentinel(spec, t)
	}
	return fieldsFromReflect(t)
}

// fieldsFromSentinel converts sentinel's field metadata into FieldInfo,
// honoring the "orange:\"-\"" non-serialized annotation and surfacing the
// first anonymous embedded struct field as the inheritance base rather
// than as an ordinary field.
func fieldsFromSentinel(spec sentinel.Metadata, t reflect.Type) ([]FieldInfo, reflect.Type) {
	var fields []FieldInfo
	var base reflect.Type

	for _, f := range spec.Fields {
		if val, ok := f.Tags[nonSerializedTag]; ok && val == nonSerializedValue {
			continue
		}
		sf, ok := fieldByIndexSafe(t, f.Index)
		if !ok {
			continue
		}
		if sf.Anonymous && base == nil && sf.Type.Kind() == reflect.Struct {
			base = sf.Type
			continue
		}
		fields = append(fields, FieldInfo{
			Name:  f.Name,
			Key:   f.Name,
			Type:  sf.Type,
			Index: append([]int{}, f.Index...),
		})
	}

	return fields, base
}

// fieldsFromReflect builds FieldInfo directly via reflect, used when no
// sentinel.Metadata has been primed for t.
func fieldsFromReflect(t reflect.Type) ([]FieldInfo, reflect.Type) {
	var fields []FieldInfo
	var base reflect.Type

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if tag, ok := sf.Tag.Lookup(nonSerializedTag); ok && tag == nonSerializedValue {
			continue
		}
		if sf.Anonymous && base == nil && sf.Type.Kind() == reflect.Struct {
			base = sf.Type
			continue
		}
		if !sf.IsExported() {
			continue
		}
		fields = append(fields, FieldInfo{
			Name:  sf.Name,
			Key:   sf.Name,
			Type:  sf.Type,
			Index: append([]int{}, sf.Index...),
		})
	}

	return fields, base
}

func fieldByIndexSafe(t reflect.Type, index []int) (reflect.StructField, bool) {
	defer func() { recover() }() //nolint:errcheck // FieldByIndex panics on a stale index path
	if len(index) == 0 {
		return reflect.StructField{}, false
	}
	return t.FieldByIndex(index), true
}
