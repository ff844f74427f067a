package orange

import (
	"reflect"
	"strconv"
	"unsafe"
)

// identityAddr returns the stable address backing rv's storage, or 0 if rv
// has none (an unaddressable value, a nil reference, a non-pointer value
// behind an interface). 0 means the value is never deduplicated.
func identityAddr(rv reflect.Value) uintptr {
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.UnsafePointer:
		if rv.IsNil() {
			return 0
		}
		return rv.Pointer()
	case reflect.Array:
		if rv.CanAddr() {
			return rv.Addr().Pointer()
		}
		return 0
	case reflect.Interface:
		if rv.IsNil() {
			return 0
		}
		return identityAddr(rv.Elem())
	case reflect.String:
		s := rv.String()
		if len(s) == 0 {
			return 0
		}
		return uintptr(unsafe.Pointer(unsafe.StringData(s)))
	default:
		return 0
	}
}

// arrayRecordOf computes the ArrayRecord for a slice, fixed array, or
// string value, used by the slice-detection pass. The engine computes this
// directly from the Go value; no backend is involved.
func arrayRecordOf(rv reflect.Value, elemSize uintptr) ArrayRecord {
	return ArrayRecord{Base: identityAddr(rv), Len: rv.Len(), ElemSize: elemSize}
}

// underlyingPrimitiveValue strips a named type down to the plain Go value
// archive backends encode, so Enum/Alias kinds carry a typeName separately
// from an ordinary scalar.
func underlyingPrimitiveValue(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Complex64, reflect.Complex128:
		return rv.Complex()
	case reflect.String:
		return rv.String()
	default:
		return rv.Interface()
	}
}

// setPrimitive writes a decoded scalar literal back into rv. Archive
// backends hand scalars back as their textual form (or, for a backend with
// a native numeric wire type, as a value already convertible via reflect);
// this accepts either.
func (s *Serializer) setPrimitive(rv reflect.Value, out any, typeName string, key string, id int) {
	if str, isString := out.(string); isString && rv.Kind() != reflect.String {
		if err := setPrimitiveFromText(rv, str); err != nil {
			s.fail(newSerializationError(ErrMalformedArchive, typeName, key, id, err.Error()))
		}
		return
	}

	ov := reflect.ValueOf(out)
	if !ov.IsValid() {
		return
	}
	if ov.Type().ConvertibleTo(rv.Type()) {
		rv.Set(ov.Convert(rv.Type()))
		return
	}
	s.fail(newSerializationError(ErrMalformedArchive, typeName, key, id, "primitive literal does not match field type"))
}

// setPrimitiveFromText parses a scalar's textual wire form into rv,
// following the same native-type mapping underlyingPrimitiveValue uses on
// the way out.
func setPrimitiveFromText(rv reflect.Value, text string) error {
	switch rv.Kind() {
	case reflect.String:
		rv.SetString(text)
	case reflect.Bool:
		v, err := strconv.ParseBool(text)
		if err != nil {
			return err
		}
		rv.SetBool(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return err
		}
		rv.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		v, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return err
		}
		rv.SetUint(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return err
		}
		rv.SetFloat(v)
	case reflect.Complex64, reflect.Complex128:
		v, err := strconv.ParseComplex(text, 128)
		if err != nil {
			return err
		}
		rv.SetComplex(v)
	default:
		return ErrMalformedArchive
	}
	return nil
}

// --- serialize side ---

// archiveValue is the core dispatch: classify staticType's Kind and write
// rv under key.
func (s *Serializer) archiveValue(rv reflect.Value, staticType reflect.Type, key string) {
	d := describeType(staticType)

	switch d.Kind {
	case KindInvalid:
		s.fail(newSerializationError(ErrTypeNotSerializable, staticType.String(), key, MaxID, ""))
		s.archive.ArchiveNull(staticType.String(), key)

	case KindPrimitive:
		s.archive.ArchivePrimitive(underlyingPrimitiveValue(rv), d.TypeName, key, s.tr.allocID())

	case KindEnum:
		s.archive.ArchiveEnum(underlyingPrimitiveValue(rv), d.TypeName, key, s.tr.allocID())

	case KindAlias:
		id := s.tr.allocID()
		s.archive.ArchiveTypedef(d.TypeName, key, id, func() {
			s.archive.ArchivePrimitive(underlyingPrimitiveValue(rv), "string", key, id)
		})

	case KindString:
		s.archiveString(rv, key)

	case KindArray:
		s.archiveArray(rv, d, key)

	case KindMapping:
		s.archiveMapping(rv, d, key)

	case KindRecord:
		s.archiveRecord(rv, staticType, d, key)

	case KindObject:
		s.archiveObject(rv, staticType, key)

	case KindPointer:
		s.archivePointer(rv, d, key)
	}
}

func (s *Serializer) archiveString(rv reflect.Value, key string) {
	addr := identityAddr(rv)
	id, seen := s.tr.lookupOrAssign(addr)
	if seen {
		s.archive.ArchiveReference(key, id)
		return
	}
	s.archive.ArchiveString(rv.String(), key, id)
	s.tr.recordArray(id, key, arrayRecordOf(rv, 1))
	s.tr.recordValueTarget(addr, id, key)
}

func (s *Serializer) archiveArray(rv reflect.Value, d *Descriptor, key string) {
	addr := identityAddr(rv)
	id, seen := s.tr.lookupOrAssign(addr)
	if seen {
		s.archive.ArchiveReference(key, id)
		return
	}
	length := rv.Len()
	elemType := d.ElemType
	s.archive.ArchiveArray(typeRegistryName(elemType), key, id, length, func() {
		for i := 0; i < length; i++ {
			s.archiveValue(rv.Index(i), elemType, strconv.Itoa(i))
		}
	})
	s.tr.recordArray(id, key, arrayRecordOf(rv, elemType.Size()))
	s.tr.recordValueTarget(addr, id, key)
}

func (s *Serializer) archiveMapping(rv reflect.Value, d *Descriptor, key string) {
	if rv.IsNil() {
		s.archive.ArchiveNull(d.TypeName, key)
		return
	}
	addr := identityAddr(rv)
	id, seen := s.tr.lookupOrAssign(addr)
	if seen {
		s.archive.ArchiveReference(key, id)
		return
	}
	keys := sortedMapKeys(rv)
	s.archive.ArchiveAssociativeArray(typeRegistryName(d.KeyType), typeRegistryName(d.ElemType), len(keys), key, id, func() {
		for i, k := range keys {
			entryKey := strconv.Itoa(i)
			s.archive.ArchiveAssociativeArrayKey(entryKey, func() {
				s.archiveValue(k, d.KeyType, entryKey)
			})
			s.archive.ArchiveAssociativeArrayValue(entryKey, func() {
				s.archiveValue(rv.MapIndex(k), d.ElemType, entryKey)
			})
		}
	})
	s.tr.recordValueTarget(addr, id, key)
}

func (s *Serializer) archiveRecord(rv reflect.Value, staticType reflect.Type, d *Descriptor, key string) {
	id := s.tr.allocID()
	fireLifecycle[OnSerializingHook](rv, func(h OnSerializingHook) { h.OnSerializing() })
	if s.tryCustomSerialize(rv, d.TypeName, key) {
		fireLifecycle[OnSerializedHook](rv, func(h OnSerializedHook) { h.OnSerialized() })
		return
	}
	s.archive.ArchiveStruct(d.TypeName, key, id, func() {
		s.archiveRecordFields(rv, staticType, id)
	})
	fireLifecycle[OnSerializedHook](rv, func(h OnSerializedHook) { h.OnSerialized() })
}

// archiveRecordFields walks a Record's own fields (and, recursively, its
// embedded base via ArchiveBaseClass) under the already-open struct/object
// node id.
func (s *Serializer) archiveRecordFields(rv reflect.Value, t reflect.Type, id int) {
	d := describeType(t)
	if d.BaseType != nil {
		baseField := findAnonymousField(rv, d.BaseType)
		baseID := s.tr.allocID()
		s.archive.ArchiveBaseClass(d.BaseType.String(), baseClassKey, baseID, func() {
			s.archiveRecordFields(baseField, d.BaseType, baseID)
		})
	}
	for _, f := range d.Fields {
		fv := rv.FieldByIndex(f.Index)
		s.archiveValue(fv, f.Type, f.Key)
	}
}

func findAnonymousField(rv reflect.Value, baseType reflect.Type) reflect.Value {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Anonymous && t.Field(i).Type == baseType {
			return rv.Field(i)
		}
	}
	return reflect.Zero(baseType)
}

func (s *Serializer) archiveObject(rv reflect.Value, staticType reflect.Type, key string) {
	if rv.IsNil() {
		s.archive.ArchiveNull(staticType.String(), key)
		return
	}
	dyn := rv.Elem()
	addr := identityAddr(dyn)
	id, seen := s.tr.lookupOrAssign(addr)
	if seen {
		s.archive.ArchiveReference(key, id)
		return
	}

	concrete := dyn
	concreteType := dyn.Type()
	if dyn.Kind() == reflect.Ptr {
		if dyn.IsNil() {
			s.archive.ArchiveNull(concreteType.String(), key)
			return
		}
		concrete = dyn.Elem()
		concreteType = concrete.Type()
	}
	runtimeName := typeRegistryName(concreteType)

	fireLifecycle[OnSerializingHook](concrete, func(h OnSerializingHook) { h.OnSerializing() })

	if s.tryCustomSerialize(concrete, runtimeName, key) {
		fireLifecycle[OnSerializedHook](concrete, func(h OnSerializedHook) { h.OnSerialized() })
		s.tr.recordValueTarget(addr, id, key)
		return
	}
	implementsSerializable := concrete.CanAddr() && isSerializable(concrete)
	if !implementsSerializable {
		if _, ok := resolveRegisteredType(runtimeName); !ok {
			s.fail(newSerializationError(ErrUnregisteredType, runtimeName, key, id, "object type must be registered with RegisterType or given a RegisterSerializer/RegisterDeserializer pair"))
		}
	}

	s.archive.ArchiveObject(runtimeName, staticType.String(), key, id, func() {
		s.archiveRecordFields(concrete, concreteType, id)
	})
	fireLifecycle[OnSerializedHook](concrete, func(h OnSerializedHook) { h.OnSerialized() })
	s.tr.recordValueTarget(addr, id, key)
}

func (s *Serializer) archivePointer(rv reflect.Value, d *Descriptor, key string) {
	if rv.IsNil() {
		s.archive.ArchiveNull(d.ElemType.String(), key)
		return
	}
	addr := rv.Pointer()
	id, seen := s.tr.lookupOrAssign(addr)
	if seen {
		s.archive.ArchiveReference(key, id)
		return
	}
	s.tr.recordPointer(id, addr)
	elemType := d.ElemType
	s.archive.ArchivePointer(key, id, func() {
		s.archiveValue(rv.Elem(), elemType, key)
	})
	s.tr.recordValueTarget(addr, id, key)
}

// tryCustomSerialize attempts, in order, a registered serializer callback
// and the Serializable capability. It reports whether one of them handled
// value entirely.
func (s *Serializer) tryCustomSerialize(rv reflect.Value, runtimeName, key string) bool {
	if cb, ok := s.customSerializers[runtimeName]; ok {
		if err := cb(s, rv.Interface(), key); err != nil {
			s.fail(err)
		}
		return true
	}
	if rv.CanAddr() {
		if ser, ok := rv.Addr().Interface().(Serializable); ok {
			if err := ser.ToData(s, key); err != nil {
				s.fail(err)
			}
			return true
		}
	}
	if ser, ok := rv.Interface().(Serializable); ok {
		if err := ser.ToData(s, key); err != nil {
			s.fail(err)
		}
		return true
	}
	return false
}

// isSerializable reports whether rv's addressable pointer form implements
// Serializable.
func isSerializable(rv reflect.Value) bool {
	_, ok := rv.Addr().Interface().(Serializable)
	return ok
}

// fireLifecycle invokes call on rv if it (or its addressable pointer form)
// implements H.
func fireLifecycle[H any](rv reflect.Value, call func(h H)) {
	if rv.CanAddr() {
		if h, ok := rv.Addr().Interface().(H); ok {
			call(h)
			return
		}
	}
	if h, ok := rv.Interface().(H); ok {
		call(h)
	}
}

// sortedMapKeys returns rv's map keys in a deterministic order, so repeated
// runs over the same map produce byte-identical output.
func sortedMapKeys(rv reflect.Value) []reflect.Value {
	keys := rv.MapKeys()
	ordered := make([]reflect.Value, len(keys))
	copy(ordered, keys)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && mapKeyLess(ordered[j], ordered[j-1]); j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	return ordered
}

func mapKeyLess(a, b reflect.Value) bool {
	switch a.Kind() {
	case reflect.String:
		return a.String() < b.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() < b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() < b.Uint()
	case reflect.Float32, reflect.Float64:
		return a.Float() < b.Float()
	default:
		return formatForOrder(a) < formatForOrder(b)
	}
}

func formatForOrder(v reflect.Value) string {
	if v.CanInterface() {
		if s, ok := v.Interface().(interface{ String() string }); ok {
			return s.String()
		}
	}
	return v.String()
}

// --- deserialize side ---

// unarchiveValue is the read-side counterpart of archiveValue: rv must be
// settable and typed as staticType.
func (s *Serializer) unarchiveValue(rv reflect.Value, staticType reflect.Type, key string) {
	d := describeType(staticType)

	switch d.Kind {
	case KindInvalid:
		s.fail(newSerializationError(ErrTypeNotSerializable, staticType.String(), key, MaxID, ""))

	case KindPrimitive:
		var out any
		if err := s.archive.UnarchivePrimitive(key, &out); err != nil {
			s.fail(err)
			return
		}
		s.setPrimitive(rv, out, d.TypeName, key, MaxID)

	case KindEnum:
		var out any
		if err := s.archive.UnarchiveEnum(key, &out); err != nil {
			s.fail(err)
			return
		}
		s.setPrimitive(rv, out, d.TypeName, key, MaxID)

	case KindAlias:
		err := s.archive.UnarchiveTypedef(key, func() error {
			var out any
			if err := s.archive.UnarchivePrimitive(key, &out); err != nil {
				return err
			}
			s.setPrimitive(rv, out, d.TypeName, key, MaxID)
			return nil
		})
		if err != nil {
			s.fail(err)
		}

	case KindString:
		s.unarchiveString(rv, key)

	case KindArray:
		s.unarchiveArray(rv, d, key)

	case KindMapping:
		s.unarchiveMapping(rv, d, key)

	case KindRecord:
		s.unarchiveRecord(rv, staticType, d, key)

	case KindObject:
		s.unarchiveObject(rv, staticType, key)

	case KindPointer:
		s.unarchivePointer(rv, d, key)
	}
}

func (s *Serializer) unarchiveString(rv reflect.Value, key string) {
	if slice, ownID, ok, err := s.archive.UnarchiveSlice(key); err != nil {
		s.fail(err)
		return
	} else if ok {
		s.tr.deferSliceFixup(ownID, slice.ParentID, slice.Offset, slice.Length, func(parent reflect.Value) error {
			rv.SetString(parent.Slice(slice.Offset, slice.Offset+slice.Length).String())
			return nil
		})
		return
	}

	if id, isRef, err := s.archive.UnarchiveReference(key); err != nil {
		s.fail(err)
		return
	} else if isRef {
		if v, found := s.tr.lookupDeserializedValue(id); found {
			rv.SetString(v.String())
		} else {
			s.tr.deferPointerFixup(id, func(v reflect.Value) { rv.SetString(v.String()) })
		}
		return
	}

	str, id, err := s.archive.UnarchiveString(key)
	if err != nil {
		s.fail(err)
		return
	}
	rv.SetString(str)
	s.tr.recordDeserializedValue(id, rv)
}

func (s *Serializer) unarchiveArray(rv reflect.Value, d *Descriptor, key string) {
	if slice, ownID, ok, err := s.archive.UnarchiveSlice(key); err != nil {
		s.fail(err)
		return
	} else if ok {
		target := rv
		s.tr.deferSliceFixup(ownID, slice.ParentID, slice.Offset, slice.Length, func(parent reflect.Value) error {
			target.Set(parent.Slice(slice.Offset, slice.Offset+slice.Length))
			return nil
		})
		return
	}

	if id, isRef, err := s.archive.UnarchiveReference(key); err != nil {
		s.fail(err)
		return
	} else if isRef {
		if v, found := s.tr.lookupDeserializedValue(id); found {
			rv.Set(v)
		} else {
			s.tr.deferPointerFixup(id, func(v reflect.Value) { rv.Set(v) })
		}
		return
	}

	if null, err := s.archive.UnarchiveNull(key); err != nil {
		s.fail(err)
		return
	} else if null {
		return
	}

	length, id, inner, err := s.archive.UnarchiveArray(key)
	if err != nil {
		s.fail(err)
		return
	}
	elemType := d.ElemType
	out := reflect.MakeSlice(reflect.SliceOf(elemType), length, length)
	idx := 0
	unarchiveErr := inner(func(elementKey string) error {
		if idx < length {
			s.unarchiveValue(out.Index(idx), elemType, elementKey)
		}
		idx++
		return nil
	})
	if unarchiveErr != nil {
		s.fail(unarchiveErr)
		return
	}
	rv.Set(out)
	s.tr.recordDeserializedValue(id, rv)
}

func (s *Serializer) unarchiveMapping(rv reflect.Value, d *Descriptor, key string) {
	if id, isRef, err := s.archive.UnarchiveReference(key); err != nil {
		s.fail(err)
		return
	} else if isRef {
		if v, found := s.tr.lookupDeserializedValue(id); found {
			rv.Set(v)
		} else {
			s.tr.deferPointerFixup(id, func(v reflect.Value) { rv.Set(v) })
		}
		return
	}

	if null, err := s.archive.UnarchiveNull(key); err != nil {
		s.fail(err)
		return
	} else if null {
		return
	}

	length, id, inner, err := s.archive.UnarchiveAssociativeArray(key)
	if err != nil {
		s.fail(err)
		return
	}
	out := reflect.MakeMapWithSize(reflect.MapOf(d.KeyType, d.ElemType), length)
	unarchiveErr := inner(func(entryKey string) error {
		k := reflect.New(d.KeyType).Elem()
		if err := s.archive.UnarchiveAssociativeArrayKey(entryKey, func() error {
			s.unarchiveValue(k, d.KeyType, entryKey)
			return nil
		}); err != nil {
			return err
		}
		v := reflect.New(d.ElemType).Elem()
		if err := s.archive.UnarchiveAssociativeArrayValue(entryKey, func() error {
			s.unarchiveValue(v, d.ElemType, entryKey)
			return nil
		}); err != nil {
			return err
		}
		out.SetMapIndex(k, v)
		return nil
	})
	if unarchiveErr != nil {
		s.fail(unarchiveErr)
		return
	}
	rv.Set(out)
	s.tr.recordDeserializedValue(id, rv)
}

func (s *Serializer) unarchiveRecord(rv reflect.Value, staticType reflect.Type, d *Descriptor, key string) {
	fireLifecycle[OnDeserializingHook](rv, func(h OnDeserializingHook) { h.OnDeserializing() })

	if cb, ok := s.customDeserializers[d.TypeName]; ok {
		if err := cb(s, rv, key); err != nil {
			s.fail(err)
		}
		fireLifecycle[OnDeserializedHook](rv, func(h OnDeserializedHook) { h.OnDeserialized() })
		return
	}
	if rv.CanAddr() {
		if de, ok := rv.Addr().Interface().(DeserializableFrom); ok {
			if err := de.FromData(s, key); err != nil {
				s.fail(err)
			}
			fireLifecycle[OnDeserializedHook](rv, func(h OnDeserializedHook) { h.OnDeserialized() })
			return
		}
	}

	_, id, inner, err := s.archive.UnarchiveStruct(key)
	if err != nil {
		s.fail(err)
		fireLifecycle[OnDeserializedHook](rv, func(h OnDeserializedHook) { h.OnDeserialized() })
		return
	}
	unarchiveErr := inner(func() error {
		s.unarchiveFieldsInto(rv, staticType)
		return nil
	})
	if unarchiveErr != nil {
		s.fail(unarchiveErr)
		fireLifecycle[OnDeserializedHook](rv, func(h OnDeserializedHook) { h.OnDeserialized() })
		return
	}
	s.tr.recordDeserializedValue(id, rv)
	fireLifecycle[OnDeserializedHook](rv, func(h OnDeserializedHook) { h.OnDeserialized() })
}

// unarchiveFieldsInto populates rv's own fields (and its embedded base,
// recursively) from the currently-open struct/object node.
func (s *Serializer) unarchiveFieldsInto(rv reflect.Value, t reflect.Type) {
	d := describeType(t)
	if d.BaseType != nil {
		baseField := findAnonymousField(rv, d.BaseType)
		err := s.archive.UnarchiveBaseClass(baseClassKey, func() error {
			s.unarchiveFieldsInto(baseField, d.BaseType)
			return nil
		})
		if err != nil {
			s.fail(err)
		}
	}
	for _, f := range d.Fields {
		fv := rv.FieldByIndex(f.Index)
		s.unarchiveValue(fv, f.Type, f.Key)
	}
}

func (s *Serializer) unarchiveObject(rv reflect.Value, staticType reflect.Type, key string) {
	if id, isRef, err := s.archive.UnarchiveReference(key); err != nil {
		s.fail(err)
		return
	} else if isRef {
		if v, found := s.tr.lookupDeserializedValue(id); found {
			rv.Set(v)
		} else {
			s.tr.deferPointerFixup(id, func(v reflect.Value) { rv.Set(v) })
		}
		return
	}

	if null, err := s.archive.UnarchiveNull(key); err != nil {
		s.fail(err)
		return
	} else if null {
		return
	}

	runtimeName, id, inner, err := s.archive.UnarchiveStruct(key)
	if err != nil {
		s.fail(err)
		return
	}

	if cb, ok := s.customDeserializers[runtimeName]; ok {
		concrete := reflect.New(rv.Type()).Elem()
		fireLifecycle[OnDeserializingHook](concrete, func(h OnDeserializingHook) { h.OnDeserializing() })
		err := cb(s, concrete, key)
		if err != nil {
			s.fail(err)
		}
		fireLifecycle[OnDeserializedHook](concrete, func(h OnDeserializedHook) { h.OnDeserialized() })
		if err != nil {
			return
		}
		rv.Set(concrete)
		s.tr.recordDeserializedValue(id, rv)
		return
	}

	concreteType, ok := resolveRegisteredType(runtimeName)
	if !ok {
		s.fail(newSerializationError(ErrUnregisteredType, runtimeName, key, id, "call RegisterType before deserializing this object"))
		return
	}

	concretePtr := reflect.New(concreteType)
	concrete := concretePtr.Elem()

	fireLifecycle[OnDeserializingHook](concrete, func(h OnDeserializingHook) { h.OnDeserializing() })
	if de, ok := concretePtr.Interface().(DeserializableFrom); ok {
		if err := de.FromData(s, key); err != nil {
			s.fail(err)
		}
	} else {
		unarchiveErr := inner(func() error {
			s.unarchiveFieldsInto(concrete, concreteType)
			return nil
		})
		if unarchiveErr != nil {
			s.fail(unarchiveErr)
			fireLifecycle[OnDeserializedHook](concrete, func(h OnDeserializedHook) { h.OnDeserialized() })
			return
		}
	}
	fireLifecycle[OnDeserializedHook](concrete, func(h OnDeserializedHook) { h.OnDeserialized() })

	// assign through the interface field: the value itself when the value
	// type satisfies the interface, the pointer only when the interface
	// needs pointer-receiver methods.
	if rv.Type().NumMethod() == 0 || concreteType.Implements(rv.Type()) {
		rv.Set(concrete)
	} else {
		rv.Set(concretePtr)
	}
	s.tr.recordDeserializedValue(id, rv)
}

func (s *Serializer) unarchivePointer(rv reflect.Value, d *Descriptor, key string) {
	if id, isRef, err := s.archive.UnarchiveReference(key); err != nil {
		s.fail(err)
		return
	} else if isRef {
		if v, found := s.tr.lookupDeserializedValue(id); found {
			rv.Set(v)
		} else {
			s.tr.deferPointerFixup(id, func(v reflect.Value) { rv.Set(v) })
		}
		return
	}

	id, isNull, inner, err := s.archive.UnarchivePointer(key)
	if err != nil {
		s.fail(err)
		return
	}
	if isNull {
		return
	}
	elemType := d.ElemType
	ptr := reflect.New(elemType)
	rv.Set(ptr)
	s.tr.recordDeserializedValue(id, rv)
	unarchiveErr := inner(func() error {
		s.unarchiveValue(ptr.Elem(), elemType, key)
		return nil
	})
	if unarchiveErr != nil {
		s.fail(unarchiveErr)
	}
}
