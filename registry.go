package orange

import (
	"reflect"
	"sync"
)

// registeredTypes is process-wide state mapping a runtime type name to its
// reflect.Type, so a polymorphic Object node can be reconstructed from the
// type name carried on the wire. It is read-mostly: writes happen during
// RegisterType calls, typically from package init functions.
var (
	registeredTypesMu sync.RWMutex
	registeredTypes   = make(map[string]reflect.Type)
)

// RegisterType makes T reconstructable from its runtime type name during
// deserialization of a polymorphic (KindObject) field. Call this once per
// concrete type, typically from an init function, before any Serializer
// deserializes data containing that type.
func RegisterType[T any]() {
	t := reflect.TypeFor[T]()

	registeredTypesMu.Lock()
	defer registeredTypesMu.Unlock()
	registeredTypes[typeRegistryName(t)] = t
}

// resolveRegisteredType looks up a concrete type by the runtime type name
// carried on the wire.
func resolveRegisteredType(name string) (reflect.Type, bool) {
	registeredTypesMu.RLock()
	defer registeredTypesMu.RUnlock()
	t, ok := registeredTypes[name]
	return t, ok
}

// resetRegisteredTypes clears the process-wide type registry. Exposed for
// test isolation, as the design notes require.
func resetRegisteredTypes() {
	registeredTypesMu.Lock()
	defer registeredTypesMu.Unlock()
	registeredTypes = make(map[string]reflect.Type)
}

// typeRegistryName derives the fully-qualified runtime type name used as
// the registry key and the wire "runtimeType"/"type" attribute value.
// Package path is included to avoid the collision the design notes warn
// about when two unrelated types share a simple name.
func typeRegistryName(t reflect.Type) string {
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
