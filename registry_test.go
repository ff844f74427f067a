package orange

import (
	"reflect"
	"testing"
)

type registryWidget struct{ N int }

func TestRegisterTypeAndResolve(t *testing.T) {
	resetRegisteredTypes()
	RegisterType[registryWidget]()

	name := typeRegistryName(reflect.TypeFor[registryWidget]())
	got, ok := resolveRegisteredType(name)
	if !ok {
		t.Fatalf("resolveRegisteredType(%q) not found after RegisterType", name)
	}
	if got != reflect.TypeFor[registryWidget]() {
		t.Errorf("resolveRegisteredType returned %v, want registryWidget", got)
	}
}

func TestResolveRegisteredTypeMiss(t *testing.T) {
	resetRegisteredTypes()
	if _, ok := resolveRegisteredType("nothing.registered.Here"); ok {
		t.Error("resolveRegisteredType should miss on an unregistered name")
	}
}

func TestResetRegisteredTypesClears(t *testing.T) {
	RegisterType[registryWidget]()
	resetRegisteredTypes()
	name := typeRegistryName(reflect.TypeFor[registryWidget]())
	if _, ok := resolveRegisteredType(name); ok {
		t.Error("resetRegisteredTypes should clear previously registered types")
	}
}
