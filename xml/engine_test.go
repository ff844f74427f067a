package xml_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/zoobzio/orange"
	"github.com/zoobzio/orange/xml"
)

type point struct {
	X, Y int
}

func (p point) ToData(s *orange.Serializer, key string) error {
	return s.SerializeField(p.X*100+p.Y, key)
}

func (p *point) FromData(s *orange.Serializer, key string) error {
	combined, err := orange.Deserialize[int](s, nil, key)
	if err != nil {
		return err
	}
	p.X, p.Y = combined/100, combined%100
	return nil
}

func TestRoundTripSerializableCapability(t *testing.T) {
	s := orange.New(xml.New())
	original := point{X: 3, Y: 14}

	data, err := s.Serialize(original, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	got, err := orange.Deserialize[point](s, data, "")
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if got != original {
		t.Errorf("round-trip = %+v, want %+v", got, original)
	}
}

type counted struct{ N int }

func TestRegisterSerializerAndDeserializer(t *testing.T) {
	s := orange.New(xml.New())
	rt := reflect.TypeOf(counted{})
	name := rt.PkgPath() + "." + rt.Name()

	s.RegisterSerializer(name, func(s *orange.Serializer, value any, key string) error {
		c := value.(counted)
		return s.SerializeField(c.N+1, key)
	})
	s.RegisterDeserializer(name, func(s *orange.Serializer, out reflect.Value, key string) error {
		stored, err := orange.Deserialize[int](s, nil, key)
		if err != nil {
			return err
		}
		out.Set(reflect.ValueOf(counted{N: stored - 1}))
		return nil
	})

	data, err := s.Serialize(counted{N: 5}, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	got, err := orange.Deserialize[counted](s, data, "")
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if got.N != 5 {
		t.Errorf("round-trip via custom hooks = %+v, want N=5", got)
	}
}

func TestLifecycleHooksFire(t *testing.T) {
	s := orange.New(xml.New())
	original := &hookedRecord{Name: "widget"}

	data, err := s.Serialize(original, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	if !original.serialized {
		t.Error("OnSerialized should have fired on the original value")
	}

	got, err := orange.Deserialize[*hookedRecord](s, data, "")
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if !got.deserialized {
		t.Error("OnDeserialized should have fired on the reconstructed value")
	}
}

type hookedRecord struct {
	Name         string
	serialized   bool
	deserialized bool
}

func (h *hookedRecord) OnSerialized()   { h.serialized = true }
func (h *hookedRecord) OnDeserialized() { h.deserialized = true }

type animal interface {
	Sound() string
}

type unregisteredDog struct{}

func (unregisteredDog) Sound() string { return "woof" }

func TestSerializeUnregisteredObjectTypeFails(t *testing.T) {
	s := orange.New(xml.New())
	type kennel struct {
		Pet animal
	}

	_, err := s.Serialize(kennel{Pet: unregisteredDog{}}, "")
	if err == nil {
		t.Error("Serialize should fail when an object field's concrete type was never registered")
	}
}

func TestSerializeFuncFieldFails(t *testing.T) {
	s := orange.New(xml.New())
	type withFunc struct {
		Name string
		F    func()
	}

	_, err := s.Serialize(withFunc{Name: "x"}, "")
	if err == nil {
		t.Fatal("Serialize should fail on a function-typed field")
	}
	if !errors.Is(err, orange.ErrTypeNotSerializable) {
		t.Errorf("err = %v, want ErrTypeNotSerializable", err)
	}
}

func TestSerializeFuncFieldSilencedEmitsNull(t *testing.T) {
	s := orange.New(xml.New())
	s.SetDoNothingOnErrorCallback()
	type withFunc struct {
		Name string
		F    func()
	}

	data, err := s.Serialize(withFunc{Name: "x"}, "")
	if err != nil {
		t.Fatalf("Serialize() error with do-nothing callback: %v", err)
	}
	if !strings.Contains(string(data), `<null`) {
		t.Errorf("silenced non-serializable field should archive as a null node:\n%s", data)
	}
}

type base struct {
	ID int
}

type derived struct {
	base
	Label string
}

func TestRoundTripEmbeddedBase(t *testing.T) {
	s := orange.New(xml.New())
	original := derived{base: base{ID: 7}, Label: "child"}

	data, err := s.Serialize(original, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	got, err := orange.Deserialize[derived](s, data, "")
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if got != original {
		t.Errorf("round-trip = %+v, want %+v", got, original)
	}
}

type reentrant struct {
	Value int
}

func (r reentrant) ToData(s *orange.Serializer, key string) error {
	// Misuse: a hook recursing via Serialize (a fresh top-level run) rather
	// than SerializeField, while a run is already in progress.
	_, err := s.Serialize(r.Value, key)
	return err
}

func TestSerializeFromHookRejectsNestedTopLevelCall(t *testing.T) {
	s := orange.New(xml.New())

	_, err := s.Serialize(reentrant{Value: 1}, "")
	if err == nil {
		t.Error("Serialize called reentrantly from a ToData hook should fail with an API-misuse error")
	}
}

func TestSerializeThenDeserializeReusesSerializerAcrossModeSwitch(t *testing.T) {
	s := orange.New(xml.New())

	data, err := s.Serialize(person{Name: "a", Age: 1}, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	got, err := orange.Deserialize[person](s, data, "")
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if got != (person{Name: "a", Age: 1}) {
		t.Errorf("round-trip across mode switch = %+v", got)
	}

	// And back again, to confirm the reverse switch also resets cleanly.
	data2, err := s.Serialize(person{Name: "b", Age: 2}, "")
	if err != nil {
		t.Fatalf("second Serialize() error: %v", err)
	}
	got2, err := orange.Deserialize[person](s, data2, "")
	if err != nil {
		t.Fatalf("second Deserialize() error: %v", err)
	}
	if got2 != (person{Name: "b", Age: 2}) {
		t.Errorf("second round-trip = %+v", got2)
	}
}
