package msgpack_test

import (
	"testing"

	"github.com/zoobzio/orange"
	"github.com/zoobzio/orange/internal/orangetest"
	"github.com/zoobzio/orange/msgpack"
)

type person struct {
	Name string
	Age  int
}

func TestRoundTripStruct(t *testing.T) {
	s := orange.New(msgpack.New())

	data, err := s.Serialize(person{Name: "ada", Age: 36}, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	got, err := orange.Deserialize[person](s, data, "")
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if got != (person{Name: "ada", Age: 36}) {
		t.Errorf("round-trip = %+v, want %+v", got, person{Name: "ada", Age: 36})
	}
}

func TestRoundTripPrimitives(t *testing.T) {
	type values struct {
		B  bool
		I  int
		U  uint
		F  float64
		St string
	}
	s := orange.New(msgpack.New())
	original := values{B: true, I: -42, U: 7, F: 3.25, St: "hello"}

	data, err := s.Serialize(original, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	got, err := orange.Deserialize[values](s, data, "")
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if got != original {
		t.Errorf("round-trip = %+v, want %+v", got, original)
	}
}

func TestRoundTripSlice(t *testing.T) {
	s := orange.New(msgpack.New())
	original := []int{1, 2, 3, 4, 5}

	data, err := s.Serialize(original, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	got, err := orange.Deserialize[[]int](s, data, "")
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if len(got) != len(original) {
		t.Fatalf("round-trip length = %d, want %d", len(got), len(original))
	}
	for i := range original {
		if got[i] != original[i] {
			t.Errorf("round-trip[%d] = %d, want %d", i, got[i], original[i])
		}
	}
}

func TestRoundTripSharedSlice(t *testing.T) {
	s := orange.New(msgpack.New())
	backing := []int{10, 20, 30, 40}
	original := orangetest.SlicePair{Whole: backing, Half: backing[1:3]}

	data, err := s.Serialize(original, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	got, err := orange.Deserialize[orangetest.SlicePair](s, data, "")
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if len(got.Half) != 2 || got.Half[0] != 20 || got.Half[1] != 30 {
		t.Errorf("shared slice round-trip = %+v, want Half [20 30]", got.Half)
	}
}

func TestRoundTripMap(t *testing.T) {
	s := orange.New(msgpack.New())
	original := map[string]int{"a": 1, "b": 2, "c": 3}

	data, err := s.Serialize(original, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	got, err := orange.Deserialize[map[string]int](s, data, "")
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if len(got) != len(original) {
		t.Fatalf("round-trip length = %d, want %d", len(got), len(original))
	}
	for k, v := range original {
		if got[k] != v {
			t.Errorf("round-trip[%q] = %d, want %d", k, got[k], v)
		}
	}
}

func TestRoundTripPointer(t *testing.T) {
	type node struct {
		Value int
		Next  *node
	}
	s := orange.New(msgpack.New())
	original := &node{Value: 1, Next: &node{Value: 2}}

	data, err := s.Serialize(original, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	got, err := orange.Deserialize[*node](s, data, "")
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if got == nil || got.Value != 1 || got.Next == nil || got.Next.Value != 2 {
		t.Errorf("pointer round-trip = %+v", got)
	}
}

func TestRoundTripCyclicGraph(t *testing.T) {
	s := orange.New(msgpack.New())
	a := &orangetest.CyclicNode{Name: "a"}
	b := &orangetest.CyclicNode{Name: "b"}
	a.Next = b
	b.Next = a

	data, err := s.Serialize(a, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	got, err := orange.Deserialize[*orangetest.CyclicNode](s, data, "")
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if got.Name != "a" || got.Next == nil || got.Next.Name != "b" {
		t.Fatalf("cyclic graph round-trip = %+v", got)
	}
	if got.Next.Next != got {
		t.Error("cycle was not restored: b.Next should point back to a")
	}
}

func TestUnmarshalMalformedRaises(t *testing.T) {
	s := orange.New(msgpack.New())

	_, err := orange.Deserialize[person](s, []byte("not msgpack"), "")
	if err == nil {
		t.Error("Deserialize(malformed) should return an error under the default callback")
	}
}

func TestUnmarshalMalformedDoesNothing(t *testing.T) {
	s := orange.New(msgpack.New())
	s.SetDoNothingOnErrorCallback()

	_, err := orange.Deserialize[person](s, []byte("not msgpack"), "")
	if err != nil {
		t.Fatalf("unexpected error with do-nothing callback: %v", err)
	}
}

func TestMarshalIsBinary(t *testing.T) {
	s := orange.New(msgpack.New())

	data, err := s.Serialize(map[string]int{"a": 1}, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	if len(data) > 0 && data[0] == '{' {
		t.Error("msgpack output should be binary, not look like JSON text")
	}
}
