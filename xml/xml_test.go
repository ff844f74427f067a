package xml_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/zoobzio/orange"
	"github.com/zoobzio/orange/internal/orangetest"
	"github.com/zoobzio/orange/xml"
)

type person struct {
	Name string
	Age  int
}

func TestRoundTripStruct(t *testing.T) {
	s := orange.New(xml.New())

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

func TestWireFormatPrimitive(t *testing.T) {
	s := orange.New(xml.New())

	data, err := s.Serialize(42, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	doc := string(data)
	for _, want := range []string{
		`<archive type="org.dsource.orange.xml" version="1.0.0">`,
		`<data>`,
		`<int key="0" id="0">42</int>`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}
}

func TestWireFormatSharedObjectEmitsReference(t *testing.T) {
	s := orange.New(xml.New())
	shared := &orangetest.Leaf{Value: 5}

	data, err := s.Serialize(orangetest.Tree{Left: shared, Right: shared}, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	doc := string(data)
	if !strings.Contains(doc, `<reference key="Right">`) {
		t.Errorf("second occurrence of a shared pointer should be a reference node:\n%s", doc)
	}
	if strings.Count(doc, "<pointer") != 1 {
		t.Errorf("a shared pointer should be archived in full exactly once:\n%s", doc)
	}
}

func TestResetProducesIdenticalDocuments(t *testing.T) {
	s := orange.New(xml.New())
	original := person{Name: "ada", Age: 36}

	first, err := s.Serialize(original, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	s.Reset()
	second, err := s.Serialize(original, "")
	if err != nil {
		t.Fatalf("second Serialize() error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("serialize/reset/serialize documents differ:\n%s\n---\n%s", first, second)
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
	s := orange.New(xml.New())
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
	s := orange.New(xml.New())
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
	s := orange.New(xml.New())
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
	s := orange.New(xml.New())
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
	s := orange.New(xml.New())
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

func TestRoundTripNilPointer(t *testing.T) {
	type node struct {
		Value int
		Next  *node
	}
	s := orange.New(xml.New())
	original := &node{Value: 1}

	data, err := s.Serialize(original, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	got, err := orange.Deserialize[*node](s, data, "")
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if got == nil || got.Next != nil {
		t.Errorf("nil pointer round-trip = %+v, want Next nil", got)
	}
}

func TestRoundTripSharedPointer(t *testing.T) {
	s := orange.New(xml.New())
	shared := &orangetest.Leaf{Value: 99}
	original := orangetest.Tree{Left: shared, Right: shared}

	data, err := s.Serialize(original, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	got, err := orange.Deserialize[orangetest.Tree](s, data, "")
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if got.Left != got.Right {
		t.Error("shared pointer aliasing lost on round-trip")
	}
	if got.Left == nil || got.Left.Value != 99 {
		t.Errorf("shared pointer payload = %+v", got.Left)
	}
}

func TestRoundTripCyclicGraph(t *testing.T) {
	s := orange.New(xml.New())
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

func TestRoundTripPolymorphicField(t *testing.T) {
	orange.RegisterType[orangetest.Circle]()
	orange.RegisterType[orangetest.Square]()

	s := orange.New(xml.New())
	original := orangetest.Drawing{Shapes: []orangetest.Shape{
		orangetest.Circle{Radius: 2}, orangetest.Square{Side: 3},
	}}

	data, err := s.Serialize(original, "")
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	got, err := orange.Deserialize[orangetest.Drawing](s, data, "")
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if len(got.Shapes) != 2 {
		t.Fatalf("round-trip shape count = %d, want 2", len(got.Shapes))
	}
	if _, ok := got.Shapes[0].(orangetest.Circle); !ok {
		t.Errorf("Shapes[0] = %T, want orangetest.Circle", got.Shapes[0])
	}
	if _, ok := got.Shapes[1].(orangetest.Square); !ok {
		t.Errorf("Shapes[1] = %T, want orangetest.Square", got.Shapes[1])
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	s := orange.New(xml.New())
	s.SetDoNothingOnErrorCallback()

	_, err := orange.Deserialize[person](s, []byte("not xml at all {{{"), "")
	if err != nil {
		t.Fatalf("unexpected error with do-nothing callback: %v", err)
	}
}

func TestUnmarshalMalformedRaises(t *testing.T) {
	s := orange.New(xml.New())

	_, err := orange.Deserialize[person](s, []byte("not xml at all {{{"), "")
	if err == nil {
		t.Error("Deserialize(malformed) should return an error under the default callback")
	}
}

func TestMarshalSpecialCharacters(t *testing.T) {
	type text struct {
		Value string
	}
	s := orange.New(xml.New())

	cases := []string{
		"rock & roll",
		"a < b",
		`say "hello"`,
		"it's fine",
		"日本語テスト",
	}
	for _, tc := range cases {
		t.Run(tc, func(t *testing.T) {
			data, err := s.Serialize(text{Value: tc}, "")
			if err != nil {
				t.Fatalf("Serialize() error: %v", err)
			}
			got, err := orange.Deserialize[text](s, data, "")
			if err != nil {
				t.Fatalf("Deserialize() error: %v", err)
			}
			if got.Value != tc {
				t.Errorf("round-trip = %q, want %q", got.Value, tc)
			}
		})
	}
}
