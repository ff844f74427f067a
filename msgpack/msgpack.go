// Package msgpack is a second Archive backend: the same generic node-tree
// document the xml backend builds, encoded as a compact binary form via
// vmihailenco/msgpack instead of encoding/xml, giving this wire format its
// own thin codec package over the shared engine.
package msgpack

import (
	"fmt"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zoobzio/orange"
)

// node is the generic tree element every archived position becomes. The
// shape mirrors the xml backend's node; field names are shortened since
// msgpack encodes them as map keys by default and there is no reason to pay
// for verbose names on the wire.
type node struct {
	Kind     string  `msgpack:"k"`
	Key      string  `msgpack:"key,omitempty"`
	ID       string  `msgpack:"id,omitempty"`
	Ref      string  `msgpack:"ref,omitempty"`
	Type     string  `msgpack:"type,omitempty"`
	Runtime  string  `msgpack:"rt,omitempty"`
	Length   string  `msgpack:"len,omitempty"`
	Offset   string  `msgpack:"off,omitempty"`
	Parent   string  `msgpack:"parent,omitempty"`
	Text     string  `msgpack:"text,omitempty"`
	Children []*node `msgpack:"children,omitempty"`
}

func (n *node) child(key string) (*node, bool) {
	for _, c := range n.Children {
		if c.Key == key {
			return c, true
		}
	}
	return nil, false
}

func (n *node) childKind(key, kind string) (*node, bool) {
	for _, c := range n.Children {
		if c.Key == key && c.Kind == kind {
			return c, true
		}
	}
	return nil, false
}

func (n *node) append(c *node) *node {
	n.Children = append(n.Children, c)
	return c
}

// Backend implements orange.Archive over a node tree encoded with msgpack.
type Backend struct {
	errorCB orange.ErrorCallback

	root  *node
	stack []*node
	byID  map[int]*node

	readStack []*node
}

// New returns a fresh MessagePack Archive backend.
func New() *Backend {
	return &Backend{byID: make(map[int]*node)}
}

func (b *Backend) top() *node { return b.stack[len(b.stack)-1] }

func (b *Backend) push(n *node) { b.stack = append(b.stack, n) }

func (b *Backend) pop() { b.stack = b.stack[:len(b.stack)-1] }

func (b *Backend) open(n *node, id int, inner func()) {
	b.top().append(n)
	if id != orange.MaxID {
		b.byID[id] = n
		n.ID = strconv.Itoa(id)
	}
	b.push(n)
	defer b.pop()
	inner()
}

// --- emitting side ---

func (b *Backend) SetErrorCallback(cb orange.ErrorCallback) { b.errorCB = cb }

func (b *Backend) BeginArchiving() {
	b.root = &node{Kind: "archive"}
	b.stack = []*node{b.root}
	b.byID = make(map[int]*node)
}

func (b *Backend) ArchivePrimitive(value any, typeName string, key string, id int) {
	n := &node{Kind: "primitive", Type: typeName, Key: key, Text: formatScalar(value)}
	b.top().append(n)
	if id != orange.MaxID {
		b.byID[id] = n
		n.ID = strconv.Itoa(id)
	}
}

func (b *Backend) ArchiveString(value string, key string, id int) {
	n := &node{Kind: "string", Key: key, Text: value}
	b.top().append(n)
	if id != orange.MaxID {
		b.byID[id] = n
		n.ID = strconv.Itoa(id)
	}
}

func (b *Backend) ArchiveEnum(value any, typeName string, key string, id int) {
	n := &node{Kind: "enum", Key: key, Type: typeName, Text: formatScalar(value)}
	b.top().append(n)
	if id != orange.MaxID {
		b.byID[id] = n
		n.ID = strconv.Itoa(id)
	}
}

func (b *Backend) ArchiveNull(typeName string, key string) {
	b.top().append(&node{Kind: "null", Key: key, Type: typeName})
}

func (b *Backend) ArchiveReference(key string, targetID int) {
	b.top().append(&node{Kind: "reference", Key: key, Ref: strconv.Itoa(targetID)})
}

func (b *Backend) ArchiveArray(elemTypeName string, key string, id int, length int, inner func()) {
	n := &node{Kind: "array", Key: key, Type: elemTypeName, Length: strconv.Itoa(length)}
	b.open(n, id, inner)
}

func (b *Backend) ArchiveAssociativeArray(keyTypeName, valueTypeName string, length int, key string, id int, inner func()) {
	n := &node{Kind: "associativeArray", Key: key, Type: valueTypeName, Runtime: keyTypeName, Length: strconv.Itoa(length)}
	b.open(n, id, inner)
}

func (b *Backend) ArchiveAssociativeArrayKey(entryKey string, inner func()) {
	n := &node{Kind: "entryKey", Key: entryKey}
	b.open(n, orange.MaxID, inner)
}

func (b *Backend) ArchiveAssociativeArrayValue(entryKey string, inner func()) {
	n := &node{Kind: "entryValue", Key: entryKey}
	b.open(n, orange.MaxID, inner)
}

func (b *Backend) ArchiveStruct(typeName string, key string, id int, inner func()) {
	n := &node{Kind: "struct", Key: key, Type: typeName}
	b.open(n, id, inner)
}

func (b *Backend) ArchiveObject(runtimeType, staticType string, key string, id int, inner func()) {
	n := &node{Kind: "object", Key: key, Type: staticType, Runtime: runtimeType}
	b.open(n, id, inner)
}

func (b *Backend) ArchiveBaseClass(typeName string, key string, id int, inner func()) {
	n := &node{Kind: "base", Key: key, Type: typeName}
	b.open(n, id, inner)
}

func (b *Backend) ArchivePointer(key string, id int, inner func()) {
	n := &node{Kind: "pointer", Key: key}
	b.open(n, id, inner)
}

func (b *Backend) ArchivePointerToValue(targetID int, targetKey string, pointerID int) {
	if n, ok := b.byID[pointerID]; ok {
		n.Ref = strconv.Itoa(targetID)
	}
}

func (b *Backend) ArchiveTypedef(typeName string, key string, id int, inner func()) {
	n := &node{Kind: "typedef", Key: key, Type: typeName}
	b.open(n, id, inner)
}

// ArchiveSlice mutates the node already archived as sliceID in place, the
// same way the xml backend does: the element-by-element copy written during
// the main pass is dropped in favor of a parent/offset/length annotation.
func (b *Backend) ArchiveSlice(s orange.Slice, sliceID int) {
	n, ok := b.byID[sliceID]
	if !ok {
		return
	}
	n.Kind = "slice"
	n.Parent = strconv.Itoa(s.ParentID)
	n.Offset = strconv.Itoa(s.Offset)
	n.Length = strconv.Itoa(s.Length)
	n.Children = nil
	n.Text = ""
}

func (b *Backend) PostProcessArray(id int)   {}
func (b *Backend) PostProcessPointer(id int) {}

func (b *Backend) UntypedData() ([]byte, error) {
	return msgpack.Marshal(b.root)
}

// --- reading side ---

func (b *Backend) BeginUnarchiving(data []byte) error {
	root := &node{}
	if err := msgpack.Unmarshal(data, root); err != nil {
		return err
	}
	b.root = root
	b.readStack = []*node{b.root}
	return nil
}

func (b *Backend) readTop() *node { return b.readStack[len(b.readStack)-1] }

func (b *Backend) find(key string) (*node, error) {
	n, ok := b.readTop().child(key)
	if !ok {
		return nil, orange.ErrMalformedArchive
	}
	return n, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func (b *Backend) UnarchivePrimitive(key string, out any) error {
	n, err := b.find(key)
	if err != nil {
		return err
	}
	ptr, ok := out.(*any)
	if !ok {
		return orange.ErrMalformedArchive
	}
	*ptr = n.Text
	return nil
}

func (b *Backend) UnarchiveString(key string) (string, int, error) {
	n, err := b.find(key)
	if err != nil {
		return "", orange.MaxID, err
	}
	id := orange.MaxID
	if n.ID != "" {
		id = atoi(n.ID)
	}
	return n.Text, id, nil
}

func (b *Backend) UnarchiveEnum(key string, out any) error {
	n, err := b.find(key)
	if err != nil {
		return err
	}
	ptr, ok := out.(*any)
	if !ok {
		return orange.ErrMalformedArchive
	}
	*ptr = n.Text
	return nil
}

func (b *Backend) UnarchiveNull(key string) (bool, error) {
	n, ok := b.readTop().child(key)
	if !ok {
		return false, orange.ErrMalformedArchive
	}
	return n.Kind == "null", nil
}

func (b *Backend) UnarchiveReference(key string) (int, bool, error) {
	n, ok := b.readTop().child(key)
	if !ok {
		return orange.MaxID, false, orange.ErrMalformedArchive
	}
	if n.Kind != "reference" {
		return orange.MaxID, false, nil
	}
	return atoi(n.Ref), true, nil
}

func (b *Backend) UnarchiveSlice(key string) (orange.Slice, int, bool, error) {
	n, ok := b.readTop().child(key)
	if !ok {
		return orange.Slice{}, orange.MaxID, false, orange.ErrMalformedArchive
	}
	if n.Kind != "slice" {
		return orange.Slice{}, orange.MaxID, false, nil
	}
	id := orange.MaxID
	if n.ID != "" {
		id = atoi(n.ID)
	}
	return orange.Slice{ParentID: atoi(n.Parent), Offset: atoi(n.Offset), Length: atoi(n.Length)}, id, true, nil
}

func (b *Backend) UnarchiveArray(key string) (int, int, func(each func(elementKey string) error) error, error) {
	n, err := b.find(key)
	if err != nil {
		return 0, orange.MaxID, nil, err
	}
	id := orange.MaxID
	if n.ID != "" {
		id = atoi(n.ID)
	}
	inner := func(each func(elementKey string) error) error {
		b.readStack = append(b.readStack, n)
		defer func() { b.readStack = b.readStack[:len(b.readStack)-1] }()
		for _, c := range n.Children {
			if err := each(c.Key); err != nil {
				return err
			}
		}
		return nil
	}
	return atoi(n.Length), id, inner, nil
}

func (b *Backend) UnarchiveAssociativeArray(key string) (int, int, func(each func(entryKey string) error) error, error) {
	n, err := b.find(key)
	if err != nil {
		return 0, orange.MaxID, nil, err
	}
	id := orange.MaxID
	if n.ID != "" {
		id = atoi(n.ID)
	}
	inner := func(each func(entryKey string) error) error {
		b.readStack = append(b.readStack, n)
		defer func() { b.readStack = b.readStack[:len(b.readStack)-1] }()
		seen := make(map[string]bool)
		for _, c := range n.Children {
			if seen[c.Key] {
				continue
			}
			seen[c.Key] = true
			if err := each(c.Key); err != nil {
				return err
			}
		}
		return nil
	}
	return atoi(n.Length), id, inner, nil
}

func (b *Backend) UnarchiveAssociativeArrayKey(entryKey string, inner func() error) error {
	n, ok := b.readTop().childKind(entryKey, "entryKey")
	if !ok {
		return orange.ErrMalformedArchive
	}
	b.readStack = append(b.readStack, n)
	defer func() { b.readStack = b.readStack[:len(b.readStack)-1] }()
	return inner()
}

func (b *Backend) UnarchiveAssociativeArrayValue(entryKey string, inner func() error) error {
	n, ok := b.readTop().childKind(entryKey, "entryValue")
	if !ok {
		return orange.ErrMalformedArchive
	}
	b.readStack = append(b.readStack, n)
	defer func() { b.readStack = b.readStack[:len(b.readStack)-1] }()
	return inner()
}

func (b *Backend) UnarchiveStruct(key string) (string, int, func(func() error) error, error) {
	n, err := b.find(key)
	if err != nil {
		return "", orange.MaxID, nil, err
	}
	id := orange.MaxID
	if n.ID != "" {
		id = atoi(n.ID)
	}
	inner := func(fn func() error) error {
		b.readStack = append(b.readStack, n)
		defer func() { b.readStack = b.readStack[:len(b.readStack)-1] }()
		return fn()
	}
	return n.Runtime, id, inner, nil
}

func (b *Backend) UnarchiveBaseClass(key string, inner func() error) error {
	n, err := b.find(key)
	if err != nil {
		return err
	}
	b.readStack = append(b.readStack, n)
	defer func() { b.readStack = b.readStack[:len(b.readStack)-1] }()
	return inner()
}

func (b *Backend) UnarchivePointer(key string) (int, bool, func(func() error) error, error) {
	n, ok := b.readTop().child(key)
	if !ok {
		return orange.MaxID, false, nil, orange.ErrMalformedArchive
	}
	if n.Kind == "null" {
		return orange.MaxID, true, nil, nil
	}
	id := orange.MaxID
	if n.ID != "" {
		id = atoi(n.ID)
	}
	inner := func(fn func() error) error {
		b.readStack = append(b.readStack, n)
		defer func() { b.readStack = b.readStack[:len(b.readStack)-1] }()
		return fn()
	}
	return id, false, inner, nil
}

func (b *Backend) UnarchiveTypedef(key string, inner func() error) error {
	n, err := b.find(key)
	if err != nil {
		return err
	}
	b.readStack = append(b.readStack, n)
	defer func() { b.readStack = b.readStack[:len(b.readStack)-1] }()
	return inner()
}

// formatScalar renders the native Go scalars underlyingPrimitiveValue
// produces as text, the same wire convention the xml backend uses, so both
// backends share one textual-literal parser on the read side.
func formatScalar(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case complex128:
		return strconv.FormatComplex(v, 'g', -1, 128)
	default:
		return fmt.Sprint(v)
	}
}
