// Package xml is the reference Archive backend: a textual tree document
// built on encoding/xml, one package per wire format, wired against the
// engine through a narrow interface rather than a generic Marshal/Unmarshal
// pair.
package xml

import (
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/zoobzio/orange"
)

const (
	archiveType    = "org.dsource.orange.xml"
	archiveVersion = "1.0.0"
)

// node is the generic tree element every archived position becomes: one
// struct shape serves every Kind, distinguished by the kind field, the same
// way a single AST node type often carries a discriminant tag. Unlike a
// struct-tag-driven node, the wire element name is not fixed: MarshalXML and
// UnmarshalXML derive it per node from kind (or, for a scalar, from the
// concrete type name), so the document itself carries the kind rather than
// a synthetic attribute.
type node struct {
	Kind     string
	Key      string
	ID       string
	Ref      string
	Type     string
	Runtime  string
	Length   string
	Offset   string
	Parent   string
	Text     string
	Children []*node
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

// elementName is the wire-level local name for n: the concrete scalar type
// name for a primitive (e.g. "int"), kind otherwise.
func (n *node) elementName() string {
	if n.Kind == "primitive" {
		return n.Type
	}
	return n.Kind
}

// kindForElement is elementName's inverse, used while reading: any local
// name not among the fixed structural names is a scalar type name, so the
// node is a primitive carrying that type.
func kindForElement(local string) string {
	switch local {
	case "object", "struct", "array", "associativeArray", "string", "pointer",
		"reference", "base", "null", "enum", "typedef", "slice", "entryKey", "entryValue":
		return local
	default:
		return "primitive"
	}
}

// attrs builds the attribute set for n's element, which varies by kind: an
// object carries its runtime and static type names, an array its element
// type and length, and so on. key is common to every kind; id is common to
// every kind except a reference, whose target id is carried as text content
// instead of an attribute (matching a plain value reference rather than a
// tagged one).
func (n *node) attrs() []xml.Attr {
	var a []xml.Attr
	add := func(name, value string) {
		if value != "" {
			a = append(a, xml.Attr{Name: xml.Name{Local: name}, Value: value})
		}
	}
	switch n.Kind {
	case "object":
		add("runtimeType", n.Runtime)
		add("type", n.Type)
	case "array":
		add("type", n.Type)
		add("length", n.Length)
	case "associativeArray":
		add("keyType", n.Runtime)
		add("valueType", n.Type)
		add("length", n.Length)
	case "enum", "typedef", "null", "struct", "base":
		add("type", n.Type)
	case "slice":
		add("parent", n.Parent)
		add("offset", n.Offset)
		add("length", n.Length)
	case "pointer":
		add("targetRef", n.Ref)
	}
	add("key", n.Key)
	if n.Kind != "reference" {
		add("id", n.ID)
	}
	return a
}

// MarshalXML renders n under its own kind/type-derived element name rather
// than a fixed tag, so the document itself names each position the way
// spec.md's wire format pins (an <int>, a <struct>, an <associativeArray>, …
// instead of a generic tagged node).
func (n *node) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: n.elementName()}
	start.Attr = n.attrs()
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if n.Text != "" {
		if err := e.EncodeToken(xml.CharData(n.Text)); err != nil {
			return err
		}
	}
	for _, c := range n.Children {
		if err := e.Encode(c); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// UnmarshalXML is MarshalXML's inverse: it recovers kind from the element's
// own local name, then reads whichever attributes that kind carries.
func (n *node) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	n.Kind = kindForElement(start.Name.Local)
	if n.Kind == "primitive" {
		n.Type = start.Name.Local
	}
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "key":
			n.Key = attr.Value
		case "id":
			n.ID = attr.Value
		case "type", "valueType":
			n.Type = attr.Value
		case "runtimeType", "keyType":
			n.Runtime = attr.Value
		case "length":
			n.Length = attr.Value
		case "offset":
			n.Offset = attr.Value
		case "parent":
			n.Parent = attr.Value
		case "targetRef":
			n.Ref = attr.Value
		}
	}

	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			c := &node{}
			if err := d.DecodeElement(c, &t); err != nil {
				return err
			}
			n.Children = append(n.Children, c)
		case xml.CharData:
			n.Text += string(t)
		case xml.EndElement:
			if n.Kind == "reference" {
				n.Ref = n.Text
			}
			return nil
		}
	}
}

// document is the <archive><data>…</data></archive> envelope spec.md
// requires: a typed, versioned root wrapping exactly the one top-level
// value a Serialize call archives.
type document struct {
	root *node
}

func (doc *document) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "archive"}
	start.Attr = []xml.Attr{
		{Name: xml.Name{Local: "type"}, Value: archiveType},
		{Name: xml.Name{Local: "version"}, Value: archiveVersion},
	}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	data := xml.StartElement{Name: xml.Name{Local: "data"}}
	if err := e.EncodeToken(data); err != nil {
		return err
	}
	if doc.root != nil {
		for _, c := range doc.root.Children {
			if err := e.Encode(c); err != nil {
				return err
			}
		}
	}
	if err := e.EncodeToken(data.End()); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

func (doc *document) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	doc.root = &node{}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "data" {
				if err := decodeDataChildren(d, doc.root); err != nil {
					return err
				}
			} else if err := d.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func decodeDataChildren(d *xml.Decoder, parent *node) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			c := &node{}
			if err := d.DecodeElement(c, &t); err != nil {
				return err
			}
			parent.Children = append(parent.Children, c)
		case xml.EndElement:
			return nil
		}
	}
}

// Backend implements orange.Archive over a node tree. One Backend instance
// is built per Serializer; it is reset at the start of every Begin* call.
type Backend struct {
	errorCB orange.ErrorCallback

	// emitting side
	root  *node
	stack []*node
	byID  map[int]*node

	// reading side
	readStack []*node
}

// New returns a fresh XML Archive backend.
func New() *Backend {
	return &Backend{byID: make(map[int]*node)}
}

func (b *Backend) fail(err error) {
	if b.errorCB != nil {
		b.errorCB(err)
	}
}

func (b *Backend) top() *node { return b.stack[len(b.stack)-1] }

func (b *Backend) push(n *node) { b.stack = append(b.stack, n) }

func (b *Backend) pop() { b.stack = b.stack[:len(b.stack)-1] }

// open appends a new child node to the current top of stack, registers it
// by id if it carries one, pushes it, runs inner, and restores the stack on
// every exit path including a panic unwinding through inner.
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
	b.root = &node{}
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
	b.top().append(&node{Kind: "reference", Key: key, Text: strconv.Itoa(targetID)})
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

// ArchiveSlice turns the node already archived as sliceID into a slice
// annotation in place: its children (the full element-by-element copy
// written during the main pass, before slice detection ran) are dropped in
// favor of the parent/offset/length triple.
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
	out, err := xml.MarshalIndent(&document{root: b.root}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// --- reading side ---

func (b *Backend) BeginUnarchiving(data []byte) error {
	doc := &document{}
	if err := xml.Unmarshal(data, doc); err != nil {
		return err
	}
	b.root = doc.root
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
// produces (bool, int64, uint64, float64, complex128, string) as text.
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
