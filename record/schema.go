// Package record implements the typed, self-describing output record model
// shared by every analyzer: a schema published once at startup, and a
// per-flow output buffer that analyzers append their findings to in schema
// order (see spec §4.B and §6).
package record

// Kind tags the leaf type of a schema Field. The exhaustive list matches the
// "Leaf types" enumerated in spec §6.
type Kind uint8

const (
	KindInvalid Kind = iota

	KindInt8
	KindUint8
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindInt128
	KindUint128
	KindInt256
	KindUint256

	KindFloat32
	KindFloat64
	KindLongDouble // widest float the sink supports; stored as float64 here

	KindChar
	KindString
	KindFixedString

	KindMAC
	KindIP4
	KindIP6
	KindIPX

	KindTimestamp
	KindDuration
	KindFlowDirection

	KindCompound // nested list of Sub fields, no leaf value of its own
)

// Field is one node of the recursive schema tree (spec §3 "Output record
// schema" / §6 "Output record schema"). A Field with Kind == KindCompound
// carries no value itself; its Sub fields are concatenated in declaration
// order to form its value.
type Field struct {
	Name        string
	Description string
	Kind        Kind
	Repeating   bool // variable-length array; wire form is a u32 count prefix
	Width       int  // byte width for KindFixedString; ignored otherwise
	Sub         []*Field
}

// Schema is the ordered list, in declaration order, of header
// nodes published by an analyzer's PrintHeader, and consumed by every sink.
type Schema struct {
	Fields []*Field
}

// NewSchema returns an empty, appendable schema.
func NewSchema() *Schema {
	return &Schema{}
}

// Add appends a top-level field and returns it for chaining (eg. to attach
// Sub fields to a compound node).
func (s *Schema) Add(name, desc string, kind Kind, repeating bool) *Field {
	f := &Field{Name: name, Description: desc, Kind: kind, Repeating: repeating}
	s.Fields = append(s.Fields, f)
	return f
}

// AddCompound appends a compound field whose value is the concatenation of
// sub in declaration order.
func (s *Schema) AddCompound(name, desc string, repeating bool, sub ...*Field) *Field {
	f := &Field{Name: name, Description: desc, Kind: KindCompound, Repeating: repeating, Sub: sub}
	s.Fields = append(s.Fields, f)
	return f
}

// Leaf returns a standalone Field for use inside AddCompound's sub list.
func Leaf(name, desc string, kind Kind) *Field {
	return &Field{Name: name, Description: desc, Kind: kind}
}

// Merge appends another schema's fields after this one's, used by the
// runtime to build the full row schema from every registered analyzer's
// PrintHeader (spec §6 "schema blob").
func (s *Schema) Merge(other *Schema) {
	s.Fields = append(s.Fields, other.Fields...)
}
