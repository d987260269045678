package schema

import "sort"

// Kind is the scalar kind of a field (or of its elements, for arrays).
type Kind uint8

const (
	KindInteger Kind = iota
	KindBoolean
	KindString
	KindStruct
	KindDouble
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindString:
		return "string"
	case KindStruct:
		return "struct"
	case KindDouble:
		return "double"
	default:
		return "unknown"
	}
}

// Shape tells how a field is presented at the visitor boundary. On the wire
// every non-scalar shape is an array.
type Shape uint8

const (
	ShapeScalar Shape = iota
	ShapeArray
	// ShapeKeyedMap exposes a struct array keyed by one of the element fields.
	ShapeKeyedMap
	// ShapePairMap exposes a two-field struct array as key -> value.
	ShapePairMap
)

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeArray:
		return "array"
	case ShapeKeyedMap:
		return "keyed-map"
	case ShapePairMap:
		return "pair-map"
	default:
		return "unknown"
	}
}

// IsArray reports whether the field is an array on the wire.
func (s Shape) IsArray() bool { return s != ShapeScalar }

// IsMap reports whether the field is presented as a mapping.
func (s Shape) IsMap() bool { return s == ShapeKeyedMap || s == ShapePairMap }

type Field struct {
	Name   string
	Tag    int
	Kind   Kind
	Shape  Shape
	Binary bool
	// Decimal places and the matching power of ten; Scale is 0 for plain integers.
	Decimal int
	Scale   int64
	// Struct is the element type for KindStruct fields.
	Struct *Type
	// Key is the element field used by ShapeKeyedMap and ShapePairMap.
	Key *Field
	// Value is the element field used by ShapePairMap.
	Value *Field
}

type Type struct {
	Name   string
	fields []*Field
	byTag  map[int]*Field
	byName map[string]*Field
	maxn   int
}

// Fields returns the fields in ascending tag order.
func (t *Type) Fields() []*Field { return t.fields }

// MaxN is the most slots an encoded body can use: one per field plus one
// skip slot ahead of each tag gap.
func (t *Type) MaxN() int { return t.maxn }

func (t *Type) FieldByTag(tag int) *Field { return t.byTag[tag] }

func (t *Type) FieldByName(name string) *Field { return t.byName[name] }

type Protocol struct {
	Name     string
	Tag      int
	Request  *Type
	Response *Type
	Confirm  bool
}

// HasResponse reports whether a reply is expected, with or without payload.
func (p *Protocol) HasResponse() bool { return p.Response != nil || p.Confirm }

// Schema is the immutable, resolved model shared by every codec call.
type Schema struct {
	types       map[string]*Type
	typeOrder   []*Type
	protoByName map[string]*Protocol
	protoByTag  map[int]*Protocol
}

func (s *Schema) Type(name string) *Type { return s.types[name] }

func (s *Schema) Protocol(name string) *Protocol { return s.protoByName[name] }

func (s *Schema) ProtocolByTag(tag int) *Protocol { return s.protoByTag[tag] }

// Types returns every type in definition order.
func (s *Schema) Types() []*Type { return s.typeOrder }

// Protocols returns every protocol ordered by tag.
func (s *Schema) Protocols() []*Protocol {
	out := make([]*Protocol, 0, len(s.protoByTag))
	for _, p := range s.protoByTag {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}
