package wire

import "github.com/danmuck/sproto/internal/protocol/schema"

// Presence is the visitor's answer for one field or element.
type Presence uint8

const (
	Present Presence = iota
	// Absent omits the field (or ends the array) for this call.
	Absent
	// NotContainer means an array field has no container at all; the whole
	// field is skipped.
	NotContainer
)

// Arg describes the field being visited. Index is 0 for scalar fields and
// 1-based for array elements; the decoder passes -1 for an empty array.
type Arg struct {
	Parent *schema.Type
	Field  *schema.Field
	Index  int
}

func (a *Arg) Name() string { return a.Field.Name }

func (a *Arg) Tag() int { return a.Field.Tag }

func (a *Arg) Kind() schema.Kind { return a.Field.Kind }

// Scale is the fixed-point multiplier, 0 for plain integers.
func (a *Arg) Scale() int64 { return a.Field.Scale }

// KeyName returns the element key field for map shaped fields.
func (a *Arg) KeyName() string {
	if a.Field.Key == nil {
		return ""
	}
	return a.Field.Key.Name
}

// ValueName returns the element value field for pair maps.
func (a *Arg) ValueName() string {
	if a.Field.Value == nil {
		return ""
	}
	return a.Field.Value.Name
}

// Visitor supplies field values to the encoder.
type Visitor interface {
	// Provide returns the value for a.Field, or a.Index'th element of it.
	Provide(a *Arg) (any, Presence, error)
	// Nested returns the visitor for a struct value previously provided.
	Nested(a *Arg, v any) (Visitor, error)
}

// Consumer receives decoded values.
type Consumer interface {
	// Accept stores v. The first element of an array (Index 1) or an empty
	// array marker (Index -1) must reset the target container.
	Accept(a *Arg, v any) error
	// Nested returns a fresh consumer for one struct value.
	Nested(a *Arg) Consumer
	// Value returns what this consumer has built so far.
	Value() any
}
