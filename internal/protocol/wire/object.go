package wire

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/danmuck/sproto/internal/protocol"
	"github.com/danmuck/sproto/internal/protocol/schema"
)

// Object holds one struct value keyed by field name.
type Object map[string]any

// Map holds a keyed-map or pair-map field. Keys are int64, string, bool or
// float64 (for fixed-point integer keys).
type Map map[any]any

// NewVisitor wraps an Object (or any map[string]any) for encoding.
func NewVisitor(v any) (Visitor, error) {
	obj, ok := asObject(v)
	if !ok {
		return nil, protocol.ValueShapeError{Want: "struct", Got: fmt.Sprintf("%T", v)}
	}
	return &objectVisitor{obj: obj}, nil
}

// NewConsumer returns a consumer that builds an Object.
func NewConsumer() Consumer {
	return &objectConsumer{obj: Object{}}
}

func asObject(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case Object:
		return x, true
	case map[string]any:
		return x, true
	default:
		return nil, false
	}
}

type objectVisitor struct {
	obj map[string]any
	// elements of the array field currently being walked
	iterField *schema.Field
	iterElems []any
}

func (o *objectVisitor) Provide(a *Arg) (any, Presence, error) {
	raw, ok := o.obj[a.Field.Name]
	if a.Index == 0 {
		if !ok || raw == nil {
			return nil, Absent, nil
		}
		return raw, Present, nil
	}
	if !ok || raw == nil {
		return nil, NotContainer, nil
	}
	if a.Index == 1 || o.iterField != a.Field {
		elems, err := elements(a, raw)
		if err != nil {
			return nil, Absent, err
		}
		o.iterField = a.Field
		o.iterElems = elems
	}
	if a.Index > len(o.iterElems) {
		o.iterField = nil
		o.iterElems = nil
		return nil, Absent, nil
	}
	return o.iterElems[a.Index-1], Present, nil
}

func (o *objectVisitor) Nested(a *Arg, v any) (Visitor, error) {
	obj, ok := asObject(v)
	if !ok {
		return nil, shapeError(a, "struct", v)
	}
	return &objectVisitor{obj: obj}, nil
}

// elements flattens an array or map container into wire order.
func elements(a *Arg, raw any) ([]any, error) {
	switch x := raw.(type) {
	case Object:
		raw = map[string]any(x)
	case map[any]any:
		raw = Map(x)
	}
	switch x := raw.(type) {
	case []any:
		return x, nil
	case []Object:
		return convertSlice(x), nil
	case []map[string]any:
		return convertSlice(x), nil
	case []int64:
		return convertSlice(x), nil
	case []int:
		return convertSlice(x), nil
	case []float64:
		return convertSlice(x), nil
	case []bool:
		return convertSlice(x), nil
	case []string:
		return convertSlice(x), nil
	case [][]byte:
		return convertSlice(x), nil
	case Map:
		if !a.Field.Shape.IsMap() {
			return nil, shapeError(a, "array", raw)
		}
		keys := make([]any, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sortKeys(keys)
		return mapElements(a, keys, func(k any) any { return x[k] })
	case map[string]any:
		if !a.Field.Shape.IsMap() {
			return nil, shapeError(a, "array", raw)
		}
		keys := make([]any, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sortKeys(keys)
		return mapElements(a, keys, func(k any) any { return x[k.(string)] })
	default:
		if a.Field.Shape.IsMap() {
			return nil, shapeError(a, "map", raw)
		}
		return nil, shapeError(a, "array", raw)
	}
}

func convertSlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func mapElements(a *Arg, keys []any, get func(any) any) ([]any, error) {
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		v := get(k)
		if v == nil {
			continue
		}
		if a.Field.Shape == schema.ShapeKeyedMap {
			out = append(out, v)
			continue
		}
		key, err := pairKey(a, k)
		if err != nil {
			return nil, err
		}
		out = append(out, Object{
			a.Field.Key.Name:   key,
			a.Field.Value.Name: v,
		})
	}
	return out, nil
}

// pairKey adapts string keys (as produced by YAML or JSON documents) to an
// integer key field.
func pairKey(a *Arg, k any) (any, error) {
	s, ok := k.(string)
	if !ok || a.Field.Key.Kind != schema.KindInteger || a.Field.Key.Scale != 0 {
		return k, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, shapeError(a, "integer map key", k)
	}
	return n, nil
}

// sortKeys orders map keys so encoding is deterministic.
func sortKeys(keys []any) {
	rank := func(v any) int {
		switch v.(type) {
		case bool:
			return 0
		case int64, int, int32, uint32, uint64, float64:
			return 1
		case string:
			return 2
		default:
			return 3
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		ri, rj := rank(keys[i]), rank(keys[j])
		if ri != rj {
			return ri < rj
		}
		switch x := keys[i].(type) {
		case bool:
			return !x && keys[j].(bool)
		case string:
			return x < keys[j].(string)
		}
		if ri == 1 {
			return number(keys[i]) < number(keys[j])
		}
		return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
	})
}

func number(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float64:
		return x
	}
	return 0
}

type objectConsumer struct {
	obj Object
}

func (o *objectConsumer) Accept(a *Arg, v any) error {
	f := a.Field
	if a.Index == 0 {
		if f.Shape.IsArray() {
			return shapeError(a, "array element", v)
		}
		o.obj[f.Name] = v
		return nil
	}
	if !f.Shape.IsArray() {
		return shapeError(a, f.Kind.String(), v)
	}
	if a.Index < 0 || a.Index == 1 {
		if f.Shape.IsMap() {
			o.obj[f.Name] = Map{}
		} else {
			o.obj[f.Name] = []any{}
		}
		if a.Index < 0 {
			return nil
		}
	}

	switch c := o.obj[f.Name].(type) {
	case []any:
		if f.Shape != schema.ShapeArray {
			return shapeError(a, "map", c)
		}
		o.obj[f.Name] = append(c, v)
	case Map:
		elem, ok := v.(Object)
		if !ok {
			return shapeError(a, "struct element", v)
		}
		key := elem[f.Key.Name]
		if key == nil {
			return protocol.Malformedf("%s[%d]: map element missing key %s", f.Name, a.Index, f.Key.Name)
		}
		if f.Shape == schema.ShapePairMap {
			c[key] = elem[f.Value.Name]
		} else {
			c[key] = elem
		}
	default:
		return shapeError(a, "container", c)
	}
	return nil
}

func (o *objectConsumer) Nested(a *Arg) Consumer {
	return &objectConsumer{obj: Object{}}
}

func (o *objectConsumer) Value() any { return o.obj }
