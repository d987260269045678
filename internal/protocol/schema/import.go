package schema

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/danmuck/sproto/internal/protocol"
	"github.com/rs/zerolog/log"
)

// MaxTag keeps every tag gap and slot count inside a 16-bit table entry.
const MaxTag = 0x7fff

// MaxDecimal bounds fixed-point scales to powers of ten that fit in int64.
const MaxDecimal = 18

var builtinKinds = map[string]Kind{
	"integer": KindInteger,
	"boolean": KindBoolean,
	"string":  KindString,
	"binary":  KindString,
	"double":  KindDouble,
}

// Import resolves names, sorts fields by tag and precomputes field shapes.
// Any unresolved or inconsistent reference rejects the whole definition.
func Import(def Definition) (*Schema, error) {
	s, err := importDefinition(def)
	if err != nil {
		log.Error().Err(err).Msg("schema.Import rejected definition")
		return nil, err
	}
	log.Debug().
		Int("types", len(s.typeOrder)).
		Int("protocols", len(s.protoByTag)).
		Msg("schema.Import ok")
	return s, nil
}

func importDefinition(def Definition) (*Schema, error) {
	s := &Schema{
		types:       make(map[string]*Type, len(def.Types)),
		typeOrder:   make([]*Type, 0, len(def.Types)),
		protoByName: make(map[string]*Protocol, len(def.Protocols)),
		protoByTag:  make(map[int]*Protocol, len(def.Protocols)),
	}

	for _, td := range def.Types {
		name := strings.TrimSpace(td.Name)
		if name == "" {
			return nil, protocol.SchemaError{Reason: "type missing name"}
		}
		if _, dup := builtinKinds[name]; dup {
			return nil, protocol.SchemaError{Type: name, Reason: "type name shadows a builtin"}
		}
		if _, dup := s.types[name]; dup {
			return nil, protocol.SchemaError{Type: name, Reason: "duplicate type name"}
		}
		st := &Type{
			Name:   name,
			byTag:  make(map[int]*Field, len(td.Fields)),
			byName: make(map[string]*Field, len(td.Fields)),
		}
		s.types[name] = st
		s.typeOrder = append(s.typeOrder, st)
	}

	for i, td := range def.Types {
		if err := s.importFields(s.typeOrder[i], td.Fields); err != nil {
			return nil, err
		}
	}

	for i, td := range def.Types {
		if err := s.resolveShapes(s.typeOrder[i], td.Fields); err != nil {
			return nil, err
		}
	}

	for _, pd := range def.Protocols {
		if err := s.importProtocol(pd); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Schema) importFields(st *Type, defs []FieldDef) error {
	for _, fd := range defs {
		name := strings.TrimSpace(fd.Name)
		if name == "" {
			return protocol.SchemaError{Type: st.Name, Reason: "field missing name"}
		}
		if _, dup := st.byName[name]; dup {
			return protocol.SchemaError{Type: st.Name, Field: name, Reason: "duplicate field name"}
		}
		if fd.Tag < 0 || fd.Tag > MaxTag {
			return protocol.SchemaError{
				Type: st.Name, Field: name,
				Reason: fmt.Sprintf("tag %d outside 0..%d", fd.Tag, MaxTag),
			}
		}
		if other, dup := st.byTag[fd.Tag]; dup {
			return protocol.SchemaError{
				Type: st.Name, Field: name,
				Reason: fmt.Sprintf("tag %d already used by %s", fd.Tag, other.Name),
			}
		}

		f := &Field{Name: name, Tag: fd.Tag}
		typeName := strings.TrimSpace(fd.Type)
		if kind, ok := builtinKinds[typeName]; ok {
			f.Kind = kind
			f.Binary = typeName == "binary"
		} else if ref := s.types[typeName]; ref != nil {
			f.Kind = KindStruct
			f.Struct = ref
		} else {
			return protocol.SchemaError{
				Type: st.Name, Field: name,
				Reason: fmt.Sprintf("unresolved type %q", fd.Type),
			}
		}

		if fd.Binary {
			if f.Kind != KindString {
				return protocol.SchemaError{Type: st.Name, Field: name, Reason: "binary flag on non-string field"}
			}
			f.Binary = true
		}
		if fd.Decimal != nil {
			if f.Kind != KindInteger {
				return protocol.SchemaError{Type: st.Name, Field: name, Reason: "decimal on non-integer field"}
			}
			if *fd.Decimal < 0 || *fd.Decimal > MaxDecimal {
				return protocol.SchemaError{
					Type: st.Name, Field: name,
					Reason: fmt.Sprintf("decimal %d outside 0..%d", *fd.Decimal, MaxDecimal),
				}
			}
			if *fd.Decimal > 0 {
				f.Decimal = *fd.Decimal
				f.Scale = int64(math.Pow10(f.Decimal))
			}
		}

		if fd.Array {
			f.Shape = ShapeArray
		} else if fd.Map || fd.Key != "" {
			return protocol.SchemaError{Type: st.Name, Field: name, Reason: "map or key requires an array field"}
		}

		st.fields = append(st.fields, f)
		st.byTag[f.Tag] = f
		st.byName[f.Name] = f
	}

	sort.Slice(st.fields, func(i, j int) bool { return st.fields[i].Tag < st.fields[j].Tag })
	// one slot per field plus one skip slot before each tag gap
	st.maxn = len(st.fields)
	last := -1
	for _, f := range st.fields {
		if f.Tag > last+1 {
			st.maxn++
		}
		last = f.Tag
	}
	return nil
}

// resolveShapes runs after every type has its sorted field table so map
// fields can look into their element types.
func (s *Schema) resolveShapes(st *Type, defs []FieldDef) error {
	for _, fd := range defs {
		f := st.byName[strings.TrimSpace(fd.Name)]
		if !fd.Map && fd.Key == "" {
			continue
		}
		if fd.Map && fd.Key != "" {
			return protocol.SchemaError{Type: st.Name, Field: f.Name, Reason: "map and key are exclusive"}
		}
		if f.Kind != KindStruct {
			return protocol.SchemaError{Type: st.Name, Field: f.Name, Reason: "map or key requires a struct element type"}
		}
		elem := f.Struct.fields
		if fd.Map {
			if len(elem) != 2 {
				return protocol.SchemaError{
					Type: st.Name, Field: f.Name,
					Reason: fmt.Sprintf("map element %s must have exactly two fields", f.Struct.Name),
				}
			}
			if err := checkKeyField(st, f, elem[0]); err != nil {
				return err
			}
			f.Shape = ShapePairMap
			f.Key = elem[0]
			f.Value = elem[1]
			continue
		}
		key := f.Struct.byName[strings.TrimSpace(fd.Key)]
		if key == nil {
			return protocol.SchemaError{
				Type: st.Name, Field: f.Name,
				Reason: fmt.Sprintf("key %q not found in %s", fd.Key, f.Struct.Name),
			}
		}
		if err := checkKeyField(st, f, key); err != nil {
			return err
		}
		f.Shape = ShapeKeyedMap
		f.Key = key
	}
	return nil
}

func checkKeyField(st *Type, f, key *Field) error {
	if key.Shape != ShapeScalar {
		return protocol.SchemaError{Type: st.Name, Field: f.Name, Reason: "map key must be a scalar field"}
	}
	if key.Binary {
		// decoded binary values are []byte, which cannot key a Map
		return protocol.SchemaError{Type: st.Name, Field: f.Name, Reason: fmt.Sprintf("map key %s is binary", key.Name)}
	}
	switch key.Kind {
	case KindInteger, KindString, KindBoolean:
		return nil
	default:
		return protocol.SchemaError{
			Type: st.Name, Field: f.Name,
			Reason: fmt.Sprintf("map key kind %s is not integer, string or boolean", key.Kind),
		}
	}
}

func (s *Schema) importProtocol(pd ProtocolDef) error {
	name := strings.TrimSpace(pd.Name)
	if name == "" {
		return protocol.SchemaError{Reason: "protocol missing name"}
	}
	if _, dup := s.protoByName[name]; dup {
		return protocol.SchemaError{Reason: fmt.Sprintf("duplicate protocol name %q", name)}
	}
	if pd.Tag < 0 {
		return protocol.SchemaError{Reason: fmt.Sprintf("protocol %s has negative tag", name)}
	}
	if other, dup := s.protoByTag[pd.Tag]; dup {
		return protocol.SchemaError{Reason: fmt.Sprintf("protocol %s reuses tag %d of %s", name, pd.Tag, other.Name)}
	}
	p := &Protocol{Name: name, Tag: pd.Tag, Confirm: pd.Confirm}
	if req := strings.TrimSpace(pd.Request); req != "" {
		if p.Request = s.types[req]; p.Request == nil {
			return protocol.SchemaError{Reason: fmt.Sprintf("protocol %s request type %q unresolved", name, req)}
		}
	}
	if resp := strings.TrimSpace(pd.Response); resp != "" {
		if pd.Confirm {
			return protocol.SchemaError{Reason: fmt.Sprintf("protocol %s declares both confirm and a response type", name)}
		}
		if p.Response = s.types[resp]; p.Response == nil {
			return protocol.SchemaError{Reason: fmt.Sprintf("protocol %s response type %q unresolved", name, resp)}
		}
	}
	s.protoByName[name] = p
	s.protoByTag[p.Tag] = p
	return nil
}
