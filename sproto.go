// Package sproto bundles an imported schema with the struct codec, the
// zero-run packer and the rpc host.
package sproto

import (
	"time"

	"github.com/danmuck/sproto/internal/observability"
	"github.com/danmuck/sproto/internal/protocol"
	"github.com/danmuck/sproto/internal/protocol/pack"
	"github.com/danmuck/sproto/internal/protocol/schema"
	"github.com/danmuck/sproto/internal/protocol/schemafile"
	"github.com/danmuck/sproto/internal/protocol/session"
	"github.com/danmuck/sproto/internal/protocol/wire"
)

type (
	Definition  = schema.Definition
	TypeDef     = schema.TypeDef
	FieldDef    = schema.FieldDef
	ProtocolDef = schema.ProtocolDef
	Schema      = schema.Schema
	Object      = wire.Object
	Map         = wire.Map
	Options     = wire.Options
	Host        = session.Host
	Sender      = session.Sender
	Message     = session.Message
)

var (
	ErrSchema     = protocol.ErrSchema
	ErrCapacity   = protocol.ErrCapacity
	ErrMalformed  = protocol.ErrMalformed
	ErrValueShape = protocol.ErrValueShape
	ErrProtocol   = protocol.ErrProtocol
	ErrDepth      = protocol.ErrDepth
)

// Sproto is safe for concurrent use; the schema is immutable.
type Sproto struct {
	schema *schema.Schema
	opts   wire.Options
}

type Option func(*Sproto)

// WithOptions replaces the codec buffer and depth limits.
func WithOptions(opts wire.Options) Option {
	return func(s *Sproto) { s.opts = opts.Normalize() }
}

// New imports def.
func New(def schema.Definition, opts ...Option) (*Sproto, error) {
	sch, err := schema.Import(def)
	if err != nil {
		return nil, err
	}
	return FromSchema(sch, opts...), nil
}

// Load imports the definition file at path (.toml, .yaml, .yml or .json).
func Load(path string, opts ...Option) (*Sproto, error) {
	sch, err := schemafile.Load(path)
	if err != nil {
		return nil, err
	}
	return FromSchema(sch, opts...), nil
}

func FromSchema(sch *schema.Schema, opts ...Option) *Sproto {
	s := &Sproto{schema: sch, opts: wire.DefaultOptions()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sproto) Schema() *schema.Schema { return s.schema }

func (s *Sproto) Options() wire.Options { return s.opts }

func (s *Sproto) lookup(name string) (*schema.Type, error) {
	st := s.schema.Type(name)
	if st == nil {
		return nil, protocol.SchemaError{Type: name, Reason: "unknown type"}
	}
	return st, nil
}

func (s *Sproto) protocol(name string) (*schema.Protocol, error) {
	p := s.schema.Protocol(name)
	if p == nil {
		return nil, protocol.ProtocolError{Name: name, Reason: "unknown protocol"}
	}
	return p, nil
}

// Encode encodes v (an Object or map[string]any) as typeName.
func (s *Sproto) Encode(typeName string, v any) ([]byte, error) {
	st, err := s.lookup(typeName)
	if err != nil {
		return nil, err
	}
	return s.encode(st, v)
}

func (s *Sproto) encode(st *schema.Type, v any) ([]byte, error) {
	start := time.Now()
	out, err := wire.EncodeValue(s.opts, st, v)
	if err != nil {
		return nil, err
	}
	observability.RecordCodec("encode", len(out), time.Since(start))
	return out, nil
}

// Decode decodes typeName from the front of b.
func (s *Sproto) Decode(typeName string, b []byte) (Object, error) {
	obj, _, err := s.DecodeUsed(typeName, b)
	return obj, err
}

// DecodeUsed is Decode that also reports how many bytes of b were used.
func (s *Sproto) DecodeUsed(typeName string, b []byte) (Object, int, error) {
	st, err := s.lookup(typeName)
	if err != nil {
		return nil, 0, err
	}
	return s.decode(st, b)
}

func (s *Sproto) decode(st *schema.Type, b []byte) (Object, int, error) {
	start := time.Now()
	obj, used, err := wire.Decode(b, st, s.opts)
	if err != nil {
		return nil, 0, err
	}
	observability.RecordCodec("decode", used, time.Since(start))
	return obj, used, nil
}

func (s *Sproto) Pack(b []byte) []byte {
	start := time.Now()
	out := pack.Pack(b)
	observability.RecordCodec("pack", len(out), time.Since(start))
	return out
}

// Unpack expands b; the result is padded to a multiple of 8 bytes.
func (s *Sproto) Unpack(b []byte) ([]byte, error) {
	start := time.Now()
	out, err := pack.Unpack(b, s.opts.MaxSize)
	if err != nil {
		return nil, err
	}
	observability.RecordCodec("unpack", len(out), time.Since(start))
	return out, nil
}

// RequestEncode encodes the request payload of protocol name. Protocols
// without a request type encode to an empty buffer.
func (s *Sproto) RequestEncode(name string, v any) ([]byte, error) {
	p, err := s.protocol(name)
	if err != nil {
		return nil, err
	}
	if p.Request == nil {
		return []byte{}, nil
	}
	return s.encode(p.Request, v)
}

// RequestDecode decodes the request payload of protocol name. The result is
// nil for protocols without a request type.
func (s *Sproto) RequestDecode(name string, b []byte) (Object, error) {
	p, err := s.protocol(name)
	if err != nil {
		return nil, err
	}
	if p.Request == nil {
		return nil, nil
	}
	obj, _, err := s.decode(p.Request, b)
	return obj, err
}

func (s *Sproto) ResponseEncode(name string, v any) ([]byte, error) {
	p, err := s.protocol(name)
	if err != nil {
		return nil, err
	}
	if p.Response == nil {
		return []byte{}, nil
	}
	return s.encode(p.Response, v)
}

func (s *Sproto) ResponseDecode(name string, b []byte) (Object, error) {
	p, err := s.protocol(name)
	if err != nil {
		return nil, err
	}
	if p.Response == nil {
		return nil, nil
	}
	obj, _, err := s.decode(p.Response, b)
	return obj, err
}

// Host returns an rpc host on this schema. An empty envelope means
// "package".
func (s *Sproto) Host(envelope string) (*session.Host, error) {
	return session.NewHost(s.schema, envelope, s.opts)
}
