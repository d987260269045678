package wire

import (
	"errors"

	"github.com/danmuck/sproto/internal/protocol"
	"github.com/danmuck/sproto/internal/protocol/schema"
)

const (
	// DefaultInitialSize is the first encode buffer tried by Encode.
	DefaultInitialSize = 64
	// DefaultMaxSize bounds the encode buffer growth.
	DefaultMaxSize = 0x1000000
	// DefaultMaxDepth bounds struct nesting in both directions.
	DefaultMaxDepth = 64
)

// Options tunes buffer negotiation and nesting limits.
type Options struct {
	InitialSize int
	MaxSize     int
	MaxDepth    int
}

func DefaultOptions() Options {
	return Options{
		InitialSize: DefaultInitialSize,
		MaxSize:     DefaultMaxSize,
		MaxDepth:    DefaultMaxDepth,
	}
}

// Normalize fills zero fields with defaults and clamps InitialSize to MaxSize.
func (o Options) Normalize() Options {
	d := DefaultOptions()
	if o.InitialSize <= 0 {
		o.InitialSize = d.InitialSize
	}
	if o.MaxSize <= 0 {
		o.MaxSize = d.MaxSize
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = d.MaxDepth
	}
	if o.InitialSize > o.MaxSize {
		o.InitialSize = o.MaxSize
	}
	return o
}

// Encode runs EncodeInto with a doubling buffer until the body fits or the
// buffer would exceed opts.MaxSize.
func Encode(opts Options, st *schema.Type, v Visitor) ([]byte, error) {
	opts = opts.Normalize()
	size := opts.InitialSize
	for {
		buf := make([]byte, size)
		n, err := EncodeInto(buf, st, v, opts.MaxDepth)
		if err == nil {
			return buf[:n], nil
		}
		if !errors.Is(err, protocol.ErrCapacity) {
			return nil, err
		}
		if size >= opts.MaxSize {
			return nil, protocol.CapacityError{Need: size * 2, Max: opts.MaxSize}
		}
		size *= 2
		if size > opts.MaxSize {
			size = opts.MaxSize
		}
	}
}

// EncodeValue encodes an Object (or map[string]any) as type st.
func EncodeValue(opts Options, st *schema.Type, v any) ([]byte, error) {
	vis, err := NewVisitor(v)
	if err != nil {
		var shape protocol.ValueShapeError
		if errors.As(err, &shape) {
			shape.Type = st.Name
			return nil, shape
		}
		return nil, err
	}
	return Encode(opts, st, vis)
}

// Decode decodes one st body from the front of src into an Object and returns
// the bytes it used.
func Decode(src []byte, st *schema.Type, opts Options) (Object, int, error) {
	opts = opts.Normalize()
	c := NewConsumer()
	n, err := DecodeWith(src, st, c, opts.MaxDepth)
	if err != nil {
		return nil, 0, err
	}
	return c.Value().(Object), n, nil
}
