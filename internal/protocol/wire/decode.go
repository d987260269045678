package wire

import (
	"encoding/binary"
	"math"

	"github.com/danmuck/sproto/internal/protocol"
	"github.com/danmuck/sproto/internal/protocol/schema"
)

type decoder struct {
	maxDepth int
}

// DecodeWith decodes one struct body of type st from the front of src and
// returns how many bytes it used. Bytes after that belong to the caller, which
// is how an envelope and its payload share one buffer.
func DecodeWith(src []byte, st *schema.Type, c Consumer, maxDepth int) (int, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	d := decoder{maxDepth: maxDepth}
	return d.decodeStruct(src, st, c, 0)
}

func (d *decoder) decodeStruct(src []byte, st *schema.Type, c Consumer, depth int) (int, error) {
	if depth >= d.maxDepth {
		return 0, protocol.DepthError{Limit: d.maxDepth, Decode: true}
	}
	if len(src) < sizeofHeader {
		return 0, protocol.Malformedf("%s: %d bytes is shorter than the struct header", st.Name, len(src))
	}
	fn := int(binary.LittleEndian.Uint16(src))
	headerSz := sizeofHeader + fn*sizeofField
	if len(src) < headerSz {
		return 0, protocol.Malformedf("%s: %d slots do not fit in %d bytes", st.Name, fn, len(src))
	}
	data := src[headerSz:]
	off := 0
	tag := -1

	for i := 0; i < fn; i++ {
		entry := int(binary.LittleEndian.Uint16(src[sizeofHeader+i*sizeofField:]))
		tag++
		if entry&1 != 0 {
			tag += entry / 2
			continue
		}
		value := entry/2 - 1

		var block []byte
		if value < 0 {
			if len(data)-off < sizeofLength {
				return 0, protocol.Malformedf("%s: tag %d block length truncated", st.Name, tag)
			}
			sz := uint64(binary.LittleEndian.Uint32(data[off:]))
			if sz > uint64(len(data)-off-sizeofLength) {
				return 0, protocol.Malformedf("%s: tag %d block of %d bytes overruns input", st.Name, tag, sz)
			}
			block = data[off+sizeofLength : off+sizeofLength+int(sz)]
			off += sizeofLength + int(sz)
		}

		f := st.FieldByTag(tag)
		if f == nil {
			continue
		}
		arg := Arg{Parent: st, Field: f}

		if value >= 0 {
			if f.Shape.IsArray() || (f.Kind != schema.KindInteger && f.Kind != schema.KindBoolean) {
				return 0, protocol.Malformedf("%s.%s: inline value for %s field", st.Name, f.Name, f.Kind)
			}
			var v any = value != 0
			if f.Kind == schema.KindInteger {
				dv, err := decodedInteger(f, int64(value))
				if err != nil {
					return 0, err
				}
				v = dv
			}
			if err := c.Accept(&arg, v); err != nil {
				return 0, err
			}
			continue
		}

		var err error
		if f.Shape.IsArray() {
			err = d.decodeArray(block, &arg, c, depth)
		} else {
			err = d.decodeScalar(block, &arg, c, depth)
		}
		if err != nil {
			return 0, err
		}
	}
	return headerSz + off, nil
}

func (d *decoder) decodeScalar(block []byte, a *Arg, c Consumer, depth int) error {
	f := a.Field
	var v any
	switch f.Kind {
	case schema.KindInteger:
		n, err := blockInteger(a, block)
		if err != nil {
			return err
		}
		if v, err = decodedInteger(f, n); err != nil {
			return err
		}
	case schema.KindDouble:
		if len(block) != sizeofInt64 {
			return protocol.Malformedf("%s: double block of %d bytes", f.Name, len(block))
		}
		v = math.Float64frombits(binary.LittleEndian.Uint64(block))
	case schema.KindString:
		v = stringOut(f, block)
	case schema.KindStruct:
		sub, err := d.decodeNested(block, a, c, depth)
		if err != nil {
			return err
		}
		v = sub
	default:
		return protocol.Malformedf("%s: %s value in data block", f.Name, f.Kind)
	}
	return c.Accept(a, v)
}

func (d *decoder) decodeNested(block []byte, a *Arg, c Consumer, depth int) (any, error) {
	sub := c.Nested(a)
	n, err := d.decodeStruct(block, a.Field.Struct, sub, depth+1)
	if err != nil {
		return nil, err
	}
	if n != len(block) {
		return nil, protocol.Malformedf("%s: nested %s used %d of %d bytes", a.Field.Name, a.Field.Struct.Name, n, len(block))
	}
	return sub.Value(), nil
}

func (d *decoder) decodeArray(block []byte, a *Arg, c Consumer, depth int) error {
	if len(block) == 0 {
		return emptyArray(a, c)
	}
	f := a.Field
	switch f.Kind {
	case schema.KindInteger, schema.KindDouble:
		width := int(block[0])
		elems := block[1:]
		if len(elems) == 0 {
			return emptyArray(a, c)
		}
		if width != sizeofInt32 && width != sizeofInt64 {
			return protocol.Malformedf("%s: array element width %d", f.Name, width)
		}
		if f.Kind == schema.KindDouble && width != sizeofInt64 {
			return protocol.Malformedf("%s: double array element width %d", f.Name, width)
		}
		if len(elems)%width != 0 {
			return protocol.Malformedf("%s: %d bytes is not a multiple of width %d", f.Name, len(elems), width)
		}
		for i := 0; i < len(elems)/width; i++ {
			var n int64
			if width == sizeofInt32 {
				n = int64(int32(binary.LittleEndian.Uint32(elems[i*width:])))
			} else {
				n = int64(binary.LittleEndian.Uint64(elems[i*width:]))
			}
			var v any
			if f.Kind == schema.KindDouble {
				v = math.Float64frombits(uint64(n))
			} else {
				dv, err := decodedInteger(f, n)
				if err != nil {
					return err
				}
				v = dv
			}
			a.Index = i + 1
			if err := c.Accept(a, v); err != nil {
				return err
			}
		}
	case schema.KindBoolean:
		for i, b := range block {
			a.Index = i + 1
			if err := c.Accept(a, b != 0); err != nil {
				return err
			}
		}
	case schema.KindString, schema.KindStruct:
		index := 1
		for off := 0; off < len(block); index++ {
			if len(block)-off < sizeofLength {
				return protocol.Malformedf("%s[%d]: element length truncated", f.Name, index)
			}
			sz := uint64(binary.LittleEndian.Uint32(block[off:]))
			off += sizeofLength
			if sz > uint64(len(block)-off) {
				return protocol.Malformedf("%s[%d]: element of %d bytes overruns array", f.Name, index, sz)
			}
			elem := block[off : off+int(sz)]
			off += int(sz)

			a.Index = index
			var v any
			if f.Kind == schema.KindStruct {
				sub, err := d.decodeNested(elem, a, c, depth)
				if err != nil {
					return err
				}
				v = sub
			} else {
				v = stringOut(f, elem)
			}
			if err := c.Accept(a, v); err != nil {
				return err
			}
		}
	default:
		return protocol.Malformedf("%s: unsupported array kind %s", f.Name, f.Kind)
	}
	return nil
}

func emptyArray(a *Arg, c Consumer) error {
	a.Index = -1
	return c.Accept(a, nil)
}

func blockInteger(a *Arg, block []byte) (int64, error) {
	switch len(block) {
	case sizeofInt32:
		return int64(int32(binary.LittleEndian.Uint32(block))), nil
	case sizeofInt64:
		return int64(binary.LittleEndian.Uint64(block)), nil
	default:
		return 0, protocol.Malformedf("%s: integer block of %d bytes", a.Field.Name, len(block))
	}
}

func stringOut(f *schema.Field, b []byte) any {
	if f.Binary {
		out := make([]byte, len(b))
		copy(out, b)
		return out
	}
	return string(b)
}
