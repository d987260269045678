package wire

import (
	"encoding/binary"
	"math"

	"github.com/danmuck/sproto/internal/protocol"
	"github.com/danmuck/sproto/internal/protocol/schema"
)

const (
	sizeofHeader = 2
	sizeofField  = 2
	sizeofLength = 4
	sizeofInt32  = 4
	sizeofInt64  = 8

	// maxInline is the exclusive upper bound for values stored in a slot.
	maxInline = 0x7fff
)

var errShort = protocol.CapacityError{}

type encoder struct {
	maxDepth int
}

// EncodeInto writes the struct body for st into dst and returns its length.
// A protocol.CapacityError means dst was too small; dst contents are then
// undefined and the caller retries with a larger buffer.
func EncodeInto(dst []byte, st *schema.Type, v Visitor, maxDepth int) (int, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	e := encoder{maxDepth: maxDepth}
	return e.encodeStruct(dst, st, v, 0)
}

func (e *encoder) encodeStruct(buf []byte, st *schema.Type, v Visitor, depth int) (int, error) {
	if depth >= e.maxDepth {
		return 0, protocol.DepthError{Limit: e.maxDepth}
	}
	headerSz := sizeofHeader + st.MaxN()*sizeofField
	if len(buf) < headerSz {
		return 0, errShort
	}
	data := headerSz
	index := 0
	lastTag := -1

	for _, f := range st.Fields() {
		arg := Arg{Parent: st, Field: f}
		var slot int

		if f.Shape.IsArray() {
			n, ok, err := e.encodeArray(buf[data:], &arg, v, depth)
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}
			data += n
		} else {
			val, presence, err := v.Provide(&arg)
			if err != nil {
				return 0, err
			}
			if presence != Present {
				continue
			}
			inline, n, err := e.encodeScalar(buf[data:], &arg, v, val, depth)
			if err != nil {
				return 0, err
			}
			if n == 0 {
				slot = (inline + 1) * 2
			}
			data += n
		}

		gap := f.Tag - lastTag - 1
		if gap > 0 {
			skip := (gap-1)*2 + 1
			if skip > math.MaxUint16 {
				return 0, protocol.SchemaError{Type: st.Name, Field: f.Name, Reason: "tag gap exceeds slot range"}
			}
			binary.LittleEndian.PutUint16(buf[sizeofHeader+index*sizeofField:], uint16(skip))
			index++
		}
		binary.LittleEndian.PutUint16(buf[sizeofHeader+index*sizeofField:], uint16(slot))
		index++
		lastTag = f.Tag
	}

	binary.LittleEndian.PutUint16(buf, uint16(index))
	datasz := data - headerSz
	if index != st.MaxN() {
		copy(buf[sizeofHeader+index*sizeofField:], buf[headerSz:data])
	}
	return sizeofHeader + index*sizeofField + datasz, nil
}

// encodeScalar writes one non-array value. It returns the inline slot value
// when n is zero, otherwise the number of data bytes written.
func (e *encoder) encodeScalar(buf []byte, a *Arg, v Visitor, val any, depth int) (inline, n int, err error) {
	switch a.Field.Kind {
	case schema.KindInteger:
		x, err := integerValue(a, val)
		if err != nil {
			return 0, 0, err
		}
		if x >= 0 && x < maxInline {
			return int(x), 0, nil
		}
		n, err = putInteger(buf, x)
		return 0, n, err
	case schema.KindBoolean:
		b, err := booleanValue(a, val)
		if err != nil {
			return 0, 0, err
		}
		if b {
			return 1, 0, nil
		}
		return 0, 0, nil
	case schema.KindDouble:
		x, err := doubleValue(a, val)
		if err != nil {
			return 0, 0, err
		}
		n, err = putUint64Block(buf, math.Float64bits(x))
		return 0, n, err
	case schema.KindString:
		s, err := stringValue(a, val)
		if err != nil {
			return 0, 0, err
		}
		n, err = putBlock(buf, s)
		return 0, n, err
	case schema.KindStruct:
		n, err = e.encodeNested(buf, a, v, val, depth)
		return 0, n, err
	default:
		return 0, 0, shapeError(a, a.Field.Kind.String(), val)
	}
}

func (e *encoder) encodeNested(buf []byte, a *Arg, v Visitor, val any, depth int) (int, error) {
	if len(buf) < sizeofLength {
		return 0, errShort
	}
	sub, err := v.Nested(a, val)
	if err != nil {
		return 0, err
	}
	n, err := e.encodeStruct(buf[sizeofLength:], a.Field.Struct, sub, depth+1)
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint32(buf, uint32(n))
	return sizeofLength + n, nil
}

// encodeArray writes [u32 length][elements]. ok is false when the visitor
// reports the field has no container.
func (e *encoder) encodeArray(buf []byte, a *Arg, v Visitor, depth int) (n int, ok bool, err error) {
	if len(buf) < sizeofLength {
		return 0, false, errShort
	}
	var body int
	switch a.Field.Kind {
	case schema.KindInteger, schema.KindDouble:
		body, ok, err = e.encodeNumberArray(buf[sizeofLength:], a, v)
	case schema.KindBoolean:
		body, ok, err = e.encodeBooleanArray(buf[sizeofLength:], a, v)
	default:
		body, ok, err = e.encodeBlockArray(buf[sizeofLength:], a, v, depth)
	}
	if err != nil || !ok {
		return 0, ok, err
	}
	binary.LittleEndian.PutUint32(buf, uint32(body))
	return sizeofLength + body, true, nil
}

// encodeNumberArray packs elements at a shared width chosen lazily: 4 bytes
// until some element needs 8, at which point earlier elements are widened in
// place with sign extension.
func (e *encoder) encodeNumberArray(buf []byte, a *Arg, v Visitor) (int, bool, error) {
	if len(buf) < 1 {
		return 0, false, errShort
	}
	width := sizeofInt32
	if a.Field.Kind == schema.KindDouble {
		width = sizeofInt64
	}
	elems := buf[1:]
	count := 0
	for index := 1; ; index++ {
		a.Index = index
		val, presence, err := v.Provide(a)
		if err != nil {
			return 0, false, err
		}
		if presence == NotContainer {
			return 0, false, nil
		}
		if presence == Absent {
			break
		}

		var x int64
		if a.Field.Kind == schema.KindDouble {
			f, err := doubleValue(a, val)
			if err != nil {
				return 0, false, err
			}
			x = int64(math.Float64bits(f))
		} else {
			x, err = integerValue(a, val)
			if err != nil {
				return 0, false, err
			}
		}

		if width == sizeofInt32 && !fitsInt32(x) {
			if len(elems) < (count+1)*sizeofInt64 {
				return 0, false, errShort
			}
			for i := count - 1; i >= 0; i-- {
				w := int32(binary.LittleEndian.Uint32(elems[i*sizeofInt32:]))
				binary.LittleEndian.PutUint64(elems[i*sizeofInt64:], uint64(int64(w)))
			}
			width = sizeofInt64
		}
		off := count * width
		if len(elems) < off+width {
			return 0, false, errShort
		}
		if width == sizeofInt32 {
			binary.LittleEndian.PutUint32(elems[off:], uint32(x))
		} else {
			binary.LittleEndian.PutUint64(elems[off:], uint64(x))
		}
		count++
	}
	a.Index = 0
	if count == 0 {
		return 0, true, nil
	}
	buf[0] = byte(width)
	return 1 + count*width, true, nil
}

func (e *encoder) encodeBooleanArray(buf []byte, a *Arg, v Visitor) (int, bool, error) {
	count := 0
	for index := 1; ; index++ {
		a.Index = index
		val, presence, err := v.Provide(a)
		if err != nil {
			return 0, false, err
		}
		if presence == NotContainer {
			return 0, false, nil
		}
		if presence == Absent {
			break
		}
		b, err := booleanValue(a, val)
		if err != nil {
			return 0, false, err
		}
		if len(buf) <= count {
			return 0, false, errShort
		}
		buf[count] = 0
		if b {
			buf[count] = 1
		}
		count++
	}
	a.Index = 0
	return count, true, nil
}

// encodeBlockArray writes strings and structs as independent length-prefixed
// blocks. Map shaped fields arrive here as their element struct type.
func (e *encoder) encodeBlockArray(buf []byte, a *Arg, v Visitor, depth int) (int, bool, error) {
	off := 0
	for index := 1; ; index++ {
		a.Index = index
		val, presence, err := v.Provide(a)
		if err != nil {
			return 0, false, err
		}
		if presence == NotContainer {
			return 0, false, nil
		}
		if presence == Absent {
			break
		}
		var n int
		if a.Field.Kind == schema.KindStruct {
			n, err = e.encodeNested(buf[off:], a, v, val, depth)
		} else {
			var s []byte
			if s, err = stringValue(a, val); err == nil {
				n, err = putBlock(buf[off:], s)
			}
		}
		if err != nil {
			return 0, false, err
		}
		off += n
	}
	a.Index = 0
	return off, true, nil
}

// putInteger writes a data block of 4 bytes when n fits in int32, else 8.
func putInteger(buf []byte, n int64) (int, error) {
	if fitsInt32(n) {
		if len(buf) < sizeofLength+sizeofInt32 {
			return 0, errShort
		}
		binary.LittleEndian.PutUint32(buf, sizeofInt32)
		binary.LittleEndian.PutUint32(buf[sizeofLength:], uint32(n))
		return sizeofLength + sizeofInt32, nil
	}
	return putUint64Block(buf, uint64(n))
}

func putUint64Block(buf []byte, u uint64) (int, error) {
	if len(buf) < sizeofLength+sizeofInt64 {
		return 0, errShort
	}
	binary.LittleEndian.PutUint32(buf, sizeofInt64)
	binary.LittleEndian.PutUint64(buf[sizeofLength:], u)
	return sizeofLength + sizeofInt64, nil
}

func putBlock(buf []byte, payload []byte) (int, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return 0, protocol.Malformedf("block of %d bytes exceeds u32 length", len(payload))
	}
	if len(buf) < sizeofLength+len(payload) {
		return 0, errShort
	}
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[sizeofLength:], payload)
	return sizeofLength + len(payload), nil
}
