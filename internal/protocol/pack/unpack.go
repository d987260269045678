package pack

import (
	"errors"

	"github.com/danmuck/sproto/internal/protocol"
)

// UnpackInto expands src into dst. The whole input is always walked; if dst
// is too small the result is a protocol.CapacityError carrying the exact
// size required. Output length is always a multiple of 8.
func UnpackInto(dst, src []byte) (int, error) {
	w := writer{dst: dst}
	for i := 0; i < len(src); {
		header := src[i]
		i++
		if header == escape {
			if i >= len(src) {
				return 0, protocol.Malformedf("pack: escape at offset %d has no run length", i-1)
			}
			n := (int(src[i]) + 1) * groupSize
			i++
			if len(src)-i < n {
				return 0, protocol.Malformedf("pack: run of %d bytes truncated to %d", n, len(src)-i)
			}
			if w.n+n <= len(dst) {
				copy(dst[w.n:], src[i:i+n])
			}
			w.n += n
			i += n
			continue
		}
		for bit := 0; bit < groupSize; bit++ {
			if header&(1<<bit) == 0 {
				w.put(0)
				continue
			}
			if i >= len(src) {
				return 0, protocol.Malformedf("pack: group mask %#02x missing payload bytes", header)
			}
			w.put(src[i])
			i++
		}
	}
	if w.n > len(dst) {
		return 0, protocol.CapacityError{Need: w.n}
	}
	return w.n, nil
}

// Unpack expands src, growing the output once to the exact size needed.
// maxSize bounds that size; zero or less means DefaultMaxSize.
func Unpack(src []byte, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	size := len(src) * 2
	if size < groupSize {
		size = groupSize
	}
	if size > maxSize {
		size = maxSize
	}
	dst := make([]byte, size)
	n, err := UnpackInto(dst, src)
	if err == nil {
		return dst[:n], nil
	}
	var capErr protocol.CapacityError
	if !errors.As(err, &capErr) {
		return nil, err
	}
	if capErr.Need > maxSize {
		return nil, protocol.CapacityError{Need: capErr.Need, Max: maxSize}
	}
	dst = make([]byte, capErr.Need)
	n, err = UnpackInto(dst, src)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// UnpackSize expands src and trims the group padding back to size bytes.
// The padding must be zero and the output must cover size.
func UnpackSize(src []byte, size int) ([]byte, error) {
	if size < 0 {
		return nil, protocol.Malformedf("pack: negative size %d", size)
	}
	limit := (size + groupSize - 1) / groupSize * groupSize
	if limit < DefaultMaxSize {
		limit = DefaultMaxSize
	}
	out, err := Unpack(src, limit)
	if err != nil {
		return nil, err
	}
	if len(out) < size {
		return nil, protocol.Malformedf("pack: unpacked %d bytes, want %d", len(out), size)
	}
	for _, b := range out[size:] {
		if b != 0 {
			return nil, protocol.Malformedf("pack: non-zero byte after %d bytes", size)
		}
	}
	return out[:size], nil
}
