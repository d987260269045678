// Package pack implements the zero-suppression transform applied to encoded
// struct bodies before they are sent.
//
// Input is taken 8 bytes at a time, the last group zero-padded. A sparse group
// is written as a bitmask byte (bit i set when byte i is non-zero) followed by
// its non-zero bytes. Dense groups are merged into runs written as
// 0xFF, groups-1, then the raw bytes of up to 256 groups.
package pack

import (
	"github.com/danmuck/sproto/internal/protocol"
)

const (
	groupSize = 8
	escape    = 0xff
	maxRun    = 256

	// DefaultMaxSize bounds the output of Unpack.
	DefaultMaxSize = 0x1000000
)

// MaxPackedSize is the worst case output length for n input bytes.
func MaxPackedSize(n int) int {
	return (n+2047)/2048*2 + n + 2
}

// writer stores bytes while they fit and keeps counting once they do not,
// so a short buffer still reports the size it needed.
type writer struct {
	dst []byte
	n   int
}

func (w *writer) put(b byte) {
	if w.n < len(w.dst) {
		w.dst[w.n] = b
	}
	w.n++
}

func (w *writer) putAt(off int, b byte) {
	if off < len(w.dst) {
		w.dst[off] = b
	}
}

// PackInto packs src into dst and returns the packed length. When dst is too
// small it returns a protocol.CapacityError whose Need is the full length.
func PackInto(dst, src []byte) (int, error) {
	w := writer{dst: dst}
	runStart := -1
	runGroups := 0

	flush := func() {
		if runGroups > 0 {
			w.putAt(runStart+1, byte(runGroups-1))
		}
		runStart = -1
		runGroups = 0
	}

	var group [groupSize]byte
	for off := 0; off < len(src); off += groupSize {
		group = [groupSize]byte{}
		copy(group[:], src[off:])

		var mask byte
		nonZero := 0
		for i, b := range group {
			if b != 0 {
				mask |= 1 << i
				nonZero++
			}
		}

		dense := nonZero == groupSize || (runGroups > 0 && nonZero >= groupSize-2)
		if !dense {
			flush()
			w.put(mask)
			for _, b := range group {
				if b != 0 {
					w.put(b)
				}
			}
			continue
		}

		if runGroups == 0 {
			runStart = w.n
			w.put(escape)
			w.put(0)
		}
		for _, b := range group {
			w.put(b)
		}
		runGroups++
		if runGroups == maxRun {
			flush()
		}
	}
	flush()

	if w.n > len(dst) {
		return 0, protocol.CapacityError{Need: w.n}
	}
	return w.n, nil
}

// Pack returns the packed form of src.
func Pack(src []byte) []byte {
	dst := make([]byte, MaxPackedSize(len(src)))
	n, err := PackInto(dst, src)
	if err != nil {
		// MaxPackedSize always covers the output.
		panic(err)
	}
	return dst[:n]
}
