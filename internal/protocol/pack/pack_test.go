package pack

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/sproto/internal/protocol"
	"github.com/danmuck/sproto/internal/testutil/testlog"
)

func repeat(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func TestPackVectors(t *testing.T) {
	testlog.Start(t)

	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{
			name: "sparse groups",
			in:   []byte{0x08, 0, 0, 0, 0x03, 0, 0x02, 0, 0x19, 0, 0, 0, 0xaa, 0x01, 0, 0},
			want: []byte{0x51, 0x08, 0x03, 0x02, 0x31, 0x19, 0xaa, 0x01},
		},
		{
			name: "padded dense run",
			in:   repeat(0x8a, 30),
			want: append(append([]byte{0xff, 0x03}, repeat(0x8a, 30)...), 0, 0),
		},
		{
			name: "empty",
			in:   nil,
			want: []byte{},
		},
		{
			name: "all zero",
			in:   make([]byte, 16),
			want: []byte{0x00, 0x00},
		},
		{
			name: "short tail",
			in:   []byte{0x01, 0x02, 0x03},
			want: []byte{0x07, 0x01, 0x02, 0x03},
		},
		{
			name: "seven without a run stays sparse",
			in:   []byte{1, 2, 3, 4, 5, 6, 7, 0},
			want: []byte{0x7f, 1, 2, 3, 4, 5, 6, 7},
		},
		{
			name: "six joins an active run",
			in:   []byte{1, 1, 1, 1, 1, 1, 1, 1, 2, 2, 0, 2, 2, 0, 2, 2},
			want: []byte{0xff, 0x01, 1, 1, 1, 1, 1, 1, 1, 1, 2, 2, 0, 2, 2, 0, 2, 2},
		},
		{
			name: "five ends a run",
			in:   []byte{1, 1, 1, 1, 1, 1, 1, 1, 2, 2, 0, 2, 0, 0, 2, 2},
			want: []byte{0xff, 0x00, 1, 1, 1, 1, 1, 1, 1, 1, 0xcb, 2, 2, 2, 2, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Pack(tt.in)
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("pack: got % x want % x", got, tt.want)
			}
			if len(got) > MaxPackedSize(len(tt.in)) {
				t.Fatalf("pack: %d bytes exceeds bound %d", len(got), MaxPackedSize(len(tt.in)))
			}
			back, err := UnpackSize(got, len(tt.in))
			if err != nil {
				t.Fatalf("unpack: %v", err)
			}
			if !bytes.Equal(back, tt.in) {
				t.Fatalf("unpack: got % x want % x", back, tt.in)
			}
		})
	}
}

func TestPackLongRunSplitsAt256Groups(t *testing.T) {
	testlog.Start(t)
	in := repeat(0x11, 300*8)
	got := Pack(in)

	if got[0] != 0xff || got[1] != 0xff {
		t.Fatalf("first run header: % x", got[:2])
	}
	second := 2 + 256*8
	if got[second] != 0xff || got[second+1] != 43 {
		t.Fatalf("second run header: % x", got[second:second+2])
	}
	if want := 2 + 256*8 + 2 + 44*8; len(got) != want {
		t.Fatalf("packed length: got %d want %d", len(got), want)
	}
	if len(got) > MaxPackedSize(len(in)) {
		t.Fatalf("bound exceeded")
	}
	back, err := Unpack(got, 0)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if !bytes.Equal(back, in) {
		t.Fatalf("round trip mismatch")
	}
}

func TestRoundTripMixed(t *testing.T) {
	testlog.Start(t)
	inputs := [][]byte{
		repeat(0xff, 64),
		repeat(0xff, 2048*2+5),
		make([]byte, 1000),
	}
	mixed := make([]byte, 0, 4096)
	for i := 0; i < 4096; i++ {
		switch {
		case i%13 == 0, i%7 == 3:
			mixed = append(mixed, 0)
		default:
			mixed = append(mixed, byte(i*31+7))
		}
	}
	inputs = append(inputs, mixed)

	for i, in := range inputs {
		packed := Pack(in)
		if len(packed) > MaxPackedSize(len(in)) {
			t.Fatalf("input %d: %d bytes exceeds bound %d", i, len(packed), MaxPackedSize(len(in)))
		}
		out, err := UnpackSize(packed, len(in))
		if err != nil {
			t.Fatalf("input %d: unpack: %v", i, err)
		}
		if !bytes.Equal(out, in) {
			t.Fatalf("input %d: round trip mismatch", i)
		}
	}
}

func TestPackIntoReportsNeed(t *testing.T) {
	testlog.Start(t)
	in := repeat(0x42, 20)
	full := Pack(in)

	_, err := PackInto(make([]byte, 4), in)
	var capErr protocol.CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("want CapacityError, got %v", err)
	}
	if capErr.Need != len(full) {
		t.Fatalf("need: got %d want %d", capErr.Need, len(full))
	}
	n, err := PackInto(make([]byte, capErr.Need), in)
	if err != nil || n != len(full) {
		t.Fatalf("exact buffer: n=%d err=%v", n, err)
	}
}

func TestUnpackIntoReportsNeed(t *testing.T) {
	testlog.Start(t)
	packed := Pack(repeat(0x42, 40))

	_, err := UnpackInto(make([]byte, 8), packed)
	var capErr protocol.CapacityError
	if !errors.As(err, &capErr) || capErr.Need != 40 {
		t.Fatalf("want CapacityError need=40, got %v", err)
	}
	if !errors.Is(err, protocol.ErrCapacity) {
		t.Fatalf("capacity error does not match sentinel")
	}
}

func TestUnpackMalformed(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name string
		in   []byte
	}{
		{name: "escape without count", in: []byte{0xff}},
		{name: "truncated run", in: []byte{0xff, 0x00, 1, 2, 3}},
		{name: "mask missing bytes", in: []byte{0x03, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Unpack(tt.in, 0); !errors.Is(err, protocol.ErrMalformed) {
				t.Fatalf("want malformed, got %v", err)
			}
		})
	}
}

func TestUnpackLimits(t *testing.T) {
	testlog.Start(t)
	packed := Pack(repeat(0x01, 64))
	if _, err := Unpack(packed, 32); !errors.Is(err, protocol.ErrCapacity) {
		t.Fatalf("want capacity error past max size, got %v", err)
	}
	if _, err := UnpackSize(Pack([]byte{1, 2}), 9); !errors.Is(err, protocol.ErrMalformed) {
		t.Fatalf("want malformed for short output, got %v", err)
	}
	if _, err := UnpackSize(Pack([]byte{1, 2, 3}), 2); !errors.Is(err, protocol.ErrMalformed) {
		t.Fatalf("want malformed for non-zero trailing byte, got %v", err)
	}
}
