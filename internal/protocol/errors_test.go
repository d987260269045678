package protocol

import (
	"errors"
	"fmt"
	"testing"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "schema", err: SchemaError{Type: "Person", Reason: "x"}, want: ErrSchema},
		{name: "capacity", err: CapacityError{Need: 10}, want: ErrCapacity},
		{name: "malformed", err: Malformedf("short %d", 3), want: ErrMalformed},
		{name: "value shape", err: ValueShapeError{Type: "Person", Field: "age", Want: "integer"}, want: ErrValueShape},
		{name: "protocol", err: ProtocolError{Session: 4, Reason: "invalid session"}, want: ErrProtocol},
		{name: "depth", err: DepthError{Limit: 64}, want: ErrDepth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, tt.want) {
				t.Fatalf("%v does not match %v", wrapped, tt.want)
			}
			if errors.Is(wrapped, ErrSchema) != (tt.want == ErrSchema) {
				t.Fatalf("%v matched an unrelated sentinel", wrapped)
			}
		})
	}
}

func TestDepthErrorDirection(t *testing.T) {
	enc := DepthError{Limit: 8}
	dec := DepthError{Limit: 8, Decode: true}
	if !errors.Is(enc, ErrValueShape) || errors.Is(enc, ErrMalformed) {
		t.Fatalf("encode depth error matches wrong class")
	}
	if !errors.Is(dec, ErrMalformed) || errors.Is(dec, ErrValueShape) {
		t.Fatalf("decode depth error matches wrong class")
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{SchemaError{Reason: "type missing name"}, "schema: type missing name"},
		{SchemaError{Type: "A", Field: "b", Reason: "dup"}, "schema: type=A field=b: dup"},
		{CapacityError{}, "capacity: output buffer too small"},
		{CapacityError{Need: 32, Max: 16}, "capacity: need 32 bytes, limit 16"},
		{ValueShapeError{Type: "T", Field: "f", Index: 2, Want: "integer", Got: "string"}, "value: T.f[2]: want integer, got string"},
		{ProtocolError{Name: "foo", Reason: "unknown protocol"}, "rpc: protocol=foo: unknown protocol"},
		{ProtocolError{Reason: "session is null"}, "rpc: session is null"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Fatalf("got %q want %q", got, tt.want)
		}
	}
}
