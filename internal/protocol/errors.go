package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrSchema     = errors.New("protocol: schema error")
	ErrCapacity   = errors.New("protocol: insufficient capacity")
	ErrMalformed  = errors.New("protocol: malformed input")
	ErrValueShape = errors.New("protocol: value shape mismatch")
	ErrProtocol   = errors.New("protocol: rpc protocol error")
	ErrDepth      = errors.New("protocol: nesting too deep")
)

// SchemaError reports a definition that cannot be imported.
type SchemaError struct {
	Type   string
	Field  string
	Reason string
}

func (e SchemaError) Error() string {
	switch {
	case e.Type == "":
		return fmt.Sprintf("schema: %s", e.Reason)
	case e.Field == "":
		return fmt.Sprintf("schema: type=%s: %s", e.Type, e.Reason)
	default:
		return fmt.Sprintf("schema: type=%s field=%s: %s", e.Type, e.Field, e.Reason)
	}
}

func (e SchemaError) Is(target error) bool { return target == ErrSchema }

// CapacityError signals that an output buffer was too small.
// Need is a suggested size; zero means the caller should double.
type CapacityError struct {
	Need int
	Max  int
}

func (e CapacityError) Error() string {
	if e.Max > 0 {
		return fmt.Sprintf("capacity: need %d bytes, limit %d", e.Need, e.Max)
	}
	if e.Need > 0 {
		return fmt.Sprintf("capacity: need %d bytes", e.Need)
	}
	return "capacity: output buffer too small"
}

func (e CapacityError) Is(target error) bool { return target == ErrCapacity }

// MalformedError reports inconsistent or truncated input.
type MalformedError struct {
	Reason string
}

func (e MalformedError) Error() string { return "malformed: " + e.Reason }

func (e MalformedError) Is(target error) bool { return target == ErrMalformed }

// Malformedf builds a MalformedError.
func Malformedf(format string, args ...any) error {
	return MalformedError{Reason: fmt.Sprintf(format, args...)}
}

// ValueShapeError reports a value that does not fit its field.
type ValueShapeError struct {
	Type  string
	Field string
	Index int
	Want  string
	Got   string
}

func (e ValueShapeError) Error() string {
	where := e.Type + "." + e.Field
	if e.Index > 0 {
		where = fmt.Sprintf("%s[%d]", where, e.Index)
	}
	if e.Got == "" {
		return fmt.Sprintf("value: %s: want %s", where, e.Want)
	}
	return fmt.Sprintf("value: %s: want %s, got %s", where, e.Want, e.Got)
}

func (e ValueShapeError) Is(target error) bool { return target == ErrValueShape }

// ProtocolError reports an rpc-level failure in the host.
type ProtocolError struct {
	Name    string
	Tag     int
	Session int64
	Reason  string
}

func (e ProtocolError) Error() string {
	switch {
	case e.Name != "":
		return fmt.Sprintf("rpc: protocol=%s: %s", e.Name, e.Reason)
	case e.Session != 0:
		return fmt.Sprintf("rpc: session=%d: %s", e.Session, e.Reason)
	case e.Tag != 0:
		return fmt.Sprintf("rpc: tag=%d: %s", e.Tag, e.Reason)
	default:
		return "rpc: " + e.Reason
	}
}

func (e ProtocolError) Is(target error) bool { return target == ErrProtocol }

// DepthError reports recursion beyond the configured limit. It matches
// ErrDepth and, depending on direction, ErrValueShape or ErrMalformed.
type DepthError struct {
	Limit  int
	Decode bool
}

func (e DepthError) Error() string {
	return fmt.Sprintf("depth: nesting exceeds %d levels", e.Limit)
}

func (e DepthError) Is(target error) bool {
	if target == ErrDepth {
		return true
	}
	if e.Decode {
		return target == ErrMalformed
	}
	return target == ErrValueShape
}
