package wire

import (
	"fmt"
	"math"

	"github.com/cockroachdb/apd/v3"
	"github.com/danmuck/sproto/internal/protocol"
	"github.com/danmuck/sproto/internal/protocol/schema"
)

// Scaled fixed-point values round half toward positive infinity: ties go up
// for positive values and toward zero for negative ones.
var (
	decimalContext = func() *apd.Context {
		c := apd.BaseContext.WithPrecision(40)
		c.Rounding = apd.RoundHalfUp
		return c
	}()
	negativeDecimalContext = func() *apd.Context {
		c := apd.BaseContext.WithPrecision(40)
		c.Rounding = apd.RoundHalfDown
		return c
	}()
)

func shapeError(a *Arg, want string, got any) error {
	e := protocol.ValueShapeError{
		Field: a.Field.Name,
		Index: a.Index,
		Want:  want,
	}
	if a.Parent != nil {
		e.Type = a.Parent.Name
	}
	if got != nil {
		e.Got = fmt.Sprintf("%T", got)
	} else {
		e.Got = "nil"
	}
	return e
}

// integerValue normalizes any Go integer into the 64-bit signed domain.
func integerValue(a *Arg, v any) (int64, error) {
	if a.Field.Scale > 0 {
		return decimalValue(a, v)
	}
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, shapeError(a, "integer within int64", v)
		}
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, shapeError(a, "integer within int64", v)
		}
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, shapeError(a, "integral number", v)
		}
		return int64(x), nil
	default:
		return 0, shapeError(a, "integer", v)
	}
}

// decimalValue scales a fixed-point value by 10^decimal and rounds it to the
// nearest integer.
func decimalValue(a *Arg, v any) (int64, error) {
	var d apd.Decimal
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, shapeError(a, "finite decimal", v)
		}
		if _, err := d.SetFloat64(x); err != nil {
			return 0, shapeError(a, "decimal", v)
		}
	case float32:
		return decimalValue(a, float64(x))
	case *apd.Decimal:
		if x == nil {
			return 0, shapeError(a, "decimal", v)
		}
		d.Set(x)
	case apd.Decimal:
		d.Set(&x)
	default:
		raw := *a
		raw.Field = &schema.Field{Name: a.Field.Name, Tag: a.Field.Tag, Kind: schema.KindInteger}
		n, err := integerValue(&raw, v)
		if err != nil {
			return 0, shapeError(a, "decimal", v)
		}
		d.SetInt64(n)
	}
	if d.Form != apd.Finite {
		return 0, shapeError(a, "finite decimal", v)
	}
	d.Exponent += int32(a.Field.Decimal)
	ctx := decimalContext
	if d.Negative {
		ctx = negativeDecimalContext
	}
	if _, err := ctx.Quantize(&d, &d, 0); err != nil {
		return 0, shapeError(a, "decimal within int64", v)
	}
	n, err := d.Int64()
	if err != nil {
		return 0, shapeError(a, "decimal within int64", v)
	}
	return n, nil
}

// decodedInteger turns a wire integer into the value handed to consumers.
func decodedInteger(f *schema.Field, n int64) (any, error) {
	if f.Scale == 0 {
		return n, nil
	}
	x, err := apd.New(n, -int32(f.Decimal)).Float64()
	if err != nil {
		return nil, protocol.Malformedf("decimal %s: %v", f.Name, err)
	}
	return x, nil
}

func doubleValue(a *Arg, v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64, int, int32, int16, int8, uint64, uint32, uint16, uint8, uint:
		raw := *a
		raw.Field = &schema.Field{Name: a.Field.Name, Tag: a.Field.Tag, Kind: schema.KindInteger}
		n, err := integerValue(&raw, v)
		if err != nil {
			return 0, err
		}
		return float64(n), nil
	default:
		return 0, shapeError(a, "double", v)
	}
}

func booleanValue(a *Arg, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, shapeError(a, "boolean", v)
	}
	return b, nil
}

func stringValue(a *Arg, v any) ([]byte, error) {
	switch x := v.(type) {
	case string:
		return []byte(x), nil
	case []byte:
		return x, nil
	default:
		if a.Field.Binary {
			return nil, shapeError(a, "binary", v)
		}
		return nil, shapeError(a, "string", v)
	}
}

// fitsInt32 reports whether n survives a round trip through int32.
func fitsInt32(n int64) bool {
	hi := n >> 31
	return hi == 0 || hi == -1
}
