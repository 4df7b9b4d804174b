package netbuilder

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/netbuilder/types/shapes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Literal is a constant tensor value embedded in a program, like the value of a Constant operation.
//
// It is rendered as a StableHLO dense attribute, e.g.: `dense<[[1.0, 2.0], [3.0, 4.0]]> : tensor<2x2xf32>`.
type Literal struct {
	shape shapes.Shape
	flat  any
}

// NewLiteral creates a Literal from a flat slice of values and the dimensions of its shape.
func NewLiteral(flat any, dimensions ...int) (*Literal, error) {
	flatV := reflect.ValueOf(flat)
	if flatV.Kind() != reflect.Slice {
		return nil, errors.Errorf("literal values must be given as a flat slice, got %T", flat)
	}
	dtype := dtypes.FromGoType(flatV.Type().Elem())
	if dtype == dtypes.InvalidDType {
		return nil, errors.Errorf("unsupported literal flat values type %T -- expected a slice of a basic data type", flat)
	}
	for _, dim := range dimensions {
		if dim < 0 {
			return nil, errors.Errorf("invalid negative dimension in literal dimensions %v", dimensions)
		}
	}
	shape := shapes.Make(dtype, dimensions...)
	if shape.Size() != flatV.Len() {
		return nil, errors.Errorf("flat values size %d doesn't match shape size %d (%s)", flatV.Len(), shape.Size(), shape)
	}
	return &Literal{shape: shape, flat: flat}, nil
}

// Shape of the literal.
func (l *Literal) Shape() shapes.Shape {
	return l.shape
}

// Flat returns the flat slice of values of the literal. It must not be modified.
func (l *Literal) Flat() any {
	return l.flat
}

// ToStableHLO returns the dense attribute representation of the literal.
func (l *Literal) ToStableHLO() string {
	var sb strings.Builder
	sb.WriteString("dense<")
	flatV := reflect.ValueOf(l.flat)
	if l.shape.IsScalar() {
		sb.WriteString(scalarToStableHLO(flatV.Index(0).Interface()))
	} else {
		idx := 0
		var writeAxis func(axis int)
		writeAxis = func(axis int) {
			sb.WriteString("[")
			for ii := range l.shape.Dimensions[axis] {
				if ii > 0 {
					sb.WriteString(", ")
				}
				if axis == l.shape.Rank()-1 {
					sb.WriteString(scalarToStableHLO(flatV.Index(idx).Interface()))
					idx++
				} else {
					writeAxis(axis + 1)
				}
			}
			sb.WriteString("]")
		}
		writeAxis(0)
	}
	sb.WriteString("> : ")
	sb.WriteString(l.shape.ToStableHLO())
	return sb.String()
}

// scalarToStableHLO formats one element of a dense literal.
//
// Floats always carry a decimal point, and non-finite values use the hexadecimal bit pattern StableHLO expects.
func scalarToStableHLO(value any) string {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Sprintf("0x%016X", math.Float64bits(v))
		}
		return floatToStableHLO(v, 64)
	case float32:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Sprintf("0x%08X", math.Float32bits(v))
		}
		return floatToStableHLO(float64(v), 32)
	case float16.Float16:
		if v.IsNaN() || v.IsInf(0) {
			return fmt.Sprintf("0x%04X", v.Bits())
		}
		return floatToStableHLO(float64(v.Float32()), 32)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%d", v)
	}
}

func floatToStableHLO(v float64, bitSize int) string {
	s := strconv.FormatFloat(v, 'e', -1, bitSize)
	mantissa, exponent, _ := strings.Cut(s, "e")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	return mantissa + "e" + exponent
}

// intArray is an attribute holding a list of axes or dimensions, rendered as `array<i64: 1, 0>`.
type intArray []int

// ToStableHLO implements hasToStableHLO.
func (a intArray) ToStableHLO() string {
	var sb strings.Builder
	sb.WriteString("array<i64")
	for ii, v := range a {
		if ii == 0 {
			sb.WriteString(": ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(v))
	}
	sb.WriteString(">")
	return sb.String()
}
