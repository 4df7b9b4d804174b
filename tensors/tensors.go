// Package tensors implements Tensor, a concrete multi-dimensional array stored on the host, used both to feed
// inputs to and to collect outputs from the backends.
//
// The values are stored in a flat slice, in row-major order, whose Go type corresponds to the shape's DType:
// []float32 for dtypes.Float32, []float16.Float16 (github.com/x448/float16) for dtypes.Float16, etc.
package tensors

import (
	"fmt"
	"math"
	"math/rand/v2"
	"reflect"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/netbuilder/types/shapes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Tensor is a concrete value with a shape, stored on the host.
//
// Tensors are treated as immutable once created: operations return new tensors.
type Tensor struct {
	shape shapes.Shape
	flat  any
}

// FromFlatDataAndDimensions creates a tensor from the flat values (a slice of a supported Go type) and its dimensions.
// The flat slice is owned by the tensor afterward, and it must not be changed.
func FromFlatDataAndDimensions(flat any, dimensions ...int) (*Tensor, error) {
	flatV := reflect.ValueOf(flat)
	if flatV.Kind() != reflect.Slice {
		return nil, errors.Errorf("tensors.FromFlatDataAndDimensions requires a slice, got %T", flat)
	}
	dtype := dtypes.FromGoType(flatV.Type().Elem())
	if dtype == dtypes.InvalidDType {
		return nil, errors.Errorf("unsupported flat values type %T -- expected a slice of a basic data type", flat)
	}
	for _, dim := range dimensions {
		if dim < 0 {
			return nil, errors.Errorf("invalid negative dimension in %v", dimensions)
		}
	}
	shape := shapes.Make(dtype, dimensions...)
	if shape.Size() != flatV.Len() {
		return nil, errors.Errorf("flat values size %d doesn't match shape size %d (%s)", flatV.Len(), shape.Size(), shape)
	}
	return &Tensor{shape: shape, flat: flat}, nil
}

// FromShape creates a zero-initialized tensor of the given shape.
func FromShape(shape shapes.Shape) *Tensor {
	goType := goTypeForDType(shape.DType)
	if goType == nil {
		panic(errors.Errorf("tensors.FromShape(%s): unsupported dtype", shape))
	}
	flat := reflect.MakeSlice(reflect.SliceOf(goType), shape.Size(), shape.Size()).Interface()
	return &Tensor{shape: shape.Clone(), flat: flat}
}

// goTypeForDType returns the Go type used to store values of the dtype, or nil if not supported.
func goTypeForDType(dtype dtypes.DType) reflect.Type {
	switch dtype {
	case dtypes.Float64:
		return reflect.TypeOf(float64(0))
	case dtypes.Float32:
		return reflect.TypeOf(float32(0))
	case dtypes.Float16:
		return reflect.TypeOf(float16.Float16(0))
	case dtypes.Int64:
		return reflect.TypeOf(int64(0))
	case dtypes.Int32:
		return reflect.TypeOf(int32(0))
	case dtypes.Int16:
		return reflect.TypeOf(int16(0))
	case dtypes.Int8:
		return reflect.TypeOf(int8(0))
	case dtypes.Uint64:
		return reflect.TypeOf(uint64(0))
	case dtypes.Uint32:
		return reflect.TypeOf(uint32(0))
	case dtypes.Uint16:
		return reflect.TypeOf(uint16(0))
	case dtypes.Uint8:
		return reflect.TypeOf(uint8(0))
	case dtypes.Bool:
		return reflect.TypeOf(false)
	default:
		return nil
	}
}

// FromAnyValue creates a tensor from a Go scalar or a (multi-level) slice of a supported type, e.g.
// [][]float32{{1, 2}, {3, 4}}.
func FromAnyValue(value any) (*Tensor, error) {
	shape, err := shapes.FromAnyValue(value)
	if err != nil {
		return nil, err
	}
	if goTypeForDType(shape.DType) == nil {
		return nil, errors.Errorf("tensors.FromAnyValue(%T): dtype %s not supported", value, shape.DType)
	}
	t := FromShape(shape)
	flatV := reflect.ValueOf(t.flat)
	idx := 0
	var copyRecursive func(v reflect.Value)
	copyRecursive = func(v reflect.Value) {
		if v.Kind() == reflect.Slice {
			for ii := range v.Len() {
				copyRecursive(v.Index(ii))
			}
			return
		}
		flatV.Index(idx).Set(v.Convert(flatV.Type().Elem()))
		idx++
	}
	copyRecursive(reflect.ValueOf(value))
	return t, nil
}

// FromFloat64s creates a tensor of the given shape, converting the values from float64 to the shape's dtype.
// It is the inverse of Tensor.Float64s.
func FromFloat64s(shape shapes.Shape, values []float64) (*Tensor, error) {
	if shape.Size() != len(values) {
		return nil, errors.Errorf("%d values given for shape %s, which has %d elements", len(values), shape, shape.Size())
	}
	var flat any
	switch shape.DType {
	case dtypes.Float64:
		flat = append([]float64(nil), values...)
	case dtypes.Float32:
		flat = convertFromFloat64(values, func(v float64) float32 { return float32(v) })
	case dtypes.Float16:
		flat = convertFromFloat64(values, func(v float64) float16.Float16 { return float16.Fromfloat32(float32(v)) })
	case dtypes.Int64:
		flat = convertFromFloat64(values, func(v float64) int64 { return int64(v) })
	case dtypes.Int32:
		flat = convertFromFloat64(values, func(v float64) int32 { return int32(v) })
	case dtypes.Int16:
		flat = convertFromFloat64(values, func(v float64) int16 { return int16(v) })
	case dtypes.Int8:
		flat = convertFromFloat64(values, func(v float64) int8 { return int8(v) })
	case dtypes.Uint64:
		flat = convertFromFloat64(values, func(v float64) uint64 { return uint64(v) })
	case dtypes.Uint32:
		flat = convertFromFloat64(values, func(v float64) uint32 { return uint32(v) })
	case dtypes.Uint16:
		flat = convertFromFloat64(values, func(v float64) uint16 { return uint16(v) })
	case dtypes.Uint8:
		flat = convertFromFloat64(values, func(v float64) uint8 { return uint8(v) })
	default:
		return nil, errors.Errorf("tensors.FromFloat64s: dtype %s not supported", shape.DType)
	}
	return &Tensor{shape: shape.Clone(), flat: flat}, nil
}

func convertFromFloat64[T any](values []float64, convert func(float64) T) []T {
	out := make([]T, len(values))
	for ii, v := range values {
		out[ii] = convert(v)
	}
	return out
}

// Random returns a tensor of the given shape filled with values uniformly drawn from [0, 1).
//
// Only float dtypes are supported. Using an rng created with a fixed seed makes it reproducible.
func Random(rng *rand.Rand, shape shapes.Shape) (*Tensor, error) {
	size := shape.Size()
	var flat any
	switch shape.DType {
	case dtypes.Float64:
		values := make([]float64, size)
		for ii := range values {
			values[ii] = rng.Float64()
		}
		flat = values
	case dtypes.Float32:
		values := make([]float32, size)
		for ii := range values {
			values[ii] = rng.Float32()
		}
		flat = values
	case dtypes.Float16:
		values := make([]float16.Float16, size)
		for ii := range values {
			values[ii] = float16.Fromfloat32(rng.Float32())
		}
		flat = values
	default:
		return nil, errors.Errorf("tensors.Random: dtype %s not supported, only float dtypes can be randomly generated", shape.DType)
	}
	return &Tensor{shape: shape.Clone(), flat: flat}, nil
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's elements.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank of the tensor.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size is the number of elements of the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// Memory is the number of bytes used by the tensor's values.
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// Flat returns the flat slice with the tensor values. It must not be modified.
func (t *Tensor) Flat() any { return t.flat }

// Float64s returns a copy of the values converted to float64.
func (t *Tensor) Float64s() ([]float64, error) {
	switch flat := t.flat.(type) {
	case []float64:
		return append([]float64(nil), flat...), nil
	case []float32:
		return convertToFloat64(flat, func(v float32) float64 { return float64(v) }), nil
	case []float16.Float16:
		return convertToFloat64(flat, func(v float16.Float16) float64 { return float64(v.Float32()) }), nil
	case []int64:
		return convertToFloat64(flat, func(v int64) float64 { return float64(v) }), nil
	case []int32:
		return convertToFloat64(flat, func(v int32) float64 { return float64(v) }), nil
	case []int16:
		return convertToFloat64(flat, func(v int16) float64 { return float64(v) }), nil
	case []int8:
		return convertToFloat64(flat, func(v int8) float64 { return float64(v) }), nil
	case []uint64:
		return convertToFloat64(flat, func(v uint64) float64 { return float64(v) }), nil
	case []uint32:
		return convertToFloat64(flat, func(v uint32) float64 { return float64(v) }), nil
	case []uint16:
		return convertToFloat64(flat, func(v uint16) float64 { return float64(v) }), nil
	case []uint8:
		return convertToFloat64(flat, func(v uint8) float64 { return float64(v) }), nil
	case []bool:
		return convertToFloat64(flat, func(v bool) float64 {
			if v {
				return 1
			}
			return 0
		}), nil
	default:
		return nil, errors.Errorf("tensor with shape %s cannot be converted to float64", t.shape)
	}
}

func convertToFloat64[T any](flat []T, convert func(T) float64) []float64 {
	out := make([]float64, len(flat))
	for ii, v := range flat {
		out[ii] = convert(v)
	}
	return out
}

// Reshape returns a tensor sharing the same values with a different shape. The number of elements must match.
func (t *Tensor) Reshape(dimensions ...int) (*Tensor, error) {
	newShape := shapes.Make(t.shape.DType, dimensions...)
	if newShape.Size() != t.shape.Size() {
		return nil, errors.Errorf("cannot reshape tensor %s to %s: different number of elements", t.shape, newShape)
	}
	return &Tensor{shape: newShape, flat: t.flat}, nil
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	flatV := reflect.ValueOf(t.flat)
	clone := reflect.MakeSlice(flatV.Type(), flatV.Len(), flatV.Len())
	reflect.Copy(clone, flatV)
	return &Tensor{shape: t.shape.Clone(), flat: clone.Interface()}
}

// String implements fmt.Stringer. Large tensors have their values elided.
func (t *Tensor) String() string {
	if t.Size() > 16 {
		return fmt.Sprintf("%s: [%d values]", t.shape, t.Size())
	}
	return t.GoStr()
}

// GoStr returns the shape and the flat values of the tensor.
func (t *Tensor) GoStr() string {
	var sb strings.Builder
	sb.WriteString(t.shape.String())
	sb.WriteString(": ")
	switch flat := t.flat.(type) {
	case []float16.Float16:
		values := make([]float32, len(flat))
		for ii, v := range flat {
			values[ii] = v.Float32()
		}
		fmt.Fprintf(&sb, "%v", values)
	default:
		fmt.Fprintf(&sb, "%v", flat)
	}
	return sb.String()
}

// InDelta returns whether the two tensors have the same shape and all values are within delta of each other.
// NaN values are considered equal to each other.
func (t *Tensor) InDelta(other *Tensor, delta float64) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	values, err := t.Float64s()
	if err != nil {
		return false
	}
	otherValues, err := other.Float64s()
	if err != nil {
		return false
	}
	for ii, v := range values {
		o := otherValues[ii]
		if math.IsNaN(v) || math.IsNaN(o) {
			if math.IsNaN(v) != math.IsNaN(o) {
				return false
			}
			continue
		}
		if math.Abs(v-o) > delta {
			return false
		}
	}
	return true
}
