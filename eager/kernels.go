package eager

import (
	"github.com/gomlx/netbuilder/tensors"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

type number interface {
	~float32 | ~float64 | ~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func mapBinary[T any](lhs, rhs []T, fn func(a, b T) T) []T {
	out := make([]T, len(lhs))
	for ii := range lhs {
		out[ii] = fn(lhs[ii], rhs[ii])
	}
	return out
}

// binaryKernel applies an element-wise binary function to two tensors of the same shape.
// Float16 values are computed in float32 and rounded back.
func binaryKernel(name string, lhs, rhs *tensors.Tensor,
	f64 func(a, b float64) float64, f32 func(a, b float32) float32, i64 func(a, b int64) int64) (*tensors.Tensor, error) {
	if !lhs.Shape().Equal(rhs.Shape()) {
		return nil, errors.Errorf("eager.%s: operands must have the same shape, got %s and %s", name, lhs.Shape(), rhs.Shape())
	}
	var flat any
	switch a := lhs.Flat().(type) {
	case []float64:
		flat = mapBinary(a, rhs.Flat().([]float64), f64)
	case []float32:
		flat = mapBinary(a, rhs.Flat().([]float32), f32)
	case []float16.Float16:
		flat = mapBinary(a, rhs.Flat().([]float16.Float16), func(x, y float16.Float16) float16.Float16 {
			return float16.Fromfloat32(f32(x.Float32(), y.Float32()))
		})
	case []int64:
		flat = mapBinary(a, rhs.Flat().([]int64), i64)
	case []int32:
		flat = mapBinary(a, rhs.Flat().([]int32), func(x, y int32) int32 { return int32(i64(int64(x), int64(y))) })
	default:
		return nil, errors.Errorf("eager.%s: dtype %s not supported", name, lhs.DType())
	}
	return tensors.FromFlatDataAndDimensions(flat, lhs.Shape().Dimensions...)
}

func add[T number](a, b T) T      { return a + b }
func multiply[T number](a, b T) T { return a * b }

func addValues(lhs, rhs *tensors.Tensor) (*tensors.Tensor, error) {
	return binaryKernel("Add", lhs, rhs, add[float64], add[float32], add[int64])
}

func multiplyValues(lhs, rhs *tensors.Tensor) (*tensors.Tensor, error) {
	return binaryKernel("Multiply", lhs, rhs, multiply[float64], multiply[float32], multiply[int64])
}

// scaleValues multiplies every element by factor. Only float dtypes are supported.
func scaleValues(x *tensors.Tensor, factor float64) (*tensors.Tensor, error) {
	var flat any
	switch values := x.Flat().(type) {
	case []float64:
		out := make([]float64, len(values))
		for ii, v := range values {
			out[ii] = v * factor
		}
		flat = out
	case []float32:
		out := make([]float32, len(values))
		for ii, v := range values {
			out[ii] = v * float32(factor)
		}
		flat = out
	case []float16.Float16:
		out := make([]float16.Float16, len(values))
		for ii, v := range values {
			out[ii] = float16.Fromfloat32(v.Float32() * float32(factor))
		}
		flat = out
	default:
		return nil, errors.Errorf("eager.Scale: dtype %s not supported, only float dtypes can be scaled", x.DType())
	}
	return tensors.FromFlatDataAndDimensions(flat, x.Shape().Dimensions...)
}
