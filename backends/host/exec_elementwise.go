package host

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/netbuilder"
	"github.com/gomlx/netbuilder/internal/optypes"
	"github.com/gomlx/netbuilder/tensors"
	"github.com/x448/float16"
)

func init() {
	statementExecutors[optypes.Add] = execBinary(func(a, b float64) float64 { return a + b },
		addGeneric[int64], addGeneric[int32], addGeneric[int16], addGeneric[int8],
		addGeneric[uint64], addGeneric[uint32], addGeneric[uint16], addGeneric[uint8])
	statementExecutors[optypes.Subtract] = execBinary(func(a, b float64) float64 { return a - b },
		subGeneric[int64], subGeneric[int32], subGeneric[int16], subGeneric[int8],
		subGeneric[uint64], subGeneric[uint32], subGeneric[uint16], subGeneric[uint8])
	statementExecutors[optypes.Multiply] = execBinary(func(a, b float64) float64 { return a * b },
		mulGeneric[int64], mulGeneric[int32], mulGeneric[int16], mulGeneric[int8],
		mulGeneric[uint64], mulGeneric[uint32], mulGeneric[uint16], mulGeneric[uint8])
	statementExecutors[optypes.Negate] = execNeg
	statementExecutors[optypes.Abs] = execAbs
}

type integerPODConstraints interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

type signedPODConstraints interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

func addGeneric[T integerPODConstraints](a, b T) T { return a + b }
func subGeneric[T integerPODConstraints](a, b T) T { return a - b }
func mulGeneric[T integerPODConstraints](a, b T) T { return a * b }

func mapBinary[T any](lhs, rhs []T, fn func(a, b T) T) []T {
	output := make([]T, len(lhs))
	for ii := range lhs {
		output[ii] = fn(lhs[ii], rhs[ii])
	}
	return output
}

func mapUnary[T any](input []T, fn func(v T) T) []T {
	output := make([]T, len(input))
	for ii, v := range input {
		output[ii] = fn(v)
	}
	return output
}

// execBinary returns the executor of an element-wise binary operation.
//
// Float32 values are computed in float64 and rounded back, which gives the correctly rounded result for
// addition, subtraction and multiplication. Float16 values are computed the same way.
func execBinary(floatFn func(a, b float64) float64,
	i64 func(a, b int64) int64, i32 func(a, b int32) int32, i16 func(a, b int16) int16, i8 func(a, b int8) int8,
	u64 func(a, b uint64) uint64, u32 func(a, b uint32) uint32, u16 func(a, b uint16) uint16, u8 func(a, b uint8) uint8,
) statementExecutor {
	return func(stmt *netbuilder.Statement, operands []*tensors.Tensor) *tensors.Tensor {
		lhs, rhs := operands[0], operands[1]
		var flat any
		switch lhsFlat := lhs.Flat().(type) {
		case []float64:
			flat = mapBinary(lhsFlat, rhs.Flat().([]float64), floatFn)
		case []float32:
			flat = mapBinary(lhsFlat, rhs.Flat().([]float32), func(a, b float32) float32 {
				return float32(floatFn(float64(a), float64(b)))
			})
		case []float16.Float16:
			flat = mapBinary(lhsFlat, rhs.Flat().([]float16.Float16), func(a, b float16.Float16) float16.Float16 {
				return float16.Fromfloat32(float32(floatFn(float64(a.Float32()), float64(b.Float32()))))
			})
		case []int64:
			flat = mapBinary(lhsFlat, rhs.Flat().([]int64), i64)
		case []int32:
			flat = mapBinary(lhsFlat, rhs.Flat().([]int32), i32)
		case []int16:
			flat = mapBinary(lhsFlat, rhs.Flat().([]int16), i16)
		case []int8:
			flat = mapBinary(lhsFlat, rhs.Flat().([]int8), i8)
		case []uint64:
			flat = mapBinary(lhsFlat, rhs.Flat().([]uint64), u64)
		case []uint32:
			flat = mapBinary(lhsFlat, rhs.Flat().([]uint32), u32)
		case []uint16:
			flat = mapBinary(lhsFlat, rhs.Flat().([]uint16), u16)
		case []uint8:
			flat = mapBinary(lhsFlat, rhs.Flat().([]uint8), u8)
		default:
			exceptions.Panicf("unsupported data type %s for %s", lhs.DType(), stmt.OpType)
		}
		return newTensor(flat, lhs.Shape().Dimensions)
	}
}

func negGeneric[T signedPODConstraints](v T) T { return -v }

func absGeneric[T signedPODConstraints](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

// execNeg executes the unary op Negate.
func execNeg(stmt *netbuilder.Statement, operands []*tensors.Tensor) *tensors.Tensor {
	input := operands[0]
	var flat any
	switch inputFlat := input.Flat().(type) {
	case []float64:
		flat = mapUnary(inputFlat, negGeneric[float64])
	case []float32:
		flat = mapUnary(inputFlat, negGeneric[float32])
	case []float16.Float16:
		flat = mapUnary(inputFlat, func(v float16.Float16) float16.Float16 { return float16.Fromfloat32(-v.Float32()) })
	case []int64:
		flat = mapUnary(inputFlat, negGeneric[int64])
	case []int32:
		flat = mapUnary(inputFlat, negGeneric[int32])
	case []int16:
		flat = mapUnary(inputFlat, negGeneric[int16])
	case []int8:
		flat = mapUnary(inputFlat, negGeneric[int8])
	default:
		exceptions.Panicf("unsupported data type %s for %s", input.DType(), stmt.OpType)
	}
	return newTensor(flat, input.Shape().Dimensions)
}

// execAbs executes the unary op Abs. It is the identity for unsigned values.
func execAbs(stmt *netbuilder.Statement, operands []*tensors.Tensor) *tensors.Tensor {
	input := operands[0]
	var flat any
	switch inputFlat := input.Flat().(type) {
	case []float64:
		flat = mapUnary(inputFlat, absGeneric[float64])
	case []float32:
		flat = mapUnary(inputFlat, absGeneric[float32])
	case []float16.Float16:
		flat = mapUnary(inputFlat, func(v float16.Float16) float16.Float16 { return float16.Fromfloat32(absGeneric(v.Float32())) })
	case []int64:
		flat = mapUnary(inputFlat, absGeneric[int64])
	case []int32:
		flat = mapUnary(inputFlat, absGeneric[int32])
	case []int16:
		flat = mapUnary(inputFlat, absGeneric[int16])
	case []int8:
		flat = mapUnary(inputFlat, absGeneric[int8])
	case []uint64, []uint32, []uint16, []uint8:
		return input
	default:
		exceptions.Panicf("unsupported data type %s for %s", input.DType(), stmt.OpType)
	}
	return newTensor(flat, input.Shape().Dimensions)
}

// newTensor wraps the flat values computed by a kernel, panicking on failure.
func newTensor(flat any, dimensions []int) *tensors.Tensor {
	t, err := tensors.FromFlatDataAndDimensions(flat, dimensions...)
	if err != nil {
		panic(err)
	}
	return t
}
