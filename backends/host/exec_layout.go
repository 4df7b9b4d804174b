package host

import (
	"reflect"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/netbuilder"
	"github.com/gomlx/netbuilder/internal/optypes"
	"github.com/gomlx/netbuilder/tensors"
	"github.com/gomlx/netbuilder/types/shapes"
	"github.com/janpfeifer/must"
)

func init() {
	statementExecutors[optypes.Constant] = execConstant
	statementExecutors[optypes.Iota] = execIota
	statementExecutors[optypes.Reshape] = execReshape
	statementExecutors[optypes.Transpose] = execTranspose
	statementExecutors[optypes.BroadcastInDim] = execBroadcastInDim
}

func execConstant(stmt *netbuilder.Statement, _ []*tensors.Tensor) *tensors.Tensor {
	literal := must.M1(stmt.LiteralAttribute("value"))
	t := newTensor(literal.Flat(), literal.Shape().Dimensions)
	// Literal values are owned by the program: the outputs get a copy.
	return t.Clone()
}

func execIota(stmt *netbuilder.Statement, _ []*tensors.Tensor) *tensors.Tensor {
	axis := must.M1(stmt.IntAttribute("iota_dimension"))
	shape := stmt.Outputs[0].Shape()
	values := make([]float64, shape.Size())
	for flatIdx := range values {
		values[flatIdx] = float64(shape.Unravel(flatIdx)[axis])
	}
	return must.M1(tensors.FromFloat64s(shape, values))
}

// execReshape also executes ExpandDims. The output owns a copy of the values, it never aliases the operand.
func execReshape(stmt *netbuilder.Statement, operands []*tensors.Tensor) *tensors.Tensor {
	return must.M1(operands[0].Clone().Reshape(stmt.Outputs[0].Shape().Dimensions...))
}

func execTranspose(stmt *netbuilder.Statement, operands []*tensors.Tensor) *tensors.Tensor {
	permutation := must.M1(stmt.IntsAttribute("permutation"))
	input := operands[0]
	inputStrides := input.Shape().Strides()
	return gatherElements(input, stmt.Outputs[0].Shape(), func(outputIdx []int) int {
		srcIdx := 0
		for axis, srcAxis := range permutation {
			srcIdx += outputIdx[axis] * inputStrides[srcAxis]
		}
		return srcIdx
	})
}

func execBroadcastInDim(stmt *netbuilder.Statement, operands []*tensors.Tensor) *tensors.Tensor {
	axesMapping := must.M1(stmt.IntsAttribute("broadcast_dimensions"))
	input := operands[0]
	inputDims := input.Shape().Dimensions
	inputStrides := input.Shape().Strides()
	return gatherElements(input, stmt.Outputs[0].Shape(), func(outputIdx []int) int {
		srcIdx := 0
		for axis, targetAxis := range axesMapping {
			if inputDims[axis] == 1 {
				continue
			}
			srcIdx += outputIdx[targetAxis] * inputStrides[axis]
		}
		return srcIdx
	})
}

// gatherElements creates a tensor of the output shape where each element is copied from the input element at
// the flat position returned by srcIndex, given the indices of the output element.
func gatherElements(input *tensors.Tensor, outputShape shapes.Shape, srcIndex func(outputIdx []int) int) *tensors.Tensor {
	if input.DType() != outputShape.DType {
		exceptions.Panicf("gatherElements: input %s and output %s have different dtypes", input.Shape(), outputShape)
	}
	output := tensors.FromShape(outputShape)
	inputV := reflect.ValueOf(input.Flat())
	outputV := reflect.ValueOf(output.Flat())
	for flatIdx := range outputShape.Size() {
		outputV.Index(flatIdx).Set(inputV.Index(srcIndex(outputShape.Unravel(flatIdx))))
	}
	return output
}
