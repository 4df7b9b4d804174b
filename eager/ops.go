package eager

import (
	"slices"

	"github.com/gomlx/netbuilder/tensors"
	"github.com/pkg/errors"
)

// operation records a differentiable operation, from the output tensor back to its inputs.
type operation interface {
	// inputs of the operation, in the order the gradients are returned by backward.
	inputs() []*Tensor

	// backward returns the gradient of each input, given the gradient of the output.
	backward(outputGrad *tensors.Tensor) ([]*tensors.Tensor, error)
}

// reshapeOp covers Reshape and Unsqueeze: the gradient is the output gradient reshaped back.
type reshapeOp struct {
	input *Tensor
}

func (op *reshapeOp) inputs() []*Tensor { return []*Tensor{op.input} }

func (op *reshapeOp) backward(outputGrad *tensors.Tensor) ([]*tensors.Tensor, error) {
	grad, err := outputGrad.Reshape(op.input.Shape().Dimensions...)
	if err != nil {
		return nil, err
	}
	return []*tensors.Tensor{grad}, nil
}

type addOp struct {
	lhs, rhs *Tensor
}

func (op *addOp) inputs() []*Tensor { return []*Tensor{op.lhs, op.rhs} }

func (op *addOp) backward(outputGrad *tensors.Tensor) ([]*tensors.Tensor, error) {
	return []*tensors.Tensor{outputGrad, outputGrad}, nil
}

type multiplyOp struct {
	lhs, rhs *Tensor
}

func (op *multiplyOp) inputs() []*Tensor { return []*Tensor{op.lhs, op.rhs} }

func (op *multiplyOp) backward(outputGrad *tensors.Tensor) ([]*tensors.Tensor, error) {
	lhsGrad, err := multiplyValues(outputGrad, op.rhs.value)
	if err != nil {
		return nil, err
	}
	rhsGrad, err := multiplyValues(outputGrad, op.lhs.value)
	if err != nil {
		return nil, err
	}
	return []*tensors.Tensor{lhsGrad, rhsGrad}, nil
}

type scaleOp struct {
	input  *Tensor
	factor float64
}

func (op *scaleOp) inputs() []*Tensor { return []*Tensor{op.input} }

func (op *scaleOp) backward(outputGrad *tensors.Tensor) ([]*tensors.Tensor, error) {
	grad, err := scaleValues(outputGrad, op.factor)
	if err != nil {
		return nil, err
	}
	return []*tensors.Tensor{grad}, nil
}

// Unsqueeze returns x with new axes of dimension 1 inserted at the given axes. The values are unchanged.
//
// Axes are inserted one at a time, in the order given: each one indexes the dimensions resulting from the
// previous insertions, and a negative axis counts from the end of it, so -1 appends a new last axis.
// For instance, x with shape [2, 3, 4] and axes (0, 2, 4) results in shape [1, 2, 1, 3, 1, 4].
func Unsqueeze(x *Tensor, axes ...int) (*Tensor, error) {
	dims := slices.Clone(x.Shape().Dimensions)
	for _, axis := range axes {
		pos := axis
		if pos < 0 {
			pos += len(dims) + 1
		}
		if pos < 0 || pos > len(dims) {
			return nil, errors.Errorf("eager.Unsqueeze: axis %d is out of range for the dimensions %v (given axes %v)",
				axis, dims, axes)
		}
		dims = slices.Insert(dims, pos, 1)
	}
	value, err := x.value.Clone().Reshape(dims...)
	if err != nil {
		return nil, err
	}
	return record(value, &reshapeOp{input: x}), nil
}

// Reshape returns a copy of x with new dimensions. The number of elements must be the same.
func Reshape(x *Tensor, dimensions ...int) (*Tensor, error) {
	value, err := x.value.Clone().Reshape(dimensions...)
	if err != nil {
		return nil, err
	}
	return record(value, &reshapeOp{input: x}), nil
}

// Add returns the element-wise sum of lhs and rhs, which must have the same shape.
func Add(lhs, rhs *Tensor) (*Tensor, error) {
	value, err := addValues(lhs.value, rhs.value)
	if err != nil {
		return nil, err
	}
	return record(value, &addOp{lhs: lhs, rhs: rhs}), nil
}

// Multiply returns the element-wise product of lhs and rhs, which must have the same shape.
func Multiply(lhs, rhs *Tensor) (*Tensor, error) {
	value, err := multiplyValues(lhs.value, rhs.value)
	if err != nil {
		return nil, err
	}
	return record(value, &multiplyOp{lhs: lhs, rhs: rhs}), nil
}

// Scale returns x multiplied by a constant factor. Only float dtypes are supported.
func Scale(x *Tensor, factor float64) (*Tensor, error) {
	value, err := scaleValues(x.value, factor)
	if err != nil {
		return nil, err
	}
	return record(value, &scaleOp{input: x, factor: factor}), nil
}
