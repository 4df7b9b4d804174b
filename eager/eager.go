// Package eager is the reference backend: it executes operations immediately on host tensors and records, for
// the tensors that track gradients, the operations needed to compute gradients with Backward.
//
// It shares no code with the netbuilder program builder or its executors, so it can serve as an independent
// reference to compare them against.
package eager

import (
	"sync/atomic"

	"github.com/gomlx/netbuilder/tensors"
	"github.com/gomlx/netbuilder/types/shapes"
)

// Tensor is a concrete value that optionally tracks gradients.
//
// A Tensor with StopGradient set doesn't receive gradients, and operations whose inputs all stop gradients
// produce outputs that stop gradients as well, and record nothing.
type Tensor struct {
	value *tensors.Tensor

	// StopGradient disables gradient tracking for this tensor.
	StopGradient bool

	// id orders tensors by creation: an operation's output is always created after its inputs.
	id int64

	// op that produced this tensor, nil for leaf tensors or if gradients are not tracked.
	op operation

	// grad accumulated by Backward, only for leaf tensors that track gradients.
	grad *tensors.Tensor
}

var nextID atomic.Int64

func newTensor(value *tensors.Tensor, stopGradient bool, op operation) *Tensor {
	return &Tensor{
		value:        value,
		StopGradient: stopGradient,
		id:           nextID.Add(1),
		op:           op,
	}
}

// ToTensor wraps a host tensor as a leaf eager tensor.
//
// If stopGradient is false, gradients computed by Backward are accumulated into it, see Tensor.Grad.
func ToTensor(value *tensors.Tensor, stopGradient bool) *Tensor {
	return newTensor(value, stopGradient, nil)
}

// Value returns the concrete value of the tensor.
func (t *Tensor) Value() *tensors.Tensor {
	return t.value
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape {
	return t.value.Shape()
}

// Grad returns the gradient accumulated by Backward, or nil if none was accumulated.
func (t *Tensor) Grad() *tensors.Tensor {
	return t.grad
}

// ClearGrad resets the accumulated gradient.
func (t *Tensor) ClearGrad() {
	t.grad = nil
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	return t.value.String()
}

// tracksGradient returns whether any of the tensors requires gradients.
func tracksGradient(inputs ...*Tensor) bool {
	for _, input := range inputs {
		if !input.StopGradient {
			return true
		}
	}
	return false
}

// record creates the output tensor of an operation, recording the operation if any of its inputs tracks
// gradients.
func record(value *tensors.Tensor, op operation) *Tensor {
	if !tracksGradient(op.inputs()...) {
		return newTensor(value, true, nil)
	}
	return newTensor(value, false, op)
}
