package netbuilder

import (
	"slices"

	"github.com/gomlx/netbuilder/internal/optypes"
	"github.com/gomlx/netbuilder/shapeinference"
	"github.com/gomlx/netbuilder/tensors"
	"github.com/gomlx/netbuilder/types/shapes"
	"github.com/pkg/errors"
)

// VJP adds to the function of the outputs the operations that compute the vector-Jacobian product: the gradient
// of sum(outputs[i] * gradOutputs[i]) with respect to each of the wrt values, using reverse-mode differentiation.
//
// It returns one gradient value per wrt value, with the same shape. A wrt value the outputs don't depend on gets a
// gradient of zeros.
//
// Gradients are meant to be staged on their own builder: replay the forward operations on a new builder, call VJP
// and build it into its own Program.
//
// Only Reshape (and ExpandDims), Add, Subtract, Multiply, Negate and Transpose are differentiable. Any other
// operation on the path between wrt and the outputs returns an error.
func VJP(outputs, gradOutputs, wrt []*Value) ([]*Value, error) {
	if len(outputs) == 0 {
		return nil, errors.New("VJP requires at least one output")
	}
	if len(gradOutputs) != len(outputs) {
		return nil, errors.Errorf("VJP got %d outputs but %d gradients for the outputs", len(outputs), len(gradOutputs))
	}
	if outputs[0] == nil {
		return nil, errors.New("VJP output #0 is nil")
	}
	fn := outputs[0].fn
	if fn.Builder.built {
		return nil, errors.Errorf("cannot add gradient operations to program %q, it was already built", fn.Builder.name)
	}
	allValues := slices.Concat(outputs, gradOutputs, wrt)
	for ii, v := range allValues {
		if v == nil {
			return nil, errors.Errorf("VJP value #%d is nil", ii)
		}
		if v.fn != fn {
			return nil, errors.Errorf("VJP value %s belongs to program %q, not %q", v, v.fn.Builder.name, fn.Builder.name)
		}
	}
	for ii, output := range outputs {
		if !output.shape.Equal(gradOutputs[ii].shape) {
			return nil, errors.Errorf("VJP gradient for output #%d has shape %s, but the output has shape %s",
				ii, gradOutputs[ii].shape, output.shape)
		}
	}

	// Only the statements that existed before the gradient ops are differentiated.
	statements := slices.Clone(fn.Statements)

	// relevant values depend on at least one of the wrt values.
	relevant := make(map[*Value]bool, len(statements))
	for _, v := range wrt {
		relevant[v] = true
	}
	for _, stmt := range statements {
		if slices.ContainsFunc(stmt.Inputs, func(v *Value) bool { return relevant[v] }) {
			for _, output := range stmt.Outputs {
				relevant[output] = true
			}
		}
	}

	cotangents := make(map[*Value]*Value, len(statements))
	accumulate := func(v, grad *Value) error {
		if !relevant[v] {
			return nil
		}
		if previous, found := cotangents[v]; found {
			sum, err := Add(previous, grad)
			if err != nil {
				return err
			}
			grad = sum
		}
		cotangents[v] = grad
		return nil
	}
	for ii, output := range outputs {
		if err := accumulate(output, gradOutputs[ii]); err != nil {
			return nil, err
		}
	}

	for _, stmt := range slices.Backward(statements) {
		if len(stmt.Outputs) != 1 {
			continue
		}
		grad, found := cotangents[stmt.Outputs[0]]
		if !found || !slices.ContainsFunc(stmt.Inputs, func(v *Value) bool { return relevant[v] }) {
			continue
		}
		inputGrads, err := vjpStatement(stmt, grad)
		if err != nil {
			return nil, err
		}
		for ii, inputGrad := range inputGrads {
			if err := accumulate(stmt.Inputs[ii], inputGrad); err != nil {
				return nil, err
			}
		}
	}

	grads := make([]*Value, len(wrt))
	for ii, v := range wrt {
		if grad, found := cotangents[v]; found {
			grads[ii] = grad
			continue
		}
		zeros, err := zerosLike(v)
		if err != nil {
			return nil, err
		}
		grads[ii] = zeros
	}
	return grads, nil
}

// vjpStatement returns the gradients of the inputs of stmt, given the gradient of its output.
func vjpStatement(stmt *Statement, grad *Value) ([]*Value, error) {
	var (
		g0, g1 *Value
		err    error
	)
	switch stmt.OpType {
	case optypes.Reshape:
		g0, err = Reshape(grad, stmt.Inputs[0].shape)
		return []*Value{g0}, err
	case optypes.Add:
		return []*Value{grad, grad}, nil
	case optypes.Subtract:
		g1, err = Negate(grad)
		return []*Value{grad, g1}, err
	case optypes.Multiply:
		g0, err = Multiply(grad, stmt.Inputs[1])
		if err != nil {
			return nil, err
		}
		g1, err = Multiply(grad, stmt.Inputs[0])
		return []*Value{g0, g1}, err
	case optypes.Negate:
		g0, err = Negate(grad)
		return []*Value{g0}, err
	case optypes.Transpose:
		permutation, err := stmt.IntsAttribute("permutation")
		if err != nil {
			return nil, err
		}
		g0, err = Transpose(grad, shapeinference.InversePermutation(permutation)...)
		return []*Value{g0}, err
	default:
		return nil, errors.Errorf("VJP of operation %s is not supported", stmt.OpType)
	}
}

// zerosLike returns a value of zeros with the same shape as v.
func zerosLike(v *Value) (*Value, error) {
	zero := tensors.FromShape(shapes.Make(v.shape.DType))
	scalar, err := v.fn.ConstantFromTensor(zero)
	if err != nil {
		return nil, err
	}
	if v.shape.IsScalar() {
		return scalar, nil
	}
	return BroadcastInDim(scalar, v.shape, nil)
}
