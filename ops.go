package netbuilder

import (
	"slices"

	"github.com/gomlx/netbuilder/internal/optypes"
	"github.com/gomlx/netbuilder/shapeinference"
	"github.com/gomlx/netbuilder/types/shapes"
	"github.com/pkg/errors"
)

// binaryOp adds a new binary operation to the function.
func binaryOp(op optypes.OpType, lhs, rhs *Value) (*Value, error) {
	if lhs == nil || rhs == nil {
		return nil, errors.Errorf("nil operand given to %s", op)
	}
	fn := lhs.fn
	if err := fn.checkOperands(op, lhs, rhs); err != nil {
		return nil, err
	}
	outputShape, err := shapeinference.BinaryOp(op, lhs.shape, rhs.shape)
	if err != nil {
		return nil, err
	}
	return fn.addOp(op, outputShape, lhs, rhs).Outputs[0], nil
}

// unaryOp adds a new unary operation to the function.
func unaryOp(op optypes.OpType, operand *Value) (*Value, error) {
	if operand == nil {
		return nil, errors.Errorf("nil operand given to %s", op)
	}
	fn := operand.fn
	if err := fn.checkOperands(op, operand); err != nil {
		return nil, err
	}
	outputShape, err := shapeinference.UnaryOp(op, operand.shape)
	if err != nil {
		return nil, err
	}
	return fn.addOp(op, outputShape, operand).Outputs[0], nil
}

// Reshape the operand to the given shape.
// The total size of the new shape must match the original shape.
//
// This has no effect on the data, no transposition is performed.
func Reshape(operand *Value, shape shapes.Shape) (*Value, error) {
	op := optypes.Reshape
	if operand == nil {
		return nil, errors.Errorf("nil operand given to %s", op)
	}
	fn := operand.fn
	if err := fn.checkOperands(op, operand); err != nil {
		return nil, err
	}
	if err := shapeinference.Reshape(operand.shape, shape); err != nil {
		return nil, err
	}
	return fn.addOp(op, shape.Clone(), operand).Outputs[0], nil
}

// ExpandDims inserts new axes of dimension 1 in x, at the given axes.
//
// The axes are resolved in the order given, each one against the rank of the result of the previous insertions,
// and negative values count from the end. See shapeinference.ExpandDimsPositions for details.
// For instance x with shape [2, 3, 4] and axes (0, 2, 4) results in shape [1, 2, 1, 3, 1, 4].
//
// The values are unchanged, so it is emitted as a reshape.
func ExpandDims(x *Value, axes ...int) (*Value, error) {
	op := optypes.Reshape
	if x == nil {
		return nil, errors.Errorf("nil operand given to ExpandDims")
	}
	fn := x.fn
	if err := fn.checkOperands(op, x); err != nil {
		return nil, err
	}
	outputShape, err := shapeinference.ExpandDims(x.shape, axes)
	if err != nil {
		return nil, err
	}
	return fn.addOp(op, outputShape, x).Outputs[0], nil
}

// BroadcastInDim broadcasts dimensions from the operand to the target shape.
// It can also transpose axes and add new ones.
//
// The axesMapping should have one value per operand axes. It maps the axes from the operand to
// the corresponding value on the target shape.
func BroadcastInDim(operand *Value, target shapes.Shape, axesMapping []int) (*Value, error) {
	op := optypes.BroadcastInDim
	if operand == nil {
		return nil, errors.Errorf("nil operand given to %s", op)
	}
	fn := operand.fn
	if err := fn.checkOperands(op, operand); err != nil {
		return nil, err
	}
	axesMapping = slices.Clone(axesMapping)
	if err := shapeinference.BroadcastInDim(operand.shape, target, axesMapping); err != nil {
		return nil, err
	}
	stmt := fn.addOp(op, target.Clone(), operand)
	stmt.Attributes = map[string]any{"broadcast_dimensions": intArray(axesMapping)}
	return stmt.Outputs[0], nil
}

// Transpose axes of x.
//
// There must be one value in permutation for each axis in x.
// The output will have: output.Shape.Dimension[ii] = x.Shape.Dimension[permutation[i]].
func Transpose(x *Value, permutation ...int) (*Value, error) {
	op := optypes.Transpose
	if x == nil {
		return nil, errors.Errorf("nil operand given to %s", op)
	}
	fn := x.fn
	if err := fn.checkOperands(op, x); err != nil {
		return nil, err
	}
	outputShape, err := shapeinference.Transpose(x.shape, permutation)
	if err != nil {
		return nil, err
	}
	stmt := fn.addOp(op, outputShape, x)
	stmt.Attributes = map[string]any{"permutation": intArray(slices.Clone(permutation))}
	return stmt.Outputs[0], nil
}
