// Package shapeinference calculates the shape resulting from operations and validates its inputs.
//
// It defines a BinaryOp function for shape inference of the standard binary operations and
// UnaryOp for the element-wise unary ones: their output shape is the same as their operands.
//
// For the remainder operations, each one gets its own shape inference function, including ExpandDims,
// which defines how the positions of new unit axes are resolved.
package shapeinference

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/netbuilder/internal/optypes"
	"github.com/gomlx/netbuilder/internal/utils"
	"github.com/gomlx/netbuilder/types/shapes"
	"github.com/pkg/errors"
)

var (
	// NumberOperations can take any type of number as input: integers or floats.
	NumberOperations = utils.SetWith(
		optypes.Add,
		optypes.Subtract,
		optypes.Multiply,

		// Notice Abs works for unsigned ints: it's just a trivial implementation.
		optypes.Abs,
	)

	// SignedNumberOperations don't make sense for unsigned values.
	SignedNumberOperations = utils.SetWith(
		optypes.Negate,
	)

	// StandardBinaryOperations include all operations that have two operands usually named lhs (left-hand-side) and
	// rhs (right-hand-side).
	StandardBinaryOperations = utils.SetWith(
		optypes.Add,
		optypes.Subtract,
		optypes.Multiply,
	)

	// StandardUnaryOperations include all operations that have a single operand as input, and the return shape is the
	// same as the input (so no reductions).
	StandardUnaryOperations = utils.SetWith(
		optypes.Abs,
		optypes.Negate,
	)
)

// isNumber returns whether the dtype is an integer or a float.
func isNumber(dtype dtypes.DType) bool {
	return dtype.IsInt() || dtype.IsFloat()
}

// BinaryOp returns the expected output shape for ops in the StandardBinaryOperations set.
//
// Operands must have the same shape: netbuilder programs don't do implicit broadcasting, use BroadcastInDim
// explicitly.
func BinaryOp(opType optypes.OpType, lhsShape, rhsShape shapes.Shape) (output shapes.Shape, err error) {
	if !StandardBinaryOperations.Has(opType) {
		err = errors.Errorf("operation %s is not in the StandardBinaryOperations set, cannot process it with BinaryOp", opType)
		return
	}
	if !lhsShape.Ok() || !rhsShape.Ok() {
		err = errors.Errorf("invalid shape for %s or %s for %q", lhsShape, rhsShape, opType)
		return
	}
	if !lhsShape.Equal(rhsShape) {
		err = errors.Errorf("shapes for %q must match, got %s and %s", opType, lhsShape, rhsShape)
		return
	}
	if NumberOperations.Has(opType) && !isNumber(lhsShape.DType) {
		err = errors.Errorf("numeric BinaryOp %s must have a number (Int32, Float32, ...) data type as input, got %s", opType, lhsShape)
		return
	}
	output = lhsShape.Clone()
	return
}

// UnaryOp checks the validity of the data type for StandardUnaryOperations and returns either an error or
// the output shape, which is the same as the operand.
func UnaryOp(opType optypes.OpType, operand shapes.Shape) (output shapes.Shape, err error) {
	if !StandardUnaryOperations.Has(opType) {
		err = errors.Errorf("operation %s is not in the StandardUnaryOperations set, cannot process it with UnaryOp", opType)
		return
	}
	if !operand.Ok() {
		err = errors.Errorf("invalid shape %s for UnaryOp %s", operand, opType)
		return
	}
	if SignedNumberOperations.Has(opType) && (operand.DType.IsUnsigned() || !isNumber(operand.DType)) {
		err = errors.Errorf("signed UnaryOp %s must have a signed data type as input, got %s", opType, operand)
		return
	}
	if NumberOperations.Has(opType) && !isNumber(operand.DType) {
		err = errors.Errorf("numeric UnaryOp %s must have a number (Int32, Float32, ...) data type as input, got %s", opType, operand)
		return
	}
	output = operand.Clone()
	return
}

// Reshape validates that the operand can be reshaped to the target shape: same dtype and same number of elements.
func Reshape(operand, target shapes.Shape) error {
	if operand.DType != target.DType {
		return errors.Errorf("Reshape() cannot change the data type, got operand=%s and target=%s", operand, target)
	}
	if operand.Size() != target.Size() {
		return errors.Errorf("Reshape() requires the same number of elements, got operand=%s (%d elements) and target=%s (%d elements)",
			operand, operand.Size(), target, target.Size())
	}
	return nil
}

// ExpandDimsPositions resolves the positions of the new unit axes inserted by ExpandDims on an operand of the given
// rank, in the output shape.
//
// The axes are processed in the order given. Each insertion grows the rank by one, and each axis is resolved
// against the rank at the moment it is processed (not the original rank): a negative axis a resolves to
// a + currentRank + 1, and the resolved position must be in [0, currentRank].
// A new axis inserted at or before the position of a previously inserted one pushes the former to the right.
//
// Example: rank 3 with axes [3, 4, 5] resolves to positions [3, 4, 5], while rank 3 with axes [0, 0] resolves to
// positions [0, 1].
func ExpandDimsPositions(rank int, axes []int) (positions []int, err error) {
	if rank < 0 {
		return nil, errors.Errorf("ExpandDims() invalid operand rank %d", rank)
	}
	// isNew marks, for the growing list of axes, which ones were inserted.
	isNew := make([]bool, rank, rank+len(axes))
	for ii, axis := range axes {
		currentRank := len(isNew)
		position := axis
		if position < 0 {
			position += currentRank + 1
		}
		if position < 0 || position > currentRank {
			return nil, errors.Errorf("ExpandDims() axis #%d (%d) is out of range [%d, %d] for the rank %d after inserting the previous %d axes",
				ii, axis, -currentRank-1, currentRank, currentRank, ii)
		}
		isNew = slices.Insert(isNew, position, true)
	}
	positions = make([]int, 0, len(axes))
	for axis, inserted := range isNew {
		if inserted {
			positions = append(positions, axis)
		}
	}
	return positions, nil
}

// ExpandDims returns the shape of operand with new axes of dimension 1 inserted at the given axes.
// See ExpandDimsPositions for how the axes are resolved.
//
// The output rank is operand.Rank() + len(axes).
func ExpandDims(operand shapes.Shape, axes []int) (output shapes.Shape, err error) {
	if !operand.Ok() {
		return shapes.Invalid(), errors.Errorf("invalid operand shape %s for ExpandDims()", operand)
	}
	positions, err := ExpandDimsPositions(operand.Rank(), axes)
	if err != nil {
		return shapes.Invalid(), errors.WithMessagef(err, "ExpandDims(%s, axes=%v)", operand, axes)
	}
	output = shapes.Shape{DType: operand.DType, Dimensions: make([]int, operand.Rank()+len(axes))}
	operandAxis, positionIdx := 0, 0
	for axis := range output.Dimensions {
		if positionIdx < len(positions) && positions[positionIdx] == axis {
			output.Dimensions[axis] = 1
			positionIdx++
			continue
		}
		output.Dimensions[axis] = operand.Dimensions[operandAxis]
		operandAxis++
	}
	return output, nil
}

// Transpose all axes of the operand.
// There must be one value in permutations for each axis in the operand.
// The output will have: output.Shape.Dimension[ii] = operand.Shape.Dimension[permutations[i]].
func Transpose(operand shapes.Shape, permutation []int) (output shapes.Shape, err error) {
	rank := operand.Rank()
	if len(permutation) != rank {
		err = errors.Errorf("Transpose() requires all axes permutation to be defined, operand has shape %s, but %d permutation were given",
			operand, len(permutation))
		return
	}
	if rank == 0 {
		return operand, nil
	}

	// Check permutation axes are within range and unique.
	axesSet := slices.Clone(permutation)
	slices.Sort(axesSet)
	for ii, srcAxis := range axesSet {
		if srcAxis < 0 || srcAxis >= rank {
			err = errors.Errorf("invalid permutation axis %d given to Transpose(%s), it must be within the range of its rank",
				srcAxis, operand)
			return
		}
		if ii > 0 && srcAxis == axesSet[ii-1] {
			err = errors.Errorf("invalid permutation given to Transpose(%s, %v), there cannot be any repeated axis, each must appear exactly once",
				operand, permutation)
			return
		}
	}

	output = operand.Clone()
	for axis := range output.Dimensions {
		srcAxis := permutation[axis]
		output.Dimensions[axis] = operand.Dimensions[srcAxis]
	}
	return
}

// InversePermutation returns the permutation that undoes the given one.
func InversePermutation(permutation []int) []int {
	inverse := make([]int, len(permutation))
	for axis, srcAxis := range permutation {
		inverse[srcAxis] = axis
	}
	return inverse
}

// BroadcastInDim verifies that the arguments are valid.
// The output shape is already known, so nothing is returned.
//
// The axesMapping is changed in place, replacing negative axes with their positive equivalent.
func BroadcastInDim(operand, targetShape shapes.Shape, axesMapping []int) error {
	if operand.DType != targetShape.DType {
		return errors.Errorf("BroadcastInDim() requires the operand and the target shape to have the same data type, got operand=%s and targetShape=%s",
			operand, targetShape)
	}
	targetRank := targetShape.Rank()
	if targetRank < operand.Rank() {
		return errors.Errorf("BroadcastInDim() cannot be used to shrink the rank of the operand, got operand=%s and targetShape=%s",
			operand, targetShape)
	}
	if len(axesMapping) != operand.Rank() {
		return errors.Errorf("BroadcastInDim() requires all operand's axes mappings to be defined, operand has shape %s, but %d axes were given",
			operand, len(axesMapping))
	}
	usedAxis := utils.MakeSet[int](len(axesMapping))
	for operandAxis, targetAxis := range axesMapping {
		targetAxis, err := AdjustAxisToRank(targetAxis, targetRank)
		if err != nil {
			return errors.WithMessagef(err, "invalid axes mapping of operand axis %d, targetShape is %s", operandAxis, targetShape)
		}
		if usedAxis.Has(targetAxis) {
			return errors.Errorf("BroadcastInDim() requires all targetShape axes to be unique, got duplicate axis %d", targetAxis)
		}
		usedAxis.Insert(targetAxis)
		operandDim := operand.Dimensions[operandAxis]
		targetDim := targetShape.Dimensions[targetAxis]
		if operandDim != 1 && operandDim != targetDim {
			return errors.Errorf("BroadcastInDim() requires all operand axes to be broadcast to be of dimension 1, but got operand.Dimensions[%d]=%d and targetShape.Dimension[%d]=%d",
				operandAxis, operandDim, targetAxis, targetDim)
		}
		axesMapping[operandAxis] = targetAxis
	}
	return nil
}

// Iota validates the shape and axis of an Iota operation and returns the adjusted (non-negative) axis.
func Iota(shape shapes.Shape, axis int) (int, error) {
	if !isNumber(shape.DType) {
		return -1, errors.Errorf("Iota() requires a numeric data type, got %s", shape)
	}
	adjustedAxis, err := AdjustAxisToRank(axis, shape.Rank())
	if err != nil {
		return -1, errors.WithMessagef(err, "Iota axis is invalid for shape %s", shape)
	}
	return adjustedAxis, nil
}

// AdjustAxisToRank returns a positive axis, adjusting negative numbers to the correct rank.
func AdjustAxisToRank(axis, rank int) (int, error) {
	if axis < -rank || axis >= rank {
		return -1, errors.Errorf("axis %d is out of range for the rank %d", axis, rank)
	}
	if axis < 0 {
		axis += rank
	}
	return axis, nil
}
