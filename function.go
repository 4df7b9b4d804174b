package netbuilder

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/netbuilder/internal/optypes"
	"github.com/gomlx/netbuilder/shapeinference"
	"github.com/gomlx/netbuilder/tensors"
	"github.com/gomlx/netbuilder/types/shapes"
	"github.com/pkg/errors"
)

// Function represents the `func.func` body of a program: its inputs and statements.
type Function struct {
	Builder *Builder

	// Name of the function. It should not include the "@" prefix.
	Name string

	// Inputs to the function, in declaration order.
	Inputs []*Value

	// Statements in the function body, in the order they were added.
	Statements []*Statement

	// nextArgID is the next ID to be assigned to new input arguments.
	nextArgID int

	// nextTmpID is the next ID to be assigned to new intermediary values.
	nextTmpID int
}

// newValue creates a new value with the given shape and assigns it to the next available id.
func (fn *Function) newValue(shape shapes.Shape) *Value {
	v := &Value{
		fn:    fn,
		name:  strconv.Itoa(fn.nextTmpID),
		shape: shape,
	}
	fn.nextTmpID++
	return v
}

// Input creates a new input parameter for the function, with a default name ("arg0", "arg1", ...).
//
// The order matters: during execution the input parameters must be given in the same order they were created.
func (fn *Function) Input(shape shapes.Shape) *Value {
	value := fn.NamedInput(fmt.Sprintf("arg%d", fn.nextArgID), shape)
	fn.nextArgID++
	return value
}

// NamedInput creates a new input parameter for the function with the given name -- it must be a unique input name,
// which is checked by Builder.Build.
//
// The name is passed through NormalizeIdentifier.
func (fn *Function) NamedInput(name string, shape shapes.Shape) *Value {
	value := &Value{
		fn:    fn,
		name:  NormalizeIdentifier(name),
		shape: shape,
	}
	fn.Inputs = append(fn.Inputs, value)
	return value
}

// checkOpen returns an error if no more operations can be added to the function.
func (fn *Function) checkOpen(op optypes.OpType) error {
	if fn.Builder.built {
		return errors.Errorf("cannot add operation %s to program %q, it was already built", op, fn.Builder.name)
	}
	return nil
}

// checkOperands returns an error if the function is closed or if any of the operands is nil or belongs to
// another function.
func (fn *Function) checkOperands(op optypes.OpType, operands ...*Value) error {
	if err := fn.checkOpen(op); err != nil {
		return err
	}
	for ii, operand := range operands {
		if operand == nil {
			return errors.Errorf("operand #%d of %s is nil", ii, op)
		}
		if operand.fn != fn {
			return errors.Errorf("cannot add operation %s to program %q, because operand #%d (%s) belongs to program %q",
				op, fn.Builder.name, ii, operand, operand.fn.Builder.name)
		}
	}
	return nil
}

// addOp adds a new operation to the function.
func (fn *Function) addOp(opType optypes.OpType, outputShape shapes.Shape, inputs ...*Value) *Statement {
	stmt := &Statement{
		Function: fn,
		OpType:   opType,
		Inputs:   inputs,
		Outputs:  []*Value{fn.newValue(outputShape)},
	}
	fn.Statements = append(fn.Statements, stmt)
	return stmt
}

// ConstantFromScalar creates a new constant statement and returns the resulting value.
func (fn *Function) ConstantFromScalar(value any) (*Value, error) {
	dtype := dtypes.FromAny(value)
	if dtype == dtypes.InvalidDType {
		return nil, errors.Errorf("unsupported constant value type %T", value)
	}
	flat := reflect.MakeSlice(reflect.SliceOf(reflect.TypeOf(value)), 1, 1)
	flat.Index(0).Set(reflect.ValueOf(value))
	return fn.ConstantFromFlatAndDimensions(flat.Interface())
}

// ConstantFromFlatAndDimensions creates a new constant statement from a flat slice with the raw values and the
// dimensions of the shape.
func (fn *Function) ConstantFromFlatAndDimensions(flat any, dimensions ...int) (*Value, error) {
	if err := fn.checkOpen(optypes.Constant); err != nil {
		return nil, err
	}
	literal, err := NewLiteral(flat, dimensions...)
	if err != nil {
		return nil, err
	}
	stmt := fn.addOp(optypes.Constant, literal.Shape())
	stmt.Attributes = map[string]any{"value": literal}
	return stmt.Outputs[0], nil
}

// ConstantFromTensor creates a new constant statement with the values of the tensor.
func (fn *Function) ConstantFromTensor(t *tensors.Tensor) (*Value, error) {
	return fn.ConstantFromFlatAndDimensions(t.Flat(), t.Shape().Dimensions...)
}

// Iota creates a constant of the given shape with increasing numbers (starting from 0)
// on the given axis. So Iota([2,2], 1) returns [[0 1][0 1]], while Iota([2,2], 0)
// returns [[0 0][1 1]].
func (fn *Function) Iota(shape shapes.Shape, axis int) (*Value, error) {
	op := optypes.Iota
	if err := fn.checkOpen(op); err != nil {
		return nil, err
	}
	adjustedAxis, err := shapeinference.Iota(shape, axis)
	if err != nil {
		return nil, err
	}
	stmt := fn.addOp(op, shape)
	stmt.Attributes = map[string]any{"iota_dimension": int64(adjustedAxis)}
	return stmt.Outputs[0], nil
}

// producers maps each value created by a statement of the function to its statement.
func (fn *Function) producers(statements []*Statement) map[*Value]*Statement {
	m := make(map[*Value]*Statement, len(statements))
	for _, stmt := range statements {
		for _, output := range stmt.Outputs {
			m[output] = stmt
		}
	}
	return m
}
