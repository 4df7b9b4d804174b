package optest

import (
	"math/rand/v2"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/netbuilder/tensors"
	"github.com/gomlx/netbuilder/types/shapes"
	"github.com/pkg/errors"
)

// InputSpec declares one input of a case: it is randomly generated with the given dtype and dimensions.
type InputSpec struct {
	Name       string
	DType      dtypes.DType
	Dimensions []int
}

// Shape of the input.
func (spec InputSpec) Shape() shapes.Shape {
	return shapes.Make(spec.DType, spec.Dimensions...)
}

// CaseDef is one row of a case table: a named scenario with the specification of its inputs and the parameters of
// the operation under test. It is meant to be immutable.
type CaseDef[P any] struct {
	Name   string
	Inputs []InputSpec
	Params P

	// CheckGrads also compares the gradients of the outputs with respect to the inputs, computed in separately
	// staged programs.
	CheckGrads bool

	// Tolerance overrides DefaultTolerance of the outputs' dtype, if set.
	Tolerance *Tolerance
}

// Case is a concrete scenario, defined from a CaseDef: it holds the generated input values.
type Case[P any] struct {
	Name       string
	Specs      []InputSpec
	Inputs     []*tensors.Tensor
	Params     P
	CheckGrads bool

	tolerance *Tolerance
}

// Define generates the inputs of the case from rng.
//
// Float inputs are uniformly drawn from [0, 1), integer inputs from [-10, 10]. Using an rng with a fixed seed
// makes the case reproducible.
func (def CaseDef[P]) Define(rng *rand.Rand) (*Case[P], error) {
	if len(def.Inputs) == 0 {
		return nil, errors.Errorf("case %q has no inputs", def.Name)
	}
	c := &Case[P]{
		Name:       def.Name,
		Specs:      slices.Clone(def.Inputs),
		Inputs:     make([]*tensors.Tensor, len(def.Inputs)),
		Params:     def.Params,
		CheckGrads: def.CheckGrads,
		tolerance:  def.Tolerance,
	}
	for ii, spec := range def.Inputs {
		if spec.Name == "" {
			return nil, errors.Errorf("case %q input #%d has no name", def.Name, ii)
		}
		if slices.ContainsFunc(def.Inputs[:ii], func(other InputSpec) bool { return other.Name == spec.Name }) {
			return nil, errors.Errorf("case %q has more than one input named %q", def.Name, spec.Name)
		}
		for _, dim := range spec.Dimensions {
			if dim < 0 {
				return nil, errors.Errorf("case %q input %q has invalid dimensions %v", def.Name, spec.Name, spec.Dimensions)
			}
		}
		value, err := randomInput(rng, spec.Shape())
		if err != nil {
			return nil, errors.WithMessagef(err, "case %q input %q", def.Name, spec.Name)
		}
		c.Inputs[ii] = value
	}
	return c, nil
}

func randomInput(rng *rand.Rand, shape shapes.Shape) (*tensors.Tensor, error) {
	if shape.DType.IsFloat() {
		return tensors.Random(rng, shape)
	}
	if !shape.DType.IsInt() {
		return nil, errors.Errorf("cannot generate random values for %s", shape)
	}
	values := make([]float64, shape.Size())
	for ii := range values {
		values[ii] = float64(rng.IntN(21) - 10)
		if shape.DType.IsUnsigned() {
			values[ii] += 10
		}
	}
	return tensors.FromFloat64s(shape, values)
}

// Input returns the value of the named input, or nil if there is no such input.
func (c *Case[P]) Input(name string) *tensors.Tensor {
	idx := slices.IndexFunc(c.Specs, func(spec InputSpec) bool { return spec.Name == name })
	if idx < 0 {
		return nil
	}
	return c.Inputs[idx]
}

// Tolerance returns the tolerance used to compare values of the given dtype in this case.
func (c *Case[P]) Tolerance(dtype dtypes.DType) Tolerance {
	if c.tolerance != nil {
		return *c.tolerance
	}
	return DefaultTolerance(dtype)
}

// InputBytes is the total memory used by the inputs.
func (c *Case[P]) InputBytes() uintptr {
	var total uintptr
	for _, input := range c.Inputs {
		total += input.Memory()
	}
	return total
}
