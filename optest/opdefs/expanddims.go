// Package opdefs defines the operations tested with optest and their case tables.
package opdefs

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/netbuilder"
	"github.com/gomlx/netbuilder/eager"
	"github.com/gomlx/netbuilder/optest"
)

// ExpandDimsParams are the parameters of ExpandDims: the axes where to insert new axes of dimension 1, in the order
// they are inserted.
type ExpandDimsParams struct {
	Axes []int
}

// ExpandDims inserts axes of dimension 1 in its only input.
var ExpandDims = optest.Op[ExpandDimsParams]{
	Name: "expand_dims",
	Reference: func(inputs []*eager.Tensor, params ExpandDimsParams) ([]*eager.Tensor, error) {
		output, err := eager.Unsqueeze(inputs[0], params.Axes...)
		if err != nil {
			return nil, err
		}
		return []*eager.Tensor{output}, nil
	},
	Candidate: func(_ *netbuilder.Builder, inputs []*netbuilder.Value, params ExpandDimsParams) ([]*netbuilder.Value, error) {
		output, err := netbuilder.ExpandDims(inputs[0], params.Axes...)
		if err != nil {
			return nil, err
		}
		return []*netbuilder.Value{output}, nil
	},
}

// expandDimsCase returns a case with a single input "x".
func expandDimsCase(name string, dtype dtypes.DType, dims []int, axes []int, checkGrads bool) optest.CaseDef[ExpandDimsParams] {
	return optest.CaseDef[ExpandDimsParams]{
		Name:       name,
		Inputs:     []optest.InputSpec{{Name: "x", DType: dtype, Dimensions: dims}},
		Params:     ExpandDimsParams{Axes: axes},
		CheckGrads: checkGrads,
	}
}

// ExpandDimsCases is the case table for ExpandDims.
var ExpandDimsCases = []optest.CaseDef[ExpandDimsParams]{
	expandDimsCase("leading_axis", dtypes.Float32, []int{32, 64}, []int{0}, false),
	expandDimsCase("interleaved_axes", dtypes.Float32, []int{2, 3, 4}, []int{0, 2, 4}, false),
	expandDimsCase("trailing_axes", dtypes.Float32, []int{2, 3, 4}, []int{3, 4, 5}, false),
	expandDimsCase("negative_axis", dtypes.Float32, []int{2, 3}, []int{-1}, false),
	expandDimsCase("mixed_sign_axes", dtypes.Float32, []int{2, 3, 4}, []int{-1, 0}, false),
	expandDimsCase("repeated_axis", dtypes.Float32, []int{2, 3}, []int{1, 1}, false),
	expandDimsCase("scalar", dtypes.Float32, nil, []int{0, 0}, false),
	expandDimsCase("float64", dtypes.Float64, []int{2, 3, 4}, []int{0, 2, 4}, false),
	expandDimsCase("float16", dtypes.Float16, []int{32, 64}, []int{0}, false),
	expandDimsCase("int32", dtypes.Int32, []int{4, 5}, []int{1}, false),
	expandDimsCase("grad_leading_axis", dtypes.Float32, []int{32, 64}, []int{0}, true),
	expandDimsCase("grad_interleaved_axes", dtypes.Float32, []int{2, 3, 4}, []int{0, 2, 4}, true),
	expandDimsCase("grad_trailing_axes_float64", dtypes.Float64, []int{2, 3, 4}, []int{3, 4, 5}, true),
}
