package optest

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/netbuilder"
	"github.com/gomlx/netbuilder/backends"
	_ "github.com/gomlx/netbuilder/backends/host"
	"github.com/gomlx/netbuilder/eager"
	"github.com/gomlx/netbuilder/tensors"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type axesParams struct {
	Axes []int
}

// unsqueeze is a correct op: both backends agree.
var unsqueeze = Op[axesParams]{
	Name: "unsqueeze",
	Reference: func(inputs []*eager.Tensor, params axesParams) ([]*eager.Tensor, error) {
		output, err := eager.Unsqueeze(inputs[0], params.Axes...)
		return []*eager.Tensor{output}, err
	},
	Candidate: func(_ *netbuilder.Builder, inputs []*netbuilder.Value, params axesParams) ([]*netbuilder.Value, error) {
		output, err := netbuilder.ExpandDims(inputs[0], params.Axes...)
		return []*netbuilder.Value{output}, err
	},
}

// scaledProduct is x*y*2 on the reference, used with candidates that are correct or not.
func scaledProduct(candidate func(x, y *netbuilder.Value) (*netbuilder.Value, error)) Op[axesParams] {
	return Op[axesParams]{
		Name: "scaled_product",
		Reference: func(inputs []*eager.Tensor, _ axesParams) ([]*eager.Tensor, error) {
			product, err := eager.Multiply(inputs[0], inputs[1])
			if err != nil {
				return nil, err
			}
			output, err := eager.Scale(product, 2)
			return []*eager.Tensor{output}, err
		},
		Candidate: func(_ *netbuilder.Builder, inputs []*netbuilder.Value, _ axesParams) ([]*netbuilder.Value, error) {
			output, err := candidate(inputs[0], inputs[1])
			return []*netbuilder.Value{output}, err
		},
	}
}

func twoInputs(name string, checkGrads bool) CaseDef[axesParams] {
	return CaseDef[axesParams]{
		Name: name,
		Inputs: []InputSpec{
			{Name: "x", DType: dtypes.Float64, Dimensions: []int{2, 3}},
			{Name: "y", DType: dtypes.Float64, Dimensions: []int{2, 3}},
		},
		CheckGrads: checkGrads,
	}
}

func hostHarness(t *testing.T) *Harness {
	h, err := NewHarness(backends.HostTarget(), 42)
	require.NoError(t, err)
	return h
}

func TestTolerance(t *testing.T) {
	tol := DefaultTolerance(dtypes.Float32)
	assert.Equal(t, Tolerance{Atol: 1e-5, Rtol: 1e-5}, tol)
	assert.True(t, tol.Within(1, 1+1e-6))
	assert.True(t, tol.Within(1000, 1000.01))
	assert.False(t, tol.Within(1, 1.001))
	assert.True(t, tol.Within(math.NaN(), math.NaN()))
	assert.False(t, tol.Within(math.NaN(), 1))
	assert.True(t, tol.Within(math.Inf(1), math.Inf(1)))
	assert.False(t, tol.Within(math.Inf(1), math.Inf(-1)))
	assert.Equal(t, Tolerance{}, DefaultTolerance(dtypes.Int32))
	assert.False(t, DefaultTolerance(dtypes.Int64).Within(1, 2))
	assert.Equal(t, Tolerance{Atol: 1e-3, Rtol: 1e-3}, DefaultTolerance(dtypes.Float16))
}

func TestDefine(t *testing.T) {
	def := twoInputs("define", false)
	first := must.M1(def.Define(rand.New(rand.NewPCG(1, 2))))
	second := must.M1(def.Define(rand.New(rand.NewPCG(1, 2))))
	require.Len(t, first.Inputs, 2)
	assert.Equal(t, first.Inputs[0].Flat(), second.Inputs[0].Flat())
	assert.Equal(t, first.Inputs[1].Flat(), second.Inputs[1].Flat())
	assert.NotEqual(t, first.Inputs[0].Flat(), first.Inputs[1].Flat())
	assert.Same(t, first.Inputs[1], first.Input("y"))
	assert.Nil(t, first.Input("z"))
	assert.Equal(t, uintptr(2*6*8), first.InputBytes())
	assert.Equal(t, DefaultTolerance(dtypes.Float64), first.Tolerance(dtypes.Float64))

	override := Tolerance{Atol: 0.5}
	def.Tolerance = &override
	assert.Equal(t, override, must.M1(def.Define(rand.New(rand.NewPCG(1, 2)))).Tolerance(dtypes.Float64))

	ints := CaseDef[axesParams]{Name: "ints", Inputs: []InputSpec{{Name: "i", DType: dtypes.Int32, Dimensions: []int{100}}}}
	values := must.M1(must.M1(ints.Define(rand.New(rand.NewPCG(3, 4)))).Inputs[0].Float64s())
	for _, v := range values {
		assert.True(t, v >= -10 && v <= 10, "value %g out of range", v)
	}

	for _, bad := range []CaseDef[axesParams]{
		{Name: "no_inputs"},
		{Name: "no_name", Inputs: []InputSpec{{DType: dtypes.Float32}}},
		{Name: "duplicate", Inputs: []InputSpec{{Name: "x", DType: dtypes.Float32}, {Name: "x", DType: dtypes.Float32}}},
		{Name: "negative", Inputs: []InputSpec{{Name: "x", DType: dtypes.Float32, Dimensions: []int{-1}}}},
		{Name: "bool", Inputs: []InputSpec{{Name: "x", DType: dtypes.Bool, Dimensions: []int{2}}}},
	} {
		_, err := bad.Define(rand.New(rand.NewPCG(0, 0)))
		assert.Error(t, err, "case %q should fail", bad.Name)
	}
}

func TestCheck(t *testing.T) {
	tol := DefaultTolerance(dtypes.Float32)
	want := must.M1(tensors.FromAnyValue([][]float32{{1, 2}, {3, 4}}))
	near := must.M1(tensors.FromAnyValue([][]float32{{1, 2}, {3, 4.000001}}))
	far := must.M1(tensors.FromAnyValue([][]float32{{1, 2}, {3.5, 4}}))
	reshaped := must.M1(tensors.FromAnyValue([]float32{1, 2, 3, 4}))

	outcome := Check([]*tensors.Tensor{want}, []*tensors.Tensor{near}, tol)
	assert.True(t, outcome.Passed)
	require.NoError(t, outcome.Err())
	assert.Equal(t, 4, outcome.NumCompared)
	assert.Greater(t, outcome.MaxAbs, 0.0)
	assert.Equal(t, []int{1, 1}, outcome.MaxAbsIndex)

	outcome = Check([]*tensors.Tensor{want}, []*tensors.Tensor{far}, tol)
	assert.False(t, outcome.Passed)
	require.Len(t, outcome.Mismatches, 1)
	assert.Equal(t, ValueMismatch, outcome.Mismatches[0].Kind)
	assert.Equal(t, []int{1, 0}, outcome.Mismatches[0].Index)
	assert.InDelta(t, 0.5, outcome.MaxAbs, 1e-9)
	assert.InDelta(t, 0.5/3, outcome.MaxRel, 1e-9)
	err := outcome.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 4 elements differ beyond tolerance")
	assert.Contains(t, err.Error(), "index [1 0]")

	outcome = Check([]*tensors.Tensor{want}, []*tensors.Tensor{reshaped}, tol)
	assert.False(t, outcome.Passed)
	require.Len(t, outcome.Mismatches, 1)
	assert.Equal(t, ShapeMismatch, outcome.Mismatches[0].Kind)
	assert.Equal(t, 0, outcome.NumCompared, "values of mismatching shapes are not compared")
	assert.Contains(t, outcome.Err().Error(), "ShapeMismatch")

	outcome = Check([]*tensors.Tensor{want, want}, []*tensors.Tensor{want}, tol)
	assert.False(t, outcome.Passed)
	assert.Equal(t, CountMismatch, outcome.Mismatches[0].Kind)

	nan := must.M1(tensors.FromAnyValue([]float64{math.NaN(), 1}))
	notNaN := must.M1(tensors.FromAnyValue([]float64{0, 1}))
	assert.True(t, Check([]*tensors.Tensor{nan}, []*tensors.Tensor{nan}, tol).Passed)
	assert.False(t, Check([]*tensors.Tensor{nan}, []*tensors.Tensor{notNaN}, tol).Passed)

	// Only MaxReportedMismatches are kept, all are counted.
	many := tensors.FromShape(want.Shape())
	bigWant := must.M1(tensors.FromFloat64s(want.Shape(), []float64{1, 1, 1, 1}))
	defer func(previous int) { MaxReportedMismatches = previous }(MaxReportedMismatches)
	MaxReportedMismatches = 2
	outcome = Check([]*tensors.Tensor{bigWant}, []*tensors.Tensor{many}, tol)
	assert.Len(t, outcome.Mismatches, 2)
	assert.Equal(t, 4, outcome.NumMismatched)
}

func TestGuard(t *testing.T) {
	var calls int
	guard := NewGuard(func() bool { calls++; return false }, "no such device")
	var inner *testing.T
	t.Run("skipped", func(t *testing.T) {
		inner = t
		guard.Skip(t)
		t.Error("assertions after a failed guard must not run")
	})
	assert.True(t, inner.Skipped())
	assert.Equal(t, StatusSkipped, guard.Status())
	assert.Equal(t, "no such device", guard.Reason())
	assert.Equal(t, 1, calls, "probe must be evaluated only once")

	assert.True(t, TargetGuard(backends.HostTarget()).Met())
	assert.Equal(t, StatusPassed, TargetGuard(backends.HostTarget()).Status())
	assert.False(t, TargetGuard(backends.Target{Platform: "tpu"}).Met())
}

func TestRun(t *testing.T) {
	h := hostHarness(t)
	Run(t, h, unsqueeze, []CaseDef[axesParams]{
		{
			Name:       "interleaved",
			Inputs:     []InputSpec{{Name: "x", DType: dtypes.Float32, Dimensions: []int{2, 3, 4}}},
			Params:     axesParams{Axes: []int{0, 2, 4}},
			CheckGrads: true,
		},
		{
			Name:   "trailing",
			Inputs: []InputSpec{{Name: "x", DType: dtypes.Float16, Dimensions: []int{2, 3, 4}}},
			Params: axesParams{Axes: []int{3, 4, 5}},
		},
	})

	correct := scaledProduct(func(x, y *netbuilder.Value) (*netbuilder.Value, error) {
		product, err := netbuilder.Multiply(x, y)
		if err != nil {
			return nil, err
		}
		return netbuilder.Add(product, product)
	})
	Run(t, h, correct, []CaseDef[axesParams]{twoInputs("product", true)})
}

func TestRunCase(t *testing.T) {
	h := hostHarness(t)
	rng := CaseRand(h.Seed, "run_case")

	report := RunCase(h, unsqueeze, CaseDef[axesParams]{
		Name:       "ok",
		Inputs:     []InputSpec{{Name: "x", DType: dtypes.Float32, Dimensions: []int{32, 64}}},
		Params:     axesParams{Axes: []int{0}},
		CheckGrads: true,
	}, rng)
	require.NoError(t, report.Err)
	assert.Equal(t, StatusPassed, report.Status)
	assert.Equal(t, StageDone, report.Stage)
	assert.Equal(t, uintptr(32*64*4), report.InputBytes)
	assert.Equal(t, uintptr(32*64*4), report.OutputBytes)
	require.NotNil(t, report.Grads)
	assert.True(t, report.Grads.Passed)

	// Invalid axis: both backends fail, the reference first.
	report = RunCase(h, unsqueeze, CaseDef[axesParams]{
		Name:   "bad_axis",
		Inputs: []InputSpec{{Name: "x", DType: dtypes.Float32, Dimensions: []int{2, 3}}},
		Params: axesParams{Axes: []int{5}},
	}, rng)
	assert.Equal(t, StatusFailed, report.Status)
	assert.Equal(t, StageReference, report.Stage)
	require.Error(t, report.Err)
	assert.Contains(t, report.Err.Error(), "out of range")

	wrongValues := scaledProduct(netbuilder.Multiply)
	report = RunCase(h, wrongValues, twoInputs("wrong_values", false), rng)
	assert.Equal(t, StageCheck, report.Stage)
	require.NotNil(t, report.Outputs)
	assert.Equal(t, ValueMismatch, report.Outputs.Mismatches[0].Kind)

	wrongShape := scaledProduct(func(x, y *netbuilder.Value) (*netbuilder.Value, error) {
		sum, err := netbuilder.Add(x, y)
		if err != nil {
			return nil, err
		}
		return netbuilder.ExpandDims(sum, 0)
	})
	report = RunCase(h, wrongShape, twoInputs("wrong_shape", false), rng)
	assert.Equal(t, StageCheck, report.Stage)
	assert.Equal(t, ShapeMismatch, report.Outputs.Mismatches[0].Kind)

	// Abs has no gradient in the candidate: the forward check passes, the gradients fail.
	noGrad := scaledProduct(func(x, y *netbuilder.Value) (*netbuilder.Value, error) {
		product, err := netbuilder.Multiply(x, y)
		if err != nil {
			return nil, err
		}
		doubled, err := netbuilder.Add(product, product)
		if err != nil {
			return nil, err
		}
		return netbuilder.Abs(doubled)
	})
	report = RunCase(h, noGrad, CaseDef[axesParams]{
		Name: "no_grad",
		Inputs: []InputSpec{
			{Name: "x", DType: dtypes.Float64, Dimensions: []int{3}},
			{Name: "y", DType: dtypes.Float64, Dimensions: []int{3}},
		},
		CheckGrads: true,
	}, rng)
	assert.Equal(t, StageCandidateGrads, report.Stage)
	require.NotNil(t, report.Outputs)
	assert.True(t, report.Outputs.Passed)
}

func TestSeparateGradientPrograms(t *testing.T) {
	h := hostHarness(t)
	c := must.M1(twoInputs("separate", true).Define(CaseRand(h.Seed, "separate")))
	op := scaledProduct(func(x, y *netbuilder.Value) (*netbuilder.Value, error) {
		product, err := netbuilder.Multiply(x, y)
		if err != nil {
			return nil, err
		}
		return netbuilder.Add(product, product)
	})

	before := must.M1(RunCandidate(h, op, c))
	gradOutputs := must.M1(RandomLike(CaseRand(h.Seed, "grads"), before.Outputs))
	grads := must.M1(RunCandidateGrads(h, op, c, gradOutputs))
	after := must.M1(RunCandidate(h, op, c))
	assert.Equal(t, before.Outputs[0].Flat(), after.Outputs[0].Flat())
	assert.Equal(t, before.Outputs[0].Flat(), grads.Outputs[0].Flat())

	// d(2xy)/dx = 2y*g, d(2xy)/dy = 2x*g.
	refGrads := must.M1(RunReferenceGrads(op, c, gradOutputs))
	require.Len(t, grads.Grads, 2)
	assert.True(t, Check(refGrads.Grads, grads.Grads, DefaultTolerance(dtypes.Float64)).Passed)
	g := must.M1(gradOutputs[0].Float64s())
	y := must.M1(c.Input("y").Float64s())
	gotX := must.M1(grads.Grads[0].Float64s())
	for ii := range g {
		assert.InDelta(t, 2*y[ii]*g[ii], gotX[ii], 1e-12)
	}

	// Gradients of the reference never leak into the forward run.
	reference := must.M1(RunReference(op, c))
	assert.Nil(t, reference.Grads)
}

func TestOutputsOwnTheirValues(t *testing.T) {
	h := hostHarness(t)
	def := CaseDef[axesParams]{
		Name:   "owned",
		Inputs: []InputSpec{{Name: "x", DType: dtypes.Float32, Dimensions: []int{2, 3}}},
		Params: axesParams{Axes: []int{0, -1}},
	}
	c := must.M1(def.Define(CaseRand(h.Seed, def.Name)))
	input := c.Input("x").Clone()
	want := must.M1(RunReference(unsqueeze, c))
	got := must.M1(RunCandidate(h, unsqueeze, c))

	// Writing into one output must change neither the inputs nor the other output, so that Check compares
	// two independent results.
	got.Outputs[0].Flat().([]float32)[0] = 999
	assert.Equal(t, input.Flat(), c.Input("x").Flat())
	assert.NotEqual(t, float32(999), want.Outputs[0].Flat().([]float32)[0])
	outcome := Check(want.Outputs, got.Outputs, c.Tolerance(dtypes.Float32))
	require.False(t, outcome.Passed)
	assert.Equal(t, 1, outcome.NumMismatched)

	want.Outputs[0].Flat().([]float32)[1] = 999
	assert.Equal(t, input.Flat(), c.Input("x").Flat())
}
