package host

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/netbuilder"
	"github.com/gomlx/netbuilder/backends"
	"github.com/gomlx/netbuilder/tensors"
	"github.com/gomlx/netbuilder/types/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func run(t *testing.T, program *netbuilder.Program, inputs []*netbuilder.Value, feeds []*tensors.Tensor,
	fetches ...*netbuilder.Value) []*tensors.Tensor {
	t.Helper()
	outputs, err := New().Run(backends.HostTarget(), program, inputs, feeds, fetches)
	require.NoError(t, err)
	require.Len(t, outputs, len(fetches))
	return outputs
}

func TestExpandDims(t *testing.T) {
	b := netbuilder.New("expand_dims")
	x := b.CreateInput(dtypes.Float32, []int{2, 3, 4}, "x")
	y := must.M1(netbuilder.ExpandDims(x, 0, 2, 4))
	program := must.M1(b.Build())

	values := make([]float32, 24)
	for ii := range values {
		values[ii] = float32(ii)
	}
	feed := must.M1(tensors.FromFlatDataAndDimensions(values, 2, 3, 4))
	output := run(t, program, []*netbuilder.Value{x}, []*tensors.Tensor{feed}, y)[0]
	require.NoError(t, output.Shape().Check(dtypes.Float32, 1, 2, 1, 3, 1, 4))
	assert.Equal(t, values, output.Flat())
}

func TestOutputsDoNotAliasFeeds(t *testing.T) {
	b := netbuilder.New("aliasing")
	x := b.CreateInput(dtypes.Float32, []int{2, 3}, "x")
	y := must.M1(netbuilder.ExpandDims(x, 0, -1))
	z := must.M1(netbuilder.Reshape(x, shapes.Make(dtypes.Float32, 6)))
	program := must.M1(b.Build())

	feed := must.M1(tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4, 5, 6}, 2, 3))
	outputs := run(t, program, []*netbuilder.Value{x}, []*tensors.Tensor{feed}, y, z, x)
	for _, output := range outputs {
		output.Flat().([]float32)[0] = 999
	}
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, feed.Flat())
	assert.Equal(t, float32(999), outputs[0].Flat().([]float32)[0])
	assert.Equal(t, float32(999), outputs[1].Flat().([]float32)[0])
}

func TestArithmetic(t *testing.T) {
	b := netbuilder.New("arithmetic")
	x := b.CreateInput(dtypes.Float64, []int{3}, "x")
	y := b.CreateInput(dtypes.Float64, []int{3}, "y")
	sum := must.M1(netbuilder.Add(x, y))
	diff := must.M1(netbuilder.Subtract(x, y))
	product := must.M1(netbuilder.Multiply(x, y))
	negated := must.M1(netbuilder.Negate(x))
	abs := must.M1(netbuilder.Abs(negated))
	program := must.M1(b.Build())

	tx := must.M1(tensors.FromAnyValue([]float64{1, -2, 3}))
	ty := must.M1(tensors.FromAnyValue([]float64{4, 5, -6}))
	outputs := run(t, program, []*netbuilder.Value{x, y}, []*tensors.Tensor{tx, ty}, sum, diff, product, negated, abs)
	assert.Equal(t, []float64{5, 3, -3}, outputs[0].Flat())
	assert.Equal(t, []float64{-3, -7, 9}, outputs[1].Flat())
	assert.Equal(t, []float64{4, -10, -18}, outputs[2].Flat())
	assert.Equal(t, []float64{-1, 2, -3}, outputs[3].Flat())
	assert.Equal(t, []float64{1, 2, 3}, outputs[4].Flat())
}

func TestFloat16AndInts(t *testing.T) {
	b := netbuilder.New("dtypes")
	h := b.CreateInput(dtypes.Float16, []int{2}, "h")
	i := b.CreateInput(dtypes.Int32, []int{2}, "i")
	hSum := must.M1(netbuilder.Add(h, h))
	iProduct := must.M1(netbuilder.Multiply(i, i))
	program := must.M1(b.Build())

	th := must.M1(tensors.FromFlatDataAndDimensions([]float16.Float16{float16.Fromfloat32(0.5), float16.Fromfloat32(-1.25)}, 2))
	ti := must.M1(tensors.FromFlatDataAndDimensions([]int32{3, -4}, 2))
	outputs := run(t, program, []*netbuilder.Value{h, i}, []*tensors.Tensor{th, ti}, hSum, iProduct)
	assert.Equal(t, []float64{1, -2.5}, must.M1(outputs[0].Float64s()))
	assert.Equal(t, []int32{9, 16}, outputs[1].Flat())
}

func TestLayoutOps(t *testing.T) {
	b := netbuilder.New("layout")
	fn := b.Main()
	x := must.M1(fn.ConstantFromFlatAndDimensions([]int32{0, 1, 2, 3, 4, 5}, 2, 3))
	transposed := must.M1(netbuilder.Transpose(x, 1, 0))
	row := must.M1(fn.ConstantFromFlatAndDimensions([]int32{7, 8, 9}, 3))
	broadcast := must.M1(netbuilder.BroadcastInDim(row, shapes.Make(dtypes.Int32, 2, 3), []int{1}))
	iota := must.M1(fn.Iota(shapes.Make(dtypes.Float32, 2, 3), 0))
	reshaped := must.M1(netbuilder.Reshape(x, shapes.Make(dtypes.Int32, 3, 2)))
	program := must.M1(b.Build())

	outputs := run(t, program, nil, nil, transposed, broadcast, iota, reshaped)
	assert.Equal(t, []int32{0, 3, 1, 4, 2, 5}, outputs[0].Flat())
	assert.Equal(t, []int32{7, 8, 9, 7, 8, 9}, outputs[1].Flat())
	assert.Equal(t, []float32{0, 0, 0, 1, 1, 1}, outputs[2].Flat())
	require.NoError(t, outputs[3].Shape().Check(dtypes.Int32, 3, 2))
	assert.Equal(t, []int32{0, 1, 2, 3, 4, 5}, outputs[3].Flat())
}

func TestVJP(t *testing.T) {
	// Gradient program of y = ExpandDims(x * x, 0): dL/dx = 2 * x * Reshape(gradY).
	b := netbuilder.New("grads")
	x := b.CreateInput(dtypes.Float64, []int{2, 2}, "x")
	square := must.M1(netbuilder.Multiply(x, x))
	y := must.M1(netbuilder.ExpandDims(square, 0))
	gradY := b.CreateInput(dtypes.Float64, []int{1, 2, 2}, "grad_y")
	unused := b.CreateInput(dtypes.Float64, []int{3}, "unused")
	grads := must.M1(netbuilder.VJP([]*netbuilder.Value{y}, []*netbuilder.Value{gradY}, []*netbuilder.Value{x, unused}))
	program := must.M1(b.Build())

	tx := must.M1(tensors.FromFlatDataAndDimensions([]float64{1, 2, 3, 4}, 2, 2))
	tg := must.M1(tensors.FromFlatDataAndDimensions([]float64{1, 0.5, -1, 2}, 1, 2, 2))
	tu := must.M1(tensors.FromFlatDataAndDimensions([]float64{9, 9, 9}, 3))
	outputs := run(t, program, []*netbuilder.Value{x, gradY, unused}, []*tensors.Tensor{tx, tg, tu}, grads...)
	assert.Equal(t, []float64{2, 2, -6, 16}, outputs[0].Flat())
	assert.Equal(t, []float64{0, 0, 0}, outputs[1].Flat())
}

func TestErrors(t *testing.T) {
	b := netbuilder.New("errors")
	x := b.CreateInput(dtypes.Float32, []int{2}, "x")
	y := must.M1(netbuilder.Negate(x))
	program := must.M1(b.Build())
	feed := tensors.FromShape(shapes.Make(dtypes.Float32, 2))

	executor := New()
	assert.False(t, executor.Available(backends.CPUTarget()))
	_, err := executor.Run(backends.CPUTarget(), program, []*netbuilder.Value{x}, []*tensors.Tensor{feed}, []*netbuilder.Value{y})
	require.Error(t, err)

	_, err = executor.Run(backends.HostTarget(), program, nil, nil, []*netbuilder.Value{y})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was not fed")

	wrong := tensors.FromShape(shapes.Make(dtypes.Float32, 3))
	_, err = executor.Run(backends.HostTarget(), program, []*netbuilder.Value{x}, []*tensors.Tensor{wrong}, []*netbuilder.Value{y})
	require.Error(t, err)
}

func TestRegistered(t *testing.T) {
	require.True(t, backends.Probe(backends.HostTarget()))
	executor := must.M1(backends.New(backends.HostTarget()))
	assert.Equal(t, ExecutorName, executor.Name())
}
