package tensors

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/netbuilder/types/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestFromFlatDataAndDimensions(t *testing.T) {
	tensor := must.M1(FromFlatDataAndDimensions([]float32{1, 2, 3, 4, 5, 6}, 2, 3))
	require.NoError(t, tensor.Shape().Check(dtypes.Float32, 2, 3))
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Flat())
	assert.Equal(t, uintptr(24), tensor.Memory())

	_, err := FromFlatDataAndDimensions([]float32{1, 2, 3}, 2, 3)
	require.Error(t, err)
	_, err = FromFlatDataAndDimensions([]float32{}, -1)
	require.Error(t, err)
	_, err = FromFlatDataAndDimensions(float32(1))
	require.Error(t, err)
}

func TestFromAnyValue(t *testing.T) {
	tensor := must.M1(FromAnyValue([][]float64{{1, 2}, {3, 4}, {5, 6}}))
	require.NoError(t, tensor.Shape().Check(dtypes.Float64, 3, 2))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, tensor.Flat())

	scalar := must.M1(FromAnyValue(int32(7)))
	assert.Equal(t, 0, scalar.Rank())
	assert.Equal(t, []int32{7}, scalar.Flat())

	_, err := FromAnyValue([]complex64{1})
	require.Error(t, err)
	_, err = FromAnyValue([][]float32{{1}, {2, 3}})
	require.Error(t, err)
}

func TestFromShape(t *testing.T) {
	tensor := FromShape(shapes.Make(dtypes.Float16, 2, 2))
	assert.Equal(t, make([]float16.Float16, 4), tensor.Flat())
	assert.Panics(t, func() { FromShape(shapes.Make(dtypes.Complex128, 2)) })
}

func TestFloat64s(t *testing.T) {
	values := []float64{0.5, -1, 2}
	for _, dtype := range []dtypes.DType{dtypes.Float64, dtypes.Float32, dtypes.Float16} {
		tensor := must.M1(FromFloat64s(shapes.Make(dtype, 3), values))
		assert.Equal(t, values, must.M1(tensor.Float64s()), "dtype %s", dtype)
	}
	ints := must.M1(FromFlatDataAndDimensions([]int64{1, 2}, 2))
	assert.Equal(t, []float64{1, 2}, must.M1(ints.Float64s()))
	small := must.M1(FromFloat64s(shapes.Make(dtypes.Uint8, 2), []float64{3, 250}))
	assert.Equal(t, []uint8{3, 250}, small.Flat())

	_, err := FromFloat64s(shapes.Make(dtypes.Float32, 2), values)
	require.Error(t, err)
}

func TestRandom(t *testing.T) {
	shape := shapes.Make(dtypes.Float32, 4, 5)
	first := must.M1(Random(rand.New(rand.NewPCG(42, 0)), shape))
	second := must.M1(Random(rand.New(rand.NewPCG(42, 0)), shape))
	assert.Equal(t, first.Flat(), second.Flat(), "same seed must generate the same values")
	for _, v := range must.M1(first.Float64s()) {
		assert.True(t, v >= 0 && v < 1, "value %g out of [0, 1)", v)
	}
	f16 := must.M1(Random(rand.New(rand.NewPCG(1, 2)), shapes.Make(dtypes.Float16, 3)))
	assert.Equal(t, dtypes.Float16, f16.DType())

	_, err := Random(rand.New(rand.NewPCG(1, 2)), shapes.Make(dtypes.Int32, 3))
	require.Error(t, err)
}

func TestReshapeAndClone(t *testing.T) {
	tensor := must.M1(FromFlatDataAndDimensions([]float32{1, 2, 3, 4, 5, 6}, 2, 3))
	reshaped := must.M1(tensor.Reshape(1, 2, 1, 3))
	require.NoError(t, reshaped.Shape().Check(dtypes.Float32, 1, 2, 1, 3))
	assert.Equal(t, tensor.Flat(), reshaped.Flat())
	_, err := tensor.Reshape(4)
	require.Error(t, err)

	clone := tensor.Clone()
	clone.Flat().([]float32)[0] = 100
	assert.Equal(t, float32(1), tensor.Flat().([]float32)[0])
}

func TestInDelta(t *testing.T) {
	a := must.M1(FromFlatDataAndDimensions([]float64{1, math.NaN()}, 2))
	b := must.M1(FromFlatDataAndDimensions([]float64{1.001, math.NaN()}, 2))
	assert.True(t, a.InDelta(b, 0.01))
	assert.False(t, a.InDelta(b, 0.0001))
	c := must.M1(FromFlatDataAndDimensions([]float64{1, 2}, 1, 2))
	assert.False(t, a.InDelta(c, 1))
}

func TestString(t *testing.T) {
	tensor := must.M1(FromFlatDataAndDimensions([]float32{1, 2}, 2))
	assert.Equal(t, "(Float32)[2]: [1 2]", tensor.String())
	large := FromShape(shapes.Make(dtypes.Float32, 5, 5))
	assert.Equal(t, "(Float32)[5 5]: [25 values]", large.String())
}
