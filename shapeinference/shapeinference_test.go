package shapeinference

import (
	"slices"
	"strings"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/netbuilder/internal/optypes"
	"github.com/gomlx/netbuilder/types/shapes"
)

// Aliases
var (
	Bool = dtypes.Bool
	I32  = dtypes.Int32
	F32  = dtypes.Float32
	U64  = dtypes.Uint64

	S = shapes.Make
)

// must1 panics if there is an error.
func must1[T any](value T, err error) T {
	if err != nil {
		panic(err)
	}
	return value
}

func TestBinaryOp(t *testing.T) {
	var err error
	_, err = BinaryOp(optypes.Multiply, S(Bool, 1), S(Bool, 1))
	if err == nil {
		t.Error("expected error for Multiply(Bool, Bool), got nil")
	}

	// Invalid operation type (not binary op).
	_, err = BinaryOp(optypes.Negate, S(F32), S(F32))
	if err == nil {
		t.Error("expected error for Negate(F32, F32), got nil")
	}

	// No implicit broadcasting.
	_, err = BinaryOp(optypes.Add, S(F32, 2, 3), S(F32, 1, 3))
	if err == nil {
		t.Error("expected error for Add([2 3], [1 3]), got nil")
	}
	_, err = BinaryOp(optypes.Add, S(F32, 2, 3), S(dtypes.Float64, 2, 3))
	if err == nil {
		t.Error("expected error for Add with mismatching dtypes, got nil")
	}

	output, err := BinaryOp(optypes.Add, S(I32, 3, 3), S(I32, 3, 3))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !output.Equal(S(I32, 3, 3)) {
		t.Errorf("expected output shape %s, got %s", S(I32, 3, 3), output)
	}
}

func TestUnaryOp(t *testing.T) {
	if _, err := UnaryOp(optypes.Negate, S(U64, 2)); err == nil {
		t.Error("expected error for Negate(Uint64), got nil")
	}
	if _, err := UnaryOp(optypes.Abs, S(Bool, 2)); err == nil {
		t.Error("expected error for Abs(Bool), got nil")
	}
	if _, err := UnaryOp(optypes.Add, S(F32, 2)); err == nil {
		t.Error("expected error for Add used as a unary op, got nil")
	}
	output := must1(UnaryOp(optypes.Abs, S(U64, 2)))
	if !output.Equal(S(U64, 2)) {
		t.Errorf("expected output shape %s, got %s", S(U64, 2), output)
	}
}

func TestReshape(t *testing.T) {
	if err := Reshape(S(F32, 2, 3), S(F32, 3, 2)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Reshape(S(F32, 2, 3), S(F32, 5)); err == nil {
		t.Error("expected error when reshaping 6 elements into 5")
	}
	if err := Reshape(S(F32, 2, 3), S(I32, 6)); err == nil {
		t.Error("expected error when changing the dtype")
	}
}

func TestExpandDims(t *testing.T) {
	testCases := []struct {
		operand shapes.Shape
		axes    []int
		want    []int
	}{
		{S(F32, 32, 64), []int{0}, []int{1, 32, 64}},
		{S(F32, 2, 3, 4), []int{0, 2, 4}, []int{1, 2, 1, 3, 1, 4}},
		{S(F32, 2, 3, 4), []int{3, 4, 5}, []int{2, 3, 4, 1, 1, 1}},
		{S(F32, 2, 3), []int{-1}, []int{2, 3, 1}},
		{S(F32, 2, 3, 4), []int{-1, 0}, []int{1, 2, 3, 4, 1}},
		{S(F32, 2, 3), []int{1, 1}, []int{2, 1, 1, 3}},
		{S(F32), []int{0, 0}, []int{1, 1}},
		{S(F32, 5), nil, []int{5}},
	}
	for _, tc := range testCases {
		output, err := ExpandDims(tc.operand, tc.axes)
		if err != nil {
			t.Errorf("ExpandDims(%s, %v) failed: %+v", tc.operand, tc.axes, err)
			continue
		}
		if err := output.Check(F32, tc.want...); err != nil {
			t.Errorf("ExpandDims(%s, %v): %v", tc.operand, tc.axes, err)
		}
	}

	// Out-of-range axes, even after accounting for the inserted ones.
	for _, axes := range [][]int{{5}, {-4}, {3, 5}, {0, 6}} {
		_, err := ExpandDims(S(F32, 2, 3), axes)
		if err == nil {
			t.Errorf("ExpandDims((Float32)[2 3], %v) should have failed", axes)
		} else if !strings.Contains(err.Error(), "out of range") {
			t.Errorf("unexpected error message for axes %v: %v", axes, err)
		}
	}
}

func TestExpandDimsPositions(t *testing.T) {
	testCases := []struct {
		rank int
		axes []int
		want []int
	}{
		{3, []int{0, 2, 4}, []int{0, 2, 4}},
		{3, []int{3, 4, 5}, []int{3, 4, 5}},
		{3, []int{0, 0}, []int{0, 1}},
		{2, []int{2, 0}, []int{0, 3}},
		{2, []int{-1, -1}, []int{2, 3}},
	}
	for _, tc := range testCases {
		got := must1(ExpandDimsPositions(tc.rank, tc.axes))
		if !slices.Equal(got, tc.want) {
			t.Errorf("ExpandDimsPositions(%d, %v) = %v, want %v", tc.rank, tc.axes, got, tc.want)
		}
	}
}

func TestTranspose(t *testing.T) {
	output := must1(Transpose(S(F32, 2, 3, 4), []int{2, 0, 1}))
	if err := output.Check(F32, 4, 2, 3); err != nil {
		t.Error(err)
	}
	if _, err := Transpose(S(F32, 2, 3), []int{0, 0}); err == nil {
		t.Error("expected error for repeated permutation axis")
	}
	if _, err := Transpose(S(F32, 2, 3), []int{0}); err == nil {
		t.Error("expected error for incomplete permutation")
	}
	if got := InversePermutation([]int{2, 0, 1}); !slices.Equal(got, []int{1, 2, 0}) {
		t.Errorf("InversePermutation([2 0 1]) = %v, want [1 2 0]", got)
	}
}

func TestBroadcastInDim(t *testing.T) {
	axesMapping := []int{-1}
	if err := BroadcastInDim(S(F32, 3), S(F32, 2, 3), axesMapping); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if axesMapping[0] != 1 {
		t.Errorf("expected negative axis to be adjusted to 1, got %d", axesMapping[0])
	}
	if err := BroadcastInDim(S(F32, 3), S(F32, 2, 4), []int{1}); err == nil {
		t.Error("expected error broadcasting dimension 3 to 4")
	}
	if err := BroadcastInDim(S(F32, 1, 1), S(F32, 2, 4), []int{1, 1}); err == nil {
		t.Error("expected error for duplicate target axis")
	}
	if err := BroadcastInDim(S(F32, 2, 3), S(F32, 6), []int{0, 0}); err == nil {
		t.Error("expected error for shrinking rank")
	}
}

func TestIota(t *testing.T) {
	if axis := must1(Iota(S(F32, 2, 3), -1)); axis != 1 {
		t.Errorf("Iota axis -1 should be adjusted to 1, got %d", axis)
	}
	if _, err := Iota(S(F32, 2, 3), 2); err == nil {
		t.Error("expected error for out-of-range Iota axis")
	}
}
