package optest

import (
	"fmt"
	"math"

	"github.com/gomlx/gopjrt/dtypes"
)

// Tolerance for the element-wise comparison of a reference value (want) and a candidate value (got).
//
// A pair of values passes if |want-got| <= Atol + Rtol*|want|.
type Tolerance struct {
	Atol, Rtol float64
}

// DefaultTolerance returns the tolerance used for values of the given dtype. Integer and boolean values must match
// exactly.
func DefaultTolerance(dtype dtypes.DType) Tolerance {
	switch dtype {
	case dtypes.Float64:
		return Tolerance{Atol: 1e-9, Rtol: 1e-9}
	case dtypes.Float32:
		return Tolerance{Atol: 1e-5, Rtol: 1e-5}
	case dtypes.Float16, dtypes.BFloat16:
		return Tolerance{Atol: 1e-3, Rtol: 1e-3}
	default:
		return Tolerance{}
	}
}

// Within returns whether got is within tolerance of want.
//
// NaN matches only NaN, and an infinity matches only the same infinity.
func (tol Tolerance) Within(want, got float64) bool {
	if want == got {
		return true
	}
	if math.IsNaN(want) || math.IsNaN(got) {
		return math.IsNaN(want) && math.IsNaN(got)
	}
	if math.IsInf(want, 0) || math.IsInf(got, 0) {
		return false
	}
	return math.Abs(want-got) <= tol.Atol+tol.Rtol*math.Abs(want)
}

// String implements fmt.Stringer.
func (tol Tolerance) String() string {
	return fmt.Sprintf("atol=%g, rtol=%g", tol.Atol, tol.Rtol)
}
