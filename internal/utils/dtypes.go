package utils

import (
	"fmt"

	"github.com/gomlx/gopjrt/dtypes"
)

// DTypeToStableHLO returns the StableHLO element type name for the dtype.
func DTypeToStableHLO(dtype dtypes.DType) string {
	switch dtype {
	case dtypes.Float64:
		return "f64"
	case dtypes.Float32:
		return "f32"
	case dtypes.Float16:
		return "f16"
	case dtypes.BFloat16:
		return "bf16"
	case dtypes.Int64:
		return "i64"
	case dtypes.Int32:
		return "i32"
	case dtypes.S16:
		return "i16"
	case dtypes.S8:
		return "i8"
	case dtypes.U64:
		return "ui64"
	case dtypes.U32:
		return "ui32"
	case dtypes.U16:
		return "ui16"
	case dtypes.U8:
		return "ui8"
	case dtypes.Bool:
		return "i1"
	default:
		return fmt.Sprintf("unknown_dtype<%s>", dtype.String())
	}
}
