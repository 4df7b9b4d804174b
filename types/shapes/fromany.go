package shapes

import (
	"reflect"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// FromAnyValue returns the shape of a Go scalar or of a (multi-level) slice of scalars, as used to write
// case inputs and expected values as Go literals.
//
// Every slice must be non-empty and all sub-slices of the same level must have the same length.
//
// Example:
//
//	shape, _ := shapes.FromAnyValue([][]float32{{1, 2, 3}, {4, 5, 6}}) // (Float32)[2 3]
func FromAnyValue(v any) (Shape, error) {
	if v == nil {
		return Invalid(), errors.New("shapes.FromAnyValue(nil): no shape for a nil value")
	}
	value := reflect.ValueOf(v)

	// Dimensions are taken from the first element of each level, and then every level is validated against them.
	var dims []int
	elem := value
	for elem.Kind() == reflect.Slice {
		if elem.Len() == 0 {
			return Invalid(), errors.Errorf("shapes.FromAnyValue(%T): empty slice at axis %d, the dimensions of the following axes are unknown",
				v, len(dims))
		}
		dims = append(dims, elem.Len())
		elem = elem.Index(0)
	}
	dtype := dtypes.FromGoType(elem.Type())
	if dtype == dtypes.InvalidDType {
		return Invalid(), errors.Errorf("shapes.FromAnyValue(%T): element type %s has no dtype", v, elem.Type())
	}
	if err := checkRegular(value, dims, 0); err != nil {
		return Invalid(), errors.WithMessagef(err, "shapes.FromAnyValue(%T)", v)
	}
	return Make(dtype, dims...), nil
}

// checkRegular verifies that every slice at the given axis of value has length dims[axis].
func checkRegular(value reflect.Value, dims []int, axis int) error {
	if axis == len(dims) {
		return nil
	}
	if value.Len() != dims[axis] {
		return errors.Errorf("irregular slices: axis %d has lengths %d and %d", axis, dims[axis], value.Len())
	}
	for ii := range value.Len() {
		if err := checkRegular(value.Index(ii), dims, axis+1); err != nil {
			return err
		}
	}
	return nil
}
