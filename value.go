package netbuilder

import (
	"fmt"
	"io"

	"github.com/gomlx/netbuilder/types/shapes"
)

// Value represents a symbolic value in a netbuilder program, like `%0` or `%x`.
// It has a name, shape and the function that owns it.
type Value struct {
	fn    *Function
	name  string
	shape shapes.Shape
}

// Shape returns the shape of the value.
func (v *Value) Shape() shapes.Shape {
	return v.shape
}

// Name of the value, without the "%" prefix.
func (v *Value) Name() string {
	return v.name
}

// Function that owns the value.
func (v *Value) Function() *Function {
	return v.fn
}

// Write writes the value in StableHLO text format to the given writer.
func (v *Value) Write(w io.Writer, indentation string) error {
	_ = indentation
	_, err := fmt.Fprintf(w, "%%%s", v.name)
	return err
}

// String implements fmt.Stringer.
func (v *Value) String() string {
	return "%" + v.name
}
