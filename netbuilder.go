// Package netbuilder builds tensor programs operation by operation, freezes them into a Program and
// renders them as StableHLO, so they can be run by one of the executors in the backends package.
//
// A program is built in three steps:
//
//  1. Declare the symbolic inputs with Builder.CreateInput.
//  2. Add operations (Add, ExpandDims, Reshape, ...) to the values: each returns a new symbolic value.
//  3. Call Builder.Build to get the Program: after that the builder rejects new operations.
//
// Gradients are staged with VJP, on a separate builder that replays the forward operations.
//
// Example:
//
//	b := netbuilder.New("expand_dims")
//	x := b.CreateInput(dtypes.Float32, []int{32, 64}, "x")
//	y, err := netbuilder.ExpandDims(x, 0)
//	...
//	program, err := b.Build()
//	...
//	code, err := program.StableHLO(y)
package netbuilder

//go:generate go run ./internal/cmd/ops_generator

import (
	"io"

	"github.com/gomlx/netbuilder/internal/utils"
)

// IndentationStep used when writing StableHLO code.
const IndentationStep = "  "

// MainFunctionName is the name of the entry point of every program.
const MainFunctionName = "main"

// elementWriter represents elements of StableHLO that know how to write themselves.
type elementWriter interface {
	Write(w io.Writer, indentation string) error
}

// NormalizeIdentifier converts the name of an identifier (program name or input name) to a valid StableHLO one:
// only letters, digits and underscores are allowed, anything else is replaced with an underscore.
func NormalizeIdentifier(name string) string {
	return utils.NormalizeIdentifier(name)
}
