// Package optypes defines OpType and lists the operations supported by the netbuilder programs.
package optypes

import (
	"fmt"

	"github.com/gomlx/netbuilder/internal/utils"
)

// OpType is an enum of all operations a netbuilder program can hold.
type OpType int

//go:generate go tool enumer -type=OpType -output=gen_optype_enumer.go optypes.go

const (
	Invalid OpType = iota
	FuncReturn
	Constant
	Iota

	Abs
	Add
	BroadcastInDim
	Multiply
	Negate
	Reshape
	Subtract
	Transpose

	// Last should always be kept the last, it is used as a counter/marker.
	Last
)

var (
	// stableHLOMappings maps OpType to the corresponding StableHLO name, when the default
	// "snake case" doesn't work.
	stableHLOMappings = map[OpType]string{
		FuncReturn: "func.return",
	}
)

// ToStableHLO returns the ToStableHLO name of the operation.
func (op OpType) ToStableHLO() string {
	name, ok := stableHLOMappings[op]
	if !ok {
		name = fmt.Sprintf("stablehlo.%s", utils.ToSnakeCase(op.String()))
	}
	return name
}
