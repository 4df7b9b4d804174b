package netbuilder

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/netbuilder/internal/utils"
	"github.com/gomlx/netbuilder/types/shapes"
	"github.com/pkg/errors"
)

// Builder is used to construct a netbuilder program.
// See details in New.
type Builder struct {
	name string

	// main is the only function of the program, created on demand.
	main *Function

	// built is set by Build: no more operations can be added afterward.
	built bool
}

// New creates a new Builder object holding a computation graph in construction.
//
// Declare the inputs with Builder.CreateInput, then add operations (ops) one by one until the desired computation
// is defined. Once you are all set, call Builder.Build and it will return the frozen Program, which can be
// rendered to StableHLO or handed over to an executor.
//
// A Builder is not safe for concurrent use.
func New(name string) *Builder {
	return &Builder{
		name: name,
	}
}

// Name of the program being built.
func (b *Builder) Name() string {
	return b.name
}

// Main returns the main function of the program, where operations are added. It is created on the first call.
func (b *Builder) Main() *Function {
	if b.main == nil {
		b.main = &Function{
			Builder: b,
			Name:    MainFunctionName,
		}
	}
	return b.main
}

// CreateInput declares a new symbolic input of the program, with the given dtype, dimensions and name.
//
// The order of declaration is the order in which the values must be fed during execution.
// The name is normalized with NormalizeIdentifier, and if empty a default one ("arg0", "arg1", ...) is used.
func (b *Builder) CreateInput(dtype dtypes.DType, dimensions []int, name string) *Value {
	shape := shapes.Make(dtype, dimensions...)
	if name == "" {
		return b.Main().Input(shape)
	}
	return b.Main().NamedInput(name, shape)
}

// Built returns whether Build was already called.
func (b *Builder) Built() bool {
	return b.built
}

// Build checks the validity of the program and freezes it: no more operations can be added to the builder.
//
// The returned Program can be rendered with Program.StableHLO or executed by one of the backends.
func (b *Builder) Build() (*Program, error) {
	if b.built {
		return nil, errors.Errorf("program %q was already built", b.name)
	}
	fn := b.main
	if fn == nil || len(fn.Statements) == 0 {
		return nil, errors.Errorf("program %q has no operations", b.name)
	}
	names := utils.MakeSet[string](len(fn.Inputs))
	for _, input := range fn.Inputs {
		if names.Has(input.name) {
			return nil, errors.Errorf("program %q has more than one input named %q", b.name, input.name)
		}
		names.Insert(input.name)
	}
	b.built = true
	return &Program{
		name:       b.name,
		fn:         fn,
		inputs:     slices.Clone(fn.Inputs),
		statements: slices.Clone(fn.Statements),
	}, nil
}
