package netbuilder

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	"github.com/gomlx/netbuilder/internal/optypes"
	"github.com/pkg/errors"
)

// Program is a frozen netbuilder program, returned by Builder.Build.
//
// The same Program can be rendered or executed for different sets of fetched values.
type Program struct {
	name       string
	fn         *Function
	inputs     []*Value
	statements []*Statement
}

// Name of the program.
func (p *Program) Name() string {
	return p.name
}

// Inputs of the program, in declaration order: it is the order in which they must be fed.
func (p *Program) Inputs() []*Value {
	return p.inputs
}

// Statements of the program, in the order they were added.
func (p *Program) Statements() []*Statement {
	return p.statements
}

// Schedule returns the statements needed to compute the fetches, in execution order.
//
// It returns an error if a fetch doesn't belong to the program.
func (p *Program) Schedule(fetches ...*Value) ([]*Statement, error) {
	if len(fetches) == 0 {
		return nil, errors.Errorf("no values to fetch from program %q", p.name)
	}
	producers := p.fn.producers(p.statements)
	needed := make(map[*Value]bool, len(p.statements))
	for ii, fetch := range fetches {
		if fetch == nil {
			return nil, errors.Errorf("fetch #%d from program %q is nil", ii, p.name)
		}
		if fetch.fn != p.fn {
			return nil, errors.Errorf("fetch #%d (%s) doesn't belong to program %q", ii, fetch, p.name)
		}
		if _, found := producers[fetch]; !found && !slices.Contains(p.inputs, fetch) {
			return nil, errors.Errorf("fetch #%d (%s) was not created in program %q before it was built", ii, fetch, p.name)
		}
		needed[fetch] = true
	}
	var schedule []*Statement
	for _, stmt := range slices.Backward(p.statements) {
		used := false
		for _, output := range stmt.Outputs {
			if needed[output] {
				used = true
				break
			}
		}
		if !used {
			continue
		}
		schedule = append(schedule, stmt)
		for _, input := range stmt.Inputs {
			needed[input] = true
		}
	}
	slices.Reverse(schedule)
	return schedule, nil
}

// Write the program as a StableHLO module, whose main function takes all the program inputs, in declaration order,
// and returns the fetched values.
//
// Only the statements needed by the fetches are written.
func (p *Program) Write(writer io.Writer, fetches ...*Value) error {
	schedule, err := p.Schedule(fetches...)
	if err != nil {
		return err
	}
	w := func(format string, args ...any) {
		if err != nil {
			// No op if an error was encountered earlier
			return
		}
		_, err = fmt.Fprintf(writer, format, args...)
	}
	we := func(e elementWriter, indentation string) {
		if err != nil {
			// No op if an error was encountered earlier
			return
		}
		err = e.Write(writer, indentation)
	}

	indentation := IndentationStep
	nextIndent := indentation + IndentationStep
	w("module @%s {\n", NormalizeIdentifier(p.name))
	w("%sfunc.func @%s(", indentation, p.fn.Name)
	for i, input := range p.inputs {
		if i > 0 {
			w(", ")
		}
		we(input, nextIndent)
		w(": %s", input.shape.ToStableHLO())
	}
	w(") -> ")
	if len(fetches) > 1 {
		w("(")
	}
	for i, fetch := range fetches {
		if i > 0 {
			w(", ")
		}
		w("%s", fetch.shape.ToStableHLO())
	}
	if len(fetches) > 1 {
		w(")")
	}
	w(" {\n")
	for _, stmt := range schedule {
		we(stmt, nextIndent)
		w("\n")
	}
	returnStmt := &Statement{
		Function: p.fn,
		OpType:   optypes.FuncReturn,
		Inputs:   fetches,
	}
	we(returnStmt, nextIndent)
	w("\n%s}\n}\n", indentation)
	return err
}

// StableHLO renders the program as a StableHLO module returning the fetched values. See Program.Write.
func (p *Program) StableHLO(fetches ...*Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Write(&buf, fetches...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
