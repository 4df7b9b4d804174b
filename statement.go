package netbuilder

import (
	"fmt"
	"io"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/netbuilder/internal/optypes"
	"github.com/gomlx/netbuilder/internal/utils"
	"github.com/pkg/errors"
)

// Statement represents a single operation line in the program.
type Statement struct {
	Function *Function

	// OpType is the type of the operation.
	OpType optypes.OpType

	// Inputs to the operation.
	Inputs []*Value

	// Attributes of the operation.
	Attributes map[string]any

	// Outputs of the operation. It is nil for func.return.
	Outputs []*Value
}

// Write writes the StableHLO representation of the statement to the given writer.
func (s *Statement) Write(writer io.Writer, indentation string) error {
	var err error
	w := func(format string, args ...any) {
		if err != nil {
			// No op if an error was encountered earlier
			return
		}
		_, err = fmt.Fprintf(writer, format, args...)
	}
	we := func(e elementWriter) {
		if err != nil {
			// No op if an error was encountered earlier
			return
		}
		err = e.Write(writer, indentation)
	}

	// Output values are written first:
	w("%s", indentation)
	if len(s.Outputs) > 0 {
		for i, output := range s.Outputs {
			if i > 0 {
				w(", ")
			}
			we(output)
		}
		w(" = ")
	}

	// Write op name and arguments:
	w("%q(", s.OpType.ToStableHLO())
	for i, input := range s.Inputs {
		if i > 0 {
			w(", ")
		}
		we(input)
	}
	w(")")

	// Write attributes, sorted by name so the output is deterministic:
	if len(s.Attributes) > 0 {
		keys := make([]string, 0, len(s.Attributes))
		for key := range s.Attributes {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		w("{")
		for i, key := range keys {
			if i > 0 {
				w(", ")
			}
			w("%s = %s", key, literalToStableHLO(s.Attributes[key]))
		}
		w("}")
	}

	// Write signature:
	w(" : (")
	for i, input := range s.Inputs {
		if i > 0 {
			w(", ")
		}
		w("%s", input.shape.ToStableHLO())
	}
	w(") -> ")
	if len(s.Outputs) == 0 {
		w("()")
	} else {
		// There are outputs: we use "(" and ")" only if there are more than one.
		if len(s.Outputs) > 1 {
			w("(")
		}
		for i, output := range s.Outputs {
			if i > 0 {
				w(", ")
			}
			w("%s", output.shape.ToStableHLO())
		}
		if len(s.Outputs) > 1 {
			w(")")
		}
	}
	return err
}

// IntsAttribute returns the attribute holding a list of ints, like "permutation" or "broadcast_dimensions".
func (s *Statement) IntsAttribute(name string) ([]int, error) {
	switch v := s.Attributes[name].(type) {
	case intArray:
		return []int(v), nil
	case nil:
		return nil, errors.Errorf("statement %s has no attribute %q", s.OpType, name)
	default:
		return nil, errors.Errorf("attribute %q of statement %s is a %T, not a list of ints", name, s.OpType, v)
	}
}

// IntAttribute returns the attribute holding an int, like "iota_dimension".
func (s *Statement) IntAttribute(name string) (int, error) {
	switch v := s.Attributes[name].(type) {
	case int64:
		return int(v), nil
	case int:
		return v, nil
	case nil:
		return 0, errors.Errorf("statement %s has no attribute %q", s.OpType, name)
	default:
		return 0, errors.Errorf("attribute %q of statement %s is a %T, not an int", name, s.OpType, v)
	}
}

// LiteralAttribute returns the attribute holding a Literal, like the "value" of a constant.
func (s *Statement) LiteralAttribute(name string) (*Literal, error) {
	switch v := s.Attributes[name].(type) {
	case *Literal:
		return v, nil
	case nil:
		return nil, errors.Errorf("statement %s has no attribute %q", s.OpType, name)
	default:
		return nil, errors.Errorf("attribute %q of statement %s is a %T, not a literal", name, s.OpType, v)
	}
}

type hasToStableHLO interface {
	ToStableHLO() string
}

// literalToStableHLO converts a literal value, usually used in attributes, to its StableHLO string representation.
func literalToStableHLO(attr any) string {
	switch v := attr.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		dtype := dtypes.FromAny(v)
		return fmt.Sprintf("%d : %s", v, utils.DTypeToStableHLO(dtype))
	case bool:
		if v {
			return "true"
		}
		return "false"
	case hasToStableHLO:
		// For types that implement their own conversion to stablehlo, use that.
		return v.ToStableHLO()
	default:
		return fmt.Sprintf("Unknown literal type: %T %#v", v, v)
	}
}
