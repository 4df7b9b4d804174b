package optest

import (
	"fmt"
	"math"
	"strings"

	"github.com/gomlx/netbuilder/tensors"
	"github.com/gomlx/netbuilder/types/shapes"
	"github.com/pkg/errors"
)

// MismatchKind classifies a Mismatch.
type MismatchKind int

const (
	// CountMismatch means the backends returned a different number of outputs.
	CountMismatch MismatchKind = iota

	// ShapeMismatch means an output has different shapes (dtype or dimensions) in the two backends.
	ShapeMismatch

	// ValueMismatch means an element of an output differs beyond tolerance.
	ValueMismatch
)

// String implements fmt.Stringer.
func (kind MismatchKind) String() string {
	switch kind {
	case CountMismatch:
		return "CountMismatch"
	case ShapeMismatch:
		return "ShapeMismatch"
	case ValueMismatch:
		return "ValueMismatch"
	default:
		return fmt.Sprintf("MismatchKind(%d)", int(kind))
	}
}

// MaxReportedMismatches is the maximum number of value mismatches kept in an Outcome. All of them are counted.
var MaxReportedMismatches = 10

// Mismatch describes one difference between the reference and the candidate results.
type Mismatch struct {
	Kind MismatchKind

	// Output index of the mismatching output. For CountMismatch it is the number of reference outputs.
	Output int

	// WantShape and GotShape are set for ShapeMismatch.
	WantShape, GotShape shapes.Shape

	// Index of the mismatching element, one value per axis. Set for ValueMismatch.
	Index []int

	// Want (reference) and Got (candidate) values, and their differences. Set for ValueMismatch.
	Want, Got        float64
	AbsDiff, RelDiff float64
}

// String implements fmt.Stringer.
func (m Mismatch) String() string {
	switch m.Kind {
	case CountMismatch:
		return fmt.Sprintf("%s: reference returned %d outputs, candidate returned a different number", m.Kind, m.Output)
	case ShapeMismatch:
		return fmt.Sprintf("%s: output #%d has shape %s in the reference, but %s in the candidate",
			m.Kind, m.Output, m.WantShape, m.GotShape)
	default:
		return fmt.Sprintf("%s: output #%d at index %v: want %g, got %g (abs diff %g, rel diff %g)",
			m.Kind, m.Output, m.Index, m.Want, m.Got, m.AbsDiff, m.RelDiff)
	}
}

// Outcome of comparing the reference and the candidate results.
type Outcome struct {
	Passed bool

	// Mismatches found, shape and count mismatches first. At most MaxReportedMismatches value mismatches are kept.
	Mismatches []Mismatch

	// NumCompared is the number of elements compared, and NumMismatched how many of them were beyond tolerance.
	NumCompared, NumMismatched int

	// MaxAbs and MaxRel are the largest absolute and relative differences found, MaxAbs located at MaxAbsOutput
	// and MaxAbsIndex.
	MaxAbs, MaxRel float64
	MaxAbsOutput   int
	MaxAbsIndex    []int

	Tolerance Tolerance
}

// Check compares element-wise the outputs of the reference (want) and of the candidate (got) within tolerance.
//
// A different number of outputs or a different shape of an output are failures that don't allow the values of the
// output to be compared.
func Check(want, got []*tensors.Tensor, tol Tolerance) Outcome {
	outcome := Outcome{Passed: true, Tolerance: tol}
	if len(want) != len(got) {
		outcome.Passed = false
		outcome.Mismatches = append(outcome.Mismatches, Mismatch{Kind: CountMismatch, Output: len(want)})
		return outcome
	}
	var valueMismatches []Mismatch
	for outputIdx := range want {
		if want[outputIdx] == nil || got[outputIdx] == nil {
			outcome.Passed = false
			outcome.Mismatches = append(outcome.Mismatches, Mismatch{Kind: CountMismatch, Output: len(want)})
			continue
		}
		wantShape, gotShape := want[outputIdx].Shape(), got[outputIdx].Shape()
		if !wantShape.Equal(gotShape) {
			outcome.Passed = false
			outcome.Mismatches = append(outcome.Mismatches, Mismatch{
				Kind: ShapeMismatch, Output: outputIdx, WantShape: wantShape, GotShape: gotShape})
			continue
		}
		wantValues, errWant := want[outputIdx].Float64s()
		gotValues, errGot := got[outputIdx].Float64s()
		if errWant != nil || errGot != nil {
			outcome.Passed = false
			outcome.Mismatches = append(outcome.Mismatches, Mismatch{
				Kind: ShapeMismatch, Output: outputIdx, WantShape: wantShape, GotShape: gotShape})
			continue
		}
		for flatIdx, wantValue := range wantValues {
			gotValue := gotValues[flatIdx]
			outcome.NumCompared++
			absDiff, relDiff := differences(wantValue, gotValue)
			if absDiff > outcome.MaxAbs {
				outcome.MaxAbs = absDiff
				outcome.MaxAbsOutput = outputIdx
				outcome.MaxAbsIndex = wantShape.Unravel(flatIdx)
			}
			if relDiff > outcome.MaxRel {
				outcome.MaxRel = relDiff
			}
			if tol.Within(wantValue, gotValue) {
				continue
			}
			outcome.Passed = false
			outcome.NumMismatched++
			if len(valueMismatches) < MaxReportedMismatches {
				valueMismatches = append(valueMismatches, Mismatch{
					Kind:    ValueMismatch,
					Output:  outputIdx,
					Index:   wantShape.Unravel(flatIdx),
					Want:    wantValue,
					Got:     gotValue,
					AbsDiff: absDiff,
					RelDiff: relDiff,
				})
			}
		}
	}
	outcome.Mismatches = append(outcome.Mismatches, valueMismatches...)
	return outcome
}

// differences returns the absolute and relative differences. Equal values (including equal infinities) have no
// difference, and a difference with NaN is NaN. The relative difference for want == 0 is the absolute one.
func differences(want, got float64) (absDiff, relDiff float64) {
	if want == got || (math.IsNaN(want) && math.IsNaN(got)) {
		return 0, 0
	}
	absDiff = math.Abs(want - got)
	if want == 0 {
		return absDiff, absDiff
	}
	return absDiff, absDiff / math.Abs(want)
}

// Err returns nil if the outcome passed, or an error describing the first mismatch found, the number of mismatching
// elements and the largest deviation.
func (o Outcome) Err() error {
	if o.Passed {
		return nil
	}
	if len(o.Mismatches) == 0 {
		return errors.New("comparison failed")
	}
	first := o.Mismatches[0]
	if first.Kind != ValueMismatch {
		return errors.New(first.String())
	}
	return errors.Errorf("%d of %d elements differ beyond tolerance (%s), first %s; max abs diff %g at output #%d index %v, max rel diff %g",
		o.NumMismatched, o.NumCompared, o.Tolerance, first, o.MaxAbs, o.MaxAbsOutput, o.MaxAbsIndex, o.MaxRel)
}

// String implements fmt.Stringer, with one line per reported mismatch.
func (o Outcome) String() string {
	var sb strings.Builder
	if o.Passed {
		fmt.Fprintf(&sb, "passed: %d elements compared (%s), max abs diff %g, max rel diff %g",
			o.NumCompared, o.Tolerance, o.MaxAbs, o.MaxRel)
		return sb.String()
	}
	fmt.Fprintf(&sb, "failed: %d of %d elements differ (%s)", o.NumMismatched, o.NumCompared, o.Tolerance)
	for _, m := range o.Mismatches {
		sb.WriteString("\n  ")
		sb.WriteString(m.String())
	}
	return sb.String()
}
