// Package ops runs the differential tests of the operations in optest/opdefs on the targets selected with -targets.
//
// E.g.: go test ./tests/ops -targets="host|cpu|cuda" -seed=42
package ops

import (
	"flag"
	"fmt"
	"iter"
	"math"
	"strings"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/netbuilder"
	"github.com/gomlx/netbuilder/backends"
	_ "github.com/gomlx/netbuilder/backends/default"
	"github.com/gomlx/netbuilder/optest"
	"github.com/gomlx/netbuilder/optest/opdefs"
	"github.com/gomlx/netbuilder/tensors"
	"github.com/gomlx/netbuilder/types/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
)

var (
	flagTargets = flag.String("targets", "host|cpu", "List (|-separated) of targets to test. E.g. \"host|cpu|cuda:0\"")
	flagSeed    = flag.Uint64("seed", 42, "Seed used to generate the inputs of the cases.")
)

// guards hold one capability check per target, evaluated once for the whole suite.
var guards = make(map[backends.Target]*optest.Guard)

func getTargets() []backends.Target {
	var targets []backends.Target
	for _, name := range strings.Split(*flagTargets, "|") {
		if name == "" {
			continue
		}
		targets = append(targets, must.M1(backends.ParseTarget(name)))
	}
	if len(targets) == 0 {
		panic("no targets defined with -targets")
	}
	return targets
}

// harnessIterator yields a Harness per target, each with its own subtest. Subtests of targets not available are
// skipped.
func harnessIterator(t *testing.T) iter.Seq2[*testing.T, *optest.Harness] {
	return func(yield func(*testing.T, *optest.Harness) bool) {
		done := false
		for _, target := range getTargets() {
			guard, found := guards[target]
			if !found {
				guard = optest.TargetGuard(target)
				guards[target] = guard
			}
			t.Run(target.String(), func(t *testing.T) {
				guard.Skip(t)
				h := must.M1(optest.NewHarness(target, *flagSeed))
				done = !yield(t, h)
			})
			if done {
				return
			}
		}
	}
}

// withLines prefix each line of text with a "%04d: " of the line number.
func withLines(text []byte) string {
	var sb strings.Builder
	for i, line := range strings.Split(string(text), "\n") {
		fmt.Fprintf(&sb, "%04d: %s\n", i+1, line)
	}
	return sb.String()
}

func TestExpandDims(t *testing.T) {
	for t, h := range harnessIterator(t) {
		optest.Run(t, h, opdefs.ExpandDims, opdefs.ExpandDimsCases)
	}
}

// TestForwardNotAffectedByBackward checks that two separately built forward programs produce the same results,
// whether or not a gradient program ran in between.
func TestForwardNotAffectedByBackward(t *testing.T) {
	def := opdefs.ExpandDimsCases[1]
	for t, h := range harnessIterator(t) {
		c := must.M1(def.Define(optest.CaseRand(h.Seed, def.Name)))
		first := must.M1(optest.RunCandidate(h, opdefs.ExpandDims, c))
		second := must.M1(optest.RunCandidate(h, opdefs.ExpandDims, c))
		require.NoError(t, optest.Check(first.Outputs, second.Outputs, optest.Tolerance{}).Err())

		gradOutputs := must.M1(optest.RandomLike(optest.CaseRand(h.Seed, "grad_outputs"), first.Outputs))
		grads := must.M1(optest.RunCandidateGrads(h, opdefs.ExpandDims, c, gradOutputs))
		require.NoError(t, optest.Check(first.Outputs, grads.Outputs, optest.Tolerance{}).Err())

		third := must.M1(optest.RunCandidate(h, opdefs.ExpandDims, c))
		require.NoError(t, optest.Check(first.Outputs, third.Outputs, optest.Tolerance{}).Err())

		reference := must.M1(optest.RunReference(opdefs.ExpandDims, c))
		require.NoError(t, optest.Check(reference.Outputs, third.Outputs, c.Tolerance(dtypes.Float32)).Err())
	}
}

// TestLayoutOps compares the ops used by gradients and constants on the target with the host interpreter.
func TestLayoutOps(t *testing.T) {
	hostExecutor := must.M1(backends.New(backends.HostTarget()))
	for t, h := range harnessIterator(t) {
		b := netbuilder.New("layout_ops")
		fn := b.Main()
		x := b.CreateInput(dtypes.Float32, []int{2, 3}, "x")
		transposed := must.M1(netbuilder.Transpose(x, 1, 0))
		iota := must.M1(fn.Iota(shapes.Make(dtypes.Float32, 3, 2), 0))
		sum := must.M1(netbuilder.Add(transposed, iota))
		limits := must.M1(fn.ConstantFromFlatAndDimensions([]float32{float32(math.Inf(-1)), float32(math.Inf(1))}, 2))
		broadcast := must.M1(netbuilder.BroadcastInDim(limits, shapes.Make(dtypes.Float32, 2, 3), []int{0}))
		negated := must.M1(netbuilder.Negate(must.M1(netbuilder.Subtract(x, broadcast))))
		program := must.M1(b.Build())
		code := must.M1(program.StableHLO(sum, negated))

		feed := must.M1(tensors.FromAnyValue([][]float32{{1, -2, 3}, {-4, 5, -6}}))
		inputs := []*netbuilder.Value{x}
		feeds := []*tensors.Tensor{feed}
		fetches := []*netbuilder.Value{sum, negated}
		want := must.M1(hostExecutor.Run(backends.HostTarget(), program, inputs, feeds, fetches))
		got, err := h.Executor.Run(h.Target, program, inputs, feeds, fetches)
		require.NoErrorf(t, err, "failed to run program:\n%s", withLines(code))
		require.NoErrorf(t, optest.Check(want, got, optest.Tolerance{}).Err(), "program:\n%s", withLines(code))
	}
}
