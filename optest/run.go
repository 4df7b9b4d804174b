package optest

import (
	"hash/fnv"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

// Status of a case run.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	StatusSkipped
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Stage of a case run, in the order they are executed.
type Stage int

const (
	StageDefine Stage = iota
	StageReference
	StageCandidate
	StageCheck
	StageReferenceGrads
	StageCandidateGrads
	StageCheckGrads
	StageDone
)

var stageNames = []string{"define", "reference", "candidate", "check", "reference-grads", "candidate-grads",
	"check-grads", "done"}

// String implements fmt.Stringer.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Report of running one case.
type Report struct {
	Case   string
	Status Status

	// Stage reached: the one that failed, or StageDone.
	Stage Stage
	Err   error

	// Outputs is the comparison of the outputs, and Grads of the gradients, if they were checked.
	Outputs *Outcome
	Grads   *Outcome

	InputBytes, OutputBytes uintptr
	Elapsed                 time.Duration
}

func (r *Report) fail(stage Stage, err error) Report {
	r.Status = StatusFailed
	r.Stage = stage
	r.Err = errors.WithMessagef(err, "case %q failed at stage %s", r.Case, stage)
	return *r
}

// CaseRand returns the random number generator for the named case: it depends only on the seed and the name, so
// each case is reproducible independently of which other cases run.
func CaseRand(seed uint64, name string) *rand.Rand {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(name))
	return rand.New(rand.NewPCG(seed, hasher.Sum64()))
}

// RunCase runs the case defined by def with the stages: define, reference, candidate and check. If def.CheckGrads
// is set, the gradients are then computed in programs of their own and compared.
//
// Failures of any stage are reported with StatusFailed and stop the case.
func RunCase[P any](h *Harness, op Op[P], def CaseDef[P], rng *rand.Rand) Report {
	start := time.Now()
	report := runCase(h, op, def, rng)
	report.Elapsed = time.Since(start)
	return report
}

func runCase[P any](h *Harness, op Op[P], def CaseDef[P], rng *rand.Rand) Report {
	report := Report{Case: def.Name, Stage: StageDefine}

	c, err := def.Define(rng)
	if err != nil {
		return report.fail(StageDefine, err)
	}
	report.InputBytes = c.InputBytes()
	klog.V(1).Infof("case %q: running %s on %s", c.Name, op.Name, h.Target)

	want, err := RunReference(op, c)
	if err != nil {
		return report.fail(StageReference, err)
	}
	got, err := RunCandidate(h, op, c)
	if err != nil {
		return report.fail(StageCandidate, err)
	}
	for _, output := range got.Outputs {
		report.OutputBytes += output.Memory()
	}
	outcome := Check(want.Outputs, got.Outputs, c.Tolerance(want.Outputs[0].DType()))
	report.Outputs = &outcome
	if err := outcome.Err(); err != nil {
		return report.fail(StageCheck, err)
	}

	if c.CheckGrads {
		gradOutputs, err := RandomLike(rng, want.Outputs)
		if err != nil {
			return report.fail(StageReferenceGrads, err)
		}
		wantGrads, err := RunReferenceGrads(op, c, gradOutputs)
		if err != nil {
			return report.fail(StageReferenceGrads, err)
		}
		gotGrads, err := RunCandidateGrads(h, op, c, gradOutputs)
		if err != nil {
			return report.fail(StageCandidateGrads, err)
		}
		gradsOutcome := Check(wantGrads.Grads, gotGrads.Grads, c.Tolerance(wantGrads.Grads[0].DType()))
		report.Grads = &gradsOutcome
		if err := gradsOutcome.Err(); err != nil {
			return report.fail(StageCheckGrads, err)
		}
	}
	report.Stage = StageDone
	report.Status = StatusPassed
	return report
}

// Run runs each case in its own subtest, named after the case. Cases are independent: a failing case doesn't
// affect the others.
//
// Each case uses a random number generator derived from h.Seed and its name, see CaseRand.
func Run[P any](t *testing.T, h *Harness, op Op[P], defs []CaseDef[P]) {
	t.Helper()
	for _, def := range defs {
		t.Run(def.Name, func(t *testing.T) {
			report := RunCase(h, op, def, CaseRand(h.Seed, def.Name))
			require.NoError(t, report.Err)
			if report.Grads != nil {
				t.Logf("%s: outputs %s; gradients %s", def.Name, report.Outputs, report.Grads)
			} else {
				t.Logf("%s: outputs %s", def.Name, report.Outputs)
			}
		})
	}
}
