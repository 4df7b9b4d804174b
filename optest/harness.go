package optest

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/gomlx/netbuilder"
	"github.com/gomlx/netbuilder/backends"
	"github.com/gomlx/netbuilder/eager"
	"github.com/gomlx/netbuilder/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Op is the operation under test, implemented both for the eager reference backend and for the netbuilder
// (compiled) backend.
type Op[P any] struct {
	Name string

	// Reference executes the operation eagerly on the inputs.
	Reference func(inputs []*eager.Tensor, params P) ([]*eager.Tensor, error)

	// Candidate adds the operation to the builder, taking the inputs declared on it.
	Candidate func(b *netbuilder.Builder, inputs []*netbuilder.Value, params P) ([]*netbuilder.Value, error)
}

// Result of running a case on one of the backends.
type Result struct {
	Outputs []*tensors.Tensor

	// Grads holds the gradient with respect to each input, when gradients were computed.
	Grads []*tensors.Tensor
}

// Harness holds the dependencies used to run the candidate programs: the executor and the target it runs on.
type Harness struct {
	Executor backends.Executor
	Target   backends.Target

	// Seed used to generate the inputs of each case. Cases get independent random streams derived from it.
	Seed uint64
}

// NewHarness returns a Harness with the executor registered for the target.
func NewHarness(target backends.Target, seed uint64) (*Harness, error) {
	executor, err := backends.New(target)
	if err != nil {
		return nil, err
	}
	return &Harness{Executor: executor, Target: target, Seed: seed}, nil
}

// programName for the program staged for the case.
func programName[P any](op Op[P], c *Case[P], stage string) string {
	return netbuilder.NormalizeIdentifier(fmt.Sprintf("%s_%s_%s", op.Name, c.Name, stage))
}

// RunReference executes the case on the eager reference backend, with gradient tracking disabled.
func RunReference[P any](op Op[P], c *Case[P]) (*Result, error) {
	inputs := make([]*eager.Tensor, len(c.Inputs))
	for ii, input := range c.Inputs {
		inputs[ii] = eager.ToTensor(input, true)
	}
	outputs, err := op.Reference(inputs, c.Params)
	if err != nil {
		return nil, errors.WithMessagef(err, "reference %s(%s)", op.Name, c.Name)
	}
	if len(outputs) == 0 {
		return nil, errors.Errorf("reference %s(%s) returned no outputs", op.Name, c.Name)
	}
	result := &Result{Outputs: make([]*tensors.Tensor, len(outputs))}
	for ii, output := range outputs {
		result.Outputs[ii] = output.Value()
	}
	return result, nil
}

// declareInputs declares one program input per case input.
func declareInputs[P any](b *netbuilder.Builder, c *Case[P]) []*netbuilder.Value {
	inputs := make([]*netbuilder.Value, len(c.Specs))
	for ii, spec := range c.Specs {
		inputs[ii] = b.CreateInput(spec.DType, spec.Dimensions, spec.Name)
	}
	return inputs
}

// runCandidate builds the program and executes it on the harness target.
func (h *Harness) runCandidate(name string, b *netbuilder.Builder, inputs []*netbuilder.Value, feeds []*tensors.Tensor,
	fetches []*netbuilder.Value) ([]*tensors.Tensor, error) {
	program, err := b.Build()
	if err != nil {
		return nil, errors.WithMessagef(err, "building %s", name)
	}
	klog.V(1).Infof("running program %q on %s with executor %q", program.Name(), h.Target, h.Executor.Name())
	outputs, err := h.Executor.Run(h.Target, program, inputs, feeds, fetches)
	if err != nil {
		return nil, errors.WithMessagef(err, "executing %s on %s", name, h.Target)
	}
	return outputs, nil
}

// RunCandidate executes the case with the compiled backend: it declares the inputs on a new builder, adds the
// operation, builds the program and runs it on the harness target.
func RunCandidate[P any](h *Harness, op Op[P], c *Case[P]) (*Result, error) {
	b := netbuilder.New(programName(op, c, "forward"))
	inputs := declareInputs(b, c)
	outputs, err := op.Candidate(b, inputs, c.Params)
	if err != nil {
		return nil, errors.WithMessagef(err, "candidate %s(%s)", op.Name, c.Name)
	}
	if len(outputs) == 0 {
		return nil, errors.Errorf("candidate %s(%s) returned no outputs", op.Name, c.Name)
	}
	values, err := h.runCandidate(fmt.Sprintf("candidate %s(%s)", op.Name, c.Name), b, inputs, c.Inputs, outputs)
	if err != nil {
		return nil, err
	}
	return &Result{Outputs: values}, nil
}

// RunReferenceGrads executes the case on the eager reference backend with gradient tracking enabled, and computes
// the gradients of the outputs (weighted by gradOutputs) with respect to each input.
//
// It uses fresh eager tensors, so it shares no state with RunReference.
func RunReferenceGrads[P any](op Op[P], c *Case[P], gradOutputs []*tensors.Tensor) (*Result, error) {
	inputs := make([]*eager.Tensor, len(c.Inputs))
	for ii, input := range c.Inputs {
		inputs[ii] = eager.ToTensor(input, false)
	}
	outputs, err := op.Reference(inputs, c.Params)
	if err != nil {
		return nil, errors.WithMessagef(err, "reference %s(%s) with gradients", op.Name, c.Name)
	}
	if len(outputs) != len(gradOutputs) {
		return nil, errors.Errorf("reference %s(%s) returned %d outputs, but %d output gradients were given",
			op.Name, c.Name, len(outputs), len(gradOutputs))
	}
	result := &Result{
		Outputs: make([]*tensors.Tensor, len(outputs)),
		Grads:   make([]*tensors.Tensor, len(inputs)),
	}
	for ii, output := range outputs {
		result.Outputs[ii] = output.Value()
		if output.StopGradient {
			// Output doesn't depend on any input.
			continue
		}
		if err := eager.Backward(output, gradOutputs[ii]); err != nil {
			return nil, errors.WithMessagef(err, "reference %s(%s) backward of output #%d", op.Name, c.Name, ii)
		}
	}
	for ii, input := range inputs {
		result.Grads[ii] = input.Grad()
		if result.Grads[ii] == nil {
			result.Grads[ii] = tensors.FromShape(input.Shape())
		}
	}
	return result, nil
}

// RunCandidateGrads executes the case with the compiled backend, computing the gradients of the outputs (weighted
// by gradOutputs) with respect to each input.
//
// The forward operations are replayed on a new builder, followed by the gradient operations (see netbuilder.VJP),
// and built into its own program: no program instance is shared with RunCandidate.
func RunCandidateGrads[P any](h *Harness, op Op[P], c *Case[P], gradOutputs []*tensors.Tensor) (*Result, error) {
	name := fmt.Sprintf("candidate %s(%s) with gradients", op.Name, c.Name)
	b := netbuilder.New(programName(op, c, "backward"))
	inputs := declareInputs(b, c)
	outputs, err := op.Candidate(b, inputs, c.Params)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s", name)
	}
	if len(outputs) != len(gradOutputs) {
		return nil, errors.Errorf("%s returned %d outputs, but %d output gradients were given",
			name, len(outputs), len(gradOutputs))
	}
	gradValues := make([]*netbuilder.Value, len(gradOutputs))
	for ii, gradOutput := range gradOutputs {
		shape := gradOutput.Shape()
		gradValues[ii] = b.CreateInput(shape.DType, shape.Dimensions, fmt.Sprintf("grad_output_%d", ii))
	}
	grads, err := netbuilder.VJP(outputs, gradValues, inputs)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s", name)
	}

	values, err := h.runCandidate(name, b, slices.Concat(inputs, gradValues), slices.Concat(c.Inputs, gradOutputs),
		slices.Concat(outputs, grads))
	if err != nil {
		return nil, err
	}
	return &Result{Outputs: values[:len(outputs)], Grads: values[len(outputs):]}, nil
}

// RandomLike returns random tensors shaped like the given ones, to be used as the gradients of outputs.
func RandomLike(rng *rand.Rand, like []*tensors.Tensor) ([]*tensors.Tensor, error) {
	randoms := make([]*tensors.Tensor, len(like))
	for ii, t := range like {
		var err error
		randoms[ii], err = randomInput(rng, t.Shape())
		if err != nil {
			return nil, err
		}
	}
	return randoms, nil
}
