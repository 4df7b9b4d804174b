package eager

import (
	"cmp"
	"slices"

	"github.com/gomlx/netbuilder/tensors"
	"github.com/pkg/errors"
)

// Backward computes the gradients of out with respect to all the leaf tensors it depends on that track
// gradients, and accumulates them into those tensors (see Tensor.Grad).
//
// gradOut is the gradient of out, the "vector" of the vector-Jacobian product: it must have the same shape as out.
// Calling Backward on a tensor produced without gradient tracking is an error.
func Backward(out *Tensor, gradOut *tensors.Tensor) error {
	if out.StopGradient {
		return errors.New("eager.Backward: tensor was produced without gradient tracking")
	}
	if !out.Shape().Equal(gradOut.Shape()) {
		return errors.Errorf("eager.Backward: gradient shape %s doesn't match the tensor shape %s", gradOut.Shape(), out.Shape())
	}

	// Collect the graph reachable from out through tracked tensors.
	var nodes []*Tensor
	visited := make(map[*Tensor]bool)
	var visit func(t *Tensor)
	visit = func(t *Tensor) {
		if visited[t] || t.StopGradient {
			return
		}
		visited[t] = true
		nodes = append(nodes, t)
		if t.op != nil {
			for _, input := range t.op.inputs() {
				visit(input)
			}
		}
	}
	visit(out)

	// Outputs are always created after their inputs: reverse creation order is a valid reverse topological order.
	slices.SortFunc(nodes, func(a, b *Tensor) int { return cmp.Compare(b.id, a.id) })

	grads := map[*Tensor]*tensors.Tensor{out: gradOut}
	for _, t := range nodes {
		grad, found := grads[t]
		if !found {
			continue
		}
		if t.op == nil {
			if t.grad == nil {
				t.grad = grad
			} else {
				sum, err := addValues(t.grad, grad)
				if err != nil {
					return err
				}
				t.grad = sum
			}
			continue
		}
		inputGrads, err := t.op.backward(grad)
		if err != nil {
			return err
		}
		for ii, input := range t.op.inputs() {
			if input.StopGradient {
				continue
			}
			if previous, found := grads[input]; found {
				sum, err := addValues(previous, inputGrads[ii])
				if err != nil {
					return err
				}
				grads[input] = sum
			} else {
				grads[input] = inputGrads[ii]
			}
		}
	}
	return nil
}
