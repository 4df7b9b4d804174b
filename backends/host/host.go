// Package host implements an executor that interprets netbuilder programs in-process, on the host.
//
// It is always available for the "host" target and needs no external libraries, which makes it the default
// executor for tests. Simply import it with import _ "github.com/gomlx/netbuilder/backends/host" to register it.
package host

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/netbuilder"
	"github.com/gomlx/netbuilder/backends"
	"github.com/gomlx/netbuilder/internal/optypes"
	"github.com/gomlx/netbuilder/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ExecutorName is the name of the host interpreter.
const ExecutorName = "host"

// Executor interprets programs statement by statement. It is stateless and safe for concurrent use.
type Executor struct{}

// Compile-time check.
var _ backends.Executor = (*Executor)(nil)

// New returns a new host Executor.
func New() *Executor {
	return &Executor{}
}

func init() {
	backends.Register(backends.HostPlatform, func() (backends.Executor, error) {
		return New(), nil
	})
}

// Name implements backends.Executor.
func (e *Executor) Name() string { return ExecutorName }

// Available implements backends.Executor: only the device 0 of the host platform is served.
func (e *Executor) Available(target backends.Target) bool {
	return target.Platform == backends.HostPlatform && target.Device == 0
}

// statementExecutor computes the output of a statement given its operands.
// Kernels panic (with exceptions.Panicf) on errors, which Run converts back to an error.
type statementExecutor func(stmt *netbuilder.Statement, operands []*tensors.Tensor) *tensors.Tensor

// statementExecutors is populated during initialization by the files implementing the kernels.
var statementExecutors = make(map[optypes.OpType]statementExecutor)

// Run implements backends.Executor.
//
// Only the statements needed by the fetches are executed.
func (e *Executor) Run(target backends.Target, program *netbuilder.Program, inputs []*netbuilder.Value,
	feeds []*tensors.Tensor, fetches []*netbuilder.Value) ([]*tensors.Tensor, error) {
	if !e.Available(target) {
		return nil, errors.Errorf("executor %q cannot run on target %q", ExecutorName, target)
	}
	ordered, err := backends.OrderFeeds(program, inputs, feeds)
	if err != nil {
		return nil, err
	}
	schedule, err := program.Schedule(fetches...)
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("host: running program %q with %d statements", program.Name(), len(schedule))

	values := make(map[*netbuilder.Value]*tensors.Tensor, len(ordered)+len(schedule))
	for ii, input := range program.Inputs() {
		values[input] = ordered[ii]
	}
	err = exceptions.TryCatch[error](func() {
		for _, stmt := range schedule {
			executor, found := statementExecutors[stmt.OpType]
			if !found {
				exceptions.Panicf("host executor doesn't support operation %s", stmt.OpType)
			}
			operands := make([]*tensors.Tensor, len(stmt.Inputs))
			for ii, input := range stmt.Inputs {
				operands[ii] = values[input]
			}
			output := executor(stmt, operands)
			if !output.Shape().Equal(stmt.Outputs[0].Shape()) {
				exceptions.Panicf("host executor computed shape %s for %s, but %s was expected",
					output.Shape(), stmt.OpType, stmt.Outputs[0].Shape())
			}
			values[stmt.Outputs[0]] = output
		}
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "program %q on target %q", program.Name(), target)
	}
	outputs := make([]*tensors.Tensor, len(fetches))
	for ii, fetch := range fetches {
		outputs[ii] = values[fetch]
		if slices.Contains(program.Inputs(), fetch) {
			// Fetched inputs are returned as copies: callers own the outputs.
			outputs[ii] = outputs[ii].Clone()
		}
	}
	return outputs, nil
}
