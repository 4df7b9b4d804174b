// Package backends defines the Executor API used to run built netbuilder programs on a Target, and a registry of
// the available executors.
//
// Executors register themselves for the platforms they serve during initialization: include them with
//
//	import _ "github.com/gomlx/netbuilder/backends/default"
//
// Use Probe to check whether a target can be used before running anything on it.
package backends

import (
	"slices"
	"sync"

	"github.com/gomlx/netbuilder"
	"github.com/gomlx/netbuilder/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Executor runs built programs on the targets it serves.
//
// Executors are created once per process (see New) and must be safe for concurrent use.
type Executor interface {
	// Name of the executor.
	Name() string

	// Available returns whether the executor can run programs on the target.
	Available(target Target) bool

	// Run executes the program on the target, binding feeds[i] to inputs[i], and returns the values of the fetches
	// copied to the host, in the same order.
	//
	// All the program inputs must be fed, see OrderFeeds.
	Run(target Target, program *netbuilder.Program, inputs []*netbuilder.Value, feeds []*tensors.Tensor,
		fetches []*netbuilder.Value) ([]*tensors.Tensor, error)
}

// Constructor creates the executor for a platform.
type Constructor func() (Executor, error)

var (
	muRegistry             sync.Mutex
	registeredConstructors = make(map[string]Constructor)
	executors              = make(map[string]Executor)
)

// Register the constructor of the executor for a platform. Usually called during initialization.
func Register(platform string, constructor Constructor) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	registeredConstructors[platform] = constructor
}

// Platforms returns the platforms with a registered executor, sorted.
func Platforms() []string {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	platforms := make([]string, 0, len(registeredConstructors))
	for platform := range registeredConstructors {
		platforms = append(platforms, platform)
	}
	slices.Sort(platforms)
	return platforms
}

// New returns the executor serving the target's platform.
//
// The executor is created on the first call and reused afterward.
func New(target Target) (Executor, error) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	if executor, found := executors[target.Platform]; found {
		return executor, nil
	}
	constructor, found := registeredConstructors[target.Platform]
	if !found {
		if len(registeredConstructors) == 0 {
			return nil, errors.Errorf("no registered executors -- maybe import the default ones with "+
				"import _ \"github.com/gomlx/netbuilder/backends/default\"? Target was %q", target)
		}
		return nil, errors.Errorf("no executor registered for platform %q (target %q)", target.Platform, target)
	}
	executor, err := constructor()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create executor for target %q", target)
	}
	klog.V(1).Infof("created executor %q for platform %q", executor.Name(), target.Platform)
	executors[target.Platform] = executor
	return executor, nil
}

// Probe returns whether programs can be executed on the target.
func Probe(target Target) bool {
	executor, err := New(target)
	if err != nil {
		klog.V(1).Infof("target %q not available: %v", target, err)
		return false
	}
	if !executor.Available(target) {
		klog.V(1).Infof("target %q not available in executor %q", target, executor.Name())
		return false
	}
	return true
}

// OrderFeeds validates the feeds for the program and returns them in the order of the program inputs
// (netbuilder.Program.Inputs).
//
// Every program input must be fed exactly once, with a tensor of the same shape.
func OrderFeeds(program *netbuilder.Program, inputs []*netbuilder.Value, feeds []*tensors.Tensor) ([]*tensors.Tensor, error) {
	if len(inputs) != len(feeds) {
		return nil, errors.Errorf("program %q: %d inputs given but %d feeds", program.Name(), len(inputs), len(feeds))
	}
	programInputs := program.Inputs()
	ordered := make([]*tensors.Tensor, len(programInputs))
	for ii, input := range inputs {
		idx := slices.Index(programInputs, input)
		if idx == -1 {
			return nil, errors.Errorf("program %q: value %s is not one of its inputs", program.Name(), input)
		}
		if ordered[idx] != nil {
			return nil, errors.Errorf("program %q: input %s fed more than once", program.Name(), input)
		}
		feed := feeds[ii]
		if feed == nil {
			return nil, errors.Errorf("program %q: feed for input %s is nil", program.Name(), input)
		}
		if !feed.Shape().Equal(input.Shape()) {
			return nil, errors.Errorf("program %q: input %s has shape %s, but it was fed a tensor shaped %s",
				program.Name(), input, input.Shape(), feed.Shape())
		}
		ordered[idx] = feed
	}
	for idx, feed := range ordered {
		if feed == nil {
			return nil, errors.Errorf("program %q: input %s was not fed", program.Name(), programInputs[idx])
		}
	}
	return ordered, nil
}
