// Package xla implements an executor that compiles netbuilder programs to StableHLO and runs them with
// XLA/PJRT (https://openxla.org/), using github.com/gomlx/gopjrt.
//
// It serves the "cpu" and "cuda" platforms, as long as the corresponding PJRT plugins are installed.
// Simply import it with import _ "github.com/gomlx/netbuilder/backends/xla" to register it.
package xla

import (
	"slices"
	"sync"

	"github.com/gomlx/gopjrt/pjrt"
	"github.com/gomlx/netbuilder"
	"github.com/gomlx/netbuilder/backends"
	"github.com/gomlx/netbuilder/internal/utils"
	"github.com/gomlx/netbuilder/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ExecutorName is the name of the PJRT executor.
const ExecutorName = "xla"

var (
	// PlatformPlugins maps the target platforms to the PJRT plugin that serves them.
	PlatformPlugins = map[string]string{
		backends.CPUPlatform:  "cpu",
		backends.CUDAPlatform: "cuda",
	}

	// DefaultPlugins is the list of plugins listed first by AvailablePlugins, in preference order.
	DefaultPlugins = []string{"cuda", "cpu"}
)

// Executor runs programs on PJRT clients, created once per plugin and reused.
type Executor struct {
	mu      sync.Mutex
	clients map[string]*pjrt.Client
}

// Compile-time check.
var _ backends.Executor = (*Executor)(nil)

// New returns a new Executor. Clients are created on demand.
func New() *Executor {
	return &Executor{clients: make(map[string]*pjrt.Client)}
}

// defaultExecutor is shared by all the registered platforms.
var defaultExecutor = sync.OnceValue(New)

func init() {
	for platform := range PlatformPlugins {
		backends.Register(platform, func() (backends.Executor, error) {
			return defaultExecutor(), nil
		})
	}
}

// AvailablePlugins lists the PJRT plugins found, DefaultPlugins first. The result is cached.
//
// See pjrt.AvailablePlugins for how plugins are searched.
var AvailablePlugins = sync.OnceValue(func() []string {
	pluginNames := utils.MakeSet[string]()
	for name := range pjrt.AvailablePlugins() {
		pluginNames.Insert(name)
	}
	available := make([]string, 0, len(pluginNames))
	for _, name := range DefaultPlugins {
		if pluginNames.Has(name) {
			available = append(available, name)
			delete(pluginNames, name)
		}
	}
	others := make([]string, 0, len(pluginNames))
	for name := range pluginNames {
		others = append(others, name)
	}
	slices.Sort(others)
	return append(available, others...)
})

// Name implements backends.Executor.
func (e *Executor) Name() string { return ExecutorName }

// pluginFor returns the plugin serving the target's platform.
func pluginFor(target backends.Target) (string, error) {
	pluginName, found := PlatformPlugins[target.Platform]
	if !found {
		return "", errors.Errorf("executor %q doesn't serve platform %q", ExecutorName, target.Platform)
	}
	if !slices.Contains(AvailablePlugins(), pluginName) {
		return "", errors.Errorf("PJRT plugin %q for target %q not found, available plugins: %q -- set "+
			"PJRT_PLUGIN_LIBRARY_PATH to the directory where plugins are installed", pluginName, target, AvailablePlugins())
	}
	return pluginName, nil
}

// client returns the client for the plugin, creating it on the first call.
func (e *Executor) client(pluginName string) (*pjrt.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if client, found := e.clients[pluginName]; found {
		return client, nil
	}
	plugin, err := pjrt.GetPlugin(pluginName)
	if err != nil {
		return nil, errors.WithMessagef(err, "executor %q: failed to load plugin %q", ExecutorName, pluginName)
	}
	client, err := plugin.NewClient(nil)
	if err != nil {
		return nil, errors.WithMessagef(err, "executor %q: failed to create client for plugin %q", ExecutorName, pluginName)
	}
	klog.V(1).Infof("executor %q: created client for plugin %q", ExecutorName, pluginName)
	e.clients[pluginName] = client
	return client, nil
}

// Available implements backends.Executor: the plugin must be installed, and the device must exist.
func (e *Executor) Available(target backends.Target) bool {
	pluginName, err := pluginFor(target)
	if err != nil {
		klog.V(1).Info(err)
		return false
	}
	client, err := e.client(pluginName)
	if err != nil {
		klog.V(1).Info(err)
		return false
	}
	return target.Device >= 0 && target.Device < len(client.AddressableDevices())
}

// Run implements backends.Executor.
//
// The program is compiled for each call, and all the buffers are freed before returning.
func (e *Executor) Run(target backends.Target, program *netbuilder.Program, inputs []*netbuilder.Value,
	feeds []*tensors.Tensor, fetches []*netbuilder.Value) ([]*tensors.Tensor, error) {
	pluginName, err := pluginFor(target)
	if err != nil {
		return nil, err
	}
	ordered, err := backends.OrderFeeds(program, inputs, feeds)
	if err != nil {
		return nil, err
	}
	code, err := program.StableHLO(fetches...)
	if err != nil {
		return nil, err
	}
	if klog.V(2).Enabled() {
		klog.Infof("StableHLO program:\n%s\n", code)
	}
	client, err := e.client(pluginName)
	if err != nil {
		return nil, err
	}

	exec, err := client.Compile().WithStableHLO(code).Done()
	if err != nil {
		return nil, errors.WithMessagef(err, "executor %q: failed to compile program %q", ExecutorName, program.Name())
	}
	defer func() {
		if err := exec.Destroy(); err != nil {
			klog.Warningf("Error while destroying executable for program %q: %+v", program.Name(), err)
		}
	}()

	buffers := make([]*pjrt.Buffer, 0, len(ordered))
	defer func() { destroyBuffers(buffers) }()
	for ii, feed := range ordered {
		buffer, err := client.BufferFromHost().
			FromFlatDataWithDimensions(feed.Flat(), feed.Shape().Dimensions).
			ToDeviceNum(target.Device).
			Done()
		if err != nil {
			return nil, errors.WithMessagef(err, "executor %q: failed to transfer input #%d of program %q to %q",
				ExecutorName, ii, program.Name(), target)
		}
		buffers = append(buffers, buffer)
	}

	outputBuffers, err := exec.Execute(buffers...).DonateNone().OnDevicesByNum(target.Device).Done()
	if err != nil {
		return nil, errors.WithMessagef(err, "executor %q: failed to execute program %q on %q", ExecutorName, program.Name(), target)
	}
	defer destroyBuffers(outputBuffers)
	if len(outputBuffers) != len(fetches) {
		return nil, errors.Errorf("executor %q: program %q returned %d outputs, %d were expected",
			ExecutorName, program.Name(), len(outputBuffers), len(fetches))
	}
	outputs := make([]*tensors.Tensor, len(outputBuffers))
	for ii, buffer := range outputBuffers {
		flat, dims, err := buffer.ToFlatDataAndDimensions()
		if err != nil {
			return nil, errors.WithMessagef(err, "executor %q: failed to transfer output #%d of program %q",
				ExecutorName, ii, program.Name())
		}
		outputs[ii], err = tensors.FromFlatDataAndDimensions(flat, dims...)
		if err != nil {
			return nil, err
		}
	}
	return outputs, nil
}

func destroyBuffers(buffers []*pjrt.Buffer) {
	for _, buffer := range buffers {
		if err := buffer.Destroy(); err != nil {
			klog.Warningf("Error while destroying PJRT buffer: %+v", err)
		}
	}
}

// Close destroys the clients created so far. The Executor can still be used afterward: new clients are created on
// demand.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for name, client := range e.clients {
		if err := client.Destroy(); err != nil && firstErr == nil {
			firstErr = errors.WithMessagef(err, "executor %q: failed to destroy client for plugin %q", ExecutorName, name)
		}
		delete(e.clients, name)
	}
	return firstErr
}
