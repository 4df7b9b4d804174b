package optest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/gomlx/netbuilder/backends"
	"k8s.io/klog/v2"
)

// Guard is a capability check evaluated once, the first time it is needed, and reused by all the cases of a suite.
//
// If the probe fails, the cases are skipped rather than failed.
type Guard struct {
	probe  func() bool
	reason string

	once sync.Once
	met  bool
}

// NewGuard creates a Guard for the probe. The reason is reported when the probe fails.
func NewGuard(probe func() bool, reason string) *Guard {
	return &Guard{probe: probe, reason: reason}
}

// TargetGuard returns a Guard that checks that the target can be used, see backends.Probe.
func TargetGuard(target backends.Target) *Guard {
	return NewGuard(func() bool { return backends.Probe(target) }, fmt.Sprintf("target %q is not available", target))
}

// Met returns whether the probe succeeded. The probe is only called the first time.
func (g *Guard) Met() bool {
	g.once.Do(func() {
		g.met = g.probe()
		if !g.met {
			klog.V(1).Infof("capability check failed: %s", g.reason)
		}
	})
	return g.met
}

// Skip calls tb.Skip if the probe failed, so no assertions of the test are executed.
func (g *Guard) Skip(tb testing.TB) {
	tb.Helper()
	if !g.Met() {
		tb.Skip(g.reason)
	}
}

// Status returns StatusPassed if the probe succeeded or StatusSkipped otherwise.
func (g *Guard) Status() Status {
	if g.Met() {
		return StatusPassed
	}
	return StatusSkipped
}

// Reason returned when the probe fails.
func (g *Guard) Reason() string { return g.reason }
