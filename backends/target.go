package backends

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Platforms known to the targets.
const (
	HostPlatform = "host"
	CPUPlatform  = "cpu"
	CUDAPlatform = "cuda"
)

// Target identifies where a program is executed: a platform and a device number within it.
type Target struct {
	Platform string
	Device   int
}

// HostTarget is the in-process interpreter, always available.
func HostTarget() Target { return Target{Platform: HostPlatform} }

// CPUTarget is the PJRT CPU plugin.
func CPUTarget() Target { return Target{Platform: CPUPlatform} }

// GPUTarget is the first device of the PJRT CUDA plugin.
func GPUTarget() Target { return Target{Platform: CUDAPlatform} }

// ParseTarget parses a target in the format "<platform>[:<device>]", e.g.: "host", "cpu" or "cuda:1".
// The platform "gpu" is an alias to "cuda".
func ParseTarget(s string) (Target, error) {
	platform, deviceStr, hasDevice := strings.Cut(strings.TrimSpace(s), ":")
	platform = strings.ToLower(platform)
	if platform == "gpu" {
		platform = CUDAPlatform
	}
	if platform == "" {
		return Target{}, errors.Errorf("invalid target %q: missing platform", s)
	}
	target := Target{Platform: platform}
	if hasDevice {
		device, err := strconv.Atoi(deviceStr)
		if err != nil || device < 0 {
			return Target{}, errors.Errorf("invalid device number in target %q", s)
		}
		target.Device = device
	}
	return target, nil
}

// String implements fmt.Stringer. It is the inverse of ParseTarget.
func (t Target) String() string {
	if t.Device == 0 {
		return t.Platform
	}
	return fmt.Sprintf("%s:%d", t.Platform, t.Device)
}
