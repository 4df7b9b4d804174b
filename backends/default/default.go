// Package _default includes the default executors, namely the host interpreter and, on supported platforms, XLA/PJRT.
//
// Simply import it with import _ "github.com/gomlx/netbuilder/backends/default" to make them available.
package _default

import (
	_ "github.com/gomlx/netbuilder/backends/host"
)
