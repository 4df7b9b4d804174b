//go:build linux && amd64 && !noxla

package _default

import (
	_ "github.com/gomlx/netbuilder/backends/xla"
)
