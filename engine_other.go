//go:build !windows

package cim

import (
	"github.com/mwantia/cim/engine"
	"github.com/mwantia/cim/engine/ephemeral"
)

// defaultEngine returns the shared in-memory engine on non-Windows hosts,
// where no native image-format engine exists. Sessions created with default
// options therefore observe each other's images.
func defaultEngine() engine.Engine {
	return ephemeral.Default()
}
