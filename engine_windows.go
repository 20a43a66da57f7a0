//go:build windows

package cim

import (
	"github.com/mwantia/cim/engine"
	"github.com/mwantia/cim/engine/wincim"
)

// defaultEngine returns the native CimFS engine on Windows hosts.
func defaultEngine() engine.Engine {
	return wincim.New()
}
