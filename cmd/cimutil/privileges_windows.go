//go:build windows

package main

import "github.com/mwantia/cim/engine/wincim"

func enableBuildPrivileges() error {
	return wincim.EnableBuildPrivileges()
}
