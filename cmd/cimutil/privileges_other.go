//go:build !windows

package main

// Backup and security privileges only exist on Windows.
func enableBuildPrivileges() error {
	return nil
}
