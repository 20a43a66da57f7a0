// Package wincim implements the engine contract on top of the native CimFS
// win32 API (cimfs.dll). It only functions on Windows builds that ship
// CimFS; on other platforms the package exports nothing.
package wincim
