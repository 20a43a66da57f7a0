//go:build windows

package wincim

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Raw bindings against cimfs.dll. The DLL ships with Windows releases that
// support CimFS; every proc is resolved lazily so loading this package on an
// older build only fails once a call is attempted.

var (
	modcimfs    = windows.NewLazySystemDLL("cimfs.dll")
	modkernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procCimCreateImage    = modcimfs.NewProc("CimCreateImage")
	procCimCreateFile     = modcimfs.NewProc("CimCreateFile")
	procCimWriteStream    = modcimfs.NewProc("CimWriteStream")
	procCimCloseStream    = modcimfs.NewProc("CimCloseStream")
	procCimCreateHardLink = modcimfs.NewProc("CimCreateHardLink")
	procCimDeletePath     = modcimfs.NewProc("CimDeletePath")
	procCimCommitImage    = modcimfs.NewProc("CimCommitImage")
	procCimCloseImage     = modcimfs.NewProc("CimCloseImage")
	procCimMountImage     = modcimfs.NewProc("CimMountImage")
	procCimDismountImage  = modcimfs.NewProc("CimDismountImage")

	procSetVolumeMountPointW = modkernel32.NewProc("SetVolumeMountPointW")
)

// cimFileMetadata mirrors the native CIMFS_FILE_METADATA layout.
type cimFileMetadata struct {
	Attributes uint32
	FileSize   int64

	CreationTime   windows.Filetime
	LastWriteTime  windows.Filetime
	ChangeTime     windows.Filetime
	LastAccessTime windows.Filetime

	SecurityDescriptorBuffer unsafe.Pointer
	SecurityDescriptorSize   uint32

	ReparseDataBuffer unsafe.Pointer
	ReparseDataSize   uint32

	ExtendedAttributes unsafe.Pointer
	EACount            uint32
}

// checkHR converts an HRESULT return value into an error, folding Win32
// facility codes back to their errno form the way hcsshim's generated
// bindings do.
func checkHR(r0 uintptr) error {
	if int32(r0) >= 0 {
		return nil
	}
	if r0&0x1fff0000 == 0x00070000 {
		r0 &= 0xffff
	}
	return syscall.Errno(r0)
}

func filetimeFromTicks(ticks int64) windows.Filetime {
	return windows.Filetime{
		LowDateTime:  uint32(ticks & 0xffffffff),
		HighDateTime: uint32(ticks >> 32),
	}
}

func bufferPointer(b []byte) (unsafe.Pointer, uint32) {
	if len(b) == 0 {
		return nil, 0
	}
	return unsafe.Pointer(&b[0]), uint32(len(b))
}
