//go:build windows

package cim

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/mwantia/cim/engine"
)

// OpenSource opens path with backup semantics, so directories and reparse
// points can be opened like files, and with reparse-point-open semantics, so
// the reparse point itself is captured instead of its target. Reading the
// SACL during capture additionally requires ACCESS_SYSTEM_SECURITY, which
// only works once SeSecurityPrivilege is enabled for the process.
func OpenSource(path string) (*SourceFile, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPath, path, err)
	}

	h, err := windows.CreateFile(p,
		windows.GENERIC_READ|windows.ACCESS_SYSTEM_SECURITY,
		windows.FILE_SHARE_READ,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OPEN_REPARSE_POINT,
		0)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPath, path, err)
	}

	return &SourceFile{f: os.NewFile(uintptr(h), path), path: path}, nil
}

// Capture reads the open handle's attributes, timestamps, size, reparse
// buffer and security descriptor into an engine-ready metadata record.
//
// Reparse capture uses a scratch buffer of the maximum reparse-data size; a
// control query reporting more data fails the object with ErrBufferOverflow.
// Security-descriptor capture is best-effort and degrades to omission when
// the query fails, but a query that yields an unusable descriptor is
// ErrSecurityQuery and aborts the object.
func (s *SourceFile) Capture() (*engine.FileMetadata, error) {
	h := windows.Handle(s.f.Fd())

	var basic windows.FILE_BASIC_INFO
	err := windows.GetFileInformationByHandleEx(h, windows.FileBasicInfo,
		(*byte)(unsafe.Pointer(&basic)), uint32(unsafe.Sizeof(basic)))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: query basic info: %v", ErrInvalidPath, s.path, err)
	}

	meta := &engine.FileMetadata{
		Attributes:     basic.FileAttributes,
		CreationTime:   ticksFromFiletime(basic.CreationTime),
		LastWriteTime:  ticksFromFiletime(basic.LastWriteTime),
		ChangeTime:     ticksFromFiletime(basic.ChangeTime),
		LastAccessTime: ticksFromFiletime(basic.LastAccessTime),
	}

	if !meta.IsDirectory() {
		if err := windows.GetFileSizeEx(h, &meta.FileSize); err != nil {
			return nil, fmt.Errorf("%w: %q: query size: %v", ErrInvalidPath, s.path, err)
		}
	}

	if meta.IsReparsePoint() {
		buf := make([]byte, engine.MaxReparseDataSize)
		var n uint32
		err := windows.DeviceIoControl(h, windows.FSCTL_GET_REPARSE_POINT,
			nil, 0, &buf[0], uint32(len(buf)), &n, nil)
		if err != nil {
			if errors.Is(err, windows.ERROR_MORE_DATA) || errors.Is(err, windows.ERROR_INSUFFICIENT_BUFFER) {
				return nil, fmt.Errorf("%w: %q", ErrBufferOverflow, s.path)
			}
			return nil, fmt.Errorf("%w: %q: query reparse point: %v", ErrInvalidPath, s.path, err)
		}
		if err := checkReparseSize(int(n)); err != nil {
			return nil, err
		}
		meta.ReparseData = buf[:n]
	}

	sd, err := windows.GetSecurityInfo(h, windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION|
			windows.SACL_SECURITY_INFORMATION|
			windows.LABEL_SECURITY_INFORMATION|
			windows.OWNER_SECURITY_INFORMATION|
			windows.GROUP_SECURITY_INFORMATION)
	switch {
	case err != nil:
		// Best-effort: the engine does not require a descriptor.
	case !sd.IsValid():
		return nil, fmt.Errorf("%w: %q", ErrSecurityQuery, s.path)
	default:
		meta.SecurityDescriptor = unsafe.Slice((*byte)(unsafe.Pointer(sd)), sd.Length())
	}

	return meta, nil
}

func ticksFromFiletime(ft windows.Filetime) int64 {
	return int64(ft.HighDateTime)<<32 | int64(ft.LowDateTime)
}
