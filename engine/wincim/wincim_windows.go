//go:build windows

package wincim

import (
	"encoding/binary"
	"path/filepath"
	"unsafe"

	"github.com/google/uuid"
	"golang.org/x/sys/windows"

	"github.com/mwantia/cim/engine"
)

// Engine calls straight into cimfs.dll. It is stateless: all image and
// volume state lives with the operating system, so independently created
// instances are interchangeable.
type Engine struct{}

// New returns the native CimFS engine.
func New() *Engine {
	return &Engine{}
}

// CreateImage opens a writable image handle via CimCreateImage. A non-empty
// existing name forks the new image off an image in the same root directory.
func (e *Engine) CreateImage(root, existing, name string) (engine.ImageHandle, error) {
	rootP, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return 0, err
	}
	nameP, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0, err
	}

	var existingP *uint16
	if existing != "" {
		existingP, err = windows.UTF16PtrFromString(existing)
		if err != nil {
			return 0, err
		}
	}

	var h engine.ImageHandle
	r0, _, _ := procCimCreateImage.Call(
		uintptr(unsafe.Pointer(rootP)),
		uintptr(unsafe.Pointer(existingP)),
		uintptr(unsafe.Pointer(nameP)),
		uintptr(unsafe.Pointer(&h)))
	if err := checkHR(r0); err != nil {
		return 0, err
	}
	return h, nil
}

// AddObject creates an object via CimCreateFile and returns the content
// stream handle.
func (e *Engine) AddObject(h engine.ImageHandle, relativePath string, meta *engine.FileMetadata) (engine.StreamHandle, error) {
	pathP, err := windows.UTF16PtrFromString(relativePath)
	if err != nil {
		return 0, err
	}

	native := cimFileMetadata{
		Attributes:     meta.Attributes,
		FileSize:       meta.FileSize,
		CreationTime:   filetimeFromTicks(meta.CreationTime),
		LastWriteTime:  filetimeFromTicks(meta.LastWriteTime),
		ChangeTime:     filetimeFromTicks(meta.ChangeTime),
		LastAccessTime: filetimeFromTicks(meta.LastAccessTime),
	}
	native.SecurityDescriptorBuffer, native.SecurityDescriptorSize = bufferPointer(meta.SecurityDescriptor)
	native.ReparseDataBuffer, native.ReparseDataSize = bufferPointer(meta.ReparseData)

	var s engine.StreamHandle
	r0, _, _ := procCimCreateFile.Call(
		uintptr(h),
		uintptr(unsafe.Pointer(pathP)),
		uintptr(unsafe.Pointer(&native)),
		uintptr(unsafe.Pointer(&s)))
	if err := checkHR(r0); err != nil {
		return 0, err
	}
	return s, nil
}

// WriteStream appends bytes via CimWriteStream. A zero-length write signals
// end-of-stream.
func (e *Engine) WriteStream(s engine.StreamHandle, b []byte) error {
	buf, size := bufferPointer(b)
	r0, _, _ := procCimWriteStream.Call(uintptr(s), uintptr(buf), uintptr(size))
	return checkHR(r0)
}

// CloseStream releases a content stream via CimCloseStream.
func (e *Engine) CloseStream(s engine.StreamHandle) error {
	r0, _, _ := procCimCloseStream.Call(uintptr(s))
	return checkHR(r0)
}

// CreateHardLink links newPath to existingPath via CimCreateHardLink.
func (e *Engine) CreateHardLink(h engine.ImageHandle, existingPath, newPath string) error {
	existingP, err := windows.UTF16PtrFromString(existingPath)
	if err != nil {
		return err
	}
	newP, err := windows.UTF16PtrFromString(newPath)
	if err != nil {
		return err
	}

	r0, _, _ := procCimCreateHardLink.Call(
		uintptr(h),
		uintptr(unsafe.Pointer(newP)),
		uintptr(unsafe.Pointer(existingP)))
	return checkHR(r0)
}

// DeletePath removes a path via CimDeletePath.
func (e *Engine) DeletePath(h engine.ImageHandle, relativePath string) error {
	pathP, err := windows.UTF16PtrFromString(relativePath)
	if err != nil {
		return err
	}

	r0, _, _ := procCimDeletePath.Call(uintptr(h), uintptr(unsafe.Pointer(pathP)))
	return checkHR(r0)
}

// CommitImage seals the image via CimCommitImage.
func (e *Engine) CommitImage(h engine.ImageHandle) error {
	r0, _, _ := procCimCommitImage.Call(uintptr(h))
	return checkHR(r0)
}

// CloseImage releases the image handle via CimCloseImage.
func (e *Engine) CloseImage(h engine.ImageHandle) error {
	r0, _, _ := procCimCloseImage.Call(uintptr(h))
	return checkHR(r0)
}

// MountImage mounts the named committed image as a read-only volume under
// the given identifier via CimMountImage.
func (e *Engine) MountImage(root, name string, id uuid.UUID) error {
	rootP, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return err
	}
	nameP, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return err
	}

	g := nativeGUID(id)
	r0, _, _ := procCimMountImage.Call(
		uintptr(unsafe.Pointer(rootP)),
		uintptr(unsafe.Pointer(nameP)),
		0, // CIM_MOUNT_IMAGE_NONE
		uintptr(unsafe.Pointer(&g)))
	return checkHR(r0)
}

// DismountImage tears down a mounted volume via CimDismountImage.
func (e *Engine) DismountImage(id uuid.UUID) error {
	g := nativeGUID(id)
	r0, _, _ := procCimDismountImage.Call(uintptr(unsafe.Pointer(&g)))
	return checkHR(r0)
}

// BindMountpoint binds a local directory to the volume device path via
// SetVolumeMountPointW. Both paths must carry a trailing backslash.
func (e *Engine) BindMountpoint(localPath, volumePath string) error {
	localP, err := windows.UTF16PtrFromString(ensureTrailingSeparator(localPath))
	if err != nil {
		return err
	}
	volumeP, err := windows.UTF16PtrFromString(ensureTrailingSeparator(volumePath))
	if err != nil {
		return err
	}

	r0, _, lastErr := procSetVolumeMountPointW.Call(
		uintptr(unsafe.Pointer(localP)),
		uintptr(unsafe.Pointer(volumeP)))
	if r0 == 0 {
		return lastErr
	}
	return nil
}

func ensureTrailingSeparator(path string) string {
	if len(path) == 0 || path[len(path)-1] == filepath.Separator {
		return path
	}
	return path + string(filepath.Separator)
}

// nativeGUID converts a uuid into the mixed-endian win32 GUID layout.
func nativeGUID(id uuid.UUID) windows.GUID {
	var g windows.GUID
	g.Data1 = binary.BigEndian.Uint32(id[0:4])
	g.Data2 = binary.BigEndian.Uint16(id[4:6])
	g.Data3 = binary.BigEndian.Uint16(id[6:8])
	copy(g.Data4[:], id[8:16])
	return g
}
