package engine

import (
	"errors"

	"github.com/google/uuid"
)

// ImageHandle identifies a writable image held open by an engine.
// The zero value is never a valid handle.
type ImageHandle uintptr

// StreamHandle identifies an open object stream inside a writable image.
// The zero value is never a valid handle.
type StreamHandle uintptr

// Engine is the narrow contract between the build pipeline and the native
// image-format engine. Implementations physically lay out the composite image,
// deduplicate content and expose committed images as read-only volumes; the
// pipeline only ever talks to them through these operations.
//
// All calls block until completion. A single ImageHandle must not be used
// concurrently; callers that want parallel builds use independent handles
// against independent images.
type Engine interface {
	// CreateImage opens a handle for a new image named name inside root.
	// A non-empty existing name forks the new image off an image already
	// present in the same root directory.
	CreateImage(root, existing, name string) (ImageHandle, error)

	// AddObject creates an object at the given relative path inside the
	// image and returns a stream handle for its content. The stream must be
	// closed via CloseStream exactly once, even when no bytes are written.
	AddObject(h ImageHandle, relativePath string, meta *FileMetadata) (StreamHandle, error)

	// WriteStream appends bytes to an open object stream. A zero-length
	// write signals end-of-stream to the engine.
	WriteStream(s StreamHandle, b []byte) error

	// CloseStream releases an object stream.
	CloseStream(s StreamHandle) error

	// CreateHardLink links newPath to an object previously added at
	// existingPath within the same open image.
	CreateHardLink(h ImageHandle, existingPath, newPath string) error

	// DeletePath removes a path inherited from a forked base image.
	DeletePath(h ImageHandle, relativePath string) error

	// CommitImage seals the image. The handle must still be released with
	// CloseImage afterwards, whether or not the commit succeeded.
	CommitImage(h ImageHandle) error

	// CloseImage releases an image handle. An uncommitted image is discarded
	// by the engine, not finalized.
	CloseImage(h ImageHandle) error

	// MountImage exposes the named, committed image in root as a read-only
	// volume under the given identifier.
	MountImage(root, name string, id uuid.UUID) error

	// DismountImage tears down the volume mounted under id.
	DismountImage(id uuid.UUID) error

	// BindMountpoint binds a local directory path to a mounted volume's
	// device path. The volume stays mounted if the bind fails.
	BindMountpoint(localPath, volumePath string) error
}

// ErrUnknownHandle is returned by engines when an operation references a
// handle they did not issue or have already released.
var ErrUnknownHandle = errors.New("engine: unknown handle")
