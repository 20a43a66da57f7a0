package cim

import "errors"

// Standard errors returned by the image-build and volume pipeline. Engine
// failures are wrapped around these sentinels so callers can match with
// errors.Is while keeping the underlying engine status for diagnostics.
var (
	// Path resolution errors
	ErrInvalidPath = errors.New("cim: invalid source path")
	ErrUnresolved  = errors.New("cim: relative path has not been resolved")

	// Image session errors
	ErrCreateFailed = errors.New("cim: image create failed")
	ErrCommitFailed = errors.New("cim: image commit failed")
	ErrNotOpen      = errors.New("cim: image session not open")

	// Metadata capture errors
	ErrBufferOverflow = errors.New("cim: reparse data exceeds capture buffer")
	ErrSecurityQuery  = errors.New("cim: security descriptor query returned unusable data")

	// Volume errors
	ErrMountFailed      = errors.New("cim: volume mount failed")
	ErrMountPointFailed = errors.New("cim: mountpoint bind failed")
	ErrDismountFailed   = errors.New("cim: volume dismount failed")
	ErrNoVolumeCached   = errors.New("cim: no volume identifier cached")
	ErrIDGeneration     = errors.New("cim: volume identifier generation failed")
	ErrInvalidVolumeID  = errors.New("cim: invalid volume identifier")
)
