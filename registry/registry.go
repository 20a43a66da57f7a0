// Package registry tracks which composite images are mounted where. Mount
// records are refcounted: mounting an already-mounted image reuses its
// volume and bumps the count, and only the release that drops the count to
// zero should trigger an engine dismount. Stores are pluggable so the
// records can live in a local database or a shared KV.
package registry

import (
	"context"
	"errors"
	"time"
)

// Record describes one mounted image.
type Record struct {
	ImagePath string    // Absolute path of the .cim file
	VolumeID  string    // Identifier the volume is mounted under
	RefCount  int       // Number of outstanding mount requests
	MountedAt time.Time // When the first mount was recorded
}

// ErrNotRecorded is returned when an image has no mount record.
var ErrNotRecorded = errors.New("registry: image not recorded")

// Store persists mount records.
type Store interface {
	// Record registers a mount of imagePath under volumeID, or bumps the
	// refcount of an existing record. Returns the new refcount.
	Record(ctx context.Context, imagePath, volumeID string) (int, error)

	// Release drops one reference and removes the record when none remain.
	// Returns the remaining refcount; ErrNotRecorded when there is no
	// record to release.
	Release(ctx context.Context, imagePath string) (int, error)

	// Lookup returns the record for imagePath, or ErrNotRecorded.
	Lookup(ctx context.Context, imagePath string) (*Record, error)

	// List returns all mount records.
	List(ctx context.Context) ([]*Record, error)

	// Close releases the store's resources.
	Close(ctx context.Context) error
}
