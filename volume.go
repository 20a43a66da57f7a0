package cim

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mwantia/cim/engine"
	"github.com/mwantia/cim/log"
)

// Volume manages the mounted-volume identifier of one committed image:
// Mount establishes the volume under an explicit, cached or freshly
// generated identifier, MountVolume binds a local mountpoint to it.
// Dismounting is keyed purely by identifier and does not require a session.
type Volume struct {
	mu   sync.Mutex
	root string
	name string

	eng engine.Engine
	lg  *log.Logger

	id     uuid.UUID
	cached bool
}

// NewVolume creates a volume session for the named, committed image inside
// the root directory.
func NewVolume(root, name string, opts ...SessionOption) *Volume {
	o := newSessionOptions(opts...)
	return &Volume{
		root: root,
		name: name,
		eng:  o.eng,
		lg:   o.lg.Named("volume"),
	}
}

// Mount exposes the image as a read-only volume. The identifier resolution
// order is: the explicit textual identifier if non-empty, else the
// identifier cached by a prior Mount on this session, else a freshly
// generated one. The identifier is only cached once the engine accepted the
// mount. Returns the identifier the volume is mounted under.
func (v *Volume) Mount(explicit string) (uuid.UUID, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var id uuid.UUID
	switch {
	case explicit != "":
		parsed, err := ParseVolumeID(explicit)
		if err != nil {
			return uuid.Nil, err
		}
		id = parsed
	case v.cached:
		id = v.id
	default:
		generated, err := uuid.NewRandom()
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: %v", ErrIDGeneration, err)
		}
		id = generated
	}

	if err := v.eng.MountImage(v.root, v.name, id); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q: %w", ErrMountFailed, v.name, err)
	}

	v.id = id
	v.cached = true
	v.lg.Info("mounted image %q at %s", v.name, VolumePath(id))
	return id, nil
}

// MountVolume binds localPath to the mounted volume's device path. Requires
// an identifier cached by a prior successful Mount; fails with
// ErrNoVolumeCached otherwise. A bind failure leaves the volume mounted,
// just unreachable through that local path.
func (v *Volume) MountVolume(localPath string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.cached {
		return ErrNoVolumeCached
	}

	// Both sides of the bind require a trailing separator.
	local := strings.TrimSuffix(localPath, `\`) + `\`
	device := VolumePath(v.id) + `\`

	if err := v.eng.BindMountpoint(local, device); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrMountPointFailed, localPath, err)
	}
	v.lg.Info("bound mountpoint %q to %s", local, device)
	return nil
}

// VolumeID returns the identifier cached by a prior successful Mount.
func (v *Volume) VolumeID() (uuid.UUID, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.cached {
		return uuid.Nil, ErrNoVolumeCached
	}
	return v.id, nil
}

// Dismount tears down the volume mounted under the given identifier. It is a
// free-standing call: the process issuing the dismount need not be the one
// that mounted the volume, so no session state is involved.
func Dismount(volume string, opts ...SessionOption) error {
	o := newSessionOptions(opts...)

	id, err := ParseVolumeID(volume)
	if err != nil {
		return err
	}

	if err := o.eng.DismountImage(id); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDismountFailed, id, err)
	}
	o.lg.Info("dismounted volume %s", id)
	return nil
}

// ParseVolumeID parses the textual forms a volume identifier may take:
// Volume{xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx}, {xxxxxxxx-...} and the bare
// form. All three parse to the same identifier.
func ParseVolumeID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimPrefix(s, "Volume"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q: %v", ErrInvalidVolumeID, s, err)
	}
	return id, nil
}

// VolumePath returns the volume device path for an identifier, in the form
// \\?\Volume{xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx}.
func VolumePath(id uuid.UUID) string {
	return fmt.Sprintf(`\\?\Volume{%s}`, id)
}
