package cim_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mwantia/cim"
	"github.com/mwantia/cim/engine/ephemeral"
	"github.com/mwantia/cim/log"
)

func commitTestImage(t *testing.T, eng *ephemeral.Engine, root, name string) {
	t.Helper()

	img := cim.NewImage(root, name, cim.WithEngine(eng), cim.WithLogger(log.Discard()))
	if err := img.Create(""); err != nil {
		t.Fatalf("create %q: %v", name, err)
	}
	if err := img.Commit(); err != nil {
		t.Fatalf("commit %q: %v", name, err)
	}
}

func TestVolume_MountExplicit(t *testing.T) {
	eng := ephemeral.New()
	commitTestImage(t, eng, "images", "test.cim")

	explicit := "Volume{04522dcd-f383-4f1c-aea6-af8f93e020d5}"
	vol := cim.NewVolume("images", "test.cim", cim.WithEngine(eng), cim.WithLogger(log.Discard()))

	id, err := vol.Mount(explicit)
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	if id.String() != "04522dcd-f383-4f1c-aea6-af8f93e020d5" {
		t.Errorf("mounted id = %s, want the explicit identifier", id)
	}
	if !eng.Mounted(id) {
		t.Error("engine does not report the volume mounted")
	}

	cached, err := vol.VolumeID()
	if err != nil {
		t.Fatalf("volume id: %v", err)
	}
	if cached != id {
		t.Errorf("cached id = %s, want %s", cached, id)
	}
}

func TestVolume_MountGeneratesDistinctIDs(t *testing.T) {
	eng := ephemeral.New()
	commitTestImage(t, eng, "images", "a.cim")
	commitTestImage(t, eng, "images", "b.cim")

	a := cim.NewVolume("images", "a.cim", cim.WithEngine(eng), cim.WithLogger(log.Discard()))
	b := cim.NewVolume("images", "b.cim", cim.WithEngine(eng), cim.WithLogger(log.Discard()))

	idA, err := a.Mount("")
	if err != nil {
		t.Fatalf("mount a: %v", err)
	}
	idB, err := b.Mount("")
	if err != nil {
		t.Fatalf("mount b: %v", err)
	}
	if idA == idB {
		t.Errorf("generated identifiers collide: %s", idA)
	}
}

func TestVolume_MountFailureCachesNothing(t *testing.T) {
	eng := ephemeral.New()

	vol := cim.NewVolume("images", "missing.cim", cim.WithEngine(eng), cim.WithLogger(log.Discard()))
	if _, err := vol.Mount(""); !errors.Is(err, cim.ErrMountFailed) {
		t.Fatalf("mount of uncommitted image = %v, want ErrMountFailed", err)
	}
	if _, err := vol.VolumeID(); !errors.Is(err, cim.ErrNoVolumeCached) {
		t.Errorf("VolumeID after failed mount = %v, want ErrNoVolumeCached", err)
	}
	if err := vol.MountVolume(`C:\cim`); !errors.Is(err, cim.ErrNoVolumeCached) {
		t.Errorf("MountVolume without mount = %v, want ErrNoVolumeCached", err)
	}
}

func TestVolume_MountVolumeBindsOnce(t *testing.T) {
	eng := ephemeral.New()
	commitTestImage(t, eng, "images", "test.cim")

	vol := cim.NewVolume("images", "test.cim", cim.WithEngine(eng), cim.WithLogger(log.Discard()))
	if _, err := vol.Mount(""); err != nil {
		t.Fatalf("mount: %v", err)
	}

	if err := vol.MountVolume(`C:\cim`); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := vol.MountVolume(`C:\cim\`); !errors.Is(err, cim.ErrMountPointFailed) {
		t.Errorf("second bind = %v, want ErrMountPointFailed", err)
	}
}

func TestParseVolumeID(t *testing.T) {
	const raw = "04522dcd-f383-4f1c-aea6-af8f93e020d5"

	for _, form := range []string{
		fmt.Sprintf("Volume{%s}", raw),
		fmt.Sprintf("{%s}", raw),
		raw,
	} {
		id, err := cim.ParseVolumeID(form)
		if err != nil {
			t.Errorf("parse %q: %v", form, err)
			continue
		}
		if id.String() != raw {
			t.Errorf("parse %q = %s, want %s", form, id, raw)
		}
	}

	if _, err := cim.ParseVolumeID("not-a-guid"); !errors.Is(err, cim.ErrInvalidVolumeID) {
		t.Errorf("parse invalid = %v, want ErrInvalidVolumeID", err)
	}
}

func TestDismount(t *testing.T) {
	eng := ephemeral.New()
	commitTestImage(t, eng, "images", "test.cim")

	vol := cim.NewVolume("images", "test.cim", cim.WithEngine(eng), cim.WithLogger(log.Discard()))
	id, err := vol.Mount("")
	if err != nil {
		t.Fatalf("mount: %v", err)
	}

	volume := fmt.Sprintf("Volume{%s}", id)
	if err := cim.Dismount(volume, cim.WithEngine(eng), cim.WithLogger(log.Discard())); err != nil {
		t.Fatalf("dismount: %v", err)
	}
	if eng.Mounted(id) {
		t.Error("volume still mounted after dismount")
	}

	if err := cim.Dismount(volume, cim.WithEngine(eng), cim.WithLogger(log.Discard())); !errors.Is(err, cim.ErrDismountFailed) {
		t.Errorf("second dismount = %v, want ErrDismountFailed", err)
	}
	if err := cim.Dismount("junk", cim.WithEngine(eng), cim.WithLogger(log.Discard())); !errors.Is(err, cim.ErrInvalidVolumeID) {
		t.Errorf("dismount of junk = %v, want ErrInvalidVolumeID", err)
	}
}

func TestVolumePath(t *testing.T) {
	id := uuid.MustParse("04522dcd-f383-4f1c-aea6-af8f93e020d5")
	path := cim.VolumePath(id)
	if path != `\\?\Volume{04522dcd-f383-4f1c-aea6-af8f93e020d5}` {
		t.Errorf("volume path = %q", path)
	}
	if !strings.HasPrefix(path, `\\?\Volume{`) {
		t.Errorf("volume path missing device prefix: %q", path)
	}
}

// TestBuildMountRoundTrip walks the whole pipeline: resolve sources, build
// and commit an image, mount it and dismount it again.
func TestBuildMountRoundTrip(t *testing.T) {
	writeSourceTree(t, map[string]string{
		"root/a/b/file.txt": "round trip",
	})
	eng := ephemeral.New()

	img := cim.NewImage("images", "trip.cim", cim.WithEngine(eng), cim.WithLogger(log.Discard()))
	if err := img.Create(""); err != nil {
		t.Fatalf("create: %v", err)
	}
	addAll(t, img, "root/a/b/file.txt")
	if err := img.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	vol := cim.NewVolume("images", "trip.cim", cim.WithEngine(eng), cim.WithLogger(log.Discard()))
	id, err := vol.Mount("")
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	if !strings.HasPrefix(cim.VolumePath(id), `\\?\Volume{`) {
		t.Errorf("volume path = %q", cim.VolumePath(id))
	}

	if err := cim.Dismount(id.String(), cim.WithEngine(eng), cim.WithLogger(log.Discard())); err != nil {
		t.Fatalf("dismount: %v", err)
	}
	if eng.Mounted(id) {
		t.Error("volume still mounted")
	}
}
