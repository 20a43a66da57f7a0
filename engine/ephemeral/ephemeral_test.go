package ephemeral_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/mwantia/cim/engine"
	"github.com/mwantia/cim/engine/ephemeral"
)

func dirMeta() *engine.FileMetadata {
	return &engine.FileMetadata{Attributes: engine.AttributeDirectory}
}

func fileMeta() *engine.FileMetadata {
	return &engine.FileMetadata{Attributes: engine.AttributeNormal}
}

func TestEngine_AncestorOrdering(t *testing.T) {
	eng := ephemeral.New()

	h, err := eng.CreateImage("root", "", "img.cim")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The child must be rejected while its parent is missing.
	if _, err := eng.AddObject(h, `dir\file.txt`, fileMeta()); err == nil {
		t.Fatal("child accepted before its parent directory")
	}

	s, err := eng.AddObject(h, `dir`, dirMeta())
	if err != nil {
		t.Fatalf("add parent: %v", err)
	}
	if err := eng.CloseStream(s); err != nil {
		t.Fatalf("close parent stream: %v", err)
	}

	if _, err := eng.AddObject(h, `dir\file.txt`, fileMeta()); err != nil {
		t.Fatalf("child rejected after parent exists: %v", err)
	}

	// A file cannot stand in as an ancestor.
	if _, err := eng.AddObject(h, `dir\file.txt\below`, fileMeta()); err == nil {
		t.Fatal("object accepted below a file ancestor")
	}
}

func TestEngine_StreamLifecycle(t *testing.T) {
	eng := ephemeral.New()

	h, err := eng.CreateImage("root", "", "img.cim")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	s, err := eng.AddObject(h, "file.txt", fileMeta())
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := eng.WriteStream(s, []byte("data")); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The zero-length write seals the stream.
	if err := eng.WriteStream(s, nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := eng.WriteStream(s, []byte("late")); err == nil {
		t.Error("write accepted after the stream was sealed")
	}

	if err := eng.CloseStream(s); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := eng.CloseStream(s); !errors.Is(err, engine.ErrUnknownHandle) {
		t.Errorf("second close = %v, want ErrUnknownHandle", err)
	}
}

func TestEngine_DirectoryRejectsContent(t *testing.T) {
	eng := ephemeral.New()

	h, _ := eng.CreateImage("root", "", "img.cim")
	s, err := eng.AddObject(h, "dir", dirMeta())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := eng.WriteStream(s, []byte("data")); err == nil {
		t.Error("content write to a directory accepted")
	}
}

func TestEngine_UncommittedImagesAreDiscarded(t *testing.T) {
	eng := ephemeral.New()

	h, err := eng.CreateImage("root", "", "img.cim")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := eng.CloseImage(h); err != nil {
		t.Fatalf("close: %v", err)
	}
	if eng.Committed("root", "img.cim") {
		t.Error("discarded image reported as committed")
	}
	if err := eng.CloseImage(h); !errors.Is(err, engine.ErrUnknownHandle) {
		t.Errorf("second close = %v, want ErrUnknownHandle", err)
	}
}

func TestEngine_MountRequiresCommit(t *testing.T) {
	eng := ephemeral.New()
	id := uuid.MustParse("04522dcd-f383-4f1c-aea6-af8f93e020d5")

	if err := eng.MountImage("root", "img.cim", id); err == nil {
		t.Fatal("mount of unknown image accepted")
	}

	h, _ := eng.CreateImage("root", "", "img.cim")
	if err := eng.CommitImage(h); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := eng.CloseImage(h); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := eng.MountImage("root", "img.cim", id); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if err := eng.MountImage("root", "img.cim", id); err == nil {
		t.Error("identifier reuse accepted while mounted")
	}

	if err := eng.DismountImage(id); err != nil {
		t.Fatalf("dismount: %v", err)
	}
	if err := eng.DismountImage(id); err == nil {
		t.Error("second dismount accepted")
	}
}

func TestEngine_UnknownHandles(t *testing.T) {
	eng := ephemeral.New()

	if _, err := eng.AddObject(42, "file.txt", fileMeta()); !errors.Is(err, engine.ErrUnknownHandle) {
		t.Errorf("AddObject = %v, want ErrUnknownHandle", err)
	}
	if err := eng.WriteStream(42, []byte("x")); !errors.Is(err, engine.ErrUnknownHandle) {
		t.Errorf("WriteStream = %v, want ErrUnknownHandle", err)
	}
	if err := eng.CommitImage(42); !errors.Is(err, engine.ErrUnknownHandle) {
		t.Errorf("CommitImage = %v, want ErrUnknownHandle", err)
	}
	if err := eng.CreateHardLink(42, "a", "b"); !errors.Is(err, engine.ErrUnknownHandle) {
		t.Errorf("CreateHardLink = %v, want ErrUnknownHandle", err)
	}
	if err := eng.DeletePath(42, "a"); !errors.Is(err, engine.ErrUnknownHandle) {
		t.Errorf("DeletePath = %v, want ErrUnknownHandle", err)
	}
}
