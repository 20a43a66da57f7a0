//go:build !windows

package cim_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mwantia/cim"
	"github.com/mwantia/cim/engine"
)

func TestCapture(t *testing.T) {
	dir := t.TempDir()

	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(file, link); err != nil {
		t.Fatal(err)
	}

	capture := func(tst *testing.T, path string) *engine.FileMetadata {
		tst.Helper()
		sf, err := cim.OpenSource(path)
		if err != nil {
			tst.Fatalf("open %q: %v", path, err)
		}
		defer sf.Close()

		meta, err := sf.Capture()
		if err != nil {
			tst.Fatalf("capture %q: %v", path, err)
		}
		return meta
	}

	t.Run("file", func(tst *testing.T) {
		meta := capture(tst, file)
		if meta.IsDirectory() || meta.IsReparsePoint() {
			tst.Errorf("attributes = %#x", meta.Attributes)
		}
		if meta.FileSize != int64(len("content")) {
			tst.Errorf("size = %d, want %d", meta.FileSize, len("content"))
		}
		if meta.LastWriteTime == 0 {
			tst.Error("timestamps not captured")
		}
	})

	t.Run("directory", func(tst *testing.T) {
		meta := capture(tst, dir)
		if !meta.IsDirectory() {
			tst.Errorf("attributes = %#x, want directory", meta.Attributes)
		}
		if meta.FileSize != 0 {
			tst.Errorf("directory size = %d, want 0", meta.FileSize)
		}
	})

	t.Run("symlink", func(tst *testing.T) {
		meta := capture(tst, link)
		if !meta.IsReparsePoint() {
			tst.Errorf("attributes = %#x, want reparse point", meta.Attributes)
		}
		if string(meta.ReparseData) != file {
			tst.Errorf("reparse payload = %q, want %q", meta.ReparseData, file)
		}
	})

	t.Run("missing", func(tst *testing.T) {
		if _, err := cim.OpenSource(filepath.Join(dir, "nope")); !errors.Is(err, cim.ErrInvalidPath) {
			tst.Errorf("open missing = %v, want ErrInvalidPath", err)
		}
	})
}
