package cim_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mwantia/cim"
)

// chdir switches into dir for the duration of the test, restoring the
// previous working directory on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %q: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Errorf("restore wd: %v", err)
		}
	})
}

// writeSourceTree creates a small source tree under a fresh temp directory
// and chdirs into it so relative source paths resolve deterministically.
func writeSourceTree(t *testing.T, files map[string]string) {
	t.Helper()
	chdir(t, t.TempDir())

	for rel, content := range files {
		path := filepath.FromSlash(rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %q: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %q: %v", rel, err)
		}
	}
}

func TestObject_ResolveRelativePath(t *testing.T) {
	writeSourceTree(t, map[string]string{
		"root/a/b/file.txt": "hello",
	})

	obj := cim.NewObject(filepath.FromSlash("root/a/b/file.txt"))
	ancestors, err := obj.ResolveRelativePath(true)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	rel, err := obj.RelativePath()
	if err != nil {
		t.Fatalf("relative path: %v", err)
	}
	if rel != `root\a\b\file.txt` {
		t.Errorf("relative = %q, want %q", rel, `root\a\b\file.txt`)
	}

	want := []string{`root`, `root\a`, `root\a\b`}
	items := ancestors.Items()
	if len(items) != len(want) {
		t.Fatalf("ancestors = %d, want %d", len(items), len(want))
	}
	for i, a := range items {
		arel, err := a.RelativePath()
		if err != nil {
			t.Fatalf("ancestor %d unresolved: %v", i, err)
		}
		if arel != want[i] {
			t.Errorf("ancestor[%d] = %q, want %q (parents must come first)", i, arel, want[i])
		}
	}
}

func TestObject_ResolveIsIdempotent(t *testing.T) {
	writeSourceTree(t, map[string]string{
		"root/file.txt": "x",
	})

	obj := cim.NewObject(filepath.FromSlash("root/file.txt"))
	if _, err := obj.ResolveRelativePath(true); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	first, _ := obj.RelativePath()

	again, err := obj.ResolveRelativePath(true)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if again.Len() != 0 {
		t.Errorf("second resolve returned %d ancestors, want none", again.Len())
	}

	second, _ := obj.RelativePath()
	if first != second {
		t.Errorf("relative path changed across resolves: %q vs %q", first, second)
	}
}

func TestObject_ParentComponentsCollapse(t *testing.T) {
	writeSourceTree(t, map[string]string{
		"src/file.txt": "x",
	})
	chdir(t, "src")

	obj := cim.NewObject(filepath.FromSlash("../src/file.txt"))
	if _, err := obj.ResolveRelativePath(true); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	rel, _ := obj.RelativePath()
	if rel != `src\file.txt` {
		t.Errorf("relative = %q, want %q", rel, `src\file.txt`)
	}
}

func TestObject_SiblingsShareAncestors(t *testing.T) {
	writeSourceTree(t, map[string]string{
		"root/x.txt": "x",
		"root/y.txt": "y",
	})

	set := cim.NewObjectSet()
	for _, src := range []string{"root/x.txt", "root/y.txt"} {
		obj := cim.NewObject(filepath.FromSlash(src))
		ancestors, err := obj.ResolveRelativePath(true)
		if err != nil {
			t.Fatalf("resolve %q: %v", src, err)
		}
		set.Merge(ancestors)
		set.Insert(obj)
	}

	// One shared ancestor plus the two files.
	if set.Len() != 3 {
		var rels []string
		for _, o := range set.Items() {
			rel, _ := o.RelativePath()
			rels = append(rels, rel)
		}
		t.Fatalf("set = %v, want shared ancestor deduplicated", rels)
	}
}

func TestObject_UnresolvedAccessors(t *testing.T) {
	obj := cim.NewObject("whatever")
	if _, err := obj.RelativePath(); !errors.Is(err, cim.ErrUnresolved) {
		t.Errorf("RelativePath = %v, want ErrUnresolved", err)
	}
}

func TestObject_InvalidSources(t *testing.T) {
	chdir(t, t.TempDir())

	t.Run("nonexistent", func(tst *testing.T) {
		obj := cim.NewObject("does/not/exist.txt")
		if _, err := obj.ResolveRelativePath(true); !errors.Is(err, cim.ErrInvalidPath) {
			tst.Errorf("resolve = %v, want ErrInvalidPath", err)
		}
	})

	t.Run("image-root", func(tst *testing.T) {
		obj := cim.NewObject(".")
		if _, err := obj.ResolveRelativePath(true); !errors.Is(err, cim.ErrInvalidPath) {
			tst.Errorf("resolve = %v, want ErrInvalidPath", err)
		}
	})
}

func TestObject_SourcePathReflectsFilesystem(t *testing.T) {
	writeSourceTree(t, map[string]string{
		"root/file.txt": "x",
	})

	obj := cim.NewObject(filepath.FromSlash("root/file.txt"))
	if _, err := obj.ResolveRelativePath(false); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if _, err := obj.SourcePath(); err != nil {
		t.Fatalf("source path while file exists: %v", err)
	}

	if err := os.Remove(filepath.FromSlash("root/file.txt")); err != nil {
		t.Fatal(err)
	}
	if _, err := obj.SourcePath(); !errors.Is(err, cim.ErrInvalidPath) {
		t.Errorf("source path after delete = %v, want ErrInvalidPath", err)
	}
}
