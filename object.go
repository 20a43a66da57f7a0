package cim

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/btree"
)

// Object pairs a source path on the local filesystem with the relative path
// the object will occupy inside a composite image. A freshly created Object
// is unresolved: its relative path is empty until ResolveRelativePath has
// interpreted it from the source path. Once resolved an Object is read-only.
type Object struct {
	src      string
	relative string
}

// NewObject creates an unresolved object from a raw source path.
func NewObject(src string) *Object {
	return &Object{src: src}
}

// ResolveRelativePath interprets the in-image relative path from the source
// path and returns the set of ancestor directory objects required to add this
// object, ordered so parents always come before children.
//
// Canonicalization rule: every non-normal component of the source path (drive
// or UNC prefix, root separator, "." and "..") maps to the implicit image
// root; the relative path is the remaining normal components joined with the
// image separator. The ancestor walk stops at the first ancestor that exists
// as a regular file on the real filesystem.
//
// Resolving an already-resolved object is a no-op and returns an empty set.
// Fails with ErrInvalidPath when the source path cannot be canonicalized.
func (o *Object) ResolveRelativePath(parseAncestors bool) (*ObjectSet, error) {
	ancestors := NewObjectSet()
	if o.relative != "" {
		return ancestors, nil
	}

	if _, err := canonicalSource(o.src); err != nil {
		return nil, err
	}

	prefix, normal := splitComponents(o.src)
	if len(normal) == 0 {
		return nil, fmt.Errorf("%w: %q resolves to the image root", ErrInvalidPath, o.src)
	}
	o.relative = joinImagePath(normal)

	if !parseAncestors {
		return ancestors, nil
	}

	// Walk from the nearest ancestor upward, mirroring the directory chain
	// that must exist inside the image before this object can be added.
	for i := len(normal) - 1; i > 0; i-- {
		src := prefix
		for _, c := range normal[:i] {
			src = filepath.Join(src, c)
		}

		if info, err := os.Stat(src); err == nil && !info.IsDir() {
			break
		}

		a := NewObject(src)
		if _, err := a.ResolveRelativePath(false); err != nil {
			return nil, err
		}
		ancestors.Insert(a)
	}

	return ancestors, nil
}

// RelativePath returns the relative path this object occupies inside the
// image. Fails with ErrUnresolved if ResolveRelativePath has not run yet.
func (o *Object) RelativePath() (string, error) {
	if o.relative == "" {
		return "", ErrUnresolved
	}
	return o.relative, nil
}

// SourcePath re-canonicalizes the source path at call time and returns the
// fully qualified path. It reflects the current filesystem state rather than
// a cached value, so it fails with ErrInvalidPath once the source is gone.
func (o *Object) SourcePath() (string, error) {
	return canonicalSource(o.src)
}

func (o *Object) String() string {
	if o.relative == "" {
		return fmt.Sprintf("%s (unresolved)", o.src)
	}
	return fmt.Sprintf("%s => %s", o.src, o.relative)
}

// canonicalSource resolves path into an absolute path with all symlinks
// evaluated. Nonexistent targets, permission failures and symlink cycles all
// surface as ErrInvalidPath.
func canonicalSource(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidPath, path, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidPath, path, err)
	}
	return resolved, nil
}

// ObjectSet is an ordered set of objects keyed by relative path, then source
// path. The comparator exists solely to guarantee that parent directories
// sort before their children; inserting the same pairing twice keeps a
// single entry, so sibling objects can merge their ancestor sets freely.
type ObjectSet struct {
	tree *btree.BTreeG[*Object]
}

// NewObjectSet creates an empty ordered object set.
func NewObjectSet() *ObjectSet {
	return &ObjectSet{tree: btree.NewBTreeG(lessObject)}
}

func lessObject(a, b *Object) bool {
	if a.relative != b.relative {
		return a.relative < b.relative
	}
	return a.src < b.src
}

// Insert adds an object to the set, replacing an existing entry with the
// same relative and source path.
func (s *ObjectSet) Insert(o *Object) {
	s.tree.Set(o)
}

// Merge inserts every object of other into this set.
func (s *ObjectSet) Merge(other *ObjectSet) {
	other.tree.Scan(func(o *Object) bool {
		s.tree.Set(o)
		return true
	})
}

// Len returns the number of objects in the set.
func (s *ObjectSet) Len() int {
	return s.tree.Len()
}

// Items returns the objects in parent-before-child order.
func (s *ObjectSet) Items() []*Object {
	items := make([]*Object, 0, s.tree.Len())
	s.tree.Scan(func(o *Object) bool {
		items = append(items, o)
		return true
	})
	return items
}
