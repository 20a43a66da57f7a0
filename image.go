package cim

import (
	"fmt"
	"sync"

	"github.com/mwantia/cim/engine"
	"github.com/mwantia/cim/log"
)

// Image owns an image-engine handle across the build of one composite image:
// Create opens the handle, AddObject and friends borrow it per call, Commit
// consumes it. A session whose build is abandoned must be released with
// Close so the engine can discard the uncommitted image.
//
// The handle is not reentrant; concurrent builds require independent Image
// sessions against independent images.
type Image struct {
	mu   sync.Mutex
	root string
	name string

	eng engine.Engine
	lg  *log.Logger

	handle engine.ImageHandle
	open   bool
}

// NewImage creates an unopened image session for an image named name inside
// the root directory.
func NewImage(root, name string, opts ...SessionOption) *Image {
	o := newSessionOptions(opts...)
	return &Image{
		root: root,
		name: name,
		eng:  o.eng,
		lg:   o.lg.Named("image"),
	}
}

// Name returns the image name within its root directory.
func (img *Image) Name() string {
	return img.name
}

// Create asks the engine for a handle to a fresh image, or forks one based
// on an existing image in the same root when existing is non-empty. Fails
// with ErrCreateFailed and leaves the session unopened on error.
func (img *Image) Create(existing string) error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if img.open {
		return fmt.Errorf("%w: session already holds an open handle", ErrCreateFailed)
	}

	h, err := img.eng.CreateImage(img.root, existing, img.name)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrCreateFailed, img.name, err)
	}

	img.handle = h
	img.open = true
	img.lg.Debug("created image %q in %q", img.name, img.root)
	return nil
}

// AddObject captures the resolved object's metadata, creates it inside the
// image and streams its content. The handle is borrowed for the duration of
// the call and returned to the session afterward, so a failure here leaves
// the session open for retry or clean shutdown. A failed metadata read never
// leaves a half-written image stream open.
func (img *Image) AddObject(obj *Object) error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if !img.open {
		return ErrNotOpen
	}

	rel, err := obj.RelativePath()
	if err != nil {
		return err
	}

	src, err := obj.SourcePath()
	if err != nil {
		return err
	}

	sf, err := OpenSource(src)
	if err != nil {
		return err
	}
	defer sf.Close()

	meta, err := sf.Capture()
	if err != nil {
		return err
	}

	stream, err := img.eng.AddObject(img.handle, rel, meta)
	if err != nil {
		return fmt.Errorf("add object %q: %w", rel, err)
	}

	written, err := copyObjectStream(img.eng, stream, sf, meta.IsDirectory(), img.lg)
	if err != nil {
		return fmt.Errorf("copy %q: %w", rel, err)
	}

	img.lg.Debug("added %q from %q (%d bytes)", rel, src, written)
	return nil
}

// AddHardLink links newPath to an object previously added at existingPath
// within the open image.
func (img *Image) AddHardLink(existingPath, newPath string) error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if !img.open {
		return ErrNotOpen
	}
	if err := img.eng.CreateHardLink(img.handle, existingPath, newPath); err != nil {
		return fmt.Errorf("hard link %q => %q: %w", newPath, existingPath, err)
	}
	return nil
}

// DeletePath removes a path inherited from the forked base image.
func (img *Image) DeletePath(relativePath string) error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if !img.open {
		return ErrNotOpen
	}
	if err := img.eng.DeletePath(img.handle, relativePath); err != nil {
		return fmt.Errorf("delete path %q: %w", relativePath, err)
	}
	return nil
}

// Commit seals the image. The handle is consumed whether or not the commit
// succeeds: it is released back to the engine exactly once and the session
// cannot be reused. A second Commit fails with ErrNotOpen.
func (img *Image) Commit() error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if !img.open {
		return ErrNotOpen
	}

	h := img.handle
	img.handle = 0
	img.open = false

	commitErr := img.eng.CommitImage(h)
	if err := img.eng.CloseImage(h); err != nil {
		// The release must never mask the commit outcome.
		img.lg.Warn("close image handle: %v", err)
	}

	if commitErr != nil {
		return fmt.Errorf("%w: %q: %w", ErrCommitFailed, img.name, commitErr)
	}
	img.lg.Info("committed image %q", img.name)
	return nil
}

// Close releases the handle without committing; the engine discards the
// uncommitted image. Safe to call on a never-opened or already-committed
// session.
func (img *Image) Close() error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if !img.open {
		return nil
	}

	h := img.handle
	img.handle = 0
	img.open = false

	if err := img.eng.CloseImage(h); err != nil {
		return fmt.Errorf("close image %q: %w", img.name, err)
	}
	return nil
}
