package ephemeral

import (
	"github.com/google/uuid"

	"github.com/mwantia/cim/engine"
)

// Inspection helpers. These look only at engine state and exist so callers
// and tests can verify lifecycle invariants without reaching into internals.

// Committed reports whether a committed image exists under root with the
// given name.
func (e *Engine) Committed(root, name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.committed[imageKey(root, name)]
	return ok
}

// ObjectPaths returns the relative paths of a committed image in lexical
// order, or nil if the image does not exist.
func (e *Engine) ObjectPaths(root, name string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	img, ok := e.committed[imageKey(root, name)]
	if !ok {
		return nil
	}

	paths := make([]string, 0, img.objects.Len())
	img.objects.Scan(func(rel string, _ *object) bool {
		paths = append(paths, rel)
		return true
	})
	return paths
}

// ObjectContent returns the content bytes of an object in a committed image.
func (e *Engine) ObjectContent(root, name, relativePath string) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	img, ok := e.committed[imageKey(root, name)]
	if !ok {
		return nil, false
	}
	o, ok := img.objects.Get(relativePath)
	if !ok {
		return nil, false
	}
	return o.content, true
}

// ObjectMetadata returns a copy of the metadata record of an object in a
// committed image.
func (e *Engine) ObjectMetadata(root, name, relativePath string) (*engine.FileMetadata, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	img, ok := e.committed[imageKey(root, name)]
	if !ok {
		return nil, false
	}
	o, ok := img.objects.Get(relativePath)
	if !ok {
		return nil, false
	}
	meta := o.meta
	return &meta, true
}

// Mounted reports whether a volume is mounted under id.
func (e *Engine) Mounted(id uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.volumes[id]
	return ok
}

// OpenHandles returns the number of image handles currently held open.
func (e *Engine) OpenHandles() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.open)
}

// OpenStreams returns the number of object streams currently held open.
func (e *Engine) OpenStreams() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.streams)
}
