// Package ephemeral provides a thread-safe in-memory implementation of the
// engine contract. It backs the test suite on every platform and serves as
// the default engine on hosts without a native image-format engine.
//
// The engine enforces the same ordering and lifecycle rules the native
// engine relies on: parent directories must exist before children, streams
// are closed exactly once, uncommitted images are discarded on close and
// only committed images can be mounted.
package ephemeral

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"github.com/mwantia/cim/engine"
)

// Engine is an in-memory image store implementing engine.Engine.
type Engine struct {
	mu sync.Mutex

	nextHandle uintptr
	committed  map[string]*image
	open       map[engine.ImageHandle]*image
	streams    map[engine.StreamHandle]*stream
	volumes    map[uuid.UUID]string
	bindings   map[string]string
}

type image struct {
	root string
	name string

	// Objects keyed by in-image relative path; the ordered map keeps
	// directory listings deterministic for inspection helpers.
	objects *btree.Map[string, *object]
}

type object struct {
	meta    engine.FileMetadata
	content []byte
}

type stream struct {
	img    *image
	rel    string
	sealed bool
}

// New creates an empty in-memory engine.
func New() *Engine {
	return &Engine{
		committed: make(map[string]*image),
		open:      make(map[engine.ImageHandle]*image),
		streams:   make(map[engine.StreamHandle]*stream),
		volumes:   make(map[uuid.UUID]string),
		bindings:  make(map[string]string),
	}
}

var defaultEngine = New()

// Default returns the process-wide shared engine, so independently created
// sessions observe each other's images.
func Default() *Engine {
	return defaultEngine
}

func imageKey(root, name string) string {
	return root + "|" + name
}

// CreateImage opens a handle for a fresh image, or forks the objects of an
// existing committed image in the same root when existing is non-empty.
func (e *Engine) CreateImage(root, existing, name string) (engine.ImageHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	img := &image{
		root:    root,
		name:    name,
		objects: btree.NewMap[string, *object](0),
	}

	if existing != "" {
		base, ok := e.committed[imageKey(root, existing)]
		if !ok {
			return 0, fmt.Errorf("fork base %q not found in %q", existing, root)
		}
		base.objects.Scan(func(rel string, o *object) bool {
			img.objects.Set(rel, &object{meta: o.meta, content: o.content})
			return true
		})
	}

	e.nextHandle++
	h := engine.ImageHandle(e.nextHandle)
	e.open[h] = img
	return h, nil
}

// AddObject creates an object in the open image and returns a stream for its
// content. Every ancestor of the relative path must already exist as a
// directory; the native engine depends on the caller ordering parents before
// children and this engine makes a violation loud.
func (e *Engine) AddObject(h engine.ImageHandle, relativePath string, meta *engine.FileMetadata) (engine.StreamHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	img, ok := e.open[h]
	if !ok {
		return 0, engine.ErrUnknownHandle
	}
	if relativePath == "" {
		return 0, fmt.Errorf("empty relative path")
	}

	components := strings.Split(relativePath, `\`)
	for i := 1; i < len(components); i++ {
		parent := strings.Join(components[:i], `\`)
		po, ok := img.objects.Get(parent)
		if !ok {
			return 0, fmt.Errorf("missing ancestor directory %q for %q", parent, relativePath)
		}
		if !po.meta.IsDirectory() {
			return 0, fmt.Errorf("ancestor %q of %q is not a directory", parent, relativePath)
		}
	}

	img.objects.Set(relativePath, &object{meta: *meta})

	e.nextHandle++
	s := engine.StreamHandle(e.nextHandle)
	e.streams[s] = &stream{img: img, rel: relativePath}
	return s, nil
}

// WriteStream appends bytes to an open object stream. A zero-length write
// seals the stream; nothing may be written afterwards.
func (e *Engine) WriteStream(s engine.StreamHandle, b []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.streams[s]
	if !ok {
		return engine.ErrUnknownHandle
	}
	if st.sealed {
		return fmt.Errorf("stream for %q already sealed", st.rel)
	}

	if len(b) == 0 {
		st.sealed = true
		return nil
	}

	o, ok := st.img.objects.Get(st.rel)
	if !ok {
		return fmt.Errorf("object %q vanished", st.rel)
	}
	if o.meta.IsDirectory() {
		return fmt.Errorf("content write to directory %q", st.rel)
	}
	o.content = append(o.content, b...)
	return nil
}

// CloseStream releases an object stream. Closing twice is an error so leaks
// of the close-exactly-once contract show up in tests.
func (e *Engine) CloseStream(s engine.StreamHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.streams[s]; !ok {
		return engine.ErrUnknownHandle
	}
	delete(e.streams, s)
	return nil
}

// CreateHardLink links newPath to an object already present in the image.
func (e *Engine) CreateHardLink(h engine.ImageHandle, existingPath, newPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	img, ok := e.open[h]
	if !ok {
		return engine.ErrUnknownHandle
	}

	o, ok := img.objects.Get(existingPath)
	if !ok {
		return fmt.Errorf("hard link target %q not found", existingPath)
	}
	if o.meta.IsDirectory() {
		return fmt.Errorf("hard link target %q is a directory", existingPath)
	}
	img.objects.Set(newPath, o)
	return nil
}

// DeletePath removes a path and everything below it.
func (e *Engine) DeletePath(h engine.ImageHandle, relativePath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	img, ok := e.open[h]
	if !ok {
		return engine.ErrUnknownHandle
	}
	if _, ok := img.objects.Get(relativePath); !ok {
		return fmt.Errorf("path %q not found", relativePath)
	}

	prefix := relativePath + `\`
	var doomed []string
	img.objects.Scan(func(rel string, _ *object) bool {
		if rel == relativePath || strings.HasPrefix(rel, prefix) {
			doomed = append(doomed, rel)
		}
		return true
	})
	for _, rel := range doomed {
		img.objects.Delete(rel)
	}
	return nil
}

// CommitImage seals the open image. The handle stays valid until CloseImage
// releases it, matching the native engine's two-step teardown.
func (e *Engine) CommitImage(h engine.ImageHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	img, ok := e.open[h]
	if !ok {
		return engine.ErrUnknownHandle
	}

	e.committed[imageKey(img.root, img.name)] = img
	return nil
}

// CloseImage releases an image handle. If the image was never committed it
// is simply discarded.
func (e *Engine) CloseImage(h engine.ImageHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.open[h]; !ok {
		return engine.ErrUnknownHandle
	}
	delete(e.open, h)
	return nil
}

// MountImage exposes a committed image as a volume under id.
func (e *Engine) MountImage(root, name string, id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := imageKey(root, name)
	if _, ok := e.committed[key]; !ok {
		return fmt.Errorf("image %q not committed in %q", name, root)
	}
	if mounted, ok := e.volumes[id]; ok {
		return fmt.Errorf("volume %s already mounts %q", id, mounted)
	}
	e.volumes[id] = key
	return nil
}

// DismountImage tears down the volume mounted under id.
func (e *Engine) DismountImage(id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.volumes[id]; !ok {
		return fmt.Errorf("volume %s not mounted", id)
	}
	delete(e.volumes, id)
	return nil
}

// BindMountpoint binds a local path to a mounted volume's device path.
func (e *Engine) BindMountpoint(localPath, volumePath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if bound, ok := e.bindings[localPath]; ok {
		return fmt.Errorf("mountpoint %q already bound to %s", localPath, bound)
	}
	e.bindings[localPath] = volumePath
	return nil
}
