package cim

import (
	"fmt"
	"os"

	"github.com/mwantia/cim/engine"
)

// SourceFile is an open, read-only handle to a source object. On Windows the
// handle is opened with backup semantics (so directories open like files) and
// reparse-point-open semantics (so the reparse point itself is captured, not
// its target). The platform-specific OpenSource and Capture live in the
// capture_* files.
type SourceFile struct {
	f    *os.File
	path string
}

// Path returns the path the source was opened from.
func (s *SourceFile) Path() string {
	return s.path
}

// Read reads content bytes from the source handle.
func (s *SourceFile) Read(p []byte) (int, error) {
	return s.f.Read(p)
}

// Close releases the source handle.
func (s *SourceFile) Close() error {
	return s.f.Close()
}

// checkReparseSize guards the fixed reparse capture buffer. A payload larger
// than the buffer is a hard failure for the object; there is no partial
// capture.
func checkReparseSize(n int) error {
	if n > engine.MaxReparseDataSize {
		return fmt.Errorf("%w: %d bytes, capture buffer holds %d", ErrBufferOverflow, n, engine.MaxReparseDataSize)
	}
	return nil
}
