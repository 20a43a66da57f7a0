//go:build !windows

package cim

import (
	"fmt"
	"os"

	"github.com/mwantia/cim/engine"
)

// OpenSource opens path for metadata capture and content streaming. Backup
// and reparse-point semantics only exist on Windows; on other hosts this is a
// plain read-only open so the pipeline stays testable everywhere.
func OpenSource(path string) (*SourceFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPath, path, err)
	}
	return &SourceFile{f: f, path: path}, nil
}

// Capture reads the source object's attributes, timestamps and size into an
// engine-ready metadata record. Symlinks stand in for reparse points, with
// the link target as the reparse payload. Security descriptors and extended
// attributes have no portable equivalent and are omitted.
func (s *SourceFile) Capture() (*engine.FileMetadata, error) {
	info, err := os.Lstat(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPath, s.path, err)
	}

	ticks := engine.TicksFromUnixNano(info.ModTime().UnixNano())
	meta := &engine.FileMetadata{
		CreationTime:   ticks,
		LastWriteTime:  ticks,
		ChangeTime:     ticks,
		LastAccessTime: ticks,
	}

	switch {
	case info.IsDir():
		meta.Attributes |= engine.AttributeDirectory

	case info.Mode()&os.ModeSymlink != 0:
		meta.Attributes |= engine.AttributeReparsePoint
		target, err := os.Readlink(s.path)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPath, s.path, err)
		}
		if err := checkReparseSize(len(target)); err != nil {
			return nil, err
		}
		meta.ReparseData = []byte(target)

	default:
		meta.Attributes |= engine.AttributeNormal
		meta.FileSize = info.Size()
	}

	return meta, nil
}
