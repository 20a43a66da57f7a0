package cim

import (
	"fmt"
	"io"

	"github.com/mwantia/cim/engine"
	"github.com/mwantia/cim/log"
)

// streamChunkSize is the fixed chunk size for copying source content into an
// engine stream.
const streamChunkSize = 64 * 1024

// copyObjectStream copies src into an open engine stream in fixed-size
// chunks, finishing with a zero-length write that signals end-of-stream.
// Directories skip the copy loop entirely. The stream is closed exactly once
// on every exit path; a close failure after a copy failure is logged and
// never allowed to mask the original error. The returned byte count is
// tracked for diagnostics only.
func copyObjectStream(eng engine.Engine, stream engine.StreamHandle, src io.Reader, directory bool, lg *log.Logger) (written int64, err error) {
	defer func() {
		if cerr := eng.CloseStream(stream); cerr != nil {
			lg.Warn("close object stream: %v", cerr)
		}
	}()

	if directory {
		return 0, nil
	}

	buf := make([]byte, streamChunkSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if werr := eng.WriteStream(stream, buf[:n]); werr != nil {
				return written, fmt.Errorf("write stream: %w", werr)
			}
			written += int64(n)
		}
		if rerr == io.EOF {
			if werr := eng.WriteStream(stream, nil); werr != nil {
				return written, fmt.Errorf("finalize stream: %w", werr)
			}
			return written, nil
		}
		if rerr != nil {
			return written, fmt.Errorf("read source: %w", rerr)
		}
	}
}
