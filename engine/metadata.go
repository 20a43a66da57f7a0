package engine

// Windows file-attribute bits carried by captured objects. Engines treat the
// mask as opaque apart from the directory bit; the capture layer sets them on
// every platform so behavior stays uniform in tests.
const (
	AttributeReadonly     uint32 = 0x00000001
	AttributeDirectory    uint32 = 0x00000010
	AttributeNormal       uint32 = 0x00000080
	AttributeReparsePoint uint32 = 0x00000400
)

// MaxReparseDataSize is the largest reparse-point payload an object may
// carry, matching MAXIMUM_REPARSE_DATA_BUFFER_SIZE on Windows.
const MaxReparseDataSize = 16 * 1024

// FileMetadata is the engine-ready record describing one object. It is
// constructed per object by the capture layer, consumed by a single AddObject
// call and then discarded.
//
// Timestamps are 64-bit ticks: 100-nanosecond intervals since the Windows
// epoch (January 1, 1601 UTC). FileSize is zero for directories. ReparseData
// is present exactly when the source object is a reparse point.
// SecurityDescriptor and ExtendedAttributes are best-effort and may be nil.
type FileMetadata struct {
	Attributes uint32
	FileSize   int64

	CreationTime   int64
	LastWriteTime  int64
	ChangeTime     int64
	LastAccessTime int64

	ReparseData        []byte
	SecurityDescriptor []byte
	ExtendedAttributes []byte
}

// IsDirectory reports whether the captured object is a directory.
func (m *FileMetadata) IsDirectory() bool {
	return m.Attributes&AttributeDirectory != 0
}

// IsReparsePoint reports whether the captured object is a reparse point.
func (m *FileMetadata) IsReparsePoint() bool {
	return m.Attributes&AttributeReparsePoint != 0
}

// windowsEpochDelta is the number of 100ns ticks between the Windows epoch
// (1601-01-01) and the Unix epoch (1970-01-01).
const windowsEpochDelta = 116444736000000000

// TicksFromUnixNano converts nanoseconds since the Unix epoch into Windows
// filetime ticks.
func TicksFromUnixNano(ns int64) int64 {
	return ns/100 + windowsEpochDelta
}
