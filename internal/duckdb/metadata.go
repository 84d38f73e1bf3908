package duckdb

import (
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for an input file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file. Standard input
// ("-") has no stable identity and yields a fingerprint with only the path.
func StatFile(path string) (FileFingerprint, error) {
	if path == "-" {
		return FileFingerprint{Path: path}, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Stable reports whether the fingerprint identifies file content, i.e. it
// came from an on-disk file.
func (f FileFingerprint) Stable() bool {
	return f.Path != "-" && !f.ModTime.IsZero()
}

// Same reports whether two fingerprints describe the same file state.
func (f FileFingerprint) Same(o FileFingerprint) bool {
	return f.Path == o.Path && f.Size == o.Size && f.ModTime.Equal(o.ModTime)
}
