package validation

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// DefaultMinFreeBytes is the free space below which preflight warns. The
// sqlite database and rotated logs stay well under it.
const DefaultMinFreeBytes uint64 = 100 * humanize.MByte

// DiskSpaceInfo describes the filesystem holding a path.
type DiskSpaceInfo struct {
	Path  string
	Total uint64
	Free  uint64
}

// UsedPercent is 0 when Total is unknown.
func (d DiskSpaceInfo) UsedPercent() float64 {
	if d.Total == 0 {
		return 0
	}
	return float64(d.Total-d.Free) / float64(d.Total) * 100
}

func (d DiskSpaceInfo) String() string {
	return fmt.Sprintf("%s free of %s", humanize.IBytes(d.Free), humanize.IBytes(d.Total))
}

// DiskSpaceError reports too little free space.
type DiskSpaceError struct {
	Path      string
	Required  uint64
	Available uint64
}

func (e *DiskSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space at %s: need %s, have %s",
		e.Path, humanize.IBytes(e.Required), humanize.IBytes(e.Available))
}

// GetDiskSpace reports on the filesystem containing path. A path that does
// not exist yet is resolved to its nearest existing ancestor.
func GetDiskSpace(path string) (*DiskSpaceInfo, error) {
	dir, err := existingDir(path)
	if err != nil {
		return nil, err
	}
	total, free, err := getDiskSpace(dir)
	if err != nil {
		return nil, fmt.Errorf("disk space for %s: %w", dir, err)
	}
	return &DiskSpaceInfo{Path: dir, Total: total, Free: free}, nil
}

// CheckDiskSpace returns a *DiskSpaceError when less than required bytes
// are free at path.
func CheckDiskSpace(path string, required uint64) (*DiskSpaceInfo, error) {
	info, err := GetDiskSpace(path)
	if err != nil {
		return nil, err
	}
	if info.Free < required {
		return info, &DiskSpaceError{Path: info.Path, Required: required, Available: info.Free}
	}
	return info, nil
}

func existingDir(path string) (string, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		info, err := os.Stat(p)
		if err == nil {
			if info.IsDir() {
				return p, nil
			}
			return filepath.Dir(p), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("cannot access %s: %w", p, err)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", fmt.Errorf("no existing ancestor for %s", path)
		}
		p = parent
	}
}
