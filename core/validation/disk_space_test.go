package validation

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetDiskSpace(t *testing.T) {
	dir := t.TempDir()

	info, err := GetDiskSpace(dir)
	if err != nil {
		t.Fatalf("GetDiskSpace() error = %v", err)
	}
	if info.Total == 0 || info.Free > info.Total {
		t.Errorf("info = %+v", info)
	}
	if p := info.UsedPercent(); p < 0 || p > 100 {
		t.Errorf("UsedPercent() = %v", p)
	}

	t.Run("missing path resolves to ancestor", func(t *testing.T) {
		info, err := GetDiskSpace(filepath.Join(dir, "a", "b", "c"))
		if err != nil {
			t.Fatal(err)
		}
		if info.Path != dir {
			t.Errorf("Path = %q, want %q", info.Path, dir)
		}
	})

	t.Run("file resolves to its directory", func(t *testing.T) {
		file := filepath.Join(dir, "x.db")
		os.WriteFile(file, []byte("x"), 0o644)
		info, err := GetDiskSpace(file)
		if err != nil {
			t.Fatal(err)
		}
		if info.Path != dir {
			t.Errorf("Path = %q, want %q", info.Path, dir)
		}
	})
}

func TestCheckDiskSpace(t *testing.T) {
	dir := t.TempDir()

	if _, err := CheckDiskSpace(dir, 1); err != nil {
		t.Errorf("CheckDiskSpace(1 byte) error = %v", err)
	}

	info, err := CheckDiskSpace(dir, math.MaxUint64)
	var dse *DiskSpaceError
	if !errors.As(err, &dse) {
		t.Fatalf("error = %v, want *DiskSpaceError", err)
	}
	if info == nil || dse.Available != info.Free {
		t.Errorf("info = %+v, err = %+v", info, dse)
	}
	if !strings.Contains(err.Error(), "insufficient disk space") {
		t.Errorf("message = %q", err)
	}
}

func TestDiskSpaceInfo_String(t *testing.T) {
	info := DiskSpaceInfo{Total: 2048, Free: 1024}
	if got := info.String(); got != "1.0 KiB free of 2.0 KiB" {
		t.Errorf("String() = %q", got)
	}
	if info.UsedPercent() != 50 {
		t.Errorf("UsedPercent() = %v", info.UsedPercent())
	}
	if (DiskSpaceInfo{}).UsedPercent() != 0 {
		t.Error("zero total should report 0%")
	}
}
