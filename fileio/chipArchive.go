package fileio

import (
	"fmt"
	"io"
	"path"
)

// ChipSaveFile is the only file of a ChipArchive.
const ChipSaveFile = "/save.bin"

// ChipArchive presents the save memory of a raw cartridge as an archive
// holding a single file, so the regular file copy can move it. Reads are
// issued in sectors, writes in pages of the chip.
type ChipArchive struct {
	chip Chip
}

func NewChipArchive(chip Chip) *ChipArchive {
	return &ChipArchive{chip: chip}
}

// SectorSize is the read chunk size used for backups.
func (c *ChipArchive) SectorSize() int {
	capacity := c.chip.Type().Capacity()
	if capacity > 0x10000 {
		return 0x10000
	}
	return int(capacity)
}

// PageSize is the write chunk size used for restores.
func (c *ChipArchive) PageSize() int {
	return c.chip.Type().PageSize()
}

func (c *ChipArchive) unsupported(op string, p string) error {
	return &Error{Op: op, Path: p, Code: ResultNotSupported, Kind: ErrNotSupported}
}

func (c *ChipArchive) OpenDirectory(p string) (DirHandle, error) {
	if path.Clean("/"+p) != "/" {
		return nil, &Error{Op: "open directory", Path: p, Code: ResultNotFound, Kind: ErrNotFound}
	}
	return &chipDir{}, nil
}

func (c *ChipArchive) OpenFile(p string, flag OpenFlag) (FileHandle, error) {
	if path.Clean("/"+p) != ChipSaveFile {
		return nil, &Error{Op: "open file", Path: p, Code: ResultNotFound, Kind: ErrNotFound}
	}
	if !c.chip.Type().Valid() {
		return nil, &Error{Op: "open file", Path: p, Code: ResultFailure, Kind: ErrStorageUnavailable}
	}
	if flag == OpenModeWrite && c.chip.Type() == ChipFlash8MB {
		return nil, c.unsupported("open file", p)
	}
	return &chipFile{chip: c.chip}, nil
}

func (c *ChipArchive) CreateFile(p string, size int64) error {
	if path.Clean("/"+p) != ChipSaveFile {
		return c.unsupported("create file", p)
	}
	return &Error{Op: "create file", Path: p, Code: ResultFileAlreadyExists, Kind: ErrAlreadyExists}
}

func (c *ChipArchive) CreateDirectory(p string) error {
	return c.unsupported("create directory", p)
}

func (c *ChipArchive) DeleteFile(p string) error {
	return c.unsupported("delete file", p)
}

func (c *ChipArchive) DeleteDirectoryRecursively(p string) error {
	return c.unsupported("delete directory", p)
}

func (c *ChipArchive) Close() error {
	return nil
}

type chipDir struct {
	done bool
}

func (d *chipDir) Read(entries []Entry) (int, error) {
	if d.done || len(entries) == 0 {
		return 0, nil
	}
	d.done = true
	entries[0] = Entry{Name: path.Base(ChipSaveFile)}
	return 1, nil
}

func (d *chipDir) Close() error {
	return nil
}

type chipFile struct {
	chip Chip
}

func (f *chipFile) ReadAt(p []byte, off int64) (int, error) {
	capacity := f.chip.Type().Capacity()
	if off >= capacity {
		return 0, io.EOF
	}
	if remaining := capacity - off; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	if err := f.chip.ReadSaveData(off, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (f *chipFile) WriteAt(p []byte, off int64) (int, error) {
	capacity := f.chip.Type().Capacity()
	if off+int64(len(p)) > capacity {
		return 0, fmt.Errorf("write of %d bytes at 0x%X exceeds chip capacity 0x%X", len(p), off, capacity)
	}
	pageSize := f.chip.Type().PageSize()
	written := 0
	for written < len(p) {
		end := written + pageSize
		if end > len(p) {
			end = len(p)
		}
		if err := f.chip.WriteSaveData(off+int64(written), p[written:end]); err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}

func (f *chipFile) Size() (int64, error) {
	return f.chip.Type().Capacity(), nil
}

func (f *chipFile) Close() error {
	return nil
}
