package fileio

import (
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/avast/retry-go"
)

// DirArchive exposes a host directory through the Archive interface. It is
// the plain SD card filesystem, and the backing store of emulated
// containers.
type DirArchive struct {
	root     string
	attempts uint
	delay    time.Duration
}

type DirArchiveOption func(*DirArchive)

// WithRetry sets how many times a failing open is attempted before giving
// up. Missing files and permission errors are never retried.
func WithRetry(attempts uint, delay time.Duration) DirArchiveOption {
	return func(d *DirArchive) {
		if attempts == 0 {
			attempts = 1
		}
		d.attempts = attempts
		d.delay = delay
	}
}

func NewDirArchive(root string, opts ...DirArchiveOption) *DirArchive {
	d := &DirArchive{root: root, attempts: 3, delay: 50 * time.Millisecond}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DirArchive) Root() string {
	return d.root
}

func (d *DirArchive) hostPath(p string) string {
	return filepath.Join(d.root, filepath.FromSlash(path.Clean("/"+p)))
}

func (d *DirArchive) open(name string, flag int) (*os.File, error) {
	var file *os.File
	var lastErr error
	retry.Do(
		func() error {
			file, lastErr = os.OpenFile(name, flag, 0)
			return lastErr
		},
		retry.Attempts(d.attempts),
		retry.Delay(d.delay),
		retry.RetryIf(func(err error) bool {
			return !os.IsNotExist(err) && !os.IsExist(err) && !os.IsPermission(err)
		}),
	)
	return file, lastErr
}

func (d *DirArchive) OpenDirectory(p string) (DirHandle, error) {
	file, err := d.open(d.hostPath(p), os.O_RDONLY)
	if err != nil {
		return nil, hostError("open directory", p, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, hostError("open directory", p, err)
	}
	if !info.IsDir() {
		file.Close()
		return nil, &Error{Op: "open directory", Path: p, Code: ResultNotFound, Kind: ErrNotFound}
	}
	return &hostDir{file: file}, nil
}

func (d *DirArchive) OpenFile(p string, flag OpenFlag) (FileHandle, error) {
	mode := os.O_RDONLY
	if flag == OpenModeWrite {
		mode = os.O_WRONLY
	}
	file, err := d.open(d.hostPath(p), mode)
	if err != nil {
		return nil, hostError("open file", p, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, hostError("open file", p, err)
	}
	if info.IsDir() {
		file.Close()
		return nil, &Error{Op: "open file", Path: p, Code: ResultNotFound, Kind: ErrNotFound}
	}
	return &hostFile{file: file}, nil
}

func (d *DirArchive) CreateFile(p string, size int64) error {
	file, err := os.OpenFile(d.hostPath(p), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return &Error{Op: "create file", Path: p, Code: ResultFileAlreadyExists, Kind: ErrAlreadyExists, Err: err}
		}
		return hostError("create file", p, err)
	}
	defer file.Close()
	if err := file.Truncate(size); err != nil {
		return hostError("create file", p, err)
	}
	return nil
}

func (d *DirArchive) CreateDirectory(p string) error {
	if err := os.Mkdir(d.hostPath(p), 0755); err != nil {
		return hostError("create directory", p, err)
	}
	return nil
}

func (d *DirArchive) DeleteFile(p string) error {
	if err := os.Remove(d.hostPath(p)); err != nil {
		return hostError("delete file", p, err)
	}
	return nil
}

func (d *DirArchive) DeleteDirectoryRecursively(p string) error {
	if path.Clean("/"+p) != "/" {
		if err := os.RemoveAll(d.hostPath(p)); err != nil {
			return hostError("delete directory", p, err)
		}
		return nil
	}

	entries, err := os.ReadDir(d.root)
	if err != nil {
		return hostError("delete directory", p, err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(d.root, entry.Name())); err != nil {
			return hostError("delete directory", path.Join("/", entry.Name()), err)
		}
	}
	return nil
}

func (d *DirArchive) Close() error {
	return nil
}

func hostError(op string, p string, err error) *Error {
	switch {
	case os.IsNotExist(err):
		return &Error{Op: op, Path: p, Code: ResultNotFound, Kind: ErrNotFound, Err: err}
	case os.IsExist(err):
		return &Error{Op: op, Path: p, Code: ResultAlreadyExists, Kind: ErrAlreadyExists, Err: err}
	}
	return &Error{Op: op, Path: p, Code: ResultFailure, Kind: ErrIOFailure, Err: err}
}

type hostDir struct {
	file *os.File
}

func (h *hostDir) Read(entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	items, err := h.file.ReadDir(len(entries))
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	for i, item := range items {
		entries[i] = Entry{Name: item.Name(), IsFolder: item.IsDir()}
	}
	return len(items), nil
}

func (h *hostDir) Close() error {
	return h.file.Close()
}

type hostFile struct {
	file *os.File
}

func (h *hostFile) ReadAt(p []byte, off int64) (int, error) {
	return h.file.ReadAt(p, off)
}

func (h *hostFile) WriteAt(p []byte, off int64) (int, error) {
	return h.file.WriteAt(p, off)
}

func (h *hostFile) Size() (int64, error) {
	info, err := h.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (h *hostFile) Close() error {
	return h.file.Close()
}
