package fileio

import (
	"fmt"
	"io"
	"path"
)

const DefaultCopyBufferSize = 0x50000

// CopyOptions tunes a tree copy.
type CopyOptions struct {
	// BufferSize is the chunk size of a single read/write round trip.
	BufferSize int
	// Stage names the operation in error messages, e.g. "backup".
	Stage    string
	Progress ProgressUpdater
	// Limit caps how many bytes of a file are copied, 0 copies everything.
	Limit int64
}

func (o CopyOptions) bufferSize() int {
	if o.BufferSize <= 0 {
		return DefaultCopyBufferSize
	}
	return o.BufferSize
}

// CopyError reports the first failure of a copy together with where it
// happened.
type CopyError struct {
	Stage string
	Path  string
	Err   error
}

func (e *CopyError) Error() string {
	stage := e.Stage
	if stage == "" {
		stage = "copy"
	}
	return fmt.Sprintf("%v failed at %v: %v", stage, e.Path, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// CopyTree recursively copies the content of srcPath in src into dstPath in
// dst. Folders that already exist at the destination are reused. The first
// failure stops the copy and leaves partial output in place.
func CopyTree(src Archive, dst Archive, srcPath string, dstPath string, opts CopyOptions) error {
	entries, err := ListDirectory(src, srcPath)
	if err != nil {
		return &CopyError{Stage: opts.Stage, Path: srcPath, Err: err}
	}

	for _, entry := range entries {
		from := path.Join(srcPath, entry.Name)
		to := path.Join(dstPath, entry.Name)
		if entry.IsFolder {
			if err := dst.CreateDirectory(to); err != nil && !IsAlreadyExists(err) {
				return &CopyError{Stage: opts.Stage, Path: to, Err: err}
			}
			if err := CopyTree(src, dst, from, to, opts); err != nil {
				return err
			}
			continue
		}
		if err := CopyFile(src, dst, from, to, opts); err != nil {
			return err
		}
	}
	return nil
}

// CopyFile copies a single file in chunks of opts.BufferSize, reporting
// progress after every chunk. Bytes past opts.Limit are left behind.
func CopyFile(src Archive, dst Archive, srcPath string, dstPath string, opts CopyOptions) error {
	input, err := OpenRead(src, srcPath)
	if err != nil {
		return &CopyError{Stage: opts.Stage, Path: srcPath, Err: err}
	}
	defer input.Close()
	if opts.Limit > 0 && input.size > opts.Limit {
		input.size = opts.Limit
	}

	output, err := OpenWriteCreate(dst, dstPath, input.Size())
	if err != nil {
		return &CopyError{Stage: opts.Stage, Path: dstPath, Err: err}
	}

	total := int(input.Size())
	buf := make([]byte, opts.bufferSize())
	for !input.AtEnd() {
		n := input.Read(buf)
		if n == 0 {
			break
		}
		written := output.Write(buf[:n])
		if output.Result() != nil {
			break
		}
		if written != n {
			output.Close()
			return &CopyError{Stage: opts.Stage, Path: dstPath, Err: newError("write", dstPath, ErrIOFailure, io.ErrShortWrite)}
		}
		if opts.Progress != nil {
			opts.Progress.UpdateProgress(int(input.Offset()), total, srcPath)
		}
	}
	output.Close()

	if err := input.Result(); err != nil {
		return &CopyError{Stage: opts.Stage, Path: srcPath, Err: err}
	}
	if err := output.Result(); err != nil {
		return &CopyError{Stage: opts.Stage, Path: dstPath, Err: err}
	}
	if !input.AtEnd() {
		return &CopyError{Stage: opts.Stage, Path: srcPath, Err: newError("read", srcPath, ErrIOFailure, io.ErrUnexpectedEOF)}
	}
	return nil
}
