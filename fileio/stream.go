package fileio

import (
	"errors"
	"io"
)

// Stream is a file opened inside an archive with an implicit cursor.
type Stream struct {
	handle FileHandle
	path   string
	size   int64
	offset int64
	result error
}

// OpenRead opens p for reading.
func OpenRead(archive Archive, p string) (*Stream, error) {
	handle, err := archive.OpenFile(p, OpenModeRead)
	if err != nil {
		return nil, newError("open", p, ErrIOFailure, err)
	}
	size, err := handle.Size()
	if err != nil {
		handle.Close()
		return nil, newError("stat", p, ErrIOFailure, err)
	}
	return &Stream{handle: handle, path: p, size: size}, nil
}

// OpenWriteCreate opens p for writing. When the file does not exist yet it is
// created with exactly size bytes first.
func OpenWriteCreate(archive Archive, p string, size int64) (*Stream, error) {
	handle, err := archive.OpenFile(p, OpenModeWrite)
	if err != nil {
		if createErr := archive.CreateFile(p, size); createErr != nil {
			return nil, newError("create", p, ErrIOFailure, createErr)
		}
		handle, err = archive.OpenFile(p, OpenModeWrite)
		if err != nil {
			return nil, newError("open", p, ErrIOFailure, err)
		}
	}
	return &Stream{handle: handle, path: p, size: size}, nil
}

// Read reads into p from the cursor. A short count is not an error; backend
// failures are kept as the stream result.
func (s *Stream) Read(p []byte) int {
	if s.result != nil || s.AtEnd() {
		return 0
	}
	if remaining := s.size - s.offset; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := s.handle.ReadAt(p, s.offset)
	s.offset += int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		s.result = newError("read", s.path, ErrIOFailure, err)
	}
	return n
}

// Write writes p at the cursor.
func (s *Stream) Write(p []byte) int {
	if s.result != nil {
		return 0
	}
	n, err := s.handle.WriteAt(p, s.offset)
	s.offset += int64(n)
	if s.offset > s.size {
		s.size = s.offset
	}
	if err != nil {
		s.result = newError("write", s.path, ErrIOFailure, err)
	}
	return n
}

func (s *Stream) AtEnd() bool {
	return s.offset >= s.size
}

func (s *Stream) Size() int64 {
	return s.size
}

func (s *Stream) Offset() int64 {
	return s.offset
}

// Result is the first backend error seen by the stream, or nil.
func (s *Stream) Result() error {
	return s.result
}

func (s *Stream) Close() error {
	if err := s.handle.Close(); err != nil {
		closeErr := newError("close", s.path, ErrIOFailure, err)
		if s.result == nil {
			s.result = closeErr
		}
		return closeErr
	}
	return nil
}

// ReadFile reads the whole content of p.
func ReadFile(archive Archive, p string) ([]byte, error) {
	stream, err := OpenRead(archive, p)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	data := make([]byte, stream.Size())
	read := 0
	for !stream.AtEnd() {
		n := stream.Read(data[read:])
		if stream.Result() != nil {
			return nil, stream.Result()
		}
		if n == 0 {
			break
		}
		read += n
	}
	return data[:read], nil
}

// WriteFile replaces p with data.
func WriteFile(archive Archive, p string, data []byte) error {
	if err := archive.DeleteFile(p); err != nil && !errors.Is(err, ErrNotFound) {
		return newError("delete", p, ErrIOFailure, err)
	}
	stream, err := OpenWriteCreate(archive, p, int64(len(data)))
	if err != nil {
		return err
	}
	written := 0
	for written < len(data) {
		n := stream.Write(data[written:])
		if stream.Result() != nil || n == 0 {
			break
		}
		written += n
	}
	stream.Close()
	if stream.Result() != nil {
		return stream.Result()
	}
	if written != len(data) {
		return newError("write", p, ErrIOFailure, io.ErrShortWrite)
	}
	return nil
}
