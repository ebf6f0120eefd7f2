package fileio

import (
	"errors"
	"fmt"
)

// Platform result codes surfaced to the user next to error messages.
const (
	ResultSuccess           uint32 = 0
	ResultAlreadyExists     uint32 = 0xC82044B9
	ResultFileAlreadyExists uint32 = 0xC82044BE
	ResultNotFound          uint32 = 0xC8804478
	ResultFailure           uint32 = 0xC8804464
	ResultNotSupported      uint32 = 0xE0C046FA
)

var (
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrDirectoryUnreadable = errors.New("directory unreadable")
	ErrIOFailure           = errors.New("i/o failure")
	ErrAlreadyExists       = errors.New("already exists")
	ErrNotFound            = errors.New("not found")
	ErrNotSupported        = errors.New("operation not supported")
	ErrNoCard              = errors.New("no card inserted")
)

// Error describes a failed storage operation together with the platform
// result code it produced.
type Error struct {
	Op   string
	Path string
	Code uint32
	Kind error
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return fmt.Sprintf("%v (0x%08X)", msg, e.Code)
}

func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(op string, p string, kind error, err error) *Error {
	return &Error{Op: op, Path: p, Code: ResultCode(err), Kind: kind, Err: err}
}

// ResultCode returns the platform result code carried by err, ResultSuccess
// for a nil error and ResultFailure when err carries no code.
func ResultCode(err error) uint32 {
	if err == nil {
		return ResultSuccess
	}
	var fsErr *Error
	if errors.As(err, &fsErr) && fsErr.Code != ResultSuccess {
		return fsErr.Code
	}
	return ResultFailure
}

// IsAlreadyExists reports whether err is the platform "already exists" result
// for either a directory or a file.
func IsAlreadyExists(err error) bool {
	if errors.Is(err, ErrAlreadyExists) {
		return true
	}
	code := ResultCode(err)
	return code == ResultAlreadyExists || code == ResultFileAlreadyExists
}
