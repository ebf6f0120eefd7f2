package process

import (
	"errors"
	"fmt"

	"github.com/giwty/save-backup-manager/fileio"
)

var (
	ErrUserCancelled    = errors.New("operation cancelled by user")
	ErrSentinelSelected = errors.New("the new backup entry cannot be restored or deleted")
	ErrTitleNotFound    = errors.New("title not found in the catalog")
	ErrInvalidIndex     = errors.New("backup index out of range")
)

// OperationError is a failed backup, restore or delete. Message is the text
// shown to the user, Code the result code of the failing storage call.
type OperationError struct {
	Code    uint32
	Message string
	Err     error
}

func newOperationError(message string, err error) *OperationError {
	return &OperationError{Code: fileio.ResultCode(err), Message: message, Err: err}
}

func (e *OperationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v [0x%08X]", e.Message, e.Code)
	}
	return fmt.Sprintf("%v [0x%08X]: %v", e.Message, e.Code, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
