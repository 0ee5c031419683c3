package fileshare

import (
	"fmt"

	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

type FileShareErrorCause string

const (
	ErrCauseWalkFailed  FileShareErrorCause = "directory walk failed"
	ErrCauseReadFailed  FileShareErrorCause = "file read failed"
	ErrCauseCSVMalformed FileShareErrorCause = "csv row malformed"
)

// FileShareError wraps a single path's extraction failure; recoverable so
// one unreadable file never aborts the whole walk.
type FileShareError struct {
	Cause   FileShareErrorCause
	Path    string
	Message string
}

func (e *FileShareError) Error() string {
	return fmt.Sprintf("fileshare extract: %s: %s (%s)", e.Cause, e.Message, e.Path)
}

func (e *FileShareError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

var _ failure.ClassifiedError = (*FileShareError)(nil)
