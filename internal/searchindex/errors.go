package searchindex

import (
	"fmt"

	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

type IndexErrorCause string

const (
	ErrCauseUnreachable    IndexErrorCause = "index unreachable"
	ErrCauseRejected       IndexErrorCause = "update rejected"
	ErrCauseCommitFailed   IndexErrorCause = "commit failed"
	ErrCauseEncodingFailed IndexErrorCause = "encoding failed"
)

// IndexError is raised by the HTTP index client. Transient failures
// (network errors, 5xx) are retryable; rejections (4xx) are not.
type IndexError struct {
	Cause     IndexErrorCause
	Message   string
	Retryable bool
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: %s", e.Cause, e.Message)
}

func (e *IndexError) Severity() failure.Severity {
	return failure.SeverityFatal
}

func (e *IndexError) IsRetryable() bool {
	return e.Retryable
}

var (
	_ failure.ClassifiedError = (*IndexError)(nil)
	_ failure.Retryable       = (*IndexError)(nil)
)
