package publish

import (
	"fmt"
	"strings"

	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

type PublishErrorCause string

const (
	ErrCauseBatchFailed    PublishErrorCause = "batch failed"
	ErrCauseCommitFailed   PublishErrorCause = "commit failed"
	ErrCauseBudgetExceeded PublishErrorCause = "document budget exceeded"
)

// PublishError carries the ids of every document in the affected batch,
// so Metrics can count each of them as a Publish-phase error.
type PublishError struct {
	Cause   PublishErrorCause
	DocIDs  []string
	Message string
}

func (e *PublishError) Error() string {
	if len(e.DocIDs) > 0 {
		return fmt.Sprintf("%s: docs [%s]: %s", e.Cause, strings.Join(e.DocIDs, ","), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Cause, e.Message)
}

// Severity: a failed batch is dropped and the run continues; a failed
// commit or a reached budget must surface to the run controller.
func (e *PublishError) Severity() failure.Severity {
	switch e.Cause {
	case ErrCauseBatchFailed, ErrCauseBudgetExceeded:
		return failure.SeverityRecoverable
	default:
		return failure.SeverityFatal
	}
}

var _ failure.ClassifiedError = (*PublishError)(nil)
