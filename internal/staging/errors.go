package staging

import (
	"fmt"

	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

type StagingErrorCause string

const (
	ErrCauseOpenFailed   StagingErrorCause = "open failed"
	ErrCauseWriteFailed  StagingErrorCause = "write failed"
	ErrCauseReadFailed   StagingErrorCause = "read failed"
	ErrCauseDeleteFailed StagingErrorCause = "delete failed"
	ErrCauseNotStaged    StagingErrorCause = "document not staged"
	ErrCauseCorrupt      StagingErrorCause = "staged document corrupt"
)

// StagingError classifies staging-area failures. A missing or corrupt
// staged document is recoverable (the Transformer drops that one document
// and keeps consuming); everything else means the store itself is broken.
type StagingError struct {
	Cause   StagingErrorCause
	DocID   string
	Message string
}

func (e *StagingError) Error() string {
	if e.DocID != "" {
		return fmt.Sprintf("%s: doc %s: %s", e.Cause, e.DocID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Cause, e.Message)
}

func (e *StagingError) Severity() failure.Severity {
	switch e.Cause {
	case ErrCauseNotStaged, ErrCauseCorrupt:
		return failure.SeverityRecoverable
	default:
		return failure.SeverityFatal
	}
}

var _ failure.ClassifiedError = (*StagingError)(nil)
