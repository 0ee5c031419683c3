package transform

import (
	"fmt"

	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

type TransformErrorCause string

const (
	ErrCauseBodyMalformed    TransformErrorCause = "body malformed"
	ErrCauseContentRejected  TransformErrorCause = "content rejected"
	ErrCauseConversionFailed TransformErrorCause = "conversion failed"
)

// TransformError is always recoverable at the run level: the document is
// dropped from the pipeline and a metric row is still produced.
type TransformError struct {
	Cause   TransformErrorCause
	DocID   string
	Message string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("%s: doc %s: %s", e.Cause, e.DocID, e.Message)
}

func (e *TransformError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

var _ failure.ClassifiedError = (*TransformError)(nil)
