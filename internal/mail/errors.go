package mail

import (
	"fmt"

	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

type MailErrorCause string

const (
	ErrCauseComposeFailed MailErrorCause = "compose failed"
	ErrCauseSendFailed    MailErrorCause = "send failed"
	ErrCauseNotConfigured MailErrorCause = "mail not configured"
)

// MailError is always recoverable: a run outcome that cannot be mailed is
// still logged, and the run's own result stands.
type MailError struct {
	Cause   MailErrorCause
	Message string
}

func (e *MailError) Error() string {
	return fmt.Sprintf("%s: %s", e.Cause, e.Message)
}

func (e *MailError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

var _ failure.ClassifiedError = (*MailError)(nil)
