package urimatch

import (
	"fmt"

	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

// MatchError is returned when loading rule files or validating start
// entries fails: a Cause enum plus a message.
type MatchError struct {
	Cause   MatchErrorCause
	Message string
	URI     string
}

type MatchErrorCause string

const (
	ErrCauseRuleFileUnreadable MatchErrorCause = "rule file unreadable"
	ErrCauseInvalidRegex       MatchErrorCause = "invalid ignore regex"
	ErrCauseStartUnreachable   MatchErrorCause = "start unreachable"
)

func (e *MatchError) Error() string {
	if e.URI != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Cause, e.Message, e.URI)
	}
	return fmt.Sprintf("%s: %s", e.Cause, e.Message)
}

func (e *MatchError) Severity() failure.Severity {
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*MatchError)(nil)
