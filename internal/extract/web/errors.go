package web

import (
	"fmt"

	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

type WebExtractErrorCause string

const (
	ErrCauseFetchExhausted WebExtractErrorCause = "fetch attempts exhausted"
	ErrCauseRobotsDenied   WebExtractErrorCause = "disallowed by robots.txt"
	ErrCauseJsAwareUnset   WebExtractErrorCause = "js-aware mode not implemented"
)

// WebExtractError wraps a single page's extraction failure; Run records it
// on the metadata sink and moves on to the next page, so a single bad page
// never aborts the crawl.
type WebExtractError struct {
	Cause   WebExtractErrorCause
	URL     string
	Message string
}

func (e *WebExtractError) Error() string {
	return fmt.Sprintf("web extract: %s: %s (%s)", e.Cause, e.Message, e.URL)
}

func (e *WebExtractError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

var _ failure.ClassifiedError = (*WebExtractError)(nil)
