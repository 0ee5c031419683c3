package failure

import "fmt"

// Kind is the closed set of error kinds named in the pipeline's error
// handling design. Every ClassifiedError the pipeline raises carries one
// of these, so the run controller can switch on it without string
// matching.
type Kind string

const (
	KindConfigMissing     Kind = "ConfigMissing"
	KindStartUnreachable  Kind = "StartUnreachable"
	KindLockBusy          Kind = "LockBusy"
	KindExtractFailed     Kind = "ExtractFailed"
	KindTransformFailed   Kind = "TransformFailed"
	KindPublishFailed     Kind = "PublishFailed"
	KindIndexUnavailable  Kind = "IndexUnavailable"
	KindBudgetExceeded    Kind = "BudgetExceeded"
	KindAborted           Kind = "Aborted"
	KindFlushTimeout      Kind = "FlushTimeout"
	KindNotImplemented    Kind = "NotImplemented"
)

// PipelineError is the single sum type every pipeline-raised
// ClassifiedError is expressed as, collapsing the checked-exception-style
// hierarchy the source used into one shape.
type PipelineError struct {
	kind      Kind
	message   string
	docIDs    []string
	cause     error
	retryable bool
}

func New(kind Kind, message string) *PipelineError {
	return &PipelineError{kind: kind, message: message}
}

func Wrap(kind Kind, message string, cause error) *PipelineError {
	return &PipelineError{kind: kind, message: message, cause: cause}
}

// WithDocIDs attaches the affected document ids (ExtractFailed,
// TransformFailed, PublishFailed all carry at least one).
func (e *PipelineError) WithDocIDs(ids ...string) *PipelineError {
	e.docIDs = ids
	return e
}

func (e *PipelineError) WithRetryable(retryable bool) *PipelineError {
	e.retryable = retryable
	return e
}

func (e *PipelineError) Kind() Kind        { return e.kind }
func (e *PipelineError) DocIDs() []string  { return e.docIDs }
func (e *PipelineError) Unwrap() error     { return e.cause }
func (e *PipelineError) IsRetryable() bool { return e.retryable }

func (e *PipelineError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

// Severity implements ClassifiedError. Per-document kinds
// (Extract/Transform/PublishFailed) and the cap-driven BudgetExceeded are
// recoverable at the run level: the run controller counts them and keeps
// going. Everything else is fatal to the run in progress.
func (e *PipelineError) Severity() Severity {
	switch e.kind {
	case KindExtractFailed, KindTransformFailed, KindPublishFailed, KindBudgetExceeded:
		return SeverityRecoverable
	default:
		return SeverityFatal
	}
}

var _ ClassifiedError = (*PipelineError)(nil)
var _ Retryable = (*PipelineError)(nil)
