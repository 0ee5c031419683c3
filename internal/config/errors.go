package config

import (
	"fmt"

	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

// ConfigErrorCause classifies why Load/Build failed: a Cause enum per
// package, same convention as every other errors.go here.
type ConfigErrorCause string

const (
	ErrCauseFileUnreadable   ConfigErrorCause = "file unreadable"
	ErrCauseDecodeFailed     ConfigErrorCause = "decode failed"
	ErrCauseValidationFailed ConfigErrorCause = "validation failed"
)

// ConfigError is fatal-init: the Run Controller must never enter
// Starting with one of these outstanding.
type ConfigError struct {
	Cause   ConfigErrorCause
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Cause, e.Message)
}

func (e *ConfigError) Severity() failure.Severity {
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*ConfigError)(nil)
