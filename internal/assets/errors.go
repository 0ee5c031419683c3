package assets

import (
	"fmt"

	"github.com/rohmanhakim/connector-etl/internal/metadata"
	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

type AssetsErrorCause string

const (
	ErrCauseImageDownloadFailure  AssetsErrorCause = "failed to download image"
	ErrCauseNetworkFailure        AssetsErrorCause = "network issues"
	ErrCauseHashError             AssetsErrorCause = "failed to hash asset content"
	ErrCauseWriteFailure          AssetsErrorCause = "failed to write asset"
	ErrCausePathError             AssetsErrorCause = "failed to create asset directory"
	ErrCauseAssetTooLarge         AssetsErrorCause = "asset too large"
	ErrCauseDiskFull              AssetsErrorCause = "disk full"
	ErrCauseReadResponseBodyError AssetsErrorCause = "failed to read response body"
	ErrCauseRedirectLimitExceeded AssetsErrorCause = "reached redirect limit"
	ErrCauseRequestPageForbidden  AssetsErrorCause = "forbidden"
	ErrCauseRequestTooMany        AssetsErrorCause = "too many requests"
	ErrCauseRequest5xx            AssetsErrorCause = "5xx"
)

type AssetsError struct {
	Message   string
	Retryable bool
	Cause     AssetsErrorCause
}

func (e *AssetsError) Error() string {
	return fmt.Sprintf("assets error: %s", e.Cause)
}

func (e *AssetsError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapAssetsErrorToMetadataCause maps assets-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapAssetsErrorToMetadataCause(err AssetsError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseImageDownloadFailure, ErrCauseNetworkFailure, ErrCauseReadResponseBodyError,
		ErrCauseRedirectLimitExceeded, ErrCauseRequest5xx:
		return metadata.CauseNetworkFailure
	case ErrCauseRequestPageForbidden, ErrCauseRequestTooMany:
		return metadata.CausePolicyDisallow
	case ErrCausePathError, ErrCauseWriteFailure, ErrCauseDiskFull:
		return metadata.CauseStorageFailure
	default:
		return metadata.CauseUnknown
	}
}
