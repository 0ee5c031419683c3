package metadata

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

import (
	"time"

	"go.uber.org/zap"
)

// Recorder is the MetadataSink/CrawlFinalizer backend: every event is
// written as a structured zap log line tagged with the worker that
// produced it. It keeps no in-memory history of its own — aggregation
// lives in internal/metrics, which is fed from completed queue items
// rather than from these events.
type Recorder struct {
	workerID string
	logger   *zap.Logger
}

// NewRecorder builds a Recorder that logs through logger, tagging every
// line with workerID so concurrent workers' events can be told apart.
func NewRecorder(workerID string, logger *zap.Logger) Recorder {
	return Recorder{
		workerID: workerID,
		logger:   logger.With(zap.String("worker_id", workerID)),
	}
}

func (r *Recorder) RecordFetch(fetchURL string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
	r.logger.Info("fetch recorded",
		zap.String("url", fetchURL),
		zap.Int("http_status", httpStatus),
		zap.Duration("duration", duration),
		zap.String("content_type", contentType),
		zap.Int("retry_count", retryCount),
		zap.Int("crawl_depth", crawlDepth),
	)
}

func (r *Recorder) RecordAssetFetch(fetchURL string, httpStatus int, duration time.Duration, retryCount int) {
	r.logger.Info("asset fetch recorded",
		zap.String("url", fetchURL),
		zap.Int("http_status", httpStatus),
		zap.Duration("duration", duration),
		zap.Int("retry_count", retryCount),
	)
}

func (r *Recorder) RecordError(observedAt time.Time, packageName, action string, cause ErrorCause, errorString string, attrs []Attribute) {
	fields := make([]zap.Field, 0, len(attrs)+4)
	fields = append(fields,
		zap.Time("observed_at", observedAt),
		zap.String("package", packageName),
		zap.String("action", action),
		zap.Int("cause", int(cause)),
	)
	for _, a := range attrs {
		fields = append(fields, zap.String(string(a.Key), a.Value))
	}
	r.logger.Error(errorString, fields...)
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	fields := make([]zap.Field, 0, len(attrs)+2)
	fields = append(fields,
		zap.String("kind", string(kind)),
		zap.String("path", path),
	)
	for _, a := range attrs {
		fields = append(fields, zap.String(string(a.Key), a.Value))
	}
	r.logger.Info("artifact recorded", fields...)
}

func (r *Recorder) RecordFinalCrawlStats(totalPages, totalErrors, totalAssets int, duration time.Duration) {
	r.logger.Info("crawl finished",
		zap.Int("total_pages", totalPages),
		zap.Int("total_errors", totalErrors),
		zap.Int("total_assets", totalAssets),
		zap.Duration("duration", duration),
	)
}

var (
	_ MetadataSink   = (*Recorder)(nil)
	_ CrawlFinalizer = (*Recorder)(nil)
)
