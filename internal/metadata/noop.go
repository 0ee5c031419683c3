package metadata

import "time"

// NoopSink discards every event. Tests embed it so their spies only have
// to override the methods they assert on.
type NoopSink struct{}

func (NoopSink) RecordFetch(fetchURL string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
}

func (NoopSink) RecordAssetFetch(fetchURL string, httpStatus int, duration time.Duration, retryCount int) {
}

func (NoopSink) RecordError(observedAt time.Time, packageName, action string, cause ErrorCause, errorString string, attrs []Attribute) {
}

func (NoopSink) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {}

var _ MetadataSink = (*NoopSink)(nil)
