package metadata

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

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

// MetadataSink is the write side of the observability boundary: pipeline
// packages report what happened through it, but it never reports back a
// decision. Nothing downstream of a MetadataSink call may branch on it.
type MetadataSink interface {
	RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int)
	RecordAssetFetch(fetchUrl string, httpStatus int, duration time.Duration, retryCount int)
	RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errorString string, attrs []Attribute)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
}

// CrawlFinalizer records the single, terminal summary of a finished crawl.
// It is intentionally separate from MetadataSink: it is called exactly
// once, after the crawl has already decided to stop.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration)
}

const ringCapacity = 256

// Recorder is the default MetadataSink/CrawlFinalizer backed by zap
// structured logging, plus a small in-memory ring of recent events so
// get_status and tests can query recent activity without re-parsing logs.
type Recorder struct {
	workerName string
	logger     *zap.Logger

	mu          sync.Mutex
	fetchEvents []FetchEvent
	errors      []ErrorRecord
	artifacts   []ArtifactRecord
	stats       crawlStats
}

// NewRecorder builds a Recorder for the named worker/component, falling
// back to a no-op logger if a production zap logger cannot be built (this
// must never be fatal to the crawl itself).
func NewRecorder(workerName string) Recorder {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	return Recorder{
		workerName: workerName,
		logger:     logger.With(zap.String("worker", workerName)),
	}
}

func (r *Recorder) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	retryCount int,
	crawlDepth int,
) {
	event := FetchEvent{
		fetchUrl:    fetchUrl,
		httpStatus:  httpStatus,
		duration:    duration,
		contentType: contentType,
		retryCount:  retryCount,
		crawlDepth:  crawlDepth,
	}

	r.mu.Lock()
	r.fetchEvents = appendBounded(r.fetchEvents, event, ringCapacity)
	r.mu.Unlock()

	r.logger.Info("fetch",
		zap.String("url", fetchUrl),
		zap.Int("http_status", httpStatus),
		zap.Duration("duration", duration),
		zap.String("content_type", contentType),
		zap.Int("retry_count", retryCount),
		zap.Int("crawl_depth", crawlDepth),
	)
}

func (r *Recorder) RecordAssetFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	retryCount int,
) {
	event := FetchEvent{
		fetchUrl:   fetchUrl,
		httpStatus: httpStatus,
		duration:   duration,
		retryCount: retryCount,
	}

	r.mu.Lock()
	r.fetchEvents = appendBounded(r.fetchEvents, event, ringCapacity)
	r.mu.Unlock()

	r.logger.Info("asset_fetch",
		zap.String("url", fetchUrl),
		zap.Int("http_status", httpStatus),
		zap.Duration("duration", duration),
		zap.Int("retry_count", retryCount),
	)
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
	record := ErrorRecord{
		packageName: packageName,
		action:      action,
		cause:       cause,
		errorString: errorString,
		observedAt:  observedAt,
		attrs:       attrs,
	}

	r.mu.Lock()
	r.errors = appendBounded(r.errors, record, ringCapacity)
	r.mu.Unlock()

	fields := make([]zap.Field, 0, len(attrs)+4)
	fields = append(fields,
		zap.String("package", packageName),
		zap.String("action", action),
		zap.Int("cause", int(cause)),
		zap.String("error", errorString),
	)
	for _, attr := range attrs {
		fields = append(fields, zap.String(string(attr.Key), attr.Value))
	}
	r.logger.Warn("error", fields...)
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	record := ArtifactRecord{kind: kind, paths: path}

	r.mu.Lock()
	r.artifacts = appendBounded(r.artifacts, record, ringCapacity)
	r.mu.Unlock()

	fields := make([]zap.Field, 0, len(attrs)+2)
	fields = append(fields, zap.String("kind", string(kind)), zap.String("path", path))
	for _, attr := range attrs {
		fields = append(fields, zap.String(string(attr.Key), attr.Value))
	}
	r.logger.Info("artifact", fields...)
}

func (r *Recorder) RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration) {
	r.mu.Lock()
	r.stats = crawlStats{
		totalPages:  totalPages,
		totalErrors: totalErrors,
		totalAssets: totalAssets,
		durationMs:  duration.Milliseconds(),
	}
	r.mu.Unlock()

	r.logger.Info("crawl_finished",
		zap.Int("total_pages", totalPages),
		zap.Int("total_errors", totalErrors),
		zap.Int("total_assets", totalAssets),
		zap.Int64("duration_ms", duration.Milliseconds()),
	)
}

// RecentErrors returns a snapshot of the most recently recorded errors,
// newest last. Used by get_status and tests; never by control flow.
func (r *Recorder) RecentErrors() []ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ErrorRecord, len(r.errors))
	copy(out, r.errors)
	return out
}

func appendBounded[T any](items []T, item T, capacity int) []T {
	items = append(items, item)
	if len(items) > capacity {
		items = items[len(items)-capacity:]
	}
	return items
}

// NoopSink is a MetadataSink that discards every event.
type NoopSink struct{}

func (NoopSink) RecordFetch(string, int, time.Duration, string, int, int) {}

func (NoopSink) RecordAssetFetch(string, int, time.Duration, int) {}

func (NoopSink) RecordError(time.Time, string, string, ErrorCause, string, []Attribute) {}

func (NoopSink) RecordArtifact(ArtifactKind, string, []Attribute) {}

var (
	_ MetadataSink   = NoopSink{}
	_ MetadataSink   = (*Recorder)(nil)
	_ CrawlFinalizer = (*Recorder)(nil)
)
