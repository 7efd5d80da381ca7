// Package metrics tracks crawl-wide performance counters and
// distributions for the engine's status surface, mirroring the
// donut-bot CrawlerMetrics tracker but made safe for a concurrent
// worker pool instead of a single asyncio task.
package metrics

import (
	"sync"
	"time"
)

// maxQueueSamples bounds the queue-size-over-time ring buffer so a
// long-running crawl doesn't grow this unboundedly; the idle-shutdown
// sampler only ever needs the most recent window.
const maxQueueSamples = 512

// QueueSample is one point of the queue-size-over-time series, taken
// by the engine's periodic sampler.
type QueueSample struct {
	At         time.Time
	QueueSize  int64
	Processing int64
}

// Snapshot is an immutable point-in-time read of Metrics, safe to hand
// to get_status() or a metrics endpoint without further locking.
type Snapshot struct {
	PagesCrawled      int64
	PagesFailed       int64
	RobotsDenied      int64
	Errors            int64
	TotalBytes        int64
	StatusCodeCounts  map[int]int64
	ContentTypeCounts map[string]int64
	DomainsSeen       int
	StartedAt         time.Time
	UptimeSeconds     float64
	QueueSizeSamples  []QueueSample
}

// CrawlRate returns pages crawled per second of uptime, or 0 before any
// uptime has elapsed.
func (s Snapshot) CrawlRate() float64 {
	if s.UptimeSeconds <= 0 {
		return 0
	}
	return float64(s.PagesCrawled) / s.UptimeSeconds
}

// SuccessRate returns the percentage of attempted pages that succeeded.
func (s Snapshot) SuccessRate() float64 {
	total := s.PagesCrawled + s.PagesFailed
	if total == 0 {
		return 0
	}
	return float64(s.PagesCrawled) / float64(total) * 100
}

// Metrics accumulates crawl statistics concurrently from every worker.
// All fields are guarded by mu; there is no lock-free fast path because
// the histograms are maps, not scalars.
type Metrics struct {
	mu sync.Mutex

	pagesCrawled int64
	pagesFailed  int64
	robotsDenied int64
	errors       int64
	totalBytes   int64

	statusCodeCounts  map[int]int64
	contentTypeCounts map[string]int64
	domainsSeen       set[string]

	queueSamples []QueueSample

	startedAt time.Time
}

// New creates a Metrics tracker with its clock started.
func New() *Metrics {
	return &Metrics{
		statusCodeCounts:  make(map[int]int64),
		contentTypeCounts: make(map[string]int64),
		domainsSeen:       newSet[string](),
		startedAt:         time.Now(),
	}
}

// RecordPageCrawled accounts for one successfully emitted document.
func (m *Metrics) RecordPageCrawled(domain string, statusCode int, contentType string, sizeBytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pagesCrawled++
	m.totalBytes += sizeBytes
	m.statusCodeCounts[statusCode]++
	if contentType != "" {
		m.contentTypeCounts[contentType]++
	}
	if domain != "" {
		m.domainsSeen.add(domain)
	}
}

// RecordPageFailed accounts for a fetch/extract/store failure that did
// not reach emission.
func (m *Metrics) RecordPageFailed(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pagesFailed++
	if statusCode > 0 {
		m.statusCodeCounts[statusCode]++
	}
}

// RecordRobotsDenied accounts for a URL rejected by robots policy.
func (m *Metrics) RecordRobotsDenied() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.robotsDenied++
}

// RecordError accounts for an engine-level error not already captured
// by RecordPageFailed (e.g. a sink emit failure).
func (m *Metrics) RecordError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

// SampleQueueSize appends one point to the queue-size-over-time series,
// dropping the oldest sample once the buffer is full.
func (m *Metrics) SampleQueueSize(queueSize, processing int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueSamples = append(m.queueSamples, QueueSample{
		At:         time.Now(),
		QueueSize:  queueSize,
		Processing: processing,
	})
	if len(m.queueSamples) > maxQueueSamples {
		m.queueSamples = m.queueSamples[len(m.queueSamples)-maxQueueSamples:]
	}
}

// Snapshot returns a copy of the current metrics state.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	statusCodes := make(map[int]int64, len(m.statusCodeCounts))
	for k, v := range m.statusCodeCounts {
		statusCodes[k] = v
	}
	contentTypes := make(map[string]int64, len(m.contentTypeCounts))
	for k, v := range m.contentTypeCounts {
		contentTypes[k] = v
	}
	samples := make([]QueueSample, len(m.queueSamples))
	copy(samples, m.queueSamples)

	return Snapshot{
		PagesCrawled:      m.pagesCrawled,
		PagesFailed:       m.pagesFailed,
		RobotsDenied:      m.robotsDenied,
		Errors:            m.errors,
		TotalBytes:        m.totalBytes,
		StatusCodeCounts:  statusCodes,
		ContentTypeCounts: contentTypes,
		DomainsSeen:       m.domainsSeen.size(),
		StartedAt:         m.startedAt,
		UptimeSeconds:     time.Since(m.startedAt).Seconds(),
		QueueSizeSamples:  samples,
	}
}

// Reset zeros every counter and restarts the uptime clock, matching the
// crawl-control reset() operation.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pagesCrawled = 0
	m.pagesFailed = 0
	m.robotsDenied = 0
	m.errors = 0
	m.totalBytes = 0
	m.statusCodeCounts = make(map[int]int64)
	m.contentTypeCounts = make(map[string]int64)
	m.domainsSeen.clear()
	m.queueSamples = nil
	m.startedAt = time.Now()
}
