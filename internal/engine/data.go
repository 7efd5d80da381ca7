package engine

import (
	"github.com/rohmanhakim/docs-crawler/internal/bloom"
	"github.com/rohmanhakim/docs-crawler/internal/extractor"
	"github.com/rohmanhakim/docs-crawler/internal/fetcher"
	"github.com/rohmanhakim/docs-crawler/internal/frontier"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/metrics"
	"github.com/rohmanhakim/docs-crawler/internal/robots"
	"github.com/rohmanhakim/docs-crawler/internal/storage"
	"github.com/rohmanhakim/docs-crawler/pkg/limiter"
)

// Deps is the engine's full set of collaborators. NewEngine builds a
// concrete Deps from a config.Config; NewEngineWithDeps takes one
// directly so tests can substitute fakes for the frontier, fetcher, and
// everything downstream of it without a live Redis or network.
type Deps struct {
	Frontier     *frontier.Frontier
	Bloom        *bloom.Filter
	RateLimiter  limiter.RateLimiter
	Robot        robots.Robot
	Fetcher      fetcher.Fetcher
	Extractor    *extractor.PageExtractor
	Sink         storage.Sink
	Metrics      *metrics.Metrics
	MetadataSink metadata.MetadataSink
	Finalizer    metadata.CrawlFinalizer
	// SinkCloser releases any sink resource that needs explicit closing
	// (e.g. the bus sink's AMQP channel/connection). It is nil when no
	// enabled sink needs one.
	SinkCloser func() error
}

// AddURLsResult reports the outcome of a bulk add_urls() control-surface
// call: how many of the requested URLs were actually admitted to the
// frontier versus rejected by policy or already seen.
type AddURLsResult struct {
	Requested int
	Added     int
	Rejected  int
}

// StatusSnapshot mirrors get_status(): a point-in-time read of everything
// an operator or dashboard needs, safe to marshal as JSON directly.
type StatusSnapshot struct {
	Running                 bool     `json:"crawler_running"`
	UptimeSeconds            float64  `json:"uptime_seconds"`
	PagesCrawledTotal        int64    `json:"pages_crawled_total"`
	MaxPagesConfigured       int      `json:"max_pages_configured"`
	PagesRemainingInLimit    int64    `json:"pages_remaining_in_limit"`
	AvgPagesPerSecond        float64  `json:"avg_pages_per_second"`
	FrontierQueueSize        int64    `json:"frontier_queue_size"`
	URLsInProcessing         int64    `json:"urls_in_processing"`
	URLsCompleted            int64    `json:"urls_completed"`
	URLsSeen                 int64    `json:"urls_seen"`
	BloomFilterItems         int64    `json:"bloom_filter_items"`
	RobotsDeniedCount        int64    `json:"robots_denied_count"`
	TotalErrorsCount         int64    `json:"total_errors_count"`
	ActiveWorkersConfigured  int      `json:"active_workers_configured"`
	CurrentTimeUTC           string   `json:"current_time_utc"`
	AllowedDomains           []string `json:"allowed_domains"`
	FrontierStoreConnected   bool     `json:"frontier_store_connected"`
	SinkAvailable            bool     `json:"sink_available"`
}
