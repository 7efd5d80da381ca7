package engine

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

// runSampler periodically snapshots the frontier/metrics state and, once
// idle_shutdown_threshold consecutive samples show an empty queue, no
// in-flight work, and no forward progress on pages_crawled, pauses the
// engine so its workers drain and Start/Resume can be called again later.
func (e *Engine) runSampler(ctx context.Context) {
	cfg := e.cfg.Load()
	interval := cfg.MetricsInterval()
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	idleSamples := 0
	var lastPagesCrawled int64 = -1

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cfg := e.cfg.Load()
		queueSize, _ := e.deps.Frontier.Size(ctx)
		processing, _ := e.deps.Frontier.ProcessingCount(ctx)
		e.deps.Metrics.SampleQueueSize(queueSize, processing)

		pagesCrawled := e.pagesCrawled.Load()
		idle := queueSize == 0 && processing == 0 && pagesCrawled == lastPagesCrawled
		lastPagesCrawled = pagesCrawled

		if idle {
			idleSamples++
		} else {
			idleSamples = 0
		}

		if idleSamples >= cfg.IdleShutdownThreshold() {
			go e.Pause()
			return
		}
	}
}

// GetStatus reports a point-in-time snapshot of the engine's health and
// progress, matching the get_status() control-surface operation.
func (e *Engine) GetStatus(ctx context.Context) StatusSnapshot {
	cfg := e.cfg.Load()
	snap := e.deps.Metrics.Snapshot()

	e.mu.Lock()
	running := e.running
	startedAt := e.startedAt
	e.mu.Unlock()

	queueSize, _ := e.deps.Frontier.Size(ctx)
	processing, _ := e.deps.Frontier.ProcessingCount(ctx)
	completed, _ := e.deps.Frontier.CompletedCount(ctx)
	seen, _ := e.deps.Frontier.SeenCount(ctx)
	storeConnected := e.deps.Frontier.Ping(ctx)

	pagesCrawled := e.pagesCrawled.Load()
	maxPages := cfg.MaxPages()
	var remaining int64 = -1
	if maxPages > 0 {
		remaining = int64(maxPages) - pagesCrawled
		if remaining < 0 {
			remaining = 0
		}
	}

	var uptime float64
	if !startedAt.IsZero() {
		uptime = time.Since(startedAt).Seconds()
	}
	var avgRate float64
	if uptime > 0 {
		avgRate = float64(pagesCrawled) / uptime
	}

	return StatusSnapshot{
		Running:                 running,
		UptimeSeconds:           uptime,
		PagesCrawledTotal:       pagesCrawled,
		MaxPagesConfigured:      maxPages,
		PagesRemainingInLimit:   remaining,
		AvgPagesPerSecond:       avgRate,
		FrontierQueueSize:       queueSize,
		URLsInProcessing:        processing,
		URLsCompleted:           completed,
		URLsSeen:                seen,
		BloomFilterItems:        e.deps.Bloom.Count(),
		RobotsDeniedCount:       snap.RobotsDenied,
		TotalErrorsCount:        snap.Errors,
		ActiveWorkersConfigured: cfg.Workers(),
		CurrentTimeUTC:          time.Now().UTC().Format(time.RFC3339),
		AllowedDomains:          allowedDomainsSlice(cfg),
		FrontierStoreConnected:  storeConnected,
		SinkAvailable:           e.deps.Sink != nil,
	}
}

// GetAllowedDomains reports the domain allowlist currently in effect.
func (e *Engine) GetAllowedDomains() []string {
	return allowedDomainsSlice(e.cfg.Load())
}

// UpdateAllowedDomains mutates the live domain allowlist by rebuilding
// and atomically swapping the engine's configuration, so in-flight
// workers pick up the change on their next iteration without a restart.
func (e *Engine) UpdateAllowedDomains(action string, domains []string) error {
	cur := e.cfg.Load()
	if cur == nil {
		return &EngineError{Message: "no configuration loaded", Cause: ErrCauseConfigInvalid}
	}

	next := make(map[string]struct{}, len(cur.AllowedHosts())+len(domains))
	switch action {
	case "add":
		for h := range cur.AllowedHosts() {
			next[h] = struct{}{}
		}
		for _, d := range domains {
			if d != "" {
				next[d] = struct{}{}
			}
		}
	case "remove":
		for h := range cur.AllowedHosts() {
			next[h] = struct{}{}
		}
		for _, d := range domains {
			delete(next, d)
		}
	case "replace":
		for _, d := range domains {
			if d != "" {
				next[d] = struct{}{}
			}
		}
	default:
		return &EngineError{Message: fmt.Sprintf("unknown allowed-domains action %q", action), Cause: ErrCauseConfigInvalid}
	}

	local := *cur
	rebuilt, err := local.WithAllowedHosts(next).Build()
	if err != nil {
		return &EngineError{Message: err.Error(), Cause: ErrCauseConfigInvalid}
	}
	e.cfg.Store(&rebuilt)
	return nil
}

// AddURLs admits a batch of operator-supplied URLs into the frontier at
// the given priority and depth, matching the add_urls() control-surface
// operation. Invalid, out-of-policy, or already-admitted URLs count as
// rejected rather than erroring the whole batch.
func (e *Engine) AddURLs(ctx context.Context, urls []string, priority float64, depth int) AddURLsResult {
	cfg := e.cfg.Load()
	allowed := allowedDomainsSlice(cfg)
	result := AddURLsResult{Requested: len(urls)}

	for _, raw := range urls {
		parsed, err := url.Parse(raw)
		if err != nil {
			result.Rejected++
			continue
		}

		canonical := urlutil.Canonicalize(*parsed)
		if !urlutil.IsValidForCrawl(canonical) || !urlutil.IsAllowedForCrawl(canonical, allowed, cfg.ExcludedExtensions()) {
			result.Rejected++
			continue
		}

		added, err := e.deps.Frontier.Add(ctx, canonical.String(), priority, depth)
		if err != nil || !added {
			result.Rejected++
			continue
		}
		result.Added++
	}

	return result
}
