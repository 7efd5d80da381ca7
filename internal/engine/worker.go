package engine

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/extractor"
	"github.com/rohmanhakim/docs-crawler/internal/fetcher"
	"github.com/rohmanhakim/docs-crawler/internal/storage"
	"github.com/rohmanhakim/docs-crawler/internal/urlrecord"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

// runWorker pops URLs off the frontier and runs them through process
// until ctx is cancelled or the configured page cap is reached. No
// critical section in this loop spans an HTTP round trip: every shared
// resource (frontier, bloom filter, rate limiter, robots cache, metrics)
// does its own fine-grained locking.
func (e *Engine) runWorker(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		cfg := e.cfg.Load()
		if cfg.MaxPages() > 0 && e.pagesCrawled.Load() >= int64(cfg.MaxPages()) {
			return
		}

		rec, ok, err := e.deps.Frontier.Pop(ctx)
		if err != nil {
			return
		}
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idlePollInterval):
			}
			continue
		}

		e.process(ctx, cfg, rec)
	}
}

// process runs one popped frontier entry through the fetch/robots/rate
// limit/extract/emit pipeline, mirroring crawl_page(url, depth) plus its
// surrounding completed/bloom bookkeeping.
func (e *Engine) process(ctx context.Context, cfg *config.Config, rec urlrecord.URLRecord) {
	if completed, err := e.deps.Frontier.IsCompleted(ctx, rec.URL); err == nil && completed {
		_ = e.deps.Frontier.MarkFailed(ctx, rec.URL)
		return
	}

	if e.deps.Bloom.Contains(rec.URL) {
		_ = e.deps.Frontier.MarkFailed(ctx, rec.URL)
		return
	}

	target, err := url.Parse(rec.URL)
	if err != nil {
		e.deps.Metrics.RecordError()
		_ = e.deps.Frontier.MarkFailed(ctx, rec.URL)
		return
	}

	if cfg.RespectRobotsTxt() {
		decision, robotsErr := e.deps.Robot.Decide(*target)
		if robotsErr != nil || !decision.Allowed {
			e.deps.Metrics.RecordRobotsDenied()
			_ = e.deps.Frontier.MarkCompleted(ctx, rec.URL)
			e.deps.Bloom.Add(rec.URL)
			return
		}
	}

	host := target.Hostname()
	if err := e.deps.RateLimiter.Wait(ctx, host); err != nil {
		_ = e.deps.Frontier.MarkFailed(ctx, rec.URL)
		return
	}

	fetchResult, fetchErr := e.deps.Fetcher.Fetch(ctx, rec.Depth, fetcher.NewFetchParam(*target))
	if fetchErr != nil {
		e.handleFetchError(ctx, rec, fetchErr)
		return
	}

	finalURL := urlutil.Canonicalize(fetchResult.FinalURL())
	redirected := finalURL.String() != rec.URL

	if redirected {
		if completed, err := e.deps.Frontier.IsCompleted(ctx, finalURL.String()); err == nil && completed {
			_ = e.deps.Frontier.MarkCompleted(ctx, rec.URL)
			e.deps.Bloom.Add(rec.URL)
			return
		}
	}

	e.deps.Bloom.Add(rec.URL)
	if redirected {
		e.deps.Bloom.Add(finalURL.String())
	}

	// Content-type and size gating already happened inside Fetch; a
	// mismatch there surfaces as a *fetcher.FetchError and was handled
	// above by handleFetchError, so reaching here means the body passed
	// both gates.

	record, extractErr := e.deps.Extractor.Extract(finalURL, fetchResult.Body())
	if extractErr != nil {
		record = extractor.PageRecord{}
	}

	doc := storage.Document{
		URL:             finalURL.String(),
		FetchedAt:       time.Now().UTC(),
		StatusCode:      fetchResult.Code(),
		ContentType:     fetchResult.ContentType(),
		Content:         string(fetchResult.Body()),
		Links:           linkStrings(record.Links),
		Headers:         fetchResult.Headers(),
		Depth:           rec.Depth,
		Title:           record.Title,
		MetaDescription: record.MetaDescription,
		Metadata:        record.Metadata,
	}
	if redirected {
		doc.OriginalRequestURL = rec.URL
	}

	if !e.deps.Sink.Emit(ctx, doc) {
		e.deps.Metrics.RecordError()
	}
	e.deps.Metrics.RecordPageCrawled(host, fetchResult.Code(), fetchResult.ContentType(), int64(fetchResult.SizeByte()))
	e.pagesCrawled.Add(1)

	_ = e.deps.Frontier.MarkCompleted(ctx, finalURL.String())
	if redirected {
		_ = e.deps.Frontier.MarkCompleted(ctx, rec.URL)
	}

	if rec.Depth < cfg.MaxDepth() {
		e.discoverLinks(ctx, cfg, record.Links, rec.Depth)
	}
}

// handleFetchError classifies a failed fetch: a content-type or size
// mismatch is "Filtered" (the URL is done, not an error); everything
// else is a FetchError (counted, marked failed and added to the bloom
// filter; it is not retried in place).
func (e *Engine) handleFetchError(ctx context.Context, rec urlrecord.URLRecord, err failure.ClassifiedError) {
	var fetchErr *fetcher.FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.Cause {
		case fetcher.ErrCauseContentTypeInvalid, fetcher.ErrCauseSizeLimitExceeded:
			_ = e.deps.Frontier.MarkCompleted(ctx, rec.URL)
			e.deps.Bloom.Add(rec.URL)
			return
		}
	}

	e.deps.Metrics.RecordError()
	e.deps.Metrics.RecordPageFailed(0)
	_ = e.deps.Frontier.MarkFailed(ctx, rec.URL)
	e.deps.Bloom.Add(rec.URL)
}

// discoverLinks admits every in-policy link from a just-processed page
// at depth+1, skipping anything already completed or bloom-seen.
func (e *Engine) discoverLinks(ctx context.Context, cfg *config.Config, links []url.URL, parentDepth int) {
	childDepth := parentDepth + 1
	allowed := allowedDomainsSlice(cfg)
	patterns := cfg.PriorityPatterns()

	for _, link := range links {
		canonical := urlutil.Canonicalize(link)
		if !urlutil.IsValidForCrawl(canonical) {
			continue
		}
		if !urlutil.IsAllowedForCrawl(canonical, allowed, cfg.ExcludedExtensions()) {
			continue
		}

		key := canonical.String()
		if completed, err := e.deps.Frontier.IsCompleted(ctx, key); err == nil && completed {
			continue
		}
		if e.deps.Bloom.Contains(key) {
			continue
		}

		priority := childPriority(childDepth, key, patterns)
		if _, err := e.deps.Frontier.Add(ctx, key, priority, childDepth); err != nil {
			e.deps.Metrics.RecordError()
		}
	}
}

// childPriority implements priority = clamp(1.0 - 0.1*depth + bonus, 0.01,
// 1.5), where bonus is 0.5 if link contains any configured priority
// pattern as a substring.
func childPriority(depth int, link string, patterns []string) float64 {
	priority := 1.0 - 0.1*float64(depth)
	for _, pattern := range patterns {
		if pattern != "" && strings.Contains(link, pattern) {
			priority += 0.5
			break
		}
	}
	return clampFloat(priority, 0.01, 1.5)
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func linkStrings(links []url.URL) []string {
	out := make([]string, len(links))
	for i, link := range links {
		out[i] = link.String()
	}
	return out
}
