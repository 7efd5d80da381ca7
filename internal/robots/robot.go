package robots

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/robots/cache"
	"golang.org/x/sync/singleflight"
)

/*
Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration
- Enforce allow/disallow rules before enqueue

Robots checks occur before a URL enters the frontier.
*/

// DefaultCacheTTL is how long a fetched ruleSet is trusted before it is
// re-fetched, a conservative default (overridden via SetCacheTTL for
// spec's robots_cache_time).
const DefaultCacheTTL = 24 * time.Hour

// Robot is the robots.txt policy gate: every URL must pass Decide before
// it is admitted to the frontier.
type Robot interface {
	Init(userAgent string)
	InitWithCache(userAgent string, c cache.Cache)
	Decide(target url.URL) (Decision, *RobotsError)
}

type cacheEntry struct {
	rules     ruleSet
	fetchedAt time.Time
	// denyAll is set when the last fetch attempt failed; per fail-closed
	// policy the origin is denied until the entry's TTL expires and a
	// fetch succeeds.
	denyAll bool
}

type robotState struct {
	mu        sync.RWMutex
	entries   map[string]cacheEntry
	ttl       time.Duration
	fetcher   *RobotsFetcher
	group     singleflight.Group
	userAgent string
	sink      metadata.MetadataSink
}

// CachedRobot is the default Robot implementation: per-origin TTL caching
// with single-flighted fetches and fail-closed behavior on fetch/parse
// error. It wraps a pointer to its mutable state so it stays comparable
// (usable with == against a zero CachedRobot) while copies made after Init
// still share state.
type CachedRobot struct {
	state *robotState
}

// NewCachedRobot builds a CachedRobot that reports fetch/error events to
// sink. Call Init or InitWithCache before using it.
func NewCachedRobot(sink metadata.MetadataSink) CachedRobot {
	state := &robotState{
		entries: make(map[string]cacheEntry),
		ttl:     DefaultCacheTTL,
		sink:    sink,
	}
	state.fetcher = NewRobotsFetcher(sink, "", cache.NewMemoryCache())
	return CachedRobot{state: state}
}

// SetCacheTTL overrides how long a fetched ruleSet is trusted, matching
// the crawler's configured robots_cache_time.
func (r CachedRobot) SetCacheTTL(ttl time.Duration) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.state.ttl = ttl
}

// Init configures the user agent used for both fetching robots.txt and
// matching its groups, using an internal in-memory cache.
func (r CachedRobot) Init(userAgent string) {
	r.InitWithCache(userAgent, cache.NewMemoryCache())
}

// InitWithCache is like Init but lets the caller supply the underlying
// HTTP-response cache (useful for sharing a cache across Robot instances,
// or for testing).
func (r CachedRobot) InitWithCache(userAgent string, c cache.Cache) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	r.state.userAgent = userAgent
	r.state.fetcher = NewRobotsFetcher(r.state.sink, userAgent, c)
}

// Decide reports whether target may be fetched under the user agent this
// Robot was initialized with. On any fetch or parse failure the origin is
// denied outright (fail-closed) rather than assumed permissive.
func (r CachedRobot) Decide(target url.URL) (Decision, *RobotsError) {
	origin := strings.ToLower(target.Scheme) + "://" + strings.ToLower(target.Hostname())

	rules, robotsErr := r.resolveRuleSet(origin, target.Scheme, target.Hostname())
	if robotsErr != nil {
		return Decision{Url: target, Allowed: false, Reason: DisallowedByRobots}, robotsErr
	}

	return r.evaluate(target, rules), nil
}

func (r CachedRobot) resolveRuleSet(origin, scheme, hostname string) (ruleSet, *RobotsError) {
	r.state.mu.RLock()
	entry, ok := r.state.entries[origin]
	ttl := r.state.ttl
	r.state.mu.RUnlock()

	if ok && time.Since(entry.fetchedAt) < ttl {
		if entry.denyAll {
			return ruleSet{}, &RobotsError{
				Message:   "origin denied: previous robots.txt fetch failed and cache has not expired",
				Retryable: true,
				Cause:     ErrCauseHttpFetchFailure,
			}
		}
		return entry.rules, nil
	}

	// single-flight: concurrent Decide calls for the same origin share one fetch.
	v, err, _ := r.state.group.Do(origin, func() (interface{}, error) {
		fetchResult, fetchErr := r.state.fetcher.Fetch(context.Background(), scheme, hostname)
		if fetchErr != nil {
			if r.state.sink != nil {
				r.state.sink.RecordError(time.Now(), "robots", "CachedRobot.Decide",
					mapRobotsErrorToMetadataCause(fetchErr), fetchErr.Error(),
					[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, origin)})
			}
			r.state.mu.Lock()
			r.state.entries[origin] = cacheEntry{fetchedAt: time.Now(), denyAll: true}
			r.state.mu.Unlock()
			return nil, fetchErr
		}

		rules := MapResponseToRuleSet(fetchResult.Response, r.state.userAgent, fetchResult.FetchedAt)
		r.state.mu.Lock()
		r.state.entries[origin] = cacheEntry{rules: rules, fetchedAt: fetchResult.FetchedAt}
		r.state.mu.Unlock()
		return rules, nil
	})
	if err != nil {
		robotsErr, ok := err.(*RobotsError)
		if !ok {
			robotsErr = &RobotsError{Message: err.Error(), Retryable: false, Cause: ErrCausePreFetchFailure}
		}
		return ruleSet{}, robotsErr
	}

	return v.(ruleSet), nil
}

// evaluate applies the longest-match-wins robots.txt algorithm: among all
// Allow/Disallow rules whose pattern matches the target path, the longest
// pattern wins; ties favor Allow.
func (r CachedRobot) evaluate(target url.URL, rules ruleSet) Decision {
	if !rules.hasGroups {
		return Decision{Url: target, Allowed: true, Reason: EmptyRuleSet}
	}
	if !rules.matchedGroup {
		return Decision{Url: target, Allowed: true, Reason: UserAgentNotMatched}
	}

	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}

	crawlDelay := time.Duration(0)
	if cd := rules.CrawlDelay(); cd != nil {
		crawlDelay = *cd
	}

	bestLen := -1
	bestAllow := false
	matched := false

	for _, rule := range rules.AllowRules() {
		if ln, ok := matchLength(rule.Prefix(), path); ok {
			matched = true
			if ln > bestLen || (ln == bestLen && !bestAllow) {
				bestLen = ln
				bestAllow = true
			}
		}
	}
	for _, rule := range rules.DisallowRules() {
		if ln, ok := matchLength(rule.Prefix(), path); ok {
			matched = true
			if ln > bestLen {
				bestLen = ln
				bestAllow = false
			}
		}
	}

	if !matched {
		return Decision{Url: target, Allowed: true, Reason: NoMatchingRules, CrawlDelay: crawlDelay}
	}
	if bestAllow {
		return Decision{Url: target, Allowed: true, Reason: AllowedByRobots, CrawlDelay: crawlDelay}
	}
	return Decision{Url: target, Allowed: false, Reason: DisallowedByRobots, CrawlDelay: crawlDelay}
}

// matchLength reports whether pattern (a robots.txt path rule, possibly
// containing "*" wildcards and a trailing "$" end-anchor) matches path, and
// if so the length of the pattern used for longest-match precedence.
func matchLength(pattern, path string) (int, bool) {
	if pattern == "" {
		return 0, false
	}

	re := compileRobotsPattern(pattern)
	if re.MatchString(path) {
		return len(pattern), true
	}
	return 0, false
}

var patternCache sync.Map

func compileRobotsPattern(pattern string) *regexp.Regexp {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp)
	}

	exact := strings.HasSuffix(pattern, "$")
	p := strings.TrimSuffix(pattern, "$")

	parts := strings.Split(p, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	expr := "^" + strings.Join(parts, ".*")
	if exact {
		expr += "$"
	}

	re := regexp.MustCompile(expr)
	patternCache.Store(pattern, re)
	return re
}

var _ Robot = CachedRobot{}
