// Package urlrecord holds the value types shared between the frontier
// store and the engine that drains it: the wire-format queue entry and
// the lightweight token a worker carries through the process pipeline.
package urlrecord

import (
	"net/url"
	"time"
)

// URLRecord is the frontier entry as defined by the external-store layout:
// {"url","original_url","priority","depth","added_at","domain"}.
type URLRecord struct {
	URL         string  `json:"url"`
	OriginalURL string  `json:"original_url"`
	Priority    float64 `json:"priority"`
	Depth       int     `json:"depth"`
	AddedAt     int64   `json:"added_at"`
	Domain      string  `json:"domain"`
}

// Score implements the fixed scoring rule: priority dominates, added_at
// is a tiebreaker favoring older entries. Smaller score pops first.
func (r URLRecord) Score() float64 {
	return -r.Priority + float64(r.AddedAt)*1e-9
}

// SourceContext distinguishes a seed URL from one discovered mid-crawl,
// carried for logging/metrics provenance only -- it never gates admission.
type SourceContext string

const (
	SourceSeed  SourceContext = "seed"
	SourceCrawl SourceContext = "crawl"
)

// CrawlToken is what a worker actually operates on after popping the
// frontier: a URL, its depth, and where it came from. It carries no
// admission policy of its own -- the frontier already decided that.
type CrawlToken struct {
	url    url.URL
	depth  int
	source SourceContext
}

// NewCrawlToken builds a CrawlToken for a seed or discovered URL.
func NewCrawlToken(u url.URL, depth int, source SourceContext) CrawlToken {
	return CrawlToken{url: u, depth: depth, source: source}
}

// FromRecord converts a popped frontier URLRecord into a CrawlToken,
// using OriginalURL vs URL to infer provenance isn't needed here: the
// source is known at the call site (engine knows whether this came from
// a seed load or a discovered-link Add).
func FromRecord(rec URLRecord, source SourceContext) (CrawlToken, error) {
	parsed, err := url.Parse(rec.URL)
	if err != nil {
		return CrawlToken{}, err
	}
	return CrawlToken{url: *parsed, depth: rec.Depth, source: source}, nil
}

func (c CrawlToken) URL() url.URL {
	return c.url
}

func (c CrawlToken) Depth() int {
	return c.depth
}

func (c CrawlToken) Source() SourceContext {
	return c.source
}

// AddedAt stamps a URLRecord with the current time, factored out so
// frontier.Add and any future batched-seed path stamp identically.
func AddedAt() int64 {
	return time.Now().Unix()
}
