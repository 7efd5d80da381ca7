package engine_test

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rohmanhakim/docs-crawler/internal/bloom"
	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/engine"
	"github.com/rohmanhakim/docs-crawler/internal/extractor"
	"github.com/rohmanhakim/docs-crawler/internal/fetcher"
	"github.com/rohmanhakim/docs-crawler/internal/frontier"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/metrics"
	"github.com/rohmanhakim/docs-crawler/internal/robots"
	"github.com/rohmanhakim/docs-crawler/internal/storage"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/limiter"
)

func newTestFrontier(t *testing.T) *frontier.Frontier {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return frontier.NewFrontier(client)
}

// stubFetcher returns a canned page for URLs seeded into it, and a default
// empty 200 response otherwise, so tests can exercise the worker pipeline
// without a real network.
type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]fetcher.FetchResult
}

func (s *stubFetcher) Init(cfg fetcher.ClientConfig) {}
func (s *stubFetcher) InitWithClient(client *http.Client, userAgent string, additionalHeaders map[string]string, allowedContentTypes []string, maxContentSize int64) {
}
func (s *stubFetcher) HttpClient() *http.Client { return nil }
func (s *stubFetcher) Fetch(ctx context.Context, crawlDepth int, param fetcher.FetchParam) (fetcher.FetchResult, failure.ClassifiedError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := param.URL().String()
	if result, ok := s.pages[key]; ok {
		return result, nil
	}
	return fetcher.NewFetchResultForTest(param.URL(), param.URL(), nil, 200, map[string]string{"Content-Type": "text/html"}, time.Now().UTC()), nil
}

// recordingSink captures every document handed to Emit.
type recordingSink struct {
	mu   sync.Mutex
	docs []storage.Document
}

func (r *recordingSink) Emit(ctx context.Context, doc storage.Document) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	return true
}

func (r *recordingSink) EmitBatch(ctx context.Context, docs []storage.Document) storage.EmitReport {
	for _, d := range docs {
		r.Emit(ctx, d)
	}
	return storage.EmitReport{SuccessCount: len(docs)}
}

func (r *recordingSink) snapshot() []storage.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]storage.Document, len(r.docs))
	copy(out, r.docs)
	return out
}

func testConfig(t *testing.T, seed string) config.Config {
	t.Helper()
	u, err := url.Parse(seed)
	if err != nil {
		t.Fatalf("parse seed: %v", err)
	}
	cfg, err := config.WithDefault([]url.URL{*u}).
		WithAllowedHosts(map[string]struct{}{u.Hostname(): {}}).
		WithConcurrency(1).
		WithMaxDepth(1).
		WithMaxPages(5).
		WithIdleShutdownThreshold(2).
		WithMetricsInterval(20 * time.Millisecond).
		Build()
	if err != nil {
		t.Fatalf("build config: %v", err)
	}
	return cfg
}

func newTestDeps(t *testing.T, sink *recordingSink, fetch *stubFetcher) engine.Deps {
	t.Helper()
	metadataSink := metadata.NewRecorder("engine-test")
	pageExtractor := extractor.NewPageExtractor(&metadataSink)
	rateLimiter := limiter.NewConcurrentRateLimiter()
	rateLimiter.SetBaseDelay(0)
	rateLimiter.SetJitter(0)

	robot := robots.NewCachedRobot(&metadataSink)

	return engine.Deps{
		Frontier:     newTestFrontier(t),
		Bloom:        bloom.New(1000, 0.01),
		RateLimiter:  rateLimiter,
		Robot:        robot,
		Fetcher:      fetch,
		Extractor:    &pageExtractor,
		Sink:         sink,
		Metrics:      metrics.New(),
		MetadataSink: &metadataSink,
		Finalizer:    &metadataSink,
	}
}

// testConfigNoRobots is testConfig but with robots.txt checking disabled,
// since the in-test CachedRobot would otherwise try to dial the real
// network for /robots.txt.
func testConfigNoRobots(t *testing.T, seed string) config.Config {
	t.Helper()
	cfg := testConfig(t, seed)
	rebuilt, err := cfg.WithRespectRobotsTxt(false).Build()
	if err != nil {
		t.Fatalf("rebuild config: %v", err)
	}
	return rebuilt
}

func TestEngine_StartCrawlsSeedAndPauses(t *testing.T) {
	sink := &recordingSink{}
	page := []byte(`<html><head><title>Home</title></head><body><a href="https://example.com/a">a</a></body></html>`)
	fetch := &stubFetcher{pages: map[string]fetcher.FetchResult{}}

	cfg := testConfigNoRobots(t, "https://example.com/")
	seedURL, _ := url.Parse("https://example.com/")
	fetch.pages[seedURL.String()] = fetcher.NewFetchResultForTest(*seedURL, *seedURL, page, 200, map[string]string{"Content-Type": "text/html"}, time.Now().UTC())

	deps := newTestDeps(t, sink, fetch)
	e, err := engine.NewEngineWithDeps(cfg, deps)
	if err != nil {
		t.Fatalf("NewEngineWithDeps: %v", err)
	}

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		status := e.GetStatus(ctx)
		if status.PagesCrawledTotal >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for seed to be crawled")
		case <-time.After(10 * time.Millisecond):
		}
	}

	docs := sink.snapshot()
	if len(docs) == 0 {
		t.Fatal("expected at least one document emitted")
	}
	if docs[0].Title != "Home" {
		t.Errorf("expected title %q, got %q", "Home", docs[0].Title)
	}

	if err := e.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestEngine_PauseResumeIdempotent(t *testing.T) {
	sink := &recordingSink{}
	fetch := &stubFetcher{pages: map[string]fetcher.FetchResult{}}
	cfg := testConfigNoRobots(t, "https://example.com/")
	deps := newTestDeps(t, sink, fetch)

	e, err := engine.NewEngineWithDeps(cfg, deps)
	if err != nil {
		t.Fatalf("NewEngineWithDeps: %v", err)
	}

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	e.Pause()
	e.Pause() // idempotent: must not block or panic

	if err := e.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := e.Resume(); err != nil {
		t.Fatalf("second Resume: %v", err)
	}

	if err := e.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestEngine_AddURLsRejectsOutOfPolicy(t *testing.T) {
	sink := &recordingSink{}
	fetch := &stubFetcher{pages: map[string]fetcher.FetchResult{}}
	cfg := testConfigNoRobots(t, "https://example.com/")
	deps := newTestDeps(t, sink, fetch)

	e, err := engine.NewEngineWithDeps(cfg, deps)
	if err != nil {
		t.Fatalf("NewEngineWithDeps: %v", err)
	}

	ctx := context.Background()
	result := e.AddURLs(ctx, []string{
		"https://example.com/allowed",
		"https://not-allowed.example/denied",
		"not a url\x7f",
	}, 1.0, 0)

	if result.Requested != 3 {
		t.Errorf("Requested = %d, want 3", result.Requested)
	}
	if result.Added != 1 {
		t.Errorf("Added = %d, want 1", result.Added)
	}
	if result.Rejected != 2 {
		t.Errorf("Rejected = %d, want 2", result.Rejected)
	}
}

func TestEngine_UpdateAllowedDomains(t *testing.T) {
	sink := &recordingSink{}
	fetch := &stubFetcher{pages: map[string]fetcher.FetchResult{}}
	cfg := testConfigNoRobots(t, "https://example.com/")
	deps := newTestDeps(t, sink, fetch)

	e, err := engine.NewEngineWithDeps(cfg, deps)
	if err != nil {
		t.Fatalf("NewEngineWithDeps: %v", err)
	}

	if err := e.UpdateAllowedDomains("add", []string{"second.example"}); err != nil {
		t.Fatalf("UpdateAllowedDomains add: %v", err)
	}
	domains := e.GetAllowedDomains()
	if !containsString(domains, "second.example") {
		t.Errorf("expected second.example in %v", domains)
	}

	if err := e.UpdateAllowedDomains("remove", []string{"second.example"}); err != nil {
		t.Fatalf("UpdateAllowedDomains remove: %v", err)
	}
	domains = e.GetAllowedDomains()
	if containsString(domains, "second.example") {
		t.Errorf("expected second.example removed from %v", domains)
	}

	if err := e.UpdateAllowedDomains("bogus-action", nil); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestEngine_ResetClearsFrontier(t *testing.T) {
	sink := &recordingSink{}
	fetch := &stubFetcher{pages: map[string]fetcher.FetchResult{}}
	cfg := testConfigNoRobots(t, "https://example.com/")
	deps := newTestDeps(t, sink, fetch)

	e, err := engine.NewEngineWithDeps(cfg, deps)
	if err != nil {
		t.Fatalf("NewEngineWithDeps: %v", err)
	}

	ctx := context.Background()
	if _, err := deps.Frontier.Add(ctx, "https://example.com/seed", 1.0, 0); err != nil {
		t.Fatalf("seed Add: %v", err)
	}

	if _, err := e.Reset(ctx, frontier.AllSets, true); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	size, err := deps.Frontier.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 0 {
		t.Errorf("expected empty frontier after reset, got size %d", size)
	}
}

func containsString(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
