// Package engine is the crawl's control loop: it owns the worker pool,
// drives each popped URL through fetch/robots/extract/emit, and exposes
// the start/stop/pause/resume/reset control surface the CLI and status
// reporting sit on top of. It is the direct replacement for this
// project's original single-threaded Markdown scheduler.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/bloom"
	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/extractor"
	"github.com/rohmanhakim/docs-crawler/internal/fetcher"
	"github.com/rohmanhakim/docs-crawler/internal/frontier"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/metrics"
	"github.com/rohmanhakim/docs-crawler/internal/robots"
	"github.com/rohmanhakim/docs-crawler/internal/storage"
	"github.com/rohmanhakim/docs-crawler/pkg/limiter"
)

// idlePollInterval is how long a worker sleeps after finding the frontier
// empty before trying again, so an idle crawl doesn't spin a CPU core.
const idlePollInterval = 200 * time.Millisecond

// Engine drives a crawl to completion. Its exported methods are safe for
// concurrent use; the worker pool itself talks to its dependencies
// directly, with no critical section spanning an HTTP round trip.
type Engine struct {
	cfg  atomic.Pointer[config.Config]
	deps Deps

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	pagesCrawled atomic.Int64
}

// NewEngine builds every dependency from cfg (frontier connection, HTTP
// client, robots checker, bloom filter, document sink) and returns a
// ready-to-Start Engine.
func NewEngine(cfg config.Config) (*Engine, error) {
	deps, err := buildDeps(cfg)
	if err != nil {
		return nil, err
	}
	return NewEngineWithDeps(cfg, deps)
}

// NewEngineWithDeps builds an Engine from already-constructed
// dependencies, letting tests substitute fakes for the frontier, fetcher
// and everything downstream of it without a live Redis instance or
// network access.
func NewEngineWithDeps(cfg config.Config, deps Deps) (*Engine, error) {
	if deps.Frontier == nil || deps.Bloom == nil || deps.RateLimiter == nil ||
		deps.Robot == nil || deps.Fetcher == nil || deps.Extractor == nil ||
		deps.Sink == nil || deps.Metrics == nil || deps.MetadataSink == nil {
		return nil, &EngineError{
			Message: "engine requires Frontier, Bloom, RateLimiter, Robot, Fetcher, Extractor, Sink, Metrics and MetadataSink",
			Cause:   ErrCauseConfigInvalid,
		}
	}

	e := &Engine{deps: deps}
	e.cfg.Store(&cfg)
	return e, nil
}

// buildDeps assembles the concrete production dependency set from cfg,
// in the bring-up order spec'd for the engine: frontier store, then HTTP
// client, then robots checker, then document sink.
func buildDeps(cfg config.Config) (Deps, error) {
	connectCtx, cancel := context.WithTimeout(context.Background(), connectTimeout(cfg))
	defer cancel()

	store, err := frontier.Connect(connectCtx, fmt.Sprintf("%s:%d", cfg.FrontierHost(), cfg.FrontierPort()), cfg.FrontierPassword(), cfg.FrontierDB())
	if err != nil {
		return Deps{}, &EngineError{Message: err.Error(), Cause: ErrCauseFrontierUnavailable}
	}

	metadataSink := metadata.NewRecorder("engine")

	htmlFetcher := fetcher.NewHtmlFetcher(&metadataSink)
	htmlFetcher.Init(fetcher.ClientConfig{
		Timeout:                cfg.Timeout(),
		MaxConnections:         cfg.MaxConnections(),
		AllowRedirects:         cfg.AllowRedirects(),
		SSLVerificationEnabled: cfg.SSLVerificationEnabled(),
		UserAgent:              cfg.UserAgent(),
		AdditionalHeaders:      cfg.AdditionalHeaders(),
		AllowedContentTypes:    cfg.AllowedContentTypes(),
		MaxContentSize:         cfg.MaxContentSize(),
	})

	robot := robots.NewCachedRobot(&metadataSink)
	robot.SetCacheTTL(cfg.RobotsCacheTime())
	robot.Init(cfg.UserAgent())

	rateLimiter := limiter.NewConcurrentRateLimiter()
	rateLimiter.SetBaseDelay(cfg.BaseDelay())
	rateLimiter.SetJitter(cfg.Jitter())
	if cfg.RandomSeed() != 0 {
		rateLimiter.SetRandomSeed(cfg.RandomSeed())
	}
	for host, delay := range cfg.RateLimits() {
		rateLimiter.SetCrawlDelay(host, delay)
	}

	pageExtractor := extractor.NewPageExtractor(&metadataSink)

	sink, sinkCloser, err := buildSink(cfg, &metadataSink)
	if err != nil {
		_ = store.Close()
		return Deps{}, err
	}

	return Deps{
		Frontier:     store,
		Bloom:        bloom.New(int(cfg.BloomCapacity()), cfg.BloomErrorRate()),
		RateLimiter:  rateLimiter,
		Robot:        robot,
		Fetcher:      &htmlFetcher,
		Extractor:    &pageExtractor,
		Sink:         sink,
		Metrics:      metrics.New(),
		MetadataSink: &metadataSink,
		Finalizer:    &metadataSink,
		SinkCloser:   sinkCloser,
	}, nil
}

// buildSink wires the document sink(s) cfg enables. Build() already
// requires at least one of EnableLocalSave/EnableBusOutput to be set, so
// sinks is never empty here. The returned closer releases the bus sink's
// connection, if one was opened; it is nil otherwise.
func buildSink(cfg config.Config, metadataSink metadata.MetadataSink) (storage.Sink, func() error, error) {
	var sinks []storage.Sink
	var closer func() error

	if cfg.EnableLocalSave() {
		fileSink := storage.NewFileSink(metadataSink, cfg.OutputDir(), cfg.JobName())
		sinks = append(sinks, &fileSink)
	}
	if cfg.EnableBusOutput() {
		busSink, err := storage.DialBusSink(metadataSink, cfg.BusBrokers(), cfg.BusTopic())
		if err != nil {
			return nil, nil, &EngineError{Message: err.Error(), Cause: ErrCauseConfigInvalid}
		}
		sinks = append(sinks, busSink)
		closer = busSink.Close
	}

	combined := storage.NewCombinedSink(sinks...)
	return &combined, closer, nil
}

// connectTimeout bounds the initial frontier dial so a misconfigured
// store fails fast at startup rather than hanging indefinitely.
func connectTimeout(cfg config.Config) time.Duration {
	if t := cfg.Timeout(); t > 0 {
		return t
	}
	return 10 * time.Second
}

// Start brings the engine up: verifies the frontier is reachable, loads
// seed URLs, and spawns the worker pool plus the idle-shutdown sampler.
// It returns once workers are running; it does not block for the crawl
// to finish.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return &EngineError{Message: "Start called while already running", Cause: ErrCauseAlreadyRunning}
	}

	if !e.deps.Frontier.Ping(ctx) {
		return &EngineError{Message: "frontier store did not respond to ping", Cause: ErrCauseFrontierUnavailable}
	}

	cfg := e.cfg.Load()
	if err := e.loadSeeds(ctx, cfg); err != nil {
		return err
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	if e.startedAt.IsZero() {
		e.startedAt = time.Now()
	}
	e.running = true
	e.spawnWorkers(workerCtx, cfg.Workers())
	e.spawnSampler(workerCtx)

	return nil
}

// spawnWorkers launches n worker goroutines against ctx. Callers must
// hold e.mu.
func (e *Engine) spawnWorkers(ctx context.Context, n int) {
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		e.wg.Add(1)
		go func(workerID int) {
			defer e.wg.Done()
			e.runWorker(ctx, workerID)
		}(i)
	}
}

// spawnSampler launches the idle-shutdown sampler goroutine against ctx.
// Callers must hold e.mu.
func (e *Engine) spawnSampler(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runSampler(ctx)
	}()
}

// Pause stops feeding workers and waits for in-flight process() calls to
// finish, leaving the frontier's queue/processing/completed sets intact.
// It is idempotent: pausing an already-paused engine is a no-op.
func (e *Engine) Pause() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

// Resume re-spawns the worker pool and sampler after a Pause, without
// touching the frontier or bloom filter. It is idempotent: resuming an
// already-running engine is a no-op.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}

	cfg := e.cfg.Load()
	if cfg == nil {
		return &EngineError{Message: "no configuration loaded", Cause: ErrCauseConfigInvalid}
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.running = true
	e.spawnWorkers(ctx, cfg.Workers())
	e.spawnSampler(ctx)
	return nil
}

// Stop pauses the engine, then releases every held resource: the HTTP
// client's idle connections, any closeable sink, and the frontier store
// connection. The Engine must not be reused after Stop returns.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	startedAt := e.startedAt
	e.mu.Unlock()

	e.Pause()

	if e.deps.Finalizer != nil {
		snap := e.deps.Metrics.Snapshot()
		var uptime time.Duration
		if !startedAt.IsZero() {
			uptime = time.Since(startedAt)
		}
		e.deps.Finalizer.RecordFinalCrawlStats(int(e.pagesCrawled.Load()), int(snap.Errors), 0, uptime)
	}

	if client := e.deps.Fetcher.HttpClient(); client != nil {
		client.CloseIdleConnections()
	}
	if e.deps.SinkCloser != nil {
		_ = e.deps.SinkCloser()
	}
	if err := e.deps.Frontier.Close(); err != nil {
		return &EngineError{Message: err.Error(), Cause: ErrCauseFrontierUnavailable}
	}
	return nil
}

// Reset clears the requested frontier sets and, if clearBloom is set,
// the bloom filter -- matching the crawl-control reset() operation.
func (e *Engine) Reset(ctx context.Context, opts frontier.ClearOptions, clearBloom bool) (frontier.ClearReport, error) {
	report, err := e.deps.Frontier.Clear(ctx, opts)
	if err != nil {
		return report, &EngineError{Message: err.Error(), Cause: ErrCauseFrontierUnavailable}
	}
	if clearBloom {
		e.deps.Bloom.Clear()
	}
	return report, nil
}

func allowedDomainsSlice(cfg *config.Config) []string {
	if cfg == nil {
		return nil
	}
	hosts := cfg.AllowedHosts()
	out := make([]string, 0, len(hosts))
	for h := range hosts {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}
