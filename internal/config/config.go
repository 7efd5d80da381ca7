package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"
)

type Config struct {
	//===============
	//  Crawl scope
	//===============
	// Initial pages to give to the crawler to begin discovering and traversing other pages.
	seedURLs []url.URL
	// Whitelisted hostname. Empty means all hostnames are allowed
	allowedHosts map[string]struct{}
	// Which URL path segments are permitted to be fetched and traversed, even if the links are on the same domain
	allowedPathPrefix []string

	//===============
	// Limits
	//===============
	// Maximum number of hyperlink hops from a seed (root) URL
	maxDepth int
	// Maximum number of total documents are allowed to be fetched
	maxPages int

	//===============
	// Politeness
	//===============
	// Maximum number of crawl worker goroutines processing URLs concurrently;
	// it does not control OS threads or CPU parallelism.
	concurrency int
	// Minimum, fixed waiting time you enforce between two HTTP requests to the same host.
	baseDelay time.Duration
	// Randomized variation added on top of the base delay.
	// Intentional randomness applied to timing.
	jitter time.Duration
	// Controls the random number generator
	randomSeed int64
	// maximum attempt during retry
	maxAttempt int
	// initial delay for backoff
	backoffInitialDuration time.Duration
	// multiplier during exponential backoff
	backoffMultiplier float64
	// capped maximum delay for backoff to stop exponential multiplication
	backoffMaxDuration time.Duration

	//===============
	// Fetch
	//===============
	// Maximum time of a single fetch request in millisecond
	timeout time.Duration
	// User agent that will be used in the request header. In raw string
	userAgent string

	//===============
	// Output
	//===============
	// Root directory in which to store the resulting markdown files
	outputDir string
	// Whether the program will simulates what it would do without
	// actually performing any irreversible or side-effecting actions
	dryRun bool

	//===============
	// Extraction
	//===============
	// BodySpecificityBias is the threshold for preferring a child container over <body>.
	// If a child node's score is >= BodySpecificityBias * bodyScore, the child is preferred.
	// Default: 0.75 (75%)
	bodySpecificityBias float64
	// LinkDensityThreshold is the maximum ratio of link text to total text before
	// applying a penalty. Higher values allow more link-heavy content.
	// Default: 0.80 (80%)
	linkDensityThreshold float64
	// ScoreMultiplierNonWhitespaceDivisor is the divisor for calculating text score.
	// Score gets +1 point per NonWhitespaceDivisor characters.
	// Default: 50.0
	scoreMultiplierNonWhitespaceDivisor float64
	// ScoreMultiplierParagraphs is the score multiplier for each paragraph element.
	// Default: 5.0
	scoreMultiplierParagraphs float64
	// ScoreMultiplierHeadings is the score multiplier for each heading element (h1-h3).
	// Default: 10.0
	scoreMultiplierHeadings float64
	// ScoreMultiplierCodeBlocks is the score multiplier for each code block.
	// Default: 15.0
	scoreMultiplierCodeBlocks float64
	// ScoreMultiplierListItems is the score multiplier for each list item.
	// Default: 2.0
	scoreMultiplierListItems float64
	// ThresholdMinNonWhitespace is the minimum number of non-whitespace characters
	// required for content to be considered meaningful.
	// Default: 50
	thresholdMinNonWhitespace int
	// ThresholdMinHeadings is the minimum number of headings required.
	// Headings are optional but valuable.
	// Default: 0
	thresholdMinHeadings int
	// ThresholdMinParagraphsOrCode is the minimum number of paragraphs OR code blocks
	// required for content to be considered meaningful.
	// Default: 1
	thresholdMinParagraphsOrCode int
	// ThresholdMaxLinkDensity is the maximum ratio of link text to total text before
	// content is considered navigation-only and rejected.
	// Default: 0.8 (80%)
	thresholdMaxLinkDensity float64

	//===============
	// Fetch (transport)
	//===============
	// Maximum simultaneous TCP connections held open by the HTTP client.
	maxConnections int
	// Whether the HTTP client follows redirects automatically.
	allowRedirects bool
	// Per-domain override of the default crawl delay.
	rateLimits map[string]time.Duration
	// Extra headers sent on every request, beyond User-Agent.
	additionalHeaders map[string]string
	// Whether TLS certificate verification is enforced.
	sslVerificationEnabled bool
	// Path to an additional CA bundle to trust, if any.
	customCABundle string

	//===============
	// Crawl policy
	//===============
	// seedURLsFile is an optional newline-delimited file of additional seed URLs.
	seedURLsFile string
	// File extensions (with leading dot) that are never fetched.
	excludedExtensions []string
	// Plain substrings (not regular expressions) that, when present in a URL, boost its priority.
	priorityPatterns []string
	// Content-Type substrings (case-insensitive) that are accepted; empty means no content-type gate.
	allowedContentTypes []string
	// Responses larger than this many bytes are discarded.
	maxContentSize int64
	// Whether robots.txt is consulted before fetching.
	respectRobotsTxt bool
	// How long a robots.txt decision is cached before refetching.
	robotsCacheTime time.Duration

	//===============
	// Bloom filter
	//===============
	bloomCapacity  uint
	bloomErrorRate float64

	//===============
	// Engine lifecycle
	//===============
	// Consecutive idle samples (taken every metricsInterval) after which
	// the engine pauses its own workers.
	idleShutdownThreshold int
	// How often the engine samples queue/processing size and pages_crawled
	// to evaluate the idle-shutdown condition.
	metricsInterval time.Duration

	//===============
	// Document sink
	//===============
	enableBusOutput bool
	busBrokers      []string
	busTopic        string
	enableLocalSave bool
	// jobName namespaces this crawl's output under local_output_dir/documents/<jobName>.
	jobName string

	//===============
	// Frontier store
	//===============
	frontierHost     string
	frontierPort     int
	frontierDB       int
	frontierPassword string
}

type configDTO struct {
	SeedURLs               []url.URL           `json:"seedUrls"`
	AllowedHosts           map[string]struct{} `json:"allowedHosts,omitempty"`
	AllowedPathPrefix      []string            `json:"allowedPathPrefix,omitempty"`
	MaxDepth               int                 `json:"maxDepth,omitempty"`
	MaxPages               int                 `json:"maxPages,omitempty"`
	Concurrency            int                 `json:"concurrency,omitempty"`
	BaseDelay              time.Duration       `json:"baseDelay,omitempty"`
	Jitter                 time.Duration       `json:"jitter,omitempty"`
	RandomSeed             int64               `json:"randomSeed,omitempty"`
	MaxAttempt             int                 `json:"maxAttempt,omitempty"`
	BackoffInitialDuration time.Duration       `json:"backoffInitialDuration,omitempty"`
	BackoffMultiplier      float64             `json:"backoffMultiplier,omitempty"`
	BackoffMaxDuration     time.Duration       `json:"backoffMaxDuration,omitempty"`
	Timeout                time.Duration       `json:"timeout,omitempty"`
	UserAgent              string              `json:"userAgent,omitempty"`
	OutputDir              string              `json:"outputDir,omitempty"`
	DryRun                 bool                `json:"dryRun,omitempty"`
	// Extraction parameters
	BodySpecificityBias                 float64 `json:"bodySpecificityBias,omitempty"`
	LinkDensityThreshold                float64 `json:"linkDensityThreshold,omitempty"`
	ScoreMultiplierNonWhitespaceDivisor float64 `json:"scoreMultiplierNonWhitespaceDivisor,omitempty"`
	ScoreMultiplierParagraphs           float64 `json:"scoreMultiplierParagraphs,omitempty"`
	ScoreMultiplierHeadings             float64 `json:"scoreMultiplierHeadings,omitempty"`
	ScoreMultiplierCodeBlocks           float64 `json:"scoreMultiplierCodeBlocks,omitempty"`
	ScoreMultiplierListItems            float64 `json:"scoreMultiplierListItems,omitempty"`
	ThresholdMinNonWhitespace           int     `json:"thresholdMinNonWhitespace,omitempty"`
	ThresholdMinHeadings                int     `json:"thresholdMinHeadings,omitempty"`
	ThresholdMinParagraphsOrCode        int     `json:"thresholdMinParagraphsOrCode,omitempty"`
	ThresholdMaxLinkDensity             float64 `json:"thresholdMaxLinkDensity,omitempty"`

	// Transport
	MaxConnections         int                      `json:"maxConnections,omitempty"`
	AllowRedirects         bool                     `json:"allowRedirects,omitempty"`
	RateLimits             map[string]time.Duration `json:"rateLimits,omitempty"`
	AdditionalHeaders      map[string]string        `json:"additionalHeaders,omitempty"`
	SSLVerificationEnabled bool                     `json:"sslVerificationEnabled,omitempty"`
	CustomCABundle         string                   `json:"customCABundle,omitempty"`

	// Crawl policy
	SeedURLsFile        string        `json:"seedUrlsFile,omitempty"`
	ExcludedExtensions  []string      `json:"excludedExtensions,omitempty"`
	PriorityPatterns    []string      `json:"priorityPatterns,omitempty"`
	AllowedContentTypes []string      `json:"allowedContentTypes,omitempty"`
	MaxContentSize      int64         `json:"maxContentSize,omitempty"`
	RespectRobotsTxt    bool          `json:"respectRobotsTxt,omitempty"`
	RobotsCacheTime     time.Duration `json:"robotsCacheTime,omitempty"`

	// Bloom filter
	BloomCapacity  uint    `json:"bloomCapacity,omitempty"`
	BloomErrorRate float64 `json:"bloomErrorRate,omitempty"`

	// Engine lifecycle
	IdleShutdownThreshold int           `json:"idleShutdownThreshold,omitempty"`
	MetricsInterval       time.Duration `json:"metricsInterval,omitempty"`

	// Document sink
	EnableBusOutput bool     `json:"enableBusOutput,omitempty"`
	BusBrokers      []string `json:"busBrokers,omitempty"`
	BusTopic        string   `json:"busTopic,omitempty"`
	EnableLocalSave bool     `json:"enableLocalSave,omitempty"`
	JobName         string   `json:"jobName,omitempty"`

	// Frontier store
	FrontierHost     string `json:"frontierHost,omitempty"`
	FrontierPort     int    `json:"frontierPort,omitempty"`
	FrontierDB       int    `json:"frontierDb,omitempty"`
	FrontierPassword string `json:"frontierPassword,omitempty"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {

	// Start with default config
	cfg, err := WithDefault(dto.SeedURLs).Build()
	if err != nil {
		return Config{}, err
	}

	// AllowedHosts can be empty - if so, default to seed URLs hostnames
	if len(dto.AllowedHosts) > 0 {
		cfg.allowedHosts = dto.AllowedHosts
	}

	// AllowedPathPrefix can be empty - always use DTO values
	cfg.allowedPathPrefix = dto.AllowedPathPrefix

	// For other fields, only override if non-zero value is provided
	if dto.MaxDepth != 0 {
		cfg.maxDepth = dto.MaxDepth
	}
	if dto.MaxPages != 0 {
		cfg.maxPages = dto.MaxPages
	}
	if dto.Concurrency != 0 {
		cfg.concurrency = dto.Concurrency
	}
	if dto.BaseDelay != 0 {
		cfg.baseDelay = dto.BaseDelay
	}
	if dto.Jitter != 0 {
		cfg.jitter = dto.Jitter
	}
	if dto.RandomSeed != 0 {
		cfg.randomSeed = dto.RandomSeed
	}
	if dto.MaxAttempt != 0 {
		cfg.maxAttempt = dto.MaxAttempt
	}
	if dto.BackoffInitialDuration != 0 {
		cfg.backoffInitialDuration = dto.BackoffInitialDuration
	}
	if dto.BackoffMultiplier != 0 {
		cfg.backoffMultiplier = dto.BackoffMultiplier
	}
	if dto.BackoffMaxDuration != 0 {
		cfg.backoffMaxDuration = dto.BackoffMaxDuration
	}

	if dto.Timeout != 0 {
		cfg.timeout = dto.Timeout
	}
	if dto.UserAgent != "" {
		cfg.userAgent = dto.UserAgent
	}
	if dto.OutputDir != "" {
		cfg.outputDir = dto.OutputDir
	}
	// DryRun is a boolean, check if explicitly set (we use the DTO value as-is since bool zero value is false)
	cfg.dryRun = dto.DryRun

	// Extraction parameters - only override if non-zero value is provided
	// For float64, we check if value is not 0 (which is also the zero value)
	if dto.BodySpecificityBias != 0 {
		cfg.bodySpecificityBias = dto.BodySpecificityBias
	}
	if dto.LinkDensityThreshold != 0 {
		cfg.linkDensityThreshold = dto.LinkDensityThreshold
	}
	if dto.ScoreMultiplierNonWhitespaceDivisor != 0 {
		cfg.scoreMultiplierNonWhitespaceDivisor = dto.ScoreMultiplierNonWhitespaceDivisor
	}
	if dto.ScoreMultiplierParagraphs != 0 {
		cfg.scoreMultiplierParagraphs = dto.ScoreMultiplierParagraphs
	}
	if dto.ScoreMultiplierHeadings != 0 {
		cfg.scoreMultiplierHeadings = dto.ScoreMultiplierHeadings
	}
	if dto.ScoreMultiplierCodeBlocks != 0 {
		cfg.scoreMultiplierCodeBlocks = dto.ScoreMultiplierCodeBlocks
	}
	if dto.ScoreMultiplierListItems != 0 {
		cfg.scoreMultiplierListItems = dto.ScoreMultiplierListItems
	}
	if dto.ThresholdMinNonWhitespace != 0 {
		cfg.thresholdMinNonWhitespace = dto.ThresholdMinNonWhitespace
	}
	// Note: ThresholdMinHeadings can be 0 (which is a valid value), so we don't check for non-zero
	cfg.thresholdMinHeadings = dto.ThresholdMinHeadings
	if dto.ThresholdMinParagraphsOrCode != 0 {
		cfg.thresholdMinParagraphsOrCode = dto.ThresholdMinParagraphsOrCode
	}
	if dto.ThresholdMaxLinkDensity != 0 {
		cfg.thresholdMaxLinkDensity = dto.ThresholdMaxLinkDensity
	}

	if dto.MaxConnections != 0 {
		cfg.maxConnections = dto.MaxConnections
	}
	if dto.AllowRedirects {
		cfg.allowRedirects = true
	}
	if len(dto.RateLimits) > 0 {
		cfg.rateLimits = dto.RateLimits
	}
	if len(dto.AdditionalHeaders) > 0 {
		cfg.additionalHeaders = dto.AdditionalHeaders
	}
	if dto.SSLVerificationEnabled {
		cfg.sslVerificationEnabled = true
	}
	if dto.CustomCABundle != "" {
		cfg.customCABundle = dto.CustomCABundle
	}

	if dto.SeedURLsFile != "" {
		cfg.seedURLsFile = dto.SeedURLsFile
	}
	if len(dto.ExcludedExtensions) > 0 {
		cfg.excludedExtensions = dto.ExcludedExtensions
	}
	if len(dto.PriorityPatterns) > 0 {
		cfg.priorityPatterns = dto.PriorityPatterns
	}
	if len(dto.AllowedContentTypes) > 0 {
		cfg.allowedContentTypes = dto.AllowedContentTypes
	}
	if dto.MaxContentSize != 0 {
		cfg.maxContentSize = dto.MaxContentSize
	}
	if dto.RespectRobotsTxt {
		cfg.respectRobotsTxt = true
	}
	if dto.RobotsCacheTime != 0 {
		cfg.robotsCacheTime = dto.RobotsCacheTime
	}

	if dto.BloomCapacity != 0 {
		cfg.bloomCapacity = dto.BloomCapacity
	}
	if dto.BloomErrorRate != 0 {
		cfg.bloomErrorRate = dto.BloomErrorRate
	}

	if dto.IdleShutdownThreshold != 0 {
		cfg.idleShutdownThreshold = dto.IdleShutdownThreshold
	}
	if dto.MetricsInterval != 0 {
		cfg.metricsInterval = dto.MetricsInterval
	}

	if dto.EnableBusOutput {
		cfg.enableBusOutput = true
	}
	if len(dto.BusBrokers) > 0 {
		cfg.busBrokers = dto.BusBrokers
	}
	if dto.BusTopic != "" {
		cfg.busTopic = dto.BusTopic
	}
	if dto.EnableLocalSave {
		cfg.enableLocalSave = true
	}
	if dto.JobName != "" {
		cfg.jobName = dto.JobName
	}

	if dto.FrontierHost != "" {
		cfg.frontierHost = dto.FrontierHost
	}
	if dto.FrontierPort != 0 {
		cfg.frontierPort = dto.FrontierPort
	}
	if dto.FrontierDB != 0 {
		cfg.frontierDB = dto.FrontierDB
	}
	if dto.FrontierPassword != "" {
		cfg.frontierPassword = dto.FrontierPassword
	}

	return cfg, nil
}

func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}
	cfgDTO := configDTO{}

	err = json.Unmarshal(configContent, &cfgDTO)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	cfg, err := newConfigFromDTO(cfgDTO)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithDefault creates a new Config with the provided seed URLs and default values for all other fields.
// seedUrls is mandatory and must not be empty - an error will be returned if it is.
func WithDefault(seedUrls []url.URL) *Config {
	defaultConfig := Config{
		seedURLs:     seedUrls,
		allowedHosts: map[string]struct{}{},
		allowedPathPrefix: []string{
			"/",
		},
		maxDepth:               3,
		maxPages:               100,
		concurrency:            10,
		baseDelay:              time.Second,
		jitter:                 time.Millisecond * 500,
		randomSeed:             time.Now().UnixNano(),
		maxAttempt:             10,
		backoffInitialDuration: 100 * time.Millisecond,
		backoffMultiplier:      2.0,
		backoffMaxDuration:     10 * time.Second,
		timeout:                time.Second * 10,
		userAgent:              "docs-crawler/1.0",
		outputDir:              "output",
		dryRun:                 false,
		// Extraction defaults
		bodySpecificityBias:                 0.75,
		linkDensityThreshold:                0.80,
		scoreMultiplierNonWhitespaceDivisor: 50.0,
		scoreMultiplierParagraphs:           5.0,
		scoreMultiplierHeadings:             10.0,
		scoreMultiplierCodeBlocks:           15.0,
		scoreMultiplierListItems:            2.0,
		thresholdMinNonWhitespace:           50,
		thresholdMinHeadings:                0,
		thresholdMinParagraphsOrCode:        1,
		thresholdMaxLinkDensity:             0.8,

		maxConnections:         100,
		allowRedirects:         true,
		rateLimits:             map[string]time.Duration{},
		additionalHeaders:      map[string]string{},
		sslVerificationEnabled: true,

		excludedExtensions:  []string{".pdf", ".zip", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".mp4", ".mp3"},
		priorityPatterns:    []string{},
		allowedContentTypes: []string{"text/html"},
		maxContentSize:      10 * 1024 * 1024,
		respectRobotsTxt:    true,
		robotsCacheTime:     time.Hour,

		bloomCapacity:  1_000_000,
		bloomErrorRate: 0.01,

		idleShutdownThreshold: 5,
		metricsInterval:       time.Second,

		enableLocalSave: true,
		jobName:         "default",

		frontierHost: "localhost",
		frontierPort: 6379,
	}
	return &defaultConfig
}

func (c *Config) WithSeedUrls(urls []url.URL) *Config {
	c.seedURLs = urls
	return c
}

func (c *Config) WithAllowedHosts(hosts map[string]struct{}) *Config {
	c.allowedHosts = hosts
	return c
}

func (c *Config) WithAllowedPathPrefix(prefixes []string) *Config {
	c.allowedPathPrefix = prefixes
	return c
}

func (c *Config) WithMaxDepth(depth int) *Config {
	c.maxDepth = depth
	return c
}

func (c *Config) WithMaxPages(pages int) *Config {
	c.maxPages = pages
	return c
}

func (c *Config) WithConcurrency(concurrency int) *Config {
	c.concurrency = concurrency
	return c
}

func (c *Config) WithBaseDelay(delay time.Duration) *Config {
	c.baseDelay = delay
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithMaxAttempt(attempts int) *Config {
	c.maxAttempt = attempts
	return c
}

func (c *Config) WithBackoffInitialDuration(duration time.Duration) *Config {
	c.backoffInitialDuration = duration
	return c
}

func (c *Config) WithBackoffMultiplier(multiplier float64) *Config {
	c.backoffMultiplier = multiplier
	return c
}

func (c *Config) WithBackoffMaxDuration(duration time.Duration) *Config {
	c.backoffMaxDuration = duration
	return c
}

func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.timeout = timeout
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithOutputDir(outputDir string) *Config {
	c.outputDir = outputDir
	return c
}

func (c *Config) WithDryRun(dryRun bool) *Config {
	c.dryRun = dryRun
	return c
}

func (c *Config) WithBodySpecificityBias(bias float64) *Config {
	c.bodySpecificityBias = bias
	return c
}

func (c *Config) WithLinkDensityThreshold(threshold float64) *Config {
	c.linkDensityThreshold = threshold
	return c
}

func (c *Config) WithScoreMultiplierNonWhitespaceDivisor(divisor float64) *Config {
	c.scoreMultiplierNonWhitespaceDivisor = divisor
	return c
}

func (c *Config) WithScoreMultiplierParagraphs(multiplier float64) *Config {
	c.scoreMultiplierParagraphs = multiplier
	return c
}

func (c *Config) WithScoreMultiplierHeadings(multiplier float64) *Config {
	c.scoreMultiplierHeadings = multiplier
	return c
}

func (c *Config) WithScoreMultiplierCodeBlocks(multiplier float64) *Config {
	c.scoreMultiplierCodeBlocks = multiplier
	return c
}

func (c *Config) WithScoreMultiplierListItems(multiplier float64) *Config {
	c.scoreMultiplierListItems = multiplier
	return c
}

func (c *Config) WithThresholdMinNonWhitespace(min int) *Config {
	c.thresholdMinNonWhitespace = min
	return c
}

func (c *Config) WithThresholdMinHeadings(min int) *Config {
	c.thresholdMinHeadings = min
	return c
}

func (c *Config) WithThresholdMinParagraphsOrCode(min int) *Config {
	c.thresholdMinParagraphsOrCode = min
	return c
}

func (c *Config) WithThresholdMaxLinkDensity(max float64) *Config {
	c.thresholdMaxLinkDensity = max
	return c
}

func (c *Config) WithMaxConnections(max int) *Config {
	c.maxConnections = max
	return c
}

func (c *Config) WithAllowRedirects(allow bool) *Config {
	c.allowRedirects = allow
	return c
}

func (c *Config) WithRateLimits(limits map[string]time.Duration) *Config {
	c.rateLimits = limits
	return c
}

func (c *Config) WithAdditionalHeaders(headers map[string]string) *Config {
	c.additionalHeaders = headers
	return c
}

func (c *Config) WithSSLVerificationEnabled(enabled bool) *Config {
	c.sslVerificationEnabled = enabled
	return c
}

func (c *Config) WithCustomCABundle(path string) *Config {
	c.customCABundle = path
	return c
}

func (c *Config) WithSeedURLsFile(path string) *Config {
	c.seedURLsFile = path
	return c
}

func (c *Config) WithExcludedExtensions(extensions []string) *Config {
	c.excludedExtensions = extensions
	return c
}

func (c *Config) WithPriorityPatterns(patterns []string) *Config {
	c.priorityPatterns = patterns
	return c
}

func (c *Config) WithAllowedContentTypes(types []string) *Config {
	c.allowedContentTypes = types
	return c
}

func (c *Config) WithMaxContentSize(bytes int64) *Config {
	c.maxContentSize = bytes
	return c
}

func (c *Config) WithRespectRobotsTxt(respect bool) *Config {
	c.respectRobotsTxt = respect
	return c
}

func (c *Config) WithRobotsCacheTime(ttl time.Duration) *Config {
	c.robotsCacheTime = ttl
	return c
}

func (c *Config) WithBloomCapacity(capacity uint) *Config {
	c.bloomCapacity = capacity
	return c
}

func (c *Config) WithBloomErrorRate(rate float64) *Config {
	c.bloomErrorRate = rate
	return c
}

func (c *Config) WithIdleShutdownThreshold(threshold int) *Config {
	c.idleShutdownThreshold = threshold
	return c
}

func (c *Config) WithMetricsInterval(interval time.Duration) *Config {
	c.metricsInterval = interval
	return c
}

func (c *Config) WithEnableBusOutput(enabled bool) *Config {
	c.enableBusOutput = enabled
	return c
}

func (c *Config) WithBusBrokers(brokers []string) *Config {
	c.busBrokers = brokers
	return c
}

func (c *Config) WithBusTopic(topic string) *Config {
	c.busTopic = topic
	return c
}

func (c *Config) WithEnableLocalSave(enabled bool) *Config {
	c.enableLocalSave = enabled
	return c
}

func (c *Config) WithJobName(name string) *Config {
	c.jobName = name
	return c
}

func (c *Config) WithFrontierHost(host string) *Config {
	c.frontierHost = host
	return c
}

func (c *Config) WithFrontierPort(port int) *Config {
	c.frontierPort = port
	return c
}

func (c *Config) WithFrontierDB(db int) *Config {
	c.frontierDB = db
	return c
}

func (c *Config) WithFrontierPassword(password string) *Config {
	c.frontierPassword = password
	return c
}

func (c *Config) Build() (Config, error) {
	if len(c.seedURLs) == 0 {
		return Config{}, fmt.Errorf("%w: seedUrls cannot be empty", ErrInvalidConfig)
	}

	// If allowedHosts is empty, default to seed URLs hostnames
	if len(c.allowedHosts) == 0 {
		c.allowedHosts = make(map[string]struct{})
		for _, u := range c.seedURLs {
			if u.Host != "" {
				c.allowedHosts[u.Host] = struct{}{}
			}
		}
	}

	if !c.enableBusOutput && !c.enableLocalSave {
		return Config{}, fmt.Errorf("%w: at least one of enableBusOutput/enableLocalSave must be set", ErrInvalidConfig)
	}
	if c.enableBusOutput && (len(c.busBrokers) == 0 || c.busTopic == "") {
		return Config{}, fmt.Errorf("%w: bus output enabled without busBrokers/busTopic", ErrInvalidConfig)
	}
	if c.enableLocalSave && c.outputDir == "" {
		return Config{}, fmt.Errorf("%w: local save enabled without outputDir", ErrInvalidConfig)
	}
	if c.frontierHost == "" {
		return Config{}, fmt.Errorf("%w: frontierHost must not be empty", ErrInvalidConfig)
	}
	if c.concurrency < 1 {
		return Config{}, fmt.Errorf("%w: concurrency must be >= 1", ErrInvalidConfig)
	}
	if c.maxDepth < 0 {
		return Config{}, fmt.Errorf("%w: maxDepth must be >= 0", ErrInvalidConfig)
	}
	if c.maxPages < 0 {
		return Config{}, fmt.Errorf("%w: maxPages must be >= 0", ErrInvalidConfig)
	}
	if c.bloomErrorRate <= 0 || c.bloomErrorRate >= 1 {
		return Config{}, fmt.Errorf("%w: bloomErrorRate must be in (0,1)", ErrInvalidConfig)
	}
	if c.idleShutdownThreshold < 1 {
		return Config{}, fmt.Errorf("%w: idleShutdownThreshold must be >= 1", ErrInvalidConfig)
	}
	if c.metricsInterval <= 0 {
		c.metricsInterval = time.Second
	}

	if c.jobName == "" {
		c.jobName = "default"
	}

	return *c, nil
}

func (c Config) SeedURLs() []url.URL {
	urls := make([]url.URL, len(c.seedURLs))
	copy(urls, c.seedURLs)
	return urls
}

func (c Config) AllowedHosts() map[string]struct{} {
	hosts := make(map[string]struct{})
	for k, v := range c.allowedHosts {
		hosts[k] = v
	}
	return hosts
}

func (c Config) AllowedPathPrefix() []string {
	prefixes := make([]string, len(c.allowedPathPrefix))
	copy(prefixes, c.allowedPathPrefix)
	return prefixes
}

func (c Config) MaxDepth() int {
	return c.maxDepth
}

func (c Config) MaxPages() int {
	return c.maxPages
}

func (c Config) Concurrency() int {
	return c.concurrency
}

func (c Config) BaseDelay() time.Duration {
	return c.baseDelay
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) Timeout() time.Duration {
	return c.timeout
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) OutputDir() string {
	return c.outputDir
}

func (c Config) DryRun() bool {
	return c.dryRun
}

func (c Config) MaxAttempt() int {
	return c.maxAttempt
}

func (c Config) BackoffInitialDuration() time.Duration {
	return c.backoffInitialDuration
}

func (c Config) BackoffMultiplier() float64 {
	return c.backoffMultiplier
}

func (c Config) BackoffMaxDuration() time.Duration {
	return c.backoffMaxDuration
}

func (c Config) BodySpecificityBias() float64 {
	return c.bodySpecificityBias
}

func (c Config) LinkDensityThreshold() float64 {
	return c.linkDensityThreshold
}

func (c Config) ScoreMultiplierNonWhitespaceDivisor() float64 {
	return c.scoreMultiplierNonWhitespaceDivisor
}

func (c Config) ScoreMultiplierParagraphs() float64 {
	return c.scoreMultiplierParagraphs
}

func (c Config) ScoreMultiplierHeadings() float64 {
	return c.scoreMultiplierHeadings
}

func (c Config) ScoreMultiplierCodeBlocks() float64 {
	return c.scoreMultiplierCodeBlocks
}

func (c Config) ScoreMultiplierListItems() float64 {
	return c.scoreMultiplierListItems
}

func (c Config) ThresholdMinNonWhitespace() int {
	return c.thresholdMinNonWhitespace
}

func (c Config) ThresholdMinHeadings() int {
	return c.thresholdMinHeadings
}

func (c Config) ThresholdMinParagraphsOrCode() int {
	return c.thresholdMinParagraphsOrCode
}

func (c Config) ThresholdMaxLinkDensity() float64 {
	return c.thresholdMaxLinkDensity
}

// Workers is an alias for Concurrency, matching the worker-pool-size
// terminology used by the engine and its configuration surface.
func (c Config) Workers() int {
	return c.concurrency
}

// RequestTimeout is an alias for Timeout.
func (c Config) RequestTimeout() time.Duration {
	return c.timeout
}

// DefaultDelay is an alias for BaseDelay.
func (c Config) DefaultDelay() time.Duration {
	return c.baseDelay
}

// LocalOutputDir is an alias for OutputDir.
func (c Config) LocalOutputDir() string {
	return c.outputDir
}

func (c Config) MaxConnections() int {
	return c.maxConnections
}

func (c Config) AllowRedirects() bool {
	return c.allowRedirects
}

func (c Config) RateLimits() map[string]time.Duration {
	limits := make(map[string]time.Duration, len(c.rateLimits))
	for k, v := range c.rateLimits {
		limits[k] = v
	}
	return limits
}

func (c Config) AdditionalHeaders() map[string]string {
	headers := make(map[string]string, len(c.additionalHeaders))
	for k, v := range c.additionalHeaders {
		headers[k] = v
	}
	return headers
}

func (c Config) SSLVerificationEnabled() bool {
	return c.sslVerificationEnabled
}

func (c Config) CustomCABundle() string {
	return c.customCABundle
}

func (c Config) SeedURLsFile() string {
	return c.seedURLsFile
}

func (c Config) ExcludedExtensions() []string {
	extensions := make([]string, len(c.excludedExtensions))
	copy(extensions, c.excludedExtensions)
	return extensions
}

func (c Config) PriorityPatterns() []string {
	patterns := make([]string, len(c.priorityPatterns))
	copy(patterns, c.priorityPatterns)
	return patterns
}

func (c Config) AllowedContentTypes() []string {
	types := make([]string, len(c.allowedContentTypes))
	copy(types, c.allowedContentTypes)
	return types
}

func (c Config) MaxContentSize() int64 {
	return c.maxContentSize
}

func (c Config) RespectRobotsTxt() bool {
	return c.respectRobotsTxt
}

func (c Config) RobotsCacheTime() time.Duration {
	return c.robotsCacheTime
}

func (c Config) BloomCapacity() uint {
	return c.bloomCapacity
}

func (c Config) BloomErrorRate() float64 {
	return c.bloomErrorRate
}

func (c Config) IdleShutdownThreshold() int {
	return c.idleShutdownThreshold
}

func (c Config) MetricsInterval() time.Duration {
	return c.metricsInterval
}

func (c Config) EnableBusOutput() bool {
	return c.enableBusOutput
}

func (c Config) BusBrokers() []string {
	brokers := make([]string, len(c.busBrokers))
	copy(brokers, c.busBrokers)
	return brokers
}

func (c Config) BusTopic() string {
	return c.busTopic
}

func (c Config) EnableLocalSave() bool {
	return c.enableLocalSave
}

func (c Config) JobName() string {
	return c.jobName
}

func (c Config) FrontierHost() string {
	return c.frontierHost
}

func (c Config) FrontierPort() int {
	return c.frontierPort
}

func (c Config) FrontierDB() int {
	return c.frontierDB
}

func (c Config) FrontierPassword() string {
	return c.frontierPassword
}
