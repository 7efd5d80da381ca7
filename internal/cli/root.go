package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/engine"
	"github.com/spf13/cobra"
)

var (
	cfgFile               string
	seedURLs              []string
	maxDepth              int
	concurrency           int
	outputDir             string
	dryRun                bool
	maxPages              int
	userAgent             string
	timeout               time.Duration
	baseDelay             time.Duration
	jitter                time.Duration
	randomSeed            int64
	allowedHosts          []string
	allowedPathPrefix     []string
	frontierHost          string
	frontierPort          int
	idleShutdownThreshold int
	metricsInterval       time.Duration
	disableRobotsTxt      bool
	jobName               string
	enableBusOutput       bool
	busBrokers            []string
	busTopic              string
)

// parseStringSliceToSet converts a string slice to a map[string]struct{} set
func parseStringSliceToSet(strings []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, s := range strings {
		if s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

// parseSeedURLs converts a string slice of URLs to []url.URL
func parseSeedURLs(urlStrings []string) ([]url.URL, error) {
	if len(urlStrings) == 0 {
		return nil, fmt.Errorf("seed URLs cannot be empty")
	}

	var urls []url.URL
	for _, urlStr := range urlStrings {
		parsedURL, err := url.Parse(urlStr)
		if err != nil {
			return nil, fmt.Errorf("error parsing seed URL %s: %w", urlStr, err)
		}
		urls = append(urls, *parsedURL)
	}
	return urls, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docs-crawler",
	Short: "A local-only documentation crawler.",
	Long: `docs-crawler is a CLI application that crawls documentation websites
with a pool of concurrent workers over a Redis-backed URL frontier.

Each crawled page is emitted as a JSON document (title, description, links,
a plain-text preview, headers and metadata) to the configured sinks: local
files and/or a message bus. The crawl runs until interrupted (Ctrl+C or SIGTERM).`,
	Run: func(cmd *cobra.Command, args []string) {
		// Check if seed URLs are provided
		if len(seedURLs) == 0 {
			fmt.Fprintf(os.Stderr, "Error: --seed-url is required. Please provide at least one seed URL to start crawling.\n")
			cmd.Usage()
			os.Exit(1)
		}

		// Parse seed URLs
		parsedURLs, err := parseSeedURLs(seedURLs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}

		// Build config using initConfig with parsed seed URLs
		cfg := InitConfig(parsedURLs)

		fmt.Printf("Configuration initialized successfully\n")
		if len(cfg.SeedURLs()) > 0 {
			var urls []string
			for _, u := range cfg.SeedURLs() {
				urls = append(urls, u.String())
			}
			fmt.Printf("Seed URLs: %s\n", strings.Join(urls, ", "))
		}
		if len(cfg.AllowedHosts()) > 0 {
			var hosts []string
			for host := range cfg.AllowedHosts() {
				hosts = append(hosts, host)
			}
			fmt.Printf("Allowed Hosts: %s\n", strings.Join(hosts, ", "))
		}
		fmt.Printf("Max Depth: %d, Max Pages: %d, Workers: %d\n", cfg.MaxDepth(), cfg.MaxPages(), cfg.Workers())

		if dryRun {
			fmt.Println("Dry run: configuration validated, crawl not started")
			return
		}

		e, err := engine.NewEngine(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to build crawl engine: %s\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := e.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start crawl engine: %s\n", err)
			os.Exit(1)
		}
		fmt.Println("Crawl started. Press Ctrl+C to stop.")

		<-ctx.Done()
		fmt.Println("Shutting down...")

		status := e.GetStatus(context.Background())

		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.Stop(stopCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %s\n", err)
			os.Exit(1)
		}

		fmt.Printf("Crawl stopped. Pages crawled: %d\n", status.PagesCrawledTotal)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Here you will define your flags and configuration settings.
	// Cobra supports persistent flags, which, if defined here,
	// will be available to all subcommands in the docs-crawler application.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file path (e.g., /home/myuser/config.json)")
	rootCmd.PersistentFlags().StringArrayVar(&seedURLs, "seed-url", []string{}, "one or more starting URLs (can be repeated)")
	rootCmd.PersistentFlags().IntVar(&maxDepth, "max-depth", 5, "maximum link depth from seed URL")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 3, "number of concurrent fetch workers")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "output", "root output directory for crawled content")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "print the resolved configuration and exit without crawling")
	rootCmd.PersistentFlags().IntVar(&maxPages, "max-pages", 0, "maximum number of pages to fetch (0 for unlimited)")
	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", "", "user agent string for HTTP requests")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "timeout for HTTP requests")
	rootCmd.PersistentFlags().DurationVar(&baseDelay, "base-delay", 0, "base delay between HTTP requests to the same host")
	rootCmd.PersistentFlags().DurationVar(&jitter, "jitter", 0, "random jitter added to base delay")
	rootCmd.PersistentFlags().Int64Var(&randomSeed, "random-seed", 0, "seed for random number generation (0 for current time)")
	rootCmd.PersistentFlags().StringArrayVar(&allowedHosts, "allowed-host", []string{}, "explicit hostname allowlist (defaults to seed host)")
	rootCmd.PersistentFlags().StringArrayVar(&allowedPathPrefix, "allowed-path-prefix", []string{}, "restrict crawl to paths like `/docs`, `/guide`")
	rootCmd.PersistentFlags().StringVar(&frontierHost, "frontier-host", "", "hostname of the Redis-backed URL frontier")
	rootCmd.PersistentFlags().IntVar(&frontierPort, "frontier-port", 0, "port of the Redis-backed URL frontier")
	rootCmd.PersistentFlags().IntVar(&idleShutdownThreshold, "idle-shutdown-threshold", 0, "consecutive idle samples before the engine pauses itself")
	rootCmd.PersistentFlags().DurationVar(&metricsInterval, "metrics-interval", 0, "how often the engine samples queue/processing size for idle detection")
	rootCmd.PersistentFlags().BoolVar(&disableRobotsTxt, "disable-robots-txt", false, "skip robots.txt checks (use only against sites you control)")
	rootCmd.PersistentFlags().StringVar(&jobName, "job-name", "", "name used to namespace this crawl's output")
	rootCmd.PersistentFlags().BoolVar(&enableBusOutput, "enable-bus-output", false, "also publish crawled documents to a message bus")
	rootCmd.PersistentFlags().StringArrayVar(&busBrokers, "bus-broker", []string{}, "message bus broker address (can be repeated)")
	rootCmd.PersistentFlags().StringVar(&busTopic, "bus-topic", "", "message bus topic/exchange to publish documents to")
}

// InitConfig builds the config from the config file if one is set, otherwise from the CLI flags.
// seedUrls is a mandatory parameter and must contain at least one valid URL.
func InitConfig(seedUrls []url.URL) config.Config {
	cfg, err := InitConfigWithError(seedUrls)
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
	return cfg
}

// InitConfigWithError builds the config from the config file if one is set, otherwise from the CLI flags, returning any errors.
// seedUrls is a mandatory parameter and must contain at least one valid URL.
// This makes it easier to test error cases.
func InitConfigWithError(seedUrls []url.URL) (config.Config, error) {
	if len(seedUrls) == 0 {
		return config.Config{}, fmt.Errorf("%w: seedUrls cannot be empty", config.ErrInvalidConfig)
	}

	if cfgFile != "" {
		fmt.Printf("Initializing config from file: %s\n", cfgFile)
		cfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("error initializing config from file: %w", err)
		}
		return cfg, nil
	}

	// Build config from CLI flags using the With... functions with method chaining
	fmt.Println("No config file specified. Using default flag values")

	// Start with default config using provided seed URLs and apply overrides using method chaining
	configBuilder := config.WithDefault(seedUrls)

	// Override with CLI flag values where provided
	if maxDepth > 0 {
		configBuilder = configBuilder.WithMaxDepth(maxDepth)
	}

	if concurrency > 0 {
		configBuilder = configBuilder.WithConcurrency(concurrency)
	}

	if outputDir != "" && outputDir != "output" {
		configBuilder = configBuilder.WithOutputDir(outputDir)
	}

	if dryRun {
		configBuilder = configBuilder.WithDryRun(dryRun)
	}

	if maxPages > 0 {
		configBuilder = configBuilder.WithMaxPages(maxPages)
	}

	if userAgent != "" {
		configBuilder = configBuilder.WithUserAgent(userAgent)
	}

	if timeout > 0 {
		configBuilder = configBuilder.WithTimeout(timeout)
	}

	if baseDelay > 0 {
		configBuilder = configBuilder.WithBaseDelay(baseDelay)
	}

	if jitter > 0 {
		configBuilder = configBuilder.WithJitter(jitter)
	}

	if randomSeed != 0 {
		configBuilder = configBuilder.WithRandomSeed(randomSeed)
	}

	if len(allowedHosts) > 0 {
		configBuilder = configBuilder.WithAllowedHosts(parseStringSliceToSet(allowedHosts))
	}

	if len(allowedPathPrefix) > 0 {
		configBuilder = configBuilder.WithAllowedPathPrefix(allowedPathPrefix)
	}

	if frontierHost != "" {
		configBuilder = configBuilder.WithFrontierHost(frontierHost)
	}

	if frontierPort > 0 {
		configBuilder = configBuilder.WithFrontierPort(frontierPort)
	}

	if idleShutdownThreshold > 0 {
		configBuilder = configBuilder.WithIdleShutdownThreshold(idleShutdownThreshold)
	}

	if metricsInterval > 0 {
		configBuilder = configBuilder.WithMetricsInterval(metricsInterval)
	}

	if disableRobotsTxt {
		configBuilder = configBuilder.WithRespectRobotsTxt(false)
	}

	if jobName != "" {
		configBuilder = configBuilder.WithJobName(jobName)
	}

	if enableBusOutput {
		configBuilder = configBuilder.WithEnableBusOutput(true)
	}

	if len(busBrokers) > 0 {
		configBuilder = configBuilder.WithBusBrokers(busBrokers)
	}

	if busTopic != "" {
		configBuilder = configBuilder.WithBusTopic(busTopic)
	}

	cfg, err := configBuilder.Build()
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func ResetFlags() {
	cfgFile = ""
	seedURLs = []string{}
	maxDepth = 0
	concurrency = 0
	outputDir = ""
	dryRun = false
	maxPages = 0
	userAgent = ""
	timeout = 0
	baseDelay = 0
	jitter = 0
	randomSeed = 0
	allowedHosts = []string{}
	allowedPathPrefix = []string{}
	frontierHost = ""
	frontierPort = 0
	idleShutdownThreshold = 0
	metricsInterval = 0
	disableRobotsTxt = false
	jobName = ""
	enableBusOutput = false
	busBrokers = []string{}
	busTopic = ""
}

// Test helper functions to set flag values from tests
func SetConfigFileForTest(path string) {
	cfgFile = path
}

func SetSeedURLsForTest(urls []string) {
	seedURLs = urls
}

func SetMaxDepthForTest(depth int) {
	maxDepth = depth
}

func SetConcurrencyForTest(conc int) {
	concurrency = conc
}

func SetOutputDirForTest(dir string) {
	outputDir = dir
}

func SetDryRunForTest(dry bool) {
	dryRun = dry
}

func SetMaxPagesForTest(pages int) {
	maxPages = pages
}

func SetUserAgentForTest(agent string) {
	userAgent = agent
}

func SetTimeoutForTest(t time.Duration) {
	timeout = t
}

func SetBaseDelayForTest(delay time.Duration) {
	baseDelay = delay
}

func SetJitterForTest(j time.Duration) {
	jitter = j
}

func SetRandomSeedForTest(seed int64) {
	randomSeed = seed
}

func SetAllowedHostsForTest(hosts []string) {
	allowedHosts = hosts
}

func SetAllowedPathPrefixForTest(prefixes []string) {
	allowedPathPrefix = prefixes
}

func SetFrontierHostForTest(host string) {
	frontierHost = host
}

func SetFrontierPortForTest(port int) {
	frontierPort = port
}

func SetIdleShutdownThresholdForTest(threshold int) {
	idleShutdownThreshold = threshold
}

func SetMetricsIntervalForTest(interval time.Duration) {
	metricsInterval = interval
}

func SetDisableRobotsTxtForTest(disable bool) {
	disableRobotsTxt = disable
}

func SetJobNameForTest(name string) {
	jobName = name
}

func SetEnableBusOutputForTest(enable bool) {
	enableBusOutput = enable
}

func SetBusBrokersForTest(brokers []string) {
	busBrokers = brokers
}

func SetBusTopicForTest(topic string) {
	busTopic = topic
}
