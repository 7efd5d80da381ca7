package engine

import (
	"bufio"
	"context"
	"net/url"
	"os"
	"strings"

	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

// seedPriority is the fixed priority every seed URL enters the frontier
// with, regardless of position in the seed list or seed file.
const seedPriority = 1.0

// loadSeeds canonicalizes and admits cfg's configured seed URLs plus any
// listed in cfg.SeedURLsFile(), each at depth 0. Duplicate seeds
// (including one already present in both the list and the file) collapse
// to a single frontier entry because Frontier.Add elects on the seen set.
func (e *Engine) loadSeeds(ctx context.Context, cfg *config.Config) error {
	seeds := cfg.SeedURLs()

	if path := cfg.SeedURLsFile(); path != "" {
		fileSeeds, err := readSeedFile(path)
		if err != nil {
			return &EngineError{Message: err.Error(), Cause: ErrCauseConfigInvalid}
		}
		seeds = append(seeds, fileSeeds...)
	}

	allowed := allowedDomainsSlice(cfg)
	for _, seed := range seeds {
		canonical := urlutil.Canonicalize(seed)
		if !urlutil.IsValidForCrawl(canonical) {
			continue
		}
		if !urlutil.IsAllowedForCrawl(canonical, allowed, cfg.ExcludedExtensions()) {
			continue
		}
		if _, err := e.deps.Frontier.Add(ctx, canonical.String(), seedPriority, 0); err != nil {
			return &EngineError{Message: err.Error(), Cause: ErrCauseFrontierUnavailable}
		}
	}

	return nil
}

// readSeedFile parses one URL per line, skipping blank lines and lines
// starting with "#".
func readSeedFile(path string) ([]url.URL, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []url.URL
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parsed, err := url.Parse(line)
		if err != nil {
			continue
		}
		urls = append(urls, *parsed)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return urls, nil
}
