package fetcher

import (
	"context"
	"net/http"

	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

// Fetcher performs one bounded HTTP GET per call. It never retries
// internally: a failed fetch is reported to the caller as a
// ClassifiedError, and retry/re-enqueue policy is the caller's to decide.
type Fetcher interface {
	// Init opens the underlying HTTP client per cfg.
	Init(cfg ClientConfig)
	// InitWithClient is like Init but lets the caller supply an
	// already-built client, so it can be shared with the robots checker.
	InitWithClient(client *http.Client, userAgent string, additionalHeaders map[string]string, allowedContentTypes []string, maxContentSize int64)
	// HttpClient exposes the underlying client so other components
	// (e.g. the robots checker) can share its transport and timeout.
	HttpClient() *http.Client
	Fetch(
		ctx context.Context,
		crawlDepth int,
		fetchParam FetchParam,
	) (FetchResult, failure.ClassifiedError)
}
