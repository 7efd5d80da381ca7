package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

/*
Responsibilities

- Perform HTTP requests
- Apply headers and timeouts
- Follow (or refuse) redirects per config
- Classify responses

The fetcher never parses content; it only returns bytes and metadata. It
performs exactly one GET per Fetch call -- no internal retry loop. Recovery
from a failed fetch (re-enqueue, skip, etc.) is the caller's decision.
*/

// defaultMaxContentSize bounds response bodies when config does not set
// MaxContentSize, so a misbehaving server can't exhaust memory.
const defaultMaxContentSize = 10 << 20 // 10 MiB

// ClientConfig configures the HTTP client a Fetcher opens, matching
// spec's "configured timeout, connection limit, SSL verification policy,
// and persistent headers" initialization step.
type ClientConfig struct {
	Timeout                time.Duration
	MaxConnections         int
	AllowRedirects         bool
	SSLVerificationEnabled bool
	UserAgent              string
	AdditionalHeaders      map[string]string
	AllowedContentTypes    []string
	MaxContentSize         int64
}

// DefaultClientConfig returns sane defaults for userAgent, overridable
// field by field.
func DefaultClientConfig(userAgent string) ClientConfig {
	return ClientConfig{
		Timeout:                10 * time.Second,
		MaxConnections:         50,
		AllowRedirects:         true,
		SSLVerificationEnabled: true,
		UserAgent:              userAgent,
		AllowedContentTypes:    []string{"text/html", "application/xhtml"},
		MaxContentSize:         defaultMaxContentSize,
	}
}

type HtmlFetcher struct {
	metadataSink        metadata.MetadataSink
	httpClient          *http.Client
	userAgent           string
	additionalHeaders   map[string]string
	allowedContentTypes []string
	maxContentSize      int64
}

func NewHtmlFetcher(
	metadataSink metadata.MetadataSink,
) HtmlFetcher {
	return HtmlFetcher{
		metadataSink: metadataSink,
	}
}

func (h *HtmlFetcher) Init(cfg ClientConfig) {
	h.InitWithClient(buildHTTPClient(cfg), cfg.UserAgent, cfg.AdditionalHeaders, cfg.AllowedContentTypes, cfg.MaxContentSize)
}

func (h *HtmlFetcher) InitWithClient(
	client *http.Client,
	userAgent string,
	additionalHeaders map[string]string,
	allowedContentTypes []string,
	maxContentSize int64,
) {
	h.httpClient = client
	h.userAgent = userAgent
	h.additionalHeaders = additionalHeaders
	if maxContentSize <= 0 {
		maxContentSize = defaultMaxContentSize
	}
	h.allowedContentTypes = allowedContentTypes
	h.maxContentSize = maxContentSize
}

func (h *HtmlFetcher) HttpClient() *http.Client {
	return h.httpClient
}

func buildHTTPClient(cfg ClientConfig) *http.Client {
	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 50
	}

	transport := &http.Transport{
		MaxConnsPerHost:     maxConns,
		MaxIdleConnsPerHost: maxConns,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: !cfg.SSLVerificationEnabled},
	}

	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
	if !cfg.AllowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client
}

func (h *HtmlFetcher) Fetch(
	ctx context.Context,
	crawlDepth int,
	fetchParam FetchParam,
) (FetchResult, failure.ClassifiedError) {
	callerMethod := "HtmlFetcher.Fetch"
	startTime := time.Now()

	result, err := h.performFetch(ctx, fetchParam.fetchUrl)

	duration := time.Since(startTime)

	var statusCode int
	var contentType string
	if err == nil {
		statusCode = result.Code()
		contentType = result.ContentType()
	}

	// attemptCount is always 1: this fetcher never retries internally.
	h.metadataSink.RecordFetch(
		fetchParam.fetchUrl.String(),
		statusCode,
		duration,
		contentType,
		1,
		crawlDepth,
	)

	if err != nil {
		h.recordFetchError(callerMethod, fetchParam.fetchUrl, err)
		return FetchResult{}, err
	}

	return result, nil
}

func (h *HtmlFetcher) recordFetchError(callerMethod string, fetchUrl url.URL, err failure.ClassifiedError) {
	var fetchError *FetchError
	if errors.As(err, &fetchError) {
		h.metadataSink.RecordError(
			time.Now(),
			"fetcher",
			callerMethod,
			mapFetchErrorToMetadataCause(fetchError),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
			},
		)
	}
}

func (h *HtmlFetcher) performFetch(ctx context.Context, fetchUrl url.URL) (FetchResult, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	for key, value := range requestHeaders(h.userAgent, h.additionalHeaders) {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	finalURL := fetchUrl
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = *resp.Request.URL
	} else if loc := resp.Header.Get("Location"); loc != "" {
		// Only reached for a response without its request. With redirects
		// disabled the client returns the 3xx together with the original
		// request, so FinalURL stays the requested URL in that case.
		if resolved, err := fetchUrl.Parse(loc); err == nil {
			finalURL = *resolved
		}
	}

	switch {
	case resp.StatusCode >= 500:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("server error: %d", resp.StatusCode),
			Retryable: true,
			Cause:     ErrCauseRequest5xx,
		}
	case resp.StatusCode == 429:
		return FetchResult{}, &FetchError{
			Message:   "rate limited (429)",
			Retryable: true,
			Cause:     ErrCauseRequestTooMany,
		}
	case resp.StatusCode == 403:
		return FetchResult{}, &FetchError{
			Message:   "access forbidden (403)",
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("client error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if len(h.allowedContentTypes) > 0 && !contentTypeAllowed(contentType, h.allowedContentTypes) {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("disallowed content type: %s", contentType),
			Retryable: false,
			Cause:     ErrCauseContentTypeInvalid,
		}
	}

	limit := h.maxContentSize
	if limit <= 0 {
		limit = defaultMaxContentSize
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}
	if int64(len(body)) > limit {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("content exceeds max size %d bytes", limit),
			Retryable: false,
			Cause:     ErrCauseSizeLimitExceeded,
		}
	}

	responseHeaders := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	return FetchResult{
		url:       fetchUrl,
		finalURL:  finalURL,
		body:      body,
		fetchedAt: time.Now().UTC(),
		meta: ResponseMeta{
			statusCode:      resp.StatusCode,
			responseHeaders: responseHeaders,
		},
	}, nil
}

func contentTypeAllowed(contentType string, allowed []string) bool {
	ct := strings.ToLower(contentType)
	for _, substr := range allowed {
		if strings.Contains(ct, strings.ToLower(substr)) {
			return true
		}
	}
	return false
}

func requestHeaders(userAgent string, additional map[string]string) map[string]string {
	headers := map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"Accept-Encoding": "gzip, deflate, br",
		"Connection":      "keep-alive",
	}
	for key, value := range additional {
		headers[key] = value
	}
	return headers
}

var _ Fetcher = (*HtmlFetcher)(nil)
