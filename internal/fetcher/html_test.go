package fetcher_test

import (
	"errors"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/fetcher"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

// mockMetadataSink is a test double for metadata.MetadataSink
type mockMetadataSink struct {
	fetchEvents    []fetchEvent
	errorEvents    []errorEvent
	artifactEvents []string
}

type fetchEvent struct {
	fetchUrl    string
	httpStatus  int
	duration    time.Duration
	contentType string
	retryCount  int
	crawlDepth  int
}

type errorEvent struct {
	observedAt  time.Time
	packageName string
	action      string
	cause       metadata.ErrorCause
	details     string
	attrs       []metadata.Attribute
}

func (m *mockMetadataSink) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	retryCount int,
	crawlDepth int,
) {
	m.fetchEvents = append(m.fetchEvents, fetchEvent{
		fetchUrl:    fetchUrl,
		httpStatus:  httpStatus,
		duration:    duration,
		contentType: contentType,
		retryCount:  retryCount,
		crawlDepth:  crawlDepth,
	})
}

func (m *mockMetadataSink) RecordAssetFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	retryCount int,
) {
	m.fetchEvents = append(m.fetchEvents, fetchEvent{
		fetchUrl:   fetchUrl,
		httpStatus: httpStatus,
		duration:   duration,
		retryCount: retryCount,
	})
}

func (m *mockMetadataSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	m.errorEvents = append(m.errorEvents, errorEvent{
		observedAt:  observedAt,
		packageName: packageName,
		action:      action,
		cause:       cause,
		details:     details,
		attrs:       attrs,
	})
}

func (m *mockMetadataSink) RecordArtifact(kind metadata.ArtifactKind, path string, attrs []metadata.Attribute) {
	m.artifactEvents = append(m.artifactEvents, path)
}

func newTestFetcher(sink metadata.MetadataSink) fetcher.HtmlFetcher {
	f := fetcher.NewHtmlFetcher(sink)
	cfg := fetcher.DefaultClientConfig("test-user-agent")
	cfg.Timeout = 2 * time.Second
	f.Init(cfg)
	return f
}

func TestHtmlFetcher_Fetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>Hello World</body></html>"))
	}))
	defer server.Close()

	sink := &mockMetadataSink{}
	f := newTestFetcher(sink)

	fetchUrl, _ := url.Parse(server.URL)
	result, err := f.Fetch(context.Background(), 0, fetcher.NewFetchParam(*fetchUrl))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if result.Code() != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, result.Code())
	}
	if string(result.Body()) != "<html><body>Hello World</body></html>" {
		t.Errorf("unexpected body: %s", string(result.Body()))
	}
	if result.Redirected() {
		t.Error("expected no redirect for a direct 200 response")
	}

	if len(sink.fetchEvents) != 1 {
		t.Fatalf("expected 1 fetch event, got %d", len(sink.fetchEvents))
	}
	fetchEvt := sink.fetchEvents[0]
	if fetchEvt.fetchUrl != server.URL {
		t.Errorf("expected URL %s, got %s", server.URL, fetchEvt.fetchUrl)
	}
	if fetchEvt.httpStatus != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, fetchEvt.httpStatus)
	}
	if fetchEvt.retryCount != 1 {
		t.Errorf("expected a single recorded attempt (no internal retry), got %d", fetchEvt.retryCount)
	}
	if len(sink.errorEvents) != 0 {
		t.Errorf("expected 0 error events, got %d", len(sink.errorEvents))
	}
}

func TestHtmlFetcher_Fetch_FollowsRedirect(t *testing.T) {
	var finalServer *httptest.Server
	finalServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>final</html>"))
	}))
	defer finalServer.Close()

	redirectServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, finalServer.URL, http.StatusFound)
	}))
	defer redirectServer.Close()

	sink := &mockMetadataSink{}
	f := newTestFetcher(sink)

	fetchUrl, _ := url.Parse(redirectServer.URL)
	result, err := f.Fetch(context.Background(), 0, fetcher.NewFetchParam(*fetchUrl))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Redirected() {
		t.Error("expected Redirected() to report true")
	}
	if result.FinalURL().String() != finalServer.URL+"/" && result.FinalURL().String() != finalServer.URL {
		t.Errorf("expected final URL %s, got %s", finalServer.URL, result.FinalURL().String())
	}
}

func TestHtmlFetcher_Fetch_NonAllowedContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message": "not html"}`))
	}))
	defer server.Close()

	sink := &mockMetadataSink{}
	f := newTestFetcher(sink)

	fetchUrl, _ := url.Parse(server.URL)
	_, err := f.Fetch(context.Background(), 1, fetcher.NewFetchParam(*fetchUrl))
	if err == nil {
		t.Fatal("expected error for disallowed content type, got nil")
	}

	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fetchErr.IsRetryable() {
		t.Error("expected non-retryable error for invalid content type")
	}
	if fetchErr.Cause != fetcher.ErrCauseContentTypeInvalid {
		t.Errorf("expected cause %q, got %q", fetcher.ErrCauseContentTypeInvalid, fetchErr.Cause)
	}

	if len(sink.errorEvents) != 1 {
		t.Fatalf("expected 1 error event, got %d", len(sink.errorEvents))
	}
	if sink.errorEvents[0].packageName != "fetcher" {
		t.Errorf("expected package name 'fetcher', got %s", sink.errorEvents[0].packageName)
	}
}

func TestHtmlFetcher_Fetch_ContentTypeAllowlistIsConfigurable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	sink := &mockMetadataSink{}
	f := fetcher.NewHtmlFetcher(sink)
	cfg := fetcher.DefaultClientConfig("test-user-agent")
	cfg.AllowedContentTypes = []string{"application/pdf"}
	f.Init(cfg)

	fetchUrl, _ := url.Parse(server.URL)
	result, err := f.Fetch(context.Background(), 0, fetcher.NewFetchParam(*fetchUrl))
	if err != nil {
		t.Fatalf("expected pdf to be allowed by configured allowlist, got error: %v", err)
	}
	if result.ContentType() != "application/pdf" {
		t.Errorf("expected content type application/pdf, got %s", result.ContentType())
	}
}

func TestHtmlFetcher_Fetch_SizeLimitExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	sink := &mockMetadataSink{}
	f := fetcher.NewHtmlFetcher(sink)
	cfg := fetcher.DefaultClientConfig("test-user-agent")
	cfg.MaxContentSize = 4
	f.Init(cfg)

	fetchUrl, _ := url.Parse(server.URL)
	_, err := f.Fetch(context.Background(), 0, fetcher.NewFetchParam(*fetchUrl))
	if err == nil {
		t.Fatal("expected size-limit error, got nil")
	}

	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fetchErr.Cause != fetcher.ErrCauseSizeLimitExceeded {
		t.Errorf("expected cause %q, got %q", fetcher.ErrCauseSizeLimitExceeded, fetchErr.Cause)
	}
}

func TestHtmlFetcher_Fetch_HTTP404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	sink := &mockMetadataSink{}
	f := newTestFetcher(sink)

	fetchUrl, _ := url.Parse(server.URL)
	_, err := f.Fetch(context.Background(), 0, fetcher.NewFetchParam(*fetchUrl))
	if err == nil {
		t.Fatal("expected error for 404, got nil")
	}
	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fetchErr.IsRetryable() {
		t.Error("expected non-retryable error for 404")
	}
}

func TestHtmlFetcher_Fetch_HTTP403(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	sink := &mockMetadataSink{}
	f := newTestFetcher(sink)

	fetchUrl, _ := url.Parse(server.URL)
	_, err := f.Fetch(context.Background(), 0, fetcher.NewFetchParam(*fetchUrl))
	if err == nil {
		t.Fatal("expected error for 403, got nil")
	}
	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fetchErr.IsRetryable() {
		t.Error("expected non-retryable error for 403")
	}
}

func TestHtmlFetcher_Fetch_HTTP500IsRetryableButNotRetried(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sink := &mockMetadataSink{}
	f := newTestFetcher(sink)

	fetchUrl, _ := url.Parse(server.URL)
	_, err := f.Fetch(context.Background(), 0, fetcher.NewFetchParam(*fetchUrl))
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	// The core never retries internally: exactly one request should have
	// been made, and the error returned directly rather than wrapped.
	if requestCount != 1 {
		t.Errorf("expected exactly 1 request (no internal retry), got %d", requestCount)
	}

	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if !fetchErr.IsRetryable() {
		t.Error("expected 5xx to be classified retryable, for the caller to act on")
	}

	if len(sink.errorEvents) != 1 {
		t.Fatalf("expected 1 error event, got %d", len(sink.errorEvents))
	}
}

func TestHtmlFetcher_Fetch_HTTP429(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	sink := &mockMetadataSink{}
	f := newTestFetcher(sink)

	fetchUrl, _ := url.Parse(server.URL)
	_, err := f.Fetch(context.Background(), 0, fetcher.NewFetchParam(*fetchUrl))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if !fetchErr.IsRetryable() {
		t.Error("expected 429 to be classified retryable")
	}
}

func TestHtmlFetcher_FetchResult_Accessors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Custom-Header", "test-value")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>Test</html>"))
	}))
	defer server.Close()

	sink := &mockMetadataSink{}
	f := newTestFetcher(sink)

	fetchUrl, _ := url.Parse(server.URL)
	result, err := f.Fetch(context.Background(), 0, fetcher.NewFetchParam(*fetchUrl))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.URL().String() != fetchUrl.String() {
		t.Errorf("expected URL %s, got %s", fetchUrl.String(), result.URL().String())
	}
	if result.Code() != http.StatusOK {
		t.Errorf("expected code %d, got %d", http.StatusOK, result.Code())
	}
	expectedSize := uint64(len("<html>Test</html>"))
	if result.SizeByte() != expectedSize {
		t.Errorf("expected size %d, got %d", expectedSize, result.SizeByte())
	}
	headers := result.Headers()
	if headers["Content-Type"] != "text/html; charset=utf-8" {
		t.Errorf("unexpected Content-Type header: %s", headers["Content-Type"])
	}
	if headers["X-Custom-Header"] != "test-value" {
		t.Errorf("unexpected X-Custom-Header: %s", headers["X-Custom-Header"])
	}
	if result.FetchedAt().IsZero() {
		t.Error("expected a non-zero FetchedAt")
	}
}

func TestHtmlFetcher_Fetch_ReadResponseBodyError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatal("response writer does not support hijacking")
		}
		conn, bufrw, err := hj.Hijack()
		if err != nil {
			t.Fatal("hijack failed:", err)
		}
		defer conn.Close()

		headers := "HTTP/1.1 200 OK\r\n" +
			"Content-Type: text/html; charset=utf-8\r\n" +
			"Content-Length: 100\r\n" +
			"\r\n"
		bufrw.WriteString(headers)
		bufrw.WriteString("partial")
		bufrw.Flush()
		conn.Close()
	}))
	defer server.Close()

	sink := &mockMetadataSink{}
	f := newTestFetcher(sink)

	fetchUrl, _ := url.Parse(server.URL)
	_, err := f.Fetch(context.Background(), 0, fetcher.NewFetchParam(*fetchUrl))
	if err == nil {
		t.Fatal("expected error for read response body failure, got nil")
	}

	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fetchErr.Cause != fetcher.ErrCauseReadResponseBodyError {
		t.Errorf("expected cause %q, got %q", fetcher.ErrCauseReadResponseBodyError, fetchErr.Cause)
	}

	if len(sink.errorEvents) != 1 {
		t.Fatalf("expected 1 error event, got %d", len(sink.errorEvents))
	}
}

func TestFetchError_Classification(t *testing.T) {
	tests := []struct {
		name            string
		statusCode      int
		expectRetryable bool
	}{
		{name: "500 Internal Server Error - retryable", statusCode: http.StatusInternalServerError, expectRetryable: true},
		{name: "502 Bad Gateway - retryable", statusCode: http.StatusBadGateway, expectRetryable: true},
		{name: "503 Service Unavailable - retryable", statusCode: http.StatusServiceUnavailable, expectRetryable: true},
		{name: "400 Bad Request - not retryable", statusCode: http.StatusBadRequest, expectRetryable: false},
		{name: "401 Unauthorized - not retryable", statusCode: http.StatusUnauthorized, expectRetryable: false},
		{name: "403 Forbidden - not retryable", statusCode: http.StatusForbidden, expectRetryable: false},
		{name: "404 Not Found - not retryable", statusCode: http.StatusNotFound, expectRetryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			sink := &mockMetadataSink{}
			f := newTestFetcher(sink)

			fetchUrl, _ := url.Parse(server.URL)
			_, err := f.Fetch(context.Background(), 0, fetcher.NewFetchParam(*fetchUrl))
			if err == nil {
				t.Fatal("expected error")
			}

			var fetchErr *fetcher.FetchError
			if errors.As(err, &fetchErr) {
				if fetchErr.IsRetryable() != tt.expectRetryable {
					t.Errorf("expected retryable=%v, got retryable=%v", tt.expectRetryable, fetchErr.IsRetryable())
				}
			}
		})
	}
}

func TestHtmlFetcher_MetadataSinkInterface(t *testing.T) {
	var _ metadata.MetadataSink = &mockMetadataSink{}
}

func TestHtmlFetcher_FetchError_Severity(t *testing.T) {
	err := &fetcher.FetchError{
		Message:   "test error",
		Retryable: true,
		Cause:     fetcher.ErrCauseNetworkFailure,
	}
	var classifiedErr failure.ClassifiedError = err
	if classifiedErr.Severity() != failure.SeverityRecoverable {
		t.Errorf("expected SeverityRecoverable for retryable error, got %s", classifiedErr.Severity())
	}

	nonRetryableErr := &fetcher.FetchError{
		Message:   "test error",
		Retryable: false,
		Cause:     fetcher.ErrCauseContentTypeInvalid,
	}
	classifiedErr = nonRetryableErr
	if classifiedErr.Severity() != failure.SeverityFatal {
		t.Errorf("expected SeverityFatal for non-retryable error, got %s", classifiedErr.Severity())
	}
}

func TestHtmlFetcher_AdditionalHeadersAreSent(t *testing.T) {
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Crawl-Source")
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := &mockMetadataSink{}
	f := fetcher.NewHtmlFetcher(sink)
	cfg := fetcher.DefaultClientConfig("test-user-agent")
	cfg.AdditionalHeaders = map[string]string{"X-Crawl-Source": "docs-crawler"}
	f.Init(cfg)

	fetchUrl, _ := url.Parse(server.URL)
	if _, err := f.Fetch(context.Background(), 0, fetcher.NewFetchParam(*fetchUrl)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotHeader != "docs-crawler" {
		t.Errorf("expected additional header to be sent, got %q", gotHeader)
	}
}
