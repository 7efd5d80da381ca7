package urlrecord_test

import (
	"net/url"
	"testing"

	"github.com/rohmanhakim/docs-crawler/internal/urlrecord"
)

func TestNewCrawlToken(t *testing.T) {
	tests := []struct {
		name   string
		u      url.URL
		depth  int
		source urlrecord.SourceContext
	}{
		{
			name:   "simple http url with depth 0",
			u:      url.URL{Scheme: "http", Host: "example.com", Path: "/"},
			depth:  0,
			source: urlrecord.SourceSeed,
		},
		{
			name:   "https url with positive depth",
			u:      url.URL{Scheme: "https", Host: "example.com", Path: "/page"},
			depth:  2,
			source: urlrecord.SourceCrawl,
		},
		{
			name:   "url with query parameters",
			u:      url.URL{Scheme: "http", Host: "example.com", Path: "/search", RawQuery: "q=test"},
			depth:  1,
			source: urlrecord.SourceCrawl,
		},
		{
			name:   "url with large depth",
			u:      url.URL{Scheme: "https", Host: "deep.example.com", Path: "/a/b/c/d/e"},
			depth:  100,
			source: urlrecord.SourceCrawl,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := urlrecord.NewCrawlToken(tt.u, tt.depth, tt.source)

			if token.URL() != tt.u {
				t.Errorf("URL() = %v, want %v", token.URL(), tt.u)
			}
			if token.Depth() != tt.depth {
				t.Errorf("Depth() = %v, want %v", token.Depth(), tt.depth)
			}
			if token.Source() != tt.source {
				t.Errorf("Source() = %v, want %v", token.Source(), tt.source)
			}
		})
	}
}

func TestFromRecord(t *testing.T) {
	rec := urlrecord.URLRecord{
		URL:         "https://example.com/page",
		OriginalURL: "https://example.com/page",
		Priority:    0.9,
		Depth:       3,
		AddedAt:     1000,
		Domain:      "example.com",
	}

	token, err := urlrecord.FromRecord(rec, urlrecord.SourceCrawl)
	if err != nil {
		t.Fatalf("FromRecord returned error: %v", err)
	}
	gotURL := token.URL()
	if gotURL.String() != rec.URL {
		t.Errorf("URL() = %v, want %v", gotURL.String(), rec.URL)
	}
	if token.Depth() != rec.Depth {
		t.Errorf("Depth() = %v, want %v", token.Depth(), rec.Depth)
	}
	if token.Source() != urlrecord.SourceCrawl {
		t.Errorf("Source() = %v, want %v", token.Source(), urlrecord.SourceCrawl)
	}
}

func TestFromRecord_InvalidURL(t *testing.T) {
	rec := urlrecord.URLRecord{URL: "://not-a-url"}
	if _, err := urlrecord.FromRecord(rec, urlrecord.SourceCrawl); err == nil {
		t.Error("expected error for invalid URL, got nil")
	}
}

func TestURLRecord_Score(t *testing.T) {
	tests := []struct {
		name string
		r    urlrecord.URLRecord
		want float64
	}{
		{
			name: "higher priority scores lower",
			r:    urlrecord.URLRecord{Priority: 1.0, AddedAt: 0},
			want: -1.0,
		},
		{
			name: "added_at breaks ties toward older entries",
			r:    urlrecord.URLRecord{Priority: 0.5, AddedAt: 2_000_000_000},
			want: -0.5 + 2.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Score(); got != tt.want {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}
