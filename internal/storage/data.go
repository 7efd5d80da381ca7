package storage

import "time"

// Document is the sink's wire/file payload: the raw crawl result plus
// the extractor's derived fields, serialized as-is to JSON for both the
// bus and file sinks so a downstream consumer sees the same shape
// regardless of which sink delivered it.
type Document struct {
	URL                string            `json:"url"`
	FetchedAt          time.Time         `json:"fetched_at"`
	StatusCode         int               `json:"status_code"`
	ContentType        string            `json:"content_type"`
	Content            string            `json:"content"`
	Links              []string          `json:"links"`
	Headers            map[string]string `json:"headers"`
	Depth              int               `json:"depth"`
	Title              string            `json:"title"`
	MetaDescription    string            `json:"meta_description"`
	Metadata           map[string]string `json:"metadata"`
	OriginalRequestURL string            `json:"original_request_url,omitempty"`
}

// EmitReport counts how many documents in a batch were emitted
// successfully versus failed, matching the emit_batch() operation's
// {success_count, failure_count} result shape.
type EmitReport struct {
	SuccessCount int
	FailureCount int
}

// WriteResult describes where a single document was persisted on disk.
type WriteResult struct {
	path        string
	contentHash string
}

func NewWriteResult(path string, contentHash string) WriteResult {
	return WriteResult{path: path, contentHash: contentHash}
}

func (w WriteResult) Path() string {
	return w.path
}

func (w WriteResult) ContentHash() string {
	return w.contentHash
}
