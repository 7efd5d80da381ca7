package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/fileutil"
	"github.com/rohmanhakim/docs-crawler/pkg/hashutil"
)

/*
Responsibilities
- Persist crawled documents as JSON, one sink call per page.
- Fan out to whichever adapters are enabled (bus, file, or both).
- Ensure deterministic, overwrite-safe filenames.

At least one of BusSink/FileSink must be enabled; the engine refuses to
start otherwise (enforced by config validation, not here). Emit never
retries -- failure is reported back to the caller as false/error, same
as the fetcher's one-shot-per-call contract.
*/

// Sink is the interface the engine emits finished documents through.
type Sink interface {
	Emit(ctx context.Context, doc Document) bool
	EmitBatch(ctx context.Context, docs []Document) EmitReport
}

// jobNameSanitizer replaces anything outside [A-Za-z0-9_-] with '_'.
var jobNameSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]`)

const maxJobNameLen = 64

// SanitizeJobName implements the file-adapter's job-name sanitization
// rule: disallowed characters become '_', and the result is capped at
// maxJobNameLen.
func SanitizeJobName(jobName string) string {
	sanitized := jobNameSanitizer.ReplaceAllString(jobName, "_")
	if len(sanitized) > maxJobNameLen {
		sanitized = sanitized[:maxJobNameLen]
	}
	if sanitized == "" {
		sanitized = "default"
	}
	return sanitized
}

// FileSink writes one JSON file per document under
// <root>/documents/<sanitized_job>/<host>_<path>_<md5-8>.json.
type FileSink struct {
	metadataSink metadata.MetadataSink
	rootDir      string
	jobName      string
}

// NewFileSink builds a FileSink rooted at rootDir for the given job.
func NewFileSink(metadataSink metadata.MetadataSink, rootDir, jobName string) FileSink {
	return FileSink{
		metadataSink: metadataSink,
		rootDir:      rootDir,
		jobName:      SanitizeJobName(jobName),
	}
}

func (s *FileSink) Emit(ctx context.Context, doc Document) bool {
	result, err := s.write(doc)
	if err != nil {
		s.recordError(doc, err)
		return false
	}
	s.metadataSink.RecordArtifact(
		metadata.ArtifactDocument,
		result.Path(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, result.Path()),
			metadata.NewAttr(metadata.AttrURL, doc.URL),
		},
	)
	return true
}

func (s *FileSink) EmitBatch(ctx context.Context, docs []Document) EmitReport {
	return emitBatch(ctx, s, docs)
}

func (s *FileSink) recordError(doc Document, err failure.ClassifiedError) {
	var storageErr *StorageError
	errors.As(err, &storageErr)
	s.metadataSink.RecordError(
		time.Now(),
		"storage",
		"FileSink.Emit",
		mapStorageErrorToMetadataCause(storageErr),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, doc.URL),
			metadata.NewAttr(metadata.AttrWritePath, storageErr.Path),
		},
	)
}

func (s *FileSink) write(doc Document) (WriteResult, failure.ClassifiedError) {
	dir := filepath.Join(s.rootDir, "documents", s.jobName)
	if err := fileutil.EnsureDir(dir); err != nil {
		var fileErr *fileutil.FileError
		retryable := false
		if errors.As(err, &fileErr) {
			retryable = true
		}
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: retryable,
			Cause:     ErrCausePathError,
			Path:      dir,
		}
	}

	filename, err := documentFilename(doc.URL)
	if err != nil {
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseHashComputationFailed,
		}
	}
	fullPath := filepath.Join(dir, filename)

	payload, jsonErr := json.MarshalIndent(doc, "", "  ")
	if jsonErr != nil {
		return WriteResult{}, &StorageError{
			Message:   jsonErr.Error(),
			Retryable: false,
			Cause:     ErrCauseMarshalFailed,
			Path:      fullPath,
		}
	}

	if err := os.WriteFile(fullPath, payload, 0644); err != nil {
		cause := ErrCauseWriteFailure
		retryable := false
		if errors.Is(err, syscall.ENOSPC) {
			cause = ErrCauseDiskFull
			retryable = true
		}
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: retryable,
			Cause:     cause,
			Path:      fullPath,
		}
	}

	contentHash, _ := hashutil.HashBytes(payload, hashutil.HashAlgoMD5)
	return NewWriteResult(fullPath, contentHash), nil
}

// documentFilename implements §6.4's
// <host-with-underscores>_<path-with-underscores>_<md5-8-of-url>.json layout.
func documentFilename(rawURL string) (string, error) {
	hash, err := hashutil.HashBytes([]byte(rawURL), hashutil.HashAlgoMD5)
	if err != nil {
		return "", err
	}

	host := ""
	path := rawURL
	if idx := strings.Index(rawURL, "://"); idx >= 0 {
		rest := rawURL[idx+3:]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			host = rest[:slash]
			path = rest[slash:]
		} else {
			host = rest
			path = "/"
		}
	}

	underscore := func(s string) string {
		s = strings.Trim(s, "/")
		return jobNameSanitizer.ReplaceAllString(s, "_")
	}

	return fmt.Sprintf("%s_%s_%s.json", underscore(host), underscore(path), hash[:8]), nil
}

// CombinedSink fans a document out to every configured sink. A failure
// in one sink does not prevent delivery to the others; Emit reports
// overall success only if at least one sink accepted the document.
type CombinedSink struct {
	sinks []Sink
}

// NewCombinedSink builds a fan-out sink over the given (non-nil) sinks.
func NewCombinedSink(sinks ...Sink) CombinedSink {
	return CombinedSink{sinks: sinks}
}

func (c *CombinedSink) Emit(ctx context.Context, doc Document) bool {
	ok := false
	for _, sink := range c.sinks {
		if sink.Emit(ctx, doc) {
			ok = true
		}
	}
	return ok
}

func (c *CombinedSink) EmitBatch(ctx context.Context, docs []Document) EmitReport {
	return emitBatch(ctx, c, docs)
}

// emitBatch is the shared emit_batch() loop: every document is emitted
// independently, and one failure does not abort the rest of the batch.
func emitBatch(ctx context.Context, s Sink, docs []Document) EmitReport {
	var report EmitReport
	for _, doc := range docs {
		if s.Emit(ctx, doc) {
			report.SuccessCount++
		} else {
			report.FailureCount++
		}
	}
	return report
}

var (
	_ Sink = (*FileSink)(nil)
	_ Sink = (*CombinedSink)(nil)
)
