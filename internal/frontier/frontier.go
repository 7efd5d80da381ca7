package frontier

/*
Frontier backs the four logical URL sets (queue, seen, processing,
completed) against an external key-value store (Redis). It owns
ordering, dedup, and depth/priority bookkeeping; it knows nothing about
fetching, extraction, markdown rendering, or storage.

Key layout (fixed for cross-language/cross-process compatibility):
  - crawler:url_queue_prio        ordered set of JSON URLRecord, score = -priority + added_at*1e-9
  - crawler:seen_urls_global      set of canonical URLs ever admitted
  - crawler:processing_urls_global set of canonical URLs currently held by a worker
  - crawler:completed_urls_global set of canonical URLs with a terminal outcome

The four sets are not transactionally linked; each operation uses a
single-key store primitive as its atomicity boundary (set-add for
seen/processing/completed, ordered-set pop for queue).
*/

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/redis/go-redis/v9"

	"github.com/rohmanhakim/docs-crawler/internal/urlrecord"
	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

const (
	queueKey      = "crawler:url_queue_prio"
	seenKey       = "crawler:seen_urls_global"
	processingKey = "crawler:processing_urls_global"
	completedKey  = "crawler:completed_urls_global"
)

// URLRecord is the frontier's wire-format queue entry, re-exported from
// internal/urlrecord so callers needn't import both packages.
type URLRecord = urlrecord.URLRecord

// ClearOptions selects which of the four sets a Clear call drops.
type ClearOptions struct {
	Queue      bool
	Seen       bool
	Processing bool
	Completed  bool
}

// AllSets is the ClearOptions used by ClearAll.
var AllSets = ClearOptions{Queue: true, Seen: true, Processing: true, Completed: true}

// ClearReport counts how many entries were deleted from each set.
type ClearReport struct {
	QueueDeleted      int64
	SeenDeleted       int64
	ProcessingDeleted int64
	CompletedDeleted  int64
}

// Frontier is the Redis-backed distributed URL frontier.
type Frontier struct {
	client *redis.Client
}

// NewFrontier wraps an already-configured redis client.
func NewFrontier(client *redis.Client) *Frontier {
	return &Frontier{client: client}
}

// Connect dials a Redis instance for frontier storage. addr is host:port;
// db selects the logical database; password may be empty.
func Connect(ctx context.Context, addr, password string, db int) (*Frontier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("frontier: connect to %s: %w", addr, err)
	}
	return NewFrontier(client), nil
}

// Close releases the underlying Redis connection pool.
func (f *Frontier) Close() error {
	return f.client.Close()
}

// Ping reports whether the frontier's store connection is healthy.
func (f *Frontier) Ping(ctx context.Context) bool {
	return f.client.Ping(ctx).Err() == nil
}

// Add canonicalizes rawURL and, if it is valid and not already admitted
// (present in seen or completed), inserts it into the queue with the
// given priority/depth. It returns false without error for an invalid
// URL or one already admitted -- both are expected, ordinary outcomes.
func (f *Frontier) Add(ctx context.Context, rawURL string, priority float64, depth int) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, nil
	}
	canonical := urlutil.Canonicalize(*parsed)
	if !urlutil.IsValidForCrawl(canonical) {
		return false, nil
	}
	canonicalStr := canonical.String()

	isCompleted, err := f.client.SIsMember(ctx, completedKey, canonicalStr).Result()
	if err != nil {
		return false, fmt.Errorf("frontier: check completed membership: %w", err)
	}
	if isCompleted {
		return false, nil
	}

	added, err := f.client.SAdd(ctx, seenKey, canonicalStr).Result()
	if err != nil {
		return false, fmt.Errorf("frontier: add to seen: %w", err)
	}
	if added == 0 {
		// Already seen by a prior add -- the seen-set SAdd is the election
		// point, so this is the authoritative "already admitted" signal.
		return false, nil
	}

	record := URLRecord{
		URL:         canonicalStr,
		OriginalURL: rawURL,
		Priority:    priority,
		Depth:       depth,
		AddedAt:     urlrecord.AddedAt(),
		Domain:      canonical.Hostname(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("frontier: marshal record: %w", err)
	}

	if err := f.client.ZAdd(ctx, queueKey, redis.Z{Score: record.Score(), Member: payload}).Err(); err != nil {
		return false, fmt.Errorf("frontier: enqueue: %w", err)
	}
	return true, nil
}

// Pop removes and returns the lowest-score queue entry, transitioning it
// to processing. It retries internally if it races another worker onto
// an already-claimed entry, and returns ok=false only once the queue is
// observed empty.
func (f *Frontier) Pop(ctx context.Context) (URLRecord, bool, error) {
	for {
		results, err := f.client.ZPopMin(ctx, queueKey, 1).Result()
		if err != nil {
			return URLRecord{}, false, fmt.Errorf("frontier: pop queue: %w", err)
		}
		if len(results) == 0 {
			return URLRecord{}, false, nil
		}

		member, ok := results[0].Member.(string)
		if !ok {
			continue
		}
		var record URLRecord
		if err := json.Unmarshal([]byte(member), &record); err != nil {
			continue
		}

		claimed, err := f.client.SAdd(ctx, processingKey, record.URL).Result()
		if err != nil {
			return URLRecord{}, false, fmt.Errorf("frontier: claim processing: %w", err)
		}
		if claimed == 0 {
			// Another worker already holds this URL (equal-score race);
			// discard this pop and try the next entry.
			continue
		}

		return record, true, nil
	}
}

// MarkCompleted removes url from processing and adds it to completed.
// Safe to call twice: SRem/SAdd are both idempotent no-ops on repeat.
func (f *Frontier) MarkCompleted(ctx context.Context, canonicalURL string) error {
	pipe := f.client.TxPipeline()
	pipe.SRem(ctx, processingKey, canonicalURL)
	pipe.SAdd(ctx, completedKey, canonicalURL)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("frontier: mark completed: %w", err)
	}
	return nil
}

// MarkFailed removes url from processing without re-enqueuing it. The
// caller decides retry policy; seen-set membership is left untouched so
// the URL is not spontaneously re-admitted.
func (f *Frontier) MarkFailed(ctx context.Context, canonicalURL string) error {
	if err := f.client.SRem(ctx, processingKey, canonicalURL).Err(); err != nil {
		return fmt.Errorf("frontier: mark failed: %w", err)
	}
	return nil
}

// IsCompleted reports whether canonicalURL already has a terminal
// outcome recorded, letting a caller short-circuit re-processing (e.g.
// when a redirect target was already crawled under another URL).
func (f *Frontier) IsCompleted(ctx context.Context, canonicalURL string) (bool, error) {
	done, err := f.client.SIsMember(ctx, completedKey, canonicalURL).Result()
	if err != nil {
		return false, fmt.Errorf("frontier: check completed: %w", err)
	}
	return done, nil
}

// Size returns the number of entries currently queued.
func (f *Frontier) Size(ctx context.Context) (int64, error) {
	n, err := f.client.ZCard(ctx, queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("frontier: size: %w", err)
	}
	return n, nil
}

// ProcessingCount returns the number of URLs currently held by workers.
func (f *Frontier) ProcessingCount(ctx context.Context) (int64, error) {
	n, err := f.client.SCard(ctx, processingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("frontier: processing count: %w", err)
	}
	return n, nil
}

// CompletedCount returns the number of URLs with a terminal outcome.
func (f *Frontier) CompletedCount(ctx context.Context) (int64, error) {
	n, err := f.client.SCard(ctx, completedKey).Result()
	if err != nil {
		return 0, fmt.Errorf("frontier: completed count: %w", err)
	}
	return n, nil
}

// SeenCount returns the number of URLs ever admitted to the queue.
func (f *Frontier) SeenCount(ctx context.Context) (int64, error) {
	n, err := f.client.SCard(ctx, seenKey).Result()
	if err != nil {
		return 0, fmt.Errorf("frontier: seen count: %w", err)
	}
	return n, nil
}

// Clear selectively drops the sets named in opts, reporting how many
// entries were deleted from each.
func (f *Frontier) Clear(ctx context.Context, opts ClearOptions) (ClearReport, error) {
	var report ClearReport

	if opts.Queue {
		n, err := f.client.ZCard(ctx, queueKey).Result()
		if err != nil {
			return report, fmt.Errorf("frontier: clear queue count: %w", err)
		}
		if err := f.client.Del(ctx, queueKey).Err(); err != nil {
			return report, fmt.Errorf("frontier: clear queue: %w", err)
		}
		report.QueueDeleted = n
	}
	if opts.Seen {
		n, err := f.client.SCard(ctx, seenKey).Result()
		if err != nil {
			return report, fmt.Errorf("frontier: clear seen count: %w", err)
		}
		if err := f.client.Del(ctx, seenKey).Err(); err != nil {
			return report, fmt.Errorf("frontier: clear seen: %w", err)
		}
		report.SeenDeleted = n
	}
	if opts.Processing {
		n, err := f.client.SCard(ctx, processingKey).Result()
		if err != nil {
			return report, fmt.Errorf("frontier: clear processing count: %w", err)
		}
		if err := f.client.Del(ctx, processingKey).Err(); err != nil {
			return report, fmt.Errorf("frontier: clear processing: %w", err)
		}
		report.ProcessingDeleted = n
	}
	if opts.Completed {
		n, err := f.client.SCard(ctx, completedKey).Result()
		if err != nil {
			return report, fmt.Errorf("frontier: clear completed count: %w", err)
		}
		if err := f.client.Del(ctx, completedKey).Err(); err != nil {
			return report, fmt.Errorf("frontier: clear completed: %w", err)
		}
		report.CompletedDeleted = n
	}

	return report, nil
}

// ClearAll drops all four sets.
func (f *Frontier) ClearAll(ctx context.Context) (ClearReport, error) {
	return f.Clear(ctx, AllSets)
}
