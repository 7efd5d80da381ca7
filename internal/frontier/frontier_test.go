package frontier_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rohmanhakim/docs-crawler/internal/frontier"
)

func newTestFrontier(t *testing.T) (*frontier.Frontier, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return frontier.NewFrontier(client), mr
}

func TestFrontier_AddRejectsInvalidURL(t *testing.T) {
	f, _ := newTestFrontier(t)
	ctx := context.Background()

	ok, err := f.Add(ctx, "not a url\x7f", 0.5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected invalid URL to be rejected")
	}
}

func TestFrontier_AddThenPop(t *testing.T) {
	f, _ := newTestFrontier(t)
	ctx := context.Background()

	ok, err := f.Add(ctx, "https://example.com/a", 1.0, 0)
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if !ok {
		t.Fatal("expected first Add to succeed")
	}

	record, found, err := f.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop error: %v", err)
	}
	if !found {
		t.Fatal("expected a record to be popped")
	}
	if record.URL != "https://example.com/a" {
		t.Errorf("expected popped URL https://example.com/a, got %s", record.URL)
	}
}

func TestFrontier_AddIsIdempotent(t *testing.T) {
	f, _ := newTestFrontier(t)
	ctx := context.Background()

	first, _ := f.Add(ctx, "https://example.com/a", 0.5, 0)
	second, _ := f.Add(ctx, "https://example.com/a", 0.5, 0)

	if !first {
		t.Error("expected first Add to succeed")
	}
	if second {
		t.Error("expected repeated Add of the same URL to fail")
	}
}

func TestFrontier_AddAfterCompletedFails(t *testing.T) {
	f, _ := newTestFrontier(t)
	ctx := context.Background()

	f.Add(ctx, "https://example.com/a", 0.5, 0)
	record, _, _ := f.Pop(ctx)
	if err := f.MarkCompleted(ctx, record.URL); err != nil {
		t.Fatalf("MarkCompleted error: %v", err)
	}

	ok, err := f.Add(ctx, "https://example.com/a", 0.5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected Add of a completed URL to fail")
	}
}

func TestFrontier_PopOrdersByPriorityThenAge(t *testing.T) {
	f, _ := newTestFrontier(t)
	ctx := context.Background()

	f.Add(ctx, "https://example.com/low", 0.1, 0)
	f.Add(ctx, "https://example.com/high", 1.0, 0)
	f.Add(ctx, "https://example.com/mid", 0.5, 0)

	order := []string{}
	for i := 0; i < 3; i++ {
		record, ok, err := f.Pop(ctx)
		if err != nil {
			t.Fatalf("Pop error: %v", err)
		}
		if !ok {
			t.Fatalf("expected a record on pop %d", i)
		}
		order = append(order, record.URL)
	}

	want := []string{"https://example.com/high", "https://example.com/mid", "https://example.com/low"}
	for i, u := range want {
		if order[i] != u {
			t.Errorf("pop order[%d] = %s, want %s (full order: %v)", i, order[i], u, order)
		}
	}
}

func TestFrontier_PopEmptyReturnsNotFound(t *testing.T) {
	f, _ := newTestFrontier(t)
	ctx := context.Background()

	_, found, err := f.Pop(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected Pop on an empty frontier to report not-found")
	}
}

func TestFrontier_MarkCompletedIsIdempotent(t *testing.T) {
	f, _ := newTestFrontier(t)
	ctx := context.Background()

	f.Add(ctx, "https://example.com/a", 0.5, 0)
	record, _, _ := f.Pop(ctx)

	if err := f.MarkCompleted(ctx, record.URL); err != nil {
		t.Fatalf("first MarkCompleted error: %v", err)
	}
	if err := f.MarkCompleted(ctx, record.URL); err != nil {
		t.Fatalf("second MarkCompleted error: %v", err)
	}

	completed, err := f.CompletedCount(ctx)
	if err != nil {
		t.Fatalf("CompletedCount error: %v", err)
	}
	if completed != 1 {
		t.Errorf("expected completed count 1 after double MarkCompleted, got %d", completed)
	}
}

func TestFrontier_MarkFailedDoesNotReenqueue(t *testing.T) {
	f, _ := newTestFrontier(t)
	ctx := context.Background()

	f.Add(ctx, "https://example.com/a", 0.5, 0)
	record, _, _ := f.Pop(ctx)

	if err := f.MarkFailed(ctx, record.URL); err != nil {
		t.Fatalf("MarkFailed error: %v", err)
	}

	size, _ := f.Size(ctx)
	processing, _ := f.ProcessingCount(ctx)
	if size != 0 {
		t.Errorf("expected queue to stay empty after mark_failed, got size %d", size)
	}
	if processing != 0 {
		t.Errorf("expected processing to be cleared after mark_failed, got %d", processing)
	}

	// Re-adding without a reset must still fail: seen-set membership persists.
	ok, _ := f.Add(ctx, "https://example.com/a", 0.5, 0)
	if ok {
		t.Error("expected Add after mark_failed (without reset) to fail, since seen is unchanged")
	}
}

func TestFrontier_Counts(t *testing.T) {
	f, _ := newTestFrontier(t)
	ctx := context.Background()

	f.Add(ctx, "https://example.com/a", 0.5, 0)
	f.Add(ctx, "https://example.com/b", 0.5, 0)

	if n, _ := f.SeenCount(ctx); n != 2 {
		t.Errorf("expected seen count 2, got %d", n)
	}
	if n, _ := f.Size(ctx); n != 2 {
		t.Errorf("expected queue size 2, got %d", n)
	}

	record, _, _ := f.Pop(ctx)
	if n, _ := f.ProcessingCount(ctx); n != 1 {
		t.Errorf("expected processing count 1, got %d", n)
	}

	f.MarkCompleted(ctx, record.URL)
	if n, _ := f.CompletedCount(ctx); n != 1 {
		t.Errorf("expected completed count 1, got %d", n)
	}
	if n, _ := f.ProcessingCount(ctx); n != 0 {
		t.Errorf("expected processing count 0 after mark_completed, got %d", n)
	}
}

func TestFrontier_ClearSelective(t *testing.T) {
	f, _ := newTestFrontier(t)
	ctx := context.Background()

	f.Add(ctx, "https://example.com/a", 0.5, 0)
	f.Add(ctx, "https://example.com/b", 0.5, 0)
	record, _, _ := f.Pop(ctx)
	f.MarkCompleted(ctx, record.URL)

	report, err := f.Clear(ctx, frontier.ClearOptions{Completed: true})
	if err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if report.CompletedDeleted != 1 {
		t.Errorf("expected 1 completed entry deleted, got %d", report.CompletedDeleted)
	}

	// Queue/seen untouched.
	if n, _ := f.Size(ctx); n != 1 {
		t.Errorf("expected queue size 1 (untouched), got %d", n)
	}
	if n, _ := f.SeenCount(ctx); n != 2 {
		t.Errorf("expected seen count 2 (untouched), got %d", n)
	}
}

func TestFrontier_ClearAllThenAddSucceeds(t *testing.T) {
	f, _ := newTestFrontier(t)
	ctx := context.Background()

	f.Add(ctx, "https://example.com/a", 0.5, 0)
	record, _, _ := f.Pop(ctx)
	f.MarkCompleted(ctx, record.URL)

	report, err := f.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll error: %v", err)
	}
	if report.SeenDeleted != 1 || report.CompletedDeleted != 1 {
		t.Errorf("unexpected clear report: %+v", report)
	}

	ok, err := f.Add(ctx, "https://example.com/a", 0.5, 0)
	if err != nil {
		t.Fatalf("Add after ClearAll error: %v", err)
	}
	if !ok {
		t.Error("expected Add to succeed after ClearAll")
	}
}

func TestFrontier_Ping(t *testing.T) {
	f, mr := newTestFrontier(t)
	ctx := context.Background()

	if !f.Ping(ctx) {
		t.Error("expected Ping to succeed against a running store")
	}

	mr.Close()
	if f.Ping(ctx) {
		t.Error("expected Ping to fail once the store is unavailable")
	}
}

func TestFrontier_AddDefaultPriorityDepth(t *testing.T) {
	f, _ := newTestFrontier(t)
	ctx := context.Background()

	f.Add(ctx, "https://example.com/seed", 1.0, 0)
	record, _, _ := f.Pop(ctx)

	if record.Priority != 1.0 {
		t.Errorf("expected priority 1.0, got %v", record.Priority)
	}
	if record.Depth != 0 {
		t.Errorf("expected depth 0, got %d", record.Depth)
	}
	if record.Domain != "example.com" {
		t.Errorf("expected domain example.com, got %s", record.Domain)
	}
	if time.Since(time.Unix(record.AddedAt, 0)) > time.Minute {
		t.Error("expected added_at to be recent")
	}
}
