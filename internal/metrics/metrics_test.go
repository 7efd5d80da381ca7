package metrics_test

import (
	"sync"
	"testing"

	"github.com/rohmanhakim/docs-crawler/internal/metrics"
)

func TestRecordPageCrawled(t *testing.T) {
	m := metrics.New()
	m.RecordPageCrawled("example.com", 200, "text/html", 1024)
	m.RecordPageCrawled("example.com", 200, "text/html", 2048)
	m.RecordPageCrawled("other.com", 304, "application/xhtml", 512)

	snap := m.Snapshot()
	if snap.PagesCrawled != 3 {
		t.Errorf("PagesCrawled = %d, want 3", snap.PagesCrawled)
	}
	if snap.TotalBytes != 3584 {
		t.Errorf("TotalBytes = %d, want 3584", snap.TotalBytes)
	}
	if snap.StatusCodeCounts[200] != 2 {
		t.Errorf("StatusCodeCounts[200] = %d, want 2", snap.StatusCodeCounts[200])
	}
	if snap.ContentTypeCounts["text/html"] != 2 {
		t.Errorf("ContentTypeCounts[text/html] = %d, want 2", snap.ContentTypeCounts["text/html"])
	}
	if snap.DomainsSeen != 2 {
		t.Errorf("DomainsSeen = %d, want 2", snap.DomainsSeen)
	}
}

func TestRecordPageFailedAndErrors(t *testing.T) {
	m := metrics.New()
	m.RecordPageFailed(500)
	m.RecordPageFailed(0)
	m.RecordRobotsDenied()
	m.RecordError()

	snap := m.Snapshot()
	if snap.PagesFailed != 2 {
		t.Errorf("PagesFailed = %d, want 2", snap.PagesFailed)
	}
	if snap.RobotsDenied != 1 {
		t.Errorf("RobotsDenied = %d, want 1", snap.RobotsDenied)
	}
	if snap.Errors != 1 {
		t.Errorf("Errors = %d, want 1", snap.Errors)
	}
	if snap.StatusCodeCounts[500] != 1 {
		t.Errorf("StatusCodeCounts[500] = %d, want 1", snap.StatusCodeCounts[500])
	}
}

func TestSuccessRateAndCrawlRate(t *testing.T) {
	snap := metrics.Snapshot{PagesCrawled: 3, PagesFailed: 1, UptimeSeconds: 2}
	if got := snap.SuccessRate(); got != 75 {
		t.Errorf("SuccessRate() = %v, want 75", got)
	}
	if got := snap.CrawlRate(); got != 1.5 {
		t.Errorf("CrawlRate() = %v, want 1.5", got)
	}

	empty := metrics.Snapshot{}
	if got := empty.SuccessRate(); got != 0 {
		t.Errorf("SuccessRate() on empty = %v, want 0", got)
	}
	if got := empty.CrawlRate(); got != 0 {
		t.Errorf("CrawlRate() on empty = %v, want 0", got)
	}
}

func TestSampleQueueSizeBounded(t *testing.T) {
	m := metrics.New()
	for i := 0; i < 600; i++ {
		m.SampleQueueSize(int64(i), 0)
	}
	snap := m.Snapshot()
	if len(snap.QueueSizeSamples) != 512 {
		t.Errorf("len(QueueSizeSamples) = %d, want 512", len(snap.QueueSizeSamples))
	}
	last := snap.QueueSizeSamples[len(snap.QueueSizeSamples)-1]
	if last.QueueSize != 599 {
		t.Errorf("last sample QueueSize = %d, want 599", last.QueueSize)
	}
}

func TestReset(t *testing.T) {
	m := metrics.New()
	m.RecordPageCrawled("example.com", 200, "text/html", 100)
	m.RecordError()
	m.Reset()

	snap := m.Snapshot()
	if snap.PagesCrawled != 0 || snap.Errors != 0 || snap.DomainsSeen != 0 {
		t.Errorf("Reset() left non-zero state: %+v", snap)
	}
}

func TestConcurrentRecording(t *testing.T) {
	m := metrics.New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordPageCrawled("example.com", 200, "text/html", 10)
		}()
	}
	wg.Wait()

	if got := m.Snapshot().PagesCrawled; got != 50 {
		t.Errorf("PagesCrawled = %d, want 50", got)
	}
}
