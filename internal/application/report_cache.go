package application

import (
	"strings"
	"sync"
	"time"

	"github.com/example/nucmed-tracker/internal/workflow"
)

// reportCache stores recently computed activity reports to avoid rebuilding
// the same aggregation for identical period queries while the underlying
// records barely move.
type reportCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]reportCacheEntry
}

type reportCacheEntry struct {
	report    ActivityReport
	expiresAt time.Time
}

func newReportCache(ttl time.Duration, maxEntries int, now func() time.Time) *reportCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 64
	}
	if now == nil {
		now = time.Now
	}
	return &reportCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]reportCacheEntry),
	}
}

func (c *reportCache) Get(key string) (ActivityReport, bool) {
	if c == nil {
		return ActivityReport{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return ActivityReport{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return ActivityReport{}, false
	}
	return cloneReport(entry.report), true
}

func (c *reportCache) Store(key string, report ActivityReport) {
	if c == nil {
		return
	}
	cloned := cloneReport(report)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = reportCacheEntry{report: cloned, expiresAt: expiry}
}

func (c *reportCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]reportCacheEntry)
	c.mu.Unlock()
}

func (c *reportCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *reportCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneReport(report ActivityReport) ActivityReport {
	out := report
	if len(report.Occupancy) > 0 {
		out.Occupancy = make([]RoomOccupancy, len(report.Occupancy))
		copy(out.Occupancy, report.Occupancy)
	}
	if len(report.Entries) > 0 {
		out.Entries = make([]ActivityEntry, len(report.Entries))
		copy(out.Entries, report.Entries)
	}
	if len(report.ExamStats) > 0 {
		out.ExamStats = make([]ExamStat, len(report.ExamStats))
		copy(out.ExamStats, report.ExamStats)
	}
	return out
}

func buildReportCacheKey(period workflow.Period, reference time.Time) string {
	builder := strings.Builder{}
	builder.WriteString(string(period))
	builder.WriteString("|")
	builder.WriteString(reference.UTC().Format(time.RFC3339Nano))
	return builder.String()
}
