package scheduler

import (
	"sync"

	"github.com/attune-sh/attune/internal/summarize"
)

// snapshotCache holds the latest Summary per cadence. Writers replace
// whole values under the lock; readers get a copy and never block on
// anything slower than the mutex, in particular never on network I/O.
type snapshotCache struct {
	mu     sync.RWMutex
	hourly *summarize.Summary
	daily  *summarize.Summary
}

// publish atomically replaces the summary for a cadence.
func (c *snapshotCache) publish(s summarize.Summary, daily bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := s
	if daily {
		c.daily = &cp
	} else {
		c.hourly = &cp
	}
}

// latest returns the most recent hourly-equivalent summary, or nil if
// no cycle has completed yet.
func (c *snapshotCache) latest() *summarize.Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.hourly == nil {
		return nil
	}
	cp := *c.hourly
	return &cp
}

// latestDaily returns the most recent daily summary, or nil.
func (c *snapshotCache) latestDaily() *summarize.Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.daily == nil {
		return nil
	}
	cp := *c.daily
	return &cp
}

// restore seeds the cache from persisted state.
func (c *snapshotCache) restore(hourly, daily *summarize.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hourly != nil {
		cp := *hourly
		c.hourly = &cp
	}
	if daily != nil {
		cp := *daily
		c.daily = &cp
	}
}
