package uploads

import (
	"context"
	"time"
)

// Reap drops finished transactions that ended more than RetentionWindow
// before now and returns how many were removed.
func (c *Coordinator) Reap(now time.Time) int {
	cutoff := now.Add(-c.opts.RetentionWindow)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, e := range c.txs {
		e.mu.Lock()
		expired := !e.running && e.tx.Status.Terminal() && e.tx.EndedAt != nil && e.tx.EndedAt.Before(cutoff)
		e.mu.Unlock()
		if expired {
			delete(c.txs, id)
			removed++
		}
	}
	return removed
}

// Len is the number of transactions currently tracked.
func (c *Coordinator) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.txs)
}

// RunReaper calls Reap every interval until ctx is done.
func (c *Coordinator) RunReaper(ctx context.Context, interval time.Duration) {
	c.logger.Info(ctx, "transaction reaper started", "interval", interval, "retention", c.opts.RetentionWindow)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.Reap(c.now()); n > 0 {
				c.logger.Info(ctx, "reaped finished transactions", "removed", n, "remaining", c.Len())
			}
		case <-ctx.Done():
			c.logger.Info(ctx, "transaction reaper stopping")
			return
		}
	}
}
