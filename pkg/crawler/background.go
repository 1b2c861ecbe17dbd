package crawler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"article-scraper/pkg/utils"
)

// requestPersist asks the persister for a snapshot write. Requests made while one is
// pending collapse into it.
func (c *Crawler) requestPersist() {
	select {
	case c.persistCh <- struct{}{}:
	default:
	}
}

// runPersister writes frontier snapshots off the worker path. With persist_interval 0 every
// request is served; otherwise writes happen at most once per interval.
func (c *Crawler) runPersister(ctx context.Context) {
	interval := c.cfg.PersistInterval
	var lastPersist time.Time
	var deferred <-chan time.Time // Fires when a throttled request becomes due

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.persistCh:
			if interval <= 0 || time.Since(lastPersist) >= interval {
				c.persist(ctx)
				lastPersist = time.Now()
			} else if deferred == nil {
				deferred = time.After(interval - time.Since(lastPersist))
			}
		case <-deferred:
			deferred = nil
			c.persist(ctx)
			lastPersist = time.Now()
		}
	}
}

// persist writes one snapshot. Failures are logged and retried with the next request.
func (c *Crawler) persist(ctx context.Context) {
	if err := c.store.Persist(ctx); err != nil {
		if ctx.Err() != nil {
			return // Shutting down; Run does the final persist
		}
		c.log.WithField("category", utils.CategorizeError(err)).Errorf("Frontier persist failed: %v", err)
	}
}

// reportProgress logs crawl progress every progress_interval until ctx ends
func (c *Crawler) reportProgress(ctx context.Context, runLog *logrus.Entry) {
	interval := c.cfg.ProgressInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p := c.GetProgress()
			runLog.WithFields(logrus.Fields{
				"queued":    p.Queued,
				"visited":   p.Visited,
				"processed": p.Processed,
				"accepted":  p.Accepted,
				"failed":    p.Failed,
			}).Info("Crawl Progress")
		}
	}
}
