// Package health implements the render service's readiness probe,
// periodically checking all three of the service's dependencies:
// Postgres, Redis, and blob storage.
package health

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"
)

// cacheChecker is the narrow kvcache.Client surface this package needs.
type cacheChecker interface {
	IsHealthy(ctx context.Context) bool
}

// blobChecker is the narrow blobstore.Store surface this package needs.
type blobChecker interface {
	IsHealthy(ctx context.Context) bool
}

// Status is one transport's most recently observed health.
type Status struct {
	Healthy   bool
	CheckedAt time.Time
}

// Checker periodically probes the KV cache, blob store, and metadata
// store, and serves the last-known result without blocking callers on
// a live round trip (mirrors the queue server's ticker-driven
// monitorHealth, generalized to three dependencies instead of one).
type Checker struct {
	cache cacheChecker
	blobs blobChecker
	db    *sql.DB

	mu     sync.RWMutex
	status map[string]Status
}

func New(cache cacheChecker, blobs blobChecker, db *sql.DB) *Checker {
	return &Checker{
		cache:  cache,
		blobs:  blobs,
		db:     db,
		status: make(map[string]Status),
	}
}

// Run probes every dependency at interval until ctx is canceled.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	c.probeAll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.probeAll(ctx)
		}
	}
}

func (c *Checker) probeAll(ctx context.Context) {
	c.record("kvcache", c.cache.IsHealthy(ctx))
	c.record("blobstore", c.blobs.IsHealthy(ctx))
	c.record("metadatastore", c.pingDB(ctx))
}

func (c *Checker) pingDB(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.db.PingContext(ctx); err != nil {
		log.Printf("health: metadatastore check failed: %v", err)
		return false
	}
	return true
}

func (c *Checker) record(name string, healthy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[name] = Status{Healthy: healthy, CheckedAt: time.Now().UTC()}
}

// Snapshot returns the last-known status of every dependency.
func (c *Checker) Snapshot() map[string]Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Status, len(c.status))
	for k, v := range c.status {
		out[k] = v
	}
	return out
}

// Ready reports whether every dependency's last probe was healthy. An
// empty snapshot (no probe has run yet) is not ready.
func (c *Checker) Ready() bool {
	snap := c.Snapshot()
	if len(snap) == 0 {
		return false
	}
	for _, s := range snap {
		if !s.Healthy {
			return false
		}
	}
	return true
}
