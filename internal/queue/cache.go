// Package queue holds a snapshot of the scheduler's view of a user's jobs.
package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/me/slurmjm/pkg/model"
)

// Querier lists the queue records of a user. *slurm.Client implements it.
type Querier interface {
	Query(ctx context.Context, user string) ([]model.QueueRecord, error)
}

// Cache is a lazily refreshed snapshot of squeue output.
//
// The cache is either empty (never refreshed, or invalidated) or holds
// exactly the records of the last successful Refresh, plus any records
// added through Insert since then. Reads never trigger a refresh.
// Cache is not safe for concurrent use; callers serialise access.
type Cache struct {
	querier Querier
	logger  *slog.Logger

	populated   bool
	records     []model.QueueRecord
	byName      map[string][]int // indexes into records
	refreshedAt time.Time
}

// NewCache creates an empty Cache.
func NewCache(q Querier, logger *slog.Logger) *Cache {
	return &Cache{
		querier: q,
		logger:  logger.With("component", "queue-cache"),
	}
}

// Refresh queries the scheduler and replaces the cache contents.
// On error the previous contents (or emptiness) are left untouched.
func (c *Cache) Refresh(ctx context.Context, user string) error {
	start := time.Now()
	records, err := c.querier.Query(ctx, user)
	if err != nil {
		c.logger.Warn("queue refresh failed", "user", user, "error", err)
		return err
	}

	byName := make(map[string][]int, len(records))
	for i, r := range records {
		byName[r.Name] = append(byName[r.Name], i)
	}

	c.records = records
	c.byName = byName
	c.populated = true
	c.refreshedAt = time.Now()

	c.logger.Debug("queue refreshed",
		"user", user,
		"records", len(records),
		"duration", time.Since(start).String(),
	)
	return nil
}

// Lookup returns the first record with the given name.
func (c *Cache) Lookup(name string) (model.QueueRecord, bool) {
	idx := c.byName[name]
	if len(idx) == 0 {
		return model.QueueRecord{}, false
	}
	return c.records[idx[0]], true
}

// LookupAll returns every record with the given name, in queue order.
// Several records share a name only when the user queued duplicates.
func (c *Cache) LookupAll(name string) []model.QueueRecord {
	idx := c.byName[name]
	if len(idx) == 0 {
		return nil
	}
	out := make([]model.QueueRecord, len(idx))
	for i, j := range idx {
		out[i] = c.records[j]
	}
	return out
}

// Records returns a copy of all records in queue order.
func (c *Cache) Records() []model.QueueRecord {
	out := make([]model.QueueRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Insert appends a record ahead of the next refresh, so a job just
// submitted is visible without another squeue call. Insert does not mark
// an empty cache as populated.
func (c *Cache) Insert(r model.QueueRecord) {
	if c.byName == nil {
		c.byName = make(map[string][]int)
	}
	c.records = append(c.records, r)
	c.byName[r.Name] = append(c.byName[r.Name], len(c.records)-1)
}

// Invalidate empties the cache. Lookups report nothing until the next Refresh.
func (c *Cache) Invalidate() {
	c.records = nil
	c.byName = nil
	c.populated = false
	c.refreshedAt = time.Time{}
}

// Populated reports whether the cache holds a snapshot.
func (c *Cache) Populated() bool {
	return c.populated
}

// RefreshedAt returns when the last successful refresh happened.
func (c *Cache) RefreshedAt() time.Time {
	return c.refreshedAt
}
