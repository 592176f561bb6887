package storefront

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/TembulatC/mira-games-backend/internal/release"
)

// CachedClient remembers successful detail lookups for a bounded time, so a
// pipeline restart does not re-request ids it already fetched. The pipeline
// purges it once a collect completes.
type CachedClient struct {
	next  release.DetailClient
	cache *expirable.LRU[int, release.DetailRecord]
}

// NewCachedClient wraps next with an expiring LRU of the given size.
func NewCachedClient(next release.DetailClient, size int, ttl time.Duration) (*CachedClient, error) {
	if next == nil {
		return nil, fmt.Errorf("detail client is required")
	}
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be > 0")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be > 0")
	}
	return &CachedClient{
		next:  next,
		cache: expirable.NewLRU[int, release.DetailRecord](size, nil, ttl),
	}, nil
}

// FetchDetail implements release.DetailClient. Errors and unsuccessful
// lookups are never cached. Hits come back with FromCache set.
func (c *CachedClient) FetchDetail(ctx context.Context, id int) (release.DetailRecord, error) {
	if record, ok := c.cache.Get(id); ok {
		record.FromCache = true
		return record, nil
	}
	record, err := c.next.FetchDetail(ctx, id)
	if err != nil {
		return release.DetailRecord{}, err
	}
	if record.Success {
		c.cache.Add(id, record)
	}
	return record, nil
}

// Purge drops every cached record.
func (c *CachedClient) Purge() {
	c.cache.Purge()
}

// Len reports the number of cached records.
func (c *CachedClient) Len() int {
	return c.cache.Len()
}
