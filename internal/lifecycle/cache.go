package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"vendra-system/internal/database/models"
	"vendra-system/internal/logger"
)

const (
	poCachePrefix = "po:"
	poCacheTTL    = 5 * time.Minute
)

// poCache is a read-through cache for PO detail views. A nil *poCache is a
// no-op so the engine runs without redis in tests.
type poCache struct {
	redis *redis.Client
	log   *logger.Logger
}

func newPOCache(client *redis.Client, log *logger.Logger) *poCache {
	if client == nil {
		return nil
	}
	return &poCache{redis: client, log: log.With("component", "po_cache")}
}

func (c *poCache) key(poID int64) string {
	return fmt.Sprintf("%s%d", poCachePrefix, poID)
}

func (c *poCache) get(ctx context.Context, poID int64) (*models.PurchaseOrder, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.redis.Get(ctx, c.key(poID)).Bytes()
	if err != nil {
		return nil, false
	}
	var po models.PurchaseOrder
	if err := json.Unmarshal(raw, &po); err != nil {
		c.log.Warn("corrupt cache entry dropped", "po_id", poID, "error", err)
		_ = c.redis.Del(ctx, c.key(poID)).Err()
		return nil, false
	}
	return &po, true
}

func (c *poCache) set(ctx context.Context, po *models.PurchaseOrder) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(po)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.key(po.ID), raw, poCacheTTL).Err(); err != nil {
		c.log.Warn("cache set failed", "po_id", po.ID, "error", err)
	}
}

func (c *poCache) invalidate(ctx context.Context, poIDs ...int64) {
	if c == nil {
		return
	}
	for _, id := range poIDs {
		if err := c.redis.Del(ctx, c.key(id)).Err(); err != nil {
			c.log.Warn("cache invalidation failed", "po_id", id, "error", err)
		}
	}
}
