package campaign

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const statusCacheTTL = time.Hour

// StatusCache mirrors calling-job progress into Redis so sibling
// processes (and operators) can read it without hitting this instance.
// Every write is best-effort; a cache miss never affects the job.
type StatusCache struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewStatusCache(rdb *redis.Client, log *slog.Logger) *StatusCache {
	if log == nil {
		log = slog.Default()
	}
	return &StatusCache{rdb: rdb, log: log.With("component", "campaign_status_cache")}
}

func statusKey(campaignID string) string {
	return "campaign:calling:" + campaignID
}

func (c *StatusCache) Set(ctx context.Context, status CallStatus) {
	raw, err := json.Marshal(status)
	if err != nil {
		c.log.Error("status marshal failed", "campaign_id", status.CampaignID, "err", err)
		return
	}
	if err := c.rdb.Set(ctx, statusKey(status.CampaignID), raw, statusCacheTTL).Err(); err != nil {
		c.log.Warn("status mirror write failed", "campaign_id", status.CampaignID, "err", err)
	}
}

func (c *StatusCache) Get(ctx context.Context, campaignID string) (CallStatus, bool) {
	raw, err := c.rdb.Get(ctx, statusKey(campaignID)).Bytes()
	if err == redis.Nil {
		return CallStatus{}, false
	}
	if err != nil {
		c.log.Warn("status mirror read failed", "campaign_id", campaignID, "err", err)
		return CallStatus{}, false
	}
	var status CallStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		c.log.Warn("status mirror decode failed", "campaign_id", campaignID, "err", err)
		return CallStatus{}, false
	}
	return status, true
}

func (c *StatusCache) Clear(ctx context.Context, campaignID string) {
	if err := c.rdb.Del(ctx, statusKey(campaignID)).Err(); err != nil {
		c.log.Warn("status mirror delete failed", "campaign_id", campaignID, "err", err)
	}
}
