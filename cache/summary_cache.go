// Package cache keeps recently computed event summaries in Redis for the
// read path. Misses and Redis errors fall through to the ledger.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"runepoints/service"
)

const DefaultTTL = 5 * time.Second

// Connect opens a client and checks the server answers
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// SummaryCache implements service.SummaryCache on top of Redis
type SummaryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ service.SummaryCache = (*SummaryCache)(nil)

// NewSummaryCache creates a cache whose entries live for ttl
func NewSummaryCache(rdb *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SummaryCache{rdb: rdb, ttl: ttl}
}

func summaryKey(eventID string) string { return "runepoints:summary:" + eventID }

func (c *SummaryCache) Get(ctx context.Context, eventID string) (*service.EventSummary, bool) {
	b, err := c.rdb.Get(ctx, summaryKey(eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		log.WithFields(log.Fields{
			"eventID": eventID,
			"error":   err,
		}).Warn("Summary cache read failed")
		return nil, false
	}

	var summary service.EventSummary
	if err := json.Unmarshal(b, &summary); err != nil {
		log.WithFields(log.Fields{
			"eventID": eventID,
			"error":   err,
		}).Warn("Discarding undecodable cached summary")
		c.Invalidate(ctx, eventID)
		return nil, false
	}
	return &summary, true
}

func (c *SummaryCache) Set(ctx context.Context, summary *service.EventSummary) {
	b, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, summaryKey(summary.ID), b, c.ttl).Err(); err != nil {
		log.WithFields(log.Fields{
			"eventID": summary.ID,
			"error":   err,
		}).Warn("Summary cache write failed")
	}
}

// Invalidate drops the cached summary; a stale entry would otherwise live until its TTL
func (c *SummaryCache) Invalidate(ctx context.Context, eventID string) {
	if err := c.rdb.Del(ctx, summaryKey(eventID)).Err(); err != nil {
		log.WithFields(log.Fields{
			"eventID": eventID,
			"error":   err,
		}).Warn("Summary cache invalidation failed")
	}
}
