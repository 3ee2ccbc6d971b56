package utils

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const (
	EventsListPrefix = "cache:events:list:"
	EventsItemPrefix = "cache:events:item:"
	EventsStatsKey   = "cache:events:stats"
)

// CacheInvalidator drops cached event responses after writes. A nil invalidator is a no-op.
type CacheInvalidator struct{ rdb *redis.Client }

func NewCacheInvalidator(rdb *redis.Client) *CacheInvalidator {
	if rdb == nil {
		return nil
	}
	return &CacheInvalidator{rdb}
}

// PurgeEventsList drops every cached list page and the stats.
func (ci *CacheInvalidator) PurgeEventsList(ctx context.Context) {
	if ci == nil {
		return
	}
	iter := ci.rdb.Scan(ctx, 0, EventsListPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		_ = ci.rdb.Del(ctx, iter.Val()).Err()
	}
	_ = ci.rdb.Del(ctx, EventsStatsKey).Err()
}

func (ci *CacheInvalidator) PurgeEventItem(ctx context.Context, id string) {
	if ci == nil {
		return
	}
	_ = ci.rdb.Del(ctx, EventsItemPrefix+id).Err()
}

// PurgeEvent drops everything a write to event id can make stale.
func (ci *CacheInvalidator) PurgeEvent(ctx context.Context, id string) {
	ci.PurgeEventsList(ctx)
	ci.PurgeEventItem(ctx, id)
}
