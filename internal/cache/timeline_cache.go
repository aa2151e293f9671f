package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/fedtimeline/internal/model"
)

// indexCap bounds the cached id list of one timeline.
const indexCap = 800

// TimelineCache keeps recently fetched pages in Redis: one list of ids per
// (account, timeline), newest first, plus one snapshot key per post.
type TimelineCache struct {
	cache *redis.Client
	ttl   time.Duration

	hits   atomic.Int64
	misses atomic.Int64
	writes atomic.Int64
}

func NewTimelineCache(cache *redis.Client, ttl time.Duration) *TimelineCache {
	return &TimelineCache{cache: cache, ttl: ttl}
}

func indexKey(accountID, timeline string) string {
	return fmt.Sprintf("timeline:index:%s:%s", accountID, timeline)
}

func postKey(accountID, postID string) string {
	return fmt.Sprintf("post:%s:%s", accountID, postID)
}

// StorePage caches a fetched page. A head page (empty maxID) replaces the
// index; an older page is appended only when it continues the cached list.
func (c *TimelineCache) StorePage(ctx context.Context, accountID, timeline, maxID string, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}
	key := indexKey(accountID, timeline)
	if maxID != "" {
		last, err := c.cache.LIndex(ctx, key, -1).Result()
		if errors.Is(err, redis.Nil) || (err == nil && last != maxID) {
			return nil
		}
		if err != nil {
			return err
		}
	}

	ids := make([]interface{}, len(posts))
	pipe := c.cache.Pipeline()
	for i, p := range posts {
		ids[i] = p.ID
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode post %s: %w", p.ID, err)
		}
		pipe.Set(ctx, postKey(accountID, p.ID), payload, c.ttl)
	}
	if maxID == "" {
		pipe.Del(ctx, key)
	}
	pipe.RPush(ctx, key, ids...)
	pipe.LTrim(ctx, key, 0, indexCap-1)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	c.writes.Add(1)
	return nil
}

// Page returns up to limit cached posts older than maxID. ok is false when
// the index or any snapshot is missing.
func (c *TimelineCache) Page(ctx context.Context, accountID, timeline, maxID string, limit int) ([]*model.Post, bool) {
	ids, err := c.cache.LRange(ctx, indexKey(accountID, timeline), 0, -1).Result()
	if err != nil || len(ids) == 0 {
		c.misses.Add(1)
		return nil, false
	}
	start := 0
	if maxID != "" {
		start = -1
		for i, id := range ids {
			if id == maxID {
				start = i + 1
				break
			}
		}
		if start < 0 {
			c.misses.Add(1)
			return nil, false
		}
	}
	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}
	ids = ids[start:end]
	if len(ids) == 0 {
		c.misses.Add(1)
		return nil, false
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = postKey(accountID, id)
	}
	vals, err := c.cache.MGet(ctx, keys...).Result()
	if err != nil {
		c.misses.Add(1)
		return nil, false
	}
	out := make([]*model.Post, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			c.misses.Add(1)
			return nil, false
		}
		p, err := model.DecodePost([]byte(str))
		if err != nil {
			c.misses.Add(1)
			return nil, false
		}
		out = append(out, p)
	}
	c.hits.Add(1)
	return out, true
}

// UpdatePost refreshes the snapshot of a cached post and leaves uncached
// posts alone.
func (c *TimelineCache) UpdatePost(ctx context.Context, accountID string, post *model.Post) error {
	payload, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("encode post %s: %w", post.ID, err)
	}
	err = c.cache.SetArgs(ctx, postKey(accountID, post.ID), payload, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// Evict drops a deleted post from its snapshot and from the given indexes.
func (c *TimelineCache) Evict(ctx context.Context, accountID, postID string, timelines ...string) error {
	pipe := c.cache.Pipeline()
	pipe.Del(ctx, postKey(accountID, postID))
	for _, tl := range timelines {
		pipe.LRem(ctx, indexKey(accountID, tl), 0, postID)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ResetCounters clears the hit and miss counters.
func (c *TimelineCache) ResetCounters() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.writes.Store(0)
}

// Counters reports cache effectiveness since the last reset.
func (c *TimelineCache) Counters() Counters {
	return Counters{Hits: c.hits.Load(), Misses: c.misses.Load(), Writes: c.writes.Load()}
}

// Counters summarises cache lookups.
type Counters struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Writes int64 `json:"writes"`
}
