package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/fedtimeline/internal/model"
)

func newCache(t *testing.T) (*TimelineCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewTimelineCache(rdb, time.Minute), mr
}

func posts(ids ...string) []*model.Post {
	out := make([]*model.Post, len(ids))
	for i, id := range ids {
		out[i] = &model.Post{ID: id, Account: &model.Identity{ID: "1", Acct: "alice"}, Content: "post " + id}
	}
	return out
}

func ids(ps []*model.Post) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestStoreAndPage(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.StorePage(ctx, "a", "home", "", posts("9", "8", "7")))
	require.NoError(t, c.StorePage(ctx, "a", "home", "7", posts("6", "5")))
	// not contiguous with the cached list
	require.NoError(t, c.StorePage(ctx, "a", "home", "2", posts("1")))

	page, ok := c.Page(ctx, "a", "home", "", 2)
	require.True(t, ok)
	assert.Equal(t, []string{"9", "8"}, ids(page))

	page, ok = c.Page(ctx, "a", "home", "8", 10)
	require.True(t, ok)
	assert.Equal(t, []string{"7", "6", "5"}, ids(page))

	_, ok = c.Page(ctx, "a", "home", "5", 10)
	assert.False(t, ok)
	_, ok = c.Page(ctx, "a", "public", "", 10)
	assert.False(t, ok)

	require.NoError(t, c.StorePage(ctx, "a", "home", "", posts("10", "9")))
	page, ok = c.Page(ctx, "a", "home", "", 10)
	require.True(t, ok)
	assert.Equal(t, []string{"10", "9"}, ids(page))

	assert.Equal(t, Counters{Hits: 3, Misses: 2, Writes: 3}, c.Counters())
	assert.True(t, mr.TTL("timeline:index:a:home") > 0)

	c.ResetCounters()
	assert.Equal(t, Counters{}, c.Counters())
}

func TestPageMissesOnExpiredSnapshot(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.StorePage(ctx, "a", "home", "", posts("9", "8")))
	mr.Del("post:a:8")

	_, ok := c.Page(ctx, "a", "home", "", 10)
	assert.False(t, ok)
}

func TestUpdateAndEvict(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.StorePage(ctx, "a", "home", "", posts("9", "8")))
	require.NoError(t, c.StorePage(ctx, "a", "federated", "", posts("9")))

	edited := posts("9")[0]
	edited.Content = "edited"
	require.NoError(t, c.UpdatePost(ctx, "a", edited))
	require.NoError(t, c.UpdatePost(ctx, "a", posts("77")[0]))
	assert.False(t, mr.Exists("post:a:77"))

	page, ok := c.Page(ctx, "a", "home", "", 1)
	require.True(t, ok)
	assert.Equal(t, "edited", page[0].Content)

	require.NoError(t, c.Evict(ctx, "a", "9", "home", "federated"))
	page, ok = c.Page(ctx, "a", "home", "", 10)
	require.True(t, ok)
	assert.Equal(t, []string{"8"}, ids(page))
	_, ok = c.Page(ctx, "a", "federated", "", 10)
	assert.False(t, ok)
}
