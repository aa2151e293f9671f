package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/fedtimeline/config"
	"github.com/d60-Lab/fedtimeline/internal/cache"
	"github.com/d60-Lab/fedtimeline/internal/model"
	"github.com/d60-Lab/fedtimeline/internal/repository"
	"github.com/d60-Lab/fedtimeline/pkg/database"
)

// request is one offline page read: the page number below the head.
type request struct {
	account string
	page    int
}

const (
	pageSize   = 40
	pagesCount = 20
	ttl        = 10 * time.Minute
)

func main() {
	ctx := context.Background()
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	repo := repository.NewTimelineRepository(db)

	// Use the configured Redis, or an in-process one for a quick local run
	redisAddr := cfg.Redis.Addr
	if redisAddr == "" {
		mr := must(miniredis.Run())
		defer mr.Close()
		redisAddr = mr.Addr()
		fmt.Println("No redis.addr configured, using in-process miniredis")
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		panic(fmt.Sprintf("Failed to connect to Redis at %s: %v", redisAddr, err))
	}
	pages := cache.NewTimelineCache(client, ttl)

	fmt.Println("Setting up offline pages...")
	accounts := []string{"bench-a", "bench-b", "bench-c"}
	anchors := make(map[string][]string)
	for _, acc := range accounts {
		top := pageSize * pagesCount
		maxID := ""
		anchors[acc] = append(anchors[acc], "")
		for p := 0; p < pagesCount; p++ {
			batch := make([]*model.Post, 0, pageSize)
			for id := top - p*pageSize; id > top-(p+1)*pageSize; id-- {
				batch = append(batch, &model.Post{
					ID:        strconv.Itoa(id),
					Account:   &model.Identity{ID: "1", Acct: acc},
					Content:   fmt.Sprintf("%s post %d", acc, id),
					CreatedAt: time.Now().Add(-time.Duration(id) * time.Minute),
				})
			}
			mustDo(repo.SaveBatch(ctx, acc, "home", batch))
			maxID = batch[len(batch)-1].ID
			anchors[acc] = append(anchors[acc], maxID)
		}
	}
	fmt.Println("Offline pages ready")

	reqs := makeRequests(accounts, 6000)

	direct := runScenario(ctx, client, pages, false, reqs, func(ctx context.Context, r request) ([]*model.Post, error) {
		return repo.ListPage(ctx, r.account, "home", anchors[r.account][r.page], pageSize)
	})
	readThrough := runScenario(ctx, client, pages, true, reqs, func(ctx context.Context, r request) ([]*model.Post, error) {
		maxID := anchors[r.account][r.page]
		if ps, ok := pages.Page(ctx, r.account, "home", maxID, pageSize); ok {
			return ps, nil
		}
		ps, err := repo.ListPage(ctx, r.account, "home", maxID, pageSize)
		if err != nil {
			return nil, err
		}
		_ = pages.StorePage(ctx, r.account, "home", maxID, ps)
		return ps, nil
	})

	fmt.Printf("\nOffline page latency (%d req across %d accounts, %s + Redis)\n", len(reqs), len(accounts), cfg.Database.Driver)
	fmt.Printf("%-18s avg=%v p95=%v p99=%v\n", "Repository only",
		avg(direct.durations), pct(direct.durations, 0.95), pct(direct.durations, 0.99))
	fmt.Printf("%-18s avg=%v p95=%v p99=%v hits=%d misses=%d writes=%d cache_keys=%d\n", "Read-through cache",
		avg(readThrough.durations), pct(readThrough.durations, 0.95), pct(readThrough.durations, 0.99),
		readThrough.counters.Hits, readThrough.counters.Misses, readThrough.counters.Writes, readThrough.cacheKeys)
}

type scenarioResult struct {
	durations []time.Duration
	counters  cache.Counters
	cacheKeys int
}

func runScenario(ctx context.Context, client *redis.Client, pages *cache.TimelineCache, warm bool, reqs []request, call func(context.Context, request) ([]*model.Post, error)) scenarioResult {
	client.FlushAll(ctx)
	pages.ResetCounters()

	if warm {
		fmt.Print("  Warming cache...")
		for _, r := range reqs {
			if _, err := call(ctx, r); err != nil {
				panic(err)
			}
		}
		fmt.Println(" done")
	}

	fmt.Print("  Running benchmark...")
	out := make([]time.Duration, 0, len(reqs))
	for _, r := range reqs {
		start := time.Now()
		if _, err := call(ctx, r); err != nil {
			panic(err)
		}
		out = append(out, time.Since(start))
	}
	fmt.Println(" done")

	keys, _ := client.Keys(ctx, "*").Result()
	return scenarioResult{durations: out, counters: pages.Counters(), cacheKeys: len(keys)}
}

// makeRequests favours the head page, like a reader who mostly refreshes.
func makeRequests(accounts []string, n int) []request {
	out := make([]request, n)
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < n; i++ {
		page := 0
		if rnd.Float64() > 0.72 {
			page = 1 + rnd.Intn(pagesCount-1)
		}
		out[i] = request{account: accounts[rnd.Intn(len(accounts))], page: page}
	}
	return out
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range vs {
		sum += v
	}
	return sum / time.Duration(len(vs))
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), vs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func mustDo(err error) {
	if err != nil {
		panic(err)
	}
}
