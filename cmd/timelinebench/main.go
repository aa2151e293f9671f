package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/d60-Lab/fedtimeline/config"
	"github.com/d60-Lab/fedtimeline/internal/account"
	"github.com/d60-Lab/fedtimeline/internal/loop"
	"github.com/d60-Lab/fedtimeline/internal/model"
	"github.com/d60-Lab/fedtimeline/internal/repository"
	"github.com/d60-Lab/fedtimeline/internal/timeline"
	"github.com/d60-Lab/fedtimeline/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range vs {
		sum += d
	}
	return sum / time.Duration(len(vs))
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if v, e := strconv.Atoi(s); e == nil && v > 0 {
			return v
		}
	}
	return def
}

var author = &model.Identity{ID: "1", Acct: "bench", DisplayName: "Bench"}

func mkPost(id int) *model.Post {
	return &model.Post{ID: strconv.Itoa(id), Account: author, Content: "bench " + strconv.Itoa(id), CreatedAt: time.Now()}
}

// benchAccount serves descending pages below top and completes on the loop.
type benchAccount struct {
	loop     *loop.Loop
	manager  *account.Manager
	top      int
	pageSize int
}

func (a *benchAccount) ID() string { return "bench" }

func (a *benchAccount) FetchTimeline(name, fromID string) {
	start := a.top
	if fromID != "" {
		start = must(strconv.Atoi(fromID)) - 1
	}
	page := make([]*model.Post, 0, a.pageSize)
	for id := start; id > start-a.pageSize && id > 0; id-- {
		page = append(page, mkPost(id))
	}
	ev := account.Event{Kind: account.EventTimelineFetched, Account: a, Timeline: name, Posts: page}
	_ = a.loop.Post(func() { a.manager.Dispatch(ev) })
}

func (a *benchAccount) FetchThread(string)          {}
func (a *benchAccount) FetchProfile(string, string) {}
func (a *benchAccount) Favorite(*model.Post)        {}
func (a *benchAccount) Unfavorite(*model.Post)      {}
func (a *benchAccount) Repeat(*model.Post)          {}
func (a *benchAccount) Unrepeat(*model.Post)        {}

// inserted signals row insertions without ever blocking the loop.
type inserted chan struct{}

func (c inserted) RowsInserted(int, int) {
	select {
	case c <- struct{}{}:
	default:
	}
}
func (c inserted) RowsRemoved(int, int)  {}
func (c inserted) DataChanged(int, int)  {}
func (c inserted) ModelReset()           {}

func main() {
	// params
	PAGES := envInt("PAGES", 200)
	PAGE := envInt("PAGE", 40)
	STREAM := envInt("STREAM", 20000)

	l := loop.New(STREAM + 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	m := account.NewManager()
	acc := &benchAccount{loop: l, manager: m, top: PAGES * PAGE, pageSize: PAGE}
	tl := timeline.New(timeline.Home, timeline.WithFetchResolution(time.Nanosecond))
	signal := make(inserted, 1)

	// first page
	st := time.Now()
	must(0, l.Call(ctx, func() {
		tl.Observe(signal)
		m.AddAccount(acc)
		tl.Attach(m)
	}))
	<-signal
	fmt.Printf("Initial page: %v\n", time.Since(st))

	// fetch-more: request -> rows inserted
	pageDurations := make([]time.Duration, 0, PAGES)
	for i := 1; i < PAGES; i++ {
		st := time.Now()
		must(0, l.Call(ctx, func() {
			for !tl.CanFetchMore() {
				time.Sleep(time.Microsecond)
			}
			tl.FetchMore()
		}))
		<-signal
		pageDurations = append(pageDurations, time.Since(st))
	}
	var rows int
	must(0, l.Call(ctx, func() { rows = tl.RowCount() }))
	fmt.Printf("PAGES=%d PAGE=%d rows=%d\n", PAGES, PAGE, rows)
	fmt.Printf("Fetch-more merge: avg=%v p95=%v p99=%v\n", avg(pageDurations), pct(pageDurations, 0.95), pct(pageDurations, 0.99))

	// streaming: new heads, in-place updates and deletes
	payloads := make([][]byte, STREAM)
	for i := range payloads {
		payloads[i] = must(json.Marshal(mkPost(acc.top + 1 + i)))
	}
	st = time.Now()
	for i, p := range payloads {
		ev := account.Event{Kind: account.EventStreaming, Account: acc, Timeline: timeline.Home, StreamEvent: timeline.StreamUpdate, Payload: p}
		if i%4 == 3 {
			ev.StreamEvent = timeline.StreamDelete
			ev.Payload = []byte(strconv.Itoa(acc.top + i))
		}
		must(0, l.Post(func() { m.Dispatch(ev) }))
		select {
		case <-signal:
		default:
		}
	}
	must(0, l.Call(ctx, func() { rows = tl.RowCount() }))
	took := time.Since(st)
	fmt.Printf("Streaming: events=%d took=%v rate=%.0f/s rows=%d\n", STREAM, took, float64(STREAM)/took.Seconds(), rows)

	// offline store: save the loaded rows, then seek pages back out
	if os.Getenv("SKIP_DB") != "" {
		return
	}
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	repo := repository.NewTimelineRepository(db)
	var posts []*model.Post
	must(0, l.Call(ctx, func() { posts = tl.Posts() }))
	st = time.Now()
	for i := 0; i < len(posts); i += PAGE {
		end := min(i+PAGE, len(posts))
		if err := repo.SaveBatch(ctx, acc.ID(), timeline.Home, posts[i:end]); err != nil {
			panic(err)
		}
	}
	fmt.Printf("Offline save: rows=%d took=%v\n", len(posts), time.Since(st))

	reads := make([]time.Duration, 0, 64)
	maxID := ""
	for {
		st := time.Now()
		page := must(repo.ListPage(ctx, acc.ID(), timeline.Home, maxID, PAGE))
		reads = append(reads, time.Since(st))
		if len(page) == 0 {
			break
		}
		maxID = page[len(page)-1].ID
	}
	fmt.Printf("Offline seek read (limit=%d): pages=%d avg=%v p95=%v\n", PAGE, len(reads), avg(reads), pct(reads, 0.95))
	must(0, l.Call(ctx, tl.Close))
}
