package timeline

import (
	"fmt"
	"time"

	"github.com/d60-Lab/fedtimeline/internal/account"
	"github.com/d60-Lab/fedtimeline/internal/model"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
func newClock() *fakeClock { return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)} }

type fetchCall struct {
	kind string
	key  string
	from string
}

type fakeAccount struct {
	id      string
	fetches []fetchCall
	actions []string
}

func (a *fakeAccount) ID() string { return a.id }

func (a *fakeAccount) FetchTimeline(name, fromID string) {
	a.fetches = append(a.fetches, fetchCall{kind: "timeline", key: name, from: fromID})
}

func (a *fakeAccount) FetchThread(postID string) {
	a.fetches = append(a.fetches, fetchCall{kind: "thread", key: postID})
}

func (a *fakeAccount) FetchProfile(identityID, fromID string) {
	a.fetches = append(a.fetches, fetchCall{kind: "profile", key: identityID, from: fromID})
}

func (a *fakeAccount) Favorite(p *model.Post)   { a.actions = append(a.actions, "favorite "+p.ID) }
func (a *fakeAccount) Unfavorite(p *model.Post) { a.actions = append(a.actions, "unfavorite "+p.ID) }
func (a *fakeAccount) Repeat(p *model.Post)     { a.actions = append(a.actions, "repeat "+p.ID) }
func (a *fakeAccount) Unrepeat(p *model.Post)   { a.actions = append(a.actions, "unrepeat "+p.ID) }

func (a *fakeAccount) lastFetch() fetchCall {
	if len(a.fetches) == 0 {
		return fetchCall{}
	}
	return a.fetches[len(a.fetches)-1]
}

// recorder collects notifications as short strings.
type recorder struct {
	events  []string
	replies []int
	menus   []int
}

func (r *recorder) RowsInserted(first, last int) {
	r.events = append(r.events, fmt.Sprintf("insert %d-%d", first, last))
}
func (r *recorder) RowsRemoved(first, last int) {
	r.events = append(r.events, fmt.Sprintf("remove %d-%d", first, last))
}
func (r *recorder) DataChanged(first, last int) {
	r.events = append(r.events, fmt.Sprintf("changed %d-%d", first, last))
}
func (r *recorder) ModelReset()             { r.events = append(r.events, "reset") }
func (r *recorder) AtEndChanged(atEnd bool) { r.events = append(r.events, fmt.Sprintf("end %v", atEnd)) }
func (r *recorder) WantReply(_ account.Account, _ *model.Post, row int) {
	r.replies = append(r.replies, row)
}
func (r *recorder) WantMenu(_ account.Account, _ *model.Post, row int) {
	r.menus = append(r.menus, row)
}

func (r *recorder) take() []string {
	ev := r.events
	r.events = nil
	return ev
}

var alice = &model.Identity{ID: "1", Acct: "alice", Username: "alice", DisplayName: "Alice", Avatar: "https://example.social/a.png"}

func post(id string) *model.Post {
	return &model.Post{ID: id, Account: alice, Content: "post " + id, CreatedAt: time.Date(2024, 5, 1, 11, 30, 0, 0, time.UTC)}
}

func posts(ids ...string) []*model.Post {
	out := make([]*model.Post, len(ids))
	for i, id := range ids {
		out[i] = post(id)
	}
	return out
}

// idRange returns ids from..to descending.
func idRange(from, to int) []string {
	var ids []string
	for i := from; i >= to; i-- {
		ids = append(ids, fmt.Sprint(i))
	}
	return ids
}

func ids(ps []*model.Post) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

// fixture is a timeline attached to a manager with one selected account.
type fixture struct {
	clock   *fakeClock
	manager *account.Manager
	acc     *fakeAccount
	tl      *Timeline
	rec     *recorder
}

func newFixture(name string) *fixture {
	f := &fixture{clock: newClock(), manager: account.NewManager(), acc: &fakeAccount{id: "a"}, rec: &recorder{}}
	f.manager.AddAccount(f.acc)
	f.tl = New(name, WithClock(f.clock))
	f.tl.Observe(f.rec)
	f.tl.Attach(f.manager)
	f.rec.take()
	return f
}

func (f *fixture) deliver(name string, ps []*model.Post) {
	f.manager.Dispatch(account.Event{Kind: account.EventTimelineFetched, Account: f.acc, Timeline: name, Posts: ps})
}

func (f *fixture) stream(name, event string, payload []byte) {
	f.manager.Dispatch(account.Event{Kind: account.EventStreaming, Account: f.acc, Timeline: name, StreamEvent: event, Payload: payload})
}
