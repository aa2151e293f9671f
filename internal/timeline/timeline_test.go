package timeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/fedtimeline/internal/account"
	"github.com/d60-Lab/fedtimeline/internal/model"
)

func TestTimelineInitialFetchOnAttach(t *testing.T) {
	f := newFixture(Home)

	require.Len(t, f.acc.fetches, 1)
	assert.Equal(t, fetchCall{kind: "timeline", key: Home}, f.acc.fetches[0])
	assert.True(t, f.tl.Fetching())
	assert.False(t, f.tl.CanFetchMore())
	assert.Equal(t, "Home", f.tl.DisplayName())
}

func TestTimelineUnboundDoesNotFetch(t *testing.T) {
	tl := New(Home)
	assert.Nil(t, tl.Account())
	assert.False(t, tl.CanFetchMore())
	tl.FetchMore()
	assert.Equal(t, 0, tl.RowCount())

	m := account.NewManager()
	tl.Attach(m)
	assert.False(t, tl.Fetching())
}

func TestTimelineUnknownNameStaysEmpty(t *testing.T) {
	f := newFixture("bogus")

	assert.Empty(t, f.acc.fetches)
	for i := 0; i < 3; i++ {
		f.clock.Advance(time.Minute)
		assert.False(t, f.tl.CanFetchMore())
		f.tl.FetchMore()
	}
	f.deliver("bogus", posts("3", "2", "1"))
	f.tl.Reset()

	assert.Equal(t, 0, f.tl.RowCount())
	assert.Empty(t, f.acc.fetches)
	assert.Equal(t, "", f.tl.DisplayName())
}

func TestTimelineFetchAndFavoriteScenario(t *testing.T) {
	f := newFixture(Home)

	f.deliver(Home, posts(idRange(100, 81)...))
	require.Equal(t, 20, f.tl.RowCount())
	assert.Equal(t, []string{"insert 0-19"}, f.rec.take())

	id, err := f.tl.Data(0, RoleID)
	require.NoError(t, err)
	assert.Equal(t, "100", id)

	require.NoError(t, f.tl.ToggleFavorite(0))
	fav, _ := f.tl.Data(0, RoleFavorited)
	assert.Equal(t, true, fav)
	assert.Equal(t, []string{"changed 0-0"}, f.rec.take())
	assert.Equal(t, []string{"favorite 100"}, f.acc.actions)

	require.NoError(t, f.tl.ToggleFavorite(0))
	fav, _ = f.tl.Data(0, RoleFavorited)
	assert.Equal(t, false, fav)
	assert.Equal(t, []string{"favorite 100", "unfavorite 100"}, f.acc.actions)
}

func TestTimelineFetchMore(t *testing.T) {
	f := newFixture(Home)
	f.deliver(Home, posts(idRange(100, 81)...))
	f.rec.take()

	assert.False(t, f.tl.CanFetchMore(), "same tick as the last page")
	f.clock.Advance(time.Second)
	require.True(t, f.tl.CanFetchMore())

	f.tl.FetchMore()
	assert.Equal(t, fetchCall{kind: "timeline", key: Home, from: "81"}, f.acc.lastFetch())
	assert.False(t, f.tl.CanFetchMore())

	f.deliver(Home, posts(idRange(80, 61)...))
	assert.Equal(t, 40, f.tl.RowCount())
	assert.Equal(t, []string{"insert 20-39"}, f.rec.take())
	last, _ := f.tl.Data(39, RoleID)
	assert.Equal(t, "61", last)

	f.clock.Advance(time.Second)
	f.tl.FetchMore()
	f.deliver(Home, nil)
	assert.True(t, f.tl.AtEnd())
	assert.Equal(t, []string{"end true"}, f.rec.take())
	f.clock.Advance(time.Second)
	assert.False(t, f.tl.CanFetchMore())

	f.tl.Reset()
	assert.False(t, f.tl.AtEnd())
	assert.Equal(t, 0, f.tl.RowCount())
	assert.Equal(t, []string{"reset", "end false"}, f.rec.take())
}

func TestTimelineEmptyHeadFetchIsNotEnd(t *testing.T) {
	f := newFixture(Public)
	f.deliver(Public, nil)

	assert.False(t, f.tl.AtEnd())
	assert.False(t, f.tl.Fetching())
	assert.Empty(t, f.rec.take())
}

func TestTimelineRefreshPrepends(t *testing.T) {
	f := newFixture(Home)
	f.deliver(Home, posts("10", "9", "8"))
	f.rec.take()

	f.tl.Reset()
	f.deliver(Home, posts("10", "9"))
	f.rec.take()

	f.deliver(Home, posts("12", "11", "10"))
	assert.Equal(t, []string{"12", "11", "10", "9"}, ids(f.tl.Posts()))
	assert.Equal(t, []string{"insert 0-1"}, f.rec.take())
}

func TestTimelineDiscardsStaleCompletions(t *testing.T) {
	f := newFixture(Home)
	other := &fakeAccount{id: "b"}

	f.manager.Dispatch(account.Event{Kind: account.EventTimelineFetched, Account: other, Timeline: Home, Posts: posts("5")})
	assert.False(t, f.tl.Fetching(), "any completion ends the fetch")
	f.deliver(Public, posts("6"))

	assert.Equal(t, 0, f.tl.RowCount())
	assert.Empty(t, f.rec.take())
}

func TestTimelineFetchErrorIsNotEnd(t *testing.T) {
	f := newFixture(Home)
	f.deliver(Home, posts("3", "2"))
	f.clock.Advance(time.Second)
	f.tl.FetchMore()

	f.manager.Dispatch(account.Event{Kind: account.EventTimelineFetched, Account: f.acc, Timeline: Home, Err: errors.New("timeout")})
	assert.False(t, f.tl.AtEnd())
	assert.False(t, f.tl.Fetching())
}

func TestTimelineAccountSwitchResets(t *testing.T) {
	f := newFixture(Federated)
	f.deliver(Federated, posts("3", "2", "1"))
	f.rec.take()

	b := &fakeAccount{id: "b"}
	f.manager.AddAccount(b)
	f.manager.Select(b)

	assert.Equal(t, account.Account(b), f.tl.Account())
	assert.Equal(t, 0, f.tl.RowCount())
	assert.Equal(t, []string{"reset"}, f.rec.take())
	assert.Equal(t, fetchCall{kind: "timeline", key: Federated}, b.lastFetch())

	f.deliver(Federated, posts("9"))
	assert.Equal(t, 0, f.tl.RowCount(), "completion for the previous account")
	assert.Equal(t, 0, f.manager.Arena().Len())
}

func TestTimelineInvalidation(t *testing.T) {
	f := newFixture(Home)
	f.deliver(Home, posts("3", "2", "1"))
	f.rec.take()

	f.manager.Invalidate(&fakeAccount{id: "other"})
	assert.Equal(t, 3, f.tl.RowCount())

	f.manager.Invalidate(f.acc)
	assert.Equal(t, 0, f.tl.RowCount())
	assert.Equal(t, []string{"reset"}, f.rec.take())
	assert.Len(t, f.acc.fetches, 2)
}

func TestTimelineRevertsFailedAction(t *testing.T) {
	f := newFixture(Home)
	f.deliver(Home, posts("3", "2", "1"))
	require.NoError(t, f.tl.ToggleRepeat(1))
	f.rec.take()

	f.manager.Dispatch(account.Event{Kind: account.EventActionFailed, Account: f.acc, Action: account.ActionRepeat, PostID: "2", Value: true})
	repeated, _ := f.tl.Data(1, RoleReblogged)
	assert.Equal(t, false, repeated)
	assert.Equal(t, []string{"changed 1-1"}, f.rec.take())

	// a stale failure for a value the user already undid leaves the flag alone
	require.NoError(t, f.tl.ToggleFavorite(0))
	require.NoError(t, f.tl.ToggleFavorite(0))
	f.manager.Dispatch(account.Event{Kind: account.EventActionFailed, Account: f.acc, Action: account.ActionFavorite, PostID: "3", Value: true})
	fav, _ := f.tl.Data(0, RoleFavorited)
	assert.Equal(t, false, fav)
}

func TestTimelineActionsValidateRow(t *testing.T) {
	f := newFixture(Home)
	assert.ErrorIs(t, f.tl.ToggleFavorite(0), ErrRowOutOfRange)
	assert.ErrorIs(t, f.tl.RequestReply(-1), ErrRowOutOfRange)

	tl := New(Home)
	tl.insert(posts("1"))
	assert.ErrorIs(t, tl.ToggleFavorite(0), ErrNoAccount)
	assert.NoError(t, tl.ToggleAttachmentsVisible(0))
}

func TestTimelineVisibilityReplyMenu(t *testing.T) {
	f := newFixture(Home)
	sensitive := post("7")
	sensitive.Sensitive = true
	sensitive.Normalize()
	f.deliver(Home, []*model.Post{post("8"), sensitive})
	f.rec.take()

	visible, _ := f.tl.Data(1, RoleAttachmentsVisible)
	assert.Equal(t, false, visible)
	require.NoError(t, f.tl.ToggleAttachmentsVisible(1))
	visible, _ = f.tl.Data(1, RoleAttachmentsVisible)
	assert.Equal(t, true, visible)
	assert.Equal(t, []string{"changed 1-1"}, f.rec.take())

	require.NoError(t, f.tl.RequestReply(0))
	require.NoError(t, f.tl.RequestMenu(1))
	assert.Equal(t, []int{0}, f.rec.replies)
	assert.Equal(t, []int{1}, f.rec.menus)
}

func TestTimelineCloseReleasesPosts(t *testing.T) {
	f := newFixture(Home)
	f.deliver(Home, posts("3", "2", "1"))
	assert.Equal(t, 3, f.manager.Arena().Len())

	f.tl.Close()
	assert.Equal(t, 0, f.manager.Arena().Len())
	assert.Equal(t, 0, f.manager.Subscribers())

	f.deliver(Home, posts("4"))
	assert.Equal(t, 0, f.tl.RowCount())
}

func TestTimelineReattachReleasesIntoPreviousArena(t *testing.T) {
	f := newFixture(Home)
	f.deliver(Home, posts("3", "2"))
	require.Equal(t, 2, f.manager.Arena().Len())

	m2 := account.NewManager()
	b := &fakeAccount{id: "b"}
	m2.AddAccount(b)
	f.tl.Attach(m2)

	assert.Equal(t, 0, f.manager.Arena().Len())
	assert.Equal(t, 0, f.manager.Arena().Refs("3"))
	assert.Equal(t, 0, f.manager.Subscribers())
	assert.Equal(t, fetchCall{kind: "timeline", key: Home}, b.lastFetch())

	m2.Dispatch(account.Event{Kind: account.EventTimelineFetched, Account: b, Timeline: Home, Posts: posts("5")})
	assert.Equal(t, 1, m2.Arena().Refs("5"))
}

func TestTimelineStreamedHeadDuringInitialFetch(t *testing.T) {
	f := newFixture(Home)
	f.stream(Home, StreamUpdate, payload(t, post("11")))
	f.deliver(Home, posts("11", "10", "9", "8"))

	assert.Equal(t, []string{"11", "10", "9", "8"}, ids(f.tl.Posts()))
	assert.Equal(t, []string{"insert 0-0", "insert 1-3"}, f.rec.take())
}

func TestTimelineOverlappingHeadPageAppendsOlderRows(t *testing.T) {
	f := newFixture(Home)
	f.deliver(Home, posts("10", "9", "8"))
	f.rec.take()

	f.tl.Reset()
	f.rec.take()
	f.deliver(Home, posts("10", "9", "8"))
	f.deliver(Home, posts("10", "9", "8", "7", "6"))

	assert.Equal(t, []string{"10", "9", "8", "7", "6"}, ids(f.tl.Posts()))
}

func TestTimelineResetDuringFetchMoreStaysFetching(t *testing.T) {
	f := newFixture(Home)
	f.deliver(Home, posts("3", "2"))
	f.clock.Advance(time.Second)
	f.tl.FetchMore()
	f.tl.Reset()

	f.deliver(Home, nil)
	assert.True(t, f.tl.Fetching(), "the head fetch is still outstanding")
	f.clock.Advance(time.Second)
	assert.False(t, f.tl.CanFetchMore())
	assert.False(t, f.tl.AtEnd())

	f.deliver(Home, posts("4", "3"))
	assert.False(t, f.tl.Fetching())
	assert.False(t, f.tl.AtEnd())
	assert.Equal(t, []string{"4", "3"}, ids(f.tl.Posts()))
}

func TestTimelineForeignCompletionKeepsFetch(t *testing.T) {
	f := newFixture(Home)
	f.deliver(Public, posts("6"))

	assert.True(t, f.tl.Fetching())
	assert.Equal(t, 0, f.tl.RowCount())
}

func TestTimelineStopObserving(t *testing.T) {
	f := newFixture(Home)
	other := &recorder{}
	stop := f.tl.Observe(other)
	stop()
	stop()
	f.deliver(Home, posts("1"))
	assert.Empty(t, other.events)
	assert.Equal(t, []string{"insert 0-0"}, f.rec.take())
}
