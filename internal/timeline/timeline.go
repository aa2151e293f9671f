// Package timeline keeps a newest-first, duplicate-free list of posts in sync
// with paginated server fetches and streaming events, and projects it as
// indexed rows for views. Every method must run on the event loop.
package timeline

import (
	"errors"

	"go.uber.org/zap"

	"github.com/d60-Lab/fedtimeline/internal/account"
	"github.com/d60-Lab/fedtimeline/internal/model"
	"github.com/d60-Lab/fedtimeline/pkg/logger"
)

// Timeline names that can be fetched.
const (
	Home      = "home"
	Public    = "public"
	Federated = "federated"
)

var ErrNoAccount = errors.New("timeline is not bound to an account")

// Recognized reports whether name is a fetchable timeline.
func Recognized(name string) bool {
	return name == Home || name == Public || name == Federated
}

// DisplayName is the title shown for a timeline name.
func DisplayName(name string) string {
	switch name {
	case Home:
		return "Home"
	case Public:
		return "Local Timeline"
	case Federated:
		return "Global Timeline"
	}
	return ""
}

// source is what a Timeline pages through.
type source interface {
	fetchable() bool
	fetch(acc account.Account, fromID string)
	fetchedKind() account.EventKind
	matches(ev account.Event) bool
	// streamKey is the timeline name streaming events are delivered for.
	streamKey() (string, bool)
}

type namedSource struct{ name string }

func (s namedSource) fetchable() bool { return Recognized(s.name) }
func (s namedSource) fetch(acc account.Account, fromID string) {
	acc.FetchTimeline(s.name, fromID)
}
func (s namedSource) fetchedKind() account.EventKind { return account.EventTimelineFetched }
func (s namedSource) matches(ev account.Event) bool  { return ev.Timeline == s.name }
func (s namedSource) streamKey() (string, bool)      { return s.name, true }

type profileSource struct{ identityID, acct string }

func (s profileSource) fetchable() bool { return s.identityID != "" }
func (s profileSource) fetch(acc account.Account, fromID string) {
	acc.FetchProfile(s.identityID, fromID)
}
func (s profileSource) fetchedKind() account.EventKind { return account.EventProfileFetched }
func (s profileSource) matches(ev account.Event) bool  { return ev.Scope == s.identityID }
func (s profileSource) streamKey() (string, bool)      { return "", false }

// Timeline is a paginated collection bound to one account at a time.
type Timeline struct {
	collection
	source source
	cursor *Cursor
	atEnd  bool
	name   string
}

// New creates an unbound timeline for name. Unrecognized names stay empty
// and never fetch.
func New(name string, opts ...Option) *Timeline {
	return newTimeline(namedSource{name: name}, name, buildOptions(opts))
}

// NewProfile creates a timeline of one author's posts.
func NewProfile(identityID, acct string, opts ...Option) *Timeline {
	return newProfile(identityID, acct, buildOptions(opts))
}

func newProfile(identityID, acct string, o options) *Timeline {
	return newTimeline(profileSource{identityID: identityID, acct: acct}, acct, o)
}

func newTimeline(src source, name string, o options) *Timeline {
	return &Timeline{
		collection: collection{opts: o},
		source:     src,
		cursor:     NewCursor(o.clock, o.resolution),
		name:       name,
	}
}

func (t *Timeline) Name() string { return t.name }

func (t *Timeline) DisplayName() string { return DisplayName(t.name) }

func (t *Timeline) AtEnd() bool { return t.atEnd }

func (t *Timeline) Fetching() bool { return t.cursor.Fetching() }

// Attach subscribes to m and binds to its selected account.
func (t *Timeline) Attach(m *account.Manager) {
	if m == t.manager {
		return
	}
	t.sub.Unsubscribe()
	t.releaseAll()
	t.manager = m
	t.sub = m.Subscribe(t.handle)
	t.bind(m.Selected())
}

func (t *Timeline) bind(acc account.Account) {
	t.account = acc
	t.Reset()
}

// Reset clears every row and issues the initial fetch again.
func (t *Timeline) Reset() {
	t.clear()
	t.setAtEnd(false)
	t.fill("")
}

func (t *Timeline) fill(fromID string) {
	if !t.source.fetchable() || t.account == nil {
		return
	}
	t.cursor.Begin(fromID)
	t.source.fetch(t.account, fromID)
}

// CanFetchMore is the view's predicate for requesting older rows.
func (t *Timeline) CanFetchMore() bool {
	if !t.source.fetchable() || t.account == nil || t.atEnd {
		return false
	}
	return t.cursor.CanFetchMore()
}

// FetchMore requests the page older than the last row.
func (t *Timeline) FetchMore() {
	if len(t.posts) == 0 {
		return
	}
	t.fill(t.posts[len(t.posts)-1].ID)
}

func (t *Timeline) handle(ev account.Event) {
	if ev.Kind == t.source.fetchedKind() {
		t.fetched(ev)
		return
	}
	switch ev.Kind {
	case account.EventAccountSelected:
		if ev.Account != t.account {
			t.bind(ev.Account)
		}
	case account.EventInvalidated:
		if ev.Account == t.account {
			logger.Debug("invalidating timeline", zap.String("timeline", t.name))
			t.Reset()
		}
	case account.EventStreaming:
		key, ok := t.source.streamKey()
		if !ok || !t.source.fetchable() || ev.Account != t.account || ev.Timeline != key {
			return
		}
		t.applyStream(ev, true)
	case account.EventActionFailed:
		t.revert(ev)
	}
}

// fetched applies a completed fetch. Every completion for this source ends
// one in-flight request, but only one for the bound account is merged.
func (t *Timeline) fetched(ev account.Event) {
	if !t.source.fetchable() || !t.source.matches(ev) {
		return
	}
	anchor := t.cursor.Finish()
	if ev.Account != t.account {
		logger.Debug("discarding stale fetch completion",
			zap.String("timeline", t.name), zap.String("event_timeline", ev.Timeline))
		return
	}
	if ev.Err != nil {
		logger.Debug("fetch completed with error", zap.String("timeline", t.name), zap.Error(ev.Err))
	}
	if len(ev.Posts) == 0 {
		if anchor != "" && ev.Err == nil {
			t.setAtEnd(true)
		}
		return
	}
	t.insert(ev.Posts)
	t.cursor.Touch()
}

func (t *Timeline) setAtEnd(atEnd bool) {
	if t.atEnd == atEnd {
		return
	}
	t.atEnd = atEnd
	t.observers.atEndChanged(atEnd)
}

// ToggleFavorite flips the favorite flag locally, notifies, then asks the account.
func (t *Timeline) ToggleFavorite(row int) error {
	p, err := t.actionRow(row)
	if err != nil {
		return err
	}
	target := p.Display()
	target.Favourited = !target.Favourited
	t.changed(row)
	if target.Favourited {
		t.account.Favorite(target)
	} else {
		t.account.Unfavorite(target)
	}
	return nil
}

// ToggleRepeat flips the repeat flag locally, notifies, then asks the account.
func (t *Timeline) ToggleRepeat(row int) error {
	p, err := t.actionRow(row)
	if err != nil {
		return err
	}
	target := p.Display()
	target.Reblogged = !target.Reblogged
	t.changed(row)
	if target.Reblogged {
		t.account.Repeat(target)
	} else {
		t.account.Unrepeat(target)
	}
	return nil
}

func (t *Timeline) ToggleAttachmentsVisible(row int) error {
	p, err := t.Row(row)
	if err != nil {
		return err
	}
	target := p.Display()
	target.AttachmentsVisible = !target.AttachmentsVisible
	t.changed(row)
	return nil
}

func (t *Timeline) RequestReply(row int) error {
	p, err := t.Row(row)
	if err != nil {
		return err
	}
	t.observers.wantReply(t.account, p, row)
	return nil
}

func (t *Timeline) RequestMenu(row int) error {
	p, err := t.Row(row)
	if err != nil {
		return err
	}
	t.observers.wantMenu(t.account, p, row)
	return nil
}

func (t *Timeline) actionRow(row int) (*model.Post, error) {
	p, err := t.Row(row)
	if err != nil {
		return nil, err
	}
	if t.account == nil {
		return nil, ErrNoAccount
	}
	return p, nil
}
