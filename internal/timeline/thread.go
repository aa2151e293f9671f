package timeline

import (
	"go.uber.org/zap"

	"github.com/d60-Lab/fedtimeline/internal/account"
	"github.com/d60-Lab/fedtimeline/pkg/logger"
)

// Thread is the reply context of one post: ancestors, the post itself and
// descendants in conversation order. It is replaced as a whole on every fetch.
type Thread struct {
	collection
	postID   string
	fetching bool
}

func NewThread(postID string, opts ...Option) *Thread {
	return newThread(postID, buildOptions(opts))
}

func newThread(postID string, o options) *Thread {
	return &Thread{collection: collection{opts: o}, postID: postID}
}

func (th *Thread) PostID() string { return th.postID }

func (th *Thread) Fetching() bool { return th.fetching }

// Attach subscribes to m and fetches the thread for the selected account.
func (th *Thread) Attach(m *account.Manager) {
	if m == th.manager {
		return
	}
	th.sub.Unsubscribe()
	th.releaseAll()
	th.manager = m
	th.sub = m.Subscribe(th.handle)
	th.bind(m.Selected())
}

func (th *Thread) bind(acc account.Account) {
	th.account = acc
	th.Reload()
}

// Reload clears the rows and fetches the context again.
func (th *Thread) Reload() {
	th.clear()
	if th.account == nil || th.postID == "" {
		return
	}
	th.fetching = true
	th.account.FetchThread(th.postID)
}

func (th *Thread) handle(ev account.Event) {
	switch ev.Kind {
	case account.EventThreadFetched:
		th.fetched(ev)
	case account.EventAccountSelected:
		if ev.Account != th.account {
			th.bind(ev.Account)
		}
	case account.EventInvalidated:
		if ev.Account == th.account {
			th.Reload()
		}
	case account.EventStreaming:
		if ev.Account == th.account {
			th.applyStream(ev, false)
		}
	case account.EventActionFailed:
		th.revert(ev)
	}
}

func (th *Thread) fetched(ev account.Event) {
	if ev.Account != th.account || ev.Scope != th.postID {
		return
	}
	th.fetching = false
	if ev.Err != nil {
		logger.Debug("thread fetch failed", zap.String("post", th.postID), zap.Error(ev.Err))
		return
	}
	th.releaseAll()
	seen := make(map[string]struct{}, len(ev.Posts))
	for _, p := range ev.Posts {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		th.posts = append(th.posts, th.retain(p))
	}
	th.observers.modelReset()
}
