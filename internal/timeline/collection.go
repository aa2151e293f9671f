package timeline

import (
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/fedtimeline/internal/account"
	"github.com/d60-Lab/fedtimeline/internal/model"
	"github.com/d60-Lab/fedtimeline/pkg/logger"
)

const DefaultDateLayout = "Jan 2, 2006"

type options struct {
	clock      Clock
	resolution time.Duration
	dateLayout string
}

type Option func(*options)

func WithClock(c Clock) Option { return func(o *options) { o.clock = c } }

// WithFetchResolution sets the clock tick used to debounce fetch-more requests.
func WithFetchResolution(d time.Duration) Option {
	return func(o *options) { o.resolution = d }
}

func WithDateLayout(layout string) Option {
	return func(o *options) { o.dateLayout = layout }
}

func buildOptions(opts []Option) options {
	o := options{clock: systemClock{}, resolution: time.Second, dateLayout: DefaultDateLayout}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// collection holds the rows shared by timelines and threads. Posts are
// retained in the manager's arena while they are rows here.
type collection struct {
	opts      options
	manager   *account.Manager
	sub       *account.Subscription
	account   account.Account
	posts     []*model.Post
	observers observerList
}

func (c *collection) RowCount() int { return len(c.posts) }

// Observe registers o and returns a function that removes it.
func (c *collection) Observe(o Observer) func() { return c.observers.add(o) }

// Account is the currently bound account, nil when unbound.
func (c *collection) Account() account.Account { return c.account }

func (c *collection) Row(row int) (*model.Post, error) {
	if row < 0 || row >= len(c.posts) {
		return nil, ErrRowOutOfRange
	}
	return c.posts[row], nil
}

// Posts returns a copy of the rows.
func (c *collection) Posts() []*model.Post {
	return append([]*model.Post(nil), c.posts...)
}

// Data projects one field of a row.
func (c *collection) Data(row int, role Role) (any, error) {
	p, err := c.Row(row)
	if err != nil {
		return nil, err
	}
	if role < 0 || role >= roleCount {
		return nil, ErrUnknownRole
	}
	return accessors[role](c, p), nil
}

func (c *collection) rowOf(id string) int {
	for i, p := range c.posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (c *collection) retain(p *model.Post) *model.Post {
	if c.manager == nil {
		return p
	}
	return c.manager.Arena().Retain(p)
}

func (c *collection) release(id string) {
	if c.manager != nil {
		c.manager.Arena().Release(id)
	}
}

func (c *collection) releaseAll() {
	for _, p := range c.posts {
		c.release(p.ID)
	}
	c.posts = nil
}

// clear drops every row with a single reset notification.
func (c *collection) clear() {
	c.releaseAll()
	c.observers.modelReset()
}

func (c *collection) insert(batch []*model.Post) Insertion {
	next, ins := Merge(c.posts, batch)
	if ins.Empty() {
		return ins
	}
	for i := ins.Position; i <= ins.Last(); i++ {
		next[i] = c.retain(next[i])
	}
	c.posts = next
	c.observers.rowsInserted(ins.Position, ins.Last())
	return ins
}

func (c *collection) prepend(p *model.Post) {
	next := make([]*model.Post, 0, len(c.posts)+1)
	next = append(next, c.retain(p))
	c.posts = append(next, c.posts...)
	c.observers.rowsInserted(0, 0)
}

func (c *collection) remove(row int) {
	p := c.posts[row]
	c.posts = append(c.posts[:row:row], c.posts[row+1:]...)
	c.release(p.ID)
	c.observers.rowsRemoved(row, row)
}

func (c *collection) changed(row int) { c.observers.dataChanged(row, row) }

// revert undoes an optimistic toggle the server rejected. Rows showing the
// post are refreshed even when another collection already reverted the shared instance.
func (c *collection) revert(ev account.Event) {
	if ev.Account != c.account {
		return
	}
	for row, p := range c.posts {
		target := p.Display()
		if target.ID != ev.PostID {
			continue
		}
		switch ev.Action {
		case account.ActionFavorite:
			if target.Favourited == ev.Value {
				target.Favourited = !ev.Value
			}
		case account.ActionRepeat:
			if target.Reblogged == ev.Value {
				target.Reblogged = !ev.Value
			}
		}
		logger.Debug("reverted optimistic action",
			zap.String("post", ev.PostID), zap.Int("action", int(ev.Action)), zap.Int("row", row))
		c.changed(row)
	}
}

// Close unsubscribes from the manager and releases every row.
func (c *collection) Close() {
	c.sub.Unsubscribe()
	c.sub = nil
	c.releaseAll()
	c.manager = nil
	c.account = nil
}
