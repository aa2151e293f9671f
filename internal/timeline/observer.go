package timeline

import (
	"github.com/d60-Lab/fedtimeline/internal/account"
	"github.com/d60-Lab/fedtimeline/internal/model"
)

// Observer receives change notifications scoped to the affected rows.
// Ranges are inclusive. ModelReset is only sent when the whole collection is replaced.
type Observer interface {
	RowsInserted(first, last int)
	RowsRemoved(first, last int)
	DataChanged(first, last int)
	ModelReset()
}

// ActionObserver is implemented by observers that handle reply and context menu requests.
type ActionObserver interface {
	WantReply(acc account.Account, p *model.Post, row int)
	WantMenu(acc account.Account, p *model.Post, row int)
}

// EndObserver is implemented by observers interested in the end-of-data state.
type EndObserver interface {
	AtEndChanged(atEnd bool)
}

type observerList struct {
	next  int
	items map[int]Observer
	order []int
}

func (l *observerList) add(o Observer) func() {
	if l.items == nil {
		l.items = make(map[int]Observer)
	}
	id := l.next
	l.next++
	l.items[id] = o
	l.order = append(l.order, id)
	return func() {
		if _, ok := l.items[id]; !ok {
			return
		}
		delete(l.items, id)
		for i, x := range l.order {
			if x == id {
				l.order = append(l.order[:i:i], l.order[i+1:]...)
				break
			}
		}
	}
}

func (l *observerList) each(fn func(Observer)) {
	for _, id := range append([]int(nil), l.order...) {
		if o, ok := l.items[id]; ok {
			fn(o)
		}
	}
}

func (l *observerList) rowsInserted(first, last int) {
	l.each(func(o Observer) { o.RowsInserted(first, last) })
}

func (l *observerList) rowsRemoved(first, last int) {
	l.each(func(o Observer) { o.RowsRemoved(first, last) })
}

func (l *observerList) dataChanged(first, last int) {
	l.each(func(o Observer) { o.DataChanged(first, last) })
}

func (l *observerList) modelReset() {
	l.each(func(o Observer) { o.ModelReset() })
}

func (l *observerList) atEndChanged(atEnd bool) {
	l.each(func(o Observer) {
		if e, ok := o.(EndObserver); ok {
			e.AtEndChanged(atEnd)
		}
	})
}

func (l *observerList) wantReply(acc account.Account, p *model.Post, row int) {
	l.each(func(o Observer) {
		if a, ok := o.(ActionObserver); ok {
			a.WantReply(acc, p, row)
		}
	})
}

func (l *observerList) wantMenu(acc account.Account, p *model.Post, row int) {
	l.each(func(o Observer) {
		if a, ok := o.(ActionObserver); ok {
			a.WantMenu(acc, p, row)
		}
	})
}
