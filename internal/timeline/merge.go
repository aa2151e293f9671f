package timeline

import "github.com/d60-Lab/fedtimeline/internal/model"

// Insertion is the row range a merge added.
type Insertion struct {
	Position int
	Count    int
}

func (i Insertion) Empty() bool { return i.Count == 0 }

// Last is the index of the last inserted row.
func (i Insertion) Last() int { return i.Position + i.Count - 1 }

// Merge places a server page into the newest-first sequence.
//
// Posts whose id is already present are dropped first, so a sequence never
// holds an id twice. Then only the two heads are compared: when the current
// head is newer than the first unseen post the page is appended (pagination),
// otherwise it is prepended (refresh or live update). A page whose ids
// straddle both ends of current is therefore put at one edge as a whole.
// current is never modified.
func Merge(current, incoming []*model.Post) ([]*model.Post, Insertion) {
	fresh := unseen(current, incoming)
	if len(fresh) == 0 {
		return current, Insertion{}
	}
	if len(current) == 0 {
		return fresh, Insertion{Position: 0, Count: len(fresh)}
	}

	next := make([]*model.Post, 0, len(current)+len(fresh))
	if CompareIDs(current[0].ID, fresh[0].ID) > 0 {
		next = append(next, current...)
		next = append(next, fresh...)
		return next, Insertion{Position: len(current), Count: len(fresh)}
	}
	next = append(next, fresh...)
	next = append(next, current...)
	return next, Insertion{Position: 0, Count: len(fresh)}
}

func unseen(current, incoming []*model.Post) []*model.Post {
	if len(incoming) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(current)+len(incoming))
	for _, p := range current {
		seen[p.ID] = struct{}{}
	}
	out := make([]*model.Post, 0, len(incoming))
	for _, p := range incoming {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
