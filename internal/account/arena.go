package account

import "github.com/d60-Lab/fedtimeline/internal/model"

type arenaEntry struct {
	post *model.Post
	refs int
}

// Arena 以 id 为键共享 Post 实例并做引用计数。
// 同一条 Post 同时出现在时间线和详情视图时指向同一个实例；最后一个持有者释放后移除。
type Arena struct {
	entries map[string]*arenaEntry
}

func NewArena() *Arena {
	return &Arena{entries: make(map[string]*arenaEntry)}
}

// Retain 返回 p.ID 对应的共享实例并增加引用。已存在时用 p 的服务端字段刷新。
func (a *Arena) Retain(p *model.Post) *model.Post {
	if e, ok := a.entries[p.ID]; ok {
		e.refs++
		if e.post != p {
			e.post.ReplaceWith(p)
		}
		return e.post
	}
	a.entries[p.ID] = &arenaEntry{post: p, refs: 1}
	return p
}

func (a *Arena) Release(id string) {
	e, ok := a.entries[id]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(a.entries, id)
	}
}

func (a *Arena) Get(id string) (*model.Post, bool) {
	e, ok := a.entries[id]
	if !ok {
		return nil, false
	}
	return e.post, true
}

func (a *Arena) Refs(id string) int {
	if e, ok := a.entries[id]; ok {
		return e.refs
	}
	return 0
}

func (a *Arena) Len() int { return len(a.entries) }
