package account

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/fedtimeline/pkg/logger"
)

// Manager 管理账号选择与失效，并把事件显式投递给订阅者。
// 只能在事件循环上调用。
type Manager struct {
	accounts []Account
	selected Account
	arena    *Arena
	subs     []*Subscription
}

type Subscription struct {
	id string
	fn func(Event)
	m  *Manager
}

func NewManager() *Manager {
	return &Manager{arena: NewArena()}
}

// Arena 返回会话层持有的共享 Post 存储
func (m *Manager) Arena() *Arena { return m.arena }

func (m *Manager) Accounts() []Account { return append([]Account(nil), m.accounts...) }

// AddAccount 注册账号；首个账号自动成为选中账号
func (m *Manager) AddAccount(a Account) {
	for _, existing := range m.accounts {
		if existing == a {
			return
		}
	}
	m.accounts = append(m.accounts, a)
	if m.selected == nil {
		m.Select(a)
	}
}

func (m *Manager) Selected() Account { return m.selected }

func (m *Manager) Select(a Account) {
	if m.selected == a {
		return
	}
	m.selected = a
	logger.Debug("account selected", zap.String("account", accountID(a)))
	m.Dispatch(Event{Kind: EventAccountSelected, Account: a})
}

// Invalidate 通知持有该账号数据的集合清空并重新拉取
func (m *Manager) Invalidate(a Account) {
	logger.Debug("invalidating account", zap.String("account", accountID(a)))
	m.Dispatch(Event{Kind: EventInvalidated, Account: a})
}

func (m *Manager) Subscribe(fn func(Event)) *Subscription {
	s := &Subscription{id: uuid.New().String(), fn: fn, m: m}
	m.subs = append(m.subs, s)
	return s
}

// Unsubscribe 可重复调用
func (s *Subscription) Unsubscribe() {
	if s == nil || s.m == nil {
		return
	}
	subs := s.m.subs
	for i, x := range subs {
		if x.id == s.id {
			s.m.subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	s.m = nil
}

// Dispatch 按订阅顺序同步投递。处理函数里新增的订阅不会收到本次事件。
func (m *Manager) Dispatch(ev Event) {
	snapshot := append([]*Subscription(nil), m.subs...)
	for _, s := range snapshot {
		if s.m == nil {
			continue
		}
		s.fn(ev)
	}
}

// Subscribers 返回当前订阅数（采样值）。
func (m *Manager) Subscribers() int { return len(m.subs) }

func accountID(a Account) string {
	if a == nil {
		return ""
	}
	return a.ID()
}
