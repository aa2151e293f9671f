package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/fedtimeline/internal/account"
	"github.com/d60-Lab/fedtimeline/internal/cache"
	"github.com/d60-Lab/fedtimeline/internal/loop"
	"github.com/d60-Lab/fedtimeline/internal/model"
	"github.com/d60-Lab/fedtimeline/internal/repository"
	"github.com/d60-Lab/fedtimeline/pkg/logger"
)

// Remote 实例 REST 接口（由 mastodon.Client 实现）
type Remote interface {
	Timeline(ctx context.Context, name, maxID string) ([]*model.Post, error)
	AccountStatuses(ctx context.Context, accountID, maxID string) ([]*model.Post, error)
	Thread(ctx context.Context, postID string) ([]*model.Post, error)
	Favourite(ctx context.Context, postID string) (*model.Post, error)
	Unfavourite(ctx context.Context, postID string) (*model.Post, error)
	Reblog(ctx context.Context, postID string) (*model.Post, error)
	Unreblog(ctx context.Context, postID string) (*model.Post, error)
}

type SessionOptions struct {
	ID       string
	PageSize int
	Timeout  time.Duration
	// Repo、Cache 可为空：不做离线保存
	Repo  repository.TimelineRepository
	Cache *cache.TimelineCache
}

// Session 是 account.Account 的实现：请求在后台 goroutine 执行，
// 结果一律投递回事件循环，由 Manager 分发给订阅的集合。
type Session struct {
	id       string
	remote   Remote
	loop     *loop.Loop
	manager  *account.Manager
	repo     repository.TimelineRepository
	cache    *cache.TimelineCache
	pageSize int
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSession(remote Remote, l *loop.Loop, m *account.Manager, opts SessionOptions) *Session {
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:       opts.ID,
		remote:   remote,
		loop:     l,
		manager:  m,
		repo:     opts.Repo,
		cache:    opts.Cache,
		pageSize: opts.PageSize,
		timeout:  opts.Timeout,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Session) ID() string { return s.id }

// Close 取消进行中的请求并等待其退出
func (s *Session) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Session) FetchTimeline(name, fromID string) {
	s.goRequest(func(ctx context.Context) {
		posts, err := s.remote.Timeline(ctx, name, fromID)
		if err == nil {
			s.persist(ctx, name, fromID, posts)
		} else if offline, ok := s.offline(ctx, name, fromID); ok {
			logger.Warn("timeline fetch failed, serving offline copy",
				zap.String("account", s.id), zap.String("timeline", name), zap.Error(err))
			posts, err = offline, nil
		}
		s.deliver(account.Event{Kind: account.EventTimelineFetched, Timeline: name, Posts: posts, Err: err})
	})
}

func (s *Session) FetchThread(postID string) {
	s.goRequest(func(ctx context.Context) {
		posts, err := s.remote.Thread(ctx, postID)
		s.deliver(account.Event{Kind: account.EventThreadFetched, Scope: postID, Posts: posts, Err: err})
	})
}

func (s *Session) FetchProfile(identityID, fromID string) {
	s.goRequest(func(ctx context.Context) {
		posts, err := s.remote.AccountStatuses(ctx, identityID, fromID)
		s.deliver(account.Event{Kind: account.EventProfileFetched, Scope: identityID, Posts: posts, Err: err})
	})
}

func (s *Session) Favorite(p *model.Post) {
	s.act(account.ActionFavorite, p.ID, true, s.remote.Favourite)
}

func (s *Session) Unfavorite(p *model.Post) {
	s.act(account.ActionFavorite, p.ID, false, s.remote.Unfavourite)
}

func (s *Session) Repeat(p *model.Post) {
	s.act(account.ActionRepeat, p.ID, true, s.remote.Reblog)
}

func (s *Session) Unrepeat(p *model.Post) {
	s.act(account.ActionRepeat, p.ID, false, s.remote.Unreblog)
}

// act 执行一次状态切换；失败时投递 ActionFailed，由持有该 Post 的集合回滚
func (s *Session) act(action account.Action, postID string, value bool, call func(context.Context, string) (*model.Post, error)) {
	s.goRequest(func(ctx context.Context) {
		updated, err := call(ctx, postID)
		if err != nil {
			logger.Warn("post action failed",
				zap.String("account", s.id), zap.String("post", postID), zap.Error(err))
			s.deliver(account.Event{Kind: account.EventActionFailed, Action: action, PostID: postID, Value: value, Err: err})
			return
		}
		if s.repo != nil && updated != nil {
			if _, err := s.repo.UpdatePost(ctx, s.id, updated.Display()); err != nil {
				logger.Warn("update offline copy failed", zap.String("post", postID), zap.Error(err))
			}
		}
	})
}

func (s *Session) goRequest(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
		fn(ctx)
	}()
}

// deliver 把完成事件投递回事件循环
func (s *Session) deliver(ev account.Event) {
	ev.Account = s
	if err := s.loop.Post(func() { s.manager.Dispatch(ev) }); err != nil {
		logger.Warn("dropping completion, loop stopped",
			zap.String("account", s.id), zap.Stringer("kind", ev.Kind))
	}
}

func (s *Session) persist(ctx context.Context, name, fromID string, posts []*model.Post) {
	if s.repo != nil {
		if err := s.repo.SaveBatch(ctx, s.id, name, posts); err != nil {
			logger.Warn("save offline page failed", zap.String("timeline", name), zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.StorePage(ctx, s.id, name, fromID, posts); err != nil {
			logger.Warn("cache page failed", zap.String("timeline", name), zap.Error(err))
		}
	}
}

// offline 先查 redis，再查数据库
func (s *Session) offline(ctx context.Context, name, fromID string) ([]*model.Post, bool) {
	// 请求本身可能已经超时，离线读取单独计时
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if s.cache != nil {
		if posts, ok := s.cache.Page(ctx, s.id, name, fromID, s.pageSize); ok {
			return posts, true
		}
	}
	if s.repo != nil {
		posts, err := s.repo.ListPage(ctx, s.id, name, fromID, s.pageSize)
		if err != nil {
			logger.Warn("offline read failed", zap.String("timeline", name), zap.Error(err))
			return nil, false
		}
		if len(posts) > 0 {
			return posts, true
		}
	}
	return nil, false
}
