package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/fedtimeline/internal/account"
	"github.com/d60-Lab/fedtimeline/internal/cache"
	"github.com/d60-Lab/fedtimeline/internal/loop"
	"github.com/d60-Lab/fedtimeline/internal/mastodon"
	"github.com/d60-Lab/fedtimeline/internal/model"
	"github.com/d60-Lab/fedtimeline/internal/repository"
	"github.com/d60-Lab/fedtimeline/internal/timeline"
	"github.com/d60-Lab/fedtimeline/pkg/logger"
)

// EventStream 一条已建立的推送连接
type EventStream interface {
	Next() (mastodon.StreamEvent, error)
	Close() error
}

type Dialer func(ctx context.Context, streams []string) (EventStream, error)

type StreamerOptions struct {
	Streams        []string
	ReconnectDelay time.Duration
	Repo           repository.TimelineRepository
	Cache          *cache.TimelineCache
}

// Streamer 读取推送事件：先落地到离线存储，再投递到事件循环；断线后延迟重连
type Streamer struct {
	dial    Dialer
	session account.Account
	loop    *loop.Loop
	manager *account.Manager
	opts    StreamerOptions

	received   atomic.Int64
	reconnects atomic.Int64
}

func NewStreamer(dial Dialer, session account.Account, l *loop.Loop, m *account.Manager, opts StreamerOptions) *Streamer {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if len(opts.Streams) == 0 {
		opts.Streams = []string{"user", "public:local", "public"}
	}
	return &Streamer{dial: dial, session: session, loop: l, manager: m, opts: opts}
}

// Start 启动读取协程，返回的函数用于停止并等待退出
func (s *Streamer) Start(ctx context.Context) func(context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var (
		mu     sync.Mutex
		active EventStream
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			stream, err := s.dial(ctx, s.opts.Streams)
			if err != nil {
				logger.Warn("streaming connect failed", zap.String("account", s.session.ID()), zap.Error(err))
			} else {
				mu.Lock()
				if ctx.Err() != nil {
					mu.Unlock()
					_ = stream.Close()
					return
				}
				active = stream
				mu.Unlock()
				s.read(ctx, stream)
				mu.Lock()
				active = nil
				mu.Unlock()
				_ = stream.Close()
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.opts.ReconnectDelay):
				s.reconnects.Add(1)
			}
		}
	}()
	return func(stopCtx context.Context) error {
		cancel()
		// Next 不感知 ctx，关闭连接以唤醒读取
		mu.Lock()
		if active != nil {
			_ = active.Close()
		}
		mu.Unlock()
		select {
		case <-done:
			return nil
		case <-stopCtx.Done():
			return stopCtx.Err()
		}
	}
}

func (s *Streamer) read(ctx context.Context, stream EventStream) {
	for {
		ev, err := stream.Next()
		if err != nil {
			if ctx.Err() == nil {
				logger.Info("streaming connection closed", zap.String("account", s.session.ID()), zap.Error(err))
			}
			return
		}
		s.received.Add(1)
		if ev.Timeline == "" {
			continue
		}
		s.persist(ctx, ev)
		out := account.Event{
			Kind:        account.EventStreaming,
			Account:     s.session,
			Timeline:    ev.Timeline,
			StreamEvent: ev.Event,
			Payload:     ev.Payload,
		}
		if err := s.loop.Post(func() { s.manager.Dispatch(out) }); err != nil {
			return
		}
	}
}

// persist 同步离线副本；解析失败的事件在这里直接跳过，集合侧也会丢弃
func (s *Streamer) persist(ctx context.Context, ev mastodon.StreamEvent) {
	id := s.session.ID()
	switch ev.Event {
	case timeline.StreamUpdate, timeline.StreamStatusUpdate:
		p, err := model.DecodePost(ev.Payload)
		if err != nil {
			return
		}
		if s.opts.Repo != nil {
			var err error
			if ev.Event == timeline.StreamUpdate {
				err = s.opts.Repo.SaveBatch(ctx, id, ev.Timeline, []*model.Post{p})
			} else {
				_, err = s.opts.Repo.UpdatePost(ctx, id, p)
			}
			if err != nil {
				logger.Warn("persist streamed post failed", zap.String("post", p.ID), zap.Error(err))
			}
		}
		if s.opts.Cache != nil {
			if err := s.opts.Cache.UpdatePost(ctx, id, p); err != nil {
				logger.Warn("refresh cached post failed", zap.String("post", p.ID), zap.Error(err))
			}
		}
	case timeline.StreamDelete:
		postID := string(ev.Payload)
		if postID == "" {
			return
		}
		if s.opts.Repo != nil {
			if err := s.opts.Repo.DeletePost(ctx, id, postID); err != nil {
				logger.Warn("delete streamed post failed", zap.String("post", postID), zap.Error(err))
			}
		}
		if s.opts.Cache != nil {
			if err := s.opts.Cache.Evict(ctx, id, postID, timeline.Home, timeline.Public, timeline.Federated); err != nil {
				logger.Warn("evict cached post failed", zap.String("post", postID), zap.Error(err))
			}
		}
	}
}

// StreamerStats 采样计数
type StreamerStats struct {
	Received   int64 `json:"received"`
	Reconnects int64 `json:"reconnects"`
}

func (s *Streamer) Stats() StreamerStats {
	return StreamerStats{Received: s.received.Load(), Reconnects: s.reconnects.Load()}
}
