package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/fedtimeline/internal/account"
	"github.com/d60-Lab/fedtimeline/internal/cache"
	"github.com/d60-Lab/fedtimeline/internal/loop"
	"github.com/d60-Lab/fedtimeline/internal/service"
	"github.com/d60-Lab/fedtimeline/internal/timeline"
	"github.com/d60-Lab/fedtimeline/pkg/response"
)

// Handler 把时间线以 HTTP 形式暴露；所有读写都在事件循环上执行
type Handler struct {
	loop      *loop.Loop
	manager   *account.Manager
	timelines map[string]*timeline.Timeline
	order     []string

	cache    *cache.TimelineCache
	streamer *service.Streamer
	// threadWait 等待详情页拉取完成的上限
	threadWait time.Duration
}

type Options struct {
	Cache      *cache.TimelineCache
	Streamer   *service.Streamer
	ThreadWait time.Duration
}

func NewHandler(l *loop.Loop, m *account.Manager, timelines []*timeline.Timeline, opts Options) *Handler {
	h := &Handler{
		loop:       l,
		manager:    m,
		timelines:  make(map[string]*timeline.Timeline, len(timelines)),
		cache:      opts.Cache,
		streamer:   opts.Streamer,
		threadWait: opts.ThreadWait,
	}
	if h.threadWait <= 0 {
		h.threadWait = 5 * time.Second
	}
	for _, tl := range timelines {
		h.timelines[tl.Name()] = tl
		h.order = append(h.order, tl.Name())
	}
	return h
}

var errUnknownTimeline = errors.New("unknown timeline")

// onLoop 在事件循环上执行 fn 并等待结果
func (h *Handler) onLoop(ctx context.Context, fn func() error) error {
	var err error
	if callErr := h.loop.Call(ctx, func() { err = fn() }); callErr != nil {
		return callErr
	}
	return err
}

func (h *Handler) timeline(c *gin.Context) (*timeline.Timeline, bool) {
	tl, ok := h.timelines[c.Param("name")]
	if !ok {
		response.NotFound(c, errUnknownTimeline.Error())
		return nil, false
	}
	return tl, true
}

// fail 按错误类型映射状态码
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, timeline.ErrRowOutOfRange), errors.Is(err, errUnknownTimeline):
		response.NotFound(c, err.Error())
	case errors.Is(err, timeline.ErrUnknownRole):
		response.BadRequest(c, err.Error())
	case errors.Is(err, timeline.ErrNoAccount), errors.Is(err, errCannotFetch):
		response.Conflict(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
