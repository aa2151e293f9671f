package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/fedtimeline/pkg/response"
)

// Health 存活检查
// @Summary 健康检查
// @Tags 系统
// @Success 200 {object} response.Response
// @Router /healthz [get]
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

// Stats 运行时采样：事件循环队列、共享 Post 数、缓存命中与推送计数
// @Summary 运行统计
// @Tags 系统
// @Produce json
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	out := gin.H{"loop_queue": h.loop.QueueLen()}
	err := h.onLoop(c.Request.Context(), func() error {
		out["shared_posts"] = h.manager.Arena().Len()
		out["subscribers"] = h.manager.Subscribers()
		if acc := h.manager.Selected(); acc != nil {
			out["account"] = acc.ID()
		}
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}
	if h.cache != nil {
		out["cache"] = h.cache.Counters()
	}
	if h.streamer != nil {
		out["streaming"] = h.streamer.Stats()
	}
	response.Success(c, out)
}
