package router

import (
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/d60-Lab/fedtimeline/config"
	_ "github.com/d60-Lab/fedtimeline/docs"
	"github.com/d60-Lab/fedtimeline/internal/api/handler"
	"github.com/d60-Lab/fedtimeline/internal/api/middleware"
	"github.com/d60-Lab/fedtimeline/pkg/logger"
)

// Setup 注册路由
func Setup(cfg *config.Config, h *handler.Handler) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLog())
	if cfg.Sentry.DSN != "" {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/healthz", h.Health)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1", middleware.JWTAuth(cfg.Auth.JWTSecret))
	{
		v1.GET("/stats", h.Stats)
		v1.GET("/timelines", h.ListTimelines)
		v1.GET("/timelines/:name/rows", h.Rows)
		v1.POST("/timelines/:name/fetch-more", h.FetchMore)
		v1.POST("/timelines/:name/refresh", h.Refresh)
		v1.GET("/timelines/:name/rows/:row/thread", h.Thread)
		v1.POST("/timelines/:name/rows/:row/:action", h.RowAction)
	}
	return r
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
