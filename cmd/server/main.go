package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/fedtimeline/config"
	"github.com/d60-Lab/fedtimeline/internal/account"
	"github.com/d60-Lab/fedtimeline/internal/api/handler"
	"github.com/d60-Lab/fedtimeline/internal/api/router"
	"github.com/d60-Lab/fedtimeline/internal/cache"
	"github.com/d60-Lab/fedtimeline/internal/loop"
	"github.com/d60-Lab/fedtimeline/internal/mastodon"
	"github.com/d60-Lab/fedtimeline/internal/repository"
	"github.com/d60-Lab/fedtimeline/internal/service"
	"github.com/d60-Lab/fedtimeline/internal/timeline"
	"github.com/d60-Lab/fedtimeline/pkg/database"
	"github.com/d60-Lab/fedtimeline/pkg/logger"
	"github.com/d60-Lab/fedtimeline/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg); err != nil {
		logger.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			return err
		}
		defer sentry.Flush(2 * time.Second)
	}
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	repo := repository.NewTimelineRepository(db)

	var pageCache *cache.TimelineCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, page cache disabled", zap.Error(err))
		} else {
			pageCache = cache.NewTimelineCache(rdb, cfg.Redis.TTL)
		}
	}

	client, err := mastodon.NewClient(mastodon.Options{
		Instance:    cfg.Mastodon.Instance,
		AccessToken: cfg.Mastodon.AccessToken,
		PageSize:    cfg.Mastodon.PageSize,
		Timeout:     cfg.Mastodon.RequestTimeout,
		RateLimit:   cfg.Mastodon.RateLimit,
		Burst:       cfg.Mastodon.Burst,
	})
	if err != nil {
		return err
	}

	l := loop.New(4096)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	go l.Run(loopCtx)
	defer func() {
		stopLoop()
		<-l.Done()
	}()

	manager := account.NewManager()
	session := service.NewSession(client, l, manager, service.SessionOptions{
		ID:       cfg.Mastodon.Account,
		PageSize: cfg.Mastodon.PageSize,
		Timeout:  cfg.Mastodon.RequestTimeout,
		Repo:     repo,
		Cache:    pageCache,
	})
	defer session.Close()

	opts := []timeline.Option{
		timeline.WithFetchResolution(cfg.Timeline.FetchResolution),
		timeline.WithDateLayout(cfg.Timeline.DateLayout),
	}
	var timelines []*timeline.Timeline
	err = l.Call(ctx, func() {
		manager.AddAccount(session)
		for _, name := range []string{timeline.Home, timeline.Public, timeline.Federated} {
			tl := timeline.New(name, opts...)
			tl.Attach(manager)
			timelines = append(timelines, tl)
		}
	})
	if err != nil {
		return err
	}

	var streamer *service.Streamer
	if cfg.Mastodon.AccessToken != "" {
		dial := func(ctx context.Context, streams []string) (service.EventStream, error) {
			s, err := client.DialStream(ctx, streams)
			if err != nil {
				return nil, err
			}
			return s, nil
		}
		streamer = service.NewStreamer(dial, session, l, manager, service.StreamerOptions{
			Streams:        cfg.Mastodon.Streams,
			ReconnectDelay: cfg.Mastodon.ReconnectDelay,
			Repo:           repo,
			Cache:          pageCache,
		})
		stopStreaming := streamer.Start(ctx)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = stopStreaming(sctx)
		}()
	} else {
		logger.Info("no access token, streaming disabled")
	}

	h := handler.NewHandler(l, manager, timelines, handler.Options{Cache: pageCache, Streamer: streamer})
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.Setup(cfg, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr), zap.String("instance", client.Instance()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return l.Call(shutdownCtx, func() {
		for _, tl := range timelines {
			tl.Close()
		}
	})
}
