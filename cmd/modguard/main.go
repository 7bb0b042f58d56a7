package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"modguard/internal/activity"
	"modguard/internal/audit"
	"modguard/internal/bot"
	"modguard/internal/config"
	"modguard/internal/dispatch"
	"modguard/internal/inspect"
	"modguard/internal/listcache"
	"modguard/internal/pipeline"
	"modguard/internal/signature"
	"modguard/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetchTimeout := time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second
	var feed listcache.RemoteFetcher
	if cfg.RemoteFeed.URL != "" {
		feed = listcache.NewHTTPFeed(cfg.RemoteFeed.URL, fetchTimeout)
	}
	lists := listcache.New(store, feed, cfg.Cache.MaxGuilds, time.Duration(cfg.Cache.GuildTTLMinutes)*time.Minute, logger)
	lists.StartRefreshLoop(ctx, time.Duration(cfg.RemoteFeed.RefreshMinutes)*time.Minute)

	configs := pipeline.NewConfigCache(store, cfg.GuildDefaults, cfg.Cache.MaxGuilds, time.Duration(cfg.Cache.GuildTTLMinutes)*time.Minute)

	activityStore := activity.NewStore(time.Duration(cfg.Activity.IdleGraceMinutes)*time.Minute, logger)
	activityStore.StartSweep(ctx, time.Duration(cfg.Activity.SweepMinutes)*time.Minute)

	inspector := inspect.New(signature.NewTable(), lists, fetchTimeout, logger)
	auditLogger := audit.NewLogger(store, logger)

	botSvc, err := bot.New(cfg, logger, store, lists, configs)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	dispatcher := dispatch.New(botSvc.Platform(), store, auditLogger, dispatch.Options{
		RatePerSecond: cfg.Dispatch.RatePerSecond,
		Burst:         cfg.Dispatch.Burst,
		Cooldown:      time.Duration(cfg.Dispatch.CooldownSeconds) * time.Second,
		RetryBackoff:  time.Duration(cfg.Dispatch.RetryBackoffMillis) * time.Millisecond,
	}, logger)

	botSvc.SetPipeline(pipeline.New(configs, activityStore, inspector, dispatcher, logger))

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("moderation engine started")

	startRetentionSweep(ctx, store, cfg.RetentionDays, logger)

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.Handle("/metrics", promhttp.Handler())
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if server != nil {
		_ = server.Shutdown(shutdownCtx)
	}
	botSvc.Close()
}

func startRetentionSweep(ctx context.Context, store *storage.Store, retentionDays int, logger *zap.Logger) {
	if retentionDays <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := store.CleanupAuditEntries(ctx, retentionDays); err != nil {
					logger.Warn("audit cleanup failed", zap.Error(err))
				}
			}
		}
	}()
}
