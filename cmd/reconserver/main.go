package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"reconctl/internal/api"
	"reconctl/internal/core/dispatch"
	"reconctl/internal/platform/config"
	"reconctl/internal/platform/logx"
	"reconctl/internal/repo"
)

func main() {
	cfg := config.LoadServiceConfig()
	logx.Infof("reconserver: listen=%s db=%s redis=%q", cfg.ListenAddr, cfg.DBPath, cfg.RedisAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repo.Open(ctx, cfg.DBPath)
	if err != nil {
		logx.Errorf("reconserver: open store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	var broker dispatch.Broker
	if cfg.RedisAddr != "" {
		broker = dispatch.NewRedisBroker(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	} else {
		logx.Warnf("reconserver: RECONCTL_REDIS_ADDR unset, using an in-process InMemoryBroker: " +
			"tasks enqueued here are invisible to any reconworker running as a separate process")
		broker = dispatch.NewInMemoryBroker()
	}

	facade := api.New(store, broker, cfg.JobsDir)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(facade),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logx.Infof("reconserver: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logx.Errorf("reconserver: shutdown: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logx.Errorf("reconserver: serve: %v", err)
		os.Exit(1)
	}
}
