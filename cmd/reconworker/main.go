package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"reconctl/internal/core/dispatch"
	"reconctl/internal/platform/config"
	"reconctl/internal/platform/logx"
	"reconctl/internal/repo"
	"reconctl/internal/worker"
)

func main() {
	cfg := config.LoadServiceConfig()
	logx.Infof("reconworker: queues=%v redis=%q", cfg.WorkerQueues, cfg.RedisAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repo.Open(ctx, cfg.DBPath)
	if err != nil {
		logx.Errorf("reconworker: open store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	var broker dispatch.Broker
	if cfg.RedisAddr != "" {
		broker = dispatch.NewRedisBroker(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	} else {
		logx.Warnf("reconworker: RECONCTL_REDIS_ADDR unset, using an in-process InMemoryBroker: " +
			"it will never see tasks enqueued by a reconserver running as a separate process")
		broker = dispatch.NewInMemoryBroker()
	}

	deps := worker.Dependencies{
		Store:              store,
		JobsDir:            cfg.JobsDir,
		EnumeratorBinaries: cfg.EnumeratorBinaries,
		EnumTimeoutS:       cfg.EnumeratorTimeoutS,
		ProberBinary:       cfg.ProberBinary,
		ProberTimeoutS:     cfg.ProberTimeoutS,
		ProberRetries:      cfg.ProberRetries,
		WafBinary:          cfg.WafBinary,
		WafTimeoutS:        cfg.WafTimeoutS,
		ScreenshotBinary:   cfg.ScreenshotBinary,
		ScreenshotTimeoutS: cfg.ScreenshotTimeoutS,
		ScreenshotThreads:  cfg.ScreenshotThreads,
		LeakScanBinary:     cfg.LeakScanBinary,
		LeakScanDir:        cfg.LeakScanDir,
		LeakScanThreads:    cfg.LeakScanThreads,
		LeakScanTimeoutS:   cfg.LeakScanTimeoutS,
	}
	handlers := worker.RegisterHandlers(deps)

	// Run a small pool of Workers, each recycled after MaxTasksPerWorker
	// tasks, matching the "single-threaded worker" model of the task
	// dispatcher: concurrency comes from running several of them, not
	// from any one Worker handling tasks in parallel.
	const poolSize = 4
	done := make(chan struct{}, poolSize)
	for i := 0; i < poolSize; i++ {
		go func() {
			for ctx.Err() == nil {
				w := &dispatch.Worker{Broker: broker, Queues: cfg.WorkerQueues, Handlers: handlers}
				if err := w.Run(ctx); err != nil && ctx.Err() == nil {
					logx.Errorf("reconworker: worker exited: %v", err)
				}
			}
			done <- struct{}{}
		}()
	}

	<-ctx.Done()
	logx.Infof("reconworker: shutting down")
	for i := 0; i < poolSize; i++ {
		<-done
	}
}
