package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/suPer8Hu/swaif-depths/internal/app"
	"github.com/suPer8Hu/swaif-depths/internal/chat"
	"github.com/suPer8Hu/swaif-depths/internal/config"
	"github.com/suPer8Hu/swaif-depths/internal/ingest"
	"github.com/suPer8Hu/swaif-depths/internal/store/rabbitmq"
	"github.com/suPer8Hu/swaif-depths/pkg/logger"
)

func main() {
	cfg := config.Load()

	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.Build(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("build services", zap.Error(err))
	}
	defer func() { _ = svc.Close() }()

	var wg sync.WaitGroup

	if cfg.RabbitEnabled {
		consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency, lg)
		if err != nil {
			lg.Fatal("rabbit consumer", zap.Error(err))
		}
		defer func() { _ = consumer.Close() }()

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := consumer.Run(ctx, func(ctx context.Context, p chat.Payload) error {
				_, err := svc.Ingestor.Ingest(ctx, "rabbitmq", p)
				return err
			})
			if err != nil {
				lg.Error("consumer stopped", zap.Error(err))
				stop()
			}
		}()
	}

	if cfg.WatchFolder != "" {
		mon := ingest.NewMonitor(cfg.WatchFolder, cfg.WatchInterval, svc.Ingestor, lg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			mon.Run(ctx)
		}()
	}

	lg.Info("worker started",
		zap.Bool("rabbit", cfg.RabbitEnabled),
		zap.String("queue", cfg.RabbitQueue),
		zap.String("watch_folder", cfg.WatchFolder),
		zap.Duration("group_interval", cfg.GroupInterval),
	)

	runGrouper(ctx, svc.Grouper, cfg.GroupInterval, lg)

	wg.Wait()
	lg.Info("worker stopped")
}

// runGrouper polls on a fixed interval. One failed pass is logged and the
// batch stays pending for the next tick.
func runGrouper(ctx context.Context, g *chat.Grouper, interval time.Duration, lg *logger.Logger) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, _, err := g.Run(ctx, "interval"); err != nil && ctx.Err() == nil {
			lg.Error("grouping pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
