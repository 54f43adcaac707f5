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

	"go.uber.org/zap"

	"github.com/suPer8Hu/swaif-depths/internal/app"
	"github.com/suPer8Hu/swaif-depths/internal/config"
	"github.com/suPer8Hu/swaif-depths/internal/httpapi"
	"github.com/suPer8Hu/swaif-depths/internal/httpapi/handlers"
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

	var queue handlers.Enqueuer
	if cfg.APIEnqueue {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			lg.Fatal("rabbit publisher", zap.Error(err))
		}
		defer func() { _ = pub.Close() }()
		queue = pub
	}

	h := handlers.NewHandler(svc.Repo, svc.Ingestor, svc.Grouper, svc.History, queue, lg)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h, cfg.JWTSecret, lg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("api listening", zap.String("addr", cfg.HTTPAddr), zap.Bool("enqueue", cfg.APIEnqueue))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		lg.Error("shutdown", zap.Error(err))
	}
}
