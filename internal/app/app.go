// Package app assembles the grouping services from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/suPer8Hu/swaif-depths/internal/chat"
	"github.com/suPer8Hu/swaif-depths/internal/config"
	"github.com/suPer8Hu/swaif-depths/internal/db"
	"github.com/suPer8Hu/swaif-depths/internal/store/redisstore"
	"github.com/suPer8Hu/swaif-depths/pkg/logger"
)

// Services is everything the binaries share.
type Services struct {
	DB       *gorm.DB
	Repo     *chat.Repo
	Parser   chat.TimestampParser
	History  *chat.HistoryService
	Grouper  *chat.Grouper
	Ingestor *chat.Ingestor

	redis *redis.Client
}

func Build(ctx context.Context, cfg config.Config, log *logger.Logger) (*Services, error) {
	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN, db.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := chat.AutoMigrate(gdb); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return BuildWithDB(ctx, cfg, gdb, log)
}

// BuildWithDB wires services on an already migrated database.
func BuildWithDB(ctx context.Context, cfg config.Config, gdb *gorm.DB, log *logger.Logger) (*Services, error) {
	if log == nil {
		log = logger.Nop()
	}
	parser, err := chat.NewTimestampParser(cfg.TimestampParser)
	if err != nil {
		return nil, err
	}

	s := &Services{DB: gdb, Repo: chat.NewRepo(gdb), Parser: parser}

	var cache chat.HistoryCache
	switch cfg.HistoryCache {
	case config.CacheRedis:
		rdb, err := redisstore.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		s.redis = rdb
		cache = redisstore.NewHistoryCache(rdb, cfg.HistoryCacheTTL)
	default:
		cache = chat.NewMemoryCache()
	}
	log.Info("services configured",
		zap.String("db_driver", cfg.DBDriver),
		zap.String("timestamp_parser", cfg.TimestampParser),
		zap.String("history_cache", cfg.HistoryCache),
		zap.String("secretary_phone", cfg.SecretaryPhone),
	)

	for _, w := range cfg.Warnings() {
		log.Warn("config", zap.String("warning", w))
	}

	s.History = chat.NewHistoryService(s.Repo, parser, cache, log)
	s.Grouper = chat.NewGrouper(s.Repo, parser, cfg.SecretaryPhone, s.History, log)
	s.Ingestor = chat.NewIngestor(s.Repo, parser, log)
	return s, nil
}

func (s *Services) Close() error {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
