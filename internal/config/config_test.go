package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DB_DRIVER", "DB_DSN", "SECRETARY_PHONE", "TIMESTAMP_PARSER", "HISTORY_CACHE", "GROUP_INTERVAL", "WORKER_CONCURRENCY"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "data/swaif_msg.db", cfg.DBDSN)
	assert.Equal(t, DefaultSecretaryPhone, cfg.SecretaryPhone)
	assert.Equal(t, ParserFlexible, cfg.TimestampParser)
	assert.Equal(t, CacheMemory, cfg.HistoryCache)
	assert.Equal(t, 30*time.Second, cfg.GroupInterval)
	assert.Equal(t, 2, cfg.WorkerConcurrency)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("DB_DSN", "app:pass@tcp(db:3306)/x")
	t.Setenv("SECRETARY_PHONE", " 5511998681314 ")
	t.Setenv("TIMESTAMP_PARSER", "strict")
	t.Setenv("HISTORY_CACHE", "redis")
	t.Setenv("GROUP_INTERVAL", "2m")
	t.Setenv("WORKER_CONCURRENCY", "500")

	cfg := Load()

	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "app:pass@tcp(db:3306)/x", cfg.DBDSN)
	assert.Equal(t, "5511998681314", cfg.SecretaryPhone)
	assert.Equal(t, ParserStrict, cfg.TimestampParser)
	assert.Equal(t, CacheRedis, cfg.HistoryCache)
	assert.Equal(t, 2*time.Minute, cfg.GroupInterval)
	assert.Equal(t, 50, cfg.WorkerConcurrency)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("TIMESTAMP_PARSER", "fuzzy")
	t.Setenv("GROUP_INTERVAL", "soon")
	t.Setenv("WORKER_CONCURRENCY", "-3")

	cfg := Load()

	assert.Equal(t, ParserFlexible, cfg.TimestampParser)
	assert.Equal(t, 30*time.Second, cfg.GroupInterval)
	assert.Equal(t, 1, cfg.WorkerConcurrency)
}

func TestLoad_Bools(t *testing.T) {
	t.Setenv("RABBIT_ENABLED", "")
	t.Setenv("API_ENQUEUE", "")
	cfg := Load()
	assert.True(t, cfg.RabbitEnabled)
	assert.False(t, cfg.APIEnqueue)

	t.Setenv("RABBIT_ENABLED", "false")
	t.Setenv("API_ENQUEUE", "1")
	cfg = Load()
	assert.False(t, cfg.RabbitEnabled)
	assert.True(t, cfg.APIEnqueue)

	t.Setenv("RABBIT_ENABLED", "maybe")
	assert.True(t, Load().RabbitEnabled)
}

func TestWarnings_MemoryHistoryCache(t *testing.T) {
	t.Setenv("HISTORY_CACHE", "")
	w := Load().Warnings()
	require.Len(t, w, 1)
	assert.Contains(t, w[0], "HISTORY_CACHE=redis")

	t.Setenv("HISTORY_CACHE", "redis")
	assert.Empty(t, Load().Warnings())
}

func TestLoad_LogFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("ENV", "")
	assert.Equal(t, "json", Load().LogFormat)

	t.Setenv("ENV", "development")
	assert.Equal(t, "console", Load().LogFormat)

	t.Setenv("LOG_FORMAT", "JSON")
	assert.Equal(t, "json", Load().LogFormat)
}
