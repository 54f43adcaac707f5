package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/swaif-depths/internal/chat"
)

var _ chat.HistoryCache = (*HistoryCache)(nil)

func TestHistoryKey(t *testing.T) {
	assert.Equal(t, "depths:history:5511999887766", historyKey("5511999887766"))
}

// Runs only against a live server: REDIS_TEST_ADDR=127.0.0.1:6379 go test ./...
func TestHistoryCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	rdb, err := Connect(ctx, addr, "", 15)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	c := NewHistoryCache(rdb, time.Minute)
	require.NoError(t, c.Reset(ctx))

	got, err := c.Get(ctx, "5511999887766")
	require.NoError(t, err)
	assert.Empty(t, got)

	ts := time.Date(2025, 1, 14, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"5511999887766_2025-01-14", "5511999887766_2025-01-15"} {
		require.NoError(t, c.Append(ctx, "5511999887766", chat.ConversationSnapshot{
			ConversationID: id,
			Messages: []chat.HistoryEntry{
				{SenderType: chat.SenderLead, Content: "Oi", Timestamp: ts},
			},
		}))
	}

	got, err = c.Get(ctx, "5511999887766")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "5511999887766_2025-01-14", got[0].ConversationID)
	assert.True(t, got[0].Messages[0].Timestamp.Equal(ts))

	ttl, err := rdb.TTL(ctx, historyKey("5511999887766")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, c.Reset(ctx))
	got, err = c.Get(ctx, "5511999887766")
	require.NoError(t, err)
	assert.Empty(t, got)
}
