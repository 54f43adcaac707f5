package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/suPer8Hu/swaif-depths/internal/chat"
)

const historyKeyPrefix = "depths:history:"

// HistoryCache keeps conversation snapshots in one Redis list per lead, so
// the API and the worker see the same history.
type HistoryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewHistoryCache wraps rdb. ttl <= 0 keeps entries forever.
func NewHistoryCache(rdb *redis.Client, ttl time.Duration) *HistoryCache {
	return &HistoryCache{rdb: rdb, ttl: ttl}
}

func historyKey(leadPhone string) string {
	return historyKeyPrefix + leadPhone
}

func (c *HistoryCache) Append(ctx context.Context, leadPhone string, snap chat.ConversationSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	key := historyKey(leadPhone)
	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, key, b)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (c *HistoryCache) Get(ctx context.Context, leadPhone string) ([]chat.ConversationSnapshot, error) {
	raw, err := c.rdb.LRange(ctx, historyKey(leadPhone), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []chat.ConversationSnapshot{}, nil
		}
		return nil, err
	}
	out := make([]chat.ConversationSnapshot, 0, len(raw))
	for _, r := range raw {
		var s chat.ConversationSnapshot
		if err := json.Unmarshal([]byte(r), &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Reset deletes every history key. SCAN keeps it safe on a shared instance.
func (c *HistoryCache) Reset(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, historyKeyPrefix+"*", 200).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 200 {
			if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.rdb.Del(ctx, batch...).Err()
	}
	return nil
}
