package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_EmptyForUnknownLead(t *testing.T) {
	h := NewHistoryService(NewRepo(openTestDB(t)), nil, nil, nil)

	got := h.GetHistory(context.Background(), "5500000000000")
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.Empty(t, h.GetHistory(context.Background(), ""))
}

func TestHistory_RecordAfterGrouping(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	h := NewHistoryService(repo, FlexibleParser{}, NewMemoryCache(), nil)
	g := NewGrouper(repo, FlexibleParser{}, "", h, nil)
	ctx := context.Background()

	seedRaw(t, repo, strPtr(leadRaw), secretaryRaw, "Oi", "2025-01-14T10:00:00.000Z")
	seedRaw(t, repo, nil, leadRaw, "Olá", "2025-01-14T10:05:00.000Z")
	// same lead, next day: outside the first conversation's window
	seedRaw(t, repo, strPtr(leadRaw), secretaryRaw, "De novo", "2025-01-15T09:00:00.000Z")

	_, err := g.ProcessPending(ctx)
	require.NoError(t, err)

	snaps := h.GetHistory(ctx, leadRaw)
	require.Len(t, snaps, 2)

	assert.Equal(t, "5511999887766_2025-01-14", snaps[0].ConversationID)
	require.Len(t, snaps[0].Messages, 2)
	assert.Equal(t, "Oi", snaps[0].Messages[0].Content)
	assert.Equal(t, SenderLead, snaps[0].Messages[0].SenderType)
	assert.Equal(t, "Olá", snaps[0].Messages[1].Content)
	assert.Equal(t, SenderSecretary, snaps[0].Messages[1].SenderType)

	assert.Equal(t, "5511999887766_2025-01-15", snaps[1].ConversationID)
	require.Len(t, snaps[1].Messages, 1)
	assert.Equal(t, "De novo", snaps[1].Messages[0].Content)

	require.NoError(t, h.Reset(ctx))
	assert.Empty(t, h.GetHistory(ctx, "5511999887766"))
}

func TestHistory_RecordIsNoopForMissingConversation(t *testing.T) {
	cache := NewMemoryCache()
	h := NewHistoryService(NewRepo(openTestDB(t)), nil, cache, nil)
	ctx := context.Background()

	h.RecordConversation(ctx, "")
	h.RecordConversation(ctx, "   ")
	h.RecordConversation(ctx, "5511999887766_2025-01-14")

	assert.Empty(t, cache.items)
}

func TestHistory_RecordSurvivesClosedStore(t *testing.T) {
	gdb := openTestDB(t)
	h := NewHistoryService(NewRepo(gdb), nil, nil, nil)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	assert.NotPanics(t, func() {
		h.RecordConversation(context.Background(), "5511999887766_2025-01-14")
	})
	assert.Empty(t, h.GetConversationMessages(context.Background(), "5511999887766_2025-01-14"))
}

func TestHistory_GetConversationMessagesOrdered(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	h := NewHistoryService(repo, nil, nil, nil)
	g := NewGrouper(repo, FlexibleParser{}, "", nil, nil)
	ctx := context.Background()

	// inserted out of order on purpose
	seedRaw(t, repo, nil, leadRaw, "segunda", "2025-01-14T10:05:00Z")
	seedRaw(t, repo, strPtr(leadRaw), secretaryRaw, "primeira", "2025-01-14T10:00:00Z")
	seedRaw(t, repo, strPtr(leadRaw), secretaryRaw, "terceira", "2025-01-14T10:09:59Z")

	_, err := g.ProcessPending(ctx)
	require.NoError(t, err)

	got := h.GetConversationMessages(ctx, "5511999887766_2025-01-14")
	require.Len(t, got, 3)
	assert.Equal(t, "primeira", got[0].Content)
	assert.Equal(t, SenderLead, got[0].SenderType)
	assert.Equal(t, "segunda", got[1].Content)
	assert.Equal(t, SenderSecretary, got[1].SenderType)
	assert.Equal(t, "terceira", got[2].Content)

	assert.Empty(t, h.GetConversationMessages(ctx, "nonexistent"))
}

type failingCache struct{}

func (failingCache) Append(context.Context, string, ConversationSnapshot) error {
	return errors.New("cache down")
}
func (failingCache) Get(context.Context, string) ([]ConversationSnapshot, error) {
	return nil, errors.New("cache down")
}
func (failingCache) Reset(context.Context) error { return nil }

func TestHistory_CacheFailuresAreSwallowed(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	h := NewHistoryService(repo, nil, failingCache{}, nil)
	g := NewGrouper(repo, FlexibleParser{}, "", h, nil)
	ctx := context.Background()

	seedRaw(t, repo, strPtr(leadRaw), secretaryRaw, "Oi", "2025-01-14T10:00:00Z")
	_, err := g.ProcessPending(ctx)
	require.NoError(t, err)

	got := h.GetHistory(ctx, leadRaw)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMemoryCache_ConcurrentAppend(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Append(ctx, "lead", ConversationSnapshot{ConversationID: "x"})
		}()
	}
	wg.Wait()

	got, err := c.Get(ctx, "lead")
	require.NoError(t, err)
	assert.Len(t, got, 50)

	// returned slice is a copy
	got[0].ConversationID = "mutated"
	again, _ := c.Get(ctx, "lead")
	assert.Equal(t, "x", again[0].ConversationID)
}
