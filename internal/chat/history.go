package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/suPer8Hu/swaif-depths/pkg/logger"
	"github.com/suPer8Hu/swaif-depths/pkg/metrics"
)

// HistoryCache keeps conversation snapshots per lead phone.
type HistoryCache interface {
	Append(ctx context.Context, leadPhone string, snap ConversationSnapshot) error
	Get(ctx context.Context, leadPhone string) ([]ConversationSnapshot, error)
	Reset(ctx context.Context) error
}

// MemoryCache is the process-lifetime HistoryCache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string][]ConversationSnapshot
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string][]ConversationSnapshot)}
}

func (c *MemoryCache) Append(_ context.Context, leadPhone string, snap ConversationSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[leadPhone] = append(c.items[leadPhone], snap)
	return nil
}

func (c *MemoryCache) Get(_ context.Context, leadPhone string) ([]ConversationSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.items[leadPhone]
	out := make([]ConversationSnapshot, len(src))
	copy(out, src)
	return out, nil
}

func (c *MemoryCache) Reset(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string][]ConversationSnapshot)
	return nil
}

// HistoryService answers history lookups. Lookups never fail: problems are
// logged and counted, and callers get an empty result.
type HistoryService struct {
	repo   *Repo
	parser TimestampParser
	cache  HistoryCache
	log    *logger.Logger
}

func NewHistoryService(repo *Repo, parser TimestampParser, cache HistoryCache, log *logger.Logger) *HistoryService {
	if parser == nil {
		parser = FlexibleParser{}
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &HistoryService{
		repo:   repo,
		parser: parser,
		cache:  cache,
		log:    log.With(zap.String("component", "history")),
	}
}

// RecordConversation snapshots the raw messages of a conversation's time
// window into the cache under its lead phone.
func (h *HistoryService) RecordConversation(ctx context.Context, conversationID string) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return
	}

	conv, err := h.repo.GetConversation(ctx, conversationID)
	if err != nil {
		h.lookupFailed("record", err, zap.String("conversation_id", conversationID))
		return
	}

	rows, err := h.repo.ListRawByPhonePrefix(ctx, conv.LeadPhone)
	if err != nil {
		h.lookupFailed("record", err, zap.String("conversation_id", conversationID))
		return
	}

	messages := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		at, err := h.parser.Parse(row.Timestamp)
		if err != nil {
			h.log.Debug("skip unparseable raw message", zap.Uint64("raw_id", row.ID), zap.Error(err))
			continue
		}
		if at.Before(conv.StartTime) || at.After(conv.EndTime) {
			continue
		}
		sender := SenderLead
		if row.SenderPhone == nil || CleanPhone(*row.SenderPhone) == "" {
			sender = SenderSecretary
		}
		messages = append(messages, HistoryEntry{SenderType: sender, Content: row.Content, Timestamp: at})
	}

	sort.SliceStable(messages, func(i, j int) bool { return messages[i].Timestamp.Before(messages[j].Timestamp) })

	if err := h.cache.Append(ctx, conv.LeadPhone, ConversationSnapshot{
		ConversationID: conversationID,
		Messages:       messages,
	}); err != nil {
		h.lookupFailed("record", err, zap.String("conversation_id", conversationID))
	}
}

// GetHistory returns the snapshots recorded for a lead, oldest first.
func (h *HistoryService) GetHistory(ctx context.Context, leadPhone string) []ConversationSnapshot {
	lead := CleanPhone(leadPhone)
	if lead == "" {
		return []ConversationSnapshot{}
	}
	snaps, err := h.cache.Get(ctx, lead)
	if err != nil {
		h.lookupFailed("history", err, zap.String("lead_phone", lead))
		return []ConversationSnapshot{}
	}
	if snaps == nil {
		return []ConversationSnapshot{}
	}
	return snaps
}

// GetConversationMessages reads the persisted history of a conversation,
// ordered by timestamp.
func (h *HistoryService) GetConversationMessages(ctx context.Context, conversationID string) []HistoryEntry {
	rows, err := h.repo.ListConversationMessages(ctx, strings.TrimSpace(conversationID))
	if err != nil {
		h.lookupFailed("messages", err, zap.String("conversation_id", conversationID))
		return []HistoryEntry{}
	}
	out := make([]HistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, HistoryEntry{SenderType: r.SenderType, Content: r.Content, Timestamp: r.Timestamp})
	}
	return out
}

// Reset drops every cached snapshot.
func (h *HistoryService) Reset(ctx context.Context) error {
	return h.cache.Reset(ctx)
}

// lookupFailed separates "nothing there" from a broken store in logs and
// metrics; callers see the same empty result either way.
func (h *HistoryService) lookupFailed(op string, err error, fields ...zap.Field) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		h.log.Debug("history lookup found nothing", append(fields, zap.String("op", op))...)
		return
	}
	metrics.HistoryLookupErrorsTotal.WithLabelValues(op).Inc()
	h.log.Warn("history lookup failed", append(fields, zap.String("op", op), zap.Error(err))...)
}
