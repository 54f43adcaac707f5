package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"
)

// keeps IN lists and multi-row inserts under driver parameter limits
const batchSize = 500

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// WithTx runs fn against a repo bound to a single transaction.
func (r *Repo) WithTx(ctx context.Context, fn func(tx *Repo) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}

func (r *Repo) InsertRawMessage(ctx context.Context, m *RawMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListPending returns unprocessed raw messages, oldest first.
func (r *Repo) ListPending(ctx context.Context) ([]RawMessage, error) {
	var msgs []RawMessage
	if err := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("timestamp ASC").
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListRawByPhonePrefix returns raw messages whose sender or receiver starts
// with prefix, in timestamp order.
func (r *Repo) ListRawByPhonePrefix(ctx context.Context, prefix string) ([]RawMessage, error) {
	like := prefix + "%"
	var msgs []RawMessage
	if err := r.db.WithContext(ctx).
		Where("sender_phone LIKE ? OR receiver_phone LIKE ?", like, like).
		Order("timestamp ASC").
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ErrAlreadyProcessed means some of the ids were flipped by another pass
// after this one read them.
var ErrAlreadyProcessed = errors.New("raw messages already processed")

// MarkProcessed flips pending rows to processed. Every id must still be
// pending; otherwise it fails so the surrounding transaction rolls back.
func (r *Repo) MarkProcessed(ctx context.Context, ids []uint64) error {
	for len(ids) > 0 {
		n := min(len(ids), batchSize)
		res := r.db.WithContext(ctx).Model(&RawMessage{}).
			Where("id IN ? AND processed = ?", ids[:n], false).
			Update("processed", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(n) {
			return fmt.Errorf("%w: %d of %d still pending", ErrAlreadyProcessed, res.RowsAffected, n)
		}
		ids = ids[n:]
	}
	return nil
}

func (r *Repo) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	var c Conversation
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertConversation inserts the group as a new conversation, or folds it
// into the existing row: count is incremented, end time only moves forward,
// start time is left alone. Returns true when a row was inserted.
func (r *Repo) UpsertConversation(ctx context.Context, c *Conversation) (bool, error) {
	var existing Conversation
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", c.ConversationID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	end := existing.EndTime
	if c.EndTime.After(end) {
		end = c.EndTime
	}
	return false, r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ?", existing.ID).
		Updates(map[string]any{
			"message_count": gorm.Expr("message_count + ?", c.MessageCount),
			"end_time":      end,
		}).Error
}

func (r *Repo) AppendConversationMessages(ctx context.Context, msgs []ConversationMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&msgs, batchSize).Error
}

// ListConversationMessages returns the persisted history, oldest first.
// Rows are sorted by instant in Go: sqlite compares stored times as text,
// which breaks when rows carry different offsets.
func (r *Repo) ListConversationMessages(ctx context.Context, conversationID string) ([]ConversationMessage, error) {
	var msgs []ConversationMessage
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })
	return msgs, nil
}

// ListConversationsByLead returns a lead's conversations, most recent first.
func (r *Repo) ListConversationsByLead(ctx context.Context, leadPhone string) ([]Conversation, error) {
	var convs []Conversation
	if err := r.db.WithContext(ctx).
		Where("lead_phone = ?", leadPhone).
		Order("start_time DESC").
		Find(&convs).Error; err != nil {
		return nil, err
	}
	return convs, nil
}

type Stats struct {
	RawMessages   int64          `json:"raw_messages"`
	Pending       int64          `json:"pending"`
	Conversations int64          `json:"conversations"`
	Recent        []Conversation `json:"recent"`
}

func (r *Repo) Stats(ctx context.Context, recent int) (*Stats, error) {
	if recent <= 0 || recent > 100 {
		recent = 10
	}
	var s Stats
	db := r.db.WithContext(ctx)
	if err := db.Model(&RawMessage{}).Count(&s.RawMessages).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&RawMessage{}).Where("processed = ?", false).Count(&s.Pending).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Conversation{}).Count(&s.Conversations).Error; err != nil {
		return nil, err
	}
	if err := db.Order("end_time DESC").Limit(recent).Find(&s.Recent).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Group run bookkeeping
func (r *Repo) CreateGroupRun(ctx context.Context, run *GroupRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *Repo) GetGroupRun(ctx context.Context, id string) (*GroupRun, error) {
	var run GroupRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListGroupRuns returns the most recent runs first.
func (r *Repo) ListGroupRuns(ctx context.Context, limit int) ([]GroupRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []GroupRun
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
