package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/suPer8Hu/swaif-depths/internal/common"
	"github.com/suPer8Hu/swaif-depths/pkg/logger"
	"github.com/suPer8Hu/swaif-depths/pkg/metrics"
)

// DefaultSecretaryPhone stands in for the clinic side when a reply carries
// no sender.
const DefaultSecretaryPhone = "clinic_secretary"

// ConversationRecorder is told about every conversation a committed pass touched.
type ConversationRecorder interface {
	RecordConversation(ctx context.Context, conversationID string)
}

// Grouper folds pending raw messages into per-lead, per-day conversations.
type Grouper struct {
	repo      *Repo
	parser    TimestampParser
	secretary string
	recorder  ConversationRecorder
	log       *logger.Logger

	// one pass at a time per process
	mu sync.Mutex
}

func NewGrouper(repo *Repo, parser TimestampParser, secretaryPhone string, recorder ConversationRecorder, log *logger.Logger) *Grouper {
	if parser == nil {
		parser = FlexibleParser{}
	}
	if secretaryPhone == "" {
		secretaryPhone = DefaultSecretaryPhone
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Grouper{
		repo:      repo,
		parser:    parser,
		secretary: secretaryPhone,
		recorder:  recorder,
		log:       log.With(zap.String("component", "grouper")),
	}
}

type pendingGroup struct {
	summary ConversationSummary
	rows    []ConversationMessage
}

// ProcessPending groups every unprocessed raw message. The pending read,
// upserts, history rows and the processed flags share one transaction; on
// any error nothing is written and the messages stay pending for the next
// pass. A pass that loses a race with another process rolls back with
// ErrAlreadyProcessed.
func (g *Grouper) ProcessPending(ctx context.Context) ([]ConversationSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()

	var (
		order    []string
		groups   map[string]*pendingGroup
		ids      []uint64
		inserted int
	)
	err := g.repo.WithTx(ctx, func(tx *Repo) error {
		pending, err := tx.ListPending(ctx)
		if err != nil {
			return fmt.Errorf("list pending: %w", err)
		}
		if len(pending) == 0 {
			return nil
		}

		order, groups, ids, err = g.group(pending)
		if err != nil {
			return err
		}

		for _, id := range order {
			pg := groups[id]
			s := pg.summary
			created, err := tx.UpsertConversation(ctx, &Conversation{
				ConversationID: s.ConversationID,
				LeadPhone:      s.LeadPhone,
				SecretaryPhone: s.SecretaryPhone,
				MessageCount:   s.MessageCount,
				StartTime:      s.StartTime,
				EndTime:        s.EndTime,
			})
			if err != nil {
				return fmt.Errorf("upsert conversation %s: %w", id, err)
			}
			if created {
				inserted++
			}
			if err := tx.AppendConversationMessages(ctx, pg.rows); err != nil {
				return fmt.Errorf("append history %s: %w", id, err)
			}
		}
		if err := tx.MarkProcessed(ctx, ids); err != nil {
			return fmt.Errorf("mark processed: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.RecordGrouperRun("failed", time.Since(start).Seconds(), 0)
		if errors.Is(err, ErrAlreadyProcessed) {
			g.log.Warn("grouping batch raced another pass, rolled back", zap.Error(err))
		} else {
			g.log.Error("grouping batch rolled back", zap.Error(err))
		}
		return nil, err
	}
	if len(ids) == 0 {
		g.log.Debug("no pending messages to group")
		return []ConversationSummary{}, nil
	}

	metrics.ConversationsUpsertedTotal.WithLabelValues("insert").Add(float64(inserted))
	metrics.ConversationsUpsertedTotal.WithLabelValues("update").Add(float64(len(order) - inserted))
	metrics.RecordGrouperRun("succeeded", time.Since(start).Seconds(), len(ids))

	out := make([]ConversationSummary, 0, len(order))
	for _, id := range order {
		out = append(out, groups[id].summary)
	}

	if g.recorder != nil {
		for _, s := range out {
			g.recorder.RecordConversation(ctx, s.ConversationID)
		}
	}

	g.log.Info("grouped pending messages",
		zap.Int("messages", len(ids)),
		zap.Int("conversations", len(out)),
		zap.Int("new_conversations", inserted),
		zap.Duration("took", time.Since(start)),
	)
	return out, nil
}

// group buckets messages by conversation id, keeping first-seen order.
func (g *Grouper) group(pending []RawMessage) ([]string, map[string]*pendingGroup, []uint64, error) {
	type parsed struct {
		msg RawMessage
		at  time.Time
	}
	items := make([]parsed, 0, len(pending))
	for _, m := range pending {
		at, err := g.parser.Parse(m.Timestamp)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("raw message %d: %w", m.ID, err)
		}
		items = append(items, parsed{msg: m, at: at})
	}
	// the store orders by the raw string; mixed layouts need the parsed instant
	sort.SliceStable(items, func(i, j int) bool { return items[i].at.Before(items[j].at) })

	var order []string
	groups := make(map[string]*pendingGroup)
	ids := make([]uint64, 0, len(items))

	for _, it := range items {
		p := IdentifyParticipants(it.msg.SenderPhone, it.msg.ReceiverPhone, g.secretary)
		if p.LeadPhone == "" {
			g.log.Warn("message without lead phone", zap.Uint64("raw_id", it.msg.ID))
		}
		convID := ConversationID(p.LeadPhone, DayKey(it.at))

		pg, ok := groups[convID]
		if !ok {
			pg = &pendingGroup{summary: ConversationSummary{
				ConversationID: convID,
				LeadPhone:      p.LeadPhone,
				SecretaryPhone: p.SecretaryPhone,
				StartTime:      it.at,
				EndTime:        it.at,
			}}
			groups[convID] = pg
			order = append(order, convID)
		}

		s := &pg.summary
		// a real clinic number beats the sentinel
		if s.SecretaryPhone == g.secretary && p.SecretaryPhone != g.secretary && p.SecretaryPhone != "" {
			s.SecretaryPhone = p.SecretaryPhone
		}
		s.MessageCount++
		if it.at.Before(s.StartTime) {
			s.StartTime = it.at
		}
		if it.at.After(s.EndTime) {
			s.EndTime = it.at
		}
		s.Messages = append(s.Messages, HistoryEntry{
			SenderType: p.SenderType,
			Content:    it.msg.Content,
			Timestamp:  it.at,
		})
		pg.rows = append(pg.rows, ConversationMessage{
			ConversationID: convID,
			RawMessageID:   it.msg.ID,
			SenderType:     p.SenderType,
			Content:        it.msg.Content,
			Timestamp:      it.at,
		})
		ids = append(ids, it.msg.ID)
	}
	return order, groups, ids, nil
}

// Run is ProcessPending plus a GroupRun audit row for passes that did
// something. Bookkeeping failures are logged, never returned.
func (g *Grouper) Run(ctx context.Context, trigger string) (*GroupRun, []ConversationSummary, error) {
	summaries, err := g.ProcessPending(ctx)
	if err == nil && len(summaries) == 0 {
		return nil, summaries, nil
	}

	id, idErr := common.NewULID()
	if idErr != nil {
		g.log.Warn("group run id", zap.Error(idErr))
		return nil, summaries, err
	}
	run := &GroupRun{ID: id, Trigger: trigger, Status: RunSucceeded}
	if err != nil {
		msg := err.Error()
		run.Status = RunFailed
		run.Error = &msg
	} else {
		run.Conversations = len(summaries)
		for _, s := range summaries {
			run.MessagesGrouped += s.MessageCount
		}
	}
	if cErr := g.repo.CreateGroupRun(ctx, run); cErr != nil {
		g.log.Warn("record group run", zap.String("run_id", id), zap.Error(cErr))
	}
	return run, summaries, err
}
