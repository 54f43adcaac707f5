package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/suPer8Hu/swaif-depths/pkg/logger"
	"github.com/suPer8Hu/swaif-depths/pkg/metrics"
)

var ErrInvalidPayload = errors.New("invalid payload")

// Payload is the upstream (n8n / Evolution API) message shape.
type Payload struct {
	HostN8N     string  `json:"host_n8n"`
	EvoInstance string  `json:"evo_api_instance_name"`
	HostEvoAPI  string  `json:"host_evoapi"`
	Sender      *string `json:"sender_raw_data"`
	Receiver    string  `json:"receiver_raw_data"`
	MessageType string  `json:"message_type"`
	SentMessage string  `json:"sent_message"`
	Timestamp   string  `json:"timestamp"`
}

// Ingestor stores upstream payloads as pending raw messages.
type Ingestor struct {
	repo   *Repo
	parser TimestampParser
	log    *logger.Logger
}

func NewIngestor(repo *Repo, parser TimestampParser, log *logger.Logger) *Ingestor {
	if parser == nil {
		parser = FlexibleParser{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Ingestor{repo: repo, parser: parser, log: log.With(zap.String("component", "ingest"))}
}

// Validate rejects payloads the grouper could not place: no participant at
// all, or a timestamp the configured parser refuses.
func (in *Ingestor) Validate(p Payload) error {
	sender := ""
	if p.Sender != nil {
		sender = CleanPhone(*p.Sender)
	}
	if sender == "" && CleanPhone(p.Receiver) == "" {
		return fmt.Errorf("%w: sender and receiver both empty", ErrInvalidPayload)
	}
	if _, err := in.parser.Parse(p.Timestamp); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// Ingest validates and stores one payload. source labels the metric.
func (in *Ingestor) Ingest(ctx context.Context, source string, p Payload) (*RawMessage, error) {
	if err := in.Validate(p); err != nil {
		metrics.IngestedTotal.WithLabelValues(source, "rejected").Inc()
		return nil, err
	}

	var sender *string
	if p.Sender != nil && strings.TrimSpace(*p.Sender) != "" {
		s := strings.TrimSpace(*p.Sender)
		sender = &s
	}
	m := &RawMessage{
		N8NHost:       p.HostN8N,
		EvoInstance:   p.EvoInstance,
		EvoHost:       p.HostEvoAPI,
		SenderPhone:   sender,
		ReceiverPhone: strings.TrimSpace(p.Receiver),
		MessageType:   p.MessageType,
		Content:       p.SentMessage,
		Timestamp:     strings.TrimSpace(p.Timestamp),
	}
	if err := in.repo.InsertRawMessage(ctx, m); err != nil {
		metrics.IngestedTotal.WithLabelValues(source, "error").Inc()
		return nil, fmt.Errorf("store raw message: %w", err)
	}
	metrics.IngestedTotal.WithLabelValues(source, "stored").Inc()
	in.log.Debug("raw message stored", zap.Uint64("raw_id", m.ID), zap.String("source", source))
	return m, nil
}

// IngestBatch stores payloads one by one and reports how many made it.
// Invalid payloads are skipped; the first storage error stops the batch.
func (in *Ingestor) IngestBatch(ctx context.Context, source string, payloads []Payload) (stored int, rejected int, err error) {
	for i, p := range payloads {
		if _, err := in.Ingest(ctx, source, p); err != nil {
			if errors.Is(err, ErrInvalidPayload) {
				rejected++
				in.log.Warn("payload rejected", zap.Int("index", i), zap.Error(err))
				continue
			}
			return stored, rejected, err
		}
		stored++
	}
	return stored, rejected, nil
}
