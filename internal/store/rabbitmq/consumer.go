package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/suPer8Hu/swaif-depths/internal/chat"
	"github.com/suPer8Hu/swaif-depths/pkg/logger"
)

const (
	retryHeader = "x-retry-count"
	maxRetries  = 5
	retryDelay  = 5 * time.Second
)

// PayloadHandler stores one decoded payload.
type PayloadHandler func(ctx context.Context, p chat.Payload) error

type Consumer struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	queues      Queues
	concurrency int
	log         *logger.Logger
}

func NewConsumer(url, queue string, concurrency int, log *logger.Logger) (*Consumer, error) {
	if concurrency <= 0 {
		concurrency = 2
	}
	if log == nil {
		log = logger.Nop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbit dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbit channel: %w", err)
	}
	if err := DeclareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	//  strict concurrency control
	if err := ch.Qos(concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("qos: %w", err)
	}
	return &Consumer{
		conn:        conn,
		ch:          ch,
		queues:      QueueNames(queue),
		concurrency: concurrency,
		log:         log.With(zap.String("component", "consumer"), zap.String("queue", queue)),
	}, nil
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Run consumes until ctx is done or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context, handle PayloadHandler) error {
	tag := "depths-worker-" + uuid.NewString()
	msgs, err := c.ch.Consume(c.queues.Main, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	c.log.Info("consumer started", zap.String("tag", tag), zap.Int("concurrency", c.concurrency))

	// worker pool
	jobs := make(chan amqp.Delivery, c.concurrency*2)
	var wg sync.WaitGroup
	wg.Add(c.concurrency)
	for i := 0; i < c.concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				c.handleDelivery(ctx, workerID, d, handle, c.publishRetry)
			}
		}(i)
	}

	defer func() {
		close(jobs)
		wg.Wait()
	}()

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			c.log.Info("consumer shutting down")
			_ = c.ch.Cancel(tag, false)
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			jobs <- d
		}
	}
}

type retryFunc func(ctx context.Context, body []byte, retries int) error

func (c *Consumer) handleDelivery(ctx context.Context, workerID int, d amqp.Delivery, handle PayloadHandler, retry retryFunc) {
	log := c.log.With(zap.Int("worker", workerID), zap.Uint64("delivery_tag", d.DeliveryTag))

	var p chat.Payload
	if err := json.Unmarshal(d.Body, &p); err != nil {
		log.Warn("bad message", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	err := handle(ctx, p)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			log.Warn("ack failed", zap.Error(ackErr))
		}
		return
	}

	if errors.Is(err, chat.ErrInvalidPayload) {
		log.Warn("payload rejected", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	retries := retryCount(d.Headers)
	if retries >= maxRetries {
		log.Error("giving up after retries", zap.Int("retries", retries), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if rErr := retry(ctx, d.Body, retries+1); rErr != nil {
		log.Error("retry publish failed", zap.Error(rErr))
		_ = d.Nack(false, true)
		return
	}
	log.Warn("ingest failed, scheduled retry",
		zap.Int("retries", retries+1),
		zap.Duration("cost", time.Since(start)),
		zap.Error(err),
	)
	_ = d.Ack(false)
}

func (c *Consumer) publishRetry(ctx context.Context, body []byte, retries int) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.ch.PublishWithContext(cctx, "", c.queues.Retry, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Expiration:   strconv.FormatInt(retryDelay.Milliseconds(), 10),
		Headers:      amqp.Table{retryHeader: int32(retries)},
		Timestamp:    time.Now(),
	})
}

func retryCount(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
