package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/swaif-depths/internal/chat"
	"github.com/suPer8Hu/swaif-depths/pkg/logger"
)

type fakeAck struct {
	acked   int
	nacked  int
	requeue bool
}

func (f *fakeAck) Ack(uint64, bool) error { f.acked++; return nil }
func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked++
	f.requeue = requeue
	return nil
}
func (f *fakeAck) Reject(uint64, bool) error { return nil }

type retryRecorder struct {
	calls   int
	retries int
	err     error
}

func (r *retryRecorder) fn(_ context.Context, _ []byte, retries int) error {
	r.calls++
	r.retries = retries
	return r.err
}

func newDelivery(ack *fakeAck, body string, headers amqp.Table) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(body), Headers: headers}
}

const validBody = `{"sender_raw_data":"5511999887766@s.whatsapp.net","receiver_raw_data":"5511998681314@s.whatsapp.net","sent_message":"oi","timestamp":"2025-01-14T10:00:00Z"}`

func TestHandleDelivery(t *testing.T) {
	c := &Consumer{log: logger.Nop()}
	ctx := context.Background()

	t.Run("success acks", func(t *testing.T) {
		ack, rr := &fakeAck{}, &retryRecorder{}
		var got chat.Payload
		c.handleDelivery(ctx, 0, newDelivery(ack, validBody, nil), func(_ context.Context, p chat.Payload) error {
			got = p
			return nil
		}, rr.fn)
		assert.Equal(t, 1, ack.acked)
		assert.Zero(t, rr.calls)
		require.NotNil(t, got.Sender)
		assert.Equal(t, "5511999887766@s.whatsapp.net", *got.Sender)
	})

	t.Run("bad json goes to dlq", func(t *testing.T) {
		ack, rr := &fakeAck{}, &retryRecorder{}
		c.handleDelivery(ctx, 0, newDelivery(ack, "{nope", nil), func(context.Context, chat.Payload) error {
			t.Fatal("handler must not run")
			return nil
		}, rr.fn)
		assert.Equal(t, 1, ack.nacked)
		assert.False(t, ack.requeue)
	})

	t.Run("invalid payload goes to dlq", func(t *testing.T) {
		ack, rr := &fakeAck{}, &retryRecorder{}
		c.handleDelivery(ctx, 0, newDelivery(ack, validBody, nil), func(context.Context, chat.Payload) error {
			return fmt.Errorf("%w: no timestamp", chat.ErrInvalidPayload)
		}, rr.fn)
		assert.Equal(t, 1, ack.nacked)
		assert.False(t, ack.requeue)
		assert.Zero(t, rr.calls)
	})

	t.Run("storage error is retried", func(t *testing.T) {
		ack, rr := &fakeAck{}, &retryRecorder{}
		c.handleDelivery(ctx, 0, newDelivery(ack, validBody, amqp.Table{retryHeader: int32(2)}), func(context.Context, chat.Payload) error {
			return errors.New("database is locked")
		}, rr.fn)
		assert.Equal(t, 1, rr.calls)
		assert.Equal(t, 3, rr.retries)
		assert.Equal(t, 1, ack.acked)
	})

	t.Run("retries exhausted", func(t *testing.T) {
		ack, rr := &fakeAck{}, &retryRecorder{}
		c.handleDelivery(ctx, 0, newDelivery(ack, validBody, amqp.Table{retryHeader: int32(maxRetries)}), func(context.Context, chat.Payload) error {
			return errors.New("database is locked")
		}, rr.fn)
		assert.Zero(t, rr.calls)
		assert.Equal(t, 1, ack.nacked)
		assert.False(t, ack.requeue)
	})

	t.Run("retry publish failure requeues", func(t *testing.T) {
		ack, rr := &fakeAck{}, &retryRecorder{err: errors.New("channel closed")}
		c.handleDelivery(ctx, 0, newDelivery(ack, validBody, nil), func(context.Context, chat.Payload) error {
			return errors.New("database is locked")
		}, rr.fn)
		assert.Equal(t, 1, ack.nacked)
		assert.True(t, ack.requeue)
	})
}

func TestQueueNames(t *testing.T) {
	assert.Equal(t, Queues{Main: "raw", Retry: "raw.retry", DLQ: "raw.dlq"}, QueueNames("raw"))
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, retryCount(nil))
	assert.Equal(t, 3, retryCount(amqp.Table{retryHeader: int32(3)}))
	assert.Equal(t, 4, retryCount(amqp.Table{retryHeader: int64(4)}))
	assert.Equal(t, 0, retryCount(amqp.Table{retryHeader: "x"}))
}
