package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	SetMetricsRegisterer(prometheus.NewRegistry())
}

type countingHandler struct {
	calls   atomic.Int32
	failFor int32
	err     error
	traceID string
}

func (h *countingHandler) Topic() string { return "forecast.requests" }

func (h *countingHandler) Handle(ctx context.Context, _ []byte) error {
	n := h.calls.Add(1)
	h.traceID = TraceIDFromContext(ctx)
	if n <= h.failFor {
		return h.err
	}
	return nil
}

func newTestConsumer(t *testing.T, h MessageHandler) *Consumer {
	t.Helper()
	c, err := NewConsumer(nil,
		WithConsumerBrokers([]string{"127.0.0.1:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	)
	require.NoError(t, err)
	c.RegisterHandler(h)
	return c
}

func TestConsumerRetriesThenSucceeds(t *testing.T) {
	h := &countingHandler{failFor: 2, err: errors.New("transient")}
	c := newTestConsumer(t, h)

	var onErr atomic.Int32
	c.WithConsumerHook(HookFuncs{Err: func(context.Context, string, kafka.Message, []byte, error) { onErr.Add(1) }})

	c.process(&message{topic: h.Topic(), km: kafka.Message{Value: []byte(`{}`)}})
	assert.Equal(t, int32(3), h.calls.Load())
	assert.Equal(t, int32(2), onErr.Load())
}

func TestConsumerPermanentErrorNotRetried(t *testing.T) {
	h := &countingHandler{failFor: 10, err: ErrPermanent}
	c := newTestConsumer(t, h)
	c.process(&message{topic: h.Topic(), km: kafka.Message{Value: []byte(`bad`)}})
	assert.Equal(t, int32(1), h.calls.Load())
}

func TestConsumerTraceHook(t *testing.T) {
	h := &countingHandler{}
	c := newTestConsumer(t, h)
	c.WithConsumerHook(TraceHook())
	c.process(&message{topic: h.Topic(), km: kafka.Message{
		Value:   []byte(`{}`),
		Headers: []kafka.Header{{Key: HeaderTraceID, Value: []byte("req-42")}},
	}})
	assert.Equal(t, "req-42", h.traceID)
}

type orderHandler struct {
	mu   sync.Mutex
	seen map[int][]int64
}

func (h *orderHandler) Topic() string { return "forecast.requests" }

func (h *orderHandler) Handle(_ context.Context, data []byte) error {
	var partition int
	var offset int64
	if _, err := fmt.Sscanf(string(data), "%d:%d", &partition, &offset); err != nil {
		return err
	}
	// Earlier offsets take longer so any cross-worker overlap would reorder them.
	time.Sleep(time.Duration(5-offset) * time.Millisecond)
	h.mu.Lock()
	h.seen[partition] = append(h.seen[partition], offset)
	h.mu.Unlock()
	return nil
}

func TestConsumerKeepsPartitionOrder(t *testing.T) {
	h := &orderHandler{seen: make(map[int][]int64)}
	c, err := NewConsumer(nil,
		WithConsumerBrokers([]string{"127.0.0.1:9092"}),
		WithConsumerWorkers(4),
	)
	require.NoError(t, err)
	c.RegisterHandler(h)
	c.startWorkers()

	for offset := int64(0); offset < 5; offset++ {
		for partition := 0; partition < 3; partition++ {
			require.True(t, c.dispatch(&message{topic: h.Topic(), km: kafka.Message{
				Partition: partition,
				Offset:    offset,
				Value:     []byte(fmt.Sprintf("%d:%d", partition, offset)),
			}}))
		}
	}
	for _, q := range c.queues {
		close(q)
	}
	c.workersWg.Wait()

	for partition := 0; partition < 3; partition++ {
		assert.Equal(t, []int64{0, 1, 2, 3, 4}, h.seen[partition], "partition %d", partition)
	}
	assert.Equal(t, c.workerFor(h.Topic(), 1), c.workerFor(h.Topic(), 1))
}

func TestConsumerRequiresBrokersAndHandlers(t *testing.T) {
	_, err := NewConsumer(nil)
	assert.Error(t, err)

	c, err := NewConsumer(nil, WithConsumerBrokers([]string{"127.0.0.1:9092"}))
	require.NoError(t, err)
	assert.Error(t, c.Start())

	_, err = NewProducer()
	assert.Error(t, err)
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(100*time.Millisecond, time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}
