package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestBackoffWithJitterBounds(t *testing.T) {
	min, max := 100*time.Millisecond, 2*time.Second
	for attempt := 1; attempt <= 40; attempt++ {
		got := backoffWithJitter(min, max, attempt)
		if got <= 0 || got > max {
			t.Fatalf("attempt %d: backoff %v out of (0, %v]", attempt, got, max)
		}
	}
	if got := backoffWithJitter(min, max, 1); got < min/2 {
		t.Fatalf("first attempt below half of min: %v", got)
	}
}

func TestHookFuncsNilSafe(t *testing.T) {
	var h HookFuncs
	ctx, err := h.BeforeHandle(context.Background(), kafka.Message{})
	if err != nil || ctx == nil {
		t.Fatalf("nil Before should pass through")
	}
	h.AfterHandle(ctx, kafka.Message{}, 1, errors.New("x"))
}

func TestEncode(t *testing.T) {
	b, err := encode(map[string]int{"a": 1})
	if err != nil || string(b) != `{"a":1}` {
		t.Fatalf("unexpected %s %v", b, err)
	}
	if b, _ := encode("raw"); string(b) != "raw" {
		t.Fatalf("strings should pass through")
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
}

type ctxHandler struct {
	got context.Context
}

func (h *ctxHandler) Topic() string { return "recommender.retrain" }

func (h *ctxHandler) Handle(ctx context.Context, _ []byte) error {
	h.got = ctx
	return nil
}

func TestProcessUsesConsumerContext(t *testing.T) {
	c, err := NewConsumer(nil, WithConsumerBrokers([]string{"localhost:9092"}))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	h := &ctxHandler{}
	c.process(h, kafka.Message{Topic: h.Topic(), Value: []byte(`{}`)})
	if h.got == nil {
		t.Fatalf("handler not called")
	}
	if h.got.Err() != nil {
		t.Fatalf("context done before shutdown: %v", h.got.Err())
	}
	c.cancel()
	if h.got.Err() == nil {
		t.Fatalf("handler context should end with the consumer")
	}
}

type failingFetcher struct {
	calls atomic.Int64
}

func (f *failingFetcher) FetchMessage(context.Context) (kafka.Message, error) {
	f.calls.Add(1)
	return kafka.Message{}, errors.New("broker unreachable")
}

func TestConsumeBacksOffOnFetchErrors(t *testing.T) {
	c, err := NewConsumer(nil,
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(3, 20*time.Millisecond, 20*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	f := &failingFetcher{}
	var done sync.WaitGroup
	done.Add(1)
	go c.consume(&done, "recommender.retrain", f)

	time.Sleep(100 * time.Millisecond)
	c.cancel()
	done.Wait()

	// Each retry waits at least 10ms, so 100ms allows about ten fetches.
	if n := f.calls.Load(); n < 2 || n > 20 {
		t.Fatalf("fetch attempts %d, want a paced retry loop", n)
	}
}
