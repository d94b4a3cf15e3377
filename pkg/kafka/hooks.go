package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	applogger "FinRank/pkg/logger"
)

// ConsumerHook observes message handling. Returning an error from BeforeHandle
// skips the handler and routes the message to error processing.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error)
	AfterHandle(ctx context.Context, km kafka.Message, attempts int, err error)
}

// NoopHook does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error) {
	return ctx, nil
}

func (NoopHook) AfterHandle(ctx context.Context, km kafka.Message, attempts int, err error) {}

// HookFuncs adapts plain functions; nil functions are no-ops.
type HookFuncs struct {
	Before func(context.Context, kafka.Message) (context.Context, error)
	After  func(context.Context, kafka.Message, int, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error) {
	if h.Before == nil {
		return ctx, nil
	}
	return h.Before(ctx, km)
}

func (h HookFuncs) AfterHandle(ctx context.Context, km kafka.Message, attempts int, err error) {
	if h.After != nil {
		h.After(ctx, km, attempts, err)
	}
}

// LoggingHook logs the outcome of every handled message.
type LoggingHook struct {
	NoopHook
	L *applogger.Logger
}

func (h LoggingHook) AfterHandle(ctx context.Context, km kafka.Message, attempts int, err error) {
	if h.L == nil {
		return
	}
	fields := []applogger.Field{
		applogger.String("topic", km.Topic),
		applogger.Int("partition", km.Partition),
		applogger.Int64("offset", km.Offset),
		applogger.Int("attempts", attempts),
	}
	if err != nil {
		h.L.Error("kafka message failed", append(fields, applogger.Error(err))...)
		return
	}
	h.L.Debug("kafka message handled", fields...)
}
