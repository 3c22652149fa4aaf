// Package kafka publishes and consumes JSON events with segmentio/kafka-go.
// Consumed messages are routed to typed handlers by their "type" field.
package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/resilience"
)

// Reader is the part of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerStats counts messages by outcome.
type ConsumerStats struct {
	Processed int64 `json:"processed"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
}

// Consumer reads a topic and routes every message. Handled messages and
// messages that can never be handled (malformed, unknown type) are
// committed; a handler error leaves the offset uncommitted so the group
// redelivers it after a rebalance or restart.
type Consumer struct {
	reader  Reader
	router  *Router
	backoff resilience.Backoff
	logger  *slog.Logger

	processed atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

func NewConsumer(cfg config.KafkaConfig, topic string, router *Router) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	return newConsumer(r, topic, router)
}

func newConsumer(r Reader, topic string, router *Router) *Consumer {
	return &Consumer{
		reader:  r,
		router:  router,
		backoff: resilience.Backoff{Attempts: 5, Initial: 500 * time.Millisecond, Max: 10 * time.Second, Jitter: 0.2},
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled, then closes the reader. Fetch
// errors are retried with backoff; a fetch that keeps failing is logged and
// the loop carries on.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for ctx.Err() == nil {
		var msg kafka.Message
		err := resilience.Retry(ctx, "kafka fetch", c.backoff, func(ctx context.Context) error {
			var err error
			msg, err = c.reader.FetchMessage(ctx)
			if ctx.Err() != nil {
				return resilience.Permanent(err)
			}
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.consume(ctx, msg)
	}
	c.logger.Info("consumer stopping", "reason", ctx.Err())
	return c.reader.Close()
}

func (c *Consumer) consume(ctx context.Context, msg kafka.Message) {
	log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
	err := c.router.Dispatch(ctx, Message{
		Key:       string(msg.Key),
		Value:     msg.Value,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	})
	switch {
	case err == nil:
		c.processed.Add(1)
		log.Debug("message processed", "key", string(msg.Key), "value_size", len(msg.Value))
	case errors.Is(err, ErrMalformed), errors.Is(err, ErrUnroutable):
		c.skipped.Add(1)
		log.Warn("skipping message", "error", err)
	default:
		c.failed.Add(1)
		log.Error("failed to process message", "error", err)
		return
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.Error("failed to commit message", "error", err)
	}
}

func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Processed: c.processed.Load(),
		Skipped:   c.skipped.Load(),
		Failed:    c.failed.Load(),
	}
}
