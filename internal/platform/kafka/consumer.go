package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"custodia/internal/platform/config"
)

// Message is the transport-agnostic view handlers receive.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Handler processes one consumed message. Returning an error stops the
// consumer; redelivery is the broker's concern.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer polls the audit topic and dispatches to a handler. Collaborators
// use this to materialize committed audit entries outside the core.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// NewConsumer joins the given consumer group on the audit topic.
func NewConsumer(cfg config.KafkaConfig, group string, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(cfg.AuditTopic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

// Run polls until the context is cancelled. Offsets are committed only after
// the handler succeeds, so materialization is at-least-once; handlers must be
// idempotent.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var handleErr error
		fetches.EachRecord(func(record *kgo.Record) {
			if handleErr != nil {
				return
			}
			handleErr = c.handler.Handle(ctx, &Message{
				Topic: record.Topic,
				Key:   record.Key,
				Value: record.Value,
			})
		})
		if handleErr != nil {
			return fmt.Errorf("handle record: %w", handleErr)
		}

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.Error("commit offsets", "error", err)
		}
	}
}
