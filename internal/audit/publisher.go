package audit

import (
	"context"
	"encoding/json"
	"fmt"
)

// BrokerProducer sends one keyed record to the stream. Satisfied by
// platform/kafka.Producer.
type BrokerProducer interface {
	Publish(ctx context.Context, key, value []byte) error
	Close()
}

// StreamPublisher mirrors committed audit entries onto a Kafka topic so
// downstream systems can follow the trail without querying the core. Entries
// are keyed by subject, which keeps a subject's sequence ordered within its
// partition.
type StreamPublisher struct {
	producer BrokerProducer
}

func NewStreamPublisher(producer BrokerProducer) *StreamPublisher {
	return &StreamPublisher{producer: producer}
}

func (p *StreamPublisher) Emit(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	return p.producer.Publish(ctx, []byte(entry.Subject.String()), payload)
}

func (p *StreamPublisher) Close() {
	p.producer.Close()
}

// ChannelPublisher feeds entries into a channel instead of a broker. It is
// the in-process counterpart of StreamPublisher for broker-free mirrors.
type ChannelPublisher struct {
	inbox chan<- Entry
}

func NewChannelPublisher(inbox chan<- Entry) *ChannelPublisher {
	return &ChannelPublisher{inbox: inbox}
}

func (p *ChannelPublisher) Emit(ctx context.Context, entry Entry) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.inbox <- entry:
		return nil
	}
}
