package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type capturingProducer struct {
	key   []byte
	value []byte
	err   error
}

func (p *capturingProducer) Publish(_ context.Context, key, value []byte) error {
	p.key = key
	p.value = value
	return p.err
}

func (p *capturingProducer) Close() {}

func TestStreamPublisherKeysRecordsBySubject(t *testing.T) {
	producer := &capturingProducer{}
	publisher := NewStreamPublisher(producer)

	entry := Entry{
		Subject:      "subject-1",
		Sequence:     4,
		SystemType:   "core",
		ActionTypeID: ActionAccessGranted,
		DataHash:     "hash",
		CreatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, publisher.Emit(context.Background(), entry))

	require.Equal(t, []byte("subject-1"), producer.key)

	var decoded Entry
	require.NoError(t, json.Unmarshal(producer.value, &decoded))
	require.Equal(t, entry, decoded)
}

func TestStreamPublisherPropagatesProducerError(t *testing.T) {
	producer := &capturingProducer{err: errors.New("broker down")}
	publisher := NewStreamPublisher(producer)

	err := publisher.Emit(context.Background(), Entry{Subject: "subject-1", Sequence: 1})
	require.ErrorIs(t, err, producer.err)
}
