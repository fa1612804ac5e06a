package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"custodia/internal/platform/kafka"
	"custodia/pkg/platform/sentinel"
)

// Materializer consumes mirrored audit entries from the stream and writes
// them into a read replica store. Delivery is at-least-once; the replica's
// (subject, sequence) uniqueness makes replays a no-op.
type Materializer struct {
	store  Store
	logger *slog.Logger
}

func NewMaterializer(store Store, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{store: store, logger: logger}
}

func (m *Materializer) Handle(ctx context.Context, msg *kafka.Message) error {
	var entry Entry
	if err := json.Unmarshal(msg.Value, &entry); err != nil {
		// A malformed record will never parse on retry; log and move on.
		m.logger.ErrorContext(ctx, "dropping malformed audit record",
			"topic", msg.Topic,
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	err := m.store.Append(ctx, &entry)
	if errors.Is(err, sentinel.ErrConflict) {
		// Already materialized on a previous delivery.
		return nil
	}
	if err != nil {
		return fmt.Errorf("materialize audit entry: %w", err)
	}
	return nil
}
