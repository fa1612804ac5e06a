package audit

import (
	"context"
	"errors"

	"custodia/pkg/platform/sentinel"
)

// Worker drains entries from an in-process channel into a replica store.
// Paired with ChannelPublisher it gives embedding code and tests the same
// mirror the Kafka materializer provides, without a broker.
type Worker struct {
	store Store
	inbox <-chan Entry
}

func NewWorker(store Store, inbox <-chan Entry) *Worker {
	return &Worker{store: store, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-w.inbox:
			err := w.store.Append(ctx, &entry)
			if err != nil && !errors.Is(err, sentinel.ErrConflict) {
				return err
			}
		}
	}
}
