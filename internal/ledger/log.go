package ledger

import (
	"context"
	"sync"
)

// Log is the append-only command log: the durability and replication
// boundary of the whole core. Replay visits committed commands in append
// order.
type Log interface {
	Append(ctx context.Context, cmds ...*Command) error
	Replay(ctx context.Context, fn func(cmd *Command) error) error
}

// InMemoryLog keeps the order in a slice. It gives single-process runs the
// same replay semantics as the postgres log.
type InMemoryLog struct {
	mu   sync.RWMutex
	cmds []Command
}

func NewInMemoryLog() *InMemoryLog {
	return &InMemoryLog{}
}

func (l *InMemoryLog) Append(_ context.Context, cmds ...*Command) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, cmd := range cmds {
		l.cmds = append(l.cmds, *cmd)
	}
	return nil
}

func (l *InMemoryLog) Replay(_ context.Context, fn func(cmd *Command) error) error {
	l.mu.RLock()
	snapshot := append([]Command{}, l.cmds...)
	l.mu.RUnlock()

	for i := range snapshot {
		if err := fn(&snapshot[i]); err != nil {
			return err
		}
	}
	return nil
}

// Len reports how many commands have been committed to the log.
func (l *InMemoryLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cmds)
}
