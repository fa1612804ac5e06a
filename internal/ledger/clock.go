package ledger

import (
	"sync"
	"time"
)

// CommandClock is the single time source for every service. While a command
// is being applied it returns the command's SubmittedAt, which is what makes
// apply deterministic and the log replayable; outside an apply it returns
// wall-clock time so read-path expiry and staleness stay live.
type CommandClock struct {
	mu      sync.RWMutex
	applied time.Time
	inApply bool
}

func NewCommandClock() *CommandClock {
	return &CommandClock{}
}

// Now is handed to services as their Clock.
func (c *CommandClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.inApply {
		return c.applied
	}
	return time.Now()
}

func (c *CommandClock) enter(t time.Time) {
	c.mu.Lock()
	c.applied = t
	c.inApply = true
	c.mu.Unlock()
}

func (c *CommandClock) exit() {
	c.mu.Lock()
	c.inApply = false
	c.mu.Unlock()
}
