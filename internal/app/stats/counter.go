/*
Package stats collects the numbers shown by the admin reporting endpoints.

This file defines Counter, the counting room observer. It only touches atomics, so it is
safe to call from inside the room's critical sections.
*/
package stats

import (
	"sync/atomic"
	"time"

	"relaychat/internal/app/chat"
)

// Counter counts room events since it was created.
type Counter struct {
	// joins is the number of successful joins.
	joins atomic.Int64

	// leaves is the number of completed leaves.
	leaves atomic.Int64

	// messages counts every broadcast line, system notices included.
	messages atomic.Int64

	// userMessages counts broadcasts from joined users only.
	userMessages atomic.Int64

	// started is the creation time, used for uptime.
	started time.Time
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Joins        int64
	Leaves       int64
	Messages     int64
	UserMessages int64
	Uptime       time.Duration
}

var _ chat.Observer = (*Counter)(nil)

// NewCounter returns a zeroed Counter.
func NewCounter() *Counter {
	return &Counter{started: time.Now()}
}

func (c *Counter) OnUserJoined(string) {
	c.joins.Add(1)
}

func (c *Counter) OnUserLeft(string) {
	c.leaves.Add(1)
}

func (c *Counter) OnMessageSent(sender, _ string) {
	c.messages.Add(1)
	if sender != chat.SystemSender {
		c.userMessages.Add(1)
	}
}

// Snapshot reads every counter. The values are individually, not jointly, consistent.
func (c *Counter) Snapshot() Snapshot {
	return Snapshot{
		Joins:        c.joins.Load(),
		Leaves:       c.leaves.Load(),
		Messages:     c.messages.Load(),
		UserMessages: c.userMessages.Load(),
		Uptime:       time.Since(c.started),
	}
}
