package tracker

import (
	"fmt"
	"sync"
)

// Countdown shows the time left until the next refresh. It is reset on every
// refresh and stops at zero.
type Countdown struct {
	mu        sync.Mutex
	total     int
	remaining int
}

func NewCountdown(seconds int) *Countdown {
	return &Countdown{total: seconds, remaining: seconds}
}

// Reset restarts the countdown from its full duration.
func (c *Countdown) Reset() {
	c.mu.Lock()
	c.remaining = c.total
	c.mu.Unlock()
}

// Set moves the countdown to the given number of seconds, clamped to its
// full duration.
func (c *Countdown) Set(remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case remaining < 0:
		c.remaining = 0
	case remaining > c.total:
		c.remaining = c.total
	default:
		c.remaining = remaining
	}
}

// Tick removes one second. It reports false once the countdown had already
// reached zero, so callers can skip pushing an unchanged value.
func (c *Countdown) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining == 0 {
		return false
	}
	c.remaining--
	return true
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// String formats the remaining time as MM:SS.
func (c *Countdown) String() string {
	r := c.Remaining()
	return fmt.Sprintf("%02d:%02d", r/60, r%60)
}
