package testutil

import "sync"

// DefaultEpoch is the first timestamp handed out by a new clock, in
// milliseconds since the Unix epoch.
const DefaultEpoch int64 = 1_700_000_000_000

// DeterministicClock hands out origin_server_ts values for test events.
//
// Each call to Next advances by one millisecond, so events built in program
// order get strictly increasing timestamps and the same test always produces
// the same values.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	epoch int64
	ticks int64
}

// NewDeterministicClock creates a clock whose first timestamp is DefaultEpoch+1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{epoch: DefaultEpoch}
}

// Next advances the clock and returns the new timestamp.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return c.epoch + c.ticks
}

// Current returns the last timestamp handed out without advancing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch + c.ticks
}

// Reset rewinds the clock to its epoch.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
