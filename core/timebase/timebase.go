package timebase

import (
	"sync/atomic"
	"time"

	"example.com/sntp/base/timebase"
)

// Clock combines a local monotonic clock with the offset learned from the
// last successful SNTP exchange. A single writer updates the offset; readers
// on any goroutine see either the old or the new value.
type Clock struct {
	lclk   timebase.LocalClock
	offset atomic.Int64
}

func NewClock(c timebase.LocalClock) *Clock {
	if c == nil {
		panic("local clock must not be nil")
	}
	return &Clock{lclk: c}
}

// Millis returns the raw local clock reading.
func (c *Clock) Millis() int64 {
	return c.lclk.Millis()
}

// Offset returns the current correction in milliseconds.
func (c *Clock) Offset() int64 {
	return c.offset.Load()
}

// SetTime records that the true time at local reading localMillis was
// epochMillis.
func (c *Clock) SetTime(epochMillis, localMillis int64) {
	c.offset.Store(epochMillis - localMillis)
}

// Now returns milliseconds since the Unix epoch. Before the first successful
// exchange it degrades to the local clock reading.
func (c *Clock) Now() int64 {
	return c.lclk.Millis() + c.offset.Load()
}

func (c *Clock) Time() time.Time {
	return time.UnixMilli(c.Now()).UTC()
}
