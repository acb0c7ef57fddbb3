//go:build !linux

package clock

import (
	"time"

	"go.uber.org/zap"

	"example.com/sntp/base/timebase"
)

// SystemClock counts milliseconds since process start using the monotonic
// reading carried by time.Time.
type SystemClock struct {
	Log *zap.Logger
}

var _ timebase.LocalClock = (*SystemClock)(nil)

var start = time.Now()

func (c *SystemClock) Millis() int64 {
	return time.Since(start).Milliseconds()
}
