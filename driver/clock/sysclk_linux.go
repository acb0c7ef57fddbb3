//go:build linux

package clock

import (
	"go.uber.org/zap"

	"golang.org/x/sys/unix"

	"example.com/sntp/base/timebase"
	"example.com/sntp/base/zaplog"
)

// SystemClock reads CLOCK_MONOTONIC, i.e. milliseconds since boot, which is
// immune to steps of the system wall clock.
type SystemClock struct {
	Log *zap.Logger
}

var _ timebase.LocalClock = (*SystemClock)(nil)

func (c *SystemClock) Millis() int64 {
	var ts unix.Timespec
	err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts)
	if err != nil {
		log := c.Log
		if log == nil {
			log = zaplog.Logger()
		}
		log.Fatal("unix.ClockGettime failed", zap.Error(err))
	}
	return ts.Nano() / 1e6
}
