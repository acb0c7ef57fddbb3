package benchmark

import (
	"context"
	"io"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"go.uber.org/zap"

	"example.com/sntp/base/timemath"

	"example.com/sntp/core/client"

	"example.com/sntp/net/udp"
)

const maxRoundTripDelay = 60_000 // ms

type Summary struct {
	Exchanges int
	Succeeded int
	TimedOut  int
	Rejected  int
	// MedianOffset is the median clock offset in milliseconds over all
	// successful exchanges.
	MedianOffset int64
	Histo        *hdrhistogram.Histogram
}

// Run performs n sequential exchanges with the server at addr and records
// the round trip delay of each successful one.
func Run(ctx context.Context, log *zap.Logger, c *client.Client, addr string,
	opts udp.Options, n int) (Summary, error) {
	s := Summary{
		Histo: hdrhistogram.New(1, maxRoundTripDelay, 3),
	}
	var offsets []int64
	t0 := time.Now()
	for range n {
		res, err := c.Exchange(ctx, log, addr, opts)
		if err != nil {
			return s, err
		}
		s.Exchanges++
		switch {
		case res.Time > 0:
			s.Succeeded++
			offsets = append(offsets, res.Offset)
			rtd := min(max(res.RoundTripDelay, 0), maxRoundTripDelay)
			err = s.Histo.RecordValue(rtd)
			if err != nil {
				log.Info("failed to record histogram value", zap.Int64("value", rtd), zap.Error(err))
			}
		case res.TimedOut:
			s.TimedOut++
		default:
			s.Rejected++
		}
	}
	if len(offsets) != 0 {
		s.MedianOffset = timemath.Median(offsets)
	}
	log.Info("benchmark done",
		zap.Int("exchanges", s.Exchanges),
		zap.Int("succeeded", s.Succeeded),
		zap.Duration("duration", time.Since(t0)),
	)
	return s, nil
}

func (s Summary) Print(w io.Writer) {
	_, _ = s.Histo.PercentilesPrint(w, 1, 1.0)
}
