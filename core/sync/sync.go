package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go.uber.org/zap"

	"example.com/sntp/base/metrics"
	"example.com/sntp/base/timemath"

	"example.com/sntp/core/client"
	"example.com/sntp/core/config"
	"example.com/sntp/core/timebase"

	"example.com/sntp/net/sntp"
	"example.com/sntp/net/udp"
)

type Exchanger interface {
	Exchange(ctx context.Context, log *zap.Logger, addr string, opts udp.Options) (
		client.Result, error)
}

type Config struct {
	ServerAddr    string
	Options       udp.Options
	Interval      time.Duration
	KoDBackoff    time.Duration
	MaxKoDBackoff time.Duration
}

type syncMetrics struct {
	offset  prometheus.Gauge
	backoff prometheus.Gauge
}

var syncMtrcs atomic.Pointer[syncMetrics]

func init() {
	syncMtrcs.Store(&syncMetrics{
		offset: promauto.NewGauge(prometheus.GaugeOpts{
			Name: metrics.SyncOffsetN,
			Help: metrics.SyncOffsetH,
		}),
		backoff: promauto.NewGauge(prometheus.GaugeOpts{
			Name: metrics.SyncBackoffN,
			Help: metrics.SyncBackoffH,
		}),
	})
}

func (cfg Config) withDefaults() Config {
	if cfg.Interval <= 0 {
		cfg.Interval = config.SyncInterval
	}
	if cfg.KoDBackoff <= 0 {
		cfg.KoDBackoff = config.KoDBackoff
	}
	if cfg.MaxKoDBackoff < cfg.KoDBackoff {
		cfg.MaxKoDBackoff = max(config.MaxKoDBackoff, cfg.KoDBackoff)
	}
	return cfg
}

// NextBackoff returns the backoff to apply after an exchange with result
// res. A kiss of death starts or doubles the backoff, a corrected time
// resets it, anything else keeps it.
func NextBackoff(res client.Result, cur time.Duration, cfg Config) time.Duration {
	cfg = cfg.withDefaults()
	switch {
	case errors.Is(res.Err, sntp.ErrKissOfDeath):
		if cur == 0 {
			return cfg.KoDBackoff
		}
		return timemath.Clamp(2*cur, cfg.KoDBackoff, cfg.MaxKoDBackoff)
	case res.Time > 0:
		return 0
	default:
		return cur
	}
}

// RunPeriodicSync repeats single exchanges with the configured server until
// ctx is done. Each exchange is started by the caller's loop; no exchange
// retries on its own.
func RunPeriodicSync(ctx context.Context, log *zap.Logger, clk *timebase.Clock,
	c Exchanger, cfg Config) error {
	cfg = cfg.withDefaults()
	mtrcs := syncMtrcs.Load()
	var backoff time.Duration
	for {
		res, err := c.Exchange(ctx, log, cfg.ServerAddr, cfg.Options)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		backoff = NextBackoff(res, backoff, cfg)
		mtrcs.offset.Set(float64(clk.Offset()))
		mtrcs.backoff.Set(backoff.Seconds())

		delay := max(cfg.Interval, backoff)
		if errors.Is(res.Err, sntp.ErrKissOfDeath) {
			log.Info("backing off after kiss of death",
				zap.String("code", res.KissCode),
				zap.Duration("delay", delay),
			)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
