package sync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"example.com/sntp/core/client"
	"example.com/sntp/core/sync"
	"example.com/sntp/core/timebase"
	"example.com/sntp/net/sntp"
	"example.com/sntp/net/udp"
)

type manualClock struct{}

func (c *manualClock) Millis() int64 { return 0 }

type scriptedExchanger struct {
	results []client.Result
	calls   []time.Time
	cancel  context.CancelFunc
}

func (e *scriptedExchanger) Exchange(ctx context.Context, log *zap.Logger,
	addr string, opts udp.Options) (client.Result, error) {
	e.calls = append(e.calls, time.Now())
	i := len(e.calls) - 1
	if i == len(e.results)-1 {
		e.cancel()
	}
	return e.results[i], nil
}

func TestNextBackoff(t *testing.T) {
	cfg := sync.Config{
		Interval:      time.Second,
		KoDBackoff:    10 * time.Second,
		MaxKoDBackoff: 35 * time.Second,
	}
	kod := client.Result{Err: sntp.ErrKissOfDeath}
	ok := client.Result{Time: 1_700_000_000_000}
	timeout := client.Result{TimedOut: true}

	tests := []struct {
		name string
		res  client.Result
		cur  time.Duration
		want time.Duration
	}{
		{"First kiss of death", kod, 0, 10 * time.Second},
		{"Second kiss of death doubles", kod, 10 * time.Second, 20 * time.Second},
		{"Backoff is capped", kod, 20 * time.Second, 35 * time.Second},
		{"Success resets", ok, 35 * time.Second, 0},
		{"Timeout keeps", timeout, 20 * time.Second, 20 * time.Second},
		{"Other errors keep", client.Result{Err: sntp.ErrCorruptPacket}, 0, 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := sync.NextBackoff(test.res, test.cur, cfg)
			if got != test.want {
				t.Errorf("NextBackoff = %v; expected %v", got, test.want)
			}
		})
	}
}

func TestRunPeriodicSyncBacksOff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := &scriptedExchanger{
		results: []client.Result{
			{Time: 1_700_000_000_000},
			{Err: sntp.ErrKissOfDeath, KissCode: "RATE"},
			{Time: 1_700_000_000_100},
		},
		cancel: cancel,
	}
	cfg := sync.Config{
		Interval:      time.Millisecond,
		KoDBackoff:    50 * time.Millisecond,
		MaxKoDBackoff: time.Second,
	}
	clk := timebase.NewClock(&manualClock{})
	err := sync.RunPeriodicSync(ctx, zap.NewNop(), clk, e, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunPeriodicSync = %v; expected %v", err, context.Canceled)
	}
	if len(e.calls) != 3 {
		t.Fatalf("number of exchanges = %d; expected 3", len(e.calls))
	}
	if d := e.calls[2].Sub(e.calls[1]); d < 50*time.Millisecond {
		t.Errorf("exchange after kiss of death started after %v; expected at least 50ms", d)
	}
}
