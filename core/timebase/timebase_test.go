package timebase_test

import (
	"sync"
	"testing"

	"example.com/sntp/core/timebase"
)

type manualClock struct {
	ms int64
}

func (c *manualClock) Millis() int64 { return c.ms }

func TestNowBeforeSync(t *testing.T) {
	lclk := &manualClock{ms: 1234}
	clk := timebase.NewClock(lclk)
	if clk.Now() != 1234 {
		t.Errorf("Now() = %d; expected 1234", clk.Now())
	}
	if clk.Offset() != 0 {
		t.Errorf("Offset() = %d; expected 0", clk.Offset())
	}
}

func TestNowAfterSync(t *testing.T) {
	lclk := &manualClock{ms: 2000}
	clk := timebase.NewClock(lclk)
	clk.SetTime(1_700_000_000_000, 2000)
	if clk.Now() != 1_700_000_000_000 {
		t.Errorf("Now() = %d; expected 1700000000000", clk.Now())
	}
	lclk.ms += 15
	if clk.Now() != 1_700_000_000_015 {
		t.Errorf("Now() = %d; expected 1700000000015", clk.Now())
	}
	if clk.Time().UnixMilli() != 1_700_000_000_015 {
		t.Errorf("Time() = %v; expected 1700000000015 ms", clk.Time())
	}
}

func TestNewClockPanicsOnNil(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("NewClock(nil) did not panic")
		}
	}()
	timebase.NewClock(nil)
}

func TestConcurrentReaders(t *testing.T) {
	lclk := &manualClock{ms: 0}
	clk := timebase.NewClock(lclk)
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				off := clk.Offset()
				if off != 0 && off != 42 {
					t.Errorf("Offset() = %d; expected 0 or 42", off)
					return
				}
			}
		}()
	}
	clk.SetTime(42, 0)
	wg.Wait()
}
