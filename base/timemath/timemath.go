package timemath

import (
	"slices"
	"time"
)

// Midpoint of two millisecond values, truncated toward x.
func Midpoint(x, y int64) int64 {
	return x + (y-x)/2
}

// Median of millisecond values. ms is reordered.
func Median(ms []int64) int64 {
	n := len(ms)
	if n == 0 {
		panic("unexpected number of values")
	}
	slices.Sort(ms)
	i := n / 2
	if n%2 != 0 {
		return ms[i]
	}
	return Midpoint(ms[i-1], ms[i])
}

func Clamp(d, lo, hi time.Duration) time.Duration {
	if lo > hi {
		panic("unexpected bounds")
	}
	switch {
	case d < lo:
		return lo
	case d > hi:
		return hi
	default:
		return d
	}
}
