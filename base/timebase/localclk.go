package timebase

// LocalClock is a monotonic millisecond counter. Its zero is arbitrary; only
// differences between readings and the offset to true time are meaningful.
type LocalClock interface {
	Millis() int64
}
