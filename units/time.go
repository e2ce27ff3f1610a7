package units

import (
	"fmt"
	"time"
)

// Duration is a span of time in milliseconds.
type Duration uint64

// Timestamp is a monotonic instant in microseconds.
type Timestamp uint64

func Millis(ms uint64) Duration {
	return Duration(ms)
}

func DurationFrom(d time.Duration) Duration {
	if d < 0 {
		return 0
	}
	return Duration(d.Milliseconds())
}

func (d Duration) Millis() uint64 {
	return uint64(d)
}

func (d Duration) Std() time.Duration {
	return time.Duration(d) * time.Millisecond
}

func (d Duration) String() string {
	return d.Std().String()
}

func Micros(us uint64) Timestamp {
	return Timestamp(us)
}

func (t Timestamp) Micros() uint64 {
	return uint64(t)
}

func (t Timestamp) Add(d Duration) Timestamp {
	return t + Timestamp(d)*1000
}

// Sub returns the time elapsed since prev. prev must not be later than t:
// timestamps are monotonic, so an underflow means the caller is broken.
func (t Timestamp) Sub(prev Timestamp) Duration {
	if prev > t {
		panic(fmt.Sprintf("units: timestamp underflow: %d - %d", t, prev))
	}
	return Duration((t - prev) / 1000)
}
