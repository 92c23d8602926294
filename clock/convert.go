package clock

import (
	"math"
	"time"
)

func secondsFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func durationFromSeconds(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

func float64FromBits(bits int64) float64 {
	return math.Float64frombits(uint64(bits))
}

func bitsFromFloat64(f float64) int64 {
	return int64(math.Float64bits(f))
}
