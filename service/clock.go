package service

import "time"

// Clock is the time source for unlock-time comparisons. Production code uses
// RealClock; tests inject a fixed clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func RealClock() Clock { return realClock{} }

// unixNow reads the clock once and returns unix seconds, clamped at zero.
func unixNow(c Clock) uint64 {
	t := c.Now().Unix()
	if t < 0 {
		return 0
	}
	return uint64(t)
}
