package util

import "time"

// Clock returns the current time. Stores and services accept one so tests can pin time.
type Clock func() time.Time

// NowUTC is the default Clock.
func NowUTC() time.Time {
	return time.Now().UTC()
}
