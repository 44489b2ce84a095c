package question

import "time"

// SetNow freezes the clock used by the service; the returned func restores it.
func SetNow(now time.Time) func() {
	orig := nowFunc
	nowFunc = func() time.Time { return now }
	return func() { nowFunc = orig }
}
