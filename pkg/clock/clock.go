package clock

import "time"

// Clock provides the current time. All billingkit components take a Clock
// instead of calling time.Now directly so that tests can control time
// (fast-forward through phase transitions, overdue re-evaluations, etc).
type Clock interface {
	Now() time.Time
}

// System returns a Clock backed by the wall clock, always in UTC.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
