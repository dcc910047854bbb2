package checkin

import "time"

// Clock supplies the current instant. Tests pin it with FixedClock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock reads the system clock.
var RealClock Clock = realClock{}

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// civilDate truncates t to its calendar date in loc, returned as UTC midnight
// so that subtracting two civil dates always yields whole days.
func civilDate(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateLayout is the format written to the roster.
const DateLayout = "2006-01-02"
