// Package bizhours computes durations in business time: elapsed working
// hours between two instants, and the inverse operation of advancing an
// instant by a working-hours budget. Every SLA threshold in the tracker is
// expressed through this clock, so it has no dependency on any other
// package and is testable in isolation.
package bizhours

import (
	"fmt"
	"time"
)

// Calendar defines the working window used for business-time arithmetic.
// It is immutable after construction.
type Calendar struct {
	// StartHour is the first working hour of the day (inclusive), e.g. 9.
	StartHour int

	// EndHour is the hour the working day ends (exclusive), e.g. 17.
	EndHour int

	// Weekend marks weekdays that never count as working time.
	Weekend map[time.Weekday]bool

	// Holidays is a set of non-working dates formatted as "2006-01-02"
	// in the calendar's location.
	Holidays map[string]bool

	// Location anchors day boundaries. Defaults to time.Local when nil.
	Location *time.Location
}

// NewCalendar returns a Mon-Fri calendar with the given working window.
func NewCalendar(startHour, endHour int, loc *time.Location) Calendar {
	return Calendar{
		StartHour: startHour,
		EndHour:   endHour,
		Weekend: map[time.Weekday]bool{
			time.Saturday: true,
			time.Sunday:   true,
		},
		Holidays: map[string]bool{},
		Location: loc,
	}
}

// Validate checks the calendar for configurations that would make every
// duration computation degenerate. Called eagerly at startup; a calendar
// that fails validation must never reach the tracker.
func (c Calendar) Validate() error {
	if c.StartHour < 0 || c.StartHour > 23 {
		return fmt.Errorf("start hour out of range: %d", c.StartHour)
	}
	if c.EndHour < 1 || c.EndHour > 24 {
		return fmt.Errorf("end hour out of range: %d", c.EndHour)
	}
	if c.StartHour >= c.EndHour {
		return fmt.Errorf("empty working window: start %d >= end %d", c.StartHour, c.EndHour)
	}
	if len(c.Weekend) >= 7 {
		return fmt.Errorf("all weekdays marked non-working")
	}
	return nil
}

func (c Calendar) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.Local
}

// workingDay reports whether the date containing t counts as working time.
func (c Calendar) workingDay(t time.Time) bool {
	if c.Weekend[t.Weekday()] {
		return false
	}
	return !c.Holidays[t.Format("2006-01-02")]
}

// window returns the working window for the day containing t.
func (c Calendar) window(t time.Time) (open, close time.Time) {
	y, m, d := t.Date()
	loc := c.location()
	open = time.Date(y, m, d, c.StartHour, 0, 0, 0, loc)
	close = time.Date(y, m, d, c.EndHour, 0, 0, 0, loc)
	return open, close
}

// nextDay returns midnight of the day after t.
func nextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// Elapsed returns the business duration between start and end. It walks
// day by day, summing the overlap between each working day's window and
// the portion of [start, end] on that day. Non-working days and hours
// contribute zero. Returns 0 when end is not after start.
func (c Calendar) Elapsed(start, end time.Time) time.Duration {
	loc := c.location()
	start = start.In(loc)
	end = end.In(loc)
	if !end.After(start) {
		return 0
	}

	var total time.Duration
	for cur := start; cur.Before(end); cur = nextDay(cur) {
		if !c.workingDay(cur) {
			continue
		}
		open, close := c.window(cur)
		lo := cur
		if lo.Before(open) {
			lo = open
		}
		hi := end
		if hi.After(close) {
			hi = close
		}
		if hi.After(lo) {
			total += hi.Sub(lo)
		}
	}
	return total
}

// Advance returns the instant at which d business hours will have elapsed
// since start, such that Elapsed(start, Advance(start, d)) == d. A start
// outside working hours is first snapped forward to the next working
// instant, which contributes zero elapsed time.
func (c Calendar) Advance(start time.Time, d time.Duration) time.Time {
	cur := c.snapForward(start.In(c.location()))
	if d <= 0 {
		return cur
	}

	for {
		_, close := c.window(cur)
		avail := close.Sub(cur)
		if d <= avail {
			return cur.Add(d)
		}
		d -= avail
		cur = c.snapForward(nextDay(cur))
	}
}

// Contains reports whether t falls inside the working window.
func (c Calendar) Contains(t time.Time) bool {
	t = t.In(c.location())
	if !c.workingDay(t) {
		return false
	}
	open, close := c.window(t)
	return !t.Before(open) && t.Before(close)
}

// snapForward moves t to the nearest working instant at or after it.
func (c Calendar) snapForward(t time.Time) time.Time {
	for {
		if c.workingDay(t) {
			open, close := c.window(t)
			if t.Before(open) {
				return open
			}
			if t.Before(close) {
				return t
			}
		}
		t = nextDay(t)
	}
}
