package bizhours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCal(t *testing.T) Calendar {
	t.Helper()
	cal := NewCalendar(9, 17, time.UTC)
	require.NoError(t, cal.Validate())
	return cal
}

// 2026-09-04 is a Friday.
func friday(hour int) time.Time {
	return time.Date(2026, 9, 4, hour, 0, 0, 0, time.UTC)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Calendar)
		wantErr bool
	}{
		{"valid", func(c *Calendar) {}, false},
		{"empty window", func(c *Calendar) { c.StartHour = 17; c.EndHour = 17 }, true},
		{"inverted window", func(c *Calendar) { c.StartHour = 18; c.EndHour = 9 }, true},
		{"start out of range", func(c *Calendar) { c.StartHour = -1 }, true},
		{"end out of range", func(c *Calendar) { c.EndHour = 25 }, true},
		{"all days off", func(c *Calendar) {
			for d := time.Sunday; d <= time.Saturday; d++ {
				c.Weekend[d] = true
			}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := NewCalendar(9, 17, time.UTC)
			tt.mutate(&cal)
			err := cal.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestElapsed_SameDay(t *testing.T) {
	cal := mustCal(t)
	got := cal.Elapsed(friday(10), friday(14))
	assert.Equal(t, 4*time.Hour, got)
}

func TestElapsed_WeekendExcluded(t *testing.T) {
	cal := mustCal(t)

	// Friday 16:00 to Monday 10:00: one hour Friday plus one hour Monday.
	start := friday(16)
	end := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC) // Monday
	assert.Equal(t, 2*time.Hour, cal.Elapsed(start, end))
}

func TestElapsed_OutsideWorkingHours(t *testing.T) {
	cal := mustCal(t)

	// Entirely overnight: contributes nothing.
	start := friday(18)
	end := time.Date(2026, 9, 5, 8, 0, 0, 0, time.UTC) // Saturday morning
	assert.Equal(t, time.Duration(0), cal.Elapsed(start, end))
}

func TestElapsed_EndBeforeStart(t *testing.T) {
	cal := mustCal(t)
	assert.Equal(t, time.Duration(0), cal.Elapsed(friday(14), friday(10)))
}

func TestElapsed_HolidayExcluded(t *testing.T) {
	cal := mustCal(t)
	cal.Holidays["2026-09-07"] = true // Monday

	// Friday 16:00 to Tuesday 10:00 with Monday off: 1h Friday + 1h Tuesday.
	start := friday(16)
	end := time.Date(2026, 9, 8, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 2*time.Hour, cal.Elapsed(start, end))
}

func TestAdvance_SameDay(t *testing.T) {
	cal := mustCal(t)
	got := cal.Advance(friday(10), 3*time.Hour)
	assert.Equal(t, friday(13), got)
}

func TestAdvance_CrossesWeekend(t *testing.T) {
	cal := mustCal(t)

	// 3 business hours from Friday 16:00: 1h Friday, 2h Monday.
	got := cal.Advance(friday(16), 3*time.Hour)
	want := time.Date(2026, 9, 7, 11, 0, 0, 0, time.UTC)
	assert.Equal(t, want, got)
}

func TestAdvance_StartOutsideWindow(t *testing.T) {
	cal := mustCal(t)

	// Saturday start snaps to Monday 09:00.
	start := time.Date(2026, 9, 5, 12, 0, 0, 0, time.UTC)
	got := cal.Advance(start, 2*time.Hour)
	want := time.Date(2026, 9, 7, 11, 0, 0, 0, time.UTC)
	assert.Equal(t, want, got)
}

func TestRoundTrip(t *testing.T) {
	plain := mustCal(t)
	withHolidays := mustCal(t)
	withHolidays.Holidays["2026-09-07"] = true
	withHolidays.Holidays["2026-09-08"] = true

	starts := []time.Time{
		friday(9),
		friday(13),
		friday(16),
		time.Date(2026, 9, 5, 3, 0, 0, 0, time.UTC),  // Saturday
		time.Date(2026, 9, 4, 20, 0, 0, 0, time.UTC), // after hours
	}
	thresholds := []time.Duration{
		time.Hour,
		8 * time.Hour,
		24 * time.Hour,
		48 * time.Hour,
		168 * time.Hour,
	}

	for _, cal := range []Calendar{plain, withHolidays} {
		for _, start := range starts {
			for _, threshold := range thresholds {
				due := cal.Advance(start, threshold)
				assert.Equal(t, threshold, cal.Elapsed(start, due),
					"start=%v threshold=%v", start, threshold)
			}
		}
	}
}

func TestContains(t *testing.T) {
	cal := mustCal(t)

	assert.True(t, cal.Contains(friday(9)))
	assert.True(t, cal.Contains(friday(16)))
	assert.False(t, cal.Contains(friday(17)))
	assert.False(t, cal.Contains(friday(8)))
	assert.False(t, cal.Contains(time.Date(2026, 9, 5, 12, 0, 0, 0, time.UTC)))

	cal.Holidays["2026-09-04"] = true
	assert.False(t, cal.Contains(friday(12)))
}
