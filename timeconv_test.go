package linesim

import (
	"math"
	"testing"
)

func TestTimeConversion(t *testing.T) {
	t.Run("Minutes To Day Hour", func(t *testing.T) {
		cases := []struct {
			minutes float64
			hours   int
			day     int
			hour    float64
		}{
			{0, 8, 1, 0},
			{150, 8, 1, 2.5},
			{480, 8, 2, 0},
			{600, 8, 2, 2},
			{60, 1, 2, 0},
		}
		for _, tc := range cases {
			day, hour := MinutesToDayHour(tc.minutes, tc.hours)
			if day != tc.day || math.Abs(hour-tc.hour) > 1e-9 {
				t.Errorf("MinutesToDayHour(%v, %d) = (%d, %v), want (%d, %v)",
					tc.minutes, tc.hours, day, hour, tc.day, tc.hour)
			}
		}
	})

	t.Run("Round Trip", func(t *testing.T) {
		for _, minutes := range []float64{0, 17, 150, 479, 481, 1200} {
			day, hour := MinutesToDayHour(minutes, 8)
			back := DayHourToMinutes(day, hour, 8)
			if math.Abs(back-minutes) > 1e-6 {
				t.Errorf("round trip of %v gave %v", minutes, back)
			}
		}
	})

	t.Run("Formatting", func(t *testing.T) {
		if got := FormatDayHour(150, 8); got != "D1 2.5h" {
			t.Errorf("expected D1 2.5h, got %q", got)
		}
		if got := FormatDuration(45); got != "45m" {
			t.Errorf("expected 45m, got %q", got)
		}
		if got := FormatDuration(150); got != "2.5h" {
			t.Errorf("expected 2.5h, got %q", got)
		}
	})
}
