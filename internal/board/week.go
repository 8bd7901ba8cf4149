package board

import (
	"errors"
	"fmt"
	"time"

	"hemo-board/internal/model"
	"hemo-board/internal/store"
)

// ErrOutsideWindow is returned when a day move targets a card whose day is
// not one of the board's five days.
var ErrOutsideWindow = errors.New("card is outside the displayed week")

// WeekStart returns the Monday (00:00 UTC) of the calendar week containing t,
// using t's own calendar date.
func WeekStart(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7 // 0=Mon..6=Sun
	return d.AddDate(0, 0, -offset)
}

// ParseWeek parses a YYYY-MM-DD date and returns the Monday of its week. An
// empty string means the current week.
func ParseWeek(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return WeekStart(now), nil
	}
	d, err := time.Parse(model.DayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid week %q: want YYYY-MM-DD", s)
	}
	return WeekStart(d), nil
}

// Days returns the day keys of the five-day window starting at start.
func Days(start time.Time) []string {
	out := make([]string, store.WindowDays)
	for i := range out {
		out[i] = start.AddDate(0, 0, i).Format(model.DayLayout)
	}
	return out
}

// ShiftDay moves day by delta positions inside days, wrapping at both ends.
func ShiftDay(days []string, day string, delta int) (string, error) {
	idx := -1
	for i, d := range days {
		if d == day {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", fmt.Errorf("%w: %s", ErrOutsideWindow, day)
	}
	n := len(days)
	return days[((idx+delta)%n+n)%n], nil
}

// ShiftRow moves row by delta positions. ok is false when the result would
// fall off either end; rows do not wrap.
func ShiftRow(row model.Row, delta int) (model.Row, bool) {
	idx := model.RowIndex(row)
	if idx < 0 {
		return row, false
	}
	next := idx + delta
	if next < 0 || next >= len(model.Rows) {
		return row, false
	}
	return model.Rows[next], true
}
