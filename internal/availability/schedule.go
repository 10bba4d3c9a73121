package availability

import (
	"fmt"
	"time"
)

// Weekday is the fixed day identifier stored with schedules.
type Weekday string

const (
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
)

// WeekOrder is the clinic's calendar week, which starts on Saturday.
var WeekOrder = []Weekday{Saturday, Sunday, Monday, Tuesday, Wednesday, Thursday, Friday}

var byGoWeekday = map[time.Weekday]Weekday{
	time.Sunday:    Sunday,
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
}

// WeekdayOf returns the identifier of the calendar day of date, read in
// date's own location.
func WeekdayOf(date time.Time) Weekday {
	return byGoWeekday[date.Weekday()]
}

// ParseWeekday validates a day identifier.
func ParseWeekday(s string) (Weekday, error) {
	for _, d := range WeekOrder {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("invalid day_of_week %q", s)
}

// Index is the position of d in WeekOrder, or -1.
func (d Weekday) Index() int {
	for i, w := range WeekOrder {
		if w == d {
			return i
		}
	}
	return -1
}

// DaySchedule is one weekday's working hours. StartTime and EndTime are
// ignored when IsWorking is false.
type DaySchedule struct {
	DayOfWeek Weekday `json:"day_of_week"`
	IsWorking bool    `json:"is_working"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
}

// WeeklySchedule holds at most one entry per weekday.
type WeeklySchedule []DaySchedule

// Day returns the entry for d.
func (s WeeklySchedule) Day(d Weekday) (DaySchedule, bool) {
	for _, ds := range s {
		if ds.DayOfWeek == d {
			return ds, true
		}
	}
	return DaySchedule{}, false
}

// Window parses the day's hours. It reports false for a non-working day or
// unparseable times.
func (ds DaySchedule) Window() (Window, bool) {
	if !ds.IsWorking {
		return Window{}, false
	}
	start, err := ParseStorage(ds.StartTime)
	if err != nil {
		return Window{}, false
	}
	end, err := ParseStorage(ds.EndTime)
	if err != nil {
		return Window{}, false
	}
	return Window{Start: start, End: end}, true
}

// Validate checks a schedule before it is stored. The resolver itself
// trusts its input and never calls this.
func (s WeeklySchedule) Validate() error {
	seen := make(map[Weekday]bool, len(s))
	for _, ds := range s {
		if _, err := ParseWeekday(string(ds.DayOfWeek)); err != nil {
			return err
		}
		if seen[ds.DayOfWeek] {
			return fmt.Errorf("duplicate day_of_week %q", ds.DayOfWeek)
		}
		seen[ds.DayOfWeek] = true

		if !ds.IsWorking {
			continue
		}
		start, err := ParseStorage(ds.StartTime)
		if err != nil {
			return fmt.Errorf("%s start_time: %w", ds.DayOfWeek, err)
		}
		end, err := ParseStorage(ds.EndTime)
		if err != nil {
			return fmt.Errorf("%s end_time: %w", ds.DayOfWeek, err)
		}
		if start >= end {
			return fmt.Errorf("%s start_time must be before end_time", ds.DayOfWeek)
		}
	}
	return nil
}

// Sorted returns a copy in WeekOrder.
func (s WeeklySchedule) Sorted() WeeklySchedule {
	out := make(WeeklySchedule, 0, len(s))
	for _, d := range WeekOrder {
		if ds, ok := s.Day(d); ok {
			out = append(out, ds)
		}
	}
	return out
}

// Window is a half-open working interval [Start, End).
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Contains reports whether t falls inside the window. A slot starting exactly
// at End is outside.
func (w Window) Contains(t TimeOfDay) bool {
	return w.Start <= t && t < w.End
}
