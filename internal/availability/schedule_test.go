package availability

import (
	"testing"
	"time"
)

func TestDefaultGrid(t *testing.T) {
	slots := DefaultGrid().Slots()
	if len(slots) != 20 {
		t.Fatalf("expected 20 slots, got %d", len(slots))
	}
	if slots[0].String() != "08:00:00" {
		t.Errorf("expected first slot 08:00:00, got %s", slots[0])
	}
	if slots[19].String() != "17:30:00" {
		t.Errorf("expected last slot 17:30:00, got %s", slots[19])
	}
}

func TestNewGrid_MatchesDefault(t *testing.T) {
	g, err := NewGrid(DefaultGridStart, DefaultGridEnd, DefaultGridStep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g != DefaultGrid() {
		t.Errorf("expected %+v, got %+v", DefaultGrid(), g)
	}
}

func TestNewGrid_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		step       time.Duration
	}{
		{"bad start", "8am", "17:00", 30 * time.Minute},
		{"bad end", "08:00", "25:00", 30 * time.Minute},
		{"zero step", "08:00", "17:00", 0},
		{"sub-minute step", "08:00", "17:00", 30 * time.Second},
		{"fractional step", "08:00", "17:00", 90 * time.Second},
		{"start after end", "17:00", "08:00", 30 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGrid(tt.start, tt.end, tt.step); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGrid_StepNotDividingRange(t *testing.T) {
	g, err := NewGrid("08:00", "09:00", 25*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	slots := g.Slots()
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots (08:00, 08:25, 08:50), got %d", len(slots))
	}
	if slots[2].HHMM() != "08:50" {
		t.Errorf("expected 08:50, got %s", slots[2].HHMM())
	}
}

func TestGrid_SinglePoint(t *testing.T) {
	g, err := NewGrid("09:00", "09:00", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(g.Slots()); n != 1 {
		t.Errorf("expected 1 slot, got %d", n)
	}
}

func TestWeeklySchedule_Validate(t *testing.T) {
	if err := wednesdaySchedule().Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		s    WeeklySchedule
	}{
		{"unknown day", WeeklySchedule{{DayOfWeek: "funday"}}},
		{"duplicate day", WeeklySchedule{{DayOfWeek: Monday}, {DayOfWeek: Monday}}},
		{"bad start", WeeklySchedule{{DayOfWeek: Monday, IsWorking: true, StartTime: "x", EndTime: "12:00"}}},
		{"bad end", WeeklySchedule{{DayOfWeek: Monday, IsWorking: true, StartTime: "08:00", EndTime: ""}}},
		{"start equals end", WeeklySchedule{{DayOfWeek: Monday, IsWorking: true, StartTime: "08:00", EndTime: "08:00"}}},
		{"start after end", WeeklySchedule{{DayOfWeek: Monday, IsWorking: true, StartTime: "16:00", EndTime: "08:00"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.s.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestWeeklySchedule_ValidateIgnoresTimesOnDayOff(t *testing.T) {
	s := WeeklySchedule{{DayOfWeek: Friday, IsWorking: false, StartTime: "junk", EndTime: ""}}
	if err := s.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWeeklySchedule_Sorted(t *testing.T) {
	s := WeeklySchedule{
		{DayOfWeek: Friday},
		{DayOfWeek: Saturday},
		{DayOfWeek: Wednesday},
	}
	got := s.Sorted()
	want := []Weekday{Saturday, Wednesday, Friday}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].DayOfWeek != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i].DayOfWeek)
		}
	}
}

func TestParseWeekday(t *testing.T) {
	if d, err := ParseWeekday("thursday"); err != nil || d != Thursday {
		t.Errorf("expected thursday, got %q %v", d, err)
	}
	if _, err := ParseWeekday("Thursday"); err == nil {
		t.Error("expected identifiers to be case-sensitive")
	}
}
