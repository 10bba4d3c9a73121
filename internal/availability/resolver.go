package availability

import (
	"fmt"
	"time"
)

// NoSchedulePolicy decides whether a doctor with no configured schedule can
// be booked on any day.
type NoSchedulePolicy string

const (
	NoScheduleBookable NoSchedulePolicy = "bookable"
	NoScheduleBlocked  NoSchedulePolicy = "blocked"
)

// ParseNoSchedulePolicy validates a policy value. Empty means bookable.
func ParseNoSchedulePolicy(s string) (NoSchedulePolicy, error) {
	switch NoSchedulePolicy(s) {
	case "", NoScheduleBookable:
		return NoScheduleBookable, nil
	case NoScheduleBlocked:
		return NoScheduleBlocked, nil
	}
	return "", fmt.Errorf("invalid no-schedule policy %q (want bookable or blocked)", s)
}

// BookedSet holds the times already reserved for one doctor on one date.
type BookedSet map[TimeOfDay]struct{}

// ParseBookedSet builds a set from HH:MM[:SS] strings.
func ParseBookedSet(times []string) (BookedSet, error) {
	set := make(BookedSet, len(times))
	for _, s := range times {
		t, err := ParseStorage(s)
		if err != nil {
			return nil, fmt.Errorf("booked time: %w", err)
		}
		set[t] = struct{}{}
	}
	return set, nil
}

func (b BookedSet) Has(t TimeOfDay) bool {
	_, ok := b[t]
	return ok
}

// Slot is one candidate start time on the grid.
type Slot struct {
	Display  string `json:"display"`
	Time     string `json:"time"`
	IsBooked bool   `json:"is_booked"`
}

// Availability is the resolved view of one doctor on one date.
type Availability struct {
	Date          string `json:"date"`
	IsBookableDay bool   `json:"is_bookable_day"`
	Slots         []Slot `json:"slots"`
}

// Free returns the slots that are not booked.
func (a Availability) Free() []Slot {
	var out []Slot
	for _, s := range a.Slots {
		if !s.IsBooked {
			out = append(out, s)
		}
	}
	return out
}

// WithBooked returns a copy with each slot's booked flag taken from booked.
func (a Availability) WithBooked(booked BookedSet) Availability {
	out := a
	out.Slots = make([]Slot, len(a.Slots))
	for i, s := range a.Slots {
		t, err := ParseStorage(s.Time)
		s.IsBooked = err == nil && booked.Has(t)
		out.Slots[i] = s
	}
	return out
}

// Find looks up the slot starting at t.
func (a Availability) Find(t TimeOfDay) (Slot, bool) {
	for _, s := range a.Slots {
		if s.Time == t.String() {
			return s, true
		}
	}
	return Slot{}, false
}

// Options configures a Resolver. Zero values fall back to the defaults.
type Options struct {
	Grid       Grid
	Markers    Markers
	NoSchedule NoSchedulePolicy
}

// Resolver turns a weekly schedule, a date and a booked set into slots.
type Resolver struct {
	grid       Grid
	markers    Markers
	noSchedule NoSchedulePolicy
}

func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		grid:       opts.Grid,
		markers:    opts.Markers.orDefault(),
		noSchedule: opts.NoSchedule,
	}
	if r.grid.Step == 0 || r.grid.Validate() != nil {
		r.grid = DefaultGrid()
	}
	if r.noSchedule != NoScheduleBlocked {
		r.noSchedule = NoScheduleBookable
	}
	return r
}

func (r *Resolver) Grid() Grid                   { return r.grid }
func (r *Resolver) Markers() Markers             { return r.markers }
func (r *Resolver) NoSchedule() NoSchedulePolicy { return r.noSchedule }

// IsWorkingDay reports whether date is a working day under schedule. With no
// schedule at all the policy decides; with a schedule but no matching entry
// the day is not working.
func (r *Resolver) IsWorkingDay(schedule WeeklySchedule, date time.Time) bool {
	if len(schedule) == 0 {
		return r.noSchedule == NoScheduleBookable
	}
	ds, ok := schedule.Day(WeekdayOf(date))
	if !ok {
		return false
	}
	return ds.IsWorking
}

// WorkingHoursFor returns the working window for date, or false when there is
// no schedule or the day is not a working one.
func (r *Resolver) WorkingHoursFor(schedule WeeklySchedule, date time.Time) (Window, bool) {
	if len(schedule) == 0 {
		return Window{}, false
	}
	ds, ok := schedule.Day(WeekdayOf(date))
	if !ok {
		return Window{}, false
	}
	return ds.Window()
}

// AvailableSlots filters the grid to hours and marks booked slots. Grid order
// is preserved.
func (r *Resolver) AvailableSlots(hours Window, ok bool, booked BookedSet) []Slot {
	slots := []Slot{}
	if !ok {
		return slots
	}
	for _, t := range r.grid.Slots() {
		if !hours.Contains(t) {
			continue
		}
		slots = append(slots, Slot{
			Display:  r.markers.Display(t),
			Time:     t.String(),
			IsBooked: booked.Has(t),
		})
	}
	return slots
}

// Resolve composes the day check, working hours and slot filtering.
func (r *Resolver) Resolve(schedule WeeklySchedule, date time.Time, booked BookedSet) Availability {
	hours, ok := r.WorkingHoursFor(schedule, date)
	return Availability{
		Date:          date.Format("2006-01-02"),
		IsBookableDay: r.IsWorkingDay(schedule, date),
		Slots:         r.AvailableSlots(hours, ok, booked),
	}
}
