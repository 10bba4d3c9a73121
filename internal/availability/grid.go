package availability

import (
	"fmt"
	"time"
)

// Grid describes the candidate slots offered to the booking desk: every Step
// from Start up to and including End.
type Grid struct {
	Start TimeOfDay
	End   TimeOfDay
	Step  time.Duration
}

const (
	DefaultGridStart = "08:00"
	DefaultGridEnd   = "17:30"
	DefaultGridStep  = 30 * time.Minute
)

// DefaultGrid is 08:00 through 17:30 every half hour.
func DefaultGrid() Grid {
	return Grid{Start: 8 * 60, End: 17*60 + 30, Step: DefaultGridStep}
}

// NewGrid builds a grid from HH:MM[:SS] bounds and a step.
func NewGrid(start, end string, step time.Duration) (Grid, error) {
	s, err := ParseStorage(start)
	if err != nil {
		return Grid{}, fmt.Errorf("grid start: %w", err)
	}
	e, err := ParseStorage(end)
	if err != nil {
		return Grid{}, fmt.Errorf("grid end: %w", err)
	}
	g := Grid{Start: s, End: e, Step: step}
	if err := g.Validate(); err != nil {
		return Grid{}, err
	}
	return g, nil
}

func (g Grid) Validate() error {
	if g.Step < time.Minute || g.Step%time.Minute != 0 {
		return fmt.Errorf("grid step must be a whole number of minutes, got %s", g.Step)
	}
	if g.Step > minutesPerDay*time.Minute {
		return fmt.Errorf("grid step must not exceed one day, got %s", g.Step)
	}
	if g.Start > g.End {
		return fmt.Errorf("grid start %s is after end %s", g.Start.HHMM(), g.End.HHMM())
	}
	return nil
}

// Slots lists the grid points in chronological order. An invalid grid
// yields nil.
func (g Grid) Slots() []TimeOfDay {
	if g.Validate() != nil {
		return nil
	}
	step := TimeOfDay(g.Step / time.Minute)
	slots := make([]TimeOfDay, 0, int((g.End-g.Start)/step)+1)
	for t := g.Start; t <= g.End; t += step {
		slots = append(slots, t)
	}
	return slots
}
