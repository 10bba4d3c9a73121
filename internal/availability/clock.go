// Package availability resolves bookable appointment slots for a doctor on a
// given date from a weekly working-hours schedule and the times already
// booked. Everything in this package is pure and safe for concurrent use.
package availability

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnparseableTime is returned when a storage or display time string does
// not match the expected format.
var ErrUnparseableTime = errors.New("unparseable time")

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

const minutesPerDay = 24 * 60

// NewTimeOfDay builds a TimeOfDay from an hour (0-23) and minute (0-59).
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %02d:%02d out of range", ErrUnparseableTime, hour, minute)
	}
	return TimeOfDay(hour*60 + minute), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// String renders the storage format HH:MM:SS. Seconds are always zero.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:00", t.Hour(), t.Minute())
}

// HHMM renders the short form used in settings payloads.
func (t TimeOfDay) HHMM() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// ParseStorage parses "HH:MM" or "HH:MM:SS" in 24-hour form. Seconds, when
// present, must be a valid two-digit value and are otherwise discarded.
func ParseStorage(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrUnparseableTime, s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		if len(p) != 2 || !isDigit(p[0]) || !isDigit(p[1]) {
			return 0, fmt.Errorf("%w: %q", ErrUnparseableTime, s)
		}
		nums[i] = int(p[0]-'0')*10 + int(p[1]-'0')
	}
	if len(nums) == 3 && (nums[2] < 0 || nums[2] > 59) {
		return 0, fmt.Errorf("%w: %q", ErrUnparseableTime, s)
	}
	t, err := NewTimeOfDay(nums[0], nums[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnparseableTime, s)
	}
	return t, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// Markers are the locale glyphs appended to 12-hour display times.
type Markers struct {
	AM string
	PM string
}

// DefaultMarkers are the Arabic morning/evening markers.
var DefaultMarkers = Markers{AM: "ص", PM: "م"}

func (m Markers) orDefault() Markers {
	if m.AM == "" || m.PM == "" || m.AM == m.PM {
		return DefaultMarkers
	}
	return m
}

func (m Markers) pattern() *regexp.Regexp {
	return regexp.MustCompile(`^(\d{2}):(\d{2})\s*(` + regexp.QuoteMeta(m.AM) + `|` + regexp.QuoteMeta(m.PM) + `)$`)
}

// Display renders t as "HH:MM <marker>" in 12-hour form. Midnight renders as
// 12 with the AM marker, noon as 12 with the PM marker.
func (m Markers) Display(t TimeOfDay) string {
	m = m.orDefault()
	hour := t.Hour()
	marker := m.AM
	if hour >= 12 {
		marker = m.PM
	}
	display := hour
	switch {
	case hour == 0:
		display = 12
	case hour > 12:
		display = hour - 12
	}
	return fmt.Sprintf("%02d:%02d %s", display, t.Minute(), marker)
}

// ParseDisplay is the inverse of Display. The hour must be 1-12.
func (m Markers) ParseDisplay(s string) (TimeOfDay, error) {
	m = m.orDefault()
	match := m.pattern().FindStringSubmatch(strings.TrimSpace(s))
	if match == nil {
		return 0, fmt.Errorf("%w: %q", ErrUnparseableTime, s)
	}
	hour, _ := strconv.Atoi(match[1])
	minute, _ := strconv.Atoi(match[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrUnparseableTime, s)
	}

	switch {
	case match[3] == m.PM && hour != 12:
		hour += 12
	case match[3] == m.AM && hour == 12:
		hour = 0
	}
	return NewTimeOfDay(hour, minute)
}

// ToStorage converts a display string to HH:MM:SS.
func (m Markers) ToStorage(display string) (string, error) {
	t, err := m.ParseDisplay(display)
	if err != nil {
		return "", err
	}
	return t.String(), nil
}

// ToDisplay converts an HH:MM[:SS] string to its display form.
func (m Markers) ToDisplay(storage string) (string, error) {
	t, err := ParseStorage(storage)
	if err != nil {
		return "", err
	}
	return m.Display(t), nil
}
