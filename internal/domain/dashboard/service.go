package dashboard

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/settings"
)

// UpcomingLimit caps the upcoming list.
const UpcomingLimit = 10

// RulesSource provides the clinic timezone and time markers.
type RulesSource interface {
	Rules(ctx context.Context) (settings.BookingRules, error)
}

type Service struct {
	repo   Repository
	rules  RulesSource
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, rules RulesSource, logger zerolog.Logger) *Service {
	return &Service{repo: repo, rules: rules, logger: logger, now: time.Now}
}

// Stats computes the overview for today.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	rules, err := s.rules.Rules(ctx)
	if err != nil {
		return nil, err
	}
	loc := rules.Location
	if loc == nil {
		loc = time.UTC
	}
	now := s.now().In(loc)
	today := now.Format("2006-01-02")
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	monthEnd := monthStart.AddDate(0, 1, -1)

	st := &Stats{Date: today, Upcoming: []Upcoming{}}
	if st.TotalPatients, err = s.repo.CountPatients(ctx); err != nil {
		return nil, fmt.Errorf("count patients: %w", err)
	}
	if st.TodayAppointments, err = s.repo.CountAppointments(ctx, today); err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}
	if st.ActiveDoctors, err = s.repo.CountActiveDoctors(ctx); err != nil {
		return nil, fmt.Errorf("count doctors: %w", err)
	}
	completed, noShow, err := s.repo.Attendance(ctx, monthStart.Format("2006-01-02"), monthEnd.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("attendance: %w", err)
	}
	st.AttendanceRate = attendanceRate(completed, noShow)

	upcoming, err := s.repo.Upcoming(ctx, today, now.Format("15:04:00"), UpcomingLimit)
	if err != nil {
		return nil, fmt.Errorf("upcoming appointments: %w", err)
	}
	for _, u := range upcoming {
		if display, err := rules.Options.Markers.ToDisplay(u.Time); err == nil {
			u.DisplayTime = display
		}
		st.Upcoming = append(st.Upcoming, u)
	}
	return st, nil
}

// attendanceRate is completed / (completed + no-show) as a percentage with
// one decimal. With nothing attended or missed it is 0.
func attendanceRate(completed, noShow int) float64 {
	total := completed + noShow
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)*1000/float64(total)) / 10
}
