package doctor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/availability"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/pkg/validate"
)

var validStatuses = map[string]bool{
	StatusActive:   true,
	StatusInactive: true,
	StatusOnLeave:  true,
}

// AvailabilityInvalidator drops cached availability after a schedule change.
type AvailabilityInvalidator interface {
	InvalidateDoctor(ctx context.Context, doctorID uuid.UUID) error
}

type Service struct {
	doctors   DoctorRepository
	schedules ScheduleRepository
	tx        db.Transactor
	cache     AvailabilityInvalidator
	publisher events.Publisher
	logger    zerolog.Logger
}

func NewService(doctors DoctorRepository, schedules ScheduleRepository, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{doctors: doctors, schedules: schedules, tx: tx, logger: logger}
}

// SetInvalidator attaches the availability cache.
func (s *Service) SetInvalidator(inv AvailabilityInvalidator) { s.cache = inv }

// SetPublisher attaches the event publisher for schedule changes.
func (s *Service) SetPublisher(p events.Publisher) { s.publisher = p }

func (s *Service) check(d *Doctor) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Status == "" {
		d.Status = StatusActive
	}
	if err := validate.Struct(d); err != nil {
		return err
	}
	if !validStatuses[d.Status] {
		return validate.Errorf("invalid status: %s", d.Status)
	}
	if d.Schedule != nil {
		if err := d.Schedule.Validate(); err != nil {
			return validate.Errorf("schedule: %v", err)
		}
	}
	return nil
}

// Create stores the doctor and its optional schedule in one transaction. The
// calendar colour is picked from the palette by the current doctor count.
func (s *Service) Create(ctx context.Context, d *Doctor) error {
	if err := s.check(d); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if d.IconColor == "" {
			n, err := s.doctors.Count(ctx)
			if err != nil {
				return fmt.Errorf("count doctors: %w", err)
			}
			d.IconColor = ColorFor(n)
		}
		if err := s.doctors.Create(ctx, d); err != nil {
			return err
		}
		if len(d.Schedule) > 0 {
			if err := s.schedules.Replace(ctx, d.ID, d.Schedule); err != nil {
				return fmt.Errorf("store schedule: %w", err)
			}
			d.Schedule = d.Schedule.Sorted()
		}
		return nil
	})
}

// Get returns the doctor with its schedule.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Schedule, err = s.schedules.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	return d, nil
}

// Update saves the doctor. A non-nil Schedule replaces the stored one.
func (s *Service) Update(ctx context.Context, d *Doctor) error {
	if err := s.check(d); err != nil {
		return err
	}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if d.IconColor == "" {
			existing, err := s.doctors.GetByID(ctx, d.ID)
			if err != nil {
				return err
			}
			d.IconColor = existing.IconColor
		}
		if err := s.doctors.Update(ctx, d); err != nil {
			return err
		}
		if d.Schedule != nil {
			if err := s.schedules.Replace(ctx, d.ID, d.Schedule); err != nil {
				return fmt.Errorf("store schedule: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if d.Schedule != nil {
		d.Schedule = d.Schedule.Sorted()
		s.scheduleChanged(ctx, d.ID, d.Schedule)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.doctors.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}

func (s *Service) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*Doctor, error) {
	return s.doctors.ListActiveByClinic(ctx, clinicID)
}

func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.doctors.CountActive(ctx)
}

// GetSchedule returns the doctor's weekly schedule, in Saturday-first order.
// An unknown doctor is ErrNotFound; a doctor without rows has an empty schedule.
func (s *Service) GetSchedule(ctx context.Context, doctorID uuid.UUID) (availability.WeeklySchedule, error) {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.schedules.Get(ctx, doctorID)
}

// ReplaceSchedule swaps the whole weekly schedule for the doctor.
func (s *Service) ReplaceSchedule(ctx context.Context, doctorID uuid.UUID, schedule availability.WeeklySchedule) (availability.WeeklySchedule, error) {
	if err := schedule.Validate(); err != nil {
		return nil, validate.Errorf("schedule: %v", err)
	}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
			return err
		}
		return s.schedules.Replace(ctx, doctorID, schedule)
	})
	if err != nil {
		return nil, err
	}
	sorted := schedule.Sorted()
	s.scheduleChanged(ctx, doctorID, sorted)
	return sorted, nil
}

type scheduleReplaced struct {
	DoctorID uuid.UUID                   `json:"doctor_id"`
	Schedule availability.WeeklySchedule `json:"schedule"`
}

func (s *Service) scheduleChanged(ctx context.Context, doctorID uuid.UUID, schedule availability.WeeklySchedule) {
	s.invalidate(ctx, doctorID)
	events.Emit(ctx, s.publisher, s.logger, events.ScheduleReplaced, scheduleReplaced{DoctorID: doctorID, Schedule: schedule})
}

func (s *Service) invalidate(ctx context.Context, doctorID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDoctor(ctx, doctorID); err != nil {
		s.logger.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("availability cache invalidation failed")
	}
}
