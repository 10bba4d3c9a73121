package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/availability"
	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/domain/settings"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/events"
)

// Booking rejections. Handlers map them to 409 and 422.
var (
	ErrSlotTaken       = errors.New("the selected time is already booked")
	ErrNonWorkingDay   = errors.New("the doctor does not work on this day")
	ErrOutsideHours    = errors.New("the selected time is outside the doctor's working hours")
	ErrPastDate        = errors.New("appointments cannot be booked in the past")
	ErrSameDayDisabled = errors.New("same-day booking is disabled")
	ErrNoticeTooShort  = errors.New("the appointment does not meet the minimum notice period")
)

var (
	ErrDoctorNotFound = errors.New("doctor not found")
	ErrInvalid        = errors.New("invalid appointment")
)

// slotConstraint is the partial unique index guarding live bookings.
const slotConstraint = "uq_appointments_doctor_slot"

var validTypes = map[string]bool{
	TypeGeneral:      true,
	TypeFollowup:     true,
	TypeConsultation: true,
	TypeEmergency:    true,
}

var validStatuses = map[string]bool{
	StatusScheduled: true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusNoShow:    true,
}

// ScheduleSource loads a doctor's weekly schedule.
type ScheduleSource interface {
	GetSchedule(ctx context.Context, doctorID uuid.UUID) (availability.WeeklySchedule, error)
}

// RulesSource provides the current booking rules.
type RulesSource interface {
	Rules(ctx context.Context) (settings.BookingRules, error)
}

// BookingNotifier is told about new bookings after they are stored.
type BookingNotifier interface {
	BookingConfirmed(ctx context.Context, appointmentID uuid.UUID)
}

type Service struct {
	repo      Repository
	schedules ScheduleSource
	rules     RulesSource
	cache     *AvailabilityCache
	publisher events.Publisher
	notifier  BookingNotifier
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, schedules ScheduleSource, rules RulesSource, cache *AvailabilityCache, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		schedules: schedules,
		rules:     rules,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) SetPublisher(p events.Publisher) { s.publisher = p }

func (s *Service) SetBookingNotifier(n BookingNotifier) { s.notifier = n }

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// -- Availability --

// Availability resolves the doctor's slots for date (YYYY-MM-DD). The
// schedule-derived slots come from the cache when possible; booked flags are
// always read fresh.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, date string) (availability.Availability, error) {
	rules, err := s.rules.Rules(ctx)
	if err != nil {
		return availability.Availability{}, err
	}
	day, err := time.ParseInLocation("2006-01-02", date, rules.Location)
	if err != nil {
		return availability.Availability{}, invalid("date must be YYYY-MM-DD")
	}

	base, ok := s.cache.Get(ctx, doctorID, date)
	if !ok {
		schedule, err := s.schedule(ctx, doctorID)
		if err != nil {
			return availability.Availability{}, err
		}
		base = availability.NewResolver(rules.Options).Resolve(schedule, day, nil)
		s.cache.Set(ctx, doctorID, date, base)
	}

	booked, err := s.bookedSet(ctx, doctorID, date, nil)
	if err != nil {
		return availability.Availability{}, err
	}
	return base.WithBooked(booked), nil
}

// BookedTimes lists the start times already taken for the doctor on date.
func (s *Service) BookedTimes(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, invalid("date must be YYYY-MM-DD")
	}
	times, err := s.repo.BookedTimes(ctx, doctorID, date, nil)
	if err != nil {
		return nil, err
	}
	if times == nil {
		times = []string{}
	}
	return times, nil
}

func (s *Service) schedule(ctx context.Context, doctorID uuid.UUID) (availability.WeeklySchedule, error) {
	schedule, err := s.schedules.GetSchedule(ctx, doctorID)
	if errors.Is(err, doctor.ErrNotFound) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	return schedule, nil
}

func (s *Service) bookedSet(ctx context.Context, doctorID uuid.UUID, date string, exclude *uuid.UUID) (availability.BookedSet, error) {
	times, err := s.repo.BookedTimes(ctx, doctorID, date, exclude)
	if err != nil {
		return nil, fmt.Errorf("load booked times: %w", err)
	}
	return availability.ParseBookedSet(times)
}

// -- Booking --

func (s *Service) checkFields(a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return invalid("patient_id is required")
	}
	if a.DoctorID == uuid.Nil {
		return invalid("doctor_id is required")
	}
	if a.AppointmentDate == "" {
		return invalid("appointment_date is required")
	}
	if a.AppointmentTime == "" {
		return invalid("appointment_time is required")
	}
	if a.AppointmentType == "" {
		a.AppointmentType = TypeGeneral
	}
	if !validTypes[a.AppointmentType] {
		return invalid("invalid appointment_type: %s", a.AppointmentType)
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if !validStatuses[a.Status] {
		return invalid("invalid status: %s", a.Status)
	}
	if a.SendReminder == nil {
		on := true
		a.SendReminder = &on
	}
	a.Reason = strings.TrimSpace(a.Reason)
	return nil
}

// checkSlot applies the booking rules to a's doctor, date and time and
// normalizes AppointmentTime to HH:MM:SS. exclude leaves the appointment's
// own booking out of the taken times.
func (s *Service) checkSlot(ctx context.Context, rules settings.BookingRules, a *Appointment, exclude *uuid.UUID) error {
	loc := rules.Location
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation("2006-01-02", a.AppointmentDate, loc)
	if err != nil {
		return invalid("appointment_date must be YYYY-MM-DD")
	}
	t, err := availability.ParseStorage(a.AppointmentTime)
	if err != nil {
		if t, err = rules.Options.Markers.ParseDisplay(a.AppointmentTime); err != nil {
			return invalid("appointment_time must be HH:MM")
		}
	}
	a.AppointmentTime = t.String()

	now := s.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if day.Before(today) {
		return ErrPastDate
	}
	if day.Equal(today) && !rules.SameDayBooking {
		return ErrSameDayDisabled
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc)
	if start.Before(now) {
		return ErrPastDate
	}
	if rules.MinNotice > 0 && start.Sub(now) < rules.MinNotice {
		return ErrNoticeTooShort
	}

	schedule, err := s.schedule(ctx, a.DoctorID)
	if err != nil {
		return err
	}
	booked, err := s.bookedSet(ctx, a.DoctorID, a.AppointmentDate, exclude)
	if err != nil {
		return err
	}
	resolver := availability.NewResolver(rules.Options)
	av := resolver.Resolve(schedule, day, booked)
	if !av.IsBookableDay {
		return ErrNonWorkingDay
	}
	if len(schedule) == 0 {
		// No hours to check against: the time must still be a grid point.
		if !onGrid(resolver.Grid(), t) {
			return ErrOutsideHours
		}
		if booked.Has(t) {
			return ErrSlotTaken
		}
		return nil
	}
	slot, ok := av.Find(t)
	if !ok {
		return ErrOutsideHours
	}
	if slot.IsBooked {
		return ErrSlotTaken
	}
	return nil
}

func onGrid(g availability.Grid, t availability.TimeOfDay) bool {
	for _, slot := range g.Slots() {
		if slot == t {
			return true
		}
	}
	return false
}

// Create books an appointment after checking it against the doctor's
// availability and the centre's booking rules.
func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if err := s.checkFields(a); err != nil {
		return err
	}
	if a.Status != StatusScheduled {
		return invalid("new appointments must be scheduled")
	}
	rules, err := s.rules.Rules(ctx)
	if err != nil {
		return err
	}
	if err := s.checkSlot(ctx, rules, a, nil); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if db.IsUniqueViolation(err, slotConstraint) {
			return ErrSlotTaken
		}
		return err
	}
	s.refresh(ctx, a, rules)
	s.invalidate(ctx, a.DoctorID, a.AppointmentDate)
	events.Emit(ctx, s.publisher, s.logger, events.AppointmentBooked, a)
	if s.notifier != nil {
		s.notifier.BookingConfirmed(ctx, a.ID)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rules, err := s.rules.Rules(ctx); err == nil {
		decorate(rules, a)
	}
	return a, nil
}

// Update saves a. Moving a scheduled appointment to another doctor, date or
// time, or putting a cancelled one back to scheduled, re-runs the booking
// checks against every other booking. A move resets the reminder bookkeeping.
func (s *Service) Update(ctx context.Context, a *Appointment) error {
	existing, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if err := s.checkFields(a); err != nil {
		return err
	}
	rules, err := s.rules.Rules(ctx)
	if err != nil {
		return err
	}

	moved := a.DoctorID != existing.DoctorID || a.AppointmentDate != existing.AppointmentDate ||
		!sameTime(a.AppointmentTime, existing.AppointmentTime)
	revived := existing.Status == StatusCancelled && a.Status == StatusScheduled
	if (moved && a.Status == StatusScheduled) || revived {
		if err := s.checkSlot(ctx, rules, a, &a.ID); err != nil {
			return err
		}
	} else if t, err := availability.ParseStorage(a.AppointmentTime); err == nil {
		a.AppointmentTime = t.String()
	}

	a.FirstReminderSentAt = existing.FirstReminderSentAt
	a.SecondReminderSentAt = existing.SecondReminderSentAt
	if moved {
		a.FirstReminderSentAt, a.SecondReminderSentAt = nil, nil
	}

	if err := s.repo.Update(ctx, a); err != nil {
		if db.IsUniqueViolation(err, slotConstraint) {
			return ErrSlotTaken
		}
		return err
	}
	s.refresh(ctx, a, rules)
	s.invalidate(ctx, existing.DoctorID, existing.AppointmentDate)
	if moved {
		s.invalidate(ctx, a.DoctorID, a.AppointmentDate)
	}

	eventType := events.AppointmentUpdated
	if a.Status == StatusCancelled && existing.Status != StatusCancelled {
		eventType = events.AppointmentCancelled
	}
	events.Emit(ctx, s.publisher, s.logger, eventType, a)
	return nil
}

// Cancel marks the appointment cancelled, freeing its slot.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.SetStatus(ctx, id, StatusCancelled)
}

// SetStatus changes only the status. Putting a cancelled appointment back
// to scheduled goes through the booking checks like a new booking would;
// recording a past outcome does not.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	if !validStatuses[status] {
		return nil, invalid("invalid status: %s", status)
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == status {
		return a, nil
	}
	if a.Status == StatusCancelled && status == StatusScheduled {
		a.Status = status
		if err := s.Update(ctx, a); err != nil {
			return nil, err
		}
		return a, nil
	}

	previous := a.Status
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if db.IsUniqueViolation(err, slotConstraint) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	a.Status = status
	if rules, err := s.rules.Rules(ctx); err == nil {
		decorate(rules, a)
	}
	s.invalidate(ctx, a.DoctorID, a.AppointmentDate)

	eventType := events.AppointmentUpdated
	if status == StatusCancelled && previous != StatusCancelled {
		eventType = events.AppointmentCancelled
	}
	events.Emit(ctx, s.publisher, s.logger, eventType, a)
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, a.DoctorID, a.AppointmentDate)
	if a.Status != StatusCancelled {
		events.Emit(ctx, s.publisher, s.logger, events.AppointmentCancelled, a)
	}
	return nil
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error) {
	if filter.Status != "" && !validStatuses[filter.Status] {
		return nil, 0, invalid("invalid status: %s", filter.Status)
	}
	if filter.Date != "" {
		if _, err := time.Parse("2006-01-02", filter.Date); err != nil {
			return nil, 0, invalid("date must be YYYY-MM-DD")
		}
	}
	items, total, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	s.decorateAll(ctx, items)
	return items, total, nil
}

// ListByDate returns the day's appointments in time order.
func (s *Service) ListByDate(ctx context.Context, date string) ([]*Appointment, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, invalid("date must be YYYY-MM-DD")
	}
	items, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	s.decorateAll(ctx, items)
	return items, nil
}

func (s *Service) decorateAll(ctx context.Context, items []*Appointment) {
	rules, err := s.rules.Rules(ctx)
	if err != nil {
		return
	}
	for _, a := range items {
		decorate(rules, a)
	}
}

// refresh reloads the joined names after a write.
func (s *Service) refresh(ctx context.Context, a *Appointment, rules settings.BookingRules) {
	if stored, err := s.repo.GetByID(ctx, a.ID); err == nil {
		*a = *stored
	}
	decorate(rules, a)
}

func decorate(rules settings.BookingRules, a *Appointment) {
	if display, err := rules.Options.Markers.ToDisplay(a.AppointmentTime); err == nil {
		a.DisplayTime = display
	}
}

func (s *Service) invalidate(ctx context.Context, doctorID uuid.UUID, date string) {
	if err := s.cache.InvalidateDate(ctx, doctorID, date); err != nil {
		s.logger.Warn().Err(err).Str("doctor_id", doctorID.String()).Str("date", date).Msg("availability cache invalidation failed")
	}
}

func sameTime(a, b string) bool {
	ta, errA := availability.ParseStorage(a)
	tb, errB := availability.ParseStorage(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return ta == tb
}
