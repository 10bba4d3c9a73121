package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("appointment not found")

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List orders by date and time, newest first.
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error)
	// ListByDate orders the day's appointments by time.
	ListByDate(ctx context.Context, date string) ([]*Appointment, error)
	// BookedTimes returns the HH:MM:SS start times held by non-cancelled
	// appointments for the doctor on date. exclude, when set, is left out so
	// an appointment can keep its own slot on update.
	BookedTimes(ctx context.Context, doctorID uuid.UUID, date string, exclude *uuid.UUID) ([]string, error)
	// DueReminders returns scheduled appointments with reminders enabled that
	// start between from and to, interpreted in the tz location, and have
	// not received the stage's reminder.
	DueReminders(ctx context.Context, tz string, from, to time.Time, stage Stage) ([]*Due, error)
	GetDue(ctx context.Context, id uuid.UUID) (*Due, error)
	// MarkReminderSent records the stage. Marking the second stage also
	// marks the first so a late booking is not reminded twice.
	MarkReminderSent(ctx context.Context, id uuid.UUID, stage Stage, at time.Time) error
}
