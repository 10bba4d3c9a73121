package doctor

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/availability"
)

var ErrNotFound = errors.New("doctor not found")

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
	// ListActiveByClinic returns the clinic's active doctors ordered by name.
	ListActiveByClinic(ctx context.Context, clinicID uuid.UUID) ([]*Doctor, error)
	Count(ctx context.Context) (int, error)
	CountActive(ctx context.Context) (int, error)
}

type ScheduleRepository interface {
	Get(ctx context.Context, doctorID uuid.UUID) (availability.WeeklySchedule, error)
	// Replace deletes every row for the doctor and inserts schedule.
	Replace(ctx context.Context, doctorID uuid.UUID, schedule availability.WeeklySchedule) error
}
