package doctor

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/availability"
)

// Doctor maps to the doctors table.
type Doctor struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	Name            string     `db:"name" json:"name" validate:"required,max=200"`
	Specialty       *string    `db:"specialty" json:"specialty,omitempty" validate:"omitempty,max=200"`
	Phone           *string    `db:"phone" json:"phone,omitempty" validate:"omitempty,phone"`
	Email           *string    `db:"email" json:"email,omitempty" validate:"omitempty,email"`
	Bio             *string    `db:"bio" json:"bio,omitempty"`
	ClinicID        *uuid.UUID `db:"clinic_id" json:"clinic_id,omitempty"`
	ExperienceYears *int       `db:"experience_years" json:"experience_years,omitempty" validate:"omitempty,min=0,max=80"`
	Qualifications  *string    `db:"qualifications" json:"qualifications,omitempty"`
	Status          string     `db:"status" json:"status"`
	IconColor       string     `db:"icon_color" json:"icon_color"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	// Schedule is loaded on Get and written on Create and Update when set.
	Schedule availability.WeeklySchedule `db:"-" json:"schedule,omitempty"`
}

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusOnLeave  = "on_leave"
)

// Palette is cycled by doctor count to give each new doctor a calendar colour.
var Palette = []string{"blue", "green", "purple", "orange", "pink", "red", "cyan", "amber"}

// ColorFor returns the palette entry for the n-th doctor.
func ColorFor(n int) string {
	if n < 0 {
		n = 0
	}
	return Palette[n%len(Palette)]
}
