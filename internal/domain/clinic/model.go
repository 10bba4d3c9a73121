package clinic

import (
	"time"

	"github.com/google/uuid"
)

// Clinic is a department of the centre that doctors belong to.
type Clinic struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name" validate:"required,max=200"`
	NameEn      *string   `db:"name_en" json:"name_en,omitempty" validate:"omitempty,max=200"`
	Status      string    `db:"status" json:"status"`
	DoctorCount int       `db:"doctor_count" json:"doctor_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
