package appointment

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

const (
	TypeGeneral      = "general"
	TypeFollowup     = "followup"
	TypeConsultation = "consultation"
	TypeEmergency    = "emergency"
)

// Appointment maps to the appointments table. AppointmentDate is YYYY-MM-DD
// and AppointmentTime is the HH:MM:SS storage form in the clinic's timezone.
type Appointment struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	PatientID            uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID             uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	ClinicID             *uuid.UUID `db:"clinic_id" json:"clinic_id,omitempty"`
	AppointmentDate      string     `db:"appointment_date" json:"appointment_date"`
	AppointmentTime      string     `db:"appointment_time" json:"appointment_time"`
	AppointmentType      string     `db:"appointment_type" json:"appointment_type"`
	Reason               string     `db:"reason" json:"reason"`
	Notes                *string    `db:"notes" json:"notes,omitempty"`
	SendReminder         *bool      `db:"send_reminder" json:"send_reminder,omitempty"`
	Status               string     `db:"status" json:"status"`
	FirstReminderSentAt  *time.Time `db:"first_reminder_sent_at" json:"first_reminder_sent_at,omitempty"`
	SecondReminderSentAt *time.Time `db:"second_reminder_sent_at" json:"second_reminder_sent_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`

	// Read-only, filled from joins and the display markers.
	PatientName string `db:"patient_name" json:"patient_name,omitempty"`
	DoctorName  string `db:"doctor_name" json:"doctor_name,omitempty"`
	DisplayTime string `db:"-" json:"display_time,omitempty"`
}

// ListFilter narrows List. Zero values are ignored.
type ListFilter struct {
	Date      string
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Status    string
}

// Stage identifies which reminder an appointment is due for.
type Stage int

const (
	FirstReminder Stage = iota + 1
	SecondReminder
)

func (s Stage) String() string {
	if s == SecondReminder {
		return "second"
	}
	return "first"
}

// Due is an appointment waiting for a reminder, with the patient's contact
// details.
type Due struct {
	Appointment
	PatientPhone string
	PatientEmail *string
}
