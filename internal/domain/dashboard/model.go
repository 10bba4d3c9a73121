package dashboard

import "github.com/google/uuid"

// Stats is the front-desk overview for the current day in the clinic's
// timezone.
type Stats struct {
	Date              string     `json:"date"`
	TotalPatients     int        `json:"total_patients"`
	TodayAppointments int        `json:"today_appointments"`
	ActiveDoctors     int        `json:"active_doctors"`
	AttendanceRate    float64    `json:"attendance_rate"`
	Upcoming          []Upcoming `json:"upcoming"`
}

// Upcoming is one of today's scheduled appointments still ahead.
type Upcoming struct {
	ID          uuid.UUID `json:"id"`
	PatientName string    `json:"patient_name"`
	DoctorName  string    `json:"doctor_name"`
	Time        string    `json:"time"`
	DisplayTime string    `json:"display_time"`
	Status      string    `json:"status"`
}
