package dashboard

import "context"

// Repository runs the aggregate queries behind the dashboard. Dates are
// YYYY-MM-DD and times HH:MM:SS.
type Repository interface {
	CountPatients(ctx context.Context) (int, error)
	// CountAppointments counts non-cancelled appointments on date.
	CountAppointments(ctx context.Context, date string) (int, error)
	CountActiveDoctors(ctx context.Context) (int, error)
	// Attendance counts completed and no-show appointments in [from, to].
	Attendance(ctx context.Context, from, to string) (completed, noShow int, err error)
	// Upcoming lists scheduled appointments on date starting at or after
	// fromTime, earliest first.
	Upcoming(ctx context.Context, date, fromTime string, limit int) ([]Upcoming, error)
}
