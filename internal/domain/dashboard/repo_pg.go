package dashboard

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *repoPG) CountPatients(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&n)
	return n, err
}

func (r *repoPG) CountAppointments(ctx context.Context, date string) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE appointment_date = $1::date AND status <> 'cancelled'`, date).Scan(&n)
	return n, err
}

func (r *repoPG) CountActiveDoctors(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctors WHERE status = 'active'`).Scan(&n)
	return n, err
}

func (r *repoPG) Attendance(ctx context.Context, from, to string) (int, int, error) {
	var completed, noShow int
	err := r.conn(ctx).QueryRow(ctx, `SELECT
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'no_show')
		FROM appointments
		WHERE appointment_date BETWEEN $1::date AND $2::date`, from, to).Scan(&completed, &noShow)
	return completed, noShow, err
}

func (r *repoPG) Upcoming(ctx context.Context, date, fromTime string, limit int) ([]Upcoming, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT a.id, p.full_name, d.name, to_char(a.appointment_time, 'HH24:MI:SS'), a.status
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN doctors d ON d.id = a.doctor_id
		WHERE a.appointment_date = $1::date AND a.appointment_time >= $2::time AND a.status = 'scheduled'
		ORDER BY a.appointment_time, d.name
		LIMIT $3`, date, fromTime, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Upcoming
	for rows.Next() {
		var u Upcoming
		if err := rows.Scan(&u.ID, &u.PatientName, &u.DoctorName, &u.Time, &u.Status); err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}
