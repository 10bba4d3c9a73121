package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
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

const apptCols = `a.id, a.patient_id, a.doctor_id, a.clinic_id, a.appointment_date::text,
	to_char(a.appointment_time, 'HH24:MI:SS'), a.appointment_type, a.reason, a.notes, a.send_reminder,
	a.status, a.first_reminder_sent_at, a.second_reminder_sent_at, a.created_at, a.updated_at,
	p.full_name, d.name`

const apptFrom = ` FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN doctors d ON d.id = a.doctor_id`

func scanAppt(row pgx.Row, extra ...interface{}) (*Appointment, error) {
	var a Appointment
	dest := []interface{}{&a.ID, &a.PatientID, &a.DoctorID, &a.ClinicID, &a.AppointmentDate,
		&a.AppointmentTime, &a.AppointmentType, &a.Reason, &a.Notes, &a.SendReminder,
		&a.Status, &a.FirstReminderSentAt, &a.SecondReminderSentAt, &a.CreatedAt, &a.UpdatedAt,
		&a.PatientName, &a.DoctorName}
	err := row.Scan(append(dest, extra...)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collect(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, clinic_id, appointment_date, appointment_time,
			appointment_type, reason, notes, send_reminder, status)
		VALUES ($1, $2, $3, $4, $5::date, $6::time, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.ClinicID, a.AppointmentDate, a.AppointmentTime,
		a.AppointmentType, a.Reason, a.Notes, a.SendReminder, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+apptFrom+` WHERE a.id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET patient_id=$2, doctor_id=$3, clinic_id=$4, appointment_date=$5::date,
			appointment_time=$6::time, appointment_type=$7, reason=$8, notes=$9, send_reminder=$10,
			status=$11, first_reminder_sent_at=$12, second_reminder_sent_at=$13, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.ClinicID, a.AppointmentDate, a.AppointmentTime,
		a.AppointmentType, a.Reason, a.Notes, a.SendReminder, a.Status,
		a.FirstReminderSentAt, a.SecondReminderSentAt,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE appointments SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error) {
	query := `SELECT ` + apptCols + apptFrom + ` WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM appointments a WHERE 1=1`
	var args []interface{}
	idx := 1

	if filter.Date != "" {
		query += fmt.Sprintf(` AND a.appointment_date = $%d::date`, idx)
		countQuery += fmt.Sprintf(` AND a.appointment_date = $%d::date`, idx)
		args = append(args, filter.Date)
		idx++
	}
	if filter.DoctorID != nil {
		query += fmt.Sprintf(` AND a.doctor_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND a.doctor_id = $%d`, idx)
		args = append(args, *filter.DoctorID)
		idx++
	}
	if filter.PatientID != nil {
		query += fmt.Sprintf(` AND a.patient_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND a.patient_id = $%d`, idx)
		args = append(args, *filter.PatientID)
		idx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND a.status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND a.status = $%d`, idx)
		args = append(args, filter.Status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY a.appointment_date DESC, a.appointment_time DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) ListByDate(ctx context.Context, date string) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+apptFrom+`
		WHERE a.appointment_date = $1::date ORDER BY a.appointment_time`, date)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) BookedTimes(ctx context.Context, doctorID uuid.UUID, date string, exclude *uuid.UUID) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT to_char(appointment_time, 'HH24:MI:SS') FROM appointments
		WHERE doctor_id = $1 AND appointment_date = $2::date AND status <> 'cancelled'
			AND ($3::uuid IS NULL OR id <> $3)
		ORDER BY appointment_time`, doctorID, date, exclude)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var times []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

func stageColumn(stage Stage) string {
	if stage == SecondReminder {
		return "second_reminder_sent_at"
	}
	return "first_reminder_sent_at"
}

const dueCols = apptCols + `, p.phone, p.email`

func scanDue(row pgx.Row) (*Due, error) {
	var d Due
	a, err := scanAppt(row, &d.PatientPhone, &d.PatientEmail)
	if err != nil {
		return nil, err
	}
	d.Appointment = *a
	return &d, nil
}

func (r *repoPG) DueReminders(ctx context.Context, tz string, from, to time.Time, stage Stage) ([]*Due, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+dueCols+apptFrom+`
		WHERE a.status = 'scheduled' AND a.send_reminder
			AND a.`+stageColumn(stage)+` IS NULL
			AND ((a.appointment_date + a.appointment_time) AT TIME ZONE $1) BETWEEN $2 AND $3
		ORDER BY a.appointment_date, a.appointment_time`, tz, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Due
	for rows.Next() {
		d, err := scanDue(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *repoPG) GetDue(ctx context.Context, id uuid.UUID) (*Due, error) {
	return scanDue(r.conn(ctx).QueryRow(ctx, `SELECT `+dueCols+apptFrom+` WHERE a.id = $1`, id))
}

func (r *repoPG) MarkReminderSent(ctx context.Context, id uuid.UUID, stage Stage, at time.Time) error {
	query := `UPDATE appointments SET first_reminder_sent_at = COALESCE(first_reminder_sent_at, $2) WHERE id = $1`
	if stage == SecondReminder {
		query = `UPDATE appointments SET second_reminder_sent_at = $2,
			first_reminder_sent_at = COALESCE(first_reminder_sent_at, $2) WHERE id = $1`
	}
	tag, err := r.conn(ctx).Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
