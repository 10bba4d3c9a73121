package doctor

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/availability"
	"github.com/clinic/clinic/internal/platform/db"
)

// -- Doctor Repository --

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const doctorCols = `id, name, specialty, phone, email, bio, clinic_id, experience_years,
	qualifications, status, icon_color, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Specialty, &d.Phone, &d.Email, &d.Bio, &d.ClinicID,
		&d.ExperienceYears, &d.Qualifications, &d.Status, &d.IconColor, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (id, name, specialty, phone, email, bio, clinic_id, experience_years,
			qualifications, status, icon_color)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Specialty, d.Phone, d.Email, d.Bio, d.ClinicID, d.ExperienceYears,
		d.Qualifications, d.Status, d.IconColor,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctors SET name=$2, specialty=$3, phone=$4, email=$5, bio=$6, clinic_id=$7,
			experience_years=$8, qualifications=$9, status=$10, icon_color=$11, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Specialty, d.Phone, d.Email, d.Bio, d.ClinicID, d.ExperienceYears,
		d.Qualifications, d.Status, d.IconColor,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *doctorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctors`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+doctorCols+` FROM doctors ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectDoctors(rows)
	return items, total, err
}

func (r *doctorRepoPG) ListActiveByClinic(ctx context.Context, clinicID uuid.UUID) ([]*Doctor, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+doctorCols+` FROM doctors
		WHERE clinic_id = $1 AND status = 'active' ORDER BY name`, clinicID)
	if err != nil {
		return nil, err
	}
	return collectDoctors(rows)
}

func (r *doctorRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctors`).Scan(&n)
	return n, err
}

func (r *doctorRepoPG) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctors WHERE status = 'active'`).Scan(&n)
	return n, err
}

func collectDoctors(rows pgx.Rows) ([]*Doctor, error) {
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// -- Schedule Repository --

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{pool: pool} }

func (r *scheduleRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *scheduleRepoPG) Get(ctx context.Context, doctorID uuid.UUID) (availability.WeeklySchedule, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT day_of_week, is_working, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI')
		FROM doctor_schedules WHERE doctor_id = $1`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedule availability.WeeklySchedule
	for rows.Next() {
		var ds availability.DaySchedule
		var day string
		if err := rows.Scan(&day, &ds.IsWorking, &ds.StartTime, &ds.EndTime); err != nil {
			return nil, err
		}
		ds.DayOfWeek = availability.Weekday(day)
		schedule = append(schedule, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return schedule.Sorted(), nil
}

func (r *scheduleRepoPG) Replace(ctx context.Context, doctorID uuid.UUID, schedule availability.WeeklySchedule) error {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM doctor_schedules WHERE doctor_id = $1`, doctorID); err != nil {
		return err
	}
	for _, ds := range schedule {
		var start, end *string
		if ds.IsWorking {
			start, end = &ds.StartTime, &ds.EndTime
		}
		if _, err := q.Exec(ctx, `
			INSERT INTO doctor_schedules (id, doctor_id, day_of_week, is_working, start_time, end_time)
			VALUES ($1, $2, $3, $4, COALESCE($5::time, '08:00'), COALESCE($6::time, '17:00'))`,
			uuid.New(), doctorID, string(ds.DayOfWeek), ds.IsWorking, start, end,
		); err != nil {
			return err
		}
	}
	return nil
}
