package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/availability"
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

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) GetCenter(ctx context.Context) (*CenterSettings, error) {
	var c CenterSettings
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT name_ar, name_en, address, city, phone, alt_phone, email, website, logo_url, postal_code, updated_at
		FROM center_settings WHERE id = 1`,
	).Scan(&c.NameAr, &c.NameEn, &c.Address, &c.City, &c.Phone, &c.AltPhone, &c.Email,
		&c.Website, &c.LogoURL, &c.PostalCode, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *repoPG) SaveCenter(ctx context.Context, c *CenterSettings) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO center_settings (id, name_ar, name_en, address, city, phone, alt_phone, email, website, logo_url, postal_code)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET name_ar=EXCLUDED.name_ar, name_en=EXCLUDED.name_en,
			address=EXCLUDED.address, city=EXCLUDED.city, phone=EXCLUDED.phone,
			alt_phone=EXCLUDED.alt_phone, email=EXCLUDED.email, website=EXCLUDED.website,
			logo_url=EXCLUDED.logo_url, postal_code=EXCLUDED.postal_code, updated_at=NOW()
		RETURNING updated_at`,
		c.NameAr, c.NameEn, c.Address, c.City, c.Phone, c.AltPhone, c.Email, c.Website, c.LogoURL, c.PostalCode,
	).Scan(&c.UpdatedAt)
}

func (r *repoPG) GetSystem(ctx context.Context) (*SystemSettings, error) {
	var s SystemSettings
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT date_format, default_appointment_duration, email_enabled, sms_enabled,
			first_reminder_hours, second_reminder_hours, language, min_notice_hours,
			same_day_booking, time_format, timezone, to_char(slot_grid_start, 'HH24:MI'),
			to_char(slot_grid_end, 'HH24:MI'), default_when_no_schedule, updated_at
		FROM system_settings WHERE id = 1`,
	).Scan(&s.DateFormat, &s.DefaultAppointmentDuration, &s.EmailEnabled, &s.SMSEnabled,
		&s.FirstReminderHours, &s.SecondReminderHours, &s.Language, &s.MinNoticeHours,
		&s.SameDayBooking, &s.TimeFormat, &s.Timezone, &s.SlotGridStart,
		&s.SlotGridEnd, &s.DefaultWhenNoSchedule, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *repoPG) SaveSystem(ctx context.Context, s *SystemSettings) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO system_settings (id, date_format, default_appointment_duration, email_enabled, sms_enabled,
			first_reminder_hours, second_reminder_hours, language, min_notice_hours, same_day_booking,
			time_format, timezone, slot_grid_start, slot_grid_end, default_when_no_schedule)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::time, $13::time, $14)
		ON CONFLICT (id) DO UPDATE SET date_format=EXCLUDED.date_format,
			default_appointment_duration=EXCLUDED.default_appointment_duration,
			email_enabled=EXCLUDED.email_enabled, sms_enabled=EXCLUDED.sms_enabled,
			first_reminder_hours=EXCLUDED.first_reminder_hours,
			second_reminder_hours=EXCLUDED.second_reminder_hours, language=EXCLUDED.language,
			min_notice_hours=EXCLUDED.min_notice_hours, same_day_booking=EXCLUDED.same_day_booking,
			time_format=EXCLUDED.time_format, timezone=EXCLUDED.timezone,
			slot_grid_start=EXCLUDED.slot_grid_start, slot_grid_end=EXCLUDED.slot_grid_end,
			default_when_no_schedule=EXCLUDED.default_when_no_schedule, updated_at=NOW()
		RETURNING updated_at`,
		s.DateFormat, s.DefaultAppointmentDuration, s.EmailEnabled, s.SMSEnabled,
		s.FirstReminderHours, s.SecondReminderHours, s.Language, s.MinNoticeHours, s.SameDayBooking,
		s.TimeFormat, s.Timezone, s.SlotGridStart, s.SlotGridEnd, s.DefaultWhenNoSchedule,
	).Scan(&s.UpdatedAt)
}

func (r *repoPG) GetWorkingHours(ctx context.Context) ([]WorkingHours, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT day_of_week, is_open, to_char(open_time, 'HH24:MI'), to_char(close_time, 'HH24:MI')
		FROM center_working_hours`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hours []WorkingHours
	for rows.Next() {
		var wh WorkingHours
		var day string
		if err := rows.Scan(&day, &wh.IsOpen, &wh.OpenTime, &wh.CloseTime); err != nil {
			return nil, err
		}
		wh.DayOfWeek = availability.Weekday(day)
		hours = append(hours, wh)
	}
	return hours, rows.Err()
}

func (r *repoPG) ReplaceWorkingHours(ctx context.Context, hours []WorkingHours) error {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM center_working_hours`); err != nil {
		return err
	}
	for _, wh := range hours {
		if _, err := q.Exec(ctx, `
			INSERT INTO center_working_hours (day_of_week, is_open, open_time, close_time)
			VALUES ($1, $2, COALESCE(NULLIF($3, '')::time, '08:00'), COALESCE(NULLIF($4, '')::time, '17:00'))`,
			string(wh.DayOfWeek), wh.IsOpen, wh.OpenTime, wh.CloseTime,
		); err != nil {
			return err
		}
	}
	return nil
}
