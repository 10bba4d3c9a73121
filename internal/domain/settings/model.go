package settings

import (
	"time"

	"github.com/clinic/clinic/internal/availability"
)

// CenterSettings is the single row describing the medical centre.
type CenterSettings struct {
	NameAr     string    `db:"name_ar" json:"name_ar" validate:"max=200"`
	NameEn     *string   `db:"name_en" json:"name_en,omitempty" validate:"omitempty,max=200"`
	Address    *string   `db:"address" json:"address,omitempty"`
	City       *string   `db:"city" json:"city,omitempty" validate:"omitempty,max=100"`
	Phone      *string   `db:"phone" json:"phone,omitempty" validate:"omitempty,phone"`
	AltPhone   *string   `db:"alt_phone" json:"alt_phone,omitempty" validate:"omitempty,phone"`
	Email      *string   `db:"email" json:"email,omitempty" validate:"omitempty,email"`
	Website    *string   `db:"website" json:"website,omitempty" validate:"omitempty,url"`
	LogoURL    *string   `db:"logo_url" json:"logo_url,omitempty"`
	PostalCode *string   `db:"postal_code" json:"postal_code,omitempty" validate:"omitempty,max=20"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// SystemSettings is the single row of booking and reminder preferences.
type SystemSettings struct {
	DateFormat                 string    `db:"date_format" json:"date_format" validate:"required,oneof=dd/MM/yyyy MM/dd/yyyy yyyy-MM-dd"`
	DefaultAppointmentDuration int       `db:"default_appointment_duration" json:"default_appointment_duration" validate:"min=5,max=240"`
	EmailEnabled               bool      `db:"email_enabled" json:"email_enabled"`
	SMSEnabled                 bool      `db:"sms_enabled" json:"sms_enabled"`
	FirstReminderHours         int       `db:"first_reminder_hours" json:"first_reminder_hours" validate:"min=0,max=168"`
	SecondReminderHours        int       `db:"second_reminder_hours" json:"second_reminder_hours" validate:"min=0,max=168"`
	Language                   string    `db:"language" json:"language" validate:"required,oneof=ar en"`
	MinNoticeHours             int       `db:"min_notice_hours" json:"min_notice_hours" validate:"min=0,max=720"`
	SameDayBooking             bool      `db:"same_day_booking" json:"same_day_booking"`
	TimeFormat                 string    `db:"time_format" json:"time_format" validate:"required,oneof=12h 24h"`
	Timezone                   string    `db:"timezone" json:"timezone" validate:"required"`
	SlotGridStart              string    `db:"slot_grid_start" json:"slot_grid_start" validate:"required,clock"`
	SlotGridEnd                string    `db:"slot_grid_end" json:"slot_grid_end" validate:"required,clock"`
	DefaultWhenNoSchedule      string    `db:"default_when_no_schedule" json:"default_when_no_schedule" validate:"required,oneof=bookable blocked"`
	UpdatedAt                  time.Time `db:"updated_at" json:"updated_at"`
}

// WorkingHours is the centre's opening window for one weekday.
type WorkingHours struct {
	DayOfWeek availability.Weekday `db:"day_of_week" json:"day_of_week"`
	IsOpen    bool                 `db:"is_open" json:"is_open"`
	OpenTime  string               `db:"open_time" json:"open_time"`
	CloseTime string               `db:"close_time" json:"close_time"`
}

// BookingRules is what the appointment service needs from settings to
// resolve availability and accept a booking.
type BookingRules struct {
	Options        availability.Options
	Location       *time.Location
	MinNotice      time.Duration
	SameDayBooking bool
	EmailEnabled   bool
	SMSEnabled     bool
	FirstReminder  time.Duration
	SecondReminder time.Duration
	Language       string
}
