package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table.
type Patient struct {
	ID                          uuid.UUID `db:"id" json:"id"`
	FullName                    string    `db:"full_name" json:"full_name" validate:"required,max=200"`
	NationalID                  *string   `db:"national_id" json:"national_id,omitempty" validate:"omitempty,max=50"`
	Phone                       string    `db:"phone" json:"phone" validate:"required,phone"`
	AltPhone                    *string   `db:"alt_phone" json:"alt_phone,omitempty" validate:"omitempty,phone"`
	BirthDate                   *string   `db:"birth_date" json:"birth_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Gender                      *string   `db:"gender" json:"gender,omitempty" validate:"omitempty,oneof=male female"`
	Email                       *string   `db:"email" json:"email,omitempty" validate:"omitempty,email"`
	Address                     *string   `db:"address" json:"address,omitempty"`
	BloodType                   *string   `db:"blood_type" json:"blood_type,omitempty"`
	Allergies                   *string   `db:"allergies" json:"allergies,omitempty"`
	ChronicDiseases             *string   `db:"chronic_diseases" json:"chronic_diseases,omitempty"`
	CurrentMedications          *string   `db:"current_medications" json:"current_medications,omitempty"`
	EmergencyContactName        *string   `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone       *string   `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty" validate:"omitempty,phone"`
	EmergencyContactRelation    *string   `db:"emergency_contact_relation" json:"emergency_contact_relation,omitempty"`
	HasInsurance                bool      `db:"has_insurance" json:"has_insurance"`
	InsuranceProvider           *string   `db:"insurance_provider" json:"insurance_provider,omitempty"`
	InsuranceNumber             *string   `db:"insurance_number" json:"insurance_number,omitempty"`
	IsSmoker                    bool      `db:"is_smoker" json:"is_smoker"`
	MaritalStatus               *string   `db:"marital_status" json:"marital_status,omitempty"`
	Nationality                 *string   `db:"nationality" json:"nationality,omitempty"`
	Occupation                  *string   `db:"occupation" json:"occupation,omitempty"`
	HistoricalMedicalConditions *string   `db:"historical_medical_conditions" json:"historical_medical_conditions,omitempty"`
	CreatedAt                   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                   time.Time `db:"updated_at" json:"updated_at"`

	// Age is derived from BirthDate when the record is read.
	Age *int `db:"-" json:"age,omitempty"`
}

// AgeAt returns the age in whole years on now's calendar date, or nil when
// the birth date is unknown.
func (p *Patient) AgeAt(now time.Time) *int {
	if p.BirthDate == nil {
		return nil
	}
	born, err := time.Parse("2006-01-02", *p.BirthDate)
	if err != nil {
		return nil
	}
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	if age < 0 {
		return nil
	}
	return &age
}

// Summary is the short form used by appointment and dashboard listings.
type Summary struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Phone    string    `json:"phone"`
}
