package patient

import (
	"context"
	"errors"
	"strings"

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

const patientCols = `id, full_name, national_id, phone, alt_phone, birth_date::text, gender, email,
	address, blood_type, allergies, chronic_diseases, current_medications,
	emergency_contact_name, emergency_contact_phone, emergency_contact_relation,
	has_insurance, insurance_provider, insurance_number, is_smoker, marital_status,
	nationality, occupation, historical_medical_conditions, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FullName, &p.NationalID, &p.Phone, &p.AltPhone, &p.BirthDate, &p.Gender, &p.Email,
		&p.Address, &p.BloodType, &p.Allergies, &p.ChronicDiseases, &p.CurrentMedications,
		&p.EmergencyContactName, &p.EmergencyContactPhone, &p.EmergencyContactRelation,
		&p.HasInsurance, &p.InsuranceProvider, &p.InsuranceNumber, &p.IsSmoker, &p.MaritalStatus,
		&p.Nationality, &p.Occupation, &p.HistoricalMedicalConditions, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, full_name, national_id, phone, alt_phone, birth_date, gender, email,
			address, blood_type, allergies, chronic_diseases, current_medications,
			emergency_contact_name, emergency_contact_phone, emergency_contact_relation,
			has_insurance, insurance_provider, insurance_number, is_smoker, marital_status,
			nationality, occupation, historical_medical_conditions)
		VALUES ($1,$2,$3,$4,$5,$6::date,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
		RETURNING created_at, updated_at`,
		p.ID, p.FullName, p.NationalID, p.Phone, p.AltPhone, p.BirthDate, p.Gender, p.Email,
		p.Address, p.BloodType, p.Allergies, p.ChronicDiseases, p.CurrentMedications,
		p.EmergencyContactName, p.EmergencyContactPhone, p.EmergencyContactRelation,
		p.HasInsurance, p.InsuranceProvider, p.InsuranceNumber, p.IsSmoker, p.MaritalStatus,
		p.Nationality, p.Occupation, p.HistoricalMedicalConditions,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET full_name=$2, national_id=$3, phone=$4, alt_phone=$5, birth_date=$6::date,
			gender=$7, email=$8, address=$9, blood_type=$10, allergies=$11, chronic_diseases=$12,
			current_medications=$13, emergency_contact_name=$14, emergency_contact_phone=$15,
			emergency_contact_relation=$16, has_insurance=$17, insurance_provider=$18,
			insurance_number=$19, is_smoker=$20, marital_status=$21, nationality=$22,
			occupation=$23, historical_medical_conditions=$24, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.FullName, p.NationalID, p.Phone, p.AltPhone, p.BirthDate, p.Gender, p.Email,
		p.Address, p.BloodType, p.Allergies, p.ChronicDiseases, p.CurrentMedications,
		p.EmergencyContactName, p.EmergencyContactPhone, p.EmergencyContactRelation,
		p.HasInsurance, p.InsuranceProvider, p.InsuranceNumber, p.IsSmoker, p.MaritalStatus,
		p.Nationality, p.Occupation, p.HistoricalMedicalConditions,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) Search(ctx context.Context, q string, limit int) ([]*Patient, error) {
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patients
		WHERE lower(full_name) LIKE $1 OR phone LIKE $1
		ORDER BY full_name LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&n)
	return n, err
}

func collect(rows pgx.Rows) ([]*Patient, error) {
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
