package patient

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/pkg/validate"
)

// SearchLimit caps quick-search results for the booking form.
const SearchLimit = 10

var validBloodTypes = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

var validMaritalStatuses = map[string]bool{
	"single": true, "married": true, "divorced": true, "widowed": true,
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if err := s.check(p); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	p.Age = p.AgeAt(s.now())
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Age = p.AgeAt(s.now())
	return p, nil
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if err := s.check(p); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	p.Age = p.AgeAt(s.now())
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	items, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	s.withAges(items)
	return items, total, nil
}

// Search returns up to SearchLimit patients whose name or phone contains q.
// A blank query returns nothing.
func (s *Service) Search(ctx context.Context, q string) ([]*Patient, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []*Patient{}, nil
	}
	items, err := s.repo.Search(ctx, q, SearchLimit)
	if err != nil {
		return nil, err
	}
	s.withAges(items)
	return items, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) withAges(items []*Patient) {
	now := s.now()
	for _, p := range items {
		p.Age = p.AgeAt(now)
	}
}

// check normalizes optional fields and validates the record.
func (s *Service) check(p *Patient) error {
	p.FullName = strings.TrimSpace(p.FullName)
	p.Phone = strings.TrimSpace(p.Phone)
	for _, f := range []**string{
		&p.NationalID, &p.AltPhone, &p.BirthDate, &p.Gender, &p.Email, &p.Address,
		&p.BloodType, &p.Allergies, &p.ChronicDiseases, &p.CurrentMedications,
		&p.EmergencyContactName, &p.EmergencyContactPhone, &p.EmergencyContactRelation,
		&p.InsuranceProvider, &p.InsuranceNumber, &p.MaritalStatus, &p.Nationality,
		&p.Occupation, &p.HistoricalMedicalConditions,
	} {
		*f = blankToNil(*f)
	}

	if err := validate.Struct(p); err != nil {
		return err
	}
	if p.BloodType != nil && !validBloodTypes[strings.ToUpper(*p.BloodType)] {
		return validate.Errorf("invalid blood_type: %s", *p.BloodType)
	}
	if p.BloodType != nil {
		bt := strings.ToUpper(*p.BloodType)
		p.BloodType = &bt
	}
	if p.MaritalStatus != nil && !validMaritalStatuses[*p.MaritalStatus] {
		return validate.Errorf("invalid marital_status: %s", *p.MaritalStatus)
	}
	if p.BirthDate != nil {
		born, _ := time.Parse("2006-01-02", *p.BirthDate)
		if born.After(s.now()) {
			return validate.Errorf("birth_date must not be in the future")
		}
	}
	return nil
}

func blankToNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
