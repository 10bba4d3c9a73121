package clinic

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/pkg/validate"
)

var validStatuses = map[string]bool{
	"active":   true,
	"inactive": true,
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func check(c *Clinic) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Status == "" {
		c.Status = "active"
	}
	if err := validate.Struct(c); err != nil {
		return err
	}
	if !validStatuses[c.Status] {
		return validate.Errorf("invalid status: %s", c.Status)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, c *Clinic) error {
	if err := check(c); err != nil {
		return err
	}
	return s.repo.Create(ctx, c)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, c *Clinic) error {
	if err := check(c); err != nil {
		return err
	}
	return s.repo.Update(ctx, c)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Clinic, int, error) {
	return s.repo.List(ctx, limit, offset)
}
