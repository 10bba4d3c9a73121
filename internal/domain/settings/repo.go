package settings

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("settings not found")

type Repository interface {
	GetCenter(ctx context.Context) (*CenterSettings, error)
	SaveCenter(ctx context.Context, c *CenterSettings) error
	GetSystem(ctx context.Context) (*SystemSettings, error)
	SaveSystem(ctx context.Context, s *SystemSettings) error
	GetWorkingHours(ctx context.Context) ([]WorkingHours, error)
	ReplaceWorkingHours(ctx context.Context, hours []WorkingHours) error
}
