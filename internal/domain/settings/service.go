package settings

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/availability"
	"github.com/clinic/clinic/internal/platform/blobstore"
	"github.com/clinic/clinic/pkg/validate"
)

// LogoPrefix is the blob key prefix for uploaded centre logos.
const LogoPrefix = "logos"

// Defaults are the configured fallbacks used when the settings row is missing
// or holds values that no longer build a valid grid.
type Defaults struct {
	Options  availability.Options
	Location *time.Location
}

// AvailabilityInvalidator drops every cached availability entry.
type AvailabilityInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

type Service struct {
	repo     Repository
	blobs    blobstore.BlobStore
	defaults Defaults
	cache    AvailabilityInvalidator
	logger   zerolog.Logger
}

func NewService(repo Repository, blobs blobstore.BlobStore, defaults Defaults, logger zerolog.Logger) *Service {
	if defaults.Location == nil {
		defaults.Location = time.UTC
	}
	if defaults.Options.Grid.Step == 0 {
		defaults.Options.Grid = availability.DefaultGrid()
	}
	return &Service{repo: repo, blobs: blobs, defaults: defaults, logger: logger}
}

// SetInvalidator attaches the availability cache.
func (s *Service) SetInvalidator(inv AvailabilityInvalidator) { s.cache = inv }

// -- Centre --

func (s *Service) GetCenter(ctx context.Context) (*CenterSettings, error) {
	c, err := s.repo.GetCenter(ctx)
	if errors.Is(err, ErrNotFound) {
		return &CenterSettings{}, nil
	}
	return c, err
}

// UpdateCenter saves the centre details. The logo is only changed through
// UploadLogo, so a request without logo_url keeps the stored one.
func (s *Service) UpdateCenter(ctx context.Context, c *CenterSettings) error {
	c.NameAr = strings.TrimSpace(c.NameAr)
	for _, f := range []**string{&c.NameEn, &c.Address, &c.City, &c.Phone, &c.AltPhone, &c.Email, &c.Website, &c.PostalCode} {
		*f = blankToNil(*f)
	}
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.LogoURL == nil {
		existing, err := s.GetCenter(ctx)
		if err != nil {
			return err
		}
		c.LogoURL = existing.LogoURL
	}
	return s.repo.SaveCenter(ctx, c)
}

// UploadLogo stores an image upload and points logo_url at it. The previous
// logo blob is removed on a best-effort basis.
func (s *Service) UploadLogo(ctx context.Context, fh *multipart.FileHeader) (*CenterSettings, error) {
	obj, err := blobstore.SaveImage(ctx, s.blobs, LogoPrefix, fh)
	if err != nil {
		return nil, err
	}
	c, err := s.GetCenter(ctx)
	if err != nil {
		return nil, err
	}
	previous := c.LogoURL
	url := obj.URL()
	c.LogoURL = &url
	if err := s.repo.SaveCenter(ctx, c); err != nil {
		return nil, err
	}
	if previous != nil && *previous != url {
		s.removeLogo(ctx, *previous)
	}
	return c, nil
}

func (s *Service) removeLogo(ctx context.Context, url string) {
	key, ok := blobstore.KeyFromURL(url)
	if !ok || !strings.HasPrefix(key, LogoPrefix+"/") {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		s.logger.Warn().Err(err).Str("key", key).Msg("remove previous logo")
	}
}

// -- System --

// DefaultSystem is the settings row implied by the configured defaults.
func (s *Service) DefaultSystem() *SystemSettings {
	grid := s.defaults.Options.Grid
	policy := s.defaults.Options.NoSchedule
	if policy == "" {
		policy = availability.NoScheduleBookable
	}
	return &SystemSettings{
		DateFormat:                 "dd/MM/yyyy",
		DefaultAppointmentDuration: int(grid.Step / time.Minute),
		FirstReminderHours:         24,
		SecondReminderHours:        2,
		Language:                   "ar",
		SameDayBooking:             true,
		TimeFormat:                 "12h",
		Timezone:                   s.defaults.Location.String(),
		SlotGridStart:              grid.Start.HHMM(),
		SlotGridEnd:                grid.End.HHMM(),
		DefaultWhenNoSchedule:      string(policy),
	}
}

func (s *Service) GetSystem(ctx context.Context) (*SystemSettings, error) {
	sys, err := s.repo.GetSystem(ctx)
	if errors.Is(err, ErrNotFound) {
		return s.DefaultSystem(), nil
	}
	return sys, err
}

// UpdateSystem validates and saves the system settings. Every cached
// availability entry is dropped since the grid or policy may have changed.
func (s *Service) UpdateSystem(ctx context.Context, sys *SystemSettings) error {
	if err := validate.Struct(sys); err != nil {
		return err
	}
	if _, err := time.LoadLocation(sys.Timezone); err != nil {
		return validate.Errorf("invalid timezone: %s", sys.Timezone)
	}
	if _, err := availability.NewGrid(sys.SlotGridStart, sys.SlotGridEnd, time.Duration(sys.DefaultAppointmentDuration)*time.Minute); err != nil {
		return validate.Errorf("slot grid: %v", err)
	}
	if sys.SecondReminderHours > 0 && sys.SecondReminderHours >= sys.FirstReminderHours {
		return validate.Errorf("second_reminder_hours must be less than first_reminder_hours")
	}
	if err := s.repo.SaveSystem(ctx, sys); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("availability cache invalidation failed")
		}
	}
	return nil
}

// Rules builds the booking rules from the stored system settings, falling
// back to the configured defaults field by field.
func (s *Service) Rules(ctx context.Context) (BookingRules, error) {
	sys, err := s.GetSystem(ctx)
	if err != nil {
		return BookingRules{}, fmt.Errorf("load system settings: %w", err)
	}

	opts := s.defaults.Options
	step := time.Duration(sys.DefaultAppointmentDuration) * time.Minute
	if grid, err := availability.NewGrid(sys.SlotGridStart, sys.SlotGridEnd, step); err == nil {
		opts.Grid = grid
	} else {
		s.logger.Warn().Err(err).Msg("stored slot grid is invalid, using configured grid")
	}
	if policy, err := availability.ParseNoSchedulePolicy(sys.DefaultWhenNoSchedule); err == nil {
		opts.NoSchedule = policy
	}

	loc := s.defaults.Location
	if sys.Timezone != "" {
		if l, err := time.LoadLocation(sys.Timezone); err == nil {
			loc = l
		}
	}

	return BookingRules{
		Options:        opts,
		Location:       loc,
		MinNotice:      time.Duration(sys.MinNoticeHours) * time.Hour,
		SameDayBooking: sys.SameDayBooking,
		EmailEnabled:   sys.EmailEnabled,
		SMSEnabled:     sys.SMSEnabled,
		FirstReminder:  time.Duration(sys.FirstReminderHours) * time.Hour,
		SecondReminder: time.Duration(sys.SecondReminderHours) * time.Hour,
		Language:       sys.Language,
	}, nil
}

// -- Working hours --

// GetWorkingHours returns the centre's opening hours in Saturday-first order.
func (s *Service) GetWorkingHours(ctx context.Context) ([]WorkingHours, error) {
	hours, err := s.repo.GetWorkingHours(ctx)
	if err != nil {
		return nil, err
	}
	sortHours(hours)
	return hours, nil
}

func (s *Service) ReplaceWorkingHours(ctx context.Context, hours []WorkingHours) ([]WorkingHours, error) {
	if err := asSchedule(hours).Validate(); err != nil {
		return nil, validate.Errorf("%v", err)
	}
	if err := s.repo.ReplaceWorkingHours(ctx, hours); err != nil {
		return nil, err
	}
	out := append([]WorkingHours(nil), hours...)
	sortHours(out)
	return out, nil
}

// asSchedule reuses the weekly schedule rules: one row per day and open
// before close on open days.
func asSchedule(hours []WorkingHours) availability.WeeklySchedule {
	schedule := make(availability.WeeklySchedule, len(hours))
	for i, wh := range hours {
		schedule[i] = availability.DaySchedule{
			DayOfWeek: wh.DayOfWeek,
			IsWorking: wh.IsOpen,
			StartTime: wh.OpenTime,
			EndTime:   wh.CloseTime,
		}
	}
	return schedule
}

func sortHours(hours []WorkingHours) {
	sort.SliceStable(hours, func(i, j int) bool {
		return hours[i].DayOfWeek.Index() < hours[j].DayOfWeek.Index()
	})
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
