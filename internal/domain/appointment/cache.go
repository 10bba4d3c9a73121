package appointment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/availability"
	"github.com/clinic/clinic/internal/platform/cache"
)

const cachePrefix = "availability:"

// AvailabilityCache keeps resolved availability per doctor and date. A nil
// *AvailabilityCache is valid and caches nothing.
type AvailabilityCache struct {
	store  cache.Store
	ttl    time.Duration
	logger zerolog.Logger
}

func NewAvailabilityCache(store cache.Store, ttl time.Duration, logger zerolog.Logger) *AvailabilityCache {
	return &AvailabilityCache{store: store, ttl: ttl, logger: logger}
}

func doctorPrefix(doctorID uuid.UUID) string {
	return cachePrefix + doctorID.String() + ":"
}

func cacheKey(doctorID uuid.UUID, date string) string {
	return doctorPrefix(doctorID) + date
}

// Get returns the cached availability. Store errors count as a miss.
func (c *AvailabilityCache) Get(ctx context.Context, doctorID uuid.UUID, date string) (availability.Availability, bool) {
	if c == nil {
		return availability.Availability{}, false
	}
	raw, ok, err := c.store.Get(ctx, cacheKey(doctorID, date))
	if err != nil {
		c.logger.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("availability cache read failed")
		return availability.Availability{}, false
	}
	if !ok {
		return availability.Availability{}, false
	}
	var a availability.Availability
	if err := json.Unmarshal(raw, &a); err != nil {
		return availability.Availability{}, false
	}
	return a, true
}

func (c *AvailabilityCache) Set(ctx context.Context, doctorID uuid.UUID, date string, a availability.Availability) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, cacheKey(doctorID, date), raw, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("availability cache write failed")
	}
}

func (c *AvailabilityCache) InvalidateDate(ctx context.Context, doctorID uuid.UUID, date string) error {
	if c == nil {
		return nil
	}
	return c.store.Delete(ctx, cacheKey(doctorID, date))
}

func (c *AvailabilityCache) InvalidateDoctor(ctx context.Context, doctorID uuid.UUID) error {
	if c == nil {
		return nil
	}
	return c.store.DeletePrefix(ctx, doctorPrefix(doctorID))
}

func (c *AvailabilityCache) InvalidateAll(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.store.DeletePrefix(ctx, cachePrefix)
}
