package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/availability"
	"github.com/clinic/clinic/internal/platform/cache"
)

func TestAvailabilityCache(t *testing.T) {
	ctx := context.Background()
	c := NewAvailabilityCache(cache.NewMemoryStore(), time.Minute, zerolog.Nop())
	docA, docB := uuid.New(), uuid.New()
	a := availability.Availability{Date: "2024-06-16", IsBookableDay: true, Slots: []availability.Slot{{Time: "09:00:00", Display: "09:00 ص"}}}

	c.Set(ctx, docA, "2024-06-16", a)
	c.Set(ctx, docA, "2024-06-17", a)
	c.Set(ctx, docB, "2024-06-16", a)

	got, ok := c.Get(ctx, docA, "2024-06-16")
	if !ok || len(got.Slots) != 1 || got.Slots[0].Display != "09:00 ص" {
		t.Fatalf("expected cached availability, got %+v %v", got, ok)
	}

	c.InvalidateDate(ctx, docA, "2024-06-16")
	if _, ok := c.Get(ctx, docA, "2024-06-16"); ok {
		t.Error("expected date entry invalidated")
	}
	if _, ok := c.Get(ctx, docA, "2024-06-17"); !ok {
		t.Error("expected other dates kept")
	}

	c.InvalidateDoctor(ctx, docA)
	if _, ok := c.Get(ctx, docA, "2024-06-17"); ok {
		t.Error("expected doctor entries invalidated")
	}
	if _, ok := c.Get(ctx, docB, "2024-06-16"); !ok {
		t.Error("expected other doctors kept")
	}

	c.InvalidateAll(ctx)
	if _, ok := c.Get(ctx, docB, "2024-06-16"); ok {
		t.Error("expected everything invalidated")
	}
}

func TestAvailabilityCache_Nil(t *testing.T) {
	var c *AvailabilityCache
	ctx := context.Background()
	c.Set(ctx, uuid.New(), "2024-06-16", availability.Availability{})
	if _, ok := c.Get(ctx, uuid.New(), "2024-06-16"); ok {
		t.Error("nil cache should always miss")
	}
	if err := c.InvalidateAll(ctx); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
