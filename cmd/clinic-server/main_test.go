package main

import (
	"bytes"
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/availability"
	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/platform/blobstore"
	"github.com/clinic/clinic/internal/platform/cache"
	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/internal/platform/notification"
)

func TestPrintAvailability(t *testing.T) {
	a := availability.Availability{
		Date:          "2024-06-16",
		IsBookableDay: true,
		Slots: []availability.Slot{
			{Time: "09:00:00", Display: "09:00 AM", IsBooked: false},
			{Time: "09:30:00", Display: "09:30 AM", IsBooked: true},
		},
	}
	var buf bytes.Buffer
	printAvailability(&buf, a)
	out := buf.String()

	if !strings.Contains(out, "2024-06-16: 1 of 2 slots free") {
		t.Errorf("missing summary line:\n%s", out)
	}
	for _, want := range []string{"09:00:00", "09:30 AM", "booked", "free"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestPrintAvailability_NotWorking(t *testing.T) {
	var buf bytes.Buffer
	printAvailability(&buf, availability.Availability{Date: "2024-06-21", Slots: []availability.Slot{}})
	if strings.TrimSpace(buf.String()) != "2024-06-21: not a working day" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestMigrationsFS_Embedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS(""), ".")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sql int
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			sql++
		}
	}
	if sql < 3 {
		t.Errorf("expected the embedded migrations, found %d", sql)
	}
}

func TestFallbacks(t *testing.T) {
	cfg := &config.Config{}
	logger := zerolog.Nop()

	store, closeStore := availabilityStore(context.Background(), cfg, logger)
	defer closeStore()
	if _, ok := store.(*cache.MemoryStore); !ok {
		t.Errorf("expected in-memory cache, got %T", store)
	}

	pub, closePub := eventPublisher(cfg, logger)
	defer closePub()
	if _, ok := pub.(events.LogPublisher); !ok {
		t.Errorf("expected log publisher, got %T", pub)
	}

	if _, ok := blobStore(context.Background(), cfg, logger).(*blobstore.InMemoryBlobStore); !ok {
		t.Error("expected in-memory blob store")
	}

	email, sms := notificationSenders(cfg, logger)
	if _, ok := email.(notification.LogSender); !ok {
		t.Errorf("expected log e-mail sender, got %T", email)
	}
	if _, ok := sms.(notification.LogSender); !ok {
		t.Errorf("expected log sms sender, got %T", sms)
	}
}

func TestNotificationSenders_Configured(t *testing.T) {
	cfg := &config.Config{
		SendGridAPIKey:   "SG.key",
		MailFromAddress:  "clinic@example.com",
		TwilioAccountSID: "AC123",
		TwilioAuthToken:  "token",
		TwilioFromNumber: "+15550001111",
	}
	email, sms := notificationSenders(cfg, zerolog.Nop())
	if _, ok := email.(*notification.SendGridSender); !ok {
		t.Errorf("expected sendgrid sender, got %T", email)
	}
	if _, ok := sms.(*notification.TwilioSender); !ok {
		t.Errorf("expected twilio sender, got %T", sms)
	}
}
