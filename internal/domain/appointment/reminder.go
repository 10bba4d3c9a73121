package appointment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/settings"
	"github.com/clinic/clinic/internal/platform/notification"
)

// DefaultReminderSpec is the sweep schedule used when none is configured.
const DefaultReminderSpec = "@every 5m"

// CenterSource provides the centre details quoted in messages.
type CenterSource interface {
	GetCenter(ctx context.Context) (*settings.CenterSettings, error)
}

// TemplateSender renders and sends a notification template.
type TemplateSender interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

// ReminderWorker sends the first and second appointment reminders on a cron
// schedule, and the booking confirmation SMS.
type ReminderWorker struct {
	repo     Repository
	rules    RulesSource
	center   CenterSource
	sender   TemplateSender
	spec     string
	logger   zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func NewReminderWorker(repo Repository, rules RulesSource, center CenterSource, sender TemplateSender, spec string, logger zerolog.Logger) *ReminderWorker {
	if spec == "" {
		spec = DefaultReminderSpec
	}
	return &ReminderWorker{
		repo:   repo,
		rules:  rules,
		center: center,
		sender: sender,
		spec:   spec,
		logger: logger.With().Str("component", "reminders").Logger(),
		now:    time.Now,
	}
}

// Run sweeps on the cron schedule until ctx is done, then waits for the
// running sweep and any pending confirmations.
func (w *ReminderWorker) Run(ctx context.Context) error {
	clog := cronLogger{w.logger}
	c := cron.New(cron.WithLogger(clog), cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)))
	if _, err := c.AddFunc(w.spec, func() {
		n, err := w.Sweep(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("reminder sweep failed")
			return
		}
		if n > 0 {
			w.logger.Info().Int("sent", n).Msg("reminder sweep complete")
		}
	}); err != nil {
		return fmt.Errorf("schedule reminders %q: %w", w.spec, err)
	}

	c.Start()
	w.logger.Info().Str("schedule", w.spec).Msg("reminder worker started")
	<-ctx.Done()
	<-c.Stop().Done()
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.inflight.Wait()
	w.logger.Info().Msg("reminder worker stopped")
	return nil
}

// Sweep sends every reminder that is due now and returns how many
// appointments were reminded. The second stage runs first so an appointment
// booked inside both windows gets one reminder, not two.
func (w *ReminderWorker) Sweep(ctx context.Context) (int, error) {
	rules, err := w.rules.Rules(ctx)
	if err != nil {
		return 0, err
	}
	if !rules.EmailEnabled && !rules.SMSEnabled {
		return 0, nil
	}
	loc := rules.Location
	if loc == nil {
		loc = time.UTC
	}
	center := w.centerDetails(ctx, rules.Language)
	now := w.now().In(loc)

	sent := 0
	stages := []struct {
		stage  Stage
		window time.Duration
	}{
		{SecondReminder, rules.SecondReminder},
		{FirstReminder, rules.FirstReminder},
	}
	for _, st := range stages {
		if st.window <= 0 {
			continue
		}
		due, err := w.repo.DueReminders(ctx, loc.String(), now, now.Add(st.window), st.stage)
		if err != nil {
			return sent, fmt.Errorf("load %s reminders: %w", st.stage, err)
		}
		for _, d := range due {
			if !w.remind(ctx, rules, center, d) {
				continue
			}
			if err := w.repo.MarkReminderSent(ctx, d.ID, st.stage, w.now()); err != nil {
				w.logger.Error().Err(err).Str("appointment_id", d.ID.String()).Msg("failed to record reminder")
				continue
			}
			sent++
		}
	}
	return sent, nil
}

// remind sends the reminder over the enabled channels. It reports whether
// the stage should be recorded: a channel succeeded or nothing could be sent.
func (w *ReminderWorker) remind(ctx context.Context, rules settings.BookingRules, center map[string]string, d *Due) bool {
	data := w.templateData(rules, center, d)
	attempted, delivered := 0, 0

	if rules.EmailEnabled && d.PatientEmail != nil && *d.PatientEmail != "" {
		attempted++
		if w.send(ctx, notification.TemplateID(notification.TemplateReminderEmail, rules.Language), data, *d.PatientEmail, d.ID) {
			delivered++
		}
	}
	if rules.SMSEnabled && d.PatientPhone != "" {
		attempted++
		if w.send(ctx, notification.TemplateID(notification.TemplateReminderSMS, rules.Language), data, d.PatientPhone, d.ID) {
			delivered++
		}
	}
	return attempted == 0 || delivered > 0
}

func (w *ReminderWorker) send(ctx context.Context, templateID string, data map[string]string, recipient string, id uuid.UUID) bool {
	if _, err := w.sender.SendFromTemplate(ctx, templateID, data, recipient); err != nil {
		w.logger.Warn().Err(err).Str("appointment_id", id.String()).Str("template", templateID).Msg("notification delivery failed")
		return false
	}
	return true
}

// BookingConfirmed sends the booking SMS in the background. Once Run has
// returned, confirmations are dropped.
func (w *ReminderWorker) BookingConfirmed(ctx context.Context, appointmentID uuid.UUID) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Warn().Str("appointment_id", appointmentID.String()).Msg("reminder worker stopped, booking confirmation dropped")
		return
	}
	w.inflight.Add(1)
	w.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer w.inflight.Done()
		if err := w.confirm(ctx, appointmentID); err != nil {
			w.logger.Warn().Err(err).Str("appointment_id", appointmentID.String()).Msg("booking confirmation not sent")
		}
	}()
}

func (w *ReminderWorker) confirm(ctx context.Context, appointmentID uuid.UUID) error {
	rules, err := w.rules.Rules(ctx)
	if err != nil {
		return err
	}
	if !rules.SMSEnabled {
		return nil
	}
	d, err := w.repo.GetDue(ctx, appointmentID)
	if err != nil {
		return err
	}
	if d.PatientPhone == "" {
		return nil
	}
	data := w.templateData(rules, w.centerDetails(ctx, rules.Language), d)
	_, err = w.sender.SendFromTemplate(ctx, notification.TemplateID(notification.TemplateBookedSMS, rules.Language), data, d.PatientPhone)
	return err
}

func (w *ReminderWorker) centerDetails(ctx context.Context, language string) map[string]string {
	out := map[string]string{"centre_name": "", "centre_phone": ""}
	if w.center == nil {
		return out
	}
	c, err := w.center.GetCenter(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("failed to load centre settings")
		return out
	}
	out["centre_name"] = c.NameAr
	if language != "ar" && c.NameEn != nil && *c.NameEn != "" {
		out["centre_name"] = *c.NameEn
	}
	if c.Phone != nil {
		out["centre_phone"] = *c.Phone
	}
	return out
}

func (w *ReminderWorker) templateData(rules settings.BookingRules, center map[string]string, d *Due) map[string]string {
	data := map[string]string{
		"patient_name": d.PatientName,
		"doctor_name":  d.DoctorName,
		"date":         d.AppointmentDate,
		"time":         d.AppointmentTime,
	}
	if display, err := rules.Options.Markers.ToDisplay(d.AppointmentTime); err == nil {
		data["time"] = display
	}
	for k, v := range center {
		data[k] = v
	}
	return data
}

// cronLogger routes cron's own logging through zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
