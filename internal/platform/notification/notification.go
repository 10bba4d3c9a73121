// Package notification sends patient e-mail and SMS messages rendered from
// bilingual templates, and keeps a bounded in-memory delivery log that staff
// can inspect and retry from.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Channel is the medium used to deliver a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

var ErrNotFound = errors.New("notification not found")

// Notification represents a single outbound message.
type Notification struct {
	ID           string            `json:"id"`
	Channel      Channel           `json:"channel"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Status       string            `json:"status"`
	Attempts     int               `json:"attempts"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender is the interface for sending SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Template defines a reusable notification template. Placeholders use the
// {{key}} form.
type Template struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Channel Channel `json:"channel"`
}

const (
	TemplateReminderEmail = "appointment-reminder-email"
	TemplateReminderSMS   = "appointment-reminder-sms"
	TemplateBookedSMS     = "appointment-booked-sms"
)

// TemplateID picks the language variant of a base template id. Arabic
// variants carry an "-ar" suffix; any other language uses the base.
func TemplateID(base, language string) string {
	if language == "ar" {
		return base + "-ar"
	}
	return base
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateReminderEmail,
			Name:    "Appointment Reminder",
			Subject: "Appointment reminder: {{date}} at {{time}}",
			Body:    "Dear {{patient_name}}, this is a reminder of your appointment with Dr. {{doctor_name}} at {{centre_name}} on {{date}} at {{time}}. Please call {{centre_phone}} if you cannot attend.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateReminderEmail + "-ar",
			Name:    "تذكير بالموعد",
			Subject: "تذكير بموعدك: {{date}} الساعة {{time}}",
			Body:    "عزيزي {{patient_name}}، نذكرك بموعدك مع د. {{doctor_name}} في {{centre_name}} بتاريخ {{date}} الساعة {{time}}. للاعتذار يرجى الاتصال على {{centre_phone}}.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateReminderSMS,
			Name:    "Appointment Reminder SMS",
			Body:    "{{centre_name}}: reminder of your appointment with Dr. {{doctor_name}} on {{date}} at {{time}}.",
			Channel: ChannelSMS,
		},
		{
			ID:      TemplateReminderSMS + "-ar",
			Name:    "تذكير بالموعد SMS",
			Body:    "{{centre_name}}: تذكير بموعدك مع د. {{doctor_name}} بتاريخ {{date}} الساعة {{time}}.",
			Channel: ChannelSMS,
		},
		{
			ID:      TemplateBookedSMS,
			Name:    "Appointment Booked SMS",
			Body:    "{{centre_name}}: your appointment with Dr. {{doctor_name}} is booked for {{date}} at {{time}}.",
			Channel: ChannelSMS,
		},
		{
			ID:      TemplateBookedSMS + "-ar",
			Name:    "تأكيد الحجز SMS",
			Body:    "{{centre_name}}: تم حجز موعدك مع د. {{doctor_name}} بتاريخ {{date}} الساعة {{time}}.",
			Channel: ChannelSMS,
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Lookup returns a copy of the template with the given id.
func (e *TemplateEngine) Lookup(templateID string) (Template, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.templates[templateID]
	if !ok {
		return Template{}, false
	}
	return *t, true
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	t, ok := e.Lookup(templateID)
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// DefaultHistorySize bounds the delivery log kept by a Manager.
const DefaultHistorySize = 1000

// Manager dispatches notifications through the channel senders and records
// each delivery attempt.
type Manager struct {
	emailSender EmailSender
	smsSender   SMSSender
	templates   *TemplateEngine

	mu            sync.RWMutex
	notifications map[string]*Notification
	order         []string
	historySize   int
}

func NewManager(email EmailSender, sms SMSSender, tpl *TemplateEngine) *Manager {
	if tpl == nil {
		tpl = NewTemplateEngine()
	}
	return &Manager{
		emailSender:   email,
		smsSender:     sms,
		templates:     tpl,
		notifications: make(map[string]*Notification),
		historySize:   DefaultHistorySize,
	}
}

func (m *Manager) deliver(ctx context.Context, n *Notification) error {
	switch n.Channel {
	case ChannelEmail:
		if m.emailSender == nil {
			return fmt.Errorf("email channel is not configured")
		}
		return m.emailSender.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
	case ChannelSMS:
		if m.smsSender == nil {
			return fmt.Errorf("sms channel is not configured")
		}
		return m.smsSender.SendSMS(ctx, n.Recipient, n.Body)
	default:
		return fmt.Errorf("unsupported notification channel: %s", n.Channel)
	}
}

func (m *Manager) record(n *Notification, err error) {
	n.Attempts++
	if err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		return
	}
	n.Status = StatusSent
	n.Error = ""
	sentAt := time.Now().UTC()
	n.SentAt = &sentAt
}

// Send dispatches n, assigns an id and keeps the outcome in the log. The
// returned error is the delivery error, if any.
func (m *Manager) Send(ctx context.Context, n *Notification) error {
	if n.Recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()
	n.Status = StatusPending

	sendErr := m.deliver(ctx, n)

	m.mu.Lock()
	m.record(n, sendErr)
	m.notifications[n.ID] = n
	m.order = append(m.order, n.ID)
	for len(m.order) > m.historySize {
		delete(m.notifications, m.order[0])
		m.order = m.order[1:]
	}
	m.mu.Unlock()

	return sendErr
}

// SendFromTemplate renders a template and sends the result over the
// template's channel.
func (m *Manager) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Notification, error) {
	tpl, ok := m.templates.Lookup(templateID)
	if !ok {
		return nil, fmt.Errorf("render template: template %q not found", templateID)
	}
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	n := &Notification{
		Channel:      tpl.Channel,
		Recipient:    recipient,
		Subject:      subject,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
	}
	if err := m.Send(ctx, n); err != nil {
		return n, err
	}
	return n, nil
}

func (m *Manager) Get(_ context.Context, id string) (*Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *n
	return &cp, nil
}

// List returns logged notifications, newest first, optionally filtered by
// recipient and status.
func (m *Manager) List(_ context.Context, recipient, status string, limit int) []*Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Notification
	for i := len(m.order) - 1; i >= 0; i-- {
		n := m.notifications[m.order[i]]
		if recipient != "" && n.Recipient != recipient {
			continue
		}
		if status != "" && n.Status != status {
			continue
		}
		cp := *n
		result = append(result, &cp)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}

// Retry re-sends a failed notification.
func (m *Manager) Retry(ctx context.Context, id string) (*Notification, error) {
	m.mu.RLock()
	n, ok := m.notifications[id]
	var cp Notification
	if ok {
		cp = *n
	}
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if cp.Status != StatusFailed {
		return nil, fmt.Errorf("notification %q is not in failed status (current: %s)", id, cp.Status)
	}

	sendErr := m.deliver(ctx, &cp)

	m.mu.Lock()
	m.record(n, sendErr)
	cp = *n
	m.mu.Unlock()

	return &cp, sendErr
}

// Stats returns counts of logged notifications grouped by status.
func (m *Manager) Stats(_ context.Context) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]int)
	for _, n := range m.notifications {
		stats[n.Status]++
	}
	return stats
}

// Templates lists registered templates sorted by id.
func (m *Manager) Templates() []Template {
	m.templates.mu.RLock()
	defer m.templates.mu.RUnlock()
	out := make([]Template, 0, len(m.templates.templates))
	for _, t := range m.templates.templates {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Handler exposes the delivery log over HTTP.
type Handler struct {
	manager *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{manager: mgr}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.List)
	g.GET("/notifications/stats", h.Stats)
	g.GET("/notifications/templates", h.ListTemplates)
	g.GET("/notifications/:id", h.Get)
	g.POST("/notifications/:id/retry", h.Retry)
}

func (h *Handler) List(c echo.Context) error {
	list := h.manager.List(c.Request().Context(), c.QueryParam("recipient"), c.QueryParam("status"), 100)
	if list == nil {
		list = []*Notification{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) Get(c echo.Context) error {
	n, err := h.manager.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Retry(c echo.Context) error {
	n, err := h.manager.Retry(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if n == nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	// A retry that fails again still returns the updated record.
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Stats(c.Request().Context()))
}

func (h *Handler) ListTemplates(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Templates())
}
