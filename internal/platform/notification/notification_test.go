package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
)

func reminderData() map[string]string {
	return map[string]string{
		"patient_name": "Sara Ali",
		"doctor_name":  "Khalid",
		"centre_name":  "Al Noor Clinic",
		"centre_phone": "+966500000000",
		"date":         "2024-01-03",
		"time":         "09:00 ص",
	}
}

// ---------------------------------------------------------------------------
// Template Engine Tests
// ---------------------------------------------------------------------------

func TestTemplateEngine_RegisterAndRender(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{
		ID:      "test-tpl",
		Name:    "Test Template",
		Subject: "Hello {{name}}",
		Body:    "Dear {{name}}, your code is {{code}}.",
		Channel: ChannelEmail,
	})

	subject, body, err := eng.Render("test-tpl", map[string]string{
		"name": "Alice",
		"code": "1234",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Hello Alice" {
		t.Errorf("subject = %q, want %q", subject, "Hello Alice")
	}
	if body != "Dear Alice, your code is 1234." {
		t.Errorf("body = %q, want %q", body, "Dear Alice, your code is 1234.")
	}
}

func TestTemplateEngine_RenderMissing(t *testing.T) {
	eng := NewTemplateEngine()
	if _, _, err := eng.Render("nonexistent", nil); err == nil {
		t.Fatal("expected error for missing template, got nil")
	}
}

func TestTemplateEngine_BuiltInTemplates(t *testing.T) {
	eng := NewTemplateEngine()
	for _, base := range []string{TemplateReminderEmail, TemplateReminderSMS, TemplateBookedSMS} {
		for _, lang := range []string{"en", "ar"} {
			id := TemplateID(base, lang)
			_, body, err := eng.Render(id, reminderData())
			if err != nil {
				t.Errorf("template %s: unexpected error: %v", id, err)
				continue
			}
			if strings.Contains(body, "{{") {
				t.Errorf("template %s left placeholders: %s", id, body)
			}
			if !strings.Contains(body, "09:00 ص") {
				t.Errorf("template %s: expected time in body, got %s", id, body)
			}
		}
	}
}

func TestTemplateEngine_RenderMissingKey(t *testing.T) {
	eng := NewTemplateEngine()
	_, body, err := eng.Render(TemplateReminderSMS, map[string]string{"centre_name": "Al Noor"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, "{{doctor_name}}") {
		t.Errorf("expected unreplaced placeholder to remain, got %s", body)
	}
}

func TestTemplateID(t *testing.T) {
	if got := TemplateID(TemplateReminderSMS, "ar"); got != "appointment-reminder-sms-ar" {
		t.Errorf("unexpected id %s", got)
	}
	if got := TemplateID(TemplateReminderSMS, "en"); got != TemplateReminderSMS {
		t.Errorf("unexpected id %s", got)
	}
	if got := TemplateID(TemplateReminderSMS, ""); got != TemplateReminderSMS {
		t.Errorf("unexpected id %s", got)
	}
}

// ---------------------------------------------------------------------------
// Manager Tests
// ---------------------------------------------------------------------------

func TestManager_SendEmail(t *testing.T) {
	email := &MockEmailSender{}
	mgr := NewManager(email, &MockSMSSender{}, nil)

	n := &Notification{Channel: ChannelEmail, Recipient: "sara@example.com", Subject: "Hi", Body: "Body"}
	if err := mgr.Send(context.Background(), n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.ID == "" || n.Status != StatusSent || n.SentAt == nil || n.Attempts != 1 {
		t.Errorf("unexpected notification state %+v", n)
	}
	calls := email.Calls()
	if len(calls) != 1 || calls[0].To != "sara@example.com" {
		t.Errorf("unexpected email calls %+v", calls)
	}
}

func TestManager_SendSMS(t *testing.T) {
	sms := &MockSMSSender{}
	mgr := NewManager(&MockEmailSender{}, sms, nil)

	n := &Notification{Channel: ChannelSMS, Recipient: "+966500000001", Body: "Reminder"}
	if err := mgr.Send(context.Background(), n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls := sms.Calls(); len(calls) != 1 || calls[0].Body != "Reminder" {
		t.Errorf("unexpected sms calls %+v", calls)
	}
}

func TestManager_SendFailed(t *testing.T) {
	email := &MockEmailSender{ShouldFail: true, FailError: "smtp down"}
	mgr := NewManager(email, nil, nil)

	n := &Notification{Channel: ChannelEmail, Recipient: "a@example.com", Body: "x"}
	if err := mgr.Send(context.Background(), n); err == nil {
		t.Fatal("expected error")
	}
	if n.Status != StatusFailed || n.Error != "smtp down" {
		t.Errorf("unexpected state %+v", n)
	}
}

func TestManager_SendRequiresRecipient(t *testing.T) {
	mgr := NewManager(&MockEmailSender{}, &MockSMSSender{}, nil)
	if err := mgr.Send(context.Background(), &Notification{Channel: ChannelSMS, Body: "x"}); err == nil {
		t.Fatal("expected error for missing recipient")
	}
}

func TestManager_UnconfiguredChannel(t *testing.T) {
	mgr := NewManager(nil, nil, nil)
	n := &Notification{Channel: ChannelSMS, Recipient: "+9665", Body: "x"}
	if err := mgr.Send(context.Background(), n); err == nil {
		t.Fatal("expected error for unconfigured channel")
	}
	if n.Status != StatusFailed {
		t.Errorf("expected failed, got %s", n.Status)
	}
}

func TestManager_SendFromTemplate(t *testing.T) {
	sms := &MockSMSSender{}
	mgr := NewManager(&MockEmailSender{}, sms, nil)

	n, err := mgr.SendFromTemplate(context.Background(), TemplateID(TemplateReminderSMS, "ar"), reminderData(), "+966500000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Channel != ChannelSMS {
		t.Errorf("expected sms channel from template, got %s", n.Channel)
	}
	calls := sms.Calls()
	if len(calls) != 1 || !strings.Contains(calls[0].Body, "Al Noor Clinic") {
		t.Errorf("unexpected sms calls %+v", calls)
	}
}

func TestManager_SendFromTemplateMissing(t *testing.T) {
	mgr := NewManager(&MockEmailSender{}, &MockSMSSender{}, nil)
	n, err := mgr.SendFromTemplate(context.Background(), "nope", nil, "a@example.com")
	if err == nil || n != nil {
		t.Fatalf("expected render error, got n=%v err=%v", n, err)
	}
}

func TestManager_GetNotFound(t *testing.T) {
	mgr := NewManager(nil, nil, nil)
	if _, err := mgr.Get(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_ListFilters(t *testing.T) {
	email := &MockEmailSender{}
	mgr := NewManager(email, &MockSMSSender{}, nil)
	ctx := context.Background()

	mgr.Send(ctx, &Notification{Channel: ChannelEmail, Recipient: "a@example.com", Body: "1"})
	mgr.Send(ctx, &Notification{Channel: ChannelEmail, Recipient: "b@example.com", Body: "2"})
	mgr.Send(ctx, &Notification{Channel: ChannelEmail, Recipient: "a@example.com", Body: "3"})
	email.ShouldFail = true
	mgr.Send(ctx, &Notification{Channel: ChannelEmail, Recipient: "a@example.com", Body: "4"})

	list := mgr.List(ctx, "a@example.com", "", 0)
	if len(list) != 3 {
		t.Fatalf("expected 3 notifications for a, got %d", len(list))
	}
	if list[0].Body != "4" {
		t.Errorf("expected newest first, got %s", list[0].Body)
	}
	if failed := mgr.List(ctx, "", StatusFailed, 0); len(failed) != 1 {
		t.Errorf("expected 1 failed, got %d", len(failed))
	}
	if limited := mgr.List(ctx, "", "", 2); len(limited) != 2 {
		t.Errorf("expected limit 2, got %d", len(limited))
	}
}

func TestManager_HistoryBounded(t *testing.T) {
	mgr := NewManager(&MockEmailSender{}, nil, nil)
	mgr.historySize = 3
	ctx := context.Background()
	var first string
	for i := 0; i < 5; i++ {
		n := &Notification{Channel: ChannelEmail, Recipient: "a@example.com", Body: fmt.Sprint(i)}
		mgr.Send(ctx, n)
		if i == 0 {
			first = n.ID
		}
	}
	if got := len(mgr.List(ctx, "", "", 0)); got != 3 {
		t.Errorf("expected 3 retained, got %d", got)
	}
	if _, err := mgr.Get(ctx, first); err != ErrNotFound {
		t.Errorf("expected oldest to be evicted, got %v", err)
	}
}

func TestManager_Retry(t *testing.T) {
	email := &MockEmailSender{ShouldFail: true, FailError: "temporary"}
	mgr := NewManager(email, nil, nil)
	ctx := context.Background()

	n := &Notification{Channel: ChannelEmail, Recipient: "a@example.com", Body: "x"}
	mgr.Send(ctx, n)

	email.ShouldFail = false
	got, err := mgr.Retry(ctx, n.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusSent || got.Attempts != 2 || got.Error != "" {
		t.Errorf("unexpected state after retry %+v", got)
	}
}

func TestManager_RetryNonFailed(t *testing.T) {
	mgr := NewManager(&MockEmailSender{}, nil, nil)
	ctx := context.Background()
	n := &Notification{Channel: ChannelEmail, Recipient: "a@example.com", Body: "x"}
	mgr.Send(ctx, n)

	if _, err := mgr.Retry(ctx, n.ID); err == nil {
		t.Fatal("expected error retrying a sent notification")
	}
	if _, err := mgr.Retry(ctx, "missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_Stats(t *testing.T) {
	email := &MockEmailSender{}
	mgr := NewManager(email, nil, nil)
	ctx := context.Background()
	mgr.Send(ctx, &Notification{Channel: ChannelEmail, Recipient: "a", Body: "x"})
	mgr.Send(ctx, &Notification{Channel: ChannelEmail, Recipient: "b", Body: "x"})
	email.ShouldFail = true
	mgr.Send(ctx, &Notification{Channel: ChannelEmail, Recipient: "c", Body: "x"})

	stats := mgr.Stats(ctx)
	if stats[StatusSent] != 2 || stats[StatusFailed] != 1 {
		t.Errorf("unexpected stats %v", stats)
	}
}

func TestManager_ConcurrentSend(t *testing.T) {
	mgr := NewManager(&MockEmailSender{}, &MockSMSSender{}, nil)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ch := ChannelEmail
			if i%2 == 0 {
				ch = ChannelSMS
			}
			mgr.Send(ctx, &Notification{Channel: ch, Recipient: fmt.Sprintf("r%d", i), Body: "x"})
		}(i)
	}
	wg.Wait()
	if got := mgr.Stats(ctx)[StatusSent]; got != 50 {
		t.Errorf("expected 50 sent, got %d", got)
	}
}

// ---------------------------------------------------------------------------
// Sender helpers
// ---------------------------------------------------------------------------

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"+966 50 000 0000":  "+966500000000",
		"00966-50-000-0000": "+966500000000",
		"(050) 000.0000":    "0500000000",
	}
	for in, want := range tests {
		if got := NormalizePhone(in); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTwilioSender_RejectsLocalNumber(t *testing.T) {
	s := NewTwilioSender("AC123", "token", "+15550000000")
	if err := s.SendSMS(context.Background(), "0500000000", "x"); err == nil {
		t.Fatal("expected error for non E.164 number")
	}
}

func TestHTMLBody(t *testing.T) {
	got := htmlBody("a < b\nc")
	if got != `<p dir="auto">a &lt; b<br>c</p>` {
		t.Errorf("unexpected html %s", got)
	}
}

// ---------------------------------------------------------------------------
// Handler Tests
// ---------------------------------------------------------------------------

func setupHandler() (*Handler, *Manager, *MockEmailSender) {
	email := &MockEmailSender{}
	mgr := NewManager(email, &MockSMSSender{}, nil)
	return NewHandler(mgr), mgr, email
}

func TestHandler_List(t *testing.T) {
	h, mgr, _ := setupHandler()
	mgr.Send(context.Background(), &Notification{Channel: ChannelEmail, Recipient: "a@example.com", Body: "x"})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/notifications?recipient=a@example.com", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var list []Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 notification, got %d", len(list))
	}
}

func TestHandler_ListEmpty(t *testing.T) {
	h, _, _ := setupHandler()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/notifications", nil), rec)

	h.List(c)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestHandler_GetNotFound(t *testing.T) {
	h, _, _ := setupHandler()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("missing")

	err := h.Get(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_Retry(t *testing.T) {
	h, mgr, email := setupHandler()
	email.ShouldFail = true
	email.FailError = "down"
	n := &Notification{Channel: ChannelEmail, Recipient: "a@example.com", Body: "x"}
	mgr.Send(context.Background(), n)
	email.ShouldFail = false

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(n.ID)

	if err := h.Retry(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Notification
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != StatusSent {
		t.Errorf("expected sent after retry, got %s", got.Status)
	}
}

func TestHandler_RetryConflict(t *testing.T) {
	h, mgr, _ := setupHandler()
	n := &Notification{Channel: ChannelEmail, Recipient: "a@example.com", Body: "x"}
	mgr.Send(context.Background(), n)

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(n.ID)

	err := h.Retry(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusConflict {
		t.Errorf("expected 409, got %v", err)
	}
}

func TestHandler_Stats(t *testing.T) {
	h, mgr, _ := setupHandler()
	mgr.Send(context.Background(), &Notification{Channel: ChannelEmail, Recipient: "a", Body: "x"})

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	if err := h.Stats(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var stats map[string]int
	json.Unmarshal(rec.Body.Bytes(), &stats)
	if stats[StatusSent] != 1 {
		t.Errorf("unexpected stats %v", stats)
	}
}

func TestHandler_ListTemplates(t *testing.T) {
	h, _, _ := setupHandler()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	h.ListTemplates(c)

	var tpls []Template
	json.Unmarshal(rec.Body.Bytes(), &tpls)
	if len(tpls) != 6 {
		t.Errorf("expected 6 built-in templates, got %d", len(tpls))
	}
}
