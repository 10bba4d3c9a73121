package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/availability"
	"github.com/clinic/clinic/internal/platform/blobstore"
)

// -- Mock Repository --

type mockRepo struct {
	center *CenterSettings
	system *SystemSettings
	hours  []WorkingHours
	err    error
}

func (m *mockRepo) GetCenter(context.Context) (*CenterSettings, error) {
	if m.center == nil {
		return nil, ErrNotFound
	}
	cp := *m.center
	return &cp, nil
}

func (m *mockRepo) SaveCenter(_ context.Context, c *CenterSettings) error {
	c.UpdatedAt = time.Now()
	cp := *c
	m.center = &cp
	return nil
}

func (m *mockRepo) GetSystem(context.Context) (*SystemSettings, error) {
	if m.system == nil {
		return nil, ErrNotFound
	}
	cp := *m.system
	return &cp, nil
}

func (m *mockRepo) SaveSystem(_ context.Context, s *SystemSettings) error {
	if m.err != nil {
		return m.err
	}
	s.UpdatedAt = time.Now()
	cp := *s
	m.system = &cp
	return nil
}

func (m *mockRepo) GetWorkingHours(context.Context) ([]WorkingHours, error) {
	return append([]WorkingHours(nil), m.hours...), nil
}

func (m *mockRepo) ReplaceWorkingHours(_ context.Context, hours []WorkingHours) error {
	m.hours = append([]WorkingHours(nil), hours...)
	return nil
}

type mockInvalidator struct{ calls int }

func (m *mockInvalidator) InvalidateAll(context.Context) error {
	m.calls++
	return nil
}

func testDefaults() Defaults {
	grid, _ := availability.NewGrid("09:00", "12:00", 30*time.Minute)
	return Defaults{
		Options:  availability.Options{Grid: grid, NoSchedule: availability.NoScheduleBlocked},
		Location: time.UTC,
	}
}

func newTestService() (*Service, *mockRepo, *blobstore.InMemoryBlobStore, *mockInvalidator) {
	repo := &mockRepo{}
	blobs := blobstore.NewInMemoryBlobStore()
	inv := &mockInvalidator{}
	s := NewService(repo, blobs, testDefaults(), zerolog.Nop())
	s.SetInvalidator(inv)
	return s, repo, blobs, inv
}

func validSystem() *SystemSettings {
	return &SystemSettings{
		DateFormat:                 "dd/MM/yyyy",
		DefaultAppointmentDuration: 15,
		FirstReminderHours:         24,
		SecondReminderHours:        2,
		Language:                   "en",
		MinNoticeHours:             3,
		SameDayBooking:             false,
		TimeFormat:                 "24h",
		Timezone:                   "Asia/Riyadh",
		SlotGridStart:              "10:00",
		SlotGridEnd:                "11:00",
		DefaultWhenNoSchedule:      "bookable",
		EmailEnabled:               true,
	}
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func multipartBody(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(content)
	w.Close()
	return &buf, w.FormDataContentType()
}

func fileHeader(t *testing.T, content []byte) *multipart.FileHeader {
	t.Helper()
	body, ct := multipartBody(t, "logo", "logo.png", content)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", ct)
	if err := req.ParseMultipartForm(10 << 20); err != nil {
		t.Fatalf("parse multipart: %v", err)
	}
	return req.MultipartForm.File["logo"][0]
}

// -- Rules --

func TestService_Rules_DefaultsWhenMissing(t *testing.T) {
	s, _, _, _ := newTestService()
	rules, err := s.Rules(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rules.Options.Grid.Start.HHMM() != "09:00" || rules.Options.Grid.End.HHMM() != "12:00" {
		t.Errorf("expected configured grid, got %+v", rules.Options.Grid)
	}
	if rules.Options.NoSchedule != availability.NoScheduleBlocked {
		t.Errorf("expected configured policy, got %s", rules.Options.NoSchedule)
	}
	if !rules.SameDayBooking || rules.MinNotice != 0 {
		t.Errorf("unexpected booking rules %+v", rules)
	}
	if rules.Location != time.UTC {
		t.Errorf("expected UTC, got %s", rules.Location)
	}
}

func TestService_Rules_FromStoredSettings(t *testing.T) {
	s, repo, _, _ := newTestService()
	repo.system = validSystem()

	rules, err := s.Rules(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rules.Options.Grid.Step != 15*time.Minute || rules.Options.Grid.Start.HHMM() != "10:00" {
		t.Errorf("expected stored grid, got %+v", rules.Options.Grid)
	}
	if rules.Options.NoSchedule != availability.NoScheduleBookable {
		t.Errorf("expected bookable policy, got %s", rules.Options.NoSchedule)
	}
	if rules.MinNotice != 3*time.Hour || rules.SameDayBooking {
		t.Errorf("unexpected notice rules %+v", rules)
	}
	if rules.Location.String() != "Asia/Riyadh" {
		t.Errorf("expected Asia/Riyadh, got %s", rules.Location)
	}
	if rules.FirstReminder != 24*time.Hour || rules.SecondReminder != 2*time.Hour || !rules.EmailEnabled {
		t.Errorf("unexpected reminder rules %+v", rules)
	}
}

func TestService_Rules_InvalidStoredGridFallsBack(t *testing.T) {
	s, repo, _, _ := newTestService()
	sys := validSystem()
	sys.SlotGridStart = "18:00"
	sys.Timezone = "Nowhere/Land"
	repo.system = sys

	rules, err := s.Rules(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rules.Options.Grid.Start.HHMM() != "09:00" {
		t.Errorf("expected configured grid, got %+v", rules.Options.Grid)
	}
	if rules.Location != time.UTC {
		t.Errorf("expected configured location, got %s", rules.Location)
	}
}

// -- System --

func TestService_GetSystem_Defaults(t *testing.T) {
	s, _, _, _ := newTestService()
	sys, err := s.GetSystem(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sys.SlotGridStart != "09:00" || sys.DefaultAppointmentDuration != 30 || sys.DefaultWhenNoSchedule != "blocked" {
		t.Errorf("unexpected defaults %+v", sys)
	}
}

func TestService_UpdateSystem(t *testing.T) {
	s, repo, _, inv := newTestService()
	if err := s.UpdateSystem(context.Background(), validSystem()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.system == nil {
		t.Fatal("expected settings saved")
	}
	if inv.calls != 1 {
		t.Errorf("expected cache invalidated once, got %d", inv.calls)
	}
}

func TestService_UpdateSystem_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *SystemSettings)
	}{
		{"bad language", func(s *SystemSettings) { s.Language = "fr" }},
		{"bad time format", func(s *SystemSettings) { s.TimeFormat = "ampm" }},
		{"bad date format", func(s *SystemSettings) { s.DateFormat = "yy" }},
		{"bad timezone", func(s *SystemSettings) { s.Timezone = "Mars/Base" }},
		{"bad clock", func(s *SystemSettings) { s.SlotGridStart = "9am" }},
		{"inverted grid", func(s *SystemSettings) { s.SlotGridStart = "12:00" }},
		{"tiny duration", func(s *SystemSettings) { s.DefaultAppointmentDuration = 1 }},
		{"bad policy", func(s *SystemSettings) { s.DefaultWhenNoSchedule = "maybe" }},
		{"negative notice", func(s *SystemSettings) { s.MinNoticeHours = -1 }},
		{"reminder order", func(s *SystemSettings) { s.SecondReminderHours = 48 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, repo, _, inv := newTestService()
			sys := validSystem()
			tt.mutate(sys)
			if err := s.UpdateSystem(context.Background(), sys); err == nil {
				t.Error("expected validation error")
			}
			if repo.system != nil || inv.calls != 0 {
				t.Error("expected nothing saved")
			}
		})
	}
}

// -- Centre --

func TestService_UpdateCenter_KeepsLogo(t *testing.T) {
	s, repo, _, _ := newTestService()
	logo := "/api/v1/files/logos/a.png"
	repo.center = &CenterSettings{NameAr: "المركز", LogoURL: &logo}

	website := "https://clinic.example"
	c := &CenterSettings{NameAr: " مركز الشفاء ", Website: &website, City: strPtr(" ")}
	if err := s.UpdateCenter(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.center.LogoURL == nil || *repo.center.LogoURL != logo {
		t.Errorf("expected logo kept, got %v", repo.center.LogoURL)
	}
	if repo.center.NameAr != "مركز الشفاء" || repo.center.City != nil {
		t.Errorf("unexpected centre %+v", repo.center)
	}
}

func TestService_UpdateCenter_Validation(t *testing.T) {
	s, _, _, _ := newTestService()
	if err := s.UpdateCenter(context.Background(), &CenterSettings{Email: strPtr("nope")}); err == nil {
		t.Error("expected email validation error")
	}
	if err := s.UpdateCenter(context.Background(), &CenterSettings{Website: strPtr("not a url")}); err == nil {
		t.Error("expected url validation error")
	}
}

func TestService_UploadLogo(t *testing.T) {
	s, repo, blobs, _ := newTestService()
	ctx := context.Background()

	first, err := s.UploadLogo(ctx, fileHeader(t, pngHeader))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.LogoURL == nil || !strings.HasPrefix(*first.LogoURL, "/api/v1/files/logos/") {
		t.Fatalf("unexpected logo url %v", first.LogoURL)
	}
	firstKey, _ := blobstore.KeyFromURL(*first.LogoURL)

	second, err := s.UploadLogo(ctx, fileHeader(t, pngHeader))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *repo.center.LogoURL != *second.LogoURL {
		t.Errorf("expected stored logo to be the new one")
	}
	if _, _, err := blobs.Get(ctx, firstKey); !errors.Is(err, blobstore.ErrBlobNotFound) {
		t.Errorf("expected previous logo removed, got %v", err)
	}
}

func TestService_UploadLogo_RejectsNonImage(t *testing.T) {
	s, repo, _, _ := newTestService()
	_, err := s.UploadLogo(context.Background(), fileHeader(t, []byte("<svg onload=alert(1)>")))
	if !errors.Is(err, blobstore.ErrInvalidContentType) {
		t.Errorf("expected ErrInvalidContentType, got %v", err)
	}
	if repo.center != nil {
		t.Error("expected centre untouched")
	}
}

// -- Working hours --

func TestService_WorkingHours(t *testing.T) {
	s, _, _, _ := newTestService()
	ctx := context.Background()
	in := []WorkingHours{
		{DayOfWeek: availability.Friday, IsOpen: false},
		{DayOfWeek: availability.Monday, IsOpen: true, OpenTime: "08:00", CloseTime: "16:00"},
		{DayOfWeek: availability.Saturday, IsOpen: true, OpenTime: "09:00", CloseTime: "13:00"},
	}
	saved, err := s.ReplaceWorkingHours(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved[0].DayOfWeek != availability.Saturday || saved[2].DayOfWeek != availability.Friday {
		t.Errorf("expected Saturday-first order, got %+v", saved)
	}

	got, err := s.GetWorkingHours(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[1].DayOfWeek != availability.Monday {
		t.Errorf("unexpected hours %+v", got)
	}
}

func TestService_WorkingHours_Validation(t *testing.T) {
	s, _, _, _ := newTestService()
	tests := [][]WorkingHours{
		{{DayOfWeek: "someday"}},
		{{DayOfWeek: availability.Monday, IsOpen: true, OpenTime: "16:00", CloseTime: "08:00"}},
		{{DayOfWeek: availability.Monday}, {DayOfWeek: availability.Monday}},
	}
	for i, hours := range tests {
		if _, err := s.ReplaceWorkingHours(context.Background(), hours); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

// -- Handlers --

func TestHandler_UploadLogo(t *testing.T) {
	s, _, _, _ := newTestService()
	h := NewHandler(s)
	e := echo.New()

	tests := []struct {
		name    string
		content []byte
		want    int
	}{
		{"png", pngHeader, http.StatusOK},
		{"text", []byte("hello"), http.StatusUnsupportedMediaType},
		{"too large", append(append([]byte{}, pngHeader...), make([]byte, blobstore.MaxImageSize)...), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, "logo", "logo.png", tt.content)
			req := httptest.NewRequest(http.MethodPost, "/", body)
			req.Header.Set(echo.HeaderContentType, ct)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := h.UploadLogo(c)
			code := rec.Code
			if he, ok := err.(*echo.HTTPError); ok {
				code = he.Code
			}
			if code != tt.want {
				t.Errorf("expected %d, got %d (%v)", tt.want, code, err)
			}
		})
	}
}

func TestHandler_UploadLogo_MissingFile(t *testing.T) {
	s, _, _, _ := newTestService()
	h := NewHandler(s)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.UploadLogo(c); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestHandler_UpdateSystem(t *testing.T) {
	s, _, _, _ := newTestService()
	h := NewHandler(s)
	body, _ := json.Marshal(validSystem())
	req := httptest.NewRequest(http.MethodPut, "/", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.UpdateSystem(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_UpdateSystem_Errors(t *testing.T) {
	badZone := validSystem()
	badZone.Timezone = "Mars/Olympus"

	tests := []struct {
		name    string
		sys     *SystemSettings
		repoErr error
		code    int
		msg     string
	}{
		{"invalid timezone", badZone, nil, http.StatusBadRequest, "invalid timezone: Mars/Olympus"},
		{"store failure", validSystem(), errors.New("write tcp 10.0.0.5:5432: broken pipe"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, repo, _, _ := newTestService()
			repo.err = tt.repoErr
			h := NewHandler(s)
			body, _ := json.Marshal(tt.sys)
			req := httptest.NewRequest(http.MethodPut, "/", bytes.NewReader(body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			c := echo.New().NewContext(req, httptest.NewRecorder())

			err := h.UpdateSystem(c)
			he, ok := err.(*echo.HTTPError)
			if !ok || he.Code != tt.code || he.Message != tt.msg {
				t.Errorf("expected %d %q, got %v", tt.code, tt.msg, err)
			}
		})
	}
}

func TestHandler_ReplaceWorkingHours_BadBody(t *testing.T) {
	s, _, _, _ := newTestService()
	h := NewHandler(s)
	req := httptest.NewRequest(http.MethodPut, "/", io.NopCloser(strings.NewReader("{")))
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	err := h.ReplaceWorkingHours(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_GetCenter_Empty(t *testing.T) {
	s, _, _, _ := newTestService()
	h := NewHandler(s)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.GetCenter(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func strPtr(s string) *string { return &s }
