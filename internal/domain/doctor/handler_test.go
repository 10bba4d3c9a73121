package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/availability"
	"github.com/clinic/clinic/pkg/validate"
)

func newTestHandler() (*Handler, *echo.Echo) {
	return NewHandler(newTestService()), echo.New()
}

func TestHandler_Create(t *testing.T) {
	h, e := newTestHandler()
	body := `{"name":"Dr. Huda","specialty":"Dermatology","schedule":[{"day_of_week":"sunday","is_working":true,"start_time":"09:00","end_time":"12:00"}]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var got Doctor
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.IconColor == "" || len(got.Schedule) != 1 {
		t.Errorf("unexpected doctor %+v", got)
	}
}

func TestHandler_Create_BadRequest(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.Get(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_ReplaceSchedule(t *testing.T) {
	h, e := newTestHandler()
	d := &Doctor{Name: "Doc"}
	h.svc.Create(context.Background(), d)

	body := `[{"day_of_week":"monday","is_working":true,"start_time":"09:00","end_time":"13:00"},{"day_of_week":"saturday","is_working":false}]`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())

	if err := h.ReplaceSchedule(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got availability.WeeklySchedule
	json.Unmarshal(rec.Body.Bytes(), &got)
	if len(got) != 2 || got[0].DayOfWeek != availability.Saturday {
		t.Errorf("unexpected schedule %+v", got)
	}
}

func TestHandler_ReplaceSchedule_Invalid(t *testing.T) {
	h, e := newTestHandler()
	d := &Doctor{Name: "Doc"}
	h.svc.Create(context.Background(), d)

	body := `[{"day_of_week":"monday","is_working":true,"start_time":"13:00","end_time":"09:00"}]`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())

	err := h.ReplaceSchedule(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_GetSchedule_Empty(t *testing.T) {
	h, e := newTestHandler()
	d := &Doctor{Name: "Doc"}
	h.svc.Create(context.Background(), d)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())

	if err := h.GetSchedule(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestHandler_ListByClinic(t *testing.T) {
	h, e := newTestHandler()
	clinicID := uuid.New()
	h.svc.Create(context.Background(), &Doctor{Name: "Amal", ClinicID: &clinicID})

	req := httptest.NewRequest(http.MethodGet, "/?clinic_id="+clinicID.String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []Doctor
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 1 {
		t.Errorf("expected 1 doctor, got %d", len(items))
	}
}

func TestHandler_Delete(t *testing.T) {
	h, e := newTestHandler()
	d := &Doctor{Name: "Doc"}
	h.svc.Create(context.Background(), d)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())

	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_ReplaceSchedule_StoreFailure(t *testing.T) {
	deps := newTestDeps()
	h, e := NewHandler(deps.svc), echo.New()
	d := &Doctor{Name: "Doc"}
	deps.svc.Create(context.Background(), d)
	deps.schedules.err = errors.New(`pq: relation "doctor_schedules" does not exist`)

	body := `[{"day_of_week":"monday","is_working":true,"start_time":"09:00","end_time":"13:00"}]`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())

	err := h.ReplaceSchedule(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}
	if msg, _ := he.Message.(string); strings.Contains(msg, "doctor_schedules") {
		t.Errorf("driver text leaked: %q", msg)
	}
}

func TestHTTPError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"not found", ErrNotFound, http.StatusNotFound, ErrNotFound.Error()},
		{"invalid status", validate.Errorf("invalid status: %s", "retired"), http.StatusBadRequest, "invalid status: retired"},
		{"unknown clinic", fmt.Errorf("insert doctor: %w", &pgconn.PgError{Code: "23503"}), http.StatusBadRequest, "unknown clinic_id"},
		{"storage", fmt.Errorf("count doctors: %w", errors.New("conn reset")), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he, ok := httpError(tt.err).(*echo.HTTPError)
			if !ok || he.Code != tt.code || he.Message != tt.msg {
				t.Errorf("httpError(%v) = %v", tt.err, he)
			}
		})
	}
}
