package settings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/blobstore"
	"github.com/clinic/clinic/pkg/validate"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/settings")
	g.GET("/center", h.GetCenter)
	g.PUT("/center", h.UpdateCenter)
	g.POST("/center/logo", h.UploadLogo)
	g.GET("/system", h.GetSystem)
	g.PUT("/system", h.UpdateSystem)
	g.GET("/working-hours", h.GetWorkingHours)
	g.PUT("/working-hours", h.ReplaceWorkingHours)
}

func (h *Handler) GetCenter(c echo.Context) error {
	center, err := h.svc.GetCenter(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load centre settings")
	}
	return c.JSON(http.StatusOK, center)
}

func (h *Handler) UpdateCenter(c echo.Context) error {
	var center CenterSettings
	if err := c.Bind(&center); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdateCenter(c.Request().Context(), &center); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, center)
}

func (h *Handler) UploadLogo(c echo.Context) error {
	fh, err := c.FormFile("logo")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "logo file is required")
	}
	center, err := h.svc.UploadLogo(c.Request().Context(), fh)
	switch {
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store logo")
	}
	return c.JSON(http.StatusOK, center)
}

func (h *Handler) GetSystem(c echo.Context) error {
	sys, err := h.svc.GetSystem(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load system settings")
	}
	return c.JSON(http.StatusOK, sys)
}

func (h *Handler) UpdateSystem(c echo.Context) error {
	var sys SystemSettings
	if err := c.Bind(&sys); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdateSystem(c.Request().Context(), &sys); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sys)
}

func (h *Handler) GetWorkingHours(c echo.Context) error {
	hours, err := h.svc.GetWorkingHours(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load working hours")
	}
	if hours == nil {
		hours = []WorkingHours{}
	}
	return c.JSON(http.StatusOK, hours)
}

func (h *Handler) ReplaceWorkingHours(c echo.Context) error {
	var hours []WorkingHours
	if err := json.NewDecoder(c.Request().Body).Decode(&hours); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid working hours body")
	}
	saved, err := h.svc.ReplaceWorkingHours(c.Request().Context(), hours)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, saved)
}

func httpError(err error) error {
	if validate.IsInvalid(err) {
		return echo.NewHTTPError(http.StatusBadRequest, validate.Message(err))
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
