package breakglass

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medguard/medguard/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinical := api.Group("", auth.RequireRole("doctor", "nurse", "admin"))
	clinical.POST("/break-glass", h.Invoke)
	clinical.POST("/break-glass/:id/justification", h.SubmitJustification)

	adminGroup := api.Group("", auth.RequireRole("admin"))
	adminGroup.GET("/break-glass/:id", h.GetEvent)
}

type invokeRequest struct {
	PatientID  string `json:"patient_id"`
	ReasonCode string `json:"reason_code"`
}

func (h *Handler) Invoke(c echo.Context) error {
	var body invokeRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pid, err := uuid.Parse(body.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "caller identity is not a valid user id")
	}

	ev, err := h.svc.Invoke(c.Request().Context(), uid, pid, body.ReasonCode)
	switch {
	case errors.Is(err, ErrAlreadyOpen):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, ev)
}

type justificationRequest struct {
	Justification string `json:"justification"`
}

func (h *Handler) SubmitJustification(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body justificationRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ev, err := h.svc.SubmitJustification(c.Request().Context(), id, body.Justification)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "break-glass event not found")
	case errors.Is(err, ErrAlreadyClosed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, ev)
}

func (h *Handler) GetEvent(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ev, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "break-glass event not found")
	}
	return c.JSON(http.StatusOK, ev)
}
