package consent

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medguard/medguard/internal/platform/auth"
	"github.com/medguard/medguard/internal/platform/authz"
	"github.com/medguard/medguard/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("patient", "admin"))
	g.POST("/consents", h.GrantConsent)
	g.POST("/consents/revoke", h.RevokeConsent)
	g.GET("/consents", h.ListConsents)
	g.GET("/consents/:id", h.GetConsent)
}

type grantRequest struct {
	PatientID    string     `json:"patient_id"`
	DataCategory string     `json:"data_category"`
	Grantee      string     `json:"grantee"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

func (h *Handler) GrantConsent(c echo.Context) error {
	var body grantRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pid, err := uuid.Parse(body.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	cons := &Consent{
		PatientID: pid,
		Category:  authz.DataCategory(body.DataCategory),
		Grantee:   body.Grantee,
		ExpiresAt: body.ExpiresAt,
	}
	if err := h.svc.Grant(c.Request().Context(), cons); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, cons)
}

type revokeRequest struct {
	PatientID    string `json:"patient_id"`
	DataCategory string `json:"data_category"`
	Grantee      string `json:"grantee"`
}

// RevokeConsent is idempotent: revoking an already-revoked tuple
// returns 204 just the same.
func (h *Handler) RevokeConsent(c echo.Context) error {
	var body revokeRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pid, err := uuid.Parse(body.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	if err := h.svc.Revoke(c.Request().Context(), pid, authz.DataCategory(body.DataCategory), body.Grantee); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetConsent(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cons, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "consent not found")
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) ListConsents(c echo.Context) error {
	pid, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	pg := pagination.FromContext(c)
	consents, total, err := h.svc.ListByPatient(c.Request().Context(), pid, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(consents, total, pg.Limit, pg.Offset))
}
