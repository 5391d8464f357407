package authz

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medguard/medguard/internal/platform/auth"
)

// evaluateRequest is the wire form of an access request. The user
// identity comes from the authenticated context, never from the body;
// the declared role must be one the token actually carries.
type evaluateRequest struct {
	Role            string `json:"role"`
	Purpose         string `json:"purpose"`
	DataCategory    string `json:"data_category"`
	PatientID       string `json:"patient_id,omitempty"`
	EncounterID     string `json:"encounter_id,omitempty"`
	BreakGlassToken string `json:"break_glass_token,omitempty"`
}

// Handler exposes the decision engine over HTTP.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/access/evaluate", h.Evaluate)
}

// Evaluate answers one access request. Denials are 200 responses with
// granted=false; only infrastructure failures surface as HTTP errors.
func (h *Handler) Evaluate(c echo.Context) error {
	var body evaluateRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()

	userID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authenticated user id is not a valid uuid")
	}

	role, err := ParseRole(body.Role)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !hasRole(auth.RolesFromContext(ctx), body.Role) {
		return echo.NewHTTPError(http.StatusForbidden, "declared role is not held by the caller")
	}

	purpose, err := ParsePurpose(body.Purpose)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	category, err := ParseDataCategory(body.DataCategory)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	req := AccessRequest{
		UserID:   userID,
		Role:     role,
		Purpose:  purpose,
		Category: category,
	}
	if body.PatientID != "" {
		pid, err := uuid.Parse(body.PatientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		req.PatientID = pid
	}
	if body.EncounterID != "" {
		eid, err := uuid.Parse(body.EncounterID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid encounter_id")
		}
		req.EncounterID = &eid
	}
	if body.BreakGlassToken != "" {
		tok, err := uuid.Parse(body.BreakGlassToken)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid break_glass_token")
		}
		req.BreakGlassToken = &tok
	}

	dec, err := h.engine.Evaluate(ctx, req)
	if err != nil {
		if errors.Is(err, ErrAuditUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "audit log unavailable")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, dec)
}

func hasRole(held []string, want string) bool {
	for _, r := range held {
		if r == want {
			return true
		}
	}
	return false
}
