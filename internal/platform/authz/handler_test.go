package authz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medguard/medguard/internal/platform/auth"
)

func newTestHandler(t *testing.T, audit AuditAppender) *Handler {
	t.Helper()
	if audit == nil {
		audit = &mockAudit{}
	}
	engine, err := NewEngine(
		DefaultMatrix(),
		&mockConsents{},
		&mockEncounters{active: true},
		&mockBreakGlass{},
		audit,
		zerolog.Nop(),
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return NewHandler(engine)
}

func doEvaluate(t *testing.T, h *Handler, userID string, roles []string, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/access/evaluate", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	ctx := req.Context()
	ctx = context.WithValue(ctx, auth.UserIDKey, userID)
	ctx = context.WithValue(ctx, auth.UserRolesKey, roles)
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Evaluate(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestEvaluateEndpointGrant(t *testing.T) {
	h := newTestHandler(t, nil)
	userID := uuid.New().String()

	body := `{"role":"nurse","purpose":"treatment","data_category":"clinical","patient_id":"` + uuid.New().String() + `"}`
	rec := doEvaluate(t, h, userID, []string{"nurse"}, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var dec AccessDecision
	if err := json.Unmarshal(rec.Body.Bytes(), &dec); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !dec.Granted {
		t.Errorf("expected grant, got denial: %s", dec.Reason)
	}
}

func TestEvaluateEndpointDenialIs200(t *testing.T) {
	h := newTestHandler(t, nil)

	body := `{"role":"receptionist","purpose":"treatment","data_category":"clinical","patient_id":"` + uuid.New().String() + `"}`
	rec := doEvaluate(t, h, uuid.New().String(), []string{"receptionist"}, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("denials are decisions, not errors; status = %d", rec.Code)
	}
	var dec AccessDecision
	if err := json.Unmarshal(rec.Body.Bytes(), &dec); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if dec.Granted {
		t.Error("expected denial")
	}
}

func TestEvaluateEndpointRejectsUnknownEnums(t *testing.T) {
	h := newTestHandler(t, nil)
	userID := uuid.New().String()

	cases := []string{
		`{"role":"wizard","purpose":"treatment","data_category":"clinical"}`,
		`{"role":"nurse","purpose":"curiosity","data_category":"clinical"}`,
		`{"role":"nurse","purpose":"treatment","data_category":"secrets"}`,
	}
	for _, body := range cases {
		rec := doEvaluate(t, h, userID, []string{"nurse", "wizard"}, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestEvaluateEndpointRejectsUnheldRole(t *testing.T) {
	h := newTestHandler(t, nil)

	body := `{"role":"doctor","purpose":"treatment","data_category":"clinical","patient_id":"` + uuid.New().String() + `"}`
	rec := doEvaluate(t, h, uuid.New().String(), []string{"nurse"}, body)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestEvaluateEndpointRejectsAnonymous(t *testing.T) {
	h := newTestHandler(t, nil)

	body := `{"role":"nurse","purpose":"treatment","data_category":"clinical"}`
	rec := doEvaluate(t, h, "", []string{"nurse"}, body)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

type failingAudit struct{}

func (failingAudit) Append(context.Context, DecisionRecord) (int64, error) {
	return 0, errors.New("wal write failed")
}

func TestEvaluateEndpointAuditOutage503(t *testing.T) {
	h := newTestHandler(t, failingAudit{})

	body := `{"role":"nurse","purpose":"treatment","data_category":"clinical","patient_id":"` + uuid.New().String() + `"}`
	rec := doEvaluate(t, h, uuid.New().String(), []string{"nurse"}, body)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
