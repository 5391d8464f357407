package breakglass

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medguard/medguard/internal/platform/auth"
)

func handlerFixture(t *testing.T) (*Handler, *mockRepo) {
	t.Helper()
	repo := newMockRepo()
	svc := NewService(repo, &mockAuditor{}, zerolog.Nop(), 24*time.Hour, 5)
	return NewHandler(svc), repo
}

func doInvoke(h *Handler, userID string, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/break-glass", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, userID)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Invoke(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestHandlerInvoke_Created(t *testing.T) {
	h, _ := handlerFixture(t)
	user := uuid.New().String()
	patient := uuid.New()

	rec := doInvoke(h, user, `{"patient_id":"`+patient.String()+`","reason_code":"patient_unconscious"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var ev Event
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if ev.Status != StatusOpen {
		t.Errorf("status = %q, want open", ev.Status)
	}
	if ev.PatientID != patient {
		t.Errorf("patient id not echoed back")
	}
}

func TestHandlerInvoke_SecondOpenConflicts(t *testing.T) {
	h, _ := handlerFixture(t)
	user := uuid.New().String()
	body := `{"patient_id":"` + uuid.New().String() + `","reason_code":"patient_unconscious"}`

	if rec := doInvoke(h, user, body); rec.Code != http.StatusCreated {
		t.Fatalf("first invoke: %d", rec.Code)
	}
	if rec := doInvoke(h, user, body); rec.Code != http.StatusConflict {
		t.Fatalf("second invoke = %d, want 409", rec.Code)
	}
}

func TestHandlerInvoke_RateLimited(t *testing.T) {
	h, _ := handlerFixture(t)
	user := uuid.New().String()

	for i := 0; i < 5; i++ {
		body := `{"patient_id":"` + uuid.New().String() + `","reason_code":"patient_unconscious"}`
		if rec := doInvoke(h, user, body); rec.Code != http.StatusCreated {
			t.Fatalf("invoke %d: %d", i, rec.Code)
		}
	}

	body := `{"patient_id":"` + uuid.New().String() + `","reason_code":"patient_unconscious"}`
	if rec := doInvoke(h, user, body); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("sixth invoke = %d, want 429", rec.Code)
	}
}

func TestHandlerInvoke_BadPatientID(t *testing.T) {
	h, _ := handlerFixture(t)
	rec := doInvoke(h, uuid.New().String(), `{"patient_id":"not-a-uuid","reason_code":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func doJustify(h *Handler, id string, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/break-glass/"+id+"/justification", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)

	if err := h.SubmitJustification(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestHandlerJustification_ClosesEvent(t *testing.T) {
	h, _ := handlerFixture(t)
	user := uuid.New().String()

	rec := doInvoke(h, user, `{"patient_id":"`+uuid.New().String()+`","reason_code":"patient_unconscious"}`)
	var ev Event
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doJustify(h, ev.ID.String(), `{"justification":"patient arrived unresponsive, attending physician"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("justify = %d, body = %s", rec.Code, rec.Body.String())
	}

	// A second justification hits an already closed event.
	rec = doJustify(h, ev.ID.String(), `{"justification":"again"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("repeat justify = %d, want 409", rec.Code)
	}
}

func TestHandlerJustification_UnknownEvent(t *testing.T) {
	h, _ := handlerFixture(t)
	rec := doJustify(h, uuid.New().String(), `{"justification":"anything"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
