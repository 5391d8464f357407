package consent

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medguard/medguard/internal/platform/authz"
)

type mockRepo struct {
	consents map[uuid.UUID]*Consent
	now      time.Time
}

func newMockRepo(now time.Time) *mockRepo {
	return &mockRepo{consents: make(map[uuid.UUID]*Consent), now: now}
}

func (m *mockRepo) Create(_ context.Context, c *Consent) error {
	c.ID = uuid.New()
	c.CreatedAt = m.now
	m.consents[c.ID] = c
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Consent, error) {
	c, ok := m.consents[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return c, nil
}

func (m *mockRepo) HasActive(_ context.Context, patientID uuid.UUID, category authz.DataCategory, grantee string) (bool, error) {
	for _, c := range m.consents {
		if c.PatientID == patientID && c.Category == category && c.Grantee == grantee && c.ActiveAt(m.now) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) Revoke(_ context.Context, patientID uuid.UUID, category authz.DataCategory, grantee string) error {
	for _, c := range m.consents {
		if c.PatientID == patientID && c.Category == category && c.Grantee == grantee && !c.Revoked {
			c.Revoked = true
			at := m.now
			c.RevokedAt = &at
		}
	}
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Consent, int, error) {
	var out []*Consent
	for _, c := range m.consents {
		if c.PatientID == patientID {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo(testNow)
	svc := NewService(repo)
	svc.SetClock(func() time.Time { return testNow })
	return svc, repo
}

func TestGrantValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if err := svc.Grant(ctx, &Consent{Category: authz.CategoryClinical, Grantee: "research"}); err == nil {
		t.Error("expected error for missing patient_id")
	}
	if err := svc.Grant(ctx, &Consent{PatientID: uuid.New(), Category: "junk", Grantee: "research"}); err == nil {
		t.Error("expected error for unknown category")
	}
	if err := svc.Grant(ctx, &Consent{PatientID: uuid.New(), Category: authz.CategoryClinical}); err == nil {
		t.Error("expected error for missing grantee")
	}

	past := testNow.Add(-time.Hour)
	if err := svc.Grant(ctx, &Consent{
		PatientID: uuid.New(),
		Category:  authz.CategoryClinical,
		Grantee:   "research",
		ExpiresAt: &past,
	}); err == nil {
		t.Error("expected error for expiry before grant")
	}
}

func TestGrantThenActive(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	patient := uuid.New()

	c := &Consent{PatientID: patient, Category: authz.CategoryClinical, Grantee: "research"}
	if err := svc.Grant(ctx, c); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if c.GrantedAt.IsZero() {
		t.Error("expected GrantedAt to default to now")
	}

	active, err := svc.IsActive(ctx, patient, authz.CategoryClinical, "research")
	if err != nil {
		t.Fatalf("IsActive: %v", err)
	}
	if !active {
		t.Error("expected consent active after grant")
	}

	// Different category does not match.
	active, err = svc.IsActive(ctx, patient, authz.CategoryGenetic, "research")
	if err != nil {
		t.Fatalf("IsActive: %v", err)
	}
	if active {
		t.Error("consent is category-specific")
	}
}

func TestIsActiveZeroInputs(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	active, err := svc.IsActive(ctx, uuid.Nil, authz.CategoryClinical, "research")
	if err != nil || active {
		t.Errorf("nil patient: active=%v err=%v, want false nil", active, err)
	}
	active, err = svc.IsActive(ctx, uuid.New(), authz.CategoryClinical, "")
	if err != nil || active {
		t.Errorf("empty grantee: active=%v err=%v, want false nil", active, err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	patient := uuid.New()

	if err := svc.Grant(ctx, &Consent{PatientID: patient, Category: authz.CategoryClinical, Grantee: "research"}); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	if err := svc.Revoke(ctx, patient, authz.CategoryClinical, "research"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := svc.Revoke(ctx, patient, authz.CategoryClinical, "research"); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	// Revoking a tuple that never existed also succeeds.
	if err := svc.Revoke(ctx, uuid.New(), authz.CategoryClinical, "research"); err != nil {
		t.Fatalf("Revoke of unknown tuple: %v", err)
	}

	active, err := svc.IsActive(ctx, patient, authz.CategoryClinical, "research")
	if err != nil {
		t.Fatalf("IsActive: %v", err)
	}
	if active {
		t.Error("expected consent inactive after revoke")
	}
}

func TestConsentActiveAt(t *testing.T) {
	granted := testNow.Add(-2 * time.Hour)
	expires := testNow.Add(time.Hour)

	c := &Consent{GrantedAt: granted, ExpiresAt: &expires}
	if !c.ActiveAt(testNow) {
		t.Error("expected active inside window")
	}
	if c.ActiveAt(expires.Add(time.Minute)) {
		t.Error("expected inactive after expiry")
	}
	if c.ActiveAt(granted.Add(-time.Minute)) {
		t.Error("expected inactive before grant")
	}

	c.Revoked = true
	if c.ActiveAt(testNow) {
		t.Error("revoked consent is never active")
	}

	open := &Consent{GrantedAt: granted}
	if !open.ActiveAt(testNow.Add(1000 * time.Hour)) {
		t.Error("consent without expiry stays active until revoked")
	}
}
