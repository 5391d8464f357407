package consent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medguard/medguard/internal/platform/authz"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// SetClock overrides the service clock for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) Grant(ctx context.Context, c *Consent) error {
	if c.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if _, err := authz.ParseDataCategory(string(c.Category)); err != nil {
		return err
	}
	if c.Grantee == "" {
		return fmt.Errorf("grantee is required")
	}
	if c.GrantedAt.IsZero() {
		c.GrantedAt = s.now().UTC()
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(c.GrantedAt) {
		return fmt.Errorf("expires_at must be after granted_at")
	}
	return s.repo.Create(ctx, c)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Consent, error) {
	return s.repo.GetByID(ctx, id)
}

// IsActive implements the engine's consent check. A store failure is
// returned to the caller, which treats consent state as unknown and
// denies.
func (s *Service) IsActive(ctx context.Context, patientID uuid.UUID, category authz.DataCategory, grantee string) (bool, error) {
	if patientID == uuid.Nil || grantee == "" {
		return false, nil
	}
	return s.repo.HasActive(ctx, patientID, category, grantee)
}

// Revoke withdraws consent for the tuple. Revoking a tuple that is
// already revoked, or that never existed, succeeds without effect.
func (s *Service) Revoke(ctx context.Context, patientID uuid.UUID, category authz.DataCategory, grantee string) error {
	if patientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if _, err := authz.ParseDataCategory(string(category)); err != nil {
		return err
	}
	if grantee == "" {
		return fmt.Errorf("grantee is required")
	}
	return s.repo.Revoke(ctx, patientID, category, grantee)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consent, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
