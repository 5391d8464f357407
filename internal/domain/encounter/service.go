package encounter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
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

// Open starts a clinical encounter between a caregiver and a patient.
func (s *Service) Open(ctx context.Context, enc *Encounter) error {
	if enc.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if enc.UserID == uuid.Nil {
		return fmt.Errorf("user_id is required")
	}
	enc.Status = StatusActive
	if enc.OpenedAt.IsZero() {
		enc.OpenedAt = s.now().UTC()
	}
	return s.repo.Create(ctx, enc)
}

// Close ends an encounter. Closing is explicit: the registry never
// times an encounter out on its own, so a timeout policy lives with
// whoever calls Close. Closing an already-closed encounter keeps the
// original closed_at.
func (s *Service) Close(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return s.repo.Close(ctx, id, s.now().UTC())
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return s.repo.GetByID(ctx, id)
}

// IsActiveEncounter implements the engine's encounter check.
func (s *Service) IsActiveEncounter(ctx context.Context, userID, patientID uuid.UUID) (bool, error) {
	if userID == uuid.Nil || patientID == uuid.Nil {
		return false, nil
	}
	return s.repo.HasActive(ctx, userID, patientID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
