package consent

import (
	"context"

	"github.com/google/uuid"

	"github.com/medguard/medguard/internal/platform/authz"
)

type Repository interface {
	Create(ctx context.Context, c *Consent) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consent, error)
	// HasActive reports whether a non-revoked, non-expired consent
	// exists for the (patient, category, grantee) tuple.
	HasActive(ctx context.Context, patientID uuid.UUID, category authz.DataCategory, grantee string) (bool, error)
	// Revoke marks every matching consent revoked. Idempotent: revoking
	// an already-revoked tuple is a no-op, and records are never deleted.
	Revoke(ctx context.Context, patientID uuid.UUID, category authz.DataCategory, grantee string) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consent, int, error)
}
