package consent

import (
	"time"

	"github.com/google/uuid"

	"github.com/medguard/medguard/internal/platform/authz"
)

// Consent maps to the consent table. A record is created by patient
// action and mutated only by revocation; it is never deleted, so the
// full grant/revoke history stays available for audit.
type Consent struct {
	ID        uuid.UUID          `db:"id" json:"id"`
	PatientID uuid.UUID          `db:"patient_id" json:"patient_id"`
	Category  authz.DataCategory `db:"data_category" json:"data_category"`
	Grantee   string             `db:"grantee" json:"grantee"`
	GrantedAt time.Time          `db:"granted_at" json:"granted_at"`
	ExpiresAt *time.Time         `db:"expires_at" json:"expires_at,omitempty"`
	Revoked   bool               `db:"revoked" json:"revoked"`
	RevokedAt *time.Time         `db:"revoked_at" json:"revoked_at,omitempty"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
}

// ActiveAt reports whether the consent authorizes access at t: not
// revoked and either unexpiring or expiring after t.
func (c *Consent) ActiveAt(t time.Time) bool {
	if c.Revoked {
		return false
	}
	return c.ExpiresAt == nil || c.ExpiresAt.After(t)
}
