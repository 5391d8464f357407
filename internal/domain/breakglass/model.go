package breakglass

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Protocol violations. These indicate a caller-side state mismatch and
// are returned to the invoking clinical workflow, never swallowed into
// an access decision.
var (
	ErrAlreadyOpen   = errors.New("break-glass event already open for this user and patient")
	ErrAlreadyClosed = errors.New("break-glass event already justified or expired")
	ErrNotFound      = errors.New("break-glass event not found")
	ErrRateLimited   = errors.New("break-glass invocation rate limit exceeded")
)

// Event statuses. An event moves open → justified on justification, or
// open → expired_unjustified when the sweep finds it past auto-expiry.
// Both end states are terminal.
const (
	StatusOpen               = "open"
	StatusJustified          = "justified"
	StatusExpiredUnjustified = "expired_unjustified"
)

// Event maps to the break_glass_event table: one emergency-override
// window for a (user, patient) pair. At most one open event may exist
// per pair; the store enforces this with a partial unique index.
type Event struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	ReasonCode    string     `db:"reason_code" json:"reason_code"`
	OpenedAt      time.Time  `db:"opened_at" json:"opened_at"`
	AutoExpiry    time.Time  `db:"auto_expiry" json:"auto_expiry"`
	Justification *string    `db:"justification" json:"justification,omitempty"`
	JustifiedAt   *time.Time `db:"justified_at" json:"justified_at,omitempty"`
	Status        string     `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// OpenAt reports whether the override authorizes access at t. Status is
// checked first so that a sweep-closed event reads as closed even when
// t is inside the original window; the timestamp check covers the gap
// before the sweep has run.
func (e *Event) OpenAt(t time.Time) bool {
	return e.Status == StatusOpen && t.Before(e.AutoExpiry)
}
