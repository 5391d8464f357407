package encounter

import (
	"time"

	"github.com/google/uuid"
)

// Encounter statuses.
const (
	StatusActive = "active"
	StatusClosed = "closed"
)

// Encounter maps to the clinical_encounter table: a bounded clinical
// interaction window linking one caregiver to one patient. Access
// requests with a clinical purpose are valid only against an active
// encounter matching both user_id and patient_id.
type Encounter struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	Status    string     `db:"status" json:"status"`
	OpenedAt  time.Time  `db:"opened_at" json:"opened_at"`
	ClosedAt  *time.Time `db:"closed_at" json:"closed_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// ActiveAt reports whether the encounter window covers t. The registry
// never expires encounters by wall clock alone: an open-ended window
// stays active until an explicit close.
func (e *Encounter) ActiveAt(t time.Time) bool {
	if e.Status != StatusActive {
		return false
	}
	if t.Before(e.OpenedAt) {
		return false
	}
	return e.ClosedAt == nil || t.Before(*e.ClosedAt)
}
