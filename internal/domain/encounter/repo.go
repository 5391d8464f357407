package encounter

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, enc *Encounter) error
	GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error)
	// Close marks the encounter closed at the given time. Returns the
	// updated record, or an error if the encounter does not exist.
	Close(ctx context.Context, id uuid.UUID, at time.Time) (*Encounter, error)
	// HasActive reports whether an active encounter links the user to
	// the patient right now.
	HasActive(ctx context.Context, userID, patientID uuid.UUID) (bool, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error)
}
