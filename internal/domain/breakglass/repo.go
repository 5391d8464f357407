package breakglass

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// CreateOpen inserts a new open event. If an open event already
	// exists for the (user, patient) pair, it returns ErrAlreadyOpen;
	// under concurrent invocations exactly one caller wins.
	CreateOpen(ctx context.Context, ev *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	// GetOpen returns the open event for the pair, or ErrNotFound.
	GetOpen(ctx context.Context, userID, patientID uuid.UUID) (*Event, error)
	// Delete removes an event outright. Only used to roll back an
	// invocation whose audit entry could not be written; every other
	// transition keeps the row.
	Delete(ctx context.Context, id uuid.UUID) error
	// Justify transitions an open event to justified. Returns
	// ErrNotFound if the event does not exist and ErrAlreadyClosed if
	// it is already justified or expired.
	Justify(ctx context.Context, id uuid.UUID, text string, at time.Time) (*Event, error)
	// ListOpenExpired returns the open events whose auto_expiry is at
	// or before the cutoff, without transitioning them.
	ListOpenExpired(ctx context.Context, cutoff time.Time) ([]*Event, error)
	// Expire transitions a single open event to expired_unjustified.
	// Returns ErrNotFound if the event does not exist and
	// ErrAlreadyClosed if it is no longer open.
	Expire(ctx context.Context, id uuid.UUID) (*Event, error)
}
