package breakglass

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const eventCols = `id, user_id, patient_id, reason_code, opened_at, auto_expiry, justification, justified_at, status, created_at`

// uniqueViolation is the PostgreSQL error code raised when the partial
// unique index on (user_id, patient_id) WHERE status = 'open' rejects a
// second concurrent open event.
const uniqueViolation = "23505"

func (r *repoPG) CreateOpen(ctx context.Context, ev *Event) error {
	ev.ID = uuid.New()
	ev.Status = StatusOpen
	_, err := r.pool.Exec(ctx, `
		INSERT INTO break_glass_event (id, user_id, patient_id, reason_code, opened_at, auto_expiry, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		ev.ID, ev.UserID, ev.PatientID, ev.ReasonCode, ev.OpenedAt, ev.AutoExpiry, ev.Status,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAlreadyOpen
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	ev, err := scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventCols+` FROM break_glass_event WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ev, err
}

func (r *repoPG) GetOpen(ctx context.Context, userID, patientID uuid.UUID) (*Event, error) {
	ev, err := scanEvent(r.pool.QueryRow(ctx, `
		SELECT `+eventCols+` FROM break_glass_event
		WHERE user_id = $1 AND patient_id = $2 AND status = $3`,
		userID, patientID, StatusOpen,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ev, err
}

func (r *repoPG) Justify(ctx context.Context, id uuid.UUID, text string, at time.Time) (*Event, error) {
	ev, err := scanEvent(r.pool.QueryRow(ctx, `
		UPDATE break_glass_event
		SET status = $2, justification = $3, justified_at = $4
		WHERE id = $1 AND status = $5
		RETURNING `+eventCols,
		id, StatusJustified, text, at, StatusOpen,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish a missing event from a terminal one.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrAlreadyClosed
	}
	return ev, err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM break_glass_event WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListOpenExpired(ctx context.Context, cutoff time.Time) ([]*Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventCols+` FROM break_glass_event
		WHERE status = $1 AND auto_expiry <= $2
		ORDER BY auto_expiry`,
		StatusOpen, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.PatientID, &ev.ReasonCode, &ev.OpenedAt, &ev.AutoExpiry, &ev.Justification, &ev.JustifiedAt, &ev.Status, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (r *repoPG) Expire(ctx context.Context, id uuid.UUID) (*Event, error) {
	ev, err := scanEvent(r.pool.QueryRow(ctx, `
		UPDATE break_glass_event
		SET status = $2
		WHERE id = $1 AND status = $3
		RETURNING `+eventCols,
		id, StatusExpiredUnjustified, StatusOpen,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrAlreadyClosed
	}
	return ev, err
}

func scanEvent(row pgx.Row) (*Event, error) {
	var ev Event
	err := row.Scan(&ev.ID, &ev.UserID, &ev.PatientID, &ev.ReasonCode, &ev.OpenedAt, &ev.AutoExpiry, &ev.Justification, &ev.JustifiedAt, &ev.Status, &ev.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}
