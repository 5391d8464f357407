package encounter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const encCols = `id, patient_id, user_id, status, opened_at, closed_at, created_at`

func (r *repoPG) Create(ctx context.Context, enc *Encounter) error {
	enc.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clinical_encounter (id, patient_id, user_id, status, opened_at)
		VALUES ($1,$2,$3,$4,$5)`,
		enc.ID, enc.PatientID, enc.UserID, enc.Status, enc.OpenedAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return scanEnc(r.pool.QueryRow(ctx, `SELECT `+encCols+` FROM clinical_encounter WHERE id = $1`, id))
}

func (r *repoPG) Close(ctx context.Context, id uuid.UUID, at time.Time) (*Encounter, error) {
	return scanEnc(r.pool.QueryRow(ctx, `
		UPDATE clinical_encounter
		SET status = $2, closed_at = COALESCE(closed_at, $3)
		WHERE id = $1
		RETURNING `+encCols,
		id, StatusClosed, at,
	))
}

func (r *repoPG) HasActive(ctx context.Context, userID, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM clinical_encounter
			WHERE user_id = $1 AND patient_id = $2
			  AND status = $3
			  AND opened_at <= NOW()
			  AND (closed_at IS NULL OR closed_at > NOW())
		)`,
		userID, patientID, StatusActive,
	).Scan(&exists)
	return exists, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clinical_encounter WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+encCols+` FROM clinical_encounter WHERE patient_id = $1 ORDER BY opened_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var encs []*Encounter
	for rows.Next() {
		var e Encounter
		if err := rows.Scan(&e.ID, &e.PatientID, &e.UserID, &e.Status, &e.OpenedAt, &e.ClosedAt, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		encs = append(encs, &e)
	}
	return encs, total, rows.Err()
}

func scanEnc(row pgx.Row) (*Encounter, error) {
	var e Encounter
	err := row.Scan(&e.ID, &e.PatientID, &e.UserID, &e.Status, &e.OpenedAt, &e.ClosedAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
