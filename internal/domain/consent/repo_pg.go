package consent

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medguard/medguard/internal/platform/authz"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const consentCols = `id, patient_id, data_category, grantee, granted_at, expires_at, revoked, revoked_at, created_at`

func (r *repoPG) Create(ctx context.Context, c *Consent) error {
	c.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO consent (id, patient_id, data_category, grantee, granted_at, expires_at, revoked)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.PatientID, c.Category, c.Grantee, c.GrantedAt, c.ExpiresAt, c.Revoked,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Consent, error) {
	return scanConsent(r.pool.QueryRow(ctx, `SELECT `+consentCols+` FROM consent WHERE id = $1`, id))
}

func (r *repoPG) HasActive(ctx context.Context, patientID uuid.UUID, category authz.DataCategory, grantee string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM consent
			WHERE patient_id = $1 AND data_category = $2 AND grantee = $3
			  AND NOT revoked
			  AND (expires_at IS NULL OR expires_at > NOW())
		)`,
		patientID, category, grantee,
	).Scan(&exists)
	return exists, err
}

func (r *repoPG) Revoke(ctx context.Context, patientID uuid.UUID, category authz.DataCategory, grantee string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE consent SET revoked = TRUE, revoked_at = NOW()
		WHERE patient_id = $1 AND data_category = $2 AND grantee = $3 AND NOT revoked`,
		patientID, category, grantee,
	)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consent, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM consent WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+consentCols+` FROM consent WHERE patient_id = $1 ORDER BY granted_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var consents []*Consent
	for rows.Next() {
		var c Consent
		if err := rows.Scan(&c.ID, &c.PatientID, &c.Category, &c.Grantee, &c.GrantedAt, &c.ExpiresAt, &c.Revoked, &c.RevokedAt, &c.CreatedAt); err != nil {
			return nil, 0, err
		}
		consents = append(consents, &c)
	}
	return consents, total, rows.Err()
}

func scanConsent(row pgx.Row) (*Consent, error) {
	var c Consent
	err := row.Scan(&c.ID, &c.PatientID, &c.Category, &c.Grantee, &c.GrantedAt, &c.ExpiresAt, &c.Revoked, &c.RevokedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
