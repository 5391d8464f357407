package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const entryCols = `seq, ts, kind, user_id, role, purpose, category, patient_id, granted, reason, break_glass, severity`

// Append assigns the sequence number from a single-row counter table
// inside the insert transaction. Unlike a sequence, the counter rolls
// back with the insert, so the log stays gapless even when appends
// fail.
func (r *repoPG) Append(ctx context.Context, e *Entry) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var seq int64
	if err := tx.QueryRow(ctx, `UPDATE audit_seq SET last = last + 1 RETURNING last`).Scan(&seq); err != nil {
		return 0, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO access_audit (`+entryCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		seq, e.Timestamp, e.Kind, e.UserID, e.Role, e.Purpose, e.Category,
		e.PatientID, e.Granted, e.Reason, e.BreakGlass, e.Severity,
	)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	e.Seq = seq
	return seq, nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	where, args := buildFilter(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM access_audit`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+entryCols+` FROM access_audit%s ORDER BY seq LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.Timestamp, &e.Kind, &e.UserID, &e.Role, &e.Purpose, &e.Category,
			&e.PatientID, &e.Granted, &e.Reason, &e.BreakGlass, &e.Severity); err != nil {
			return nil, 0, err
		}
		entries = append(entries, &e)
	}
	return entries, total, rows.Err()
}

func buildFilter(f Filter) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.PatientID != nil {
		add("patient_id = $%d", *f.PatientID)
	}
	if f.Kind != "" {
		add("kind = $%d", f.Kind)
	}
	if f.Since != nil {
		add("ts >= $%d", *f.Since)
	}
	if f.Until != nil {
		add("ts < $%d", *f.Until)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
