package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SequenceRepository owns the per-year work order counter rows. All mutation
// goes through the atomic increment below; callers never read-modify-write.
type SequenceRepository struct {
	db *sqlx.DB
}

// NewSequenceRepository constructs the repository.
func NewSequenceRepository(db *sqlx.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

func (r *SequenceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec == nil {
		return r.db
	}
	return exec
}

// Ensure creates the counter row for the year when absent. The upsert closes
// the race between concurrent first callers of a new year.
func (r *SequenceRepository) Ensure(ctx context.Context, exec sqlx.ExtContext, year int) error {
	const query = `INSERT INTO work_order_sequences (year, sequence, last_updated)
VALUES ($1, 0, $2)
ON CONFLICT (year) DO NOTHING`
	if _, err := r.exec(exec).ExecContext(ctx, query, year, time.Now().UTC()); err != nil {
		return fmt.Errorf("ensure sequence row for %d: %w", year, err)
	}
	return nil
}

// Next increments the counter by exactly one and returns the post-increment
// value. The guard keeps the stored value at or below max: when the row is
// already at max the update matches nothing and sql.ErrNoRows is returned,
// leaving the counter untouched.
func (r *SequenceRepository) Next(ctx context.Context, exec sqlx.ExtContext, year, max int) (int, error) {
	const query = `UPDATE work_order_sequences
SET sequence = sequence + 1, last_updated = $3
WHERE year = $1 AND sequence < $2
RETURNING sequence`
	row := r.exec(exec).QueryRowxContext(ctx, query, year, max, time.Now().UTC())
	var seq int
	if err := row.Scan(&seq); err != nil {
		if err == sql.ErrNoRows {
			return 0, sql.ErrNoRows
		}
		return 0, fmt.Errorf("increment sequence for %d: %w", year, err)
	}
	return seq, nil
}

// Current returns the stored counter value for the year.
func (r *SequenceRepository) Current(ctx context.Context, exec sqlx.ExtContext, year int) (int, error) {
	const query = `SELECT sequence FROM work_order_sequences WHERE year = $1`
	row := r.exec(exec).QueryRowxContext(ctx, query, year)
	var seq int
	if err := row.Scan(&seq); err != nil {
		if err == sql.ErrNoRows {
			return 0, sql.ErrNoRows
		}
		return 0, fmt.Errorf("read sequence for %d: %w", year, err)
	}
	return seq, nil
}
