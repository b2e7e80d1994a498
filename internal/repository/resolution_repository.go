package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/wrenchworks/cmms-api/internal/models"
)

// ResolutionRepository persists resolution records. The table carries a
// unique constraint on work_order_id so at most one record exists per order.
type ResolutionRepository struct {
	db *sqlx.DB
}

// NewResolutionRepository constructs the repository.
func NewResolutionRepository(db *sqlx.DB) *ResolutionRepository {
	return &ResolutionRepository{db: db}
}

func (r *ResolutionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec == nil {
		return r.db
	}
	return exec
}

// Create inserts the resolution record for a completed work order.
func (r *ResolutionRepository) Create(ctx context.Context, exec sqlx.ExtContext, rec *models.ResolutionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now().UTC()
	}
	if rec.Photos == nil {
		rec.Photos = pq.StringArray{}
	}
	const query = `INSERT INTO resolution_records
	(id, work_order_id, solution_description, fault_code, resolved_by_id, photos, completed_at)
	VALUES (:id, :work_order_id, :solution_description, :fault_code, :resolved_by_id, :photos, :completed_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, rec); err != nil {
		return fmt.Errorf("create resolution record: %w", err)
	}
	return nil
}

// GetByWorkOrderID fetches the resolution record for a work order.
func (r *ResolutionRepository) GetByWorkOrderID(ctx context.Context, workOrderID string) (*models.ResolutionRecord, error) {
	const query = `SELECT id, work_order_id, solution_description, fault_code, resolved_by_id, photos, completed_at
	FROM resolution_records WHERE work_order_id = $1`
	var rec models.ResolutionRecord
	if err := sqlx.GetContext(ctx, r.db, &rec, query, workOrderID); err != nil {
		return nil, err
	}
	return &rec, nil
}

// AppendPhotos adds photo references to an existing resolution record.
func (r *ResolutionRepository) AppendPhotos(ctx context.Context, workOrderID string, photos []string) error {
	const query = `UPDATE resolution_records SET photos = photos || $1 WHERE work_order_id = $2`
	result, err := r.db.ExecContext(ctx, query, pq.StringArray(photos), workOrderID)
	if err != nil {
		return fmt.Errorf("append resolution photos: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check photo append rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
