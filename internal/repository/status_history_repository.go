package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wrenchworks/cmms-api/internal/models"
)

// StatusHistoryRepository appends transition audit rows. Rows are never
// mutated or deleted.
type StatusHistoryRepository struct {
	db *sqlx.DB
}

// NewStatusHistoryRepository constructs the repository.
func NewStatusHistoryRepository(db *sqlx.DB) *StatusHistoryRepository {
	return &StatusHistoryRepository{db: db}
}

func (r *StatusHistoryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec == nil {
		return r.db
	}
	return exec
}

// Create appends one history row.
func (r *StatusHistoryRepository) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.StatusHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO work_order_status_history
	(id, work_order_id, from_status, to_status, changed_by_id, notes, created_at)
	VALUES (:id, :work_order_id, :from_status, :to_status, :changed_by_id, :notes, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry); err != nil {
		return fmt.Errorf("create status history: %w", err)
	}
	return nil
}

// ListByWorkOrder returns the transition trail oldest first.
func (r *StatusHistoryRepository) ListByWorkOrder(ctx context.Context, workOrderID string) ([]models.StatusHistory, error) {
	const query = `SELECT id, work_order_id, from_status, to_status, changed_by_id, notes, created_at
	FROM work_order_status_history WHERE work_order_id = $1 ORDER BY created_at ASC`
	var entries []models.StatusHistory
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, workOrderID); err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return entries, nil
}
