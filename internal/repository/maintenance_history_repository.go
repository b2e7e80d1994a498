package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wrenchworks/cmms-api/internal/models"
)

// MaintenanceHistoryRepository stores the denormalized asset-scoped
// completion log. Rows are append-only.
type MaintenanceHistoryRepository struct {
	db *sqlx.DB
}

// NewMaintenanceHistoryRepository constructs the repository.
func NewMaintenanceHistoryRepository(db *sqlx.DB) *MaintenanceHistoryRepository {
	return &MaintenanceHistoryRepository{db: db}
}

func (r *MaintenanceHistoryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec == nil {
		return r.db
	}
	return exec
}

// Create appends a maintenance history row.
func (r *MaintenanceHistoryRepository) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.MaintenanceHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	const query = `INSERT INTO maintenance_history
	(id, asset_id, work_order_id, work_order_title, resolution_summary, fault_code, technician, completed_at)
	VALUES (:id, :asset_id, :work_order_id, :work_order_title, :resolution_summary, :fault_code, :technician, :completed_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry); err != nil {
		return fmt.Errorf("create maintenance history: %w", err)
	}
	return nil
}

// ListByAsset returns completion records for an asset, latest first.
func (r *MaintenanceHistoryRepository) ListByAsset(ctx context.Context, assetID string, limit, offset int) ([]models.MaintenanceHistory, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT id, asset_id, work_order_id, work_order_title, resolution_summary, fault_code, technician, completed_at
	FROM maintenance_history WHERE asset_id = $1 ORDER BY completed_at DESC LIMIT %d OFFSET %d`, limit, offset)
	var entries []models.MaintenanceHistory
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, assetID); err != nil {
		return nil, fmt.Errorf("list maintenance history: %w", err)
	}
	return entries, nil
}
