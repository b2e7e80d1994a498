package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/wrenchworks/cmms-api/internal/models"
)

const workOrderColumns = `id, number, title, description, category, reason, location, priority, status,
       asset_id, created_by_id, assigned_to_id, attachments, reported_at, started_at, completed_at,
       created_at, updated_at`

// WorkOrderRepository persists work orders.
type WorkOrderRepository struct {
	db *sqlx.DB
}

// NewWorkOrderRepository constructs the repository.
func NewWorkOrderRepository(db *sqlx.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

func (r *WorkOrderRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec == nil {
		return r.db
	}
	return exec
}

// Create inserts a new work order row.
func (r *WorkOrderRepository) Create(ctx context.Context, exec sqlx.ExtContext, wo *models.WorkOrder) error {
	if wo.ID == "" {
		wo.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if wo.ReportedAt.IsZero() {
		wo.ReportedAt = now
	}
	wo.CreatedAt = now
	wo.UpdatedAt = now
	if wo.Status == "" {
		wo.Status = models.StatusPending
	}
	if wo.Attachments == nil {
		wo.Attachments = pq.StringArray{}
	}
	const query = `INSERT INTO work_orders
	(id, number, title, description, category, reason, location, priority, status,
	 asset_id, created_by_id, assigned_to_id, attachments, reported_at, started_at, completed_at,
	 created_at, updated_at)
	VALUES (:id, :number, :title, :description, :category, :reason, :location, :priority, :status,
	 :asset_id, :created_by_id, :assigned_to_id, :attachments, :reported_at, :started_at, :completed_at,
	 :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, wo); err != nil {
		return fmt.Errorf("create work order: %w", err)
	}
	return nil
}

// GetByID fetches a work order by identifier.
func (r *WorkOrderRepository) GetByID(ctx context.Context, id string) (*models.WorkOrder, error) {
	query := fmt.Sprintf(`SELECT %s FROM work_orders WHERE id = $1`, workOrderColumns)
	var wo models.WorkOrder
	if err := sqlx.GetContext(ctx, r.db, &wo, query, id); err != nil {
		return nil, err
	}
	return &wo, nil
}

// GetByIDForUpdate fetches a work order under a row lock. Must run inside a
// transaction; two concurrent transitions on the same order serialize here.
func (r *WorkOrderRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.WorkOrder, error) {
	query := fmt.Sprintf(`SELECT %s FROM work_orders WHERE id = $1 FOR UPDATE`, workOrderColumns)
	var wo models.WorkOrder
	if err := tx.GetContext(ctx, &wo, query, id); err != nil {
		return nil, err
	}
	return &wo, nil
}

// StatusUpdateParams groups the mutable columns of a status transition.
type StatusUpdateParams struct {
	ID          string
	FromStatus  models.WorkOrderStatus
	ToStatus    models.WorkOrderStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// UpdateStatus applies a transition guarded by the expected current status so
// a concurrent committed transition cannot be overwritten.
func (r *WorkOrderRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, params StatusUpdateParams) error {
	setParts := []string{"status = $1", "updated_at = $2"}
	args := []interface{}{params.ToStatus, time.Now().UTC()}
	if params.StartedAt != nil {
		args = append(args, *params.StartedAt)
		setParts = append(setParts, fmt.Sprintf("started_at = $%d", len(args)))
	}
	if params.CompletedAt != nil {
		args = append(args, *params.CompletedAt)
		setParts = append(setParts, fmt.Sprintf("completed_at = $%d", len(args)))
	}
	args = append(args, params.ID)
	idPos := len(args)
	args = append(args, params.FromStatus)
	query := fmt.Sprintf("UPDATE work_orders SET %s WHERE id = $%d AND status = $%d",
		strings.Join(setParts, ", "), idPos, idPos+1)
	result, err := r.exec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update work order status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check status update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateAssignment sets the assignee on a work order.
func (r *WorkOrderRepository) UpdateAssignment(ctx context.Context, exec sqlx.ExtContext, id, assigneeID string) error {
	const query = `UPDATE work_orders SET assigned_to_id = $1, updated_at = $2 WHERE id = $3`
	result, err := r.exec(exec).ExecContext(ctx, query, assigneeID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update work order assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check assignment update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeletePending removes a work order only while it is still PENDING and only
// for its creator.
func (r *WorkOrderRepository) DeletePending(ctx context.Context, id, creatorID string) (bool, error) {
	const query = `DELETE FROM work_orders WHERE id = $1 AND created_by_id = $2 AND status = $3`
	result, err := r.db.ExecContext(ctx, query, id, creatorID, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("delete pending work order: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check delete rows: %w", err)
	}
	return rows > 0, nil
}

// List returns work orders matching the filter, latest first.
func (r *WorkOrderRepository) List(ctx context.Context, filter models.WorkOrderFilter) ([]models.WorkOrder, int, error) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 8)

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.AssetID != "" {
		args = append(args, filter.AssetID)
		conditions = append(conditions, fmt.Sprintf("asset_id = $%d", len(args)))
	}
	if filter.AssignedToID != "" {
		args = append(args, filter.AssignedToID)
		conditions = append(conditions, fmt.Sprintf("assigned_to_id = $%d", len(args)))
	}
	if filter.CreatedByID != "" {
		args = append(args, filter.CreatedByID)
		conditions = append(conditions, fmt.Sprintf("created_by_id = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR number ILIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM work_orders" + where
	if err := sqlx.GetContext(ctx, r.db, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count work orders: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 20
	}

	query := fmt.Sprintf("SELECT %s FROM work_orders%s ORDER BY reported_at DESC LIMIT %d OFFSET %d",
		workOrderColumns, where, pageSize, (page-1)*pageSize)
	var orders []models.WorkOrder
	if err := sqlx.SelectContext(ctx, r.db, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list work orders: %w", err)
	}
	return orders, total, nil
}
