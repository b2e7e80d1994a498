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

const assignmentRuleColumns = `id, name, priority, is_active, asset_types, categories, locations, priorities,
       assign_to_id, created_at, updated_at`

// AssignmentRuleRepository persists technician routing rules.
type AssignmentRuleRepository struct {
	db *sqlx.DB
}

// NewAssignmentRuleRepository constructs the repository.
func NewAssignmentRuleRepository(db *sqlx.DB) *AssignmentRuleRepository {
	return &AssignmentRuleRepository{db: db}
}

// ListActive returns active rules in match order: priority ascending, ties by
// id ascending. The ordering is what makes the matcher deterministic.
func (r *AssignmentRuleRepository) ListActive(ctx context.Context) ([]models.AssignmentRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM assignment_rules WHERE is_active = TRUE ORDER BY priority ASC, id ASC`, assignmentRuleColumns)
	var rules []models.AssignmentRule
	if err := sqlx.SelectContext(ctx, r.db, &rules, query); err != nil {
		return nil, fmt.Errorf("list active assignment rules: %w", err)
	}
	return rules, nil
}

// List returns all rules, match order first.
func (r *AssignmentRuleRepository) List(ctx context.Context) ([]models.AssignmentRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM assignment_rules ORDER BY priority ASC, id ASC`, assignmentRuleColumns)
	var rules []models.AssignmentRule
	if err := sqlx.SelectContext(ctx, r.db, &rules, query); err != nil {
		return nil, fmt.Errorf("list assignment rules: %w", err)
	}
	return rules, nil
}

// GetByID fetches a rule by identifier.
func (r *AssignmentRuleRepository) GetByID(ctx context.Context, id string) (*models.AssignmentRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM assignment_rules WHERE id = $1`, assignmentRuleColumns)
	var rule models.AssignmentRule
	if err := sqlx.GetContext(ctx, r.db, &rule, query, id); err != nil {
		return nil, err
	}
	return &rule, nil
}

// Create inserts a new rule.
func (r *AssignmentRuleRepository) Create(ctx context.Context, rule *models.AssignmentRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	normalizeRuleSets(rule)
	const query = `INSERT INTO assignment_rules
	(id, name, priority, is_active, asset_types, categories, locations, priorities, assign_to_id, created_at, updated_at)
	VALUES (:id, :name, :priority, :is_active, :asset_types, :categories, :locations, :priorities, :assign_to_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, rule); err != nil {
		return fmt.Errorf("create assignment rule: %w", err)
	}
	return nil
}

// Update rewrites all mutable columns of a rule.
func (r *AssignmentRuleRepository) Update(ctx context.Context, rule *models.AssignmentRule) error {
	rule.UpdatedAt = time.Now().UTC()
	normalizeRuleSets(rule)
	const query = `UPDATE assignment_rules SET
	name = :name, priority = :priority, is_active = :is_active,
	asset_types = :asset_types, categories = :categories, locations = :locations, priorities = :priorities,
	assign_to_id = :assign_to_id, updated_at = :updated_at
	WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.db, query, rule)
	if err != nil {
		return fmt.Errorf("update assignment rule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rule update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a rule.
func (r *AssignmentRuleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM assignment_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assignment rule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rule delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func normalizeRuleSets(rule *models.AssignmentRule) {
	if rule.AssetTypes == nil {
		rule.AssetTypes = pq.StringArray{}
	}
	if rule.Categories == nil {
		rule.Categories = pq.StringArray{}
	}
	if rule.Locations == nil {
		rule.Locations = pq.StringArray{}
	}
	if rule.Priorities == nil {
		rule.Priorities = pq.StringArray{}
	}
}
