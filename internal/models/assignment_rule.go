package models

import (
	"time"

	"github.com/lib/pq"
)

// AssignmentRule routes new work orders to a technician. Empty set fields
// are wildcards that match any value.
type AssignmentRule struct {
	ID         string         `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	Priority   int            `db:"priority" json:"priority"`
	IsActive   bool           `db:"is_active" json:"is_active"`
	AssetTypes pq.StringArray `db:"asset_types" json:"asset_types"`
	Categories pq.StringArray `db:"categories" json:"categories"`
	Locations  pq.StringArray `db:"locations" json:"locations"`
	Priorities pq.StringArray `db:"priorities" json:"priorities"`
	AssignToID string         `db:"assign_to_id" json:"assign_to_id"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// WorkOrderAttributes is the matcher input derived from a new work order.
type WorkOrderAttributes struct {
	Category  string
	Location  string
	Priority  WorkOrderPriority
	AssetType string
}

// Matches reports whether every non-empty rule field contains the
// corresponding work order attribute.
func (r *AssignmentRule) Matches(attrs WorkOrderAttributes) bool {
	if !containsOrEmpty(r.Categories, attrs.Category) {
		return false
	}
	if !containsOrEmpty(r.Locations, attrs.Location) {
		return false
	}
	if !containsOrEmpty(r.Priorities, string(attrs.Priority)) {
		return false
	}
	if !containsOrEmpty(r.AssetTypes, attrs.AssetType) {
		return false
	}
	return true
}

func containsOrEmpty(set pq.StringArray, value string) bool {
	if len(set) == 0 {
		return true
	}
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}
