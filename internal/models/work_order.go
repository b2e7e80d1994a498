package models

import (
	"time"

	"github.com/lib/pq"
)

// WorkOrderStatus enumerates lifecycle states for work orders.
type WorkOrderStatus string

const (
	StatusPending         WorkOrderStatus = "PENDING"
	StatusInProgress      WorkOrderStatus = "IN_PROGRESS"
	StatusWaitingParts    WorkOrderStatus = "WAITING_PARTS"
	StatusWaitingExternal WorkOrderStatus = "WAITING_EXTERNAL"
	StatusCompleted       WorkOrderStatus = "COMPLETED"
	StatusCancelled       WorkOrderStatus = "CANCELLED"
)

// allowedTransitions is the full status state machine. COMPLETED and
// CANCELLED are terminal and carry no entry.
var allowedTransitions = map[WorkOrderStatus][]WorkOrderStatus{
	StatusPending:         {StatusInProgress, StatusCancelled},
	StatusInProgress:      {StatusWaitingParts, StatusWaitingExternal, StatusCompleted, StatusCancelled},
	StatusWaitingParts:    {StatusInProgress, StatusCancelled},
	StatusWaitingExternal: {StatusInProgress, StatusCancelled},
}

// CanTransition reports whether from -> to is an allowed status change.
func CanTransition(from, to WorkOrderStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether the value is a known work order status.
func ValidStatus(s WorkOrderStatus) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusWaitingParts, StatusWaitingExternal, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions.
func (s WorkOrderStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0 && ValidStatus(s)
}

// WorkOrderPriority enumerates urgency levels.
type WorkOrderPriority string

const (
	PriorityLow    WorkOrderPriority = "LOW"
	PriorityMedium WorkOrderPriority = "MEDIUM"
	PriorityHigh   WorkOrderPriority = "HIGH"
	PriorityUrgent WorkOrderPriority = "URGENT"
)

// ValidPriority reports whether the value is a known priority.
func ValidPriority(p WorkOrderPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// WorkOrder is a trackable maintenance task against an asset.
type WorkOrder struct {
	ID           string            `db:"id" json:"id"`
	Number       string            `db:"number" json:"number"`
	Title        string            `db:"title" json:"title"`
	Description  string            `db:"description" json:"description"`
	Category     string            `db:"category" json:"category"`
	Reason       string            `db:"reason" json:"reason,omitempty"`
	Location     string            `db:"location" json:"location,omitempty"`
	Priority     WorkOrderPriority `db:"priority" json:"priority"`
	Status       WorkOrderStatus   `db:"status" json:"status"`
	AssetID      string            `db:"asset_id" json:"asset_id"`
	CreatedByID  string            `db:"created_by_id" json:"created_by_id"`
	AssignedToID *string           `db:"assigned_to_id" json:"assigned_to_id,omitempty"`
	Attachments  pq.StringArray    `db:"attachments" json:"attachments"`
	ReportedAt   time.Time         `db:"reported_at" json:"reported_at"`
	StartedAt    *time.Time        `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}

// StatusHistory is an append-only audit entry for one status transition.
type StatusHistory struct {
	ID          string          `db:"id" json:"id"`
	WorkOrderID string          `db:"work_order_id" json:"work_order_id"`
	FromStatus  WorkOrderStatus `db:"from_status" json:"from_status"`
	ToStatus    WorkOrderStatus `db:"to_status" json:"to_status"`
	ChangedByID string          `db:"changed_by_id" json:"changed_by_id"`
	Notes       string          `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// ResolutionRecord captures how and by whom a work order was resolved.
// At most one exists per work order, created at completion time.
type ResolutionRecord struct {
	ID                  string         `db:"id" json:"id"`
	WorkOrderID         string         `db:"work_order_id" json:"work_order_id"`
	SolutionDescription string         `db:"solution_description" json:"solution_description"`
	FaultCode           *string        `db:"fault_code" json:"fault_code,omitempty"`
	ResolvedByID        string         `db:"resolved_by_id" json:"resolved_by_id"`
	Photos              pq.StringArray `db:"photos" json:"photos"`
	CompletedAt         time.Time      `db:"completed_at" json:"completed_at"`
}

// WorkOrderFilter captures listing criteria.
type WorkOrderFilter struct {
	Status       []WorkOrderStatus
	Priority     *WorkOrderPriority
	AssetID      string
	AssignedToID string
	CreatedByID  string
	Category     string
	Search       string
	Page         int
	PageSize     int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
