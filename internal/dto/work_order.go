package dto

import "github.com/wrenchworks/cmms-api/internal/models"

// CreateWorkOrderRequest is the payload for opening a new work order.
type CreateWorkOrderRequest struct {
	Title       string                   `json:"title" validate:"required,max=200"`
	Description string                   `json:"description" validate:"required"`
	Category    string                   `json:"category" validate:"required,max=100"`
	Reason      string                   `json:"reason"`
	Location    string                   `json:"location"`
	Priority    models.WorkOrderPriority `json:"priority" validate:"required"`
	AssetID     string                   `json:"asset_id" validate:"required"`
	Attachments []string                 `json:"attachments"`
}

// AssignWorkOrderRequest assigns a technician to a pending work order.
type AssignWorkOrderRequest struct {
	AssignedToID string `json:"assigned_to_id" validate:"required"`
}

// UpdateStatusRequest requests a status transition.
type UpdateStatusRequest struct {
	Status models.WorkOrderStatus `json:"status" validate:"required"`
	Notes  string                 `json:"notes"`
}

// CompleteWorkOrderRequest records the resolution at completion time.
type CompleteWorkOrderRequest struct {
	SolutionDescription string  `json:"solution_description" validate:"required"`
	FaultCode           *string `json:"fault_code"`
}

// WorkOrderQuery captures list filters from query parameters.
type WorkOrderQuery struct {
	Status       []string `form:"status"`
	Priority     string   `form:"priority"`
	AssetID      string   `form:"assetId"`
	AssignedToID string   `form:"assignedTo"`
	CreatedByID  string   `form:"createdBy"`
	Category     string   `form:"category"`
	Search       string   `form:"search"`
	Page         int      `form:"page"`
	PageSize     int      `form:"pageSize"`
}

// ResolutionPhotoUpload describes one uploaded photo.
type ResolutionPhotoUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ResolutionPhotosResponse returns stored photo references with signed URLs.
type ResolutionPhotosResponse struct {
	WorkOrderID string   `json:"work_order_id"`
	Photos      []string `json:"photos"`
	SignedURLs  []string `json:"signed_urls"`
}
