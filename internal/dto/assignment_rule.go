package dto

// CreateAssignmentRuleRequest defines a routing rule. Empty list fields act
// as wildcards.
type CreateAssignmentRuleRequest struct {
	Name       string   `json:"name" validate:"required,max=100"`
	Priority   int      `json:"priority" validate:"gte=0"`
	IsActive   *bool    `json:"is_active"`
	AssetTypes []string `json:"asset_types"`
	Categories []string `json:"categories"`
	Locations  []string `json:"locations"`
	Priorities []string `json:"priorities"`
	AssignToID string   `json:"assign_to_id" validate:"required"`
}

// UpdateAssignmentRuleRequest mutates an existing rule. Nil fields are left
// unchanged.
type UpdateAssignmentRuleRequest struct {
	Name       *string   `json:"name"`
	Priority   *int      `json:"priority"`
	IsActive   *bool     `json:"is_active"`
	AssetTypes *[]string `json:"asset_types"`
	Categories *[]string `json:"categories"`
	Locations  *[]string `json:"locations"`
	Priorities *[]string `json:"priorities"`
	AssignToID *string   `json:"assign_to_id"`
}
