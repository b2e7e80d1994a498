package models

import "time"

// Asset is a maintainable piece of equipment.
type Asset struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Type      string    `db:"type" json:"type"`
	Location  string    `db:"location" json:"location,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MaintenanceHistory is a denormalized, asset-scoped completion record.
// Created alongside each ResolutionRecord, never updated.
type MaintenanceHistory struct {
	ID                string    `db:"id" json:"id"`
	AssetID           string    `db:"asset_id" json:"asset_id"`
	WorkOrderID       string    `db:"work_order_id" json:"work_order_id"`
	WorkOrderTitle    string    `db:"work_order_title" json:"work_order_title"`
	ResolutionSummary string    `db:"resolution_summary" json:"resolution_summary"`
	FaultCode         *string   `db:"fault_code" json:"fault_code,omitempty"`
	Technician        string    `db:"technician" json:"technician"`
	CompletedAt       time.Time `db:"completed_at" json:"completed_at"`
}
