package models

import (
	"time"

	"github.com/google/uuid"
)

const ShipmentStatusPending = "PENDING"

type Shipment struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TrackingNumber string         `gorm:"type:text;uniqueIndex;not null" json:"tracking_number"`
	CustomerName   string         `gorm:"type:text" json:"customer_name"`
	Status         string         `gorm:"type:text;not null" json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Items          []ShipmentItem `gorm:"foreignKey:ShipmentID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (Shipment) TableName() string {
	return "shipments"
}

// ShipmentItem is a consignment line; finalize creates one per confirmed dangerous good.
type ShipmentItem struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ShipmentID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"shipment_id"`
	Description      string     `gorm:"type:text" json:"description"`
	Quantity         int        `json:"quantity"`
	WeightKg         float64    `json:"weight_kg"`
	IsDangerousGood  bool       `json:"is_dangerous_good"`
	UNNumber         *string    `gorm:"type:text" json:"un_number,omitempty"`
	HazardClass      *string    `gorm:"type:text" json:"hazard_class,omitempty"`
	PackingGroup     *string    `gorm:"type:text" json:"packing_group,omitempty"`
	SourceManifestID *uuid.UUID `gorm:"type:uuid;index" json:"source_manifest_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (ShipmentItem) TableName() string {
	return "shipment_items"
}
