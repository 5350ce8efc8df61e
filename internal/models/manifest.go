package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ManifestStatus string

const (
	ManifestUploaded             ManifestStatus = "UPLOADED"
	ManifestAnalyzing            ManifestStatus = "ANALYZING"
	ManifestAwaitingConfirmation ManifestStatus = "AWAITING_CONFIRMATION"
	ManifestConfirmed            ManifestStatus = "CONFIRMED"
	ManifestProcessingFailed     ManifestStatus = "PROCESSING_FAILED"
	ManifestFinalized            ManifestStatus = "FINALIZED"
)

// Confirmable reports whether confirm and finalize may act on a manifest in this status.
func (s ManifestStatus) Confirmable() bool {
	return s == ManifestAwaitingConfirmation || s == ManifestConfirmed
}

type MatchType string

const (
	MatchUNNumber       MatchType = "un_number"
	MatchProperName     MatchType = "proper_name"
	MatchSimplifiedName MatchType = "simplified_name"
	MatchSynonym        MatchType = "synonym"
)

type Manifest struct {
	ID                      uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID              uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"document_id"`
	ShipmentID              uuid.UUID      `gorm:"type:uuid;not null;index" json:"shipment_id"`
	ManifestType            string         `gorm:"type:text;not null" json:"manifest_type"`
	Status                  ManifestStatus `gorm:"type:text;not null;index" json:"status"`
	AnalysisResults         datatypes.JSON `json:"analysis_results,omitempty"`
	ConfirmedDangerousGoods datatypes.JSON `json:"confirmed_dangerous_goods,omitempty"`
	ErrorMessage            *string        `gorm:"type:text" json:"error_message,omitempty"`
	ConfirmedBy             *string        `gorm:"type:text" json:"confirmed_by,omitempty"`
	AnalysisStartedAt       *time.Time     `json:"analysis_started_at,omitempty"`
	AnalysisCompletedAt     *time.Time     `json:"analysis_completed_at,omitempty"`
	ConfirmedAt             *time.Time     `json:"confirmed_at,omitempty"`
	FinalizedAt             *time.Time     `json:"finalized_at,omitempty"`
	CreatedAt               time.Time      `json:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"`

	// Relations
	Document  Document             `gorm:"foreignKey:DocumentID" json:"-"`
	DGMatches []DangerousGoodMatch `gorm:"foreignKey:ManifestID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Manifest) TableName() string {
	return "manifests"
}

// DangerousGoodMatch is one candidate detection within a manifest.
type DangerousGoodMatch struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ManifestID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"manifest_id"`
	UNNumber           string     `gorm:"type:text;not null;index" json:"un_number"`
	ProperShippingName string     `gorm:"type:text" json:"proper_shipping_name"`
	HazardClass        string     `gorm:"type:text" json:"hazard_class"`
	PackingGroup       *string    `gorm:"type:text" json:"packing_group,omitempty"`
	FoundText          string     `gorm:"type:text" json:"found_text"`
	MatchedTerm        *string    `gorm:"type:text" json:"matched_term,omitempty"`
	PageNumber         int        `json:"page_number"`
	ConfidenceScore    float64    `json:"confidence_score"`
	MatchType          MatchType  `gorm:"type:text" json:"match_type"`
	Quantity           *int       `json:"quantity,omitempty"`
	WeightKg           *float64   `json:"weight_kg,omitempty"`
	IsConfirmed        bool       `gorm:"not null;default:false" json:"is_confirmed"`
	ConfirmedBy        *string    `gorm:"type:text" json:"confirmed_by,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (DangerousGoodMatch) TableName() string {
	return "manifest_dangerous_good_matches"
}
