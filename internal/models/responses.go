package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type UploadResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type CreateShipmentRequest struct {
	TrackingNumber string `json:"tracking_number"`
	CustomerName   string `json:"customer_name"`
}

type ConfirmRequest struct {
	ConfirmedUNNumbers []string `json:"confirmed_un_numbers"`
}

// DangerousGoodConfirmation is the write-only projection of a confirmed match.
type DangerousGoodConfirmation struct {
	UNNumber        string   `json:"un_number"`
	Description     string   `json:"description"`
	Quantity        int      `json:"quantity"`
	WeightKg        float64  `json:"weight_kg"`
	FoundText       *string  `json:"found_text,omitempty"`
	MatchedTerm     *string  `json:"matched_term,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	PageNumber      *int     `json:"page_number,omitempty"`
}

type FinalizeRequest struct {
	ConfirmedDangerousGoods []DangerousGoodConfirmation `json:"confirmed_dangerous_goods"`
}

type LegacyFinalizeRequest struct {
	DocumentID              string                      `json:"document_id"`
	ConfirmedDangerousGoods []DangerousGoodConfirmation `json:"confirmed_dangerous_goods"`
}

type CompatibilityResult struct {
	IsCompatible     bool     `json:"is_compatible"`
	Conflicts        []string `json:"conflicts"`
	Warnings         []string `json:"warnings"`
	CheckedUNNumbers []string `json:"checked_un_numbers"`
}

type ManifestView struct {
	ID                  string               `json:"id"`
	ShipmentID          string               `json:"shipment_id"`
	DocumentID          string               `json:"document_id"`
	DocumentStatus      DocumentStatus       `json:"document_status"`
	FileName            string               `json:"file_name"`
	ManifestType        string               `json:"manifest_type"`
	Status              ManifestStatus       `json:"status"`
	AnalysisResults     json.RawMessage      `json:"analysis_results,omitempty"`
	DGMatches           []DangerousGoodMatch `json:"dg_matches"`
	DGMatchesCount      int                  `json:"dg_matches_count"`
	ConfirmedDGCount    int                  `json:"confirmed_dg_count"`
	ErrorMessage        *string              `json:"error_message,omitempty"`
	ConfirmedBy         *string              `json:"confirmed_by,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
	AnalysisCompletedAt *time.Time           `json:"analysis_completed_at,omitempty"`
	ConfirmedAt         *time.Time           `json:"confirmed_at,omitempty"`
	FinalizedAt         *time.Time           `json:"finalized_at,omitempty"`
}

// NewManifestView expects m.Document and m.DGMatches to be loaded.
func NewManifestView(m *Manifest) ManifestView {
	view := ManifestView{
		ID:                  m.ID.String(),
		ShipmentID:          m.ShipmentID.String(),
		DocumentID:          m.DocumentID.String(),
		DocumentStatus:      m.Document.Status,
		FileName:            m.Document.OriginalFileName,
		ManifestType:        m.ManifestType,
		Status:              m.Status,
		DGMatches:           m.DGMatches,
		DGMatchesCount:      len(m.DGMatches),
		ErrorMessage:        m.ErrorMessage,
		ConfirmedBy:         m.ConfirmedBy,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
		AnalysisCompletedAt: m.AnalysisCompletedAt,
		ConfirmedAt:         m.ConfirmedAt,
		FinalizedAt:         m.FinalizedAt,
	}
	if view.DGMatches == nil {
		view.DGMatches = []DangerousGoodMatch{}
	}
	if len(m.AnalysisResults) > 0 {
		view.AnalysisResults = json.RawMessage(m.AnalysisResults)
	}
	for _, match := range m.DGMatches {
		if match.IsConfirmed {
			view.ConfirmedDGCount++
		}
	}
	return view
}

type ShipmentSummary struct {
	ID             string `json:"id"`
	TrackingNumber string `json:"tracking_number"`
	Status         string `json:"status"`
	ItemCount      int64  `json:"item_count"`
}

// Aggregate values of ManifestStatusResponse.OverallStatus.
const (
	OverallAnalyzing            = "analyzing"
	OverallProcessing           = "processing"
	OverallAwaitingConfirmation = "awaiting_confirmation"
	OverallConfirmed            = "confirmed"
	OverallFailed               = "failed"
	OverallFinalized            = "finalized"
	OverallNoManifest           = "no_manifest"
)

type ManifestStatusResponse struct {
	Shipment      ShipmentSummary `json:"shipment"`
	Manifests     []ManifestView  `json:"manifests"`
	OverallStatus string          `json:"overall_status"`
}

type ConfirmResponse struct {
	Message             string              `json:"message"`
	ConfirmedCount      int                 `json:"confirmed_count"`
	CompatibilityResult CompatibilityResult `json:"compatibility_result"`
	Manifest            ManifestView        `json:"manifest"`
}

type FinalizeResponse struct {
	Message             string              `json:"message"`
	CreatedItemsCount   int                 `json:"created_items_count"`
	CompatibilityResult CompatibilityResult `json:"compatibility_result"`
	Manifest            ManifestView        `json:"manifest"`
}

type LegacyFinalizeResponse struct {
	Message             string         `json:"message"`
	Shipment            ShipmentDetail `json:"shipment"`
	CreatedItemsCount   int            `json:"created_items_count"`
	CompatibilityStatus string         `json:"compatibility_status"`
	GeneratedDocuments  []string       `json:"generated_documents"`
	DocumentStatus      DocumentStatus `json:"document_status"`
}

type ShipmentDetail struct {
	ID             uuid.UUID      `json:"id"`
	TrackingNumber string         `json:"tracking_number"`
	CustomerName   string         `json:"customer_name"`
	Status         string         `json:"status"`
	ItemCount      int            `json:"item_count"`
	Items          []ShipmentItem `json:"items"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func NewShipmentDetail(s *Shipment) ShipmentDetail {
	items := s.Items
	if items == nil {
		items = []ShipmentItem{}
	}
	return ShipmentDetail{
		ID:             s.ID,
		TrackingNumber: s.TrackingNumber,
		CustomerName:   s.CustomerName,
		Status:         s.Status,
		ItemCount:      len(items),
		Items:          items,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

type ErrorResponse struct {
	Error               string               `json:"error"`
	CompatibilityResult *CompatibilityResult `json:"compatibility_result,omitempty"`
}
