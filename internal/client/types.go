package client

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NormalizeUNNumber turns "un 1203", "1203" and " UN1203" into "UN1203".
// Blank input stays blank.
func NormalizeUNNumber(s string) string {
	s = strings.ToUpper(strings.Join(strings.Fields(s), ""))
	if s == "" || strings.HasPrefix(s, "UN") {
		return s
	}
	return "UN" + s
}

type JobStatus string

const (
	StatusUploaded             JobStatus = "UPLOADED"
	StatusAnalyzing            JobStatus = "ANALYZING"
	StatusAwaitingConfirmation JobStatus = "AWAITING_CONFIRMATION"
	StatusConfirmed            JobStatus = "CONFIRMED"
	StatusProcessingFailed     JobStatus = "PROCESSING_FAILED"
	StatusFinalized            JobStatus = "FINALIZED"
)

// Document-level statuses reported alongside a job.
const (
	DocumentQueued              = "QUEUED"
	DocumentProcessing          = "PROCESSING"
	DocumentValidatedOK         = "VALIDATED_OK"
	DocumentValidatedWithErrors = "VALIDATED_WITH_ERRORS"
)

// Aggregate statuses of a shipment's manifests.
const (
	OverallAnalyzing            = "analyzing"
	OverallProcessing           = "processing"
	OverallAwaitingConfirmation = "awaiting_confirmation"
	OverallConfirmed            = "confirmed"
	OverallFailed               = "failed"
	OverallFinalized            = "finalized"
	OverallNoManifest           = "no_manifest"
)

type MatchType string

const (
	MatchUNNumber       MatchType = "un_number"
	MatchProperName     MatchType = "proper_name"
	MatchSimplifiedName MatchType = "simplified_name"
	MatchSynonym        MatchType = "synonym"
)

type DangerousGoodMatch struct {
	ID                 string     `json:"id,omitempty"`
	UNNumber           string     `json:"un_number"`
	ProperShippingName string     `json:"proper_shipping_name"`
	HazardClass        string     `json:"hazard_class"`
	PackingGroup       *string    `json:"packing_group,omitempty"`
	FoundText          string     `json:"found_text"`
	MatchedTerm        *string    `json:"matched_term,omitempty"`
	PageNumber         int        `json:"page_number"`
	ConfidenceScore    float64    `json:"confidence_score"`
	MatchType          MatchType  `json:"match_type"`
	Quantity           *int       `json:"quantity,omitempty"`
	WeightKg           *float64   `json:"weight_kg,omitempty"`
	IsConfirmed        bool       `json:"is_confirmed,omitempty"`
	ConfirmedBy        *string    `json:"confirmed_by,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
}

// Validate checks the invariants a match must hold regardless of who built it.
func (m DangerousGoodMatch) Validate() error {
	if m.UNNumber == "" {
		return fmt.Errorf("match has no UN number")
	}
	if m.ConfidenceScore < 0 || m.ConfidenceScore > 1 {
		return fmt.Errorf("%s: confidence score %.2f outside [0,1]", m.UNNumber, m.ConfidenceScore)
	}
	if m.IsConfirmed && (m.ConfirmedBy == nil || m.ConfirmedAt == nil) {
		return fmt.Errorf("%s: confirmed match requires confirmed_by and confirmed_at", m.UNNumber)
	}
	return nil
}

type TextRegion struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

type AnalysisResults struct {
	TextRegions        []TextRegion `json:"text_regions"`
	PageCount          int          `json:"page_count"`
	TextLength         int          `json:"text_length"`
	ProcessingMethod   string       `json:"processing_method"`
	UnmatchedEntries   []string     `json:"unmatched_entries"`
	Warnings           []string     `json:"warnings"`
	TotalDGsIdentified int          `json:"total_dgs_identified"`
}

// ManifestJob is one upload-to-finalization attempt as reported by the server.
type ManifestJob struct {
	ID                  string               `json:"id"`
	ShipmentID          string               `json:"shipment_id"`
	DocumentID          string               `json:"document_id"`
	DocumentStatus      string               `json:"document_status"`
	FileName            string               `json:"file_name"`
	ManifestType        string               `json:"manifest_type"`
	Status              JobStatus            `json:"status"`
	AnalysisResults     *AnalysisResults     `json:"analysis_results,omitempty"`
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

// MatchesReady reports whether DGMatches carries analysis output.
func (j ManifestJob) MatchesReady() bool {
	switch j.Status {
	case StatusAwaitingConfirmation, StatusConfirmed, StatusFinalized:
		return true
	}
	return false
}

func (j ManifestJob) UNNumbers() []string {
	out := make([]string, 0, len(j.DGMatches))
	for _, m := range j.DGMatches {
		out = append(out, m.UNNumber)
	}
	return out
}

// EditMatch sets quantity and weight on the match for unNumber. Nil values
// leave the current value. Finalized jobs are read-only.
func (j *ManifestJob) EditMatch(unNumber string, quantity *int, weightKg *float64) error {
	if j.Status == StatusFinalized {
		return fmt.Errorf("%w: %s", ErrJobFinalized, j.ID)
	}
	unNumber = NormalizeUNNumber(unNumber)
	for i := range j.DGMatches {
		if j.DGMatches[i].UNNumber != unNumber {
			continue
		}
		if quantity != nil {
			if *quantity < 0 {
				return fmt.Errorf("%s: quantity must not be negative", unNumber)
			}
			q := *quantity
			j.DGMatches[i].Quantity = &q
		}
		if weightKg != nil {
			if *weightKg < 0 {
				return fmt.Errorf("%s: weight must not be negative", unNumber)
			}
			w := *weightKg
			j.DGMatches[i].WeightKg = &w
		}
		return nil
	}
	return fmt.Errorf("%s is not among the matches of manifest %s", unNumber, j.ID)
}

type ShipmentSummary struct {
	ID             string `json:"id"`
	TrackingNumber string `json:"tracking_number"`
	Status         string `json:"status"`
	ItemCount      int64  `json:"item_count"`
}

type ManifestStatusResponse struct {
	Shipment      ShipmentSummary `json:"shipment"`
	Manifests     []ManifestJob   `json:"manifests"`
	OverallStatus string          `json:"overall_status"`
}

// Active reports whether polling should continue.
func (r *ManifestStatusResponse) Active() bool {
	return r.OverallStatus == OverallAnalyzing || r.OverallStatus == OverallProcessing
}

func (r *ManifestStatusResponse) Job(id string) (ManifestJob, bool) {
	for _, m := range r.Manifests {
		if m.ID == id {
			return m, true
		}
	}
	return ManifestJob{}, false
}

type ShipmentItem struct {
	ID               string  `json:"id"`
	Description      string  `json:"description"`
	Quantity         int     `json:"quantity"`
	WeightKg         float64 `json:"weight_kg"`
	IsDangerousGood  bool    `json:"is_dangerous_good"`
	UNNumber         *string `json:"un_number,omitempty"`
	HazardClass      *string `json:"hazard_class,omitempty"`
	PackingGroup     *string `json:"packing_group,omitempty"`
	SourceManifestID *string `json:"source_manifest_id,omitempty"`
}

type Shipment struct {
	ID             string         `json:"id"`
	TrackingNumber string         `json:"tracking_number"`
	CustomerName   string         `json:"customer_name"`
	Status         string         `json:"status"`
	ItemCount      int            `json:"item_count"`
	Items          []ShipmentItem `json:"items"`
}

type UploadResult struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CompatibilityResult keeps the server payload in Raw so callers can surface
// it unchanged.
type CompatibilityResult struct {
	IsCompatible     bool     `json:"is_compatible"`
	Conflicts        []string `json:"conflicts"`
	Warnings         []string `json:"warnings,omitempty"`
	CheckedUNNumbers []string `json:"checked_un_numbers,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func (r *CompatibilityResult) UnmarshalJSON(data []byte) error {
	type plain CompatibilityResult
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = CompatibilityResult(p)
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

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

type ConfirmResult struct {
	Message             string              `json:"message"`
	ConfirmedCount      int                 `json:"confirmed_count"`
	CompatibilityResult CompatibilityResult `json:"compatibility_result"`
	Manifest            ManifestJob         `json:"manifest"`
}

// FinalizeResult covers both finalize targets. Manifest is set for the
// manifest target, Shipment and the document fields for the legacy target.
type FinalizeResult struct {
	Message             string               `json:"message"`
	CreatedItemsCount   int                  `json:"created_items_count"`
	CompatibilityResult *CompatibilityResult `json:"compatibility_result,omitempty"`
	Manifest            *ManifestJob         `json:"manifest,omitempty"`
	Shipment            *Shipment            `json:"shipment,omitempty"`
	CompatibilityStatus string               `json:"compatibility_status,omitempty"`
	GeneratedDocuments  []string             `json:"generated_documents,omitempty"`
	DocumentStatus      string               `json:"document_status,omitempty"`
}
