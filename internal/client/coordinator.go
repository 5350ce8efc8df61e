package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"

	"go.uber.org/zap"
)

// FinalizeTarget selects which finalize endpoint a call goes to.
type FinalizeTarget struct {
	manifestID string
	shipmentID string
	documentID string
}

// ManifestTarget finalizes through the manifest endpoint.
func ManifestTarget(manifestID string) FinalizeTarget {
	return FinalizeTarget{manifestID: manifestID}
}

// ShipmentDocumentTarget finalizes through the shipment endpoint, naming the
// uploaded document.
func ShipmentDocumentTarget(shipmentID, documentID string) FinalizeTarget {
	return FinalizeTarget{shipmentID: shipmentID, documentID: documentID}
}

func (t FinalizeTarget) legacy() bool {
	return t.manifestID == ""
}

func (t FinalizeTarget) validate() error {
	if t.legacy() {
		if t.shipmentID == "" || t.documentID == "" {
			return &ContractViolationError{Operation: "finalize", Reason: "shipment and document ids are required"}
		}
		return nil
	}
	return nil
}

func (t FinalizeTarget) path() string {
	if t.legacy() {
		return "/shipments/" + url.PathEscape(t.shipmentID) + "/finalize-from-manifest/"
	}
	return "/manifests/" + url.PathEscape(t.manifestID) + "/finalize/"
}

func (t FinalizeTarget) body(confirmed []DangerousGoodConfirmation) any {
	if t.legacy() {
		return map[string]any{
			"document_id":               t.documentID,
			"confirmed_dangerous_goods": confirmed,
		}
	}
	return map[string]any{"confirmed_dangerous_goods": confirmed}
}

func (t FinalizeTarget) String() string {
	if t.legacy() {
		return fmt.Sprintf("shipment %s document %s", t.shipmentID, t.documentID)
	}
	return "manifest " + t.manifestID
}

// ConfirmDangerousGoods records which detected UN numbers the user accepts.
func (c *Client) ConfirmDangerousGoods(ctx context.Context, manifestID string, unNumbers []string) (*ConfirmResult, error) {
	if len(unNumbers) == 0 {
		return nil, &ContractViolationError{Operation: "confirm", Reason: "at least one UN number is required"}
	}
	req := map[string][]string{"confirmed_un_numbers": unNumbers}

	var result ConfirmResult
	if err := c.doJSON(ctx, http.MethodPost, "/manifests/"+url.PathEscape(manifestID)+"/confirm_dangerous_goods/", req, &result); err != nil {
		return nil, err
	}
	c.cache.InvalidateFor(MutationConfirm, result.Manifest.ShipmentID)
	return &result, nil
}

// Finalize commits confirmed goods for either target. Both endpoints share one
// response classification.
func (c *Client) Finalize(ctx context.Context, target FinalizeTarget, confirmed []DangerousGoodConfirmation) (*FinalizeResult, error) {
	if err := target.validate(); err != nil {
		return nil, err
	}
	if len(confirmed) == 0 {
		return nil, &ContractViolationError{Operation: "finalize", Reason: "at least one confirmed dangerous good is required"}
	}

	payload, err := json.Marshal(target.body(confirmed))
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, target.path(), bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	status, body, err := c.send(req)
	if err != nil {
		return nil, err
	}

	result, err := classifyFinalizeResponse(status, body)
	if err != nil {
		c.log.Warn("finalize failed",
			zap.String("target", target.String()),
			zap.Int("status", status),
			zap.Error(err))
		return nil, err
	}

	shipmentID := target.shipmentID
	if shipmentID == "" && result.Manifest != nil {
		shipmentID = result.Manifest.ShipmentID
	}
	c.cache.InvalidateFor(MutationFinalize, shipmentID)
	return result, nil
}

// classifyFinalizeResponse turns a finalize response into a result or an
// error. Any body reporting is_compatible=false becomes a *CompatibilityError
// whatever the status code.
func classifyFinalizeResponse(status int, body []byte) (*FinalizeResult, error) {
	var rejection struct {
		Error               string               `json:"error"`
		CompatibilityResult *CompatibilityResult `json:"compatibility_result"`
	}
	if err := json.Unmarshal(body, &rejection); err == nil &&
		rejection.CompatibilityResult != nil && !rejection.CompatibilityResult.IsCompatible {
		msg := rejection.Error
		if msg == "" {
			msg = "dangerous goods are incompatible"
		}
		return nil, &CompatibilityError{
			StatusCode: status,
			Message:    msg,
			Result:     *rejection.CompatibilityResult,
		}
	}

	if !isSuccess(status) {
		return nil, newAPIError(status, body)
	}

	var result FinalizeResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode finalize response: %w", err)
	}
	return &result, nil
}

// Coordinator drives confirm and finalize against jobs the caller has polled.
type Coordinator struct {
	client *Client
	log    *zap.Logger
}

func NewCoordinator(client *Client) *Coordinator {
	return &Coordinator{client: client, log: client.log}
}

// Confirm sends unNumbers for job. Every value must be one of the job's
// detected UN numbers and the job must have matches to confirm.
func (co *Coordinator) Confirm(ctx context.Context, job ManifestJob, unNumbers []string) (*ConfirmResult, error) {
	if !job.MatchesReady() {
		return nil, &ContractViolationError{
			Operation: "confirm",
			Reason:    fmt.Sprintf("manifest %s has no analysis results (status %s)", job.ID, job.Status),
		}
	}
	if job.Status == StatusFinalized {
		return nil, fmt.Errorf("%w: %s", ErrJobFinalized, job.ID)
	}
	if len(unNumbers) == 0 {
		return nil, &ContractViolationError{Operation: "confirm", Reason: "at least one UN number is required"}
	}

	detected := job.UNNumbers()
	normalized := make([]string, 0, len(unNumbers))
	var unknown []string
	for _, un := range unNumbers {
		n := NormalizeUNNumber(un)
		if !slices.Contains(detected, n) {
			unknown = append(unknown, un)
			continue
		}
		normalized = append(normalized, n)
	}
	if len(unknown) > 0 {
		return nil, &ContractViolationError{
			Operation: "confirm",
			Reason:    "not detected in manifest " + job.ID,
			Values:    unknown,
		}
	}

	return co.client.ConfirmDangerousGoods(ctx, job.ID, normalized)
}

// Finalize commits confirmed goods through target.
func (co *Coordinator) Finalize(ctx context.Context, target FinalizeTarget, confirmed []DangerousGoodConfirmation) (*FinalizeResult, error) {
	return co.client.Finalize(ctx, target, confirmed)
}

// BuildConfirmations projects the matches for unNumbers into finalize
// entries, keeping match order. Quantity defaults to 1 and weight to 0.
func BuildConfirmations(matches []DangerousGoodMatch, unNumbers []string) []DangerousGoodConfirmation {
	wanted := make(map[string]bool, len(unNumbers))
	for _, un := range unNumbers {
		wanted[NormalizeUNNumber(un)] = true
	}
	out := make([]DangerousGoodConfirmation, 0, len(unNumbers))
	for _, m := range matches {
		if !wanted[m.UNNumber] {
			continue
		}
		conf := DangerousGoodConfirmation{
			UNNumber:    m.UNNumber,
			Description: m.ProperShippingName,
			Quantity:    1,
			FoundText:   strPtr(m.FoundText),
			MatchedTerm: m.MatchedTerm,
			PageNumber:  intPtr(m.PageNumber),
		}
		if m.Quantity != nil {
			conf.Quantity = *m.Quantity
		}
		if m.WeightKg != nil {
			conf.WeightKg = *m.WeightKg
		}
		score := m.ConfidenceScore
		conf.ConfidenceScore = &score
		out = append(out, conf)
	}
	return out
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intPtr(n int) *int {
	return &n
}
