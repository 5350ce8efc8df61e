package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeManifestAPI serves one manifest that finishes analysis on the third poll.
func fakeManifestAPI(t *testing.T, finalizeStatus int, finalizeBody string) *http.ServeMux {
	var polls atomic.Int32
	match := DangerousGoodMatch{
		UNNumber: "UN1203", ProperShippingName: "Gasoline", HazardClass: "3",
		FoundText: "UN1203 Gasoline 500 L", PageNumber: 1, ConfidenceScore: 1, MatchType: MatchUNNumber,
	}
	low := DangerousGoodMatch{
		UNNumber: "UN1993", ProperShippingName: "Flammable liquid, n.o.s.", HazardClass: "3",
		FoundText: "flamable liquid", PageNumber: 1, ConfidenceScore: 0.62, MatchType: MatchProperName,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/manifests/upload-and-analyze/{$}", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusCreated, UploadResult{ID: "m1", Status: "UPLOADED"})
	})
	mux.HandleFunc("GET /api/v1/manifests/poll-status/{id}/{$}", func(w http.ResponseWriter, r *http.Request) {
		job := ManifestJob{ID: "m1", ShipmentID: "s1", DocumentID: "d1", Status: StatusAnalyzing}
		overall := OverallAnalyzing
		if polls.Add(1) >= 3 {
			job.Status = StatusAwaitingConfirmation
			job.DGMatches = []DangerousGoodMatch{match, low}
			job.DGMatchesCount = 2
			overall = OverallAwaitingConfirmation
		}
		writeTestJSON(w, http.StatusOK, ManifestStatusResponse{
			Shipment:      ShipmentSummary{ID: "s1", TrackingNumber: "SH-001"},
			Manifests:     []ManifestJob{job},
			OverallStatus: overall,
		})
	})
	mux.HandleFunc("POST /api/v1/manifests/{id}/confirm_dangerous_goods/{$}", func(w http.ResponseWriter, r *http.Request) {
		var req map[string][]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"UN1203"}, req["confirmed_un_numbers"])
		confirmed := match
		confirmed.IsConfirmed = true
		writeTestJSON(w, http.StatusOK, ConfirmResult{
			Message:             "confirmed",
			ConfirmedCount:      1,
			CompatibilityResult: CompatibilityResult{IsCompatible: true, Conflicts: []string{}},
			Manifest: ManifestJob{
				ID: "m1", ShipmentID: "s1", Status: StatusConfirmed,
				DGMatches: []DangerousGoodMatch{confirmed, low},
			},
		})
	})
	mux.HandleFunc("POST /api/v1/manifests/{id}/finalize/{$}", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Confirmed []DangerousGoodConfirmation `json:"confirmed_dangerous_goods"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Confirmed, 1)
		writeRaw(w, finalizeStatus, finalizeBody)
	})
	return mux
}

func TestRunWorkflow(t *testing.T) {
	mux := fakeManifestAPI(t, http.StatusOK,
		`{"message":"Manifest finalized","created_items_count":1,"compatibility_result":{"is_compatible":true,"conflicts":[]},"manifest":{"id":"m1","shipment_id":"s1","status":"FINALIZED"}}`)
	c, _ := newTestClient(t, mux)

	var seen []string
	result, err := NewCoordinator(c).RunWorkflow(context.Background(), WorkflowRequest{
		ShipmentID:   "s1",
		FileName:     "manifest.txt",
		File:         strings.NewReader("UN1203 Gasoline 500 L"),
		PollInterval: 5 * time.Millisecond,
		Select:       SelectAbove(0.8),
		OnStatus:     func(r *ManifestStatusResponse) { seen = append(seen, r.OverallStatus) },
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", result.Upload.ID)
	assert.Equal(t, []string{"UN1203"}, result.Confirmed)
	assert.Equal(t, 1, result.Finalize.CreatedItemsCount)
	assert.Equal(t, StatusFinalized, result.Finalize.Manifest.Status)
	assert.Equal(t, []string{OverallAnalyzing, OverallAnalyzing, OverallAwaitingConfirmation}, seen)
}

func TestRunWorkflowIncompatible(t *testing.T) {
	mux := fakeManifestAPI(t, http.StatusBadRequest,
		`{"error":"Dangerous goods are incompatible","compatibility_result":`+incompatiblePayload+`}`)
	c, _ := newTestClient(t, mux)

	result, err := NewCoordinator(c).RunWorkflow(context.Background(), WorkflowRequest{
		ShipmentID:   "s1",
		FileName:     "manifest.txt",
		File:         strings.NewReader("UN1203"),
		PollInterval: 5 * time.Millisecond,
		Select:       SelectAbove(0.8),
	})
	require.Error(t, err)
	assert.True(t, IsCompatibilityError(err))
	assert.NotNil(t, result.Confirm)
	assert.Nil(t, result.Finalize)
}

func TestRunWorkflowFailedAnalysis(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/manifests/upload-and-analyze/{$}", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusCreated, UploadResult{ID: "m1", Status: "UPLOADED"})
	})
	mux.HandleFunc("GET /api/v1/manifests/poll-status/{id}/{$}", func(w http.ResponseWriter, r *http.Request) {
		msg := "no text content extracted"
		writeTestJSON(w, http.StatusOK, ManifestStatusResponse{
			Manifests:     []ManifestJob{{ID: "m1", Status: StatusProcessingFailed, ErrorMessage: &msg}},
			OverallStatus: OverallFailed,
		})
	})
	c, _ := newTestClient(t, mux)

	_, err := NewCoordinator(c).RunWorkflow(context.Background(), WorkflowRequest{
		ShipmentID:   "s1",
		FileName:     "scan.pdf",
		File:         strings.NewReader("%PDF"),
		PollInterval: 5 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrAnalysisEnded)
	assert.Contains(t, err.Error(), "no text content extracted")
}
