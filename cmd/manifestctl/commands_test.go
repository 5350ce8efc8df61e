package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safeshipper/manifests/internal/client"
)

func TestNormalizeUNArgs(t *testing.T) {
	assert.Equal(t, []string{"UN1203", "UN1090", "UN1830"}, normalizeUNArgs([]string{"un1203", "1090", " UN 1830 ", ""}))
}

func TestApplyEdits(t *testing.T) {
	job := &client.ManifestJob{
		ID:     "m1",
		Status: client.StatusAwaitingConfirmation,
		DGMatches: []client.DangerousGoodMatch{
			{UNNumber: "UN1203"},
			{UNNumber: "UN1090"},
		},
	}

	require.NoError(t, applyEdits(job, []string{"un1203=4"}, []string{"1090=12.5"}))
	require.NotNil(t, job.DGMatches[0].Quantity)
	assert.Equal(t, 4, *job.DGMatches[0].Quantity)
	require.NotNil(t, job.DGMatches[1].WeightKg)
	assert.Equal(t, 12.5, *job.DGMatches[1].WeightKg)

	assert.Error(t, applyEdits(job, []string{"UN1203"}, nil))
	assert.Error(t, applyEdits(job, []string{"=3"}, nil))
	assert.Error(t, applyEdits(job, []string{"UN9999=3"}, nil))
	assert.Error(t, applyEdits(job, nil, []string{"UN1203=heavy"}))

	job.Status = client.StatusFinalized
	err := applyEdits(job, []string{"UN1203=5"}, nil)
	assert.ErrorIs(t, err, client.ErrJobFinalized)
}

func TestRenderMatches(t *testing.T) {
	qty := 3
	out := renderMatches([]client.DangerousGoodMatch{{
		UNNumber:           "UN1203",
		ProperShippingName: "Gasoline",
		HazardClass:        "3",
		ConfidenceScore:    1,
		MatchType:          client.MatchUNNumber,
		Quantity:           &qty,
	}})
	assert.Contains(t, out, "UN1203")
	assert.Contains(t, out, "Gasoline")
	assert.Contains(t, out, "1.00")
}

func TestManifestListCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/manifests/" || r.Header.Get("Authorization") != "Bearer cli-token" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"count": 1,
			"results": []client.ManifestJob{{
				ID:             "m1",
				FileName:       "manifest.pdf",
				Status:         client.StatusAwaitingConfirmation,
				DGMatchesCount: 2,
			}},
		})
	}))
	defer srv.Close()

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"--api-url", srv.URL, "--token", "cli-token", "manifest", "list"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "m1")
	assert.Contains(t, out.String(), "manifest.pdf")
	assert.Contains(t, out.String(), "0/2")
}
