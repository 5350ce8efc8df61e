package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"safeshipper/manifests/internal/models"
	"safeshipper/manifests/internal/repositories"
	"safeshipper/manifests/internal/services"
	"safeshipper/manifests/internal/testutil"
)

const testToken = "test-token"

type queue struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (q *queue) EnqueueJob(id uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
}

type testServer struct {
	app      *fiber.App
	analyzer services.AnalyzerService
	queue    *queue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.NewDB(t)
	log := zaptest.NewLogger(t)
	manifestRepo := repositories.NewManifestRepository(db)
	dgRepo := repositories.NewDangerousGoodRepository(db)
	_, err := services.SeedCatalog(dgRepo)
	require.NoError(t, err)

	q := &queue{}
	svc := services.NewManifestService(
		repositories.NewShipmentRepository(db),
		manifestRepo,
		repositories.NewDocumentRepository(db),
		dgRepo,
		services.NewStorageService(t.TempDir(), 1<<20, []string{".pdf", ".txt"}),
		q,
		log,
	)
	app := NewApp(AppConfig{Tokens: map[string]string{testToken: "alice"}, BodyLimit: 2 << 20}, svc, log)

	return &testServer{
		app:      app,
		analyzer: services.NewAnalyzerService(manifestRepo, dgRepo, services.NewDocumentParser(), log),
		queue:    q,
	}
}

func (s *testServer) do(t *testing.T, req *http.Request, out any) int {
	t.Helper()
	if req.Header.Get(fiber.HeaderAuthorization) == "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+testToken)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.Unmarshal(body, out), string(body))
	}
	return resp.StatusCode
}

func jsonRequest(method, path string, payload any) *http.Request {
	var body io.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func uploadRequest(t *testing.T, shipmentID, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if shipmentID != "" {
		require.NoError(t, w.WriteField("shipment_id", shipmentID))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/manifests/upload-and-analyze/", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func (s *testServer) createShipment(t *testing.T, tracking string) models.ShipmentDetail {
	t.Helper()
	var shipment models.ShipmentDetail
	code := s.do(t, jsonRequest(http.MethodPost, "/api/v1/shipments/", models.CreateShipmentRequest{TrackingNumber: tracking}), &shipment)
	require.Equal(t, http.StatusCreated, code)
	return shipment
}

// analyzedManifest uploads content and runs the queued analysis inline.
func (s *testServer) analyzedManifest(t *testing.T, shipmentID uuid.UUID, content string) models.ManifestView {
	t.Helper()
	var upload models.UploadResponse
	code := s.do(t, uploadRequest(t, shipmentID.String(), "manifest.txt", content), &upload)
	require.Equal(t, http.StatusCreated, code)

	id := uuid.MustParse(upload.ID)
	require.NoError(t, s.analyzer.AnalyzeManifest(context.Background(), id))

	var view models.ManifestView
	require.Equal(t, http.StatusOK, s.do(t, jsonRequest(http.MethodGet, "/api/v1/manifests/"+upload.ID+"/", nil), &view))
	return view
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + testToken, http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + testToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/shipments/", nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			resp, err := s.app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.want, resp.StatusCode)

			if tc.want == http.StatusUnauthorized {
				var body models.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.NotEmpty(t, body.Error)
			}
		})
	}

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestShipmentEndpoints(t *testing.T) {
	s := newTestServer(t)

	shipment := s.createShipment(t, "SH-001")
	assert.Equal(t, "SH-001", shipment.TrackingNumber)
	assert.Equal(t, models.ShipmentStatusPending, shipment.Status)

	var errBody models.ErrorResponse
	code := s.do(t, jsonRequest(http.MethodPost, "/api/v1/shipments/", models.CreateShipmentRequest{}), &errBody)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, errBody.Error, "tracking_number")

	var got models.ShipmentDetail
	assert.Equal(t, http.StatusOK, s.do(t, jsonRequest(http.MethodGet, "/api/v1/shipments/"+shipment.ID.String()+"/", nil), &got))
	assert.Equal(t, shipment.ID, got.ID)

	assert.Equal(t, http.StatusNotFound, s.do(t, jsonRequest(http.MethodGet, "/api/v1/shipments/"+uuid.NewString(), nil), nil))
	assert.Equal(t, http.StatusBadRequest, s.do(t, jsonRequest(http.MethodGet, "/api/v1/shipments/not-a-uuid", nil), nil))

	var list struct {
		Count   int                     `json:"count"`
		Results []models.ShipmentDetail `json:"results"`
	}
	assert.Equal(t, http.StatusOK, s.do(t, jsonRequest(http.MethodGet, "/api/v1/shipments/?limit=5", nil), &list))
	assert.Equal(t, 1, list.Count)
}

func TestUploadEndpoint(t *testing.T) {
	s := newTestServer(t)
	shipment := s.createShipment(t, "SH-001")

	var upload models.UploadResponse
	code := s.do(t, uploadRequest(t, shipment.ID.String(), "manifest.txt", "UN1203 Gasoline"), &upload)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, string(models.ManifestUploaded), upload.Status)
	assert.Len(t, s.queue.ids, 1)

	var status models.ManifestStatusResponse
	require.Equal(t, http.StatusOK, s.do(t, jsonRequest(http.MethodGet, "/api/v1/manifests/poll-status/"+shipment.ID.String()+"/", nil), &status))
	assert.Equal(t, models.OverallProcessing, status.OverallStatus)

	cases := []struct {
		name     string
		shipment string
		filename string
		want     int
	}{
		{"missing shipment id", "", "manifest.txt", http.StatusBadRequest},
		{"malformed shipment id", "abc", "manifest.txt", http.StatusBadRequest},
		{"missing file", shipment.ID.String(), "", http.StatusBadRequest},
		{"bad extension", shipment.ID.String(), "manifest.docx", http.StatusBadRequest},
		{"unknown shipment", uuid.NewString(), "manifest.txt", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body models.ErrorResponse
			assert.Equal(t, tc.want, s.do(t, uploadRequest(t, tc.shipment, tc.filename, "UN1203"), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestConfirmAndFinalizeEndpoints(t *testing.T) {
	s := newTestServer(t)
	shipment := s.createShipment(t, "SH-001")
	view := s.analyzedManifest(t, shipment.ID, "UN1203 Gasoline 500 L 200 kg\n")
	require.Equal(t, models.ManifestAwaitingConfirmation, view.Status)
	base := "/api/v1/manifests/" + view.ID

	assert.Equal(t, http.StatusBadRequest, s.do(t, jsonRequest(http.MethodPost, base+"/confirm_dangerous_goods/", models.ConfirmRequest{}), nil))

	var confirm models.ConfirmResponse
	require.Equal(t, http.StatusOK, s.do(t, jsonRequest(http.MethodPost, base+"/confirm_dangerous_goods/",
		models.ConfirmRequest{ConfirmedUNNumbers: []string{"UN1203"}}), &confirm))
	assert.Equal(t, 1, confirm.ConfirmedCount)
	require.NotNil(t, confirm.Manifest.ConfirmedBy)
	assert.Equal(t, "alice", *confirm.Manifest.ConfirmedBy)

	finalize := models.FinalizeRequest{ConfirmedDangerousGoods: []models.DangerousGoodConfirmation{
		{UNNumber: "UN1203", Description: "Gasoline", Quantity: 500, WeightKg: 200},
	}}
	var result models.FinalizeResponse
	require.Equal(t, http.StatusOK, s.do(t, jsonRequest(http.MethodPost, base+"/finalize/", finalize), &result))
	assert.Equal(t, 1, result.CreatedItemsCount)
	assert.Equal(t, models.ManifestFinalized, result.Manifest.Status)

	var conflict models.ErrorResponse
	assert.Equal(t, http.StatusConflict, s.do(t, jsonRequest(http.MethodPost, base+"/finalize/", finalize), &conflict))
	assert.Contains(t, conflict.Error, "already finalized")

	assert.Equal(t, http.StatusNotFound, s.do(t, jsonRequest(http.MethodPost, "/api/v1/manifests/"+uuid.NewString()+"/finalize/", finalize), nil))
}

func TestFinalizeIncompatibleReturnsResult(t *testing.T) {
	s := newTestServer(t)
	shipment := s.createShipment(t, "SH-002")
	view := s.analyzedManifest(t, shipment.ID, "UN1203 Gasoline\nUN1479 Oxidizing solid\n")

	req := jsonRequest(http.MethodPost, "/api/v1/manifests/"+view.ID+"/finalize/", models.FinalizeRequest{
		ConfirmedDangerousGoods: []models.DangerousGoodConfirmation{{UNNumber: "UN1203"}, {UNNumber: "UN1479"}},
	})
	var body models.ErrorResponse
	require.Equal(t, http.StatusBadRequest, s.do(t, req, &body))
	require.NotNil(t, body.CompatibilityResult)
	assert.False(t, body.CompatibilityResult.IsCompatible)
	assert.Len(t, body.CompatibilityResult.Conflicts, 1)

	var got models.ShipmentDetail
	require.Equal(t, http.StatusOK, s.do(t, jsonRequest(http.MethodGet, "/api/v1/shipments/"+shipment.ID.String(), nil), &got))
	assert.Zero(t, got.ItemCount)
}

func TestFinalizeFromManifestEndpoint(t *testing.T) {
	s := newTestServer(t)
	shipment := s.createShipment(t, "SH-003")
	view := s.analyzedManifest(t, shipment.ID, "UN1090 Acetone 2 drums\n")
	path := "/api/v1/shipments/" + shipment.ID.String() + "/finalize-from-manifest/"
	goods := []models.DangerousGoodConfirmation{{UNNumber: "UN1090", Quantity: 2}}

	assert.Equal(t, http.StatusBadRequest, s.do(t, jsonRequest(http.MethodPost, path, models.LegacyFinalizeRequest{ConfirmedDangerousGoods: goods}), nil))
	assert.Equal(t, http.StatusNotFound, s.do(t, jsonRequest(http.MethodPost, path, models.LegacyFinalizeRequest{
		DocumentID: uuid.NewString(), ConfirmedDangerousGoods: goods,
	}), nil))

	var result models.LegacyFinalizeResponse
	require.Equal(t, http.StatusOK, s.do(t, jsonRequest(http.MethodPost, path, models.LegacyFinalizeRequest{
		DocumentID: view.DocumentID, ConfirmedDangerousGoods: goods,
	}), &result))
	assert.Equal(t, 1, result.CreatedItemsCount)
	assert.Equal(t, "compatible", result.CompatibilityStatus)
	assert.True(t, strings.HasPrefix(result.Message, "Shipment finalized"))
	require.Len(t, result.Shipment.Items, 1)
	assert.Equal(t, 2, result.Shipment.Items[0].Quantity)
}
