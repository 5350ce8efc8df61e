package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"safeshipper/manifests/internal/client"
	"safeshipper/manifests/internal/repositories"
	"safeshipper/manifests/internal/services"
	"safeshipper/manifests/internal/testutil"
)

// startServer runs the full API with a live worker on a loopback port.
func startServer(t *testing.T) *client.Client {
	t.Helper()

	db := testutil.NewDB(t)
	log := zaptest.NewLogger(t)
	manifestRepo := repositories.NewManifestRepository(db)
	dgRepo := repositories.NewDangerousGoodRepository(db)
	_, err := services.SeedCatalog(dgRepo)
	require.NoError(t, err)

	analyzer := services.NewAnalyzerService(manifestRepo, dgRepo, services.NewDocumentParser(), log)
	worker := services.NewWorker(manifestRepo, analyzer, 1, time.Hour, time.Hour, log)
	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	svc := services.NewManifestService(
		repositories.NewShipmentRepository(db),
		manifestRepo,
		repositories.NewDocumentRepository(db),
		dgRepo,
		services.NewStorageService(t.TempDir(), 1<<20, []string{".pdf", ".txt"}),
		worker,
		log,
	)
	app := NewApp(AppConfig{Tokens: map[string]string{testToken: "alice"}, BodyLimit: 2 << 20}, svc, log)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()

	t.Cleanup(func() {
		_ = app.Shutdown()
		cancel()
		worker.Stop()
	})

	return client.New("http://"+ln.Addr().String(), testToken,
		client.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
		client.WithLogger(log))
}

func TestWorkflowFinalizesCompatibleManifest(t *testing.T) {
	c := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shipment, err := c.CreateShipment(ctx, "SH-001", "Acme Logistics")
	require.NoError(t, err)

	var polls int
	result, err := client.NewCoordinator(c).RunWorkflow(ctx, client.WorkflowRequest{
		ShipmentID:   shipment.ID,
		FileName:     "manifest.txt",
		File:         strings.NewReader("UN1203 Gasoline 500 L 200 kg\n"),
		PollInterval: 20 * time.Millisecond,
		OnStatus:     func(*client.ManifestStatusResponse) { polls++ },
	})
	require.NoError(t, err)
	assert.Positive(t, polls)
	assert.Equal(t, []string{"UN1203"}, result.Confirmed)
	assert.True(t, result.Confirm.CompatibilityResult.IsCompatible)
	require.NotNil(t, result.Finalize)
	assert.Equal(t, 1, result.Finalize.CreatedItemsCount)
	assert.Equal(t, client.StatusFinalized, result.Finalize.Manifest.Status)

	got, err := c.GetShipment(ctx, shipment.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "UN1203", *got.Items[0].UNNumber)
	assert.Equal(t, 200.0, got.Items[0].WeightKg)

	status, err := c.GetManifestStatus(ctx, shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, client.OverallFinalized, status.OverallStatus)

	// A second finalize is refused by the server and leaves the items alone.
	_, err = c.Finalize(ctx, client.ManifestTarget(result.Upload.ID), client.BuildConfirmations(result.Job.DGMatches, result.Confirmed))
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestWorkflowRejectsIncompatibleGoods(t *testing.T) {
	c := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shipment, err := c.CreateShipment(ctx, "SH-002", "")
	require.NoError(t, err)

	result, err := client.NewCoordinator(c).RunWorkflow(ctx, client.WorkflowRequest{
		ShipmentID:   shipment.ID,
		FileName:     "manifest.txt",
		File:         strings.NewReader("UN1203 Gasoline 10 drums\nUN1479 Oxidizing solid 4 bags\n"),
		PollInterval: 20 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, client.IsCompatibilityError(err))

	var compat *client.CompatibilityError
	require.True(t, errors.As(err, &compat))
	assert.Equal(t, http.StatusBadRequest, compat.StatusCode)
	require.Len(t, compat.Result.Conflicts, 1)
	assert.Contains(t, compat.Result.Conflicts[0], "UN1479")
	assert.NotEmpty(t, compat.Result.Raw)
	assert.Nil(t, result.Finalize)

	got, err := c.GetShipment(ctx, shipment.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
}

func TestLegacyFinalizeThroughClient(t *testing.T) {
	c := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shipment, err := c.CreateShipment(ctx, "SH-003", "")
	require.NoError(t, err)
	upload, err := c.UploadManifest(ctx, shipment.ID, "manifest.txt", strings.NewReader("UN1090 Acetone 2 drums 40 kg\n"))
	require.NoError(t, err)

	status, err := client.NewPoller(c, shipment.ID, client.WithInterval(20*time.Millisecond)).Run(ctx)
	require.NoError(t, err)
	job, ok := status.Job(upload.ID)
	require.True(t, ok)
	require.Equal(t, client.StatusAwaitingConfirmation, job.Status)

	co := client.NewCoordinator(c)
	_, err = co.Confirm(ctx, job, []string{"UN1203"})
	var violation *client.ContractViolationError
	require.True(t, errors.As(err, &violation))

	final, err := co.Finalize(ctx, client.ShipmentDocumentTarget(shipment.ID, job.DocumentID), client.BuildConfirmations(job.DGMatches, job.UNNumbers()))
	require.NoError(t, err)
	assert.Equal(t, 1, final.CreatedItemsCount)
	assert.Equal(t, "compatible", final.CompatibilityStatus)
	require.NotNil(t, final.Shipment)
	assert.Equal(t, 1, final.Shipment.ItemCount)
}
