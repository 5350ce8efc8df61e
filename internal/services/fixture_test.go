package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"safeshipper/manifests/internal/models"
	"safeshipper/manifests/internal/repositories"
	"safeshipper/manifests/internal/testutil"
)

type recordingQueue struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (q *recordingQueue) EnqueueJob(id uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
}

func (q *recordingQueue) Jobs() []uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]uuid.UUID(nil), q.ids...)
}

type fixture struct {
	db           *gorm.DB
	shipmentRepo repositories.ShipmentRepository
	manifestRepo repositories.ManifestRepository
	dgRepo       repositories.DangerousGoodRepository
	queue        *recordingQueue
	svc          ManifestService
	analyzer     AnalyzerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	log := zaptest.NewLogger(t)
	f := &fixture{
		db:           db,
		shipmentRepo: repositories.NewShipmentRepository(db),
		manifestRepo: repositories.NewManifestRepository(db),
		dgRepo:       repositories.NewDangerousGoodRepository(db),
		queue:        &recordingQueue{},
	}

	seeded, err := SeedCatalog(f.dgRepo)
	require.NoError(t, err)
	require.True(t, seeded)

	storage := NewStorageService(t.TempDir(), 1<<20, []string{".pdf", ".txt"})
	f.svc = NewManifestService(f.shipmentRepo, f.manifestRepo, repositories.NewDocumentRepository(db), f.dgRepo, storage, f.queue, log)
	f.analyzer = NewAnalyzerService(f.manifestRepo, f.dgRepo, NewDocumentParser(), log)
	return f
}

func (f *fixture) shipment(t *testing.T, tracking string) *models.Shipment {
	t.Helper()
	s, err := f.svc.CreateShipment(models.CreateShipmentRequest{TrackingNumber: tracking, CustomerName: "Acme Logistics"})
	require.NoError(t, err)
	return s
}

func (f *fixture) upload(t *testing.T, shipmentID uuid.UUID, content string) *models.Manifest {
	t.Helper()
	m, err := f.svc.UploadManifest(shipmentID, testutil.FileHeader(t, "manifest.txt", []byte(content)))
	require.NoError(t, err)
	return m
}

// analyzed uploads content and runs the analysis synchronously.
func (f *fixture) analyzed(t *testing.T, shipmentID uuid.UUID, content string) *models.Manifest {
	t.Helper()
	m := f.upload(t, shipmentID, content)
	require.NoError(t, f.analyzer.AnalyzeManifest(context.Background(), m.ID))
	out, err := f.manifestRepo.FindByID(m.ID)
	require.NoError(t, err)
	return out
}
