package repositories

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"safeshipper/manifests/internal/models"
	"safeshipper/manifests/internal/testutil"
)

func newShipment(t *testing.T, db *gorm.DB, tracking string) *models.Shipment {
	t.Helper()
	s := &models.Shipment{ID: uuid.New(), TrackingNumber: tracking, Status: models.ShipmentStatusPending}
	require.NoError(t, NewShipmentRepository(db).Create(s))
	return s
}

func newManifest(t *testing.T, repo ManifestRepository, shipmentID uuid.UUID) *models.Manifest {
	t.Helper()
	m, _ := createManifest(t, repo, shipmentID)
	return m
}

func createManifest(t *testing.T, repo ManifestRepository, shipmentID uuid.UUID) (*models.Manifest, []models.Document) {
	t.Helper()
	doc := &models.Document{
		ID:           uuid.New(),
		ShipmentID:   shipmentID,
		DocumentType: models.DocumentTypeDGManifest,
		Status:       models.DocumentQueued,
		FilePath:     "/tmp/manifest.txt",
	}
	m := &models.Manifest{
		ID:           uuid.New(),
		DocumentID:   doc.ID,
		ShipmentID:   shipmentID,
		ManifestType: models.DocumentTypeDGManifest,
		Status:       models.ManifestUploaded,
	}
	superseded, err := repo.CreateWithDocument(doc, m)
	require.NoError(t, err)
	return m, superseded
}

func analyzedManifest(t *testing.T, repo ManifestRepository, shipmentID uuid.UUID, unNumbers ...string) *models.Manifest {
	t.Helper()
	m := newManifest(t, repo, shipmentID)
	claimed, err := repo.StartAnalysis(m.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	matches := make([]models.DangerousGoodMatch, 0, len(unNumbers))
	for i, un := range unNumbers {
		matches = append(matches, models.DangerousGoodMatch{UNNumber: un, ConfidenceScore: 1 - float64(i)/10, MatchType: models.MatchUNNumber})
	}
	require.NoError(t, repo.CompleteAnalysis(m.ID, &AnalysisUpdateData{
		Matches:        matches,
		Results:        []byte(`{"total_dgs_identified":1}`),
		DocumentStatus: models.DocumentValidatedOK,
	}))
	return m
}

func TestManifestLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewManifestRepository(db)
	s := newShipment(t, db, "SH-001")
	m := newManifest(t, repo, s.ID)

	claimed, err := repo.StartAnalysis(m.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.StartAnalysis(m.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	loaded, err := repo.FindByID(m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ManifestAnalyzing, loaded.Status)
	assert.Equal(t, models.DocumentProcessing, loaded.Document.Status)

	require.NoError(t, repo.CompleteAnalysis(m.ID, &AnalysisUpdateData{
		Matches: []models.DangerousGoodMatch{
			{UNNumber: "UN1090", ConfidenceScore: 0.9, FoundText: "acetone"},
			{UNNumber: "UN1203", ConfidenceScore: 1, FoundText: "UN1203"},
		},
		Results:        []byte(`{}`),
		DocumentStatus: models.DocumentValidatedWithErrors,
	}))

	err = repo.CompleteAnalysis(m.ID, &AnalysisUpdateData{Results: []byte(`{}`)})
	assert.ErrorIs(t, err, ErrStatusConflict)

	loaded, err = repo.FindByID(m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ManifestAwaitingConfirmation, loaded.Status)
	assert.Equal(t, models.DocumentValidatedWithErrors, loaded.Document.Status)
	require.Len(t, loaded.DGMatches, 2)
	assert.Equal(t, "UN1203", loaded.DGMatches[0].UNNumber)

	require.NoError(t, repo.ConfirmMatches(m.ID, []string{"UN1203"}, "alice"))
	loaded, err = repo.FindByID(m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ManifestConfirmed, loaded.Status)
	assert.True(t, loaded.DGMatches[0].IsConfirmed)
	assert.False(t, loaded.DGMatches[1].IsConfirmed)

	item := models.ShipmentItem{ID: uuid.New(), ShipmentID: s.ID, Description: "Gasoline", Quantity: 3, IsDangerousGood: true}
	require.NoError(t, repo.Finalize(m.ID, &FinalizeData{
		Items:         []models.ShipmentItem{item},
		Confirmations: []models.DangerousGoodConfirmation{{UNNumber: "UN1203", Quantity: 3, WeightKg: 12}},
		Payload:       []byte(`[]`),
		User:          "alice",
	}))

	loaded, err = repo.FindByID(m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ManifestFinalized, loaded.Status)
	assert.NotNil(t, loaded.FinalizedAt)
	assert.Equal(t, 3, *loaded.DGMatches[0].Quantity)
	assert.Equal(t, 12.0, *loaded.DGMatches[0].WeightKg)

	err = repo.Finalize(m.ID, &FinalizeData{Items: []models.ShipmentItem{{ID: uuid.New(), ShipmentID: s.ID}}})
	assert.ErrorIs(t, err, ErrStatusConflict)
	err = repo.ConfirmMatches(m.ID, []string{"UN1203"}, "alice")
	assert.ErrorIs(t, err, ErrStatusConflict)

	count, err := NewShipmentRepository(db).CountItems(s.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestCreateWithDocumentSupersedes(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewManifestRepository(db)
	s := newShipment(t, db, "SH-001")
	other := newShipment(t, db, "SH-002")

	done := analyzedManifest(t, repo, s.ID, "UN1203")
	require.NoError(t, repo.Finalize(done.ID, &FinalizeData{Payload: []byte(`[]`), User: "alice"}))

	open := analyzedManifest(t, repo, s.ID, "UN1090")
	elsewhere := newManifest(t, repo, other.ID)

	latest, superseded := createManifest(t, repo, s.ID)
	require.Len(t, superseded, 1)
	assert.Equal(t, open.DocumentID, superseded[0].ID)

	_, err := repo.FindByID(open.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = NewDocumentRepository(db).FindByID(open.DocumentID)
	assert.ErrorIs(t, err, ErrNotFound)

	var orphaned int64
	require.NoError(t, db.Model(&models.DangerousGoodMatch{}).Where("manifest_id = ?", open.ID).Count(&orphaned).Error)
	assert.Zero(t, orphaned)

	manifests, err := repo.FindByShipmentID(s.ID)
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, m := range manifests {
		ids = append(ids, m.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{done.ID, latest.ID}, ids)

	_, err = repo.FindByID(elsewhere.ID)
	assert.NoError(t, err)
}

func TestMarkFailed(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewManifestRepository(db)
	s := newShipment(t, db, "SH-001")
	m := newManifest(t, repo, s.ID)

	require.NoError(t, repo.MarkFailed(m.ID, "text extraction failed"))
	loaded, err := repo.FindByID(m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ManifestProcessingFailed, loaded.Status)
	assert.Equal(t, models.DocumentProcessingFailed, loaded.Document.Status)
	assert.Equal(t, "text extraction failed", *loaded.ErrorMessage)

	assert.ErrorIs(t, repo.MarkFailed(uuid.New(), "x"), ErrNotFound)

	done := analyzedManifest(t, repo, s.ID, "UN1203")
	assert.ErrorIs(t, repo.MarkFailed(done.ID, "late failure"), ErrStatusConflict)
	loaded, err = repo.FindByID(done.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ManifestAwaitingConfirmation, loaded.Status)
}

func TestFailStaleAnalyses(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewManifestRepository(db)
	s := newShipment(t, db, "SH-001")

	stuck := newManifest(t, repo, s.ID)
	claimed, err := repo.StartAnalysis(stuck.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	failed, err := repo.FailStaleAnalyses(time.Now().Add(-time.Hour), "analysis timed out")
	require.NoError(t, err)
	assert.Zero(t, failed)

	failed, err = repo.FailStaleAnalyses(time.Now().Add(time.Hour), "analysis timed out")
	require.NoError(t, err)
	assert.EqualValues(t, 1, failed)

	loaded, err := repo.FindByID(stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ManifestProcessingFailed, loaded.Status)
	assert.Equal(t, models.DocumentProcessingFailed, loaded.Document.Status)
	assert.Equal(t, "analysis timed out", *loaded.ErrorMessage)

	err = repo.CompleteAnalysis(stuck.ID, &AnalysisUpdateData{Results: []byte(`{}`), DocumentStatus: models.DocumentValidatedOK})
	assert.ErrorIs(t, err, ErrStatusConflict)
}

func TestFindByDocumentIDAndPending(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewManifestRepository(db)
	s := newShipment(t, db, "SH-001")
	m := newManifest(t, repo, s.ID)

	found, err := repo.FindByDocumentID(s.ID, m.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, found.ID)

	_, err = repo.FindByDocumentID(uuid.New(), m.DocumentID)
	assert.ErrorIs(t, err, ErrNotFound)

	pending, err := repo.FindPending(time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, m.ID, pending[0].ID)

	pending, err = repo.FindPending(time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	list, err := repo.List(10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
