package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"safeshipper/manifests/internal/models"
)

var inFlightStatuses = []models.ManifestStatus{
	models.ManifestUploaded,
	models.ManifestAnalyzing,
}

var confirmableStatuses = []models.ManifestStatus{
	models.ManifestAwaitingConfirmation,
	models.ManifestConfirmed,
}

type ManifestRepository interface {
	CreateWithDocument(doc *models.Document, manifest *models.Manifest) (superseded []models.Document, err error)
	FindByID(id uuid.UUID) (*models.Manifest, error)
	FindByDocumentID(shipmentID, documentID uuid.UUID) (*models.Manifest, error)
	FindByShipmentID(shipmentID uuid.UUID) ([]models.Manifest, error)
	List(limit int) ([]models.Manifest, error)
	FindPending(olderThan time.Time, limit int) ([]models.Manifest, error)
	StartAnalysis(id uuid.UUID) (bool, error)
	CompleteAnalysis(id uuid.UUID, data *AnalysisUpdateData) error
	MarkFailed(id uuid.UUID, errorMsg string) error
	FailStaleAnalyses(startedBefore time.Time, errorMsg string) (int64, error)
	ConfirmMatches(id uuid.UUID, unNumbers []string, user string) error
	Finalize(id uuid.UUID, data *FinalizeData) error
}

type AnalysisUpdateData struct {
	Matches        []models.DangerousGoodMatch
	Results        datatypes.JSON
	DocumentStatus models.DocumentStatus
}

// FinalizeData carries everything the finalize transaction writes.
type FinalizeData struct {
	Items         []models.ShipmentItem
	Confirmations []models.DangerousGoodConfirmation
	Payload       datatypes.JSON
	User          string
}

type manifestRepository struct {
	db *gorm.DB
}

func NewManifestRepository(db *gorm.DB) ManifestRepository {
	return &manifestRepository{db: db}
}

func withMatches(db *gorm.DB) *gorm.DB {
	return db.Order("confidence_score DESC, found_text ASC")
}

// CreateWithDocument stores a new upload and removes the shipment's earlier
// manifests that never reached FINALIZED. It returns the removed documents so
// the caller can delete their stored files.
func (r *manifestRepository) CreateWithDocument(doc *models.Document, manifest *models.Manifest) ([]models.Document, error) {
	var superseded []models.Document
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var stale []models.Manifest
		if err := tx.Where("shipment_id = ? AND status <> ?", manifest.ShipmentID, models.ManifestFinalized).
			Find(&stale).Error; err != nil {
			return fmt.Errorf("failed to find superseded manifests: %w", err)
		}

		if len(stale) > 0 {
			ids := make([]uuid.UUID, 0, len(stale))
			docIDs := make([]uuid.UUID, 0, len(stale))
			for _, m := range stale {
				ids = append(ids, m.ID)
				docIDs = append(docIDs, m.DocumentID)
			}
			if err := tx.Where("id IN ?", docIDs).Find(&superseded).Error; err != nil {
				return fmt.Errorf("failed to load superseded documents: %w", err)
			}
			if err := tx.Where("manifest_id IN ?", ids).Delete(&models.DangerousGoodMatch{}).Error; err != nil {
				return fmt.Errorf("failed to delete superseded matches: %w", err)
			}
			if err := tx.Where("id IN ?", ids).Delete(&models.Manifest{}).Error; err != nil {
				return fmt.Errorf("failed to delete superseded manifests: %w", err)
			}
			if err := tx.Where("id IN ?", docIDs).Delete(&models.Document{}).Error; err != nil {
				return fmt.Errorf("failed to delete superseded documents: %w", err)
			}
		}

		if err := tx.Create(doc).Error; err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
		if err := tx.Omit("Document", "DGMatches").Create(manifest).Error; err != nil {
			return fmt.Errorf("failed to create manifest: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return superseded, nil
}

func (r *manifestRepository) FindByID(id uuid.UUID) (*models.Manifest, error) {
	var manifest models.Manifest
	err := r.db.
		Preload("Document").
		Preload("DGMatches", withMatches).
		Where("id = ?", id).
		First(&manifest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("manifest %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find manifest: %w", err)
	}
	return &manifest, nil
}

func (r *manifestRepository) FindByDocumentID(shipmentID, documentID uuid.UUID) (*models.Manifest, error) {
	var manifest models.Manifest
	err := r.db.
		Preload("Document").
		Preload("DGMatches", withMatches).
		Where("shipment_id = ? AND document_id = ?", shipmentID, documentID).
		First(&manifest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("manifest for document %s: %w", documentID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find manifest: %w", err)
	}
	return &manifest, nil
}

func (r *manifestRepository) FindByShipmentID(shipmentID uuid.UUID) ([]models.Manifest, error) {
	var manifests []models.Manifest
	err := r.db.
		Preload("Document").
		Preload("DGMatches", withMatches).
		Where("shipment_id = ?", shipmentID).
		Order("created_at DESC").
		Find(&manifests).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find manifests: %w", err)
	}
	return manifests, nil
}

func (r *manifestRepository) List(limit int) ([]models.Manifest, error) {
	var manifests []models.Manifest
	err := r.db.
		Preload("Document").
		Preload("DGMatches", withMatches).
		Order("created_at DESC").
		Limit(limit).
		Find(&manifests).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}
	return manifests, nil
}

func (r *manifestRepository) FindPending(olderThan time.Time, limit int) ([]models.Manifest, error) {
	var manifests []models.Manifest
	err := r.db.
		Where("status = ? AND created_at < ?", models.ManifestUploaded, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&manifests).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find pending manifests: %w", err)
	}
	return manifests, nil
}

// StartAnalysis moves UPLOADED to ANALYZING. It returns false when another
// worker already claimed the manifest.
func (r *manifestRepository) StartAnalysis(id uuid.UUID) (bool, error) {
	claimed := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		result := tx.Model(&models.Manifest{}).
			Where("id = ? AND status = ?", id, models.ManifestUploaded).
			Updates(map[string]interface{}{
				"status":              models.ManifestAnalyzing,
				"analysis_started_at": now,
				"updated_at":          now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to claim manifest: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}
		claimed = true

		return tx.Model(&models.Document{}).
			Where("id = (?)", tx.Model(&models.Manifest{}).Select("document_id").Where("id = ?", id)).
			Updates(map[string]interface{}{
				"status":     models.DocumentProcessing,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

func (r *manifestRepository) CompleteAnalysis(id uuid.UUID, data *AnalysisUpdateData) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		manifest, err := loadManifest(tx, id)
		if err != nil {
			return err
		}

		if err := tx.Where("manifest_id = ?", id).Delete(&models.DangerousGoodMatch{}).Error; err != nil {
			return fmt.Errorf("failed to clear matches: %w", err)
		}
		if len(data.Matches) > 0 {
			for i := range data.Matches {
				data.Matches[i].ManifestID = id
				if data.Matches[i].ID == uuid.Nil {
					data.Matches[i].ID = uuid.New()
				}
			}
			if err := tx.Create(&data.Matches).Error; err != nil {
				return fmt.Errorf("failed to store matches: %w", err)
			}
		}

		now := time.Now()
		result := tx.Model(&models.Manifest{}).
			Where("id = ? AND status = ?", id, models.ManifestAnalyzing).
			Updates(map[string]interface{}{
				"status":                models.ManifestAwaitingConfirmation,
				"analysis_results":      data.Results,
				"analysis_completed_at": now,
				"error_message":         nil,
				"updated_at":            now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update manifest: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("manifest %s not analyzing: %w", id, ErrStatusConflict)
		}

		return tx.Model(&models.Document{}).
			Where("id = ?", manifest.DocumentID).
			Updates(map[string]interface{}{
				"status":             data.DocumentStatus,
				"validation_results": data.Results,
				"updated_at":         now,
			}).Error
	})
}

// MarkFailed fails a manifest that is still UPLOADED or ANALYZING. Any other
// status yields ErrStatusConflict.
func (r *manifestRepository) MarkFailed(id uuid.UUID, errorMsg string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		manifest, err := loadManifest(tx, id)
		if err != nil {
			return err
		}

		now := time.Now()
		result := tx.Model(&models.Manifest{}).
			Where("id = ? AND status IN ?", id, inFlightStatuses).
			Updates(map[string]interface{}{
				"status":        models.ManifestProcessingFailed,
				"error_message": errorMsg,
				"updated_at":    now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update error: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("manifest %s is %s: %w", id, manifest.Status, ErrStatusConflict)
		}

		return tx.Model(&models.Document{}).
			Where("id = ?", manifest.DocumentID).
			Updates(map[string]interface{}{
				"status":     models.DocumentProcessingFailed,
				"updated_at": now,
			}).Error
	})
}

// FailStaleAnalyses fails every manifest that entered ANALYZING before
// startedBefore and never left it.
func (r *manifestRepository) FailStaleAnalyses(startedBefore time.Time, errorMsg string) (int64, error) {
	var failed int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var stale []models.Manifest
		if err := tx.Where("status = ? AND analysis_started_at < ?", models.ManifestAnalyzing, startedBefore).
			Find(&stale).Error; err != nil {
			return fmt.Errorf("failed to find stale analyses: %w", err)
		}
		if len(stale) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(stale))
		docIDs := make([]uuid.UUID, 0, len(stale))
		for _, m := range stale {
			ids = append(ids, m.ID)
			docIDs = append(docIDs, m.DocumentID)
		}

		now := time.Now()
		result := tx.Model(&models.Manifest{}).
			Where("id IN ? AND status = ?", ids, models.ManifestAnalyzing).
			Updates(map[string]interface{}{
				"status":        models.ManifestProcessingFailed,
				"error_message": errorMsg,
				"updated_at":    now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to fail stale analyses: %w", result.Error)
		}
		failed = result.RowsAffected

		return tx.Model(&models.Document{}).
			Where("id IN ?", docIDs).
			Updates(map[string]interface{}{
				"status":     models.DocumentProcessingFailed,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return 0, err
	}
	return failed, nil
}

// ConfirmMatches marks exactly unNumbers as confirmed; every other match of the
// manifest is left open.
func (r *manifestRepository) ConfirmMatches(id uuid.UUID, unNumbers []string, user string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		result := tx.Model(&models.Manifest{}).
			Where("id = ? AND status IN ?", id, confirmableStatuses).
			Updates(map[string]interface{}{
				"status":       models.ManifestConfirmed,
				"confirmed_by": user,
				"confirmed_at": now,
				"updated_at":   now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to confirm manifest: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("manifest %s: %w", id, ErrStatusConflict)
		}

		if err := tx.Model(&models.DangerousGoodMatch{}).
			Where("manifest_id = ? AND un_number NOT IN ?", id, unNumbers).
			Updates(map[string]interface{}{
				"is_confirmed": false,
				"confirmed_by": nil,
				"confirmed_at": nil,
				"updated_at":   now,
			}).Error; err != nil {
			return fmt.Errorf("failed to reset matches: %w", err)
		}

		return tx.Model(&models.DangerousGoodMatch{}).
			Where("manifest_id = ? AND un_number IN ?", id, unNumbers).
			Updates(map[string]interface{}{
				"is_confirmed": true,
				"confirmed_by": user,
				"confirmed_at": now,
				"updated_at":   now,
			}).Error
	})
}

// Finalize flips the manifest to FINALIZED and writes the shipment items in one
// transaction. A manifest that is no longer confirmable yields ErrStatusConflict.
func (r *manifestRepository) Finalize(id uuid.UUID, data *FinalizeData) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		manifest, err := loadManifest(tx, id)
		if err != nil {
			return err
		}

		now := time.Now()
		result := tx.Model(&models.Manifest{}).
			Where("id = ? AND status IN ?", id, confirmableStatuses).
			Updates(map[string]interface{}{
				"status":                    models.ManifestFinalized,
				"confirmed_dangerous_goods": data.Payload,
				"confirmed_by":              data.User,
				"confirmed_at":              now,
				"finalized_at":              now,
				"updated_at":                now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to finalize manifest: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("manifest %s: %w", id, ErrStatusConflict)
		}

		if len(data.Items) > 0 {
			if err := tx.Create(&data.Items).Error; err != nil {
				return fmt.Errorf("failed to create shipment items: %w", err)
			}
		}

		for _, dg := range data.Confirmations {
			if err := tx.Model(&models.DangerousGoodMatch{}).
				Where("manifest_id = ? AND un_number = ?", id, dg.UNNumber).
				Updates(map[string]interface{}{
					"quantity":     dg.Quantity,
					"weight_kg":    dg.WeightKg,
					"is_confirmed": true,
					"confirmed_by": data.User,
					"confirmed_at": now,
					"updated_at":   now,
				}).Error; err != nil {
				return fmt.Errorf("failed to update match %s: %w", dg.UNNumber, err)
			}
		}

		return tx.Model(&models.Document{}).
			Where("id = ?", manifest.DocumentID).
			Updates(map[string]interface{}{
				"status":     models.DocumentValidatedOK,
				"updated_at": now,
			}).Error
	})
}

func loadManifest(tx *gorm.DB, id uuid.UUID) (*models.Manifest, error) {
	var manifest models.Manifest
	if err := tx.Where("id = ?", id).First(&manifest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("manifest %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	return &manifest, nil
}
