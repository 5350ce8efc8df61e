package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"safeshipper/manifests/internal/models"
)

type DangerousGoodRepository interface {
	UpsertCatalog(entries []models.DangerousGood) error
	FindAll() ([]models.DangerousGood, error)
	FindByUNNumber(unNumber string) (*models.DangerousGood, error)
	FindByUNNumbers(unNumbers []string) ([]models.DangerousGood, error)
	Count() (int64, error)
}

type dangerousGoodRepository struct {
	db *gorm.DB
}

func NewDangerousGoodRepository(db *gorm.DB) DangerousGoodRepository {
	return &dangerousGoodRepository{db: db}
}

// UpsertCatalog inserts or refreshes catalog entries by UN number and replaces
// their synonym lists.
func (r *dangerousGoodRepository) UpsertCatalog(entries []models.DangerousGood) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for i := range entries {
			entry := entries[i]
			synonyms := entry.Synonyms
			entry.Synonyms = nil

			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "un_number"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"proper_shipping_name", "simplified_name", "hazard_class",
					"subsidiary_risks", "packing_group", "segregation_groups", "updated_at",
				}),
			}).Create(&entry).Error
			if err != nil {
				return fmt.Errorf("failed to upsert %s: %w", entry.UNNumber, err)
			}

			var stored models.DangerousGood
			if err := tx.Where("un_number = ?", entry.UNNumber).First(&stored).Error; err != nil {
				return fmt.Errorf("failed to reload %s: %w", entry.UNNumber, err)
			}

			if err := tx.Where("dangerous_good_id = ?", stored.ID).Delete(&models.DGSynonym{}).Error; err != nil {
				return fmt.Errorf("failed to clear synonyms for %s: %w", entry.UNNumber, err)
			}
			if len(synonyms) == 0 {
				continue
			}
			for j := range synonyms {
				synonyms[j].ID = 0
				synonyms[j].DangerousGoodID = stored.ID
			}
			if err := tx.Create(&synonyms).Error; err != nil {
				return fmt.Errorf("failed to store synonyms for %s: %w", entry.UNNumber, err)
			}
		}
		return nil
	})
}

func (r *dangerousGoodRepository) FindAll() ([]models.DangerousGood, error) {
	var entries []models.DangerousGood
	if err := r.db.Preload("Synonyms").Order("un_number ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return entries, nil
}

func (r *dangerousGoodRepository) FindByUNNumber(unNumber string) (*models.DangerousGood, error) {
	var entry models.DangerousGood
	if err := r.db.Preload("Synonyms").Where("un_number = ?", unNumber).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("dangerous good %s: %w", unNumber, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find dangerous good: %w", err)
	}
	return &entry, nil
}

func (r *dangerousGoodRepository) FindByUNNumbers(unNumbers []string) ([]models.DangerousGood, error) {
	var entries []models.DangerousGood
	if len(unNumbers) == 0 {
		return entries, nil
	}
	if err := r.db.Where("un_number IN ?", unNumbers).Order("un_number ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to find dangerous goods: %w", err)
	}
	return entries, nil
}

func (r *dangerousGoodRepository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&models.DangerousGood{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count catalog: %w", err)
	}
	return count, nil
}
