package repositories

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"safeshipper/manifests/internal/models"
)

type ShipmentRepository interface {
	Create(shipment *models.Shipment) error
	FindByID(id uuid.UUID) (*models.Shipment, error)
	List(limit int) ([]models.Shipment, error)
	CountItems(id uuid.UUID) (int64, error)
}

type shipmentRepository struct {
	db *gorm.DB
}

func NewShipmentRepository(db *gorm.DB) ShipmentRepository {
	return &shipmentRepository{db: db}
}

func (r *shipmentRepository) Create(shipment *models.Shipment) error {
	if err := r.db.Create(shipment).Error; err != nil {
		return fmt.Errorf("failed to create shipment: %w", err)
	}
	return nil
}

// FindByID loads the shipment with its items.
func (r *shipmentRepository) FindByID(id uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&shipment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("shipment %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find shipment: %w", err)
	}
	return &shipment, nil
}

func (r *shipmentRepository) List(limit int) ([]models.Shipment, error) {
	var shipments []models.Shipment
	err := r.db.
		Preload("Items").
		Order("created_at DESC").
		Limit(limit).
		Find(&shipments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list shipments: %w", err)
	}
	return shipments, nil
}

func (r *shipmentRepository) CountItems(id uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.Model(&models.ShipmentItem{}).Where("shipment_id = ?", id).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count shipment items: %w", err)
	}
	return count, nil
}
