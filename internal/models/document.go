package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DocumentStatus string

const (
	DocumentUploaded            DocumentStatus = "UPLOADED"
	DocumentQueued              DocumentStatus = "QUEUED"
	DocumentProcessing          DocumentStatus = "PROCESSING"
	DocumentValidatedOK         DocumentStatus = "VALIDATED_OK"
	DocumentValidatedWithErrors DocumentStatus = "VALIDATED_WITH_ERRORS"
	DocumentProcessingFailed    DocumentStatus = "PROCESSING_FAILED"
)

const DocumentTypeDGManifest = "DG_MANIFEST"

type Document struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ShipmentID        uuid.UUID      `gorm:"type:uuid;index;not null" json:"shipment_id"`
	DocumentType      string         `gorm:"type:text;not null" json:"document_type"`
	Status            DocumentStatus `gorm:"type:text;not null;index" json:"status"`
	Filename          string         `gorm:"type:text" json:"filename"`
	OriginalFileName  string         `gorm:"type:text" json:"original_filename"`
	MimeType          string         `gorm:"type:text" json:"mime_type"`
	FileSize          int64          `json:"file_size"`
	FilePath          string         `gorm:"type:text" json:"-"`
	ValidationResults datatypes.JSON `json:"validation_results,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (d *Document) TableName() string {
	return "documents"
}
