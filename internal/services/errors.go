package services

import (
	"errors"
	"fmt"
	"strings"

	"safeshipper/manifests/internal/models"
)

var (
	ErrShipmentNotFound  = errors.New("shipment not found")
	ErrManifestNotFound  = errors.New("manifest not found")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidState      = errors.New("manifest is not awaiting confirmation")
	ErrAlreadyFinalized  = errors.New("manifest already finalized")
	ErrUnknownUNNumber   = errors.New("UN number not found in dangerous goods catalog")
	ErrIncompatibleGoods = errors.New("dangerous goods are incompatible")
	ErrInvalidFileType   = errors.New("file type not allowed")
	ErrFileTooLarge      = errors.New("file exceeds maximum size")
	ErrNoTextContent     = errors.New("no text content found in document")
)

// IncompatibilityError carries the segregation result that blocked a finalize.
type IncompatibilityError struct {
	Result models.CompatibilityResult
}

func (e *IncompatibilityError) Error() string {
	return fmt.Sprintf("%s: %s", ErrIncompatibleGoods, strings.Join(e.Result.Conflicts, "; "))
}

func (e *IncompatibilityError) Unwrap() error {
	return ErrIncompatibleGoods
}
