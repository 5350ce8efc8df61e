package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"safeshipper/manifests/internal/models"
	"safeshipper/manifests/internal/services"
)

type UploadHandler struct {
	service services.ManifestService
	log     *zap.Logger
}

func NewUploadHandler(service services.ManifestService, log *zap.Logger) *UploadHandler {
	return &UploadHandler{
		service: service,
		log:     log,
	}
}

// HandleUpload accepts multipart "file" and "shipment_id" and queues analysis.
func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	rawShipmentID := c.FormValue("shipment_id")
	if rawShipmentID == "" {
		return badRequest(c, "shipment_id is required")
	}
	shipmentID, err := uuid.Parse(rawShipmentID)
	if err != nil {
		return badRequest(c, "Invalid shipment ID format")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}

	manifest, err := h.service.UploadManifest(shipmentID, file)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.UploadResponse{
		ID:      manifest.ID.String(),
		Status:  string(manifest.Status),
		Message: "Manifest uploaded and queued for dangerous goods analysis",
	})
}
