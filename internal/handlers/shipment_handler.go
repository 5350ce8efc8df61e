package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"safeshipper/manifests/internal/models"
	"safeshipper/manifests/internal/services"
)

type ShipmentHandler struct {
	service services.ManifestService
	log     *zap.Logger
}

func NewShipmentHandler(service services.ManifestService, log *zap.Logger) *ShipmentHandler {
	return &ShipmentHandler{
		service: service,
		log:     log,
	}
}

func (h *ShipmentHandler) HandleCreate(c *fiber.Ctx) error {
	var req models.CreateShipmentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	shipment, err := h.service.CreateShipment(req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(models.NewShipmentDetail(shipment))
}

func (h *ShipmentHandler) HandleList(c *fiber.Ctx) error {
	shipments, err := h.service.ListShipments(listLimit(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"count":   len(shipments),
		"results": shipments,
	})
}

func (h *ShipmentHandler) HandleGet(c *fiber.Ctx) error {
	shipmentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid shipment ID format")
	}

	shipment, err := h.service.GetShipment(shipmentID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(shipment)
}

// HandleFinalizeFromManifest is the shipment-centric finalize kept for older clients.
func (h *ShipmentHandler) HandleFinalizeFromManifest(c *fiber.Ctx) error {
	shipmentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid shipment ID format")
	}

	var req models.LegacyFinalizeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.DocumentID == "" {
		return badRequest(c, "document_id is required")
	}
	documentID, err := uuid.Parse(req.DocumentID)
	if err != nil {
		return badRequest(c, "Invalid document ID format")
	}

	resp, err := h.service.FinalizeFromDocument(shipmentID, documentID, req.ConfirmedDangerousGoods, currentUser(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(resp)
}
