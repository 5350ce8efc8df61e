package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"safeshipper/manifests/internal/models"
	"safeshipper/manifests/internal/services"
)

type ManifestHandler struct {
	service services.ManifestService
	log     *zap.Logger
}

func NewManifestHandler(service services.ManifestService, log *zap.Logger) *ManifestHandler {
	return &ManifestHandler{
		service: service,
		log:     log,
	}
}

func (h *ManifestHandler) HandlePollStatus(c *fiber.Ctx) error {
	shipmentID, err := uuid.Parse(c.Params("shipmentId"))
	if err != nil {
		return badRequest(c, "Invalid shipment ID format")
	}

	status, err := h.service.PollStatus(shipmentID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(status)
}

func (h *ManifestHandler) HandleList(c *fiber.Ctx) error {
	manifests, err := h.service.ListManifests(listLimit(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"count":   len(manifests),
		"results": manifests,
	})
}

func (h *ManifestHandler) HandleGet(c *fiber.Ctx) error {
	manifestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid manifest ID format")
	}

	manifest, err := h.service.GetManifest(manifestID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(manifest)
}

func (h *ManifestHandler) HandleConfirm(c *fiber.Ctx) error {
	manifestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid manifest ID format")
	}

	var req models.ConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.ConfirmedUNNumbers) == 0 {
		return badRequest(c, "confirmed_un_numbers is required")
	}

	resp, err := h.service.ConfirmDangerousGoods(manifestID, req.ConfirmedUNNumbers, currentUser(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(resp)
}

func (h *ManifestHandler) HandleFinalize(c *fiber.Ctx) error {
	manifestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid manifest ID format")
	}

	var req models.FinalizeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := h.service.Finalize(manifestID, req.ConfirmedDangerousGoods, currentUser(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(resp)
}

func listLimit(c *fiber.Ctx) int {
	limit := c.QueryInt("limit", 50)
	if limit < 1 {
		return 1
	}
	if limit > 200 {
		return 200
	}
	return limit
}
