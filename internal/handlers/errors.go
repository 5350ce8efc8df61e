package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"safeshipper/manifests/internal/models"
	"safeshipper/manifests/internal/services"
)

// respondError maps service errors onto status codes and the JSON error body.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	var incompatible *services.IncompatibilityError
	if errors.As(err, &incompatible) {
		result := incompatible.Result
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:               "Dangerous goods are incompatible and cannot be shipped together",
			CompatibilityResult: &result,
		})
	}

	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrShipmentNotFound),
		errors.Is(err, services.ErrManifestNotFound),
		errors.Is(err, services.ErrDocumentNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrAlreadyFinalized):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrUnknownUNNumber),
		errors.Is(err, services.ErrInvalidFileType),
		errors.Is(err, services.ErrFileTooLarge):
		status = fiber.StatusBadRequest
	}

	if status == fiber.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.Status(status).JSON(models.ErrorResponse{Error: "internal server error"})
	}

	return c.Status(status).JSON(models.ErrorResponse{Error: err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: msg})
}
