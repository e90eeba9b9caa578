package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"rendercv-service/internal/domain"
	"rendercv-service/internal/infra/logging"
	"rendercv-service/internal/upload"
)

const unsafePathMessage = "Invalid CV format: photo and output paths must be relative to the CV file"

// uploadError turns a validation failure into its HTTP form.
func uploadError(err error) error {
	var ue *upload.Error
	if !errors.As(err, &ue) {
		return internalError("Upload handling failed", err)
	}
	if errors.Is(ue, domain.ErrPayloadTooLarge) {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, ue.Message)
	}
	return fiber.NewError(fiber.StatusBadRequest, ue.Message)
}

// renderError maps pipeline failures. Details stay in the log.
func renderError(err error, requestID string) error {
	switch {
	case errors.Is(err, domain.ErrUnsafeDocumentPath):
		logging.Warn("CV references a path outside the upload", "error", err, "request_id", requestID)
		return fiber.NewError(fiber.StatusBadRequest, unsafePathMessage)
	case errors.Is(err, domain.ErrRenderBusy):
		logging.Warn("No render slot available", "error", err, "request_id", requestID)
		return fiber.NewError(fiber.StatusServiceUnavailable, "Renderer is busy, try again later")
	case errors.Is(err, domain.ErrRenderTimeout):
		logging.Error("CV rendering timeout", "error", err, "request_id", requestID)
		return fiber.NewError(fiber.StatusRequestTimeout, "CV rendering took too long")
	default:
		logging.Error("CV rendering failed", "error", err, "request_id", requestID)
		return fiber.NewError(fiber.StatusInternalServerError, "Internal server error")
	}
}

func internalError(msg string, err error) error {
	logging.Error(msg, "error", err)
	return fiber.NewError(fiber.StatusInternalServerError, "Internal server error")
}
