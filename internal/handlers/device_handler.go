package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Top-Pesinde/backend-sub000/internal/repository"
	"github.com/Top-Pesinde/backend-sub000/internal/services"
)

// DeviceHandler registers push tokens so the notification escalator has a
// dispatch target for unread messages.
type DeviceHandler struct {
	pushTokenRepo *repository.PushTokenRepository
}

func NewDeviceHandler(pushTokenRepo *repository.PushTokenRepository) *DeviceHandler {
	return &DeviceHandler{pushTokenRepo: pushTokenRepo}
}

type registerDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (h *DeviceHandler) RegisterDevice(c *fiber.Ctx) error {
	userID, err := parseAuthUserID(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, services.CauseUnauthenticated, "Invalid token")
	}

	var req registerDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, services.CauseValidation, "Invalid request body")
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		return respondError(c, fiber.StatusBadRequest, services.CauseValidation, "Token is required")
	}
	platform := strings.TrimSpace(req.Platform)
	if platform == "" {
		platform = "expo"
	}

	record, err := h.pushTokenRepo.Upsert(c.Context(), userID, token, platform)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, services.CauseInternal, "Failed to register device")
	}

	return respond(c, fiber.StatusCreated, "Device registered", fiber.Map{"push_token": record})
}
