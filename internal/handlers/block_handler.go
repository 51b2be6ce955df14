package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Top-Pesinde/backend-sub000/internal/models"
	"github.com/Top-Pesinde/backend-sub000/internal/services"
)

type blockApplicationService interface {
	Block(ctx context.Context, actorID, targetID int64, reason *string) (*models.UserBlock, error)
	Unblock(ctx context.Context, actorID, targetID int64) error
	ListBlocked(ctx context.Context, actorID int64) ([]models.UserBlock, error)
	Status(ctx context.Context, actorID, otherID int64) (*models.BlockStatus, error)
}

type BlockHandler struct {
	service blockApplicationService
}

func NewBlockHandler(service blockApplicationService) *BlockHandler {
	return &BlockHandler{service: service}
}

type blockUserRequest struct {
	UserID int64  `json:"user_id"`
	Reason string `json:"reason"`
}

func (h *BlockHandler) BlockUser(c *fiber.Ctx) error {
	userID, err := parseAuthUserID(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, services.CauseUnauthenticated, "Invalid token")
	}

	var req blockUserRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, services.CauseValidation, "Invalid request body")
	}

	var reason *string
	if trimmed := strings.TrimSpace(req.Reason); trimmed != "" {
		reason = &trimmed
	}

	block, err := h.service.Block(c.Context(), userID, req.UserID, reason)
	if err != nil {
		return mapChatError(c, err)
	}

	return respond(c, fiber.StatusCreated, "User blocked", fiber.Map{"block": block})
}

func (h *BlockHandler) UnblockUser(c *fiber.Ctx) error {
	userID, err := parseAuthUserID(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, services.CauseUnauthenticated, "Invalid token")
	}

	targetID, err := strconv.ParseInt(c.Params("userId"), 10, 64)
	if err != nil || targetID <= 0 {
		return respondError(c, fiber.StatusBadRequest, services.CauseValidation, "Invalid user id")
	}

	if err := h.service.Unblock(c.Context(), userID, targetID); err != nil {
		return mapChatError(c, err)
	}

	return respond(c, fiber.StatusOK, "User unblocked", nil)
}

func (h *BlockHandler) ListBlocked(c *fiber.Ctx) error {
	userID, err := parseAuthUserID(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, services.CauseUnauthenticated, "Invalid token")
	}

	blocks, err := h.service.ListBlocked(c.Context(), userID)
	if err != nil {
		return mapChatError(c, err)
	}

	return respond(c, fiber.StatusOK, "Blocked users retrieved", fiber.Map{"blocks": blocks})
}

func (h *BlockHandler) BlockStatus(c *fiber.Ctx) error {
	userID, err := parseAuthUserID(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, services.CauseUnauthenticated, "Invalid token")
	}

	otherID, err := strconv.ParseInt(c.Params("userId"), 10, 64)
	if err != nil || otherID <= 0 {
		return respondError(c, fiber.StatusBadRequest, services.CauseValidation, "Invalid user id")
	}

	status, err := h.service.Status(c.Context(), userID, otherID)
	if err != nil {
		return mapChatError(c, err)
	}

	return respond(c, fiber.StatusOK, "Block status retrieved", fiber.Map{"status": status})
}
