package handlers

import (
	"errors"

	"github.com/Top-Pesinde/backend-sub000/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

// All endpoints answer with the same envelope: a success flag, a human
// message, optional data and, on failure, a machine cause.
func respond(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func respondError(c *fiber.Ctx, status int, cause string, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
		"error":   cause,
	})
}

func mapChatError(c *fiber.Ctx, err error) error {
	cause := services.ErrorCause(err)
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return respondError(c, fiber.StatusBadRequest, cause, "Invalid request")
	case errors.Is(err, services.ErrUserBlocked),
		errors.Is(err, services.ErrBlockedByUser),
		errors.Is(err, services.ErrBanned),
		errors.Is(err, services.ErrEditWindowExpired),
		errors.Is(err, services.ErrForbidden):
		return respondError(c, fiber.StatusForbidden, cause, err.Error())
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrConversationNotFound),
		errors.Is(err, services.ErrMessageNotFound),
		errors.Is(err, pgx.ErrNoRows):
		return respondError(c, fiber.StatusNotFound, cause, err.Error())
	case errors.Is(err, services.ErrAlreadyBlocked),
		errors.Is(err, services.ErrBlockNotFound):
		return respondError(c, fiber.StatusConflict, cause, err.Error())
	default:
		return respondError(c, fiber.StatusInternalServerError, services.CauseInternal, "Failed to process chat request")
	}
}
