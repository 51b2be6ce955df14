package handlers

import (
	"errors"
	"net/mail"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Top-Pesinde/backend-sub000/internal/models"
	"github.com/Top-Pesinde/backend-sub000/internal/repository"
	"github.com/Top-Pesinde/backend-sub000/internal/services"
	"github.com/Top-Pesinde/backend-sub000/pkg/utils"
)

type AuthHandler struct {
	userRepo  *repository.UserRepository
	jwtSecret string
}

func NewAuthHandler(userRepo *repository.UserRepository, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, services.CauseValidation, "Invalid request body")
	}

	parsedEmail, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, services.CauseValidation, "Invalid email format")
	}
	req.Email = strings.ToLower(parsedEmail.Address)
	if len(req.Password) < 8 {
		return respondError(c, fiber.StatusBadRequest, services.CauseValidation, "Password must be at least 8 characters")
	}
	if !models.ValidRoles[req.Role] {
		return respondError(c, fiber.StatusBadRequest, services.CauseValidation, "Invalid role")
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, services.CauseInternal, "Failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: hashed,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
	}
	if err := h.userRepo.CreateUser(c.Context(), user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return respondError(c, fiber.StatusConflict, services.CauseConflict, "Email already exists")
		}
		return respondError(c, fiber.StatusInternalServerError, services.CauseInternal, "Failed to create user")
	}

	token, err := utils.GenerateToken(strconv.FormatInt(user.ID, 10), user.Role, h.jwtSecret)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, services.CauseInternal, "Failed to generate token")
	}

	return respond(c, fiber.StatusCreated, "Registered", fiber.Map{
		"token": token,
		"user":  user,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, services.CauseValidation, "Invalid request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.userRepo.GetByEmail(c.Context(), email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return respondError(c, fiber.StatusUnauthorized, services.CauseUnauthenticated, "Invalid credentials")
		}
		return respondError(c, fiber.StatusInternalServerError, services.CauseInternal, "Failed to log in")
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		return respondError(c, fiber.StatusUnauthorized, services.CauseUnauthenticated, "Invalid credentials")
	}

	token, err := utils.GenerateToken(strconv.FormatInt(user.ID, 10), user.Role, h.jwtSecret)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, services.CauseInternal, "Failed to generate token")
	}

	return respond(c, fiber.StatusOK, "Logged in", fiber.Map{
		"token": token,
		"user":  user,
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, err := parseAuthUserID(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, services.CauseUnauthenticated, "Invalid token")
	}

	user, err := h.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return respondError(c, fiber.StatusNotFound, services.CauseNotFound, "User not found")
		}
		return respondError(c, fiber.StatusInternalServerError, services.CauseInternal, "Failed to load user")
	}

	return respond(c, fiber.StatusOK, "User retrieved", fiber.Map{"user": user})
}
