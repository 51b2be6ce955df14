package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/Top-Pesinde/backend-sub000/internal/models"
	"github.com/Top-Pesinde/backend-sub000/internal/services"
	chatws "github.com/Top-Pesinde/backend-sub000/internal/websocket"
	"github.com/Top-Pesinde/backend-sub000/pkg/utils"
)

// chatApplicationService is the orchestrator surface the REST endpoints use.
// The websocket gateway is embedded so both transports drive the same
// operations and produce identical persisted results and broadcasts.
type chatApplicationService interface {
	chatws.ChatGateway
	StartConversation(ctx context.Context, actorID, otherID int64) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error)
	ListMessages(ctx context.Context, actorID, conversationID int64, page, limit int) ([]models.Message, int, error)
	EditMessage(ctx context.Context, actorID, messageID int64, content string) (*models.Message, error)
	DeleteMessage(ctx context.Context, actorID, messageID int64) (*models.Message, error)
}

type ChatHandler struct {
	service        chatApplicationService
	hub            *chatws.Hub
	jwtSecret      string
	autoReadOnJoin bool
}

func NewChatHandler(
	service chatApplicationService,
	hub *chatws.Hub,
	jwtSecret string,
	autoReadOnJoin bool,
) *ChatHandler {
	return &ChatHandler{
		service:        service,
		hub:            hub,
		jwtSecret:      jwtSecret,
		autoReadOnJoin: autoReadOnJoin,
	}
}

func parseAuthUserID(c *fiber.Ctx) (int64, error) {
	raw, _ := c.Locals("user_id").(string)
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, errors.New("invalid user id in token")
	}
	return userID, nil
}

type startConversationRequest struct {
	UserID int64 `json:"user_id"`
}

type sendMessageRequest struct {
	ReceiverID    int64   `json:"receiver_id"`
	Content       string  `json:"content"`
	Type          string  `json:"type"`
	ReplyToID     *int64  `json:"reply_to_id"`
	AttachmentRef *string `json:"attachment_ref"`
}

type editMessageRequest struct {
	Content string `json:"content"`
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	userID, err := parseAuthUserID(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, services.CauseUnauthenticated, "Invalid token")
	}

	conversations, err := h.service.ListConversations(c.Context(), userID)
	if err != nil {
		return mapChatError(c, err)
	}

	return respond(c, fiber.StatusOK, "Conversations retrieved", fiber.Map{"conversations": conversations})
}

func (h *ChatHandler) StartConversation(c *fiber.Ctx) error {
	userID, err := parseAuthUserID(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, services.CauseUnauthenticated, "Invalid token")
	}

	var req startConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, services.CauseValidation, "Invalid request body")
	}

	conversation, err := h.service.StartConversation(c.Context(), userID, req.UserID)
	if err != nil {
		return mapChatError(c, err)
	}

	return respond(c, fiber.StatusCreated, "Conversation ready", fiber.Map{"conversation": conversation})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userID, err := parseAuthUserID(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, services.CauseUnauthenticated, "Invalid token")
	}

	conversationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || conversationID <= 0 {
		return respondError(c, fiber.StatusBadRequest, services.CauseValidation, "Invalid conversation id")
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	messages, total, err := h.service.ListMessages(c.Context(), userID, conversationID, page, limit)
	if err != nil {
		return mapChatError(c, err)
	}

	return respond(c, fiber.StatusOK, "Messages retrieved", fiber.Map{
		"messages":   messages,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := parseAuthUserID(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, services.CauseUnauthenticated, "Invalid token")
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, services.CauseValidation, "Invalid request body")
	}

	delivery, err := h.service.SendMessage(c.Context(), userID, services.SendMessageInput{
		ReceiverID:    req.ReceiverID,
		Content:       req.Content,
		Type:          models.MessageType(req.Type),
		ReplyToID:     req.ReplyToID,
		AttachmentRef: req.AttachmentRef,
	})
	if err != nil {
		return mapChatError(c, err)
	}

	return respond(c, fiber.StatusCreated, "Message sent", delivery)
}

func (h *ChatHandler) MarkConversationRead(c *fiber.Ctx) error {
	userID, err := parseAuthUserID(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, services.CauseUnauthenticated, "Invalid token")
	}

	conversationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || conversationID <= 0 {
		return respondError(c, fiber.StatusBadRequest, services.CauseValidation, "Invalid conversation id")
	}

	count, err := h.service.MarkConversationRead(c.Context(), userID, conversationID)
	if err != nil {
		return mapChatError(c, err)
	}

	return respond(c, fiber.StatusOK, "Conversation marked read", fiber.Map{"marked_read": count})
}

func (h *ChatHandler) EditMessage(c *fiber.Ctx) error {
	userID, err := parseAuthUserID(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, services.CauseUnauthenticated, "Invalid token")
	}

	messageID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || messageID <= 0 {
		return respondError(c, fiber.StatusBadRequest, services.CauseValidation, "Invalid message id")
	}

	var req editMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, services.CauseValidation, "Invalid request body")
	}

	message, err := h.service.EditMessage(c.Context(), userID, messageID, req.Content)
	if err != nil {
		return mapChatError(c, err)
	}

	return respond(c, fiber.StatusOK, "Message edited", fiber.Map{"message": message})
}

func (h *ChatHandler) DeleteMessage(c *fiber.Ctx) error {
	userID, err := parseAuthUserID(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, services.CauseUnauthenticated, "Invalid token")
	}

	messageID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || messageID <= 0 {
		return respondError(c, fiber.StatusBadRequest, services.CauseValidation, "Invalid message id")
	}

	message, err := h.service.DeleteMessage(c.Context(), userID, messageID)
	if err != nil {
		return mapChatError(c, err)
	}

	return respond(c, fiber.StatusOK, "Message deleted", fiber.Map{"message": message})
}

func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return respondError(c, fiber.StatusUpgradeRequired, services.CauseValidation, "WebSocket upgrade required")
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, services.CauseUnauthenticated, "Invalid or expired token")
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

// HandleWebSocket runs a live connection: admit it into its private channel,
// then pump events until it drops. Room memberships die with the connection.
func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	raw, _ := conn.Locals("user_id").(string)
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		_ = conn.Close()
		return
	}

	client := chatws.NewClient(h.hub, conn, userID)

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump(h.service, h.autoReadOnJoin)
}

func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}
