package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Top-Pesinde/backend-sub000/internal/models"
	"github.com/Top-Pesinde/backend-sub000/internal/repository"
	"github.com/jackc/pgx/v5"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrForbidden            = errors.New("forbidden")
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	// ErrBlockedByUser: the other party blocked the caller.
	ErrBlockedByUser = errors.New("you have been blocked by this user")
	// ErrUserBlocked: the caller blocked the other party and may unblock.
	ErrUserBlocked       = errors.New("you have blocked this user")
	ErrBanned            = errors.New("messaging is permanently disabled between these users")
	ErrEditWindowExpired = errors.New("edit window expired")
	ErrAlreadyBlocked    = errors.New("user is already blocked")
	ErrBlockNotFound     = errors.New("block not found")
)

// EditWindow is how long after sending a message may still be edited.
const EditWindow = 5 * time.Minute

// Live event names shared by the websocket hub and the REST side effects.
const (
	EventNewMessage       = "new_message"
	EventMessageSent      = "message_sent"
	EventMessageSendError = "message_send_error"
	EventMessageEdited    = "message_edited"
	EventMessageDeleted   = "message_deleted"
	EventMessagesRead     = "messages_read_by_user"
	EventUnreadCount      = "unread_count_updated"
	EventTypingStart      = "typing_start"
	EventTypingStop       = "typing_stop"
)

// EventBroadcaster fans events out to live connections. Implemented by the
// websocket hub; substituted with a fake in tests.
type EventBroadcaster interface {
	ToUser(userID int64, event string, payload any)
	ToConversation(conversationID int64, event string, payload any, excludeConnID int64)
	ToAll(event string, payload any)
}

type escalationScheduler interface {
	Schedule(message *models.Message)
}

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type chatStore interface {
	FindOrCreateConversation(ctx context.Context, a, b int64) (*models.Conversation, error)
	ConversationForParticipant(ctx context.Context, conversationID, participantID int64) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error)
	AppendMessage(ctx context.Context, input repository.CreateMessageInput) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID int64, page, limit int) ([]models.Message, int, error)
	UnreadMessages(ctx context.Context, conversationID, receiverID int64) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID int64) (int64, error)
	GetMessage(ctx context.Context, messageID int64) (*models.Message, error)
	EditMessage(ctx context.Context, messageID int64, content string) (*models.Message, error)
	DeleteMessage(ctx context.Context, messageID int64) (*models.Message, error)
	BlocksBetween(ctx context.Context, a, b int64) ([]models.UserBlock, error)
}

// ChatService is the single entry point for mutating chat operations. Every
// method checks blocking first, then the store, then triggers delivery and
// escalation side effects.
type ChatService struct {
	store     chatStore
	users     userReader
	events    EventBroadcaster
	escalator escalationScheduler
}

func NewChatService(
	store chatStore,
	users userReader,
	events EventBroadcaster,
	escalator escalationScheduler,
) *ChatService {
	return &ChatService{
		store:     store,
		users:     users,
		events:    events,
		escalator: escalator,
	}
}

type SendMessageInput struct {
	ReceiverID    int64
	Content       string
	Type          models.MessageType
	ReplyToID     *int64
	AttachmentRef *string
	// ExcludeConnID is the sender's originating live connection; it receives a
	// direct acknowledgment instead of the conversation broadcast.
	ExcludeConnID int64
}

type MessageDelivery struct {
	Conversation *models.Conversation `json:"conversation"`
	Message      *models.Message      `json:"message"`
}

func (s *ChatService) SendMessage(
	ctx context.Context,
	senderID int64,
	input SendMessageInput,
) (*MessageDelivery, error) {
	if input.ReceiverID <= 0 || input.ReceiverID == senderID {
		return nil, ErrInvalidInput
	}

	if input.Type == "" {
		input.Type = models.MessageTypeText
	}
	if !input.Type.Valid() {
		return nil, ErrInvalidInput
	}

	content := strings.TrimSpace(input.Content)
	if content == "" && input.AttachmentRef == nil {
		return nil, ErrInvalidInput
	}

	if _, err := s.users.GetByID(ctx, input.ReceiverID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := s.checkBlocks(ctx, senderID, input.ReceiverID); err != nil {
		return nil, err
	}

	conversation, err := s.store.FindOrCreateConversation(ctx, senderID, input.ReceiverID)
	if err != nil {
		return nil, err
	}

	if input.ReplyToID != nil {
		replyTo, err := s.store.GetMessage(ctx, *input.ReplyToID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrInvalidInput
			}
			return nil, err
		}
		if replyTo.ConversationID != conversation.ID {
			return nil, ErrInvalidInput
		}
	}

	message, err := s.store.AppendMessage(ctx, repository.CreateMessageInput{
		ConversationID: conversation.ID,
		SenderID:       senderID,
		ReceiverID:     input.ReceiverID,
		Content:        content,
		Type:           input.Type,
		ReplyToID:      input.ReplyToID,
		AttachmentRef:  input.AttachmentRef,
	})
	if err != nil {
		return nil, err
	}

	s.events.ToUser(input.ReceiverID, EventNewMessage, MessageDelivery{
		Conversation: conversation,
		Message:      message,
	})
	s.events.ToConversation(conversation.ID, EventNewMessage, message, input.ExcludeConnID)

	if s.escalator != nil {
		s.escalator.Schedule(message)
	}

	return &MessageDelivery{Conversation: conversation, Message: message}, nil
}

// StartConversation finds or creates the conversation without sending. The
// same blocking rules as SendMessage apply.
func (s *ChatService) StartConversation(
	ctx context.Context,
	actorID int64,
	otherID int64,
) (*models.Conversation, error) {
	if otherID <= 0 || otherID == actorID {
		return nil, ErrInvalidInput
	}

	if _, err := s.users.GetByID(ctx, otherID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := s.checkBlocks(ctx, actorID, otherID); err != nil {
		return nil, err
	}

	return s.store.FindOrCreateConversation(ctx, actorID, otherID)
}

func (s *ChatService) ListConversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error) {
	return s.store.ListConversations(ctx, userID)
}

func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID int64,
	conversationID int64,
	page int,
	limit int,
) ([]models.Message, int, error) {
	if conversationID <= 0 || page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	if _, err := s.ConversationForParticipant(ctx, actorID, conversationID); err != nil {
		return nil, 0, err
	}

	return s.store.ListMessages(ctx, conversationID, page, limit)
}

// MarkConversationRead bulk-marks the caller's unread messages and notifies
// both sides. A zero count is a valid no-op and produces no broadcasts.
func (s *ChatService) MarkConversationRead(
	ctx context.Context,
	actorID int64,
	conversationID int64,
) (int64, error) {
	conversation, err := s.ConversationForParticipant(ctx, actorID, conversationID)
	if err != nil {
		return 0, err
	}

	count, err := s.store.MarkConversationRead(ctx, conversationID, actorID)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	s.events.ToUser(conversation.OtherParticipant(actorID), EventMessagesRead, map[string]any{
		"user_id":         actorID,
		"conversation_id": conversationID,
	})
	s.events.ToUser(actorID, EventUnreadCount, map[string]any{
		"conversation_id": conversationID,
		"unread_count":    0,
	})

	return count, nil
}

func (s *ChatService) EditMessage(
	ctx context.Context,
	actorID int64,
	messageID int64,
	content string,
) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrInvalidInput
	}

	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if message.SenderID != actorID {
		return nil, ErrForbidden
	}
	if message.IsDeleted {
		return nil, ErrMessageNotFound
	}
	if time.Since(message.CreatedAt) > EditWindow {
		return nil, ErrEditWindowExpired
	}

	updated, err := s.store.EditMessage(ctx, messageID, content)
	if err != nil {
		return nil, err
	}

	s.events.ToConversation(updated.ConversationID, EventMessageEdited, updated, 0)

	return updated, nil
}

func (s *ChatService) DeleteMessage(
	ctx context.Context,
	actorID int64,
	messageID int64,
) (*models.Message, error) {
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if message.SenderID != actorID {
		return nil, ErrForbidden
	}
	if message.IsDeleted {
		return nil, ErrMessageNotFound
	}

	deleted, err := s.store.DeleteMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	s.events.ToConversation(deleted.ConversationID, EventMessageDeleted, map[string]any{
		"message_id":      deleted.ID,
		"conversation_id": deleted.ConversationID,
	}, 0)

	return deleted, nil
}

// UnreadMessages is the catch-up snapshot for a connection that just joined a
// conversation room.
func (s *ChatService) UnreadMessages(
	ctx context.Context,
	actorID int64,
	conversationID int64,
) ([]models.Message, error) {
	if _, err := s.ConversationForParticipant(ctx, actorID, conversationID); err != nil {
		return nil, err
	}
	return s.store.UnreadMessages(ctx, conversationID, actorID)
}

func (s *ChatService) ConversationForParticipant(
	ctx context.Context,
	actorID int64,
	conversationID int64,
) (*models.Conversation, error) {
	conversation, err := s.store.ConversationForParticipant(ctx, conversationID, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conversation, nil
}

// Typing relays a typing indicator to the receiver's private channel. Nothing
// is persisted.
func (s *ChatService) Typing(
	ctx context.Context,
	actorID int64,
	conversationID int64,
	receiverID int64,
	active bool,
) error {
	if receiverID <= 0 || receiverID == actorID {
		return ErrInvalidInput
	}

	conversation, err := s.ConversationForParticipant(ctx, actorID, conversationID)
	if err != nil {
		return err
	}
	if !conversation.HasParticipant(receiverID) {
		return ErrInvalidInput
	}

	event := EventTypingStop
	if active {
		event = EventTypingStart
	}
	s.events.ToUser(receiverID, event, map[string]any{
		"conversation_id": conversationID,
		"user_id":         actorID,
	})

	return nil
}

// checkBlocks enforces send eligibility. The relation is symmetric, but the
// error distinguishes who blocked whom and whether the block is permanent so
// clients can decide whether to offer an unblock affordance.
func (s *ChatService) checkBlocks(ctx context.Context, actorID, otherID int64) error {
	blocks, err := s.store.BlocksBetween(ctx, actorID, otherID)
	if err != nil {
		return err
	}
	if len(blocks) == 0 {
		return nil
	}

	blockedByActor := false
	for i := range blocks {
		if blocks[i].IsPermanent() {
			return ErrBanned
		}
		if blocks[i].BlockedByID == actorID {
			blockedByActor = true
		}
	}
	if blockedByActor {
		return ErrUserBlocked
	}
	return ErrBlockedByUser
}

func FormatChatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}
