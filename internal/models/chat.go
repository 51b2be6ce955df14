package models

import (
	"strings"
	"time"
)

// MessageType is the closed set of payload kinds a chat message can carry.
// Anything outside this set is a validation error, never a pass-through.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeSystem:
		return true
	default:
		return false
	}
}

// DeletedMessageContent replaces the content of a soft-deleted message. The
// row itself is kept so ordering and pagination stay stable.
const DeletedMessageContent = "This message was deleted"

const previewRuneLimit = 100

// MessagePreview truncates content for the denormalized conversation preview.
func MessagePreview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRuneLimit {
		return content
	}
	return string(runes[:previewRuneLimit]) + "..."
}

// PermanentBlockPrefix on a block reason marks the irrevocable "ban" variant.
const PermanentBlockPrefix = "permanent:"

// Conversation is the durable pairwise messaging context. The participant
// pair is stored normalized (User1ID < User2ID) so an unordered pair maps to
// exactly one row.
type Conversation struct {
	ID            int64      `json:"id"`
	User1ID       int64      `json:"user1_id"`
	User2ID       int64      `json:"user2_id"`
	IsActive      bool       `json:"is_active"`
	LastMessage   *string    `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (c *Conversation) HasParticipant(userID int64) bool {
	return c.User1ID == userID || c.User2ID == userID
}

func (c *Conversation) OtherParticipant(userID int64) int64 {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// NormalizePair orders an unordered participant pair for storage and lookup.
func NormalizePair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

type Message struct {
	ID             int64       `json:"id"`
	ConversationID int64       `json:"conversation_id"`
	SenderID       int64       `json:"sender_id"`
	ReceiverID     int64       `json:"receiver_id"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
	ReplyToID      *int64      `json:"reply_to_id,omitempty"`
	AttachmentRef  *string     `json:"attachment_ref,omitempty"`
	IsRead         bool        `json:"is_read"`
	ReadAt         *time.Time  `json:"read_at,omitempty"`
	IsEdited       bool        `json:"is_edited"`
	EditedAt       *time.Time  `json:"edited_at,omitempty"`
	IsDeleted      bool        `json:"is_deleted"`
	DeletedAt      *time.Time  `json:"deleted_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

type ConversationSummary struct {
	Conversation
	UnreadCount int `json:"unread_count"`
}

// UserBlock is a directional edge blocked_by -> blocked_user. Eligibility
// checks treat the relation as symmetric; unblocking does not.
type UserBlock struct {
	ID            int64     `json:"id"`
	BlockedByID   int64     `json:"blocked_by_id"`
	BlockedUserID int64     `json:"blocked_user_id"`
	Reason        *string   `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (b *UserBlock) IsPermanent() bool {
	return b.Reason != nil && strings.HasPrefix(*b.Reason, PermanentBlockPrefix)
}

type BlockStatus struct {
	Blocked       bool `json:"blocked"`
	BlockedByMe   bool `json:"blocked_by_me"`
	BlockedByThem bool `json:"blocked_by_them"`
	Permanent     bool `json:"permanent"`
}
