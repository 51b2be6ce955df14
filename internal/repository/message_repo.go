package repository

import (
	"context"

	"github.com/Top-Pesinde/backend-sub000/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `
	id, conversation_id, sender_id, receiver_id, content, message_type,
	reply_to_id, attachment_ref, is_read, read_at, is_edited, edited_at,
	is_deleted, deleted_at, created_at
`

func scanMessage(row interface{ Scan(dest ...any) error }, message *models.Message) error {
	return row.Scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.ReceiverID,
		&message.Content,
		&message.Type,
		&message.ReplyToID,
		&message.AttachmentRef,
		&message.IsRead,
		&message.ReadAt,
		&message.IsEdited,
		&message.EditedAt,
		&message.IsDeleted,
		&message.DeletedAt,
		&message.CreatedAt,
	)
}

type CreateMessageInput struct {
	ConversationID int64
	SenderID       int64
	ReceiverID     int64
	Content        string
	Type           models.MessageType
	ReplyToID      *int64
	AttachmentRef  *string
}

func (r *MessageRepository) Create(ctx context.Context, input CreateMessageInput) (*models.Message, error) {
	query := `
		INSERT INTO messages (conversation_id, sender_id, receiver_id, content, message_type, reply_to_id, attachment_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + messageColumns

	var message models.Message
	err := scanMessage(r.db.QueryRow(
		ctx,
		query,
		input.ConversationID,
		input.SenderID,
		input.ReceiverID,
		input.Content,
		input.Type,
		input.ReplyToID,
		input.AttachmentRef,
	), &message)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, messageID int64) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	var message models.Message
	if err := scanMessage(r.db.QueryRow(ctx, query, messageID), &message); err != nil {
		return nil, err
	}

	return &message, nil
}

// ListByConversation pages newest-first; callers reverse each page for
// oldest-first display order.
func (r *MessageRepository) ListByConversation(
	ctx context.Context,
	conversationID int64,
	limit int,
	offset int,
) ([]models.Message, int, error) {
	totalQuery := `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = $1
	`

	var total int
	if err := r.db.QueryRow(ctx, totalQuery, conversationID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, conversationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var message models.Message
		if err := scanMessage(rows, &message); err != nil {
			return nil, 0, err
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// ListUnreadForReceiver returns the receiver's unread messages oldest-first,
// used for the catch-up snapshot on room join.
func (r *MessageRepository) ListUnreadForReceiver(
	ctx context.Context,
	conversationID int64,
	receiverID int64,
) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		  AND receiver_id = $2
		  AND is_read = FALSE
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, conversationID, receiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var message models.Message
		if err := scanMessage(rows, &message); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// MarkConversationRead bulk-marks the reader's unread messages. read_at is set
// only on this transition, so it is written at most once per message.
func (r *MessageRepository) MarkConversationRead(
	ctx context.Context,
	conversationID int64,
	readerID int64,
) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_read = TRUE, read_at = NOW()
		WHERE conversation_id = $1
		  AND receiver_id = $2
		  AND is_read = FALSE
	`, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *MessageRepository) UpdateContent(
	ctx context.Context,
	messageID int64,
	content string,
) (*models.Message, error) {
	query := `
		UPDATE messages
		SET content = $2, is_edited = TRUE, edited_at = NOW()
		WHERE id = $1
		RETURNING ` + messageColumns

	var message models.Message
	if err := scanMessage(r.db.QueryRow(ctx, query, messageID, content), &message); err != nil {
		return nil, err
	}

	return &message, nil
}

func (r *MessageRepository) SoftDelete(ctx context.Context, messageID int64) (*models.Message, error) {
	query := `
		UPDATE messages
		SET content = $2, is_deleted = TRUE, deleted_at = NOW()
		WHERE id = $1
		RETURNING ` + messageColumns

	var message models.Message
	if err := scanMessage(r.db.QueryRow(ctx, query, messageID, models.DeletedMessageContent), &message); err != nil {
		return nil, err
	}

	return &message, nil
}
