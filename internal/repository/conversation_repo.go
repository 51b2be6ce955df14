package repository

import (
	"context"

	"github.com/Top-Pesinde/backend-sub000/internal/models"
)

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// CreateOrGet upserts the conversation for an unordered participant pair. The
// pair is normalized before the insert so concurrent first sends from either
// side land on the same row via the unique constraint.
func (r *ConversationRepository) CreateOrGet(
	ctx context.Context,
	a int64,
	b int64,
) (*models.Conversation, error) {
	user1, user2 := models.NormalizePair(a, b)

	query := `
		INSERT INTO conversations (user1_id, user2_id)
		VALUES ($1, $2)
		ON CONFLICT (user1_id, user2_id)
		DO UPDATE SET updated_at = NOW()
		RETURNING id, user1_id, user2_id, is_active, last_message, last_message_at, created_at, updated_at
	`

	var conversation models.Conversation
	err := r.db.QueryRow(ctx, query, user1, user2).Scan(
		&conversation.ID,
		&conversation.User1ID,
		&conversation.User2ID,
		&conversation.IsActive,
		&conversation.LastMessage,
		&conversation.LastMessageAt,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &conversation, nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, conversationID int64) (*models.Conversation, error) {
	query := `
		SELECT id, user1_id, user2_id, is_active, last_message, last_message_at, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`

	var conversation models.Conversation
	err := r.db.QueryRow(ctx, query, conversationID).Scan(
		&conversation.ID,
		&conversation.User1ID,
		&conversation.User2ID,
		&conversation.IsActive,
		&conversation.LastMessage,
		&conversation.LastMessageAt,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &conversation, nil
}

func (r *ConversationRepository) GetByIDForParticipant(
	ctx context.Context,
	conversationID int64,
	participantID int64,
) (*models.Conversation, error) {
	query := `
		SELECT id, user1_id, user2_id, is_active, last_message, last_message_at, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND (user1_id = $2 OR user2_id = $2)
	`

	var conversation models.Conversation
	err := r.db.QueryRow(ctx, query, conversationID, participantID).Scan(
		&conversation.ID,
		&conversation.User1ID,
		&conversation.User2ID,
		&conversation.IsActive,
		&conversation.LastMessage,
		&conversation.LastMessageAt,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &conversation, nil
}

// ListForParticipant returns the participant's active conversations ordered by
// recency, each with the unread count addressed to that participant.
func (r *ConversationRepository) ListForParticipant(
	ctx context.Context,
	participantID int64,
) ([]models.ConversationSummary, error) {
	query := `
		SELECT
			c.id,
			c.user1_id,
			c.user2_id,
			c.is_active,
			c.last_message,
			c.last_message_at,
			c.created_at,
			c.updated_at,
			COALESCE(uc.unread_count, 0)
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages
			WHERE conversation_id = c.id
			  AND receiver_id = $1
			  AND is_read = FALSE
		) uc ON TRUE
		WHERE (c.user1_id = $1 OR c.user2_id = $1)
		  AND c.is_active = TRUE
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC, c.id DESC
	`

	rows, err := r.db.Query(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		if err := rows.Scan(
			&summary.ID,
			&summary.User1ID,
			&summary.User2ID,
			&summary.IsActive,
			&summary.LastMessage,
			&summary.LastMessageAt,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

// SetActiveForPair flips every conversation between the pair. Idempotent and a
// no-op when the pair has never conversed.
func (r *ConversationRepository) SetActiveForPair(
	ctx context.Context,
	a int64,
	b int64,
	active bool,
) error {
	user1, user2 := models.NormalizePair(a, b)
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET is_active = $3, updated_at = NOW()
		WHERE user1_id = $1 AND user2_id = $2
	`, user1, user2, active)
	return err
}

// UpdateLastMessage refreshes the denormalized preview fields after an append.
func (r *ConversationRepository) UpdateLastMessage(
	ctx context.Context,
	conversationID int64,
	preview string,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET last_message = $2, last_message_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, conversationID, preview)
	return err
}
