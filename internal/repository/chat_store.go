package repository

import (
	"context"

	"github.com/Top-Pesinde/backend-sub000/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChatStore owns the connection pool and is the only place multi-step chat
// mutations are composed into transactions. Services see each method as one
// atomic operation.
type ChatStore struct {
	db            *pgxpool.Pool
	conversations *ConversationRepository
	messages      *MessageRepository
	blocks        *BlockRepository
}

func NewChatStore(db *pgxpool.Pool) *ChatStore {
	return &ChatStore{
		db:            db,
		conversations: NewConversationRepository(db),
		messages:      NewMessageRepository(db),
		blocks:        NewBlockRepository(db),
	}
}

func (s *ChatStore) FindOrCreateConversation(ctx context.Context, a, b int64) (*models.Conversation, error) {
	return s.conversations.CreateOrGet(ctx, a, b)
}

func (s *ChatStore) ConversationForParticipant(
	ctx context.Context,
	conversationID int64,
	participantID int64,
) (*models.Conversation, error) {
	return s.conversations.GetByIDForParticipant(ctx, conversationID, participantID)
}

func (s *ChatStore) ListConversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error) {
	return s.conversations.ListForParticipant(ctx, userID)
}

// AppendMessage inserts the message and refreshes the owning conversation's
// denormalized preview in one transaction.
func (s *ChatStore) AppendMessage(ctx context.Context, input CreateMessageInput) (*models.Message, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMessages := NewMessageRepository(tx)
	txConversations := NewConversationRepository(tx)

	message, err := txMessages.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	preview := models.MessagePreview(message.Content)
	if err := txConversations.UpdateLastMessage(ctx, input.ConversationID, preview); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return message, nil
}

// ListMessages pages newest-first in storage order, then reverses the page so
// callers receive oldest-first display order.
func (s *ChatStore) ListMessages(
	ctx context.Context,
	conversationID int64,
	page int,
	limit int,
) ([]models.Message, int, error) {
	messages, total, err := s.messages.ListByConversation(ctx, conversationID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, total, nil
}

func (s *ChatStore) UnreadMessages(
	ctx context.Context,
	conversationID int64,
	receiverID int64,
) ([]models.Message, error) {
	return s.messages.ListUnreadForReceiver(ctx, conversationID, receiverID)
}

func (s *ChatStore) MarkConversationRead(
	ctx context.Context,
	conversationID int64,
	readerID int64,
) (int64, error) {
	return s.messages.MarkConversationRead(ctx, conversationID, readerID)
}

func (s *ChatStore) GetMessage(ctx context.Context, messageID int64) (*models.Message, error) {
	return s.messages.GetByID(ctx, messageID)
}

func (s *ChatStore) EditMessage(ctx context.Context, messageID int64, content string) (*models.Message, error) {
	return s.messages.UpdateContent(ctx, messageID, content)
}

func (s *ChatStore) DeleteMessage(ctx context.Context, messageID int64) (*models.Message, error) {
	return s.messages.SoftDelete(ctx, messageID)
}

func (s *ChatStore) BlocksBetween(ctx context.Context, a, b int64) ([]models.UserBlock, error) {
	return s.blocks.GetBetween(ctx, a, b)
}

func (s *ChatStore) DirectBlock(ctx context.Context, blockedBy, blockedUser int64) (*models.UserBlock, error) {
	return s.blocks.GetDirect(ctx, blockedBy, blockedUser)
}

func (s *ChatStore) ListBlocks(ctx context.Context, blockedBy int64) ([]models.UserBlock, error) {
	return s.blocks.ListByBlocker(ctx, blockedBy)
}

// CreateBlock inserts the directed edge and deactivates every conversation
// between the pair in the same transaction.
func (s *ChatStore) CreateBlock(
	ctx context.Context,
	blockedBy int64,
	blockedUser int64,
	reason *string,
) (*models.UserBlock, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txBlocks := NewBlockRepository(tx)
	txConversations := NewConversationRepository(tx)

	block, err := txBlocks.Create(ctx, blockedBy, blockedUser, reason)
	if err != nil {
		return nil, err
	}

	if err := txConversations.SetActiveForPair(ctx, blockedBy, blockedUser, false); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return block, nil
}

// DeleteBlock removes the directed edge and reactivates the pair's
// conversations only when no block remains in either direction.
func (s *ChatStore) DeleteBlock(ctx context.Context, blockedBy, blockedUser int64) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txBlocks := NewBlockRepository(tx)
	txConversations := NewConversationRepository(tx)

	removed, err := txBlocks.Delete(ctx, blockedBy, blockedUser)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, tx.Commit(ctx)
	}

	remaining, err := txBlocks.GetBetween(ctx, blockedBy, blockedUser)
	if err != nil {
		return false, err
	}
	if len(remaining) == 0 {
		if err := txConversations.SetActiveForPair(ctx, blockedBy, blockedUser, true); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	return true, nil
}
