package services

import (
	"context"
	"errors"

	"github.com/Top-Pesinde/backend-sub000/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type blockStore interface {
	CreateBlock(ctx context.Context, blockedBy, blockedUser int64, reason *string) (*models.UserBlock, error)
	DeleteBlock(ctx context.Context, blockedBy, blockedUser int64) (bool, error)
	DirectBlock(ctx context.Context, blockedBy, blockedUser int64) (*models.UserBlock, error)
	BlocksBetween(ctx context.Context, a, b int64) ([]models.UserBlock, error)
	ListBlocks(ctx context.Context, blockedBy int64) ([]models.UserBlock, error)
}

// BlockService is the block registry: the durable mutual-block relationship
// plus the eligibility predicates every other chat component consults.
type BlockService struct {
	store blockStore
	users userReader
}

func NewBlockService(store blockStore, users userReader) *BlockService {
	return &BlockService{store: store, users: users}
}

// Block creates the directed edge and deactivates the pair's conversations.
func (s *BlockService) Block(
	ctx context.Context,
	actorID int64,
	targetID int64,
	reason *string,
) (*models.UserBlock, error) {
	if targetID <= 0 || targetID == actorID {
		return nil, ErrInvalidInput
	}

	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	block, err := s.store.CreateBlock(ctx, actorID, targetID, reason)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyBlocked
		}
		return nil, err
	}

	return block, nil
}

// Unblock removes the caller's own edge. The permanent variant never offers
// an unblock path, and only the original blocker may unblock.
func (s *BlockService) Unblock(ctx context.Context, actorID int64, targetID int64) error {
	if targetID <= 0 || targetID == actorID {
		return ErrInvalidInput
	}

	block, err := s.store.DirectBlock(ctx, actorID, targetID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBlockNotFound
		}
		return err
	}
	if block.IsPermanent() {
		return ErrForbidden
	}

	removed, err := s.store.DeleteBlock(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrBlockNotFound
	}

	return nil
}

func (s *BlockService) ListBlocked(ctx context.Context, actorID int64) ([]models.UserBlock, error) {
	return s.store.ListBlocks(ctx, actorID)
}

// Status reports the blocking relation between two identities from the
// caller's point of view.
func (s *BlockService) Status(ctx context.Context, actorID int64, otherID int64) (*models.BlockStatus, error) {
	if otherID <= 0 || otherID == actorID {
		return nil, ErrInvalidInput
	}

	blocks, err := s.store.BlocksBetween(ctx, actorID, otherID)
	if err != nil {
		return nil, err
	}

	status := &models.BlockStatus{}
	for i := range blocks {
		status.Blocked = true
		if blocks[i].IsPermanent() {
			status.Permanent = true
		}
		if blocks[i].BlockedByID == actorID {
			status.BlockedByMe = true
		} else {
			status.BlockedByThem = true
		}
	}

	return status, nil
}

// IsBlocked is the symmetric eligibility predicate: true when either party
// blocks the other.
func (s *BlockService) IsBlocked(ctx context.Context, a, b int64) (bool, error) {
	blocks, err := s.store.BlocksBetween(ctx, a, b)
	if err != nil {
		return false, err
	}
	return len(blocks) > 0, nil
}

// IsPermanentlyBlocked is IsBlocked filtered to the permanent variant.
func (s *BlockService) IsPermanentlyBlocked(ctx context.Context, a, b int64) (bool, error) {
	blocks, err := s.store.BlocksBetween(ctx, a, b)
	if err != nil {
		return false, err
	}
	for i := range blocks {
		if blocks[i].IsPermanent() {
			return true, nil
		}
	}
	return false, nil
}
