package repository

import (
	"context"

	"github.com/Top-Pesinde/backend-sub000/internal/models"
)

type BlockRepository struct {
	db DBTX
}

func NewBlockRepository(db DBTX) *BlockRepository {
	return &BlockRepository{db: db}
}

func (r *BlockRepository) Create(
	ctx context.Context,
	blockedBy int64,
	blockedUser int64,
	reason *string,
) (*models.UserBlock, error) {
	query := `
		INSERT INTO user_blocks (blocked_by, blocked_user, reason)
		VALUES ($1, $2, $3)
		RETURNING id, blocked_by, blocked_user, reason, created_at
	`

	var block models.UserBlock
	err := r.db.QueryRow(ctx, query, blockedBy, blockedUser, reason).Scan(
		&block.ID,
		&block.BlockedByID,
		&block.BlockedUserID,
		&block.Reason,
		&block.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &block, nil
}

// GetDirect returns the block row for one direction only.
func (r *BlockRepository) GetDirect(
	ctx context.Context,
	blockedBy int64,
	blockedUser int64,
) (*models.UserBlock, error) {
	query := `
		SELECT id, blocked_by, blocked_user, reason, created_at
		FROM user_blocks
		WHERE blocked_by = $1 AND blocked_user = $2
	`

	var block models.UserBlock
	err := r.db.QueryRow(ctx, query, blockedBy, blockedUser).Scan(
		&block.ID,
		&block.BlockedByID,
		&block.BlockedUserID,
		&block.Reason,
		&block.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &block, nil
}

// GetBetween returns block rows in both directions for an unordered pair.
func (r *BlockRepository) GetBetween(
	ctx context.Context,
	a int64,
	b int64,
) ([]models.UserBlock, error) {
	query := `
		SELECT id, blocked_by, blocked_user, reason, created_at
		FROM user_blocks
		WHERE (blocked_by = $1 AND blocked_user = $2)
		   OR (blocked_by = $2 AND blocked_user = $1)
	`

	rows, err := r.db.Query(ctx, query, a, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blocks := make([]models.UserBlock, 0, 2)
	for rows.Next() {
		var block models.UserBlock
		if err := rows.Scan(
			&block.ID,
			&block.BlockedByID,
			&block.BlockedUserID,
			&block.Reason,
			&block.CreatedAt,
		); err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return blocks, nil
}

func (r *BlockRepository) Delete(ctx context.Context, blockedBy int64, blockedUser int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM user_blocks
		WHERE blocked_by = $1 AND blocked_user = $2
	`, blockedBy, blockedUser)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *BlockRepository) ListByBlocker(ctx context.Context, blockedBy int64) ([]models.UserBlock, error) {
	query := `
		SELECT id, blocked_by, blocked_user, reason, created_at
		FROM user_blocks
		WHERE blocked_by = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, blockedBy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blocks := make([]models.UserBlock, 0)
	for rows.Next() {
		var block models.UserBlock
		if err := rows.Scan(
			&block.ID,
			&block.BlockedByID,
			&block.BlockedUserID,
			&block.Reason,
			&block.CreatedAt,
		); err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return blocks, nil
}
