package repository

import (
	"context"

	"github.com/Top-Pesinde/backend-sub000/internal/models"
)

type PushTokenRepository struct {
	db DBTX
}

func NewPushTokenRepository(db DBTX) *PushTokenRepository {
	return &PushTokenRepository{db: db}
}

func (r *PushTokenRepository) Upsert(
	ctx context.Context,
	userID int64,
	token string,
	platform string,
) (*models.PushToken, error) {
	query := `
		INSERT INTO push_tokens (user_id, token, platform)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, token)
		DO UPDATE SET platform = EXCLUDED.platform, updated_at = NOW()
		RETURNING id, user_id, token, platform, created_at, updated_at
	`

	var record models.PushToken
	err := r.db.QueryRow(ctx, query, userID, token, platform).Scan(
		&record.ID,
		&record.UserID,
		&record.Token,
		&record.Platform,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &record, nil
}

func (r *PushTokenRepository) ListByUser(ctx context.Context, userID int64) ([]string, error) {
	query := `
		SELECT token
		FROM push_tokens
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]string, 0)
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tokens, nil
}
