package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/repository"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const refreshColumns = `token, user_id, user_agent, created_at, expires_at`

// The unique (user_id, user_agent) index makes concurrent rotations for one device serialize
const issueOrRotate = `-- name: IssueOrRotate
INSERT INTO refresh_tokens (token, user_id, user_agent, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, user_agent) DO UPDATE SET
    token = EXCLUDED.token,
    expires_at = EXCLUDED.expires_at
RETURNING ` + refreshColumns

func (r *RefreshTokenRepo) IssueOrRotate(ctx context.Context, params repository.IssueRefreshParams) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, issueOrRotate, params.Token, params.UserID, params.UserAgent, params.ExpiresAt)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)
	if err != nil {
		return token, fmt.Errorf("db error: %w", err)
	}

	return token, nil
}

const consumeToken = `-- name: Consume token: delete and return it
DELETE FROM refresh_tokens
WHERE token = $1
RETURNING ` + refreshColumns

// Consume deletes the token returning it
// Expired tokens are consumed too: it's up to the caller to check expiration
func (r *RefreshTokenRepo) Consume(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, consumeToken, tokenString)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const deleteToken = `-- name: Delete token
DELETE FROM refresh_tokens
WHERE token = $1
`

func (r *RefreshTokenRepo) Delete(ctx context.Context, tokenString string) error {
	_, err := r.DB.Exec(ctx, deleteToken, tokenString)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const listByUser = `-- name: List user tokens
SELECT ` + refreshColumns + ` FROM refresh_tokens
WHERE user_id = $1
ORDER BY created_at
`

func (r *RefreshTokenRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, listByUser, userID)
	tokens, err := pgx.CollectRows(rows, rowToRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tokens, nil
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.Token, &t.UserID, &t.UserAgent, &t.CreatedAt, &t.ExpiresAt)
	return t, err
}
