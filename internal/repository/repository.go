package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/models"
)

type CreateUserParams struct {
	Email        string
	Username     *string
	Profile      models.Profile
	PasswordHash string
	Roles        []models.Role // if empty models.DefaultRoles used
}

type UpsertUserParams struct {
	Email string

	// Used on create; on update overwrites stored one only if not empty
	PasswordHash string

	// Used on create (or models.DefaultRoles if empty); on update overwrites stored ones only if not empty
	Roles []models.Role
}

// User repository interface
type UserRepo interface {
	// Insert user
	// If email or username is taken must return apperrors.ErrEmailTaken or apperrors.ErrUsernameTaken
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Create user with the email or update its password and roles
	UpsertUser(ctx context.Context, params UpsertUserParams) (models.User, error)

	// Get user which id or email equals to key
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByIDOrEmail(ctx context.Context, key string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)

	// Same as get by id but locks the user row till the transaction ends
	LockUser(ctx context.Context, id uuid.UUID) (models.User, error)

	// Delete user and return its id
	// If user not found must return apperrors.ErrUserNotFound
	DeleteUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

type IssueRefreshParams struct {
	UserID    uuid.UUID
	UserAgent string
	Token     string
	ExpiresAt time.Time
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	// Create token for the (user, user agent) pair or replace token value and expiration of the existed one
	// Must never leave two tokens for one pair, even when called concurrently
	IssueOrRotate(ctx context.Context, params IssueRefreshParams) (models.RefreshToken, error)

	// Delete token and return what was deleted
	// Must be atomic: of concurrent calls with the same token only one succeeds
	// If token not found must return apperrors.ErrRefreshTokenNotFound
	Consume(ctx context.Context, token string) (models.RefreshToken, error)

	// Delete token if exists
	Delete(ctx context.Context, token string) error

	// All tokens of the user, expired included
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error)
}

type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo

	// Run fn in transaction
	// Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
