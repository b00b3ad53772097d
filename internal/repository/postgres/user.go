package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, email, username, firstname, lastname, image_url, password_hash, roles, created_at, updated_at`

const createUser = `-- name: CreateUser
INSERT INTO users (id, email, username, password_hash, roles, firstname, lastname, image_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, params repository.CreateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser,
		uuid.New(), params.Email, params.Username, params.PasswordHash, rolesOrDefault(params.Roles),
		params.Profile.FirstName, params.Profile.LastName, params.Profile.ImageURL,
	)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return user, nil
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "users_username_key":
		return user, apperrors.ErrUsernameTaken
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation:
		return user, apperrors.ErrEmailTaken
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

// Roles and password are updated only if provided ($5 is NULL when roles are not provided)
const upsertUser = `-- name: UpsertUser
INSERT INTO users (id, email, password_hash, roles)
VALUES ($1, $2, $3, COALESCE($4::text[], $5::text[]))
ON CONFLICT (email) DO UPDATE SET
    password_hash = COALESCE(NULLIF(EXCLUDED.password_hash, ''), users.password_hash),
    roles = COALESCE($4::text[], users.roles),
    updated_at = now()
RETURNING ` + userColumns

func (r *UserRepo) UpsertUser(ctx context.Context, params repository.UpsertUserParams) (models.User, error) {
	var roles []string
	if len(params.Roles) > 0 {
		roles = rolesToStrings(params.Roles)
	}

	rows, _ := r.DB.Query(ctx, upsertUser, uuid.New(), params.Email, params.PasswordHash, roles, rolesToStrings(models.DefaultRoles))
	user, err := pgx.CollectOneRow(rows, rowToUser)
	if err != nil {
		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + ` FROM users
WHERE id = $1
`

const getUserByEmail = `-- name: GetUserByEmail
SELECT ` + userColumns + ` FROM users
WHERE email = $1
`

// Key that parses as uuid is looked up by id, anything else by email
func (r *UserRepo) GetUserByIDOrEmail(ctx context.Context, key string) (models.User, error) {
	if id, err := uuid.Parse(key); err == nil {
		rows, _ := r.DB.Query(ctx, getUserByID, id)
		return collectUser(rows)
	}

	rows, _ := r.DB.Query(ctx, getUserByEmail, key)
	return collectUser(rows)
}

const getUserByUsername = `-- name: GetUserByUsername
SELECT ` + userColumns + ` FROM users
WHERE username = $1
`

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByUsername, username)
	return collectUser(rows)
}

const lockUser = `-- name: LockUser
SELECT ` + userColumns + ` FROM users
WHERE id = $1
FOR UPDATE
`

// Get user by id and lock the row until transaction ends
// Makes sense only in transaction
func (r *UserRepo) LockUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, lockUser, id)
	return collectUser(rows)
}

const deleteUser = `-- name: DeleteUser
DELETE FROM users
WHERE id = $1
RETURNING id
`

func (r *UserRepo) DeleteUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	rows, _ := r.DB.Query(ctx, deleteUser, id)
	deleted, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])

	switch {
	case err == nil:
		return deleted, nil
	case errors.Is(err, pgx.ErrNoRows):
		return uuid.Nil, apperrors.ErrUserNotFound
	default:
		return uuid.Nil, fmt.Errorf("db error: %w", err)
	}
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	var roles []string
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.ImageURL,
		&u.PasswordHash, &roles, &u.CreatedAt, &u.UpdatedAt,
	)
	u.Roles = rolesFromStrings(roles)
	return u, err
}

func rolesOrDefault(roles []models.Role) []string {
	if len(roles) == 0 {
		return rolesToStrings(models.DefaultRoles)
	}
	return rolesToStrings(roles)
}

func rolesToStrings(roles []models.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func rolesFromStrings(roles []string) []models.Role {
	out := make([]models.Role, len(roles))
	for i, r := range roles {
		out[i] = models.Role(r)
	}
	return out
}
