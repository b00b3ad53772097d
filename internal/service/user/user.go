package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/cache"
	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/repository"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Cache the service reads users through
// Get must return cache.ErrCacheMiss if nothing stored under the key
type Cache interface {
	Get(ctx context.Context, key string) (models.User, error)
	Set(ctx context.Context, user models.User, ttl time.Duration, keys ...string) error
	Delete(ctx context.Context, keys ...string) error
}

type Config struct {
	// How long users live in cache
	CacheTTL time.Duration
}

type CreateParams struct {
	Email    string
	Username *string
	Profile  models.Profile
	Password string
	Roles    []models.Role
}

type UpsertParams struct {
	Email string

	// Optional on update
	Password string
	Roles    []models.Role
}

type UserService struct {
	hasher  PasswordHasher
	storage repository.Storage
	cache   Cache
	ttl     time.Duration
	logger  logger.Logger
}

func NewService(cfg Config, hasher PasswordHasher, storage repository.Storage, cache Cache, l logger.Logger) *UserService {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &UserService{
		hasher:  hasher,
		storage: storage,
		cache:   cache,
		ttl:     cfg.CacheTTL,
		logger:  l.WithGroup("user_service"),
	}
}

// FindOne returns user which id or email equals to key
// Cache is tried first unless forceRefresh is set; users found in store are cached under the key
func (s *UserService) FindOne(ctx context.Context, key string, forceRefresh bool) (models.User, error) {
	useCache := true

	if forceRefresh {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("cache invalidation failed, bypassing cache", "key", key, "error", err)
			useCache = false
		}
	}

	if useCache {
		user, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			return user, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			s.logger.Warn("cache read failed, treat as miss", "key", key, "error", err)
		}
	}

	user, err := s.storage.User().GetUserByIDOrEmail(ctx, key)
	if err != nil {
		return user, fmt.Errorf("can't find user. Err: %w", err)
	}

	if useCache {
		s.cacheUser(ctx, user, key)
	}

	return user, nil
}

// FindByUsername looks for user in store only
func (s *UserService) FindByUsername(ctx context.Context, username string) (models.User, error) {
	user, err := s.storage.User().GetUserByUsername(ctx, username)
	if err != nil {
		return user, fmt.Errorf("can't find user by username. Err: %w", err)
	}
	return user, nil
}

// Create inserts new user
// Returns apperrors.ErrEmailTaken or apperrors.ErrUsernameTaken if user exists
func (s *UserService) Create(ctx context.Context, params CreateParams) (models.User, error) {
	var user models.User

	hash, err := s.HashPassword(params.Password)
	if err != nil {
		return user, err
	}

	user, err = s.storage.User().CreateUser(ctx, repository.CreateUserParams{
		Email:        params.Email,
		Username:     params.Username,
		Profile:      params.Profile,
		PasswordHash: hash,
		Roles:        params.Roles,
	})
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	s.cacheUser(ctx, user, user.ID.String(), user.Email)
	return user, nil
}

// Upsert creates user with the email or updates password and roles of existed one
// Empty password or roles are kept untouched on update
func (s *UserService) Upsert(ctx context.Context, params UpsertParams) (models.User, error) {
	var user models.User
	var hash string

	if params.Password != "" {
		var err error
		hash, err = s.HashPassword(params.Password)
		if err != nil {
			return user, err
		}
	}

	user, err := s.storage.User().UpsertUser(ctx, repository.UpsertUserParams{
		Email:        params.Email,
		PasswordHash: hash,
		Roles:        params.Roles,
	})
	if err != nil {
		return user, fmt.Errorf("can't upsert user. Err: %w", err)
	}

	s.cacheUser(ctx, user, user.ID.String(), user.Email)
	return user, nil
}

// Delete removes user from cache (both keys) and then from store
// If cache invalidation fails user is not deleted
func (s *UserService) Delete(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var email string

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		user, err := tx.User().LockUser(ctx, id)
		if err != nil {
			return err
		}
		email = user.Email

		if err := s.cache.Delete(ctx, id.String(), email); err != nil {
			return fmt.Errorf("cache invalidation failed. Err: %w", err)
		}

		_, err = tx.User().DeleteUser(ctx, id)
		return err
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("can't delete user. Err: %w", err)
	}

	// Lookups made while the transaction was open could cache the user again
	if err := s.cache.Delete(ctx, id.String(), email); err != nil {
		s.logger.Warn("cache invalidation after delete failed", "id", id, "error", err)
	}

	return id, nil
}

// DeleteAs deletes user on behalf of principal: allowed for the user itself or admins
func (s *UserService) DeleteAs(ctx context.Context, principal models.Principal, id uuid.UUID) (uuid.UUID, error) {
	if !principal.IsSelfOrHasRole(id, models.RoleAdmin) {
		return uuid.Nil, fmt.Errorf("can't delete user %s: %w", id, apperrors.ErrForbidden)
	}
	return s.Delete(ctx, id)
}

func (s *UserService) HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("can't use this as password. Err: %w", err)
	}
	return hash, nil
}

// Cache writes are best effort: store is the source of truth
func (s *UserService) cacheUser(ctx context.Context, user models.User, keys ...string) {
	if err := s.cache.Set(ctx, user, s.ttl, keys...); err != nil {
		s.logger.Warn("cache write failed", "id", user.ID, "error", err)
	}
}
