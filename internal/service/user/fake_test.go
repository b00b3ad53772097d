package user

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/repository"
)

// In memory storage counting user lookups
type fakeStorage struct {
	mu      sync.Mutex
	users   map[uuid.UUID]models.User
	lookups int
	getErr  error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{users: make(map[uuid.UUID]models.User)}
}

func (s *fakeStorage) User() repository.UserRepo {
	return &fakeUserRepo{s: s}
}

func (s *fakeStorage) Refresh() repository.RefreshTokenRepo {
	return nil
}

func (s *fakeStorage) InTx(_ context.Context, fn func(repository.Storage) error) error {
	return fn(s)
}

func (s *fakeStorage) Lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

type fakeUserRepo struct {
	s *fakeStorage
}

func (r *fakeUserRepo) CreateUser(_ context.Context, params repository.CreateUserParams) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == params.Email {
			return models.User{}, apperrors.ErrEmailTaken
		}
		if params.Username != nil && u.Username != nil && *u.Username == *params.Username {
			return models.User{}, apperrors.ErrUsernameTaken
		}
	}

	roles := params.Roles
	if len(roles) == 0 {
		roles = models.DefaultRoles
	}

	now := time.Now().UTC()
	u := models.User{
		ID:           uuid.New(),
		Email:        params.Email,
		Username:     params.Username,
		Profile:      params.Profile,
		PasswordHash: params.PasswordHash,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.s.users[u.ID] = u
	return u, nil
}

func (r *fakeUserRepo) UpsertUser(_ context.Context, params repository.UpsertUserParams) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, u := range r.s.users {
		if u.Email != params.Email {
			continue
		}
		if params.PasswordHash != "" {
			u.PasswordHash = params.PasswordHash
		}
		if len(params.Roles) > 0 {
			u.Roles = params.Roles
		}
		u.UpdatedAt = time.Now().UTC()
		r.s.users[id] = u
		return u, nil
	}

	roles := params.Roles
	if len(roles) == 0 {
		roles = models.DefaultRoles
	}
	now := time.Now().UTC()
	u := models.User{
		ID:           uuid.New(),
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.s.users[u.ID] = u
	return u, nil
}

func (r *fakeUserRepo) GetUserByIDOrEmail(_ context.Context, key string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.lookups++
	if r.s.getErr != nil {
		return models.User{}, r.s.getErr
	}

	for _, u := range r.s.users {
		if u.ID.String() == key || u.Email == key {
			return u, nil
		}
	}
	return models.User{}, apperrors.ErrUserNotFound
}

func (r *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.lookups++
	if r.s.getErr != nil {
		return models.User{}, r.s.getErr
	}

	for _, u := range r.s.users {
		if u.Username != nil && *u.Username == username {
			return u, nil
		}
	}
	return models.User{}, apperrors.ErrUserNotFound
}

func (r *fakeUserRepo) LockUser(_ context.Context, id uuid.UUID) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return u, apperrors.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) DeleteUser(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return uuid.Nil, apperrors.ErrUserNotFound
	}
	delete(r.s.users, id)
	return id, nil
}

var errCacheDown = errors.New("cache is down")

// Cache which fails chosen operations
type brokenCache struct {
	Cache
	failGet, failSet, failDelete bool
}

func (c *brokenCache) Get(ctx context.Context, key string) (models.User, error) {
	if c.failGet {
		return models.User{}, errCacheDown
	}
	return c.Cache.Get(ctx, key)
}

func (c *brokenCache) Set(ctx context.Context, user models.User, ttl time.Duration, keys ...string) error {
	if c.failSet {
		return errCacheDown
	}
	return c.Cache.Set(ctx, user, ttl, keys...)
}

func (c *brokenCache) Delete(ctx context.Context, keys ...string) error {
	if c.failDelete {
		return errCacheDown
	}
	return c.Cache.Delete(ctx, keys...)
}
