package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/repository"
	"github.com/nkiryanov/authkeeper/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authkeeper/internal/service/user"
)

// Interface to check user provided password against stored hash
type PasswordVerifier interface {
	// Must be protected against timing attacks
	Verify(password string, hashedPassword string) bool
}

// Users as auth service sees them
type UserStore interface {
	FindOne(ctx context.Context, key string, forceRefresh bool) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	Create(ctx context.Context, params user.CreateParams) (models.User, error)
}

type AuthServiceConfig struct {
	Token tokenmanager.Config

	// Verifier used on login. Default is BcryptHasher
	Verifier PasswordVerifier
}

type RegisterParams struct {
	Email    string
	Username string // optional
	Password string
	Profile  models.Profile
}

// Auth service
type AuthService struct {
	// Manager to issue token pairs (access and refresh)
	tokens *tokenmanager.TokenManager

	verifier PasswordVerifier
	users    UserStore
	logger   logger.Logger
}

func NewAuthService(cfg AuthServiceConfig, users UserStore, refreshRepo repository.RefreshTokenRepo, l logger.Logger) (*AuthService, error) {
	if users == nil || refreshRepo == nil {
		return nil, errors.New("user store and refresh repo must not be nil")
	}

	verifier := cfg.Verifier
	if verifier == nil {
		verifier = BcryptHasher{}
	}

	if l == nil {
		l = logger.NewNoOpLogger()
	}

	tokens, err := tokenmanager.New(cfg.Token, refreshRepo)
	if err != nil {
		return nil, fmt.Errorf("can't create token manager. Err: %w", err)
	}

	return &AuthService{
		tokens:   tokens,
		verifier: verifier,
		users:    users,
		logger:   l.WithGroup("auth_service"),
	}, nil
}

// Register creates user if neither email nor username is taken
// Errors while checking for duplicates are logged and ignored: store unique constraints still reject duplicates
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (models.User, error) {
	if s.exists(ctx, "email", func() error {
		_, err := s.users.FindOne(ctx, params.Email, false)
		return err
	}) {
		return models.User{}, apperrors.ErrEmailTaken
	}

	var username *string
	if params.Username != "" {
		username = &params.Username

		if s.exists(ctx, "username", func() error {
			_, err := s.users.FindByUsername(ctx, params.Username)
			return err
		}) {
			return models.User{}, apperrors.ErrUsernameTaken
		}
	}

	u, err := s.users.Create(ctx, user.CreateParams{
		Email:    params.Email,
		Username: username,
		Profile:  params.Profile,
		Password: params.Password,
	})
	if err != nil {
		return u, fmt.Errorf("can't register user. Err: %w", err)
	}

	return u, nil
}

// Report whether lookup found something. Lookup failures count as not found
func (s *AuthService) exists(ctx context.Context, field string, lookup func() error) bool {
	err := lookup()
	switch {
	case err == nil:
		return true
	case errors.Is(err, apperrors.ErrUserNotFound):
		return false
	default:
		s.logger.Error("duplicate check failed, continue registration", "field", field, "error", err)
		return false
	}
}

// Login checks credentials and issues token pair for the user device
// Unknown email and wrong password are indistinguishable for the caller
func (s *AuthService) Login(ctx context.Context, email string, password string, userAgent string) (models.TokenPair, error) {
	u, err := s.users.FindOne(ctx, email, true)
	if err != nil {
		if !errors.Is(err, apperrors.ErrUserNotFound) {
			s.logger.Error("user lookup failed on login", "error", err)
		}
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	if !s.verifier.Verify(password, u.PasswordHash) {
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	return s.issueTokens(ctx, u, userAgent)
}

// Refresh exchanges refresh token for a new pair
// The token could be exchanged only once
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, userAgent string) (models.TokenPair, error) {
	if refreshToken == "" {
		return models.TokenPair{}, apperrors.ErrRefreshTokenNotFound
	}

	token, err := s.tokens.UseRefresh(ctx, refreshToken)
	if err != nil {
		return models.TokenPair{}, err
	}

	u, err := s.users.FindOne(ctx, token.UserID.String(), false)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.TokenPair{}, fmt.Errorf("%w: token owner not found", apperrors.ErrUnauthorized)
	case err != nil:
		return models.TokenPair{}, fmt.Errorf("can't refresh tokens. Err: %w", err)
	}

	return s.issueTokens(ctx, u, userAgent)
}

func (s *AuthService) issueTokens(ctx context.Context, u models.User, userAgent string) (models.TokenPair, error) {
	pair, err := s.tokens.GeneratePair(ctx, u, userAgent)
	if err != nil {
		return pair, fmt.Errorf("token could not generated, sorry. %w", err)
	}
	return pair, nil
}

// Logout revokes refresh token. Empty or unknown token is fine
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.tokens.RevokeRefresh(ctx, refreshToken)
}

// Sessions lists devices the principal is logged in from
func (s *AuthService) Sessions(ctx context.Context, principal models.Principal) ([]models.Session, error) {
	return s.tokens.ListSessions(ctx, principal.ID)
}

// Authenticate verifies access token ("Bearer <jwt>") without store lookups
func (s *AuthService) Authenticate(_ context.Context, bearer string) (models.Principal, error) {
	return s.tokens.ParseAccess(bearer)
}

func AuthorizeSelfOrRole(principal models.Principal, targetID uuid.UUID, role models.Role) bool {
	return principal.IsSelfOrHasRole(targetID, role)
}
