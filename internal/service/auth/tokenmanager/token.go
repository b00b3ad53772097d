package tokenmanager

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/repository"
)

const (
	defaultAccessTokenTTL = 15 * time.Minute
	defaultSigningMethod  = "HS256"

	// Refresh token random part length in bytes
	refreshTokenSize = 32
)

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID     `json:"id"`
	Email  string        `json:"email"`
	Roles  []models.Role `json:"roles"`
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign access token
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access token lifetime
	// If not set than default is used
	AccessTTL time.Duration

	// Refresh token lifetime
	// If not set refresh token lives one calendar month
	RefreshTTL time.Duration
}

type TokenManager struct {
	// Secret key to sign access token
	key string

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	accessTTL  time.Duration
	refreshTTL time.Duration

	refreshRepo repository.RefreshTokenRepo
}

func New(cfg Config, refreshRepo repository.RefreshTokenRepo) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	alg := jwt.GetSigningMethod(cfg.Alg)
	if _, ok := alg.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("signing method %q is not supported, use one of HS256, HS384, HS512", cfg.Alg)
	}

	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = defaultAccessTokenTTL
	}

	return &TokenManager{
		key:         cfg.SecretKey,
		alg:         alg,
		accessTTL:   cfg.AccessTTL,
		refreshTTL:  cfg.RefreshTTL,
		refreshRepo: refreshRepo,
	}, nil
}

func (m *TokenManager) refreshExpiresAt(now time.Time) time.Time {
	if m.refreshTTL == 0 {
		return now.AddDate(0, 1, 0)
	}
	return now.Add(m.refreshTTL)
}

// GeneratePair signs access token and issues refresh token for the user device
// Refresh token previously issued for the same device is replaced
func (m *TokenManager) GeneratePair(ctx context.Context, user models.User, userAgent string) (models.TokenPair, error) {
	var pair models.TokenPair
	now := time.Now().Truncate(time.Second)
	accessExpiresAt := now.Add(m.accessTTL)

	// Generate JWT access token decoded as string
	accessToken := jwt.NewWithClaims(
		m.alg,
		AccessTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(accessExpiresAt),
			},
			UserID: user.ID,
			Email:  user.Email,
			Roles:  user.Roles,
		},
	)
	access, err := accessToken.SignedString([]byte(m.key))
	if err != nil {
		return pair, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	refresh, err := newRefreshValue()
	if err != nil {
		return pair, err
	}

	saved, err := m.refreshRepo.IssueOrRotate(ctx, repository.IssueRefreshParams{
		UserID:    user.ID,
		UserAgent: userAgent,
		Token:     refresh,
		ExpiresAt: m.refreshExpiresAt(now),
	})
	if err != nil {
		return pair, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return models.TokenPair{
		Access:  models.IssuedToken{Value: models.BearerPrefix + access, ExpiresAt: accessExpiresAt},
		Refresh: models.IssuedToken{Value: saved.Token, ExpiresAt: saved.ExpiresAt},
	}, nil
}

// Generate random refresh token value, hex encoded
func newRefreshValue() (string, error) {
	b := make([]byte, refreshTokenSize)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("error while generate refresh token. Err: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Use token: delete it and return if it was not expired
// Token is gone even if expired, so it could not be used twice
func (m *TokenManager) UseRefresh(ctx context.Context, refresh string) (models.RefreshToken, error) {
	token, err := m.refreshRepo.Consume(ctx, refresh)
	if err != nil {
		return token, fmt.Errorf("error while using refresh token. Err: %w", err)
	}

	if token.IsExpired(time.Now()) {
		return token, fmt.Errorf("error while using refresh token. Err: %w", apperrors.ErrRefreshTokenExpired)
	}

	return token, nil
}

// Revoke token if it exists
func (m *TokenManager) RevokeRefresh(ctx context.Context, refresh string) error {
	if err := m.refreshRepo.Delete(ctx, refresh); err != nil {
		return fmt.Errorf("error while revoking refresh token. Err: %w", err)
	}
	return nil
}

// Live sessions of the user, one per device. Expired tokens are skipped
func (m *TokenManager) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	tokens, err := m.refreshRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error while listing refresh tokens. Err: %w", err)
	}

	now := time.Now()
	sessions := make([]models.Session, 0, len(tokens))
	for _, t := range tokens {
		if t.IsExpired(now) {
			continue
		}
		sessions = append(sessions, t.Session())
	}

	return sessions, nil
}

// Parse and validate access token given as "Bearer <jwt>"
func (m *TokenManager) ParseAccess(bearer string) (models.Principal, error) {
	var principal models.Principal

	access, ok := strings.CutPrefix(bearer, models.BearerPrefix)
	if !ok || access == "" {
		return principal, fmt.Errorf("%w: bearer prefix required", apperrors.ErrAccessTokenInvalid)
	}

	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(
		access,
		claims,
		func(t *jwt.Token) (any, error) {
			return []byte(m.key), nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return principal, fmt.Errorf("%w: %w", apperrors.ErrAccessTokenInvalid, err)
	}

	if claims.UserID == uuid.Nil {
		return principal, fmt.Errorf("%w: user id claim is empty", apperrors.ErrAccessTokenInvalid)
	}

	return models.Principal{
		ID:    claims.UserID,
		Email: claims.Email,
		Roles: claims.Roles,
	}, nil
}
