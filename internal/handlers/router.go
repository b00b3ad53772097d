package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/handlers/middleware"
	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/service/auth"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type RouterConfig struct {
	// Set Secure flag on refresh token cookie (production)
	SecureCookie bool
}

func NewRouter(
	cfg RouterConfig,
	authService authService,
	userService userService,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService)
	cookies := refreshCookies{secure: cfg.SecureCookie}

	apiauth := http.NewServeMux()
	apiauth.Handle("POST /register", handleRegister(authService, logger))
	apiauth.Handle("POST /login", handleLogin(authService, cookies, logger))
	apiauth.Handle("GET /refresh-tokens", handleRefresh(authService, cookies, logger))
	apiauth.Handle("GET /logout", handleLogout(authService, cookies, logger))
	apiauth.Handle("GET /sessions", withAuth(handleListSessions(authService, logger)))

	apiuser := http.NewServeMux()
	apiuser.Handle("GET /{idOrEmail}", withAuth(handleFindUser(userService, logger)))
	apiuser.Handle("DELETE /{id}", withAuth(handleDeleteUser(userService, logger)))

	root := http.NewServeMux()
	root.Handle("/auth/", http.StripPrefix("/auth", apiauth))
	root.Handle("/user/", http.StripPrefix("/user", apiuser))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Register user with email, optional username and password
	// Has to return apperrors.ErrEmailTaken or apperrors.ErrUsernameTaken if user already exists
	Register(ctx context.Context, params auth.RegisterParams) (models.User, error)

	// Has to return apperrors.ErrInvalidCredentials if user not found or password is wrong
	Login(ctx context.Context, email string, password string, userAgent string) (models.TokenPair, error)

	// Exchange refresh token for a new pair
	// Has to return error of apperrors.ErrUnauthorized kind if token is not usable
	Refresh(ctx context.Context, refreshToken string, userAgent string) (models.TokenPair, error)

	Logout(ctx context.Context, refreshToken string) error

	// Live sessions (devices) of the principal
	Sessions(ctx context.Context, principal models.Principal) ([]models.Session, error)

	Authenticate(ctx context.Context, bearer string) (models.Principal, error)
}

type userService interface {
	FindOne(ctx context.Context, key string, forceRefresh bool) (models.User, error)

	// Has to return apperrors.ErrForbidden if principal may not delete the user
	DeleteAs(ctx context.Context, principal models.Principal, id uuid.UUID) (uuid.UUID, error)
}
