package handlers

import (
	"net/http"
	"time"

	"github.com/nkiryanov/authkeeper/internal/handlers/render"
	"github.com/nkiryanov/authkeeper/internal/handlers/userctx"
	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/service/auth"
)

const refreshCookieName = "refreshtoken"

type refreshCookies struct {
	secure bool
}

func (c refreshCookies) set(w http.ResponseWriter, token models.IssuedToken) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token.Value,
		Path:     "/",
		Expires:  token.ExpiresAt,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c refreshCookies) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Empty string if cookie not set
func (c refreshCookies) get(r *http.Request) string {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// Set refresh cookie and render access token
func renderTokenPair(w http.ResponseWriter, cookies refreshCookies, pair models.TokenPair) {
	cookies.set(w, pair.Refresh)
	render.Created(w, tokenResponse{AccessToken: pair.Access.Value})
}

func handleRegister(authService authService, logger logger.Logger) http.Handler {
	type request struct {
		Email          string `json:"email" validate:"required,email"`
		Username       string `json:"username" validate:"omitempty,min=2,max=50"`
		Password       string `json:"password" validate:"required,min=6"`
		PasswordRepeat string `json:"passwordRepeat" validate:"required,eqfield=Password"`
		FirstName      string `json:"firstname" validate:"omitempty,max=100"`
		LastName       string `json:"lastname" validate:"omitempty,max=100"`
		ImageURL       string `json:"imageUrl" validate:"omitempty,url"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, err := authService.Register(r.Context(), auth.RegisterParams{
			Email:    data.Email,
			Username: data.Username,
			Password: data.Password,
			Profile: models.Profile{
				FirstName: optional(data.FirstName),
				LastName:  optional(data.LastName),
				ImageURL:  optional(data.ImageURL),
			},
		})
		if err != nil {
			renderServiceError(w, err, logger)
			return
		}

		render.Created(w, models.ToPublicView(user))
	})
}

func handleLogin(authService authService, cookies refreshCookies, logger logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.Login(r.Context(), data.Email, data.Password, r.UserAgent())
		if err != nil {
			renderServiceError(w, err, logger)
			return
		}

		renderTokenPair(w, cookies, pair)
	})
}

func handleRefresh(authService authService, cookies refreshCookies, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh := cookies.get(r)
		if refresh == "" {
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			return
		}

		pair, err := authService.Refresh(r.Context(), refresh, r.UserAgent())
		if err != nil {
			renderServiceError(w, err, logger)
			return
		}

		renderTokenPair(w, cookies, pair)
	})
}

func handleLogout(authService authService, cookies refreshCookies, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh := cookies.get(r)
		if refresh == "" {
			w.WriteHeader(http.StatusOK)
			return
		}

		// Logout always succeeds for the client, revocation failures are only logged
		if err := authService.Logout(r.Context(), refresh); err != nil {
			logger.Error("refresh token revocation failed", "error", err)
		}

		cookies.clear(w)
		w.WriteHeader(http.StatusOK)
	})
}

func handleListSessions(authService authService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Always set by auth middleware
		principal, _ := userctx.FromContext(r.Context())

		sessions, err := authService.Sessions(r.Context(), principal)
		if err != nil {
			renderServiceError(w, err, logger)
			return
		}

		render.JSON(w, sessions)
	})
}

// nil for empty string
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
