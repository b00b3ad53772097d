package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/handlers/render"
	"github.com/nkiryanov/authkeeper/internal/logger"
)

// Render service error by its kind
// Unknown errors are logged and hidden behind 500
func renderServiceError(w http.ResponseWriter, err error, l logger.Logger) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		render.ServiceError(w, "Invalid email or password", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrUnauthorized):
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrForbidden):
		render.ServiceError(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, apperrors.ErrNotFound):
		render.ServiceError(w, "Not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrConflict):
		render.ServiceError(w, conflictMessage(err), http.StatusConflict)
	default:
		l.Error("request failed", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrUsernameTaken):
		return "User with this username already exists"
	default:
		return "User with this email already exists"
	}
}
