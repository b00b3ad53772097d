package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/handlers/render"
	"github.com/nkiryanov/authkeeper/internal/handlers/userctx"
	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/models"
)

func handleFindUser(userService userService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := userService.FindOne(r.Context(), r.PathValue("idOrEmail"), false)
		if err != nil {
			renderServiceError(w, err, logger)
			return
		}

		render.JSON(w, models.ToPublicView(user))
	})
}

func handleDeleteUser(userService userService, logger logger.Logger) http.Handler {
	type response struct {
		ID uuid.UUID `json:"id"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Not found", http.StatusNotFound)
			return
		}

		// Always set by auth middleware
		principal, _ := userctx.FromContext(r.Context())

		deleted, err := userService.DeleteAs(r.Context(), principal, id)
		if err != nil {
			renderServiceError(w, err, logger)
			return
		}

		render.JSON(w, response{ID: deleted})
	})
}
