package middleware

import (
	"context"
	"net/http"

	"github.com/nkiryanov/authkeeper/internal/handlers/render"
	"github.com/nkiryanov/authkeeper/internal/handlers/userctx"
	"github.com/nkiryanov/authkeeper/internal/models"
)

type authenticator interface {
	// Verify "Bearer <jwt>" value
	Authenticate(ctx context.Context, bearer string) (models.Principal, error)
}

// AuthMiddleware rejects requests without valid Authorization header
// Authenticated principal is put into request context, see userctx.FromContext
func AuthMiddleware(a authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := userctx.New(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
