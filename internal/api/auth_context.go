package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/stickynotes/stickynotes-server/internal/auth"
	"github.com/stickynotes/stickynotes-server/internal/domain"
	domainerrors "github.com/stickynotes/stickynotes-server/internal/errors"
	"github.com/stickynotes/stickynotes-server/internal/service"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// userKey is the context key for the authenticated user.
const userKey ctxKey = "user"

// UserFromContext returns the user whose token authenticated the request, or
// nil.
func UserFromContext(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userKey).(*domain.User)
	return u
}

// WithUser stores user in ctx.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// RequestIdentity resolves the storage facade's current user from the
// request context.
var RequestIdentity service.Identity = service.IdentityFunc(UserFromContext)

// requireUser returns the authenticated user or a 401.
func requireUser(ctx context.Context) (*domain.User, error) {
	u := UserFromContext(ctx)
	if u == nil {
		return nil, domainerrors.Unauthenticated("authentication required")
	}
	return u, nil
}

// authMiddleware validates Bearer tokens and stores the user in context.
// Requests without a valid token continue anonymously; operations that need a
// user reject them.
func authMiddleware(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || tokens == nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.Verify(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.User())))
		})
	}
}
