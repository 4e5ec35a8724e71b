package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/bookwormapp/bookworm/internal/domain"
	domainerrors "github.com/bookwormapp/bookworm/internal/errors"
	"github.com/bookwormapp/bookworm/internal/service"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

const (
	userKey      ctxKey = "user"
	authErrorKey ctxKey = "authError"
)

// RequireUser returns the user resolved by authMiddleware. Without a bearer
// token the error is "Unauthorized"; with a rejected one it is the reason
// the token was rejected.
func RequireUser(ctx context.Context) (*domain.User, error) {
	if user, ok := ctx.Value(userKey).(*domain.User); ok && user != nil {
		return user, nil
	}
	if err, ok := ctx.Value(authErrorKey).(error); ok {
		return nil, err
	}
	return nil, domainerrors.Unauthorized("Unauthorized")
}

// authMiddleware resolves a Bearer token to its user and stores it in context.
// Requests without a valid token continue anonymously; handlers that need a
// user call RequireUser.
func authMiddleware(auth *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			user, err := auth.Authenticate(ctx, token)
			if err != nil {
				ctx = context.WithValue(ctx, authErrorKey, err)
			} else {
				ctx = context.WithValue(ctx, userKey, user)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
