package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/model"
)

// contextKey is an unexported type used for context keys in this package,
// so no other package can read or shadow the authenticated user.
type contextKey string

const userKey contextKey = "user"

// UserLookup loads the user named by a token's subject.
// repository.UserRepository satisfies it.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads "Authorization: Bearer <access token>", validates the token,
// loads the user, and stores the user in the request context. A missing,
// invalid, or expired token, or a deleted or inactive user, ends the
// request with 401 Unauthorized. A failure to load the user is logged and
// answered with 500.
func RequireAuth(tokens *TokenService, users UserLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := authenticate(r, tokens, users)
			switch {
			case isTokenError(err):
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}` + "\n"))
				return
			case err != nil:
				logger.Error("authentication failed", slog.String("error", err.Error()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal_error","message":"an internal error occurred"}` + "\n"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext retrieves the authenticated user from the request context.
// Returns (nil, false) outside a RequireAuth-protected route.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func authenticate(r *http.Request, tokens *TokenService, users UserLookup) (*model.User, error) {
	raw, ok := BearerToken(r)
	if !ok {
		return nil, ErrTokenInvalid
	}

	claims, err := tokens.ValidateAccess(raw)
	if err != nil {
		return nil, err
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	user, err := users.GetByID(r.Context(), userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("loading user %d: %w", userID, err)
	}
	if !user.IsActive {
		return nil, ErrTokenInvalid
	}

	return user, nil
}

func isTokenError(err error) bool {
	return errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrWrongTokenType)
}
