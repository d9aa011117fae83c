package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"relun-backend/internal/services"

	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	claimsKey contextKey = "claims"
)

// Authenticator validates access tokens
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*services.Claims, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthMiddleware rejects requests without a valid access token and stores
// the caller's id and claims in the request context
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				respondError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}
			token := BearerToken(r)
			if token == "" {
				respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				status, msg := authFailure(err)
				if status >= http.StatusInternalServerError {
					log.Error().Err(err).Msg("Failed to authenticate request")
				}
				respondError(w, msg, status)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func authFailure(err error) (int, string) {
	var svcErr *services.Error
	msg := "Invalid token"
	if errors.As(err, &svcErr) {
		msg = svcErr.Public()
	}
	switch {
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, msg
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized, msg
	default:
		return http.StatusServiceUnavailable, "Service unavailable"
	}
}

// WithClaims returns a context carrying the authenticated caller
func WithClaims(ctx context.Context, claims *services.Claims) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	return context.WithValue(ctx, userIDKey, claims.UserID)
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetClaims extracts the access token claims from context
func GetClaims(ctx context.Context) *services.Claims {
	claims, _ := ctx.Value(claimsKey).(*services.Claims)
	return claims
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
