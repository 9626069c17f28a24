package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "tradegate/pkg/domain"
	"tradegate/pkg/requestcontext"
)

// TokenValidator validates bearer tokens issued by the external identity
// provider.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims are the identity claims this service consumes.
type Claims struct {
	Subject string
	Email   string
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth rejects requests without a valid bearer token and stores the
// user id and email claims in the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			userID, err := id.ParseUserID(claims.Subject)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed subject",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid token subject")
				return
			}

			ctx = requestcontext.WithUserID(ctx, userID)
			ctx = requestcontext.WithEmail(ctx, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithClaims is a test helper that injects claims without a token.
func WithClaims(ctx context.Context, userID id.UserID, email string) context.Context {
	ctx = requestcontext.WithUserID(ctx, userID)
	return requestcontext.WithEmail(ctx, email)
}
