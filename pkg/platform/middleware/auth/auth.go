package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	request "qrcall/pkg/platform/middleware/request"
)

// Token audiences.
const (
	AudienceOwner  = "owner"
	AudienceCaller = "caller"
)

// JWTValidator validates bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims is what handlers need from a validated token. Owner tokens carry
// UserID; caller tokens carry the CallID they were issued for.
type JWTClaims struct {
	UserID   string
	CallID   string
	Audience string
}

func (c *JWTClaims) IsOwner() bool {
	return c != nil && c.Audience == AudienceOwner && c.UserID != ""
}

func (c *JWTClaims) IsCaller() bool {
	return c != nil && c.Audience == AudienceCaller && c.CallID != ""
}

type contextKeyClaims struct{}

// ContextKeyUserID is exported for tests that inject an owner identity directly.
type contextKeyUserID struct{}

var ContextKeyUserID = contextKeyUserID{}

func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(ContextKeyUserID).(string); ok {
		return userID
	}
	return ""
}

// GetClaims returns the validated claims, or nil for anonymous requests.
func GetClaims(ctx context.Context) *JWTClaims {
	claims, _ := ctx.Value(contextKeyClaims{}).(*JWTClaims)
	return claims
}

// WithClaims stores claims and, for owner tokens, the user id.
func WithClaims(ctx context.Context, claims *JWTClaims) context.Context {
	ctx = context.WithValue(ctx, contextKeyClaims{}, claims)
	if claims.IsOwner() {
		ctx = context.WithValue(ctx, ContextKeyUserID, claims.UserID)
	}
	return ctx
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth admits only requests carrying a valid owner token.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, ok := BearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token", "request_id", requestID)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil || !claims.IsOwner() {
				logger.WarnContext(ctx, "unauthorized access - invalid token", "request_id", requestID, "error", err)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}

// OptionalAuth attaches claims when a bearer token is present. A present but
// invalid token is still rejected.
func OptionalAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"request_id", request.GetRequestID(ctx), "error", err)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}
