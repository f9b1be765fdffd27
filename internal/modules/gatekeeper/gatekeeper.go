// Package gatekeeper guards routes with the x-auth-token header.
package gatekeeper

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"authapi/internal/modules/respond"
	"authapi/internal/modules/tokens"
)

const (
	TokenHeader = "x-auth-token"

	MsgNoToken      = "Access denied. No token provided."
	MsgInvalidToken = "Invalid token."
	MsgWelcome      = "Welcome to the private dashboard!"
)

// Reason explains why a request was turned away.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonMissingToken Reason = "MissingToken"
	ReasonInvalidToken Reason = "InvalidToken"
)

type Verifier interface {
	Verify(token string) tokens.Verification
}

type contextKey struct{}

// ClaimsFromContext returns the claims attached by Middleware.
func ClaimsFromContext(ctx context.Context) (*tokens.Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*tokens.Claims)
	return claims, ok && claims != nil
}

func withClaims(ctx context.Context, claims *tokens.Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// Authenticate checks a raw header value. Claims are non-nil only when the
// reason is ReasonNone. An expired token is an InvalidToken like a malformed one.
func Authenticate(verifier Verifier, raw string) (tokens.Verification, Reason) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return tokens.Verification{}, ReasonMissingToken
	}

	v := verifier.Verify(raw)
	if !v.Valid() {
		return v, ReasonInvalidToken
	}
	return v, ReasonNone
}

// Middleware rejects requests without a valid token.
func Middleware(verifier Verifier, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v, reason := Authenticate(verifier, r.Header.Get(TokenHeader))
			if reason == ReasonNone {
				next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), v.Claims)))
				return
			}

			fields := []zap.Field{
				zap.String("path", r.URL.Path),
				zap.String("reason", string(reason)),
			}
			if reason == ReasonMissingToken {
				logger.Debug("Token rejected", fields...)
				respond.Error(w, http.StatusUnauthorized, MsgNoToken)
				return
			}

			logger.Debug("Token rejected", append(fields,
				zap.Stringer("status", v.Status),
				zap.Error(v.Err))...)
			respond.Error(w, http.StatusBadRequest, MsgInvalidToken)
		})
	}
}

type privateResponse struct {
	Message string         `json:"message"`
	User    *tokens.Claims `json:"user"`
}

// PrivateHandler serves the protected dashboard greeting.
func PrivateHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, MsgNoToken)
		return
	}
	respond.JSON(w, http.StatusOK, privateResponse{Message: MsgWelcome, User: claims})
}
