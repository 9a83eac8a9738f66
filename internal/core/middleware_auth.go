package core

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"microgrid/internal/types"
)

// operatorActorID identifies requests authenticated with the operator key.
const operatorActorID = "operator"

// OperatorAuth checks bearer keys against the configured bcrypt hash.
// A zero OperatorAuth has no key and rejects every bearer token.
type OperatorAuth struct {
	hash []byte
}

// NewOperatorAuth parses a bcrypt hash. An empty hash disables operator
// access.
func NewOperatorAuth(hash types.SecretString) (*OperatorAuth, error) {
	if !hash.IsSet() {
		return &OperatorAuth{}, nil
	}
	h := []byte(hash.Unmask())
	if _, err := bcrypt.Cost(h); err != nil {
		return nil, fmt.Errorf("OPERATOR_KEY_HASH is not a bcrypt hash: %w", err)
	}
	return &OperatorAuth{hash: h}, nil
}

// Enabled reports whether an operator key is configured.
func (a *OperatorAuth) Enabled() bool {
	return a != nil && len(a.hash) > 0
}

// Verify reports whether key matches the operator hash.
func (a *OperatorAuth) Verify(key string) bool {
	if !a.Enabled() || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(key)) == nil
}

// AuthMiddleware resolves the Actor for every request.
//
// Requests without an Authorization header proceed as anonymous actors keyed
// by client IP so the rate limiter can tell them apart. A bearer token must
// match the operator key; anything else is rejected with 401 rather than
// silently downgraded.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			actor := types.Actor{ID: clientIP(r), Type: types.ActorTypeAnonymous}
			next.ServeHTTP(w, r.WithContext(types.WithActor(r.Context(), actor)))
			return
		}

		token := extractBearerToken(header)
		if token == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Bearer token is required")
			return
		}
		if !s.Operator.Verify(token) {
			s.Logger.Warn("authentication failed: operator key mismatch",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_ip", clientIP(r)),
			)
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Invalid operator key")
			return
		}

		actor := types.Actor{ID: operatorActorID, Type: types.ActorTypeOperator}
		next.ServeHTTP(w, r.WithContext(types.WithActor(r.Context(), actor)))
	})
}

// RequireOperator rejects requests that did not present the operator key.
func (s *Server) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := types.GetActor(r.Context())
		if !ok || !actor.IsOperator() {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Operator key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractBearerToken returns the token from "Bearer <token>", matching the
// scheme case-insensitively. It returns "" for any other format.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}

// clientIP strips the port from RemoteAddr. RealIP has already replaced
// RemoteAddr with the forwarded address when one was supplied.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	Error(w, r, types.NewAppError(code, message, nil))
}
