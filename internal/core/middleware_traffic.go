package core

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"microgrid/internal/types"
)

// rateLimitWindow is the fixed window the per-actor limit applies to.
const rateLimitWindow = time.Minute

// RateLimit enforces RATE_LIMIT_PER_MINUTE per actor. Anonymous callers are
// keyed by client IP; the operator shares a single key.
//
// With no store configured, or a limit of zero, the middleware passes
// through. On store errors it fails open and logs, so a Redis outage never
// blocks the API.
//
// Every counted response carries X-RateLimit-Limit, X-RateLimit-Remaining
// and X-RateLimit-Reset. A 429 also carries Retry-After.
func (s *Server) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := s.rateLimit()
		if s.RateLimitStore == nil || limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		actor, ok := types.GetActor(r.Context())
		if !ok || actor.ID == "" {
			next.ServeHTTP(w, r)
			return
		}
		key := string(actor.Type) + ":" + actor.ID

		result, err := s.RateLimitStore.IncrementAndCheck(r.Context(), key, limit, rateLimitWindow)
		if err != nil {
			s.Logger.Error("rate limit store error",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			next.ServeHTTP(w, r)
			return
		}

		setRateLimitHeaders(w, limit, result)

		if !result.Allowed {
			s.Logger.Warn("rate limit exceeded",
				slog.String("key", key),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			Error(w, r, types.NewAppError(types.ErrCodeRateLimit, "Rate limit exceeded. Please retry after the reset time.", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit() int {
	if s.Config == nil {
		return 0
	}
	return s.Config.Server.RateLimitPerMin
}

// setRateLimitHeaders writes the standard X-RateLimit-* headers to the response.
func setRateLimitHeaders(w http.ResponseWriter, limit int, result RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
