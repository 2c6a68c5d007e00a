package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"promocode-service/internal/auth"
)

type contextKey string

// claimsKey carries the verified token claims through the request context.
const claimsKey contextKey = "auth.claims"

// ClaimsFromContext returns the verified claims of the acting user.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}

// extractBearer pulls the token out of an Authorization header.
func extractBearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// RequireAuth verifies the bearer token and stores its claims in the
// request context.
func RequireAuth(tm *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearer(r.Header.Get("Authorization"))
			if tokenString == "" {
				respondError(w, http.StatusUnauthorized, "missing bearer token", nil)
				return
			}
			claims, err := tm.Verify(tokenString)
			if err != nil {
				log.Debug().Err(err).Msg("Token verification failed")
				respondError(w, http.StatusUnauthorized, "invalid token", nil)
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose verified claims carry a different
// role. Must run after RequireAuth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				respondError(w, http.StatusUnauthorized, "missing bearer token", nil)
				return
			}
			if claims.Role != role {
				log.Warn().
					Int64("user_id", claims.UserID).
					Str("role", claims.Role).
					Str("required", role).
					Msg("Role check failed")
				respondError(w, http.StatusForbidden, "access denied", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserRateLimiter limits requests per authenticated user. Limiters are
// created lazily per user and dropped after an idle period.
type UserRateLimiter struct {
	perMinute float64
	burst     int

	mu       sync.Mutex
	visitors map[int64]*rate.Limiter
}

// NewUserRateLimiter creates a new UserRateLimiter instance.
func NewUserRateLimiter(perMinute float64, burst int) *UserRateLimiter {
	if perMinute <= 0 {
		perMinute = 5
	}
	if burst < 1 {
		burst = 1
	}
	return &UserRateLimiter{
		perMinute: perMinute,
		burst:     burst,
		visitors:  make(map[int64]*rate.Limiter),
	}
}

func (rl *UserRateLimiter) limiter(userID int64) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if lim, ok := rl.visitors[userID]; ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Limit(rl.perMinute/60.0), rl.burst)
	rl.visitors[userID] = lim
	go rl.cleanup(userID)
	return lim
}

func (rl *UserRateLimiter) cleanup(userID int64) {
	time.Sleep(10 * time.Minute)
	rl.mu.Lock()
	delete(rl.visitors, userID)
	rl.mu.Unlock()
}

// Middleware enforces the limit for the authenticated user. Must run after
// RequireAuth.
func (rl *UserRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, "missing bearer token", nil)
			return
		}
		if !rl.limiter(claims.UserID).Allow() {
			respondError(w, http.StatusTooManyRequests, "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs each request with method, path, status and duration.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
