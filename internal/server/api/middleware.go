package api

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"chemflow/internal/server/database"
	"chemflow/internal/server/service"
)

// ctxUserKey is the echo context key holding the authenticated user.
const ctxUserKey = "auth.user"

// AuthMiddleware resolves bearer credentials to accounts.
type AuthMiddleware struct {
	auth     *service.AuthService
	required bool
}

// NewAuthMiddleware creates the bearer-auth middleware. required
// controls whether the dataset surface demands a credential
// (multi-tenant mode) or admits anonymous callers (single-tenant mode).
func NewAuthMiddleware(auth *service.AuthService, required bool) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, required: required}
}

// Require rejects the request with Unauthorized unless it carries a
// valid bearer credential. No service operation is attempted on failure.
func (m *AuthMiddleware) Require(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := bearerKey(c.Request().Header.Get("Authorization"))
		user, err := m.auth.Authenticate(c.Request().Context(), key)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error": "authentication credentials were not provided or are invalid",
			})
		}
		c.Set(ctxUserKey, user)
		return next(c)
	}
}

// Scoped behaves like Require in multi-tenant mode. In single-tenant
// mode anonymous requests pass through unowned, though a presented
// credential is still resolved so uploads get attributed.
func (m *AuthMiddleware) Scoped(next echo.HandlerFunc) echo.HandlerFunc {
	if m.required {
		return m.Require(next)
	}
	return func(c echo.Context) error {
		if key := bearerKey(c.Request().Header.Get("Authorization")); key != "" {
			if user, err := m.auth.Authenticate(c.Request().Context(), key); err == nil {
				c.Set(ctxUserKey, user)
			}
		}
		return next(c)
	}
}

// bearerKey extracts the token key from an Authorization header.
// Both "Token <key>" and "Bearer <key>" schemes are accepted.
func bearerKey(header string) string {
	for _, scheme := range []string{"Token ", "Bearer "} {
		if strings.HasPrefix(header, scheme) {
			return strings.TrimSpace(header[len(scheme):])
		}
	}
	return ""
}

// currentOwner returns the authenticated user's id, or nil for
// anonymous requests on the single-tenant surface.
func currentOwner(c echo.Context) *uuid.UUID {
	user, ok := c.Get(ctxUserKey).(*database.User)
	if !ok || user == nil {
		return nil
	}
	id := user.ID
	return &id
}

// visitor tracks the rate limit state for a single IP.
type visitor struct {
	tokens    float64
	lastCheck time.Time
}

// RateLimiter is a per-IP token-bucket rate limiter.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     float64 // tokens per second
	burst    int     // max tokens
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a rate limiter with the given rate (requests/sec) and burst size.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rps,
		burst:    burst,
		stop:     make(chan struct{}),
	}

	// Clean up stale entries every 5 minutes
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.cleanup()
			case <-rl.stop:
				return
			}
		}
	}()

	return rl
}

// Stop terminates the background cleanup goroutine. Safe to call more
// than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Middleware returns an echo middleware function that enforces rate limits.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !rl.allow(ip) {
				slog.Warn("rate limit exceeded", "ip", ip)
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "rate limit exceeded, try again later",
				})
			}
			return next(c)
		}
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	now := time.Now()

	if !exists {
		rl.visitors[ip] = &visitor{
			tokens:    float64(rl.burst) - 1,
			lastCheck: now,
		}
		return true
	}

	// Add tokens based on elapsed time
	elapsed := now.Sub(v.lastCheck).Seconds()
	v.tokens += elapsed * rl.rate
	if v.tokens > float64(rl.burst) {
		v.tokens = float64(rl.burst)
	}
	v.lastCheck = now

	if v.tokens < 1 {
		return false
	}

	v.tokens--
	return true
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, v := range rl.visitors {
		if v.lastCheck.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

// RequestLogger returns an echo middleware that logs requests using slog.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			slog.Info("request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"latency_ms", time.Since(start).Milliseconds(),
				"ip", c.RealIP(),
				"user_agent", req.UserAgent(),
				"bytes_out", res.Size,
			)

			return err
		}
	}
}
