package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/maintenance-tracker/internal/apperr"
	"github.com/ukydev/maintenance-tracker/internal/auth"
	"github.com/ukydev/maintenance-tracker/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	UserContextKey contextKey = "user"
)

// SessionCookie carries the session token for browser clients
const SessionCookie = "session"

// SignInPath is where unauthenticated page requests are sent
const SignInPath = "/signin"

// AccountLookup loads the account behind a session
type AccountLookup interface {
	GetUser(ctx context.Context, id string) (models.PortalUser, error)
}

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	authService *auth.Service
	accounts    AccountLookup
}

// NewAuthMiddleware creates a new authentication middleware. When accounts
// is non-nil every session is checked against the stored account, so
// deactivated or deleted users lose access and role changes apply at once.
func NewAuthMiddleware(authService *auth.Service, accounts AccountLookup) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		accounts:    accounts,
	}
}

// Authenticate validates the session token from the session cookie or the
// Authorization header and adds the claims to the request context. API
// requests without a valid session get 401; page requests are redirected
// to the sign-in page.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip authentication for certain endpoints
		if shouldSkipAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := sessionToken(r)
		if token == "" {
			deny(w, r, "Authentication required")
			return
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			deny(w, r, "Invalid or expired session")
			return
		}

		if m.accounts != nil {
			user, err := m.accounts.GetUser(r.Context(), claims.UserID)
			switch {
			case apperr.KindOf(err) == apperr.KindNotFound:
				deny(w, r, "Invalid or expired session")
				return
			case err != nil:
				log.WithError(err).WithField("user_id", claims.UserID).Error("Failed to load session account")
				WriteError(w, http.StatusInternalServerError, "Internal server error")
				return
			case !user.Active():
				deny(w, r, "Invalid or expired session")
				return
			}
			claims.Email = user.Email()
			claims.Name = user.Name()
			claims.Role = user.Role()
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func deny(w http.ResponseWriter, r *http.Request, message string) {
	if IsAPIPath(r.URL.Path) {
		WriteError(w, http.StatusUnauthorized, message)
		return
	}
	http.Redirect(w, r, SignInPath, http.StatusSeeOther)
}

// IsAPIPath reports whether path belongs to the JSON API
func IsAPIPath(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

// RequireRole middleware checks if the user has the required role.
// Administrators pass every role check.
func (m *AuthMiddleware) RequireRole(requiredRole models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, "User context not found")
				return
			}

			if claims.Role != requiredRole && claims.Role != models.RoleAdmin {
				WriteError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext extracts user claims from request context
func GetUserFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*models.Claims)
	return claims, ok
}

// WithUser returns ctx carrying claims
func WithUser(ctx context.Context, claims *models.Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

var publicPaths = []string{
	"/health",
	"/metrics",
	"/signin",
	"/signup",
	"/signout",
	"/forgot-password",
	"/reset-password",
}

// shouldSkipAuth determines if authentication should be skipped for a given path
func shouldSkipAuth(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// WriteError writes the JSON error envelope
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": message})
}

// RateLimitMiddleware provides basic rate limiting
type RateLimitMiddleware struct {
	requests map[string][]time.Time // IP -> request times
	mu       sync.Mutex
	now      func() time.Time
}

// NewRateLimitMiddleware creates a new rate limiting middleware
func NewRateLimitMiddleware() *RateLimitMiddleware {
	return &RateLimitMiddleware{
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// RateLimit allows maxRequests per client IP within window
func (m *RateLimitMiddleware) RateLimit(maxRequests int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.allow(getClientIP(r), maxRequests, window) {
				WriteError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *RateLimitMiddleware) allow(clientIP string, maxRequests int, window time.Duration) bool {
	now := m.now()
	windowStart := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	recent := m.requests[clientIP][:0]
	for _, ts := range m.requests[clientIP] {
		if ts.After(windowStart) {
			recent = append(recent, ts)
		}
	}
	if len(recent) >= maxRequests {
		m.requests[clientIP] = recent
		return false
	}
	m.requests[clientIP] = append(recent, now)
	return true
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// Check for forwarded headers first
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	// Fall back to remote address
	ip := r.RemoteAddr
	if colonIndex := strings.LastIndex(ip, ":"); colonIndex != -1 {
		ip = ip[:colonIndex]
	}
	return ip
}
