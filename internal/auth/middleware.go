package auth

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
)

type contextKey string

const (
	ViewerContextKey contextKey = "viewer"
	CookieName       string     = "navtel_token"
)

// Middleware handles authentication for protected routes
type Middleware struct {
	jwtManager *JWTManager
	limiter    *FailureLimiter
	logger     *slog.Logger
}

// NewMiddleware creates new auth middleware. limiter may be nil.
func NewMiddleware(jwtManager *JWTManager, limiter *FailureLimiter, logger *slog.Logger) *Middleware {
	return &Middleware{
		jwtManager: jwtManager,
		limiter:    limiter,
		logger:     logger.With("component", "auth"),
	}
}

// RequireAuth accepts a bearer token, or the token cookie. Clients that keep
// presenting bad tokens are blocked for a while.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if m.limiter != nil {
			if ok, retry := m.limiter.Allow(ip); !ok {
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
		}

		token := tokenFromRequest(r)
		if token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			if m.limiter != nil {
				m.limiter.RecordFailure(ip)
			}
			m.logger.Warn("Rejected token", "ip", ip, "error", err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := SetViewerContext(r.Context(), &Viewer{Name: claims.Viewer, Scope: claims.Scope})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// GetViewerFromContext extracts the viewer from request context
func GetViewerFromContext(ctx context.Context) *Viewer {
	viewer, ok := ctx.Value(ViewerContextKey).(*Viewer)
	if !ok {
		return nil
	}
	return viewer
}

// SetViewerContext adds viewer to context
func SetViewerContext(ctx context.Context, viewer *Viewer) context.Context {
	return context.WithValue(ctx, ViewerContextKey, viewer)
}

// ClientIP extracts client IP from request, considering reverse proxy headers
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
