package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	authdomain "github.com/equipqr/equipqr/internal/auth/domain"
	"github.com/equipqr/equipqr/internal/metrics"
	"github.com/equipqr/equipqr/internal/ratelimit"
	"github.com/equipqr/equipqr/internal/rbac"
	"github.com/equipqr/equipqr/internal/session"
)

const (
	ctxKeyToken    = "session_token"
	ctxKeySnapshot = "session_snapshot"

	sessionCookie = "equipqr_session"
)

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.WithLabelValues(
			route,
			c.Request.Method,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.Last().Error()))
			log.Warn("request failed", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}

// extractToken reads the session token from the Authorization header,
// falling back to the session cookie.
func extractToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return tok
		}
	}
	if tok, err := c.Cookie(sessionCookie); err == nil {
		return tok
	}
	return ""
}

// authenticated resolves the caller's session snapshot and stores it
// on the request context. Requests without a valid session are
// rejected. A user with no organizations yet still gets through with
// an empty snapshot so they can create or join one.
func (s *Server) authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortWithError(c, authdomain.ErrInvalidSession)
			return
		}
		snap, err := s.sessions.Resolve(c.Request.Context(), token)
		if errors.Is(err, session.ErrNoOrganizations) {
			_, user, authErr := s.auth.Authenticate(c.Request.Context(), token)
			if authErr != nil {
				abortWithError(c, authErr)
				return
			}
			snap = &session.Snapshot{SchemaVersion: session.SchemaVersion, UserID: user.ID}
		} else if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(ctxKeyToken, token)
		c.Set(ctxKeySnapshot, snap)
		c.Next()
	}
}

// requireOrgRole gates a route on the caller's role in their current
// organization. Must run after authenticated.
func requireOrgRole(required rbac.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := currentSnapshot(c)
		if snap == nil || !rbac.HasRolePermission(rbac.ParseRole(snap.CurrentRole), required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// rateLimited applies the per-IP token bucket. The limiter degrades
// open when redis is unavailable.
func rateLimited(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.Request.Context(), c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		c.Next()
	}
}

func currentSnapshot(c *gin.Context) *session.Snapshot {
	v, ok := c.Get(ctxKeySnapshot)
	if !ok {
		return nil
	}
	snap, _ := v.(*session.Snapshot)
	return snap
}

func currentToken(c *gin.Context) string {
	return c.GetString(ctxKeyToken)
}
