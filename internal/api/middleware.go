package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/Armour007/grc-backend/internal/grc"
	"github.com/Armour007/grc-backend/internal/repository"
	"github.com/Armour007/grc-backend/pkg/logger"
)

// Context keys set by the middleware chain.
const (
	ctxUserID    = "userID"
	ctxUser      = "user"
	ctxRequestID = "requestID"
)

type requestIDKey struct{}

// AuthMiddleware verifies the bearer token and loads the live user it names.
// The role used by RequireRoles comes from the user record, not from the token.
func (s *Server) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			recordAuthFailure("token_missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authorized, no token"})
			return
		}

		// Check if the header format is "Bearer token"
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			recordAuthFailure("token_malformed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		userID, _, err := s.tokens.Parse(parts[1])
		if err != nil {
			recordAuthFailure("token_invalid")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authorized, token failed"})
			return
		}

		st, err := s.store()
		if err != nil {
			s.abortError(c, err)
			return
		}
		user, err := st.Users().Get(c.Request.Context(), userID)
		if errors.Is(err, repository.ErrNotFound) {
			recordAuthFailure("user_missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authorized, user not found"})
			return
		}
		if err != nil {
			s.abortError(c, err)
			return
		}

		c.Set(ctxUserID, user.ID.String())
		c.Set(ctxUser, user)
		c.Next()
	}
}

// RequireRoles rejects users whose role is outside set. It must run after AuthMiddleware.
func RequireRoles(set grc.RoleSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := currentUser(c)
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authorized"})
			return
		}
		if !grc.Allowed(u.Role, set) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": fmt.Sprintf("User role %s is not authorized to access this route", u.Role)})
			return
		}
		c.Next()
	}
}

// RequestIDMiddleware ensures every request has an X-Request-ID. If absent, generate one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.New().String()
		}
		ctx := context.WithValue(c.Request.Context(), requestIDKey{}, rid)
		c.Request = c.Request.WithContext(ctx)
		c.Set(ctxRequestID, rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

// RequestLogger logs one line per request once the handler chain has finished.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		} else if status >= http.StatusBadRequest {
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("duration", time.Since(start)).
			Str("request_id", c.GetString(ctxRequestID)).
			Msg("request completed")
	}
}

// Simple in-memory IP rate limiter (fixed window)
type clientWindow struct {
	count       int
	windowStart time.Time
}

type ipLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
	limit   int
	window  time.Duration
	now     func() time.Time
}

func newIPLimiter(limit int, window time.Duration) *ipLimiter {
	return &ipLimiter{
		clients: make(map[string]*clientWindow),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (l *ipLimiter) allow(ip string) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	cw, ok := l.clients[ip]
	if !ok || now.Sub(cw.windowStart) >= l.window {
		l.clients[ip] = &clientWindow{count: 1, windowStart: now}
		return true, 0
	}
	if cw.count < l.limit {
		cw.count++
		return true, 0
	}
	return false, l.window - now.Sub(cw.windowStart)
}

// RateLimitMiddleware limits requests per client IP with an in-process window.
func RateLimitMiddleware(limitPerMinute int) gin.HandlerFunc {
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}
	limiter := newIPLimiter(limitPerMinute, time.Minute)
	return func(c *gin.Context) {
		ok, retryAfter := limiter.allow(clientKey(c))
		if !ok {
			tooManyRequests(c, int(retryAfter.Seconds())+1)
			return
		}
		c.Next()
	}
}

// limiterNow picks the redis window; tests pin it.
var limiterNow = time.Now

// RedisRateLimitMiddleware shares minute-window counters between replicas.
// When redis is unreachable the request is counted by the local fallback limiter instead.
func RedisRateLimitMiddleware(rc *redis.Client, limitPerMinute int, log *logger.Logger) gin.HandlerFunc {
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}
	fallback := RateLimitMiddleware(limitPerMinute)
	return func(c *gin.Context) {
		now := limiterNow().UTC()
		key := fmt.Sprintf("grc:rl:%s:%s", clientKey(c), now.Format("200601021504"))
		ctx, cancel := context.WithTimeout(c.Request.Context(), 200*time.Millisecond)
		defer cancel()

		n, err := rc.Incr(ctx, key).Result()
		if err != nil {
			log.Warn().Err(err).Msg("redis rate limiter unavailable, using local limiter")
			fallback(c)
			return
		}
		if n == 1 {
			_ = rc.Expire(ctx, key, 61*time.Second).Err()
		}
		if int(n) > limitPerMinute {
			tooManyRequests(c, 60-now.Second())
			return
		}
		c.Next()
	}
}

func tooManyRequests(c *gin.Context, retryAfterSeconds int) {
	c.Header("Retry-After", fmt.Sprintf("%d", retryAfterSeconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please try again later."})
}

func clientKey(c *gin.Context) string {
	ip := c.ClientIP()
	if net.ParseIP(ip) == nil {
		return "unknown"
	}
	return ip
}
