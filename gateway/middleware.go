package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/evansochadeka/BenFarm/pkg/auth"
	"github.com/evansochadeka/BenFarm/pkg/metrics"
	"github.com/evansochadeka/BenFarm/pkg/models"
)

const (
	sessionCookie = "session"
	userKey       = "user"
	authErrKey    = "auth_error"
)

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if u := currentUser(c); u != nil {
			fields = append(fields, zap.Uint("user_id", u.ID))
		}
		logger.Info("HTTP request", fields...)
	}
}

func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		return cookie
	}
	return ""
}

// authenticate attaches the session user when a valid token is present.
// Anonymous requests pass through; requireUser rejects them where needed.
func (g *Gateway) authenticate(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.Next()
		return
	}
	user, err := g.app.Auth.Authenticate(c.Request.Context(), token)
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrInactive) {
		c.Set(authErrKey, err)
		c.Next()
		return
	}
	if err != nil {
		respondError(c, g.logger, err)
		c.Abort()
		return
	}
	c.Set(userKey, user)
	c.Next()
}

func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

func requireUser(c *gin.Context) {
	if currentUser(c) != nil {
		c.Next()
		return
	}
	if v, ok := c.Get(authErrKey); ok {
		if err, _ := v.(error); errors.Is(err, auth.ErrInactive) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
}

func requireCapability(capability auth.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := currentUser(c)
		if u == nil || !auth.Can(u.Role, capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.Next()
	}
}

// userLimiter hands out one token bucket per user.
type userLimiter struct {
	mu       sync.Mutex
	limiters map[uint]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newUserLimiter(perMinute int) *userLimiter {
	if perMinute <= 0 {
		perMinute = 20
	}
	return &userLimiter{
		limiters: map[uint]*rate.Limiter{},
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (l *userLimiter) allow(userID uint) bool {
	l.mu.Lock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func (g *Gateway) rateLimit(c *gin.Context) {
	u := currentUser(c)
	if u != nil && !g.limiter.allow(u.ID) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, try again shortly"})
		return
	}
	c.Next()
}
