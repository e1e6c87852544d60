package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/store"
	"storefront/internal/util"
)

const (
	sessionCookie = "sid"
	ctxUserKey    = "currentUser"
	ctxSIDKey     = "sessionID"
)

// sessionMiddleware resolves the sid cookie to a user. Anonymous
// requests pass through with no user set; a session pointing at a
// deleted account is invalidated on sight.
func sessionMiddleware(redis *redisclient.Client, st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(sessionCookie)
		if err != nil || sid == "" {
			c.Next()
			return
		}
		c.Set(ctxSIDKey, sid)

		sess, err := redis.GetSession(c.Request.Context(), sid)
		if err != nil || sess == nil {
			c.Next()
			return
		}

		user, err := st.GetUserByID(c.Request.Context(), sess.UserID)
		if err != nil {
			c.Next()
			return
		}
		if user.Role == models.RoleDeleted {
			_ = redis.DeleteSession(c.Request.Context(), sid)
			c.Next()
			return
		}

		c.Set(ctxUserKey, user)
		c.Next()
	}
}

// requireAuth rejects requests with no resolved user
func requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(ctxUserKey); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Please log in to continue"})
			return
		}
		c.Next()
	}
}

// requireAdmin rejects non-admin users
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil || user.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func sessionID(c *gin.Context) string {
	v, ok := c.Get(ctxSIDKey)
	if !ok {
		return ""
	}
	sid, _ := v.(string)
	return sid
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
